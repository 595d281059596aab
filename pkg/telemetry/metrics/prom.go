package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"nimbus-hq/ganymede/pkg/config"
)

// promMetrics exports pipeline metrics to Prometheus.
//
// Metrics:
//   - <ns>_<sub>_requests_total: attempt count by agent, model, outcome
//   - <ns>_<sub>_request_duration_seconds: attempt duration histogram
//   - <ns>_<sub>_request_tokens_total: token consumption counter
//   - <ns>_<sub>_queue_depth: current admission queue depth
//   - <ns>_<sub>_active_requests: attempts currently in flight
//   - <ns>_<sub>_retries_total: stream retry count by reason
//   - <ns>_<sub>_alerts_total: raised (non-deduplicated) alerts by severity
type promMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokensTotal     *prometheus.CounterVec
	queueDepth      prometheus.Gauge
	activeRequests  prometheus.Gauge
	retriesTotal    *prometheus.CounterVec
	alertsTotal     *prometheus.CounterVec
}

// newPromMetrics creates and registers the Prometheus collectors.
func newPromMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *promMetrics {
	// Buckets optimized for model-call latencies (100ms - 30s).
	durationBuckets := []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0}

	pm := &promMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_total",
				Help:      "Total number of model attempts processed",
			},
			[]string{"agent", "model", "outcome"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "Duration of model attempts in seconds",
				Buckets:   durationBuckets,
			},
			[]string{"agent", "model"},
		),

		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_tokens_total",
				Help:      "Total number of tokens consumed",
			},
			[]string{"agent", "model"},
		),

		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "queue_depth",
				Help:      "Current admission queue depth across all priority buckets",
			},
		),

		activeRequests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "active_requests",
				Help:      "Model attempts currently in flight",
			},
		),

		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "retries_total",
				Help:      "Total number of stream retry attempts",
			},
			[]string{"reason"},
		),

		alertsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "alerts_total",
				Help:      "Total number of alerts raised",
			},
			[]string{"severity"},
		),
	}

	registry.MustRegister(
		pm.requestsTotal,
		pm.requestDuration,
		pm.tokensTotal,
		pm.queueDepth,
		pm.activeRequests,
		pm.retriesTotal,
		pm.alertsTotal,
	)

	return pm
}

// recordCompletion exports a finalized trace.
func (pm *promMetrics) recordCompletion(t *RequestTrace) {
	pm.requestsTotal.WithLabelValues(t.AgentID, t.ModelID, string(t.Outcome)).Inc()
	pm.requestDuration.WithLabelValues(t.AgentID, t.ModelID).Observe(t.Latency.Seconds())
	if t.TokensUsed > 0 {
		pm.tokensTotal.WithLabelValues(t.AgentID, t.ModelID).Add(float64(t.TokensUsed))
	}
	pm.activeRequests.Dec()
}
