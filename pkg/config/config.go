package config

import "time"

// Config is the root configuration structure for Ganymede.
type Config struct {
	// Server contains the observability HTTP server configuration.
	Server ServerConfig `yaml:"server"`

	// Queue contains admission controller configuration: concurrency cap,
	// queue bounds, queue-wait timeout and per-caller rate limiting.
	Queue QueueConfig `yaml:"queue"`

	// Stream contains stream executor configuration: retry count and
	// backoff shape for transient model failures.
	Stream StreamConfig `yaml:"stream"`

	// Agents contains model client pool configuration.
	Agents AgentConfig `yaml:"agents"`

	// Archive contains the finished-trace archive configuration.
	Archive ArchiveConfig `yaml:"archive"`

	// Telemetry contains logging, metrics and alerting configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the observability HTTP server
// (health and metrics endpoints).
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8091"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes.
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// QueueConfig contains configuration for the admission controller.
type QueueConfig struct {
	// MaxConcurrent bounds how many dequeued requests process at once.
	// Default: 3
	MaxConcurrent int `yaml:"max_concurrent"`

	// MaxQueueSize bounds the total number of queued requests across all
	// priority buckets. The next request past the bound is rejected.
	// Default: 100
	MaxQueueSize int `yaml:"max_queue_size"`

	// RequestTimeout is how long a request may wait in the queue before it
	// is rejected. It does not apply once processing has started.
	// Default: 30s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// DefaultPriority is the bucket used when a request carries none.
	// One of: urgent, high, medium, low. Default: "medium"
	DefaultPriority string `yaml:"default_priority"`

	// MaxRetries is how many times a request is re-enqueued after its
	// processing step fails. This is the coarse queue-level retry,
	// independent of the stream executor's attempt-level retry.
	// Default: 2
	MaxRetries int `yaml:"max_retries"`

	// RateLimit contains per-caller fixed-window rate limiting.
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig contains per-caller fixed-window rate limit settings.
type RateLimitConfig struct {
	// Window is the duration of the counting window. The window resets
	// wholesale once it elapses. Default: 1m
	Window time.Duration `yaml:"window"`

	// MaxRequests is the number of requests admitted per caller per window.
	// Default: 20
	MaxRequests int `yaml:"max_requests"`

	// Burst is extra headroom admitted on top of MaxRequests within a
	// single window. Default: 0
	Burst int `yaml:"burst"`
}

// StreamConfig contains configuration for the resilient stream executor.
type StreamConfig struct {
	// MaxRetries is the number of retries after the first attempt for
	// transient model failures. Default: 3
	MaxRetries int `yaml:"max_retries"`

	// InitialBackoff is the delay before the first retry. Default: 1s
	InitialBackoff time.Duration `yaml:"initial_backoff"`

	// MaxBackoff caps the delay between retries. Default: 10s
	MaxBackoff time.Duration `yaml:"max_backoff"`

	// BackoffMultiplier scales the delay each retry. Default: 2.0
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`

	// AttemptTimeout is an optional per-attempt deadline applied to each
	// model call. Zero means the model client's own timeout governs.
	// Default: 0
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`

	// MetricsEnabled controls whether attempts are traced in the metrics
	// engine. Default: true
	MetricsEnabled *bool `yaml:"metrics_enabled"`
}

// AgentConfig contains configuration for the model client pool.
type AgentConfig struct {
	// PoolSize is the number of pre-constructed model client handles.
	// Default: 5
	PoolSize int `yaml:"pool_size"`

	// Model is the model identifier requests are sent with.
	// Default: "gpt-4o-mini"
	Model string `yaml:"model"`

	// MaxTokens is the generation cap per request. Default: 1024
	MaxTokens int `yaml:"max_tokens"`

	// Temperature controls randomness. Default: 0.7
	Temperature float64 `yaml:"temperature"`
}

// ArchiveConfig contains configuration for the finished-trace archive.
type ArchiveConfig struct {
	// Enabled controls whether finished traces are persisted.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the SQLite database file path. Default: "data/traces.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open database connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections. Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// RetentionDays is how many days of traces are kept. Default: 30
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is a cron expression for the retention job.
	// Default: "0 3 * * *" (daily at 3 AM). Empty disables pruning.
	PruneSchedule string `yaml:"prune_schedule"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains the metrics engine and alerting configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format (json, text, console). Default: "json"
	Format string `yaml:"format"`
}

// MetricsConfig contains the metrics engine configuration.
type MetricsConfig struct {
	// Enabled controls metric collection. Default: true
	Enabled *bool `yaml:"enabled"`

	// Namespace is the Prometheus metric namespace. Default: "nimbus"
	Namespace string `yaml:"namespace"`

	// Subsystem is the Prometheus metric subsystem. Default: "ganymede"
	Subsystem string `yaml:"subsystem"`

	// BufferSize is the capacity of the trace and latency ring buffers.
	// Default: 1000
	BufferSize int `yaml:"buffer_size"`

	// AggregationInterval is how often rolling system metrics are
	// recomputed. Default: 10s
	AggregationInterval time.Duration `yaml:"aggregation_interval"`

	// RollingWindow is the trailing window aggregation considers.
	// Default: 60s
	RollingWindow time.Duration `yaml:"rolling_window"`

	// MaxAlerts caps the alert history; oldest entries are evicted.
	// Default: 100
	MaxAlerts int `yaml:"max_alerts"`

	// Alerts contains threshold configuration for alerting.
	Alerts AlertThresholds `yaml:"alerts"`
}

// AlertThresholds contains warning and critical thresholds for alerting
// and health evaluation.
type AlertThresholds struct {
	// LatencyWarning is the per-request latency warning threshold.
	// Default: 5s
	LatencyWarning time.Duration `yaml:"latency_warning"`

	// LatencyCritical is the per-request latency critical threshold.
	// Default: 15s
	LatencyCritical time.Duration `yaml:"latency_critical"`

	// ErrorRateWarning is the rolling error-rate warning threshold
	// (fraction, 0..1). Default: 0.1
	ErrorRateWarning float64 `yaml:"error_rate_warning"`

	// ErrorRateCritical is the rolling error-rate critical threshold
	// (fraction, 0..1). Default: 0.25
	ErrorRateCritical float64 `yaml:"error_rate_critical"`

	// QueueDepthWarning is the queue depth warning threshold. Default: 50
	QueueDepthWarning int `yaml:"queue_depth_warning"`

	// QueueDepthCritical is the queue depth critical threshold.
	// Default: 90
	QueueDepthCritical int `yaml:"queue_depth_critical"`
}
