package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("{}"))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	if cfg.Queue.MaxConcurrent != DefaultMaxConcurrent {
		t.Errorf("MaxConcurrent = %d, want %d", cfg.Queue.MaxConcurrent, DefaultMaxConcurrent)
	}
	if cfg.Queue.MaxQueueSize != DefaultMaxQueueSize {
		t.Errorf("MaxQueueSize = %d, want %d", cfg.Queue.MaxQueueSize, DefaultMaxQueueSize)
	}
	if cfg.Queue.DefaultPriority != "medium" {
		t.Errorf("DefaultPriority = %q, want medium", cfg.Queue.DefaultPriority)
	}
	if cfg.Stream.BackoffMultiplier != DefaultBackoffMultiplier {
		t.Errorf("BackoffMultiplier = %v, want %v", cfg.Stream.BackoffMultiplier, DefaultBackoffMultiplier)
	}
	if cfg.Stream.MetricsEnabled == nil || !*cfg.Stream.MetricsEnabled {
		t.Error("stream metrics should default to enabled")
	}
	if cfg.Telemetry.Metrics.Alerts.ErrorRateCritical != DefaultErrorRateCritical {
		t.Errorf("ErrorRateCritical = %v, want %v",
			cfg.Telemetry.Metrics.Alerts.ErrorRateCritical, DefaultErrorRateCritical)
	}
}

func TestParseConfig_Overrides(t *testing.T) {
	yaml := `
queue:
  max_concurrent: 8
  max_queue_size: 250
  request_timeout: 45s
  default_priority: high
  rate_limit:
    window: 30s
    max_requests: 5
    burst: 2
stream:
  max_retries: 5
  initial_backoff: 500ms
  max_backoff: 20s
`
	cfg, err := ParseConfig([]byte(yaml))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	if cfg.Queue.MaxConcurrent != 8 {
		t.Errorf("MaxConcurrent = %d, want 8", cfg.Queue.MaxConcurrent)
	}
	if cfg.Queue.RequestTimeout != 45*time.Second {
		t.Errorf("RequestTimeout = %v, want 45s", cfg.Queue.RequestTimeout)
	}
	if cfg.Queue.RateLimit.MaxRequests != 5 || cfg.Queue.RateLimit.Burst != 2 {
		t.Errorf("rate limit = %+v, want max 5 burst 2", cfg.Queue.RateLimit)
	}
	if cfg.Stream.MaxRetries != 5 {
		t.Errorf("Stream.MaxRetries = %d, want 5", cfg.Stream.MaxRetries)
	}
	if cfg.Stream.InitialBackoff != 500*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 500ms", cfg.Stream.InitialBackoff)
	}
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{
			name:  "bad priority",
			yaml:  "queue:\n  default_priority: asap\n",
			field: "queue.default_priority",
		},
		{
			name:  "bad log level",
			yaml:  "telemetry:\n  logging:\n    level: loud\n",
			field: "telemetry.logging.level",
		},
		{
			name:  "critical below warning",
			yaml:  "telemetry:\n  metrics:\n    alerts:\n      latency_warning: 20s\n      latency_critical: 10s\n",
			field: "telemetry.metrics.alerts.latency_critical",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not mention field %q", err, tt.field)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/ganymede.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  listen_address: 127.0.0.1:9999\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("GANYMEDE_SERVER_LISTEN_ADDRESS", "0.0.0.0:8095")
	t.Setenv("GANYMEDE_LOG_LEVEL", "debug")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides failed: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:8095" {
		t.Errorf("ListenAddress = %q, want env override", cfg.Server.ListenAddress)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Telemetry.Logging.Level)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Errorf("Default() should validate cleanly: %v", err)
	}
}
