package config

import (
	"fmt"
	"strings"
)

// ValidPriorities is the set of accepted queue priorities, in dequeue order.
var ValidPriorities = []string{"urgent", "high", "medium", "low"}

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field
	// (e.g. "queue.max_queue_size").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate validates the entire configuration. All validation errors are
// collected and returned together as a ValidationError; nil means valid.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateQueue(&cfg.Queue)...)
	errs = append(errs, validateStream(&cfg.Stream)...)
	errs = append(errs, validateAgents(&cfg.Agents)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{"server.listen_address", "must not be empty"})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{"server.shutdown_timeout", "must not be negative"})
	}

	return errs
}

func validateQueue(cfg *QueueConfig) []FieldError {
	var errs []FieldError

	if cfg.MaxConcurrent < 1 {
		errs = append(errs, FieldError{"queue.max_concurrent", "must be at least 1"})
	}
	if cfg.MaxQueueSize < 1 {
		errs = append(errs, FieldError{"queue.max_queue_size", "must be at least 1"})
	}
	if cfg.RequestTimeout <= 0 {
		errs = append(errs, FieldError{"queue.request_timeout", "must be positive"})
	}
	if cfg.MaxRetries < 0 {
		errs = append(errs, FieldError{"queue.max_retries", "must not be negative"})
	}

	valid := false
	for _, p := range ValidPriorities {
		if cfg.DefaultPriority == p {
			valid = true
			break
		}
	}
	if !valid {
		errs = append(errs, FieldError{"queue.default_priority",
			fmt.Sprintf("must be one of %s", strings.Join(ValidPriorities, ", "))})
	}

	if cfg.RateLimit.Window <= 0 {
		errs = append(errs, FieldError{"queue.rate_limit.window", "must be positive"})
	}
	if cfg.RateLimit.MaxRequests < 1 {
		errs = append(errs, FieldError{"queue.rate_limit.max_requests", "must be at least 1"})
	}
	if cfg.RateLimit.Burst < 0 {
		errs = append(errs, FieldError{"queue.rate_limit.burst", "must not be negative"})
	}

	return errs
}

func validateStream(cfg *StreamConfig) []FieldError {
	var errs []FieldError

	if cfg.MaxRetries < 0 {
		errs = append(errs, FieldError{"stream.max_retries", "must not be negative"})
	}
	if cfg.InitialBackoff <= 0 {
		errs = append(errs, FieldError{"stream.initial_backoff", "must be positive"})
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		errs = append(errs, FieldError{"stream.max_backoff", "must be at least initial_backoff"})
	}
	if cfg.BackoffMultiplier < 1 {
		errs = append(errs, FieldError{"stream.backoff_multiplier", "must be at least 1"})
	}
	if cfg.AttemptTimeout < 0 {
		errs = append(errs, FieldError{"stream.attempt_timeout", "must not be negative"})
	}

	return errs
}

func validateAgents(cfg *AgentConfig) []FieldError {
	var errs []FieldError

	if cfg.PoolSize < 1 {
		errs = append(errs, FieldError{"agents.pool_size", "must be at least 1"})
	}
	if cfg.Model == "" {
		errs = append(errs, FieldError{"agents.model", "must not be empty"})
	}
	if cfg.MaxTokens < 1 {
		errs = append(errs, FieldError{"agents.max_tokens", "must be at least 1"})
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		errs = append(errs, FieldError{"agents.temperature", "must be between 0 and 2"})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{"telemetry.logging.level",
			"must be one of debug, info, warn, error"})
	}

	switch cfg.Logging.Format {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{"telemetry.logging.format",
			"must be one of json, text, console"})
	}

	m := &cfg.Metrics
	if m.BufferSize < 1 {
		errs = append(errs, FieldError{"telemetry.metrics.buffer_size", "must be at least 1"})
	}
	if m.AggregationInterval <= 0 {
		errs = append(errs, FieldError{"telemetry.metrics.aggregation_interval", "must be positive"})
	}
	if m.RollingWindow <= 0 {
		errs = append(errs, FieldError{"telemetry.metrics.rolling_window", "must be positive"})
	}
	if m.MaxAlerts < 1 {
		errs = append(errs, FieldError{"telemetry.metrics.max_alerts", "must be at least 1"})
	}

	a := &m.Alerts
	if a.LatencyCritical < a.LatencyWarning {
		errs = append(errs, FieldError{"telemetry.metrics.alerts.latency_critical",
			"must be at least latency_warning"})
	}
	if a.ErrorRateWarning < 0 || a.ErrorRateWarning > 1 {
		errs = append(errs, FieldError{"telemetry.metrics.alerts.error_rate_warning",
			"must be between 0 and 1"})
	}
	if a.ErrorRateCritical < a.ErrorRateWarning || a.ErrorRateCritical > 1 {
		errs = append(errs, FieldError{"telemetry.metrics.alerts.error_rate_critical",
			"must be between error_rate_warning and 1"})
	}
	if a.QueueDepthCritical < a.QueueDepthWarning {
		errs = append(errs, FieldError{"telemetry.metrics.alerts.queue_depth_critical",
			"must be at least queue_depth_warning"})
	}

	return errs
}
