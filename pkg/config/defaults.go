package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8091"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultShutdownTimeout = 15 * time.Second

	// Queue defaults
	DefaultMaxConcurrent   = 3
	DefaultMaxQueueSize    = 100
	DefaultRequestTimeout  = 30 * time.Second
	DefaultPriority        = "medium"
	DefaultQueueMaxRetries = 2

	// Rate limit defaults
	DefaultRateLimitWindow      = time.Minute
	DefaultRateLimitMaxRequests = 20
	DefaultRateLimitBurst       = 0

	// Stream defaults
	DefaultStreamMaxRetries   = 3
	DefaultInitialBackoff     = time.Second
	DefaultMaxBackoff         = 10 * time.Second
	DefaultBackoffMultiplier  = 2.0

	// Agent defaults
	DefaultAgentPoolSize    = 5
	DefaultAgentModel       = "gpt-4o-mini"
	DefaultAgentMaxTokens   = 1024
	DefaultAgentTemperature = 0.7

	// Archive defaults
	DefaultArchivePath          = "data/traces.db"
	DefaultArchiveMaxOpenConns  = 10
	DefaultArchiveMaxIdleConns  = 5
	DefaultArchiveBusyTimeout   = 5 * time.Second
	DefaultArchiveRetentionDays = 30
	DefaultArchivePruneSchedule = "0 3 * * *"

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// Metrics defaults
	DefaultMetricsNamespace    = "nimbus"
	DefaultMetricsSubsystem    = "ganymede"
	DefaultMetricsBufferSize   = 1000
	DefaultAggregationInterval = 10 * time.Second
	DefaultRollingWindow       = 60 * time.Second
	DefaultMaxAlerts           = 100

	// Alert threshold defaults
	DefaultLatencyWarning     = 5 * time.Second
	DefaultLatencyCritical    = 15 * time.Second
	DefaultErrorRateWarning   = 0.1
	DefaultErrorRateCritical  = 0.25
	DefaultQueueDepthWarning  = 50
	DefaultQueueDepthCritical = 90
)

// boolPtr returns a pointer to b, for optional boolean defaults.
func boolPtr(b bool) *bool { return &b }

// ApplyDefaults fills in default values for any zero-valued configuration
// fields. It is called automatically by LoadConfig.
func ApplyDefaults(cfg *Config) {
	// Server
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Queue
	if cfg.Queue.MaxConcurrent == 0 {
		cfg.Queue.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.Queue.MaxQueueSize == 0 {
		cfg.Queue.MaxQueueSize = DefaultMaxQueueSize
	}
	if cfg.Queue.RequestTimeout == 0 {
		cfg.Queue.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Queue.DefaultPriority == "" {
		cfg.Queue.DefaultPriority = DefaultPriority
	}
	if cfg.Queue.MaxRetries == 0 {
		cfg.Queue.MaxRetries = DefaultQueueMaxRetries
	}
	if cfg.Queue.RateLimit.Window == 0 {
		cfg.Queue.RateLimit.Window = DefaultRateLimitWindow
	}
	if cfg.Queue.RateLimit.MaxRequests == 0 {
		cfg.Queue.RateLimit.MaxRequests = DefaultRateLimitMaxRequests
	}

	// Stream
	if cfg.Stream.MaxRetries == 0 {
		cfg.Stream.MaxRetries = DefaultStreamMaxRetries
	}
	if cfg.Stream.InitialBackoff == 0 {
		cfg.Stream.InitialBackoff = DefaultInitialBackoff
	}
	if cfg.Stream.MaxBackoff == 0 {
		cfg.Stream.MaxBackoff = DefaultMaxBackoff
	}
	if cfg.Stream.BackoffMultiplier == 0 {
		cfg.Stream.BackoffMultiplier = DefaultBackoffMultiplier
	}
	if cfg.Stream.MetricsEnabled == nil {
		cfg.Stream.MetricsEnabled = boolPtr(true)
	}

	// Agents
	if cfg.Agents.PoolSize == 0 {
		cfg.Agents.PoolSize = DefaultAgentPoolSize
	}
	if cfg.Agents.Model == "" {
		cfg.Agents.Model = DefaultAgentModel
	}
	if cfg.Agents.MaxTokens == 0 {
		cfg.Agents.MaxTokens = DefaultAgentMaxTokens
	}
	if cfg.Agents.Temperature == 0 {
		cfg.Agents.Temperature = DefaultAgentTemperature
	}

	// Archive
	if cfg.Archive.Enabled == nil {
		cfg.Archive.Enabled = boolPtr(true)
	}
	if cfg.Archive.Path == "" {
		cfg.Archive.Path = DefaultArchivePath
	}
	if cfg.Archive.MaxOpenConns == 0 {
		cfg.Archive.MaxOpenConns = DefaultArchiveMaxOpenConns
	}
	if cfg.Archive.MaxIdleConns == 0 {
		cfg.Archive.MaxIdleConns = DefaultArchiveMaxIdleConns
	}
	if cfg.Archive.BusyTimeout == 0 {
		cfg.Archive.BusyTimeout = DefaultArchiveBusyTimeout
	}
	if cfg.Archive.RetentionDays == 0 {
		cfg.Archive.RetentionDays = DefaultArchiveRetentionDays
	}
	if cfg.Archive.PruneSchedule == "" {
		cfg.Archive.PruneSchedule = DefaultArchivePruneSchedule
	}

	// Logging
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}

	// Metrics
	m := &cfg.Telemetry.Metrics
	if m.Enabled == nil {
		m.Enabled = boolPtr(true)
	}
	if m.Namespace == "" {
		m.Namespace = DefaultMetricsNamespace
	}
	if m.Subsystem == "" {
		m.Subsystem = DefaultMetricsSubsystem
	}
	if m.BufferSize == 0 {
		m.BufferSize = DefaultMetricsBufferSize
	}
	if m.AggregationInterval == 0 {
		m.AggregationInterval = DefaultAggregationInterval
	}
	if m.RollingWindow == 0 {
		m.RollingWindow = DefaultRollingWindow
	}
	if m.MaxAlerts == 0 {
		m.MaxAlerts = DefaultMaxAlerts
	}

	// Alert thresholds
	a := &m.Alerts
	if a.LatencyWarning == 0 {
		a.LatencyWarning = DefaultLatencyWarning
	}
	if a.LatencyCritical == 0 {
		a.LatencyCritical = DefaultLatencyCritical
	}
	if a.ErrorRateWarning == 0 {
		a.ErrorRateWarning = DefaultErrorRateWarning
	}
	if a.ErrorRateCritical == 0 {
		a.ErrorRateCritical = DefaultErrorRateCritical
	}
	if a.QueueDepthWarning == 0 {
		a.QueueDepthWarning = DefaultQueueDepthWarning
	}
	if a.QueueDepthCritical == 0 {
		a.QueueDepthCritical = DefaultQueueDepthCritical
	}
}

// Default returns a fully defaulted configuration without reading any file.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
