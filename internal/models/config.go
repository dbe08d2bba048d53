package models

// Config holds the application configuration
type Config struct {
	Database Database      `json:"database"`
	Server   ServerConfig  `json:"server"`
	Log      LogConfig     `json:"log"`
	Tracing  TracingConfig `json:"tracing"`
	Retry    RetryConfig   `json:"retry"`

	// Lifetime of a send-log entry in hours; entries older than this are
	// swept regardless of delivery state.
	EntryLifetimeHours int `json:"entryLifetimeHours"`

	// Emergency brake: disables all send-log recording and reads.
	ResendKillSwitch bool `json:"resendKillSwitch"`

	// Optional endpoint queried for a recipient's delivery status when a
	// pending-delivery insert races with payload deletion.
	DeliveryStatusURL string `json:"deliveryStatusUrl"`
}

// Database holds database related configurations
type Database struct {
	Path string `json:"path"`
}

// ServerConfig holds HTTP server related configurations
type ServerConfig struct {
	Port                 int `json:"port"`
	CleanupIntervalHours int `json:"cleanupIntervalHours"`
}

// LogConfig holds logging related configurations
type LogConfig struct {
	Level string `json:"level"`
}

// TracingConfig holds OpenTelemetry related configurations
type TracingConfig struct {
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	Enabled        bool    `json:"enabled"`
	UseStdout      bool    `json:"use_stdout"`
}

// RetryConfig holds retry related configurations
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
