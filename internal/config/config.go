// Package config defines the configuration for the telemetry binaries.
// Configuration is loaded once at process start and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format fails the load.
package config

import (
	"time"

	"telemetry/internal/types"
)

// SecretString is an alias for types.SecretString so secrets never reach logs.
type SecretString = types.SecretString

// Config is the top-level configuration. Components receive only the
// subset they need.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"telemetry"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Database      DatabaseConfig
	Drain         DrainConfig
	Serialization SerializationConfig
	AWS           AWSConfig
	Observability ObservabilityConfig
	Agent         AgentConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds the health server settings of the drain daemon.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
}

// Isolation level names accepted by DB_ISOLATION_LEVEL. Empty means the
// server default.
const (
	IsolationReadCommitted  = "read_committed"
	IsolationRepeatableRead = "repeatable_read"
	IsolationSerializable   = "serializable"
)

// DatabaseConfig holds database connection, pool tuning and writer
// behaviour parameters.
type DatabaseConfig struct {
	// Resolved from SSM or Env
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	// Pool Tuning
	MaxConns          int32         `envconfig:"DB_MAX_CONNS" default:"10" validate:"min=1"`
	MinConns          int32         `envconfig:"DB_MIN_CONNS" default:"0" validate:"min=0"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`

	// Statement Behaviour
	CommandTimeout time.Duration `envconfig:"DB_COMMAND_TIMEOUT" default:"30s" validate:"gt=0"`
	IsolationLevel string        `envconfig:"DB_ISOLATION_LEVEL" validate:"omitempty,oneof=read_committed repeatable_read serializable"`

	// Event Source Resolution
	EventSourceAtomicUpsert bool `envconfig:"DB_EVENT_SOURCE_ATOMIC_UPSERT" default:"false"`
	EventSourceCacheSize    int  `envconfig:"DB_EVENT_SOURCE_CACHE_SIZE" default:"1024" validate:"min=0"`
}

// DrainConfig controls the fetch/persist/remove loop.
type DrainConfig struct {
	Interval time.Duration `envconfig:"DRAIN_INTERVAL" default:"30s" validate:"gt=0"`
	// BatchLimit of zero drains the whole queue each cycle.
	BatchLimit      int           `envconfig:"DRAIN_BATCH_LIMIT" default:"0" validate:"min=0"`
	BreakerFailures uint32        `envconfig:"DRAIN_BREAKER_FAILURES" default:"5" validate:"min=1"`
	BreakerTimeout  time.Duration `envconfig:"DRAIN_BREAKER_TIMEOUT" default:"30s"`
}

// SerializationConfig selects the payload envelope written by producers.
// Readers accept every format regardless of this setting.
type SerializationConfig struct {
	Format      string `envconfig:"SERIALIZATION_FORMAT" default:"json" validate:"oneof=json cbor"`
	Compression string `envconfig:"SERIALIZATION_COMPRESSION" default:"none" validate:"oneof=none zstd lz4"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region      string `envconfig:"AWS_REGION" default:"us-east-1"`
	RawQueueURL string `envconfig:"SQS_RAW_QUEUE_URL" validate:"omitempty,url"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// ObservabilityConfig holds metric publishing settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"Telemetry"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"true"`
}

// AgentConfig controls the diagnostics agent sampling loop.
type AgentConfig struct {
	Interval  time.Duration `envconfig:"AGENT_INTERVAL" default:"1m" validate:"gt=0"`
	EventName string        `envconfig:"AGENT_EVENT_NAME" default:"PerformanceCounters" validate:"required"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
