// Package config provides configuration management for the research report service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Lease modes for per-thread single-flight execution.
const (
	// LeaseModeAdvisory uses PostgreSQL session advisory locks, safe across replicas.
	LeaseModeAdvisory = "advisory"
	// LeaseModeLocal uses an in-process lock table (single replica only).
	LeaseModeLocal = "local"
)

// Config holds all configuration for the research report service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// LLM contains the completion collaborator settings.
	LLM LLMConfig `mapstructure:"llm"`
	// Search contains the primary and fallback search collaborator settings.
	Search SearchConfig `mapstructure:"search"`
	// Workflow contains executor and step tuning.
	Workflow WorkflowConfig `mapstructure:"workflow"`
	// Kafka contains the step event publisher settings.
	Kafka KafkaConfig `mapstructure:"kafka"`
	// Archive contains report archive settings.
	Archive ArchiveConfig `mapstructure:"archive"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing a non-streaming response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (use environment variable in production).
	Password string `mapstructure:"password"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool (default: 20).
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open (default: 2).
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath overrides the embedded migrations with a directory on
	// disk (relative or absolute). Empty uses the migrations built into the binary.
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup (default: false).
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
}

// LLMConfig holds completion collaborator configuration.
type LLMConfig struct {
	// Provider selects the backend: "openai" (direct Chat Completions client)
	// or "langchain" (langchaingo OpenAI-compatible model).
	Provider string `mapstructure:"provider"`
	// APIKey is loaded from REPORTSVC_LLM_API_KEY or OPENAI_API_KEY.
	APIKey string `mapstructure:"-"`
	// Model is the model identifier.
	Model string `mapstructure:"model"`
	// BaseURL is the API base URL (any OpenAI-compatible endpoint).
	BaseURL string `mapstructure:"base_url"`
	// Temperature is the sampling temperature.
	Temperature float64 `mapstructure:"temperature"`
	// MaxTokens bounds each completion (0 lets the provider decide).
	MaxTokens int `mapstructure:"max_tokens"`
	// Timeout is the timeout for a single completion call.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the maximum number of retries for transient failures.
	MaxRetries int `mapstructure:"max_retries"`
	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// SearchConfig holds search collaborator configuration.
type SearchConfig struct {
	// Tavily contains the primary search API settings.
	Tavily TavilyConfig `mapstructure:"tavily"`
	// FallbackEnabled enables the DuckDuckGo fallback collaborator.
	FallbackEnabled bool `mapstructure:"fallback_enabled"`
	// FallbackMaxResults is the result count requested from the fallback.
	FallbackMaxResults int `mapstructure:"fallback_max_results"`
}

// TavilyConfig holds the primary search API settings.
type TavilyConfig struct {
	// APIKey is loaded from REPORTSVC_SEARCH_TAVILY_API_KEY or TAVILY_API_KEY.
	APIKey string `mapstructure:"-"`
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url"`
	// MaxResults is the result count per query (default: 6).
	MaxResults int `mapstructure:"max_results"`
	// Depth is the search depth ("basic" or "advanced").
	Depth string `mapstructure:"depth"`
	// Timeout is the timeout for one API call.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// Burst is the rate limiter burst size.
	Burst int `mapstructure:"burst"`
	// MaxRetries is the maximum number of retries for transient failures.
	MaxRetries int `mapstructure:"max_retries"`
}

// WorkflowConfig holds executor and step settings.
type WorkflowConfig struct {
	// DefaultMaxRevisions is the revision cap for new threads (default: 2).
	DefaultMaxRevisions int `mapstructure:"default_max_revisions"`
	// MaxResearchRounds bounds reviewer-requested research loops (default: 2).
	MaxResearchRounds int `mapstructure:"max_research_rounds"`
	// StepTimeout bounds one step body; a timeout is handled by the step's fallback.
	StepTimeout time.Duration `mapstructure:"step_timeout"`
	// SectionConcurrency is the number of sections Write drafts in parallel.
	SectionConcurrency int `mapstructure:"section_concurrency"`
	// SourcesInPrompt is how many sources are listed in writer prompts (default: 8).
	SourcesInPrompt int `mapstructure:"sources_in_prompt"`
	// LeaseMode selects the single-flight mechanism (advisory, local).
	LeaseMode string `mapstructure:"lease_mode"`
}

// KafkaConfig holds Kafka publisher settings.
type KafkaConfig struct {
	// Enabled controls whether Kafka publishing is active.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// Topic is the Kafka topic thread events are published to.
	Topic string `mapstructure:"topic"`
	// BatchSize is the maximum number of messages to batch before sending.
	BatchSize int `mapstructure:"batch_size"`
	// BatchTimeout is the maximum time to wait for a batch to fill before sending.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	// DecisionsTopic, when set, is consumed for human decisions submitted by
	// other services.
	DecisionsTopic string `mapstructure:"decisions_topic"`
	// GroupID is the consumer group for the decisions topic.
	GroupID string `mapstructure:"group_id"`
}

// ArchiveConfig holds report archive settings.
type ArchiveConfig struct {
	// DefaultListLimit is the page size when the client sends none (default: 20).
	DefaultListLimit int `mapstructure:"default_list_limit"`
	// MaxListLimit caps the client supplied page size (default: 100).
	MaxListLimit int `mapstructure:"max_list_limit"`
	// SummaryLength is the rune length of listing summaries (default: 120).
	SummaryLength int `mapstructure:"summary_length"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("REPORTSVC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/research-report-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// These fields are tagged with mapstructure:"-" to prevent loading from config files.
func loadSecrets(cfg *Config) {
	cfg.LLM.APIKey = firstEnv("REPORTSVC_LLM_API_KEY", "OPENAI_API_KEY")
	cfg.Search.Tavily.APIKey = firstEnv("REPORTSVC_SEARCH_TAVILY_API_KEY", "TAVILY_API_KEY")
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "reportsvc")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "research_report_service")
	// Use REPORTSVC_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "")
	v.SetDefault("database.migration_auto_run", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// LLM defaults
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 0)
	v.SetDefault("llm.timeout", "120s")
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.retry_delay", "2s")

	// Search defaults
	v.SetDefault("search.tavily.base_url", "https://api.tavily.com")
	v.SetDefault("search.tavily.max_results", 6)
	v.SetDefault("search.tavily.depth", "basic")
	v.SetDefault("search.tavily.timeout", "30s")
	v.SetDefault("search.tavily.rate_limit", 2.0)
	v.SetDefault("search.tavily.burst", 4)
	v.SetDefault("search.tavily.max_retries", 2)
	v.SetDefault("search.fallback_enabled", true)
	v.SetDefault("search.fallback_max_results", 6)

	// Workflow defaults
	v.SetDefault("workflow.default_max_revisions", 2)
	v.SetDefault("workflow.max_research_rounds", 2)
	v.SetDefault("workflow.step_timeout", "5m")
	v.SetDefault("workflow.section_concurrency", 2)
	v.SetDefault("workflow.sources_in_prompt", 8)
	v.SetDefault("workflow.lease_mode", LeaseModeAdvisory)

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "events.research_report_service.threads")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "10ms")
	v.SetDefault("kafka.decisions_topic", "")
	v.SetDefault("kafka.group_id", "research-report-service")

	// Archive defaults
	v.SetDefault("archive.default_list_limit", 20)
	v.SetDefault("archive.max_list_limit", 100)
	v.SetDefault("archive.summary_length", 120)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch strings.ToLower(c.LLM.Provider) {
	case "openai", "langchain":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("LLM provider %q requires REPORTSVC_LLM_API_KEY or OPENAI_API_KEY to be set", c.LLM.Provider)
		}
	default:
		return fmt.Errorf("unsupported LLM provider: %q", c.LLM.Provider)
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("LLM max_retries must not be negative")
	}

	if c.Search.Tavily.MaxResults <= 0 {
		return fmt.Errorf("search max_results must be positive")
	}
	if c.Search.Tavily.Depth != "basic" && c.Search.Tavily.Depth != "advanced" {
		return fmt.Errorf("invalid search depth: %s", c.Search.Tavily.Depth)
	}
	if c.Search.Tavily.RateLimit <= 0 {
		return fmt.Errorf("search rate_limit must be positive")
	}

	if c.Workflow.DefaultMaxRevisions <= 0 {
		return fmt.Errorf("workflow default_max_revisions must be positive")
	}
	if c.Workflow.MaxResearchRounds < 0 {
		return fmt.Errorf("workflow max_research_rounds must not be negative")
	}
	if c.Workflow.SectionConcurrency <= 0 {
		return fmt.Errorf("workflow section_concurrency must be positive")
	}
	if c.Workflow.LeaseMode != LeaseModeAdvisory && c.Workflow.LeaseMode != LeaseModeLocal {
		return fmt.Errorf("invalid workflow lease_mode: %s", c.Workflow.LeaseMode)
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required when kafka is enabled")
	}

	if c.Archive.DefaultListLimit <= 0 || c.Archive.MaxListLimit < c.Archive.DefaultListLimit {
		return fmt.Errorf("archive list limits must satisfy 0 < default_list_limit <= max_list_limit")
	}

	return nil
}
