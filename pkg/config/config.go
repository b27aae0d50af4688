// pkg/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the ensemble controller's own service configuration — not
// to be confused with the ensemble document (jobs/rules/custom) that
// internal/rulestore loads separately from the path given on the CLI.
type Config struct {
	App       AppConfig       `koanf:"app"`
	GRPC      GRPCConfig      `koanf:"grpc"`
	Log       LogConfig       `koanf:"log"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Tracing   TracingConfig   `koanf:"tracing"`
	Elastic   ServiceEndpoint `koanf:"elasticity"`
	Database  DatabaseConfig  `koanf:"database"`
	Cache     CacheConfig     `koanf:"cache"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Audit     AuditConfig     `koanf:"audit"`
	Retry     RetryConfig     `koanf:"retry"`
	Credential CredentialConfig `koanf:"credential"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"` // development, staging, production
	Debug       bool   `koanf:"debug"`
}

// GRPCConfig configures the C8 control-plane gRPC server.
type GRPCConfig struct {
	Port              int             `koanf:"port"`
	MaxRecvMsgSize    int             `koanf:"max_recv_msg_size"` // bytes
	MaxSendMsgSize    int             `koanf:"max_send_msg_size"` // bytes
	MaxConcurrentConn int             `koanf:"max_concurrent_conn"`
	KeepAlive         KeepAliveConfig `koanf:"keepalive"`
	TLS               TLSConfig       `koanf:"tls"`
}

// KeepAliveConfig configures gRPC server keepalive.
type KeepAliveConfig struct {
	MaxConnectionIdle     time.Duration `koanf:"max_connection_idle"`
	MaxConnectionAge      time.Duration `koanf:"max_connection_age"`
	MaxConnectionAgeGrace time.Duration `koanf:"max_connection_age_grace"`
	Time                  time.Duration `koanf:"time"`
	Timeout               time.Duration `koanf:"timeout"`
}

// TLSConfig configures transport security.
type TLSConfig struct {
	Enabled  bool   `koanf:"enabled"`
	CertFile string `koanf:"cert_file"`
	KeyFile  string `koanf:"key_file"`
	CAFile   string `koanf:"ca_file"`
}

// LogConfig configures the slog-based logger.
type LogConfig struct {
	Level      string `koanf:"level"`       // debug, info, warn, error
	Format     string `koanf:"format"`      // json, text
	Output     string `koanf:"output"`      // stdout, stderr, file
	FilePath   string `koanf:"file_path"`   // path to log file
	MaxSize    int    `koanf:"max_size"`    // MB
	MaxBackups int    `koanf:"max_backups"` // rotated file count
	MaxAge     int    `koanf:"max_age"`     // days
	Compress   bool   `koanf:"compress"`

	// MetricsLogInterval, when non-zero, has the controller log
	// metricsregistry.SummariseAll on an independent timer (a feature
	// the distillation dropped — see SPEC_FULL.md's supplemented
	// features).
	MetricsLogInterval time.Duration `koanf:"metrics_log_interval"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Port      int    `koanf:"port"`
	Path      string `koanf:"path"`
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// ServiceEndpoint addresses a gRPC peer — here, the elasticity
// control-plane endpoint C7 dials.
type ServiceEndpoint struct {
	Host          string        `koanf:"host"`
	Port          int           `koanf:"port"`
	Timeout       time.Duration `koanf:"timeout"`
	MaxRetries    int           `koanf:"max_retries"`
	RetryBackoff  time.Duration `koanf:"retry_backoff"`
	TLS           bool          `koanf:"tls"`
	LoadBalancing string        `koanf:"load_balancing"` // round_robin, pick_first
}

// Address returns the dial target "host:port".
func (s ServiceEndpoint) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig configures the Postgres-backed durable audit trail
// (§DOMAIN STACK). Controller state itself (ledger, metrics) is never
// backed by this — spec.md's Non-goals exclude persistence of
// controller state across restarts.
type DatabaseConfig struct {
	Driver          string        `koanf:"driver"` // postgres, mysql, sqlite
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Database        string        `koanf:"database"`
	Username        string        `koanf:"username"`
	Password        string        `koanf:"password"`
	SSLMode         string        `koanf:"ssl_mode"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	MigrationsPath  string        `koanf:"migrations_path"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// DSN returns a driver-appropriate connection string.
func (d DatabaseConfig) DSN() string {
	switch strings.ToLower(d.Driver) {
	case "postgres", "postgresql":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.Username, d.Password, d.Database, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.Username, d.Password, d.Host, d.Port, d.Database,
		)
	case "sqlite":
		return d.Database
	default:
		return ""
	}
}

// CacheConfig configures the compute-pool read cache that
// cmd/ensemble-server puts in front of the Kubernetes orchestrator.
type CacheConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Driver     string        `koanf:"driver"` // redis, memory
	Host       string        `koanf:"host"`
	Port       int           `koanf:"port"`
	Password   string        `koanf:"password"`
	DB         int           `koanf:"db"`
	DefaultTTL time.Duration `koanf:"default_ttl"`
	MaxEntries int           `koanf:"max_entries"` // in-memory cap
}

// Address returns the cache backend's "host:port".
func (c CacheConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RateLimitConfig configures inbound request throttling on C8.
type RateLimitConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Requests        int           `koanf:"requests"`
	Window          time.Duration `koanf:"window"`
	Strategy        string        `koanf:"strategy"`
	Backend         string        `koanf:"backend"`
	BurstSize       int           `koanf:"burst_size"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
	RedisAddr       string        `koanf:"redis_addr"`
}

// AuditConfig configures the audit trail of dispatched actions and
// resize requests. Backend "postgres" requires DatabaseConfig.
type AuditConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Backend         string        `koanf:"backend"` // stdout, file, postgres
	FilePath        string        `koanf:"file_path"`
	BufferSize      int           `koanf:"buffer_size"`
	FlushPeriod     time.Duration `koanf:"flush_period"`
	ExcludeMethods  []string      `koanf:"exclude_methods"`
	IncludeRequest  bool          `koanf:"include_request"`
	IncludeResponse bool          `koanf:"include_response"`
}

// RetryConfig configures C7's client-side retry policy.
type RetryConfig struct {
	MaxAttempts       int           `koanf:"max_attempts"`
	InitialBackoff    time.Duration `koanf:"initial_backoff"`
	MaxBackoff        time.Duration `koanf:"max_backoff"`
	BackoffMultiplier float64       `koanf:"backoff_multiplier"`
}

// CredentialConfig configures the opaque bearer credential C7 presents
// and C8 verifies (spec.md: "authentication ... opaque transport
// credentials").
type CredentialConfig struct {
	Enabled   bool          `koanf:"enabled"`
	SecretKey string        `koanf:"secret_key"`
	Issuer    string        `koanf:"issuer"`
	TTL       time.Duration `koanf:"ttl"`
}

// Validate checks structural invariants of the service config.
func (c *Config) Validate() error {
	var errs []string

	if c.App.Name == "" {
		errs = append(errs, "app.name is required")
	}

	if c.GRPC.Port <= 0 || c.GRPC.Port > 65535 {
		errs = append(errs, fmt.Sprintf("grpc.port must be between 1 and 65535, got %d", c.GRPC.Port))
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log.level must be one of: debug, info, warn, error, got %s", c.Log.Level))
	}

	validAuditBackends := map[string]bool{"": true, "stdout": true, "file": true, "postgres": true, "noop": true}
	if !validAuditBackends[c.Audit.Backend] {
		errs = append(errs, fmt.Sprintf("audit.backend must be one of: stdout, file, postgres, noop, got %s", c.Audit.Backend))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// IsDevelopment reports whether the app is running in a dev environment.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development" || c.App.Environment == "dev"
}

// IsProduction reports whether the app is running in production.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production" || c.App.Environment == "prod"
}
