// pkg/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix    = "ENSEMBLE_"
	configEnvVar = "CONFIG_PATH"
)

// Loader loads configuration from layered sources.
type Loader struct {
	k           *koanf.Koanf
	configPaths []string
	envPrefix   string
}

// NewLoader builds a configuration loader with the given options.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		k: koanf.New("."),
		configPaths: []string{
			"config.yaml",
			"config/config.yaml",
			"/etc/ensemble/config.yaml",
		},
		envPrefix: envPrefix,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// LoaderOption customizes a Loader.
type LoaderOption func(*Loader)

// WithConfigPaths overrides the file search path.
func WithConfigPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.configPaths = paths
	}
}

// WithEnvPrefix overrides the environment variable prefix.
func WithEnvPrefix(prefix string) LoaderOption {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// Load resolves configuration with precedence:
// 1. defaults (lowest)
// 2. config file (yaml)
// 3. environment variables (highest)
func (l *Loader) Load() (*Config, error) {
	if err := l.loadDefaults(); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := l.loadConfigFile(); err != nil {
		// A config file is optional; fall through to env + defaults.
		fmt.Printf("Warning: %v\n", err)
	}

	if err := l.loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (l *Loader) loadDefaults() error {
	defaults := map[string]any{
		// App
		"app.name":        "ensemble-controller",
		"app.version":     "1.0.0",
		"app.environment": "development",
		"app.debug":       false,

		// GRPC (C8 control plane)
		"grpc.port":                               50051,
		"grpc.max_recv_msg_size":                  16 * 1024 * 1024,
		"grpc.max_send_msg_size":                  16 * 1024 * 1024,
		"grpc.max_concurrent_conn":                1000,
		"grpc.keepalive.max_connection_idle":      15 * time.Minute,
		"grpc.keepalive.max_connection_age":       30 * time.Minute,
		"grpc.keepalive.max_connection_age_grace": 5 * time.Minute,
		"grpc.keepalive.time":                     5 * time.Minute,
		"grpc.keepalive.timeout":                  20 * time.Second,
		"grpc.tls.enabled":                        false,

		// Log
		"log.level":                "info",
		"log.format":               "json",
		"log.output":               "stdout",
		"log.max_size":             100,
		"log.max_backups":          3,
		"log.max_age":              7,
		"log.compress":             true,
		"log.metrics_log_interval": 0,

		// Metrics
		"metrics.enabled":   true,
		"metrics.port":      9090,
		"metrics.path":      "/metrics",
		"metrics.namespace": "ensemble",
		"metrics.subsystem": "controller",

		// Tracing
		"tracing.enabled":      false,
		"tracing.endpoint":     "localhost:4317",
		"tracing.service_name": "ensemble-controller",
		"tracing.sample_rate":  0.1,

		// Elasticity endpoint (C7 dial target)
		"elasticity.host":           "localhost",
		"elasticity.port":           50052,
		"elasticity.timeout":        30 * time.Second,
		"elasticity.max_retries":    3,
		"elasticity.retry_backoff":  100 * time.Millisecond,
		"elasticity.load_balancing": "round_robin",

		// Database (durable audit trail only)
		"database.driver":             "postgres",
		"database.host":               "localhost",
		"database.port":               5432,
		"database.database":           "ensemble",
		"database.username":           "postgres",
		"database.password":           "",
		"database.ssl_mode":           "disable",
		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  5 * time.Minute,
		"database.conn_max_idle_time": 5 * time.Minute,
		"database.migrations_path":    "migrations",
		"database.auto_migrate":       true,

		// Cache (ensemble-server compute-pool reads)
		"cache.enabled":     false,
		"cache.driver":      "memory",
		"cache.host":        "localhost",
		"cache.port":        6379,
		"cache.db":          0,
		"cache.default_ttl": 5 * time.Minute,
		"cache.max_entries": 10000,

		// Rate limit
		"rate_limit.enabled":          true,
		"rate_limit.requests":         100,
		"rate_limit.window":           time.Minute,
		"rate_limit.strategy":         "sliding_window",
		"rate_limit.backend":          "memory",
		"rate_limit.burst_size":       10,
		"rate_limit.cleanup_interval": 5 * time.Minute,

		// Audit
		"audit.enabled":      true,
		"audit.backend":      "stdout",
		"audit.buffer_size":  1000,
		"audit.flush_period": 5 * time.Second,

		// Retry (C7 client-side)
		"retry.max_attempts":       3,
		"retry.initial_backoff":    100 * time.Millisecond,
		"retry.max_backoff":        10 * time.Second,
		"retry.backoff_multiplier": 2.0,

		// Credential
		"credential.enabled":    false,
		"credential.secret_key": "",
		"credential.issuer":     "ensemble",
		"credential.ttl":        5 * time.Minute,
	}

	return l.k.Load(confmap.Provider(defaults, "."), nil)
}

func (l *Loader) loadConfigFile() error {
	if configPath := os.Getenv(configEnvVar); configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return l.k.Load(file.Provider(configPath), yaml.Parser())
		}
	}

	for _, path := range l.configPaths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			continue
		}

		if _, err := os.Stat(absPath); err == nil {
			return l.k.Load(file.Provider(absPath), yaml.Parser())
		}
	}

	return fmt.Errorf("config file not found in paths: %v", l.configPaths)
}

func (l *Loader) loadEnv() error {
	return l.k.Load(env.Provider(l.envPrefix, ".", func(s string) string {
		// ENSEMBLE_GRPC_PORT -> grpc.port
		return strings.ReplaceAll(
			strings.ToLower(
				strings.TrimPrefix(s, l.envPrefix),
			),
			"_", ".",
		)
	}), nil)
}

// MustLoad loads configuration or panics.
func MustLoad(opts ...LoaderOption) *Config {
	cfg, err := NewLoader(opts...).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Load loads configuration with default sources.
func Load() (*Config, error) {
	return NewLoader().Load()
}

// LoadWithServiceDefaults loads configuration, substituting a
// service-specific name and gRPC port when neither was overridden.
func LoadWithServiceDefaults(serviceName string, defaultPort int) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if cfg.GRPC.Port == 50051 && defaultPort != 0 {
		cfg.GRPC.Port = defaultPort
	}

	if cfg.App.Name == "ensemble-controller" {
		cfg.App.Name = serviceName
	}

	return cfg, nil
}
