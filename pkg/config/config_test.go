package config

import (
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: Config{
				App:  AppConfig{Name: "test-service"},
				GRPC: GRPCConfig{Port: 50051},
				Log:  LogConfig{Level: "info"},
			},
			wantErr: false,
		},
		{
			name: "missing app name",
			cfg: Config{
				GRPC: GRPCConfig{Port: 50051},
				Log:  LogConfig{Level: "info"},
			},
			wantErr: true,
		},
		{
			name: "invalid port - zero",
			cfg: Config{
				App:  AppConfig{Name: "test"},
				GRPC: GRPCConfig{Port: 0},
			},
			wantErr: true,
		},
		{
			name: "invalid port - too high",
			cfg: Config{
				App:  AppConfig{Name: "test"},
				GRPC: GRPCConfig{Port: 70000},
			},
			wantErr: true,
		},
		{
			name: "invalid log level",
			cfg: Config{
				App:  AppConfig{Name: "test"},
				GRPC: GRPCConfig{Port: 50051},
				Log:  LogConfig{Level: "invalid"},
			},
			wantErr: true,
		},
		{
			name: "valid debug level",
			cfg: Config{
				App:  AppConfig{Name: "test"},
				GRPC: GRPCConfig{Port: 50051},
				Log:  LogConfig{Level: "debug"},
			},
			wantErr: false,
		},
		{
			name: "invalid audit backend",
			cfg: Config{
				App:   AppConfig{Name: "test"},
				GRPC:  GRPCConfig{Port: 50051},
				Log:   LogConfig{Level: "info"},
				Audit: AuditConfig{Backend: "carrier-pigeon"},
			},
			wantErr: true,
		},
		{
			name: "valid audit config",
			cfg: Config{
				App:   AppConfig{Name: "test"},
				GRPC:  GRPCConfig{Port: 50051},
				Log:   LogConfig{Level: "info"},
				Audit: AuditConfig{Backend: "postgres", Enabled: true},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"development", true},
		{"dev", true},
		{"production", false},
		{"staging", false},
	}

	for _, tt := range tests {
		cfg := &Config{App: AppConfig{Environment: tt.env}}
		if got := cfg.IsDevelopment(); got != tt.want {
			t.Errorf("IsDevelopment() for %s = %v, want %v", tt.env, got, tt.want)
		}
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"production", true},
		{"prod", true},
		{"development", false},
		{"staging", false},
	}

	for _, tt := range tests {
		cfg := &Config{App: AppConfig{Environment: tt.env}}
		if got := cfg.IsProduction(); got != tt.want {
			t.Errorf("IsProduction() for %s = %v, want %v", tt.env, got, tt.want)
		}
	}
}

func TestServiceEndpoint_Address(t *testing.T) {
	endpoint := ServiceEndpoint{
		Host: "localhost",
		Port: 50051,
	}

	addr := endpoint.Address()
	if addr != "localhost:50051" {
		t.Errorf("expected 'localhost:50051', got %s", addr)
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name   string
		cfg    DatabaseConfig
		expect string
	}{
		{
			name: "postgres",
			cfg: DatabaseConfig{
				Driver:   "postgres",
				Host:     "localhost",
				Port:     5432,
				Database: "testdb",
				Username: "user",
				Password: "pass",
				SSLMode:  "disable",
			},
			expect: "host=localhost port=5432 user=user password=pass dbname=testdb sslmode=disable",
		},
		{
			name: "mysql",
			cfg: DatabaseConfig{
				Driver:   "mysql",
				Host:     "localhost",
				Port:     3306,
				Database: "testdb",
				Username: "user",
				Password: "pass",
			},
			expect: "user:pass@tcp(localhost:3306)/testdb?parseTime=true",
		},
		{
			name: "sqlite",
			cfg: DatabaseConfig{
				Driver:   "sqlite",
				Database: "/path/to/db.sqlite",
			},
			expect: "/path/to/db.sqlite",
		},
		{
			name: "unknown",
			cfg: DatabaseConfig{
				Driver: "unknown",
			},
			expect: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn := tt.cfg.DSN()
			if dsn != tt.expect {
				t.Errorf("expected DSN %s, got %s", tt.expect, dsn)
			}
		})
	}
}

func TestCacheConfig_Address(t *testing.T) {
	cfg := CacheConfig{
		Host: "redis.local",
		Port: 6379,
	}

	addr := cfg.Address()
	if addr != "redis.local:6379" {
		t.Errorf("expected 'redis.local:6379', got %s", addr)
	}
}

func TestKeepAliveConfig(t *testing.T) {
	cfg := KeepAliveConfig{
		MaxConnectionIdle:     15 * time.Minute,
		MaxConnectionAge:      30 * time.Minute,
		MaxConnectionAgeGrace: 5 * time.Minute,
		Time:                  5 * time.Minute,
		Timeout:               20 * time.Second,
	}

	if cfg.MaxConnectionIdle != 15*time.Minute {
		t.Errorf("unexpected MaxConnectionIdle: %v", cfg.MaxConnectionIdle)
	}
}

func TestCredentialConfig(t *testing.T) {
	cfg := CredentialConfig{
		Enabled:   true,
		SecretKey: "shh",
		Issuer:    "ensemble",
		TTL:       5 * time.Minute,
	}

	if !cfg.Enabled {
		t.Error("expected credential config to be enabled")
	}
	if cfg.TTL != 5*time.Minute {
		t.Errorf("unexpected TTL: %v", cfg.TTL)
	}
}

func TestRetryConfig(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}

	if cfg.MaxAttempts != 5 {
		t.Errorf("expected 5 max attempts, got %d", cfg.MaxAttempts)
	}
}
