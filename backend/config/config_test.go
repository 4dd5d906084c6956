package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default configuration",
			envVars: map[string]string{
				"ENVIRONMENT":      "development",
				"AUTH_HMAC_SECRET": "dev-secret",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "development", cfg.Environment)
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.False(t, cfg.Server.TLS.Enabled)
				assert.Equal(t, "postgres", cfg.Database.Driver)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
				assert.Equal(t, 7*24*time.Hour, cfg.Session.TTL)
				assert.Equal(t, time.Duration(0), cfg.Session.InactivityTimeout)
				assert.Equal(t, "sid", cfg.Session.CookieName)
				assert.True(t, cfg.Session.Secure)
				assert.Equal(t, 1000, cfg.Audit.BufferSize)
				assert.Equal(t, 4, cfg.Audit.WorkerCount)
				assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.AllowedOrigins)
				assert.Empty(t, cfg.Server.TrustedProxies)
				assert.Equal(t, 10*time.Minute, cfg.RateLimit.PruneInterval)
			},
		},
		{
			name: "redis backend with pgx driver",
			envVars: map[string]string{
				"STORAGE_BACKEND":  "Redis",
				"REDIS_ADDR":       "cache:6380",
				"REDIS_DB":         "3",
				"DB_DRIVER":        "pgx",
				"DATABASE_URL":     "postgres://u:p@db:5432/signals",
				"AUTH_HMAC_SECRET": "dev-secret",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, BackendRedis, cfg.Storage.Backend)
				assert.Equal(t, "cache:6380", cfg.Redis.Addr)
				assert.Equal(t, 3, cfg.Redis.DB)
				assert.Equal(t, "pgx", cfg.Database.Driver)
				assert.Equal(t, "host=db port=5432 database=signals", cfg.Database.LogString())
			},
		},
		{
			name: "session and limiter overrides",
			envVars: map[string]string{
				"STORAGE_BACKEND":            "memory",
				"AUTH_JWKS_URL":              "https://idp.example.com/.well-known/jwks.json",
				"SESSION_TTL":                "24h",
				"SESSION_INACTIVITY_TIMEOUT": "30m",
				"RATE_LIMIT_PER_IP_RATE":     "5.5",
				"RATE_LIMIT_PER_IP_BURST":    "11",
				"CORS_ALLOWED_ORIGINS":       "https://a.example.com, https://b.example.com",
				"SERVER_TRUSTED_PROXIES":     "10.0.0.0/8, 192.0.2.10",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.UsesPostgres())
				assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
				assert.Equal(t, 30*time.Minute, cfg.Session.InactivityTimeout)
				assert.Equal(t, 5.5, cfg.RateLimit.PerIPRate)
				assert.Equal(t, 11, cfg.RateLimit.PerIPBurst)
				assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.AllowedOrigins)
				assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.10"}, cfg.Server.TrustedProxies)
			},
		},
		{
			name: "PORT env var takes precedence over SERVER_PORT",
			envVars: map[string]string{
				"PORT":             "9443",
				"SERVER_PORT":      "9000",
				"AUTH_HMAC_SECRET": "dev-secret",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9443, cfg.Server.Port)
			},
		},
		{
			name: "unparsable prune interval falls back to default",
			envVars: map[string]string{
				"AUTH_HMAC_SECRET":          "dev-secret",
				"RATE_LIMIT_PRUNE_INTERVAL": "soon",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 10*time.Minute, cfg.RateLimit.PruneInterval)
			},
		},
		{
			name: "zero prune interval",
			envVars: map[string]string{
				"AUTH_HMAC_SECRET":          "dev-secret",
				"RATE_LIMIT_PRUNE_INTERVAL": "0s",
			},
			wantErr: true,
		},
		{
			name:    "missing auth configuration",
			envVars: map[string]string{"ENVIRONMENT": "development"},
			wantErr: true,
		},
		{
			name: "unknown storage backend",
			envVars: map[string]string{
				"STORAGE_BACKEND":  "etcd",
				"AUTH_HMAC_SECRET": "dev-secret",
			},
			wantErr: true,
		},
		{
			name: "short secret in production",
			envVars: map[string]string{
				"ENVIRONMENT":      "production",
				"AUTH_HMAC_SECRET": "short",
			},
			wantErr: true,
		},
		{
			name: "production with strong secret",
			envVars: map[string]string{
				"ENVIRONMENT":      "production",
				"AUTH_HMAC_SECRET": testSecret,
			},
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.IsProduction())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear environment
			os.Clearenv()

			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			cfg, err := New(context.Background())

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func validConfig() *Config {
	return &Config{
		Environment: "development",
		Database: DatabaseConfig{
			Driver:   "postgres",
			Host:     "localhost",
			User:     "user",
			Database: "db",
		},
		Storage:       StorageConfig{Backend: BackendPostgres},
		Redis:         RedisConfig{Addr: "localhost:6379"},
		Session:       SessionConfig{TTL: time.Hour, SweepInterval: time.Minute, CookieName: "sid"},
		RateLimit:     RateLimitConfig{PruneInterval: time.Minute},
		Audit:         AuditConfig{BufferSize: 10, WorkerCount: 1},
		Auth:          AuthConfig{HMACSecret: "secret"},
		Observability: ObservabilityConfig{LogLevel: "info"},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid development config", func(c *Config) {}, ""},
		{"missing database host", func(c *Config) { c.Database.Host = "" }, "database configuration required"},
		{"missing database user", func(c *Config) { c.Database.User = "" }, "database user is required"},
		{"memory backend ignores database", func(c *Config) {
			c.Storage.Backend = BackendMemory
			c.Database = DatabaseConfig{}
		}, ""},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "unknown database driver"},
		{"redis without address", func(c *Config) {
			c.Storage.Backend = BackendRedis
			c.Redis.Addr = ""
		}, "redis address is required"},
		{"both auth modes", func(c *Config) { c.Auth.JWKSURL = "https://idp/jwks" }, "only one"},
		{"zero session ttl", func(c *Config) { c.Session.TTL = 0 }, "session TTL"},
		{"zero audit workers", func(c *Config) { c.Audit.WorkerCount = 0 }, "audit buffer size"},
		{"zero prune interval", func(c *Config) { c.RateLimit.PruneInterval = 0 }, "prune interval"},
		{"negative prune interval", func(c *Config) { c.RateLimit.PruneInterval = -time.Second }, "prune interval"},
		{"trusted proxies", func(c *Config) { c.Server.TrustedProxies = []string{"10.0.0.0/8", "192.0.2.10", "::1"} }, ""},
		{"malformed trusted proxy", func(c *Config) { c.Server.TrustedProxies = []string{"10.0.0.0/33"} }, "invalid trusted proxy"},
		{"hostname as trusted proxy", func(c *Config) { c.Server.TrustedProxies = []string{"lb.internal"} }, "invalid trusted proxy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		want        bool
	}{
		{"production", "production", true},
		{"prod", "prod", true},
		{"development", "development", false},
		{"staging", "staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment}
			assert.Equal(t, tt.want, cfg.IsProduction())
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "testuser",
		Password: "testpass",
		Database: "testdb",
		SSLMode:  "disable",
	}

	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"
	assert.Equal(t, expected, cfg.DSN())
	assert.NotContains(t, cfg.LogString(), "testpass")

	cfg.ConnectionString = "postgres://u:p@h/db"
	assert.Equal(t, "postgres://u:p@h/db", cfg.DSN())
}

func TestServerConfig_TrustedProxyPrefixes(t *testing.T) {
	c := ServerConfig{TrustedProxies: []string{"10.1.2.3/8", "192.0.2.10", "::ffff:198.51.100.1", "2001:db8::/32"}}
	prefixes, err := c.TrustedProxyPrefixes()
	require.NoError(t, err)

	want := []string{"10.0.0.0/8", "192.0.2.10/32", "198.51.100.1/32", "2001:db8::/32"}
	got := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		got = append(got, p.String())
	}
	assert.Equal(t, want, got)
}

func TestServerConfig_Address(t *testing.T) {
	cfg := ServerConfig{Host: "0.0.0.0", Port: 8080}
	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
}

func TestGetEnvHelpers(t *testing.T) {
	os.Clearenv()
	os.Setenv("TEST_INT", "42")
	os.Setenv("TEST_BAD_INT", "nope")
	os.Setenv("TEST_BOOL", "false")
	os.Setenv("TEST_DURATION", "90s")
	os.Setenv("TEST_FLOAT", "0.25")

	assert.Equal(t, 42, getEnvAsInt("TEST_INT", 10))
	assert.Equal(t, 10, getEnvAsInt("TEST_BAD_INT", 10))
	assert.Equal(t, 10, getEnvAsInt("TEST_MISSING", 10))
	assert.False(t, getEnvAsBool("TEST_BOOL", true))
	assert.Equal(t, 90*time.Second, getEnvAsDuration("TEST_DURATION", time.Second))
	assert.Equal(t, time.Second, getEnvAsDuration("TEST_MISSING", time.Second))
	assert.Equal(t, 0.25, getEnvAsFloat("TEST_FLOAT", 1))
	assert.Equal(t, []string{"x"}, getEnvAsList("TEST_MISSING", []string{"x"}))
}
