package config

import (
	"context"
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends for counters and sessions
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Storage       StorageConfig
	Session       SessionConfig
	RateLimit     RateLimitConfig
	Audit         AuditConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	TrustedProxies  []string // CIDRs or addresses whose X-Real-IP/X-Forwarded-For are honored
	TLS             struct {
		Enabled  bool
		CertFile string
		KeyFile  string
	}
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	Driver           string // postgres (lib/pq) or pgx
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// StorageConfig selects where rate limit counters and sessions live.
// Signals, tags and audit logs use Postgres unless Backend is memory.
type StorageConfig struct {
	Backend string
}

// SessionConfig holds session lifetime settings
type SessionConfig struct {
	TTL               time.Duration
	InactivityTimeout time.Duration // 0 disables auto logout on validation
	SweepInterval     time.Duration
	CookieName        string
	Secure            bool
}

// RateLimitConfig holds limiter maintenance and the per-IP flood guard
type RateLimitConfig struct {
	PruneInterval time.Duration
	PerIPRate     float64 // requests per second, 0 disables the guard
	PerIPBurst    int
}

// AuditConfig holds audit pipeline settings
type AuditConfig struct {
	BufferSize   int
	WorkerCount  int
	WriteTimeout time.Duration
}

// AuthConfig holds bearer token verification settings. Exactly one of
// HMACSecret or JWKSURL must be set.
type AuthConfig struct {
	Issuer       string
	Audience     string
	HMACSecret   string
	JWKSURL      string
	JWKSCacheTTL time.Duration
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists (backend/.env when run from project root, .env when run from backend/)
	_ = godotenv.Load("backend/.env")
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
			TrustedProxies:  getEnvAsList("SERVER_TRUSTED_PROXIES", nil),
			TLS: struct {
				Enabled  bool
				CertFile string
				KeyFile  string
			}{
				Enabled:  getEnvAsBool("TLS_ENABLED", false),
				CertFile: getEnv("TLS_CERT_FILE", "certs/cert.pem"),
				KeyFile:  getEnv("TLS_KEY_FILE", "certs/key.pem"),
			},
		},
		Database: loadDatabaseConfig(),
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", 2*time.Second),
			ReadTimeout:  getEnvAsDuration("REDIS_READ_TIMEOUT", time.Second),
			WriteTimeout: getEnvAsDuration("REDIS_WRITE_TIMEOUT", time.Second),
		},
		Storage: StorageConfig{
			Backend: strings.ToLower(getEnv("STORAGE_BACKEND", BackendPostgres)),
		},
		Session: SessionConfig{
			TTL:               getEnvAsDuration("SESSION_TTL", 7*24*time.Hour),
			InactivityTimeout: getEnvAsDuration("SESSION_INACTIVITY_TIMEOUT", 0),
			SweepInterval:     getEnvAsDuration("SESSION_SWEEP_INTERVAL", time.Hour),
			CookieName:        getEnv("SESSION_COOKIE_NAME", "sid"),
			Secure:            getEnvAsBool("SESSION_COOKIE_SECURE", true),
		},
		RateLimit: RateLimitConfig{
			PruneInterval: getEnvAsDuration("RATE_LIMIT_PRUNE_INTERVAL", 10*time.Minute),
			PerIPRate:     getEnvAsFloat("RATE_LIMIT_PER_IP_RATE", 20),
			PerIPBurst:    getEnvAsInt("RATE_LIMIT_PER_IP_BURST", 40),
		},
		Audit: AuditConfig{
			BufferSize:   getEnvAsInt("AUDIT_BUFFER_SIZE", 1000),
			WorkerCount:  getEnvAsInt("AUDIT_WORKER_COUNT", 4),
			WriteTimeout: getEnvAsDuration("AUDIT_WRITE_TIMEOUT", 5*time.Second),
		},
		Auth: AuthConfig{
			Issuer:       getEnv("AUTH_ISSUER", ""),
			Audience:     getEnv("AUTH_AUDIENCE", ""),
			HMACSecret:   getEnv("AUTH_HMAC_SECRET", ""),
			JWKSURL:      getEnv("AUTH_JWKS_URL", ""),
			JWKSCacheTTL: getEnvAsDuration("AUTH_JWKS_CACHE_TTL", time.Hour),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendRedis, BackendPostgres:
	default:
		return fmt.Errorf("unknown storage backend %q: use memory, redis or postgres", c.Storage.Backend)
	}

	if c.UsesPostgres() {
		if c.Database.ConnectionString == "" && c.Database.Host == "" {
			return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
		}
		if c.Database.ConnectionString == "" {
			if c.Database.User == "" {
				return fmt.Errorf("database user is required")
			}
			if c.Database.Database == "" {
				return fmt.Errorf("database name is required")
			}
		}
		if c.Database.Driver != "postgres" && c.Database.Driver != "pgx" {
			return fmt.Errorf("unknown database driver %q: use postgres or pgx", c.Database.Driver)
		}
	}

	if _, err := c.Server.TrustedProxyPrefixes(); err != nil {
		return err
	}

	if c.Storage.Backend == BackendRedis && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required for the redis storage backend")
	}

	// Auth validation
	if c.Auth.HMACSecret == "" && c.Auth.JWKSURL == "" {
		return fmt.Errorf("auth requires AUTH_HMAC_SECRET or AUTH_JWKS_URL")
	}
	if c.Auth.HMACSecret != "" && c.Auth.JWKSURL != "" {
		return fmt.Errorf("set only one of AUTH_HMAC_SECRET or AUTH_JWKS_URL")
	}
	if c.IsProduction() && c.Auth.HMACSecret != "" && len(c.Auth.HMACSecret) < 32 {
		return fmt.Errorf("AUTH_HMAC_SECRET must be at least 32 bytes in production")
	}

	if c.Session.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	if c.Session.SweepInterval <= 0 {
		return fmt.Errorf("session sweep interval must be positive")
	}
	if c.Session.CookieName == "" {
		return fmt.Errorf("session cookie name is required")
	}

	if c.RateLimit.PruneInterval <= 0 {
		return fmt.Errorf("rate limit prune interval must be positive")
	}

	if c.Audit.BufferSize <= 0 || c.Audit.WorkerCount <= 0 {
		return fmt.Errorf("audit buffer size and worker count must be positive")
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// UsesPostgres returns true if any repository is backed by Postgres
func (c *Config) UsesPostgres() bool {
	return c.Storage.Backend != BackendMemory
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	driver := strings.ToLower(getEnv("DB_DRIVER", "postgres"))
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			Driver:           driver,
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Driver:          driver,
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "dev"),
		Password:        getEnv("DB_PASSWORD", "signal_password"),
		Database:        getEnv("DB_NAME", "signal_admin"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address is a single
// host prefix.
func (c *ServerConfig) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
