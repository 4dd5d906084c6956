package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	"github.com/upb/signal-admin/backend/config"
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool using cfg.Driver
// ("postgres" for lib/pq, "pgx" for the pgx stdlib adapter)
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "postgres"
	}

	db, err := sql.Open(driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("driver", driver),
		zap.String("connection", cfg.LogString()))

	return NewDBFromConn(db, logger), nil
}

// NewDBFromConn wraps an already opened pool
func NewDBFromConn(db *sql.DB, logger *zap.Logger) *DB {
	return &DB{
		DB:     db,
		logger: logger,
	}
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Stats returns database connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// InitSchema initializes the database schema
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
		-- Signals table
		CREATE TABLE IF NOT EXISTS signals (
			id UUID PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			body TEXT NOT NULL DEFAULT '',
			severity VARCHAR(20) NOT NULL,
			status VARCHAR(20) NOT NULL,
			source_url TEXT NOT NULL DEFAULT '',
			created_by VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Tags table
		CREATE TABLE IF NOT EXISTS tags (
			id UUID PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			color VARCHAR(20) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_tags_name ON tags(LOWER(name));

		-- Signal to tag join
		CREATE TABLE IF NOT EXISTS signal_tags (
			signal_id UUID NOT NULL REFERENCES signals(id) ON DELETE CASCADE,
			tag_id UUID NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
			PRIMARY KEY (signal_id, tag_id)
		);

		-- Sessions table
		CREATE TABLE IF NOT EXISTS sessions (
			id VARCHAR(64) PRIMARY KEY,
			actor_id VARCHAR(255) NOT NULL,
			fingerprint CHAR(64) NOT NULL,
			network_address VARCHAR(45) NOT NULL DEFAULT '',
			client_agent TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			last_activity_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			revoked BOOLEAN NOT NULL DEFAULT false,
			revoked_at TIMESTAMPTZ,
			revoked_reason VARCHAR(20)
		);

		-- Rate limit counters table
		CREATE TABLE IF NOT EXISTS rate_limit_counters (
			key VARCHAR(255) PRIMARY KEY,
			count INTEGER NOT NULL,
			window_started_at TIMESTAMPTZ NOT NULL
		);

		-- Audit logs table (append-only)
		CREATE TABLE IF NOT EXISTS audit_logs (
			id CHAR(26) PRIMARY KEY,
			actor_id VARCHAR(255) NOT NULL,
			action VARCHAR(100) NOT NULL,
			resource_type VARCHAR(100) NOT NULL,
			resource_id VARCHAR(255),
			outcome VARCHAR(20) NOT NULL,
			metadata JSONB,
			request_id VARCHAR(255),
			ip_address VARCHAR(45),
			user_agent TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Indexes for performance
		CREATE INDEX IF NOT EXISTS idx_signals_status ON signals(status);
		CREATE INDEX IF NOT EXISTS idx_signals_created_at ON signals(created_at);

		CREATE INDEX IF NOT EXISTS idx_sessions_actor_id ON sessions(actor_id);
		CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);

		CREATE INDEX IF NOT EXISTS idx_rate_limit_counters_window ON rate_limit_counters(window_started_at);

		CREATE INDEX IF NOT EXISTS idx_audit_logs_actor_id ON audit_logs(actor_id);
		CREATE INDEX IF NOT EXISTS idx_audit_logs_action ON audit_logs(action);
		CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs(created_at);
		CREATE INDEX IF NOT EXISTS idx_audit_logs_request_id ON audit_logs(request_id);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}
