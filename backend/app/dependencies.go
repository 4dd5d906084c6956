package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/upb/signal-admin/backend/config"
	"github.com/upb/signal-admin/backend/handlers"
	"github.com/upb/signal-admin/backend/identity"
	"github.com/upb/signal-admin/backend/internal/observability"
	"github.com/upb/signal-admin/backend/middleware"
	"github.com/upb/signal-admin/backend/repositories"
	"github.com/upb/signal-admin/backend/repositories/memory"
	"github.com/upb/signal-admin/backend/repositories/postgres"
	redisstore "github.com/upb/signal-admin/backend/repositories/redis"
	"github.com/upb/signal-admin/backend/services/audit"
	"github.com/upb/signal-admin/backend/services/gate"
	"github.com/upb/signal-admin/backend/services/ratelimit"
	"github.com/upb/signal-admin/backend/services/session"
	"github.com/upb/signal-admin/backend/services/signals"
	"github.com/upb/signal-admin/backend/services/tags"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Metrics
	DB      *postgres.DB
	Redis   *goredis.Client

	// Repositories
	Repos *repositories.Repositories

	// Services
	Limiter  *ratelimit.Limiter
	Sessions *session.Manager
	Audit    *audit.AuditService
	Gate     *gate.Gate
	Table    gate.Table

	// HTTP
	AuthMiddleware    *middleware.AuthMiddleware
	SessionMiddleware *middleware.SessionMiddleware
	FloodGuard        *middleware.FloodGuard
	RealIP            *middleware.RealIP

	HealthHandler  *handlers.HealthHandler
	SessionHandler *handlers.SessionHandler
	SignalHandler  *handlers.SignalHandler
	TagHandler     *handlers.TagHandler
	UserHandler    *handlers.UserHandler
	AuditHandler   *handlers.AuditHandler

	stopWorkers context.CancelFunc
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
		Table:  gate.DefaultTable(),
	}
	if cfg.Observability.MetricsEnabled {
		deps.Metrics = observability.NewMetrics()
	}

	if err := deps.initStorage(ctx); err != nil {
		deps.closeStores()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := deps.initServices(); err != nil {
		deps.closeStores()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := deps.initHTTP(); err != nil {
		_ = deps.Audit.Stop(cfg.Audit.WriteTimeout)
		deps.closeStores()
		return nil, fmt.Errorf("failed to initialize http layer: %w", err)
	}

	logger.Info("all dependencies initialized successfully",
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("metrics_enabled", deps.Metrics != nil))
	return deps, nil
}

// initStorage opens the configured backends. Memory keeps everything in
// process; postgres stores everything in the database; redis moves counters
// and sessions to Redis and keeps the rest in Postgres.
func (d *Dependencies) initStorage(ctx context.Context) error {
	if d.Config.Storage.Backend == config.BackendMemory {
		d.Logger.Warn("using in-memory storage, state is lost on restart")
		d.Repos = memory.NewRepositories()
		return nil
	}

	factory, err := postgres.NewRepositoryFactory(d.Config.Database, d.Logger)
	if err != nil {
		return err
	}
	d.DB = factory.GetDB()

	if err := factory.InitSchema(ctx); err != nil {
		return err
	}
	d.Repos = factory.NewRepositories()

	if d.Config.Storage.Backend == config.BackendRedis {
		client, err := redisstore.NewClient(ctx, d.Config.Redis, d.Logger)
		if err != nil {
			return err
		}
		d.Redis = client
		d.Repos.Counters = redisstore.NewCounterStore(client)
		d.Repos.Sessions = redisstore.NewSessionRepository(client)
	}

	d.Logger.Info("repositories initialized")
	return nil
}

func (d *Dependencies) initServices() error {
	cfg := d.Config

	d.Audit = audit.NewAuditService(d.Repos.Audit, d.Logger, d.Metrics, audit.Config{
		BufferSize:   cfg.Audit.BufferSize,
		WorkerCount:  cfg.Audit.WorkerCount,
		WriteTimeout: cfg.Audit.WriteTimeout,
	})
	if err := d.Audit.Start(); err != nil {
		return err
	}

	d.Limiter = ratelimit.NewLimiter(d.Repos.Counters, nil, d.Logger, d.Metrics)
	d.Sessions = session.NewManager(d.Repos.Sessions, session.Config{
		TTL:               cfg.Session.TTL,
		InactivityTimeout: cfg.Session.InactivityTimeout,
	}, nil, d.Logger, d.Metrics)

	g, err := gate.New(d.Table, d.Limiter, d.Audit, d.Logger, d.Metrics)
	if err != nil {
		_ = d.Audit.Stop(cfg.Audit.WriteTimeout)
		return err
	}
	d.Gate = g
	return nil
}

func (d *Dependencies) initHTTP() error {
	cfg := d.Config

	validator, err := identity.NewValidator(identity.Config{
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		HMACSecret: cfg.Auth.HMACSecret,
		JWKSURL:    cfg.Auth.JWKSURL,
		CacheTTL:   cfg.Auth.JWKSCacheTTL,
		Leeway:     30 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to create token validator: %w", err)
	}

	proxies, err := cfg.Server.TrustedProxyPrefixes()
	if err != nil {
		return err
	}
	d.RealIP = middleware.NewRealIP(proxies)

	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.Logger)
	d.SessionMiddleware = middleware.NewSessionMiddleware(d.Sessions, cfg.Session.CookieName, d.Logger)
	if cfg.RateLimit.PerIPRate > 0 {
		d.FloodGuard = middleware.NewFloodGuard(cfg.RateLimit.PerIPRate, cfg.RateLimit.PerIPBurst, d.Logger)
	}

	var db *sql.DB
	if d.DB != nil {
		db = d.DB.DB
	}
	d.HealthHandler = handlers.NewHealthHandler(db, d.Redis, d.Audit, d.Logger)
	d.SessionHandler = handlers.NewSessionHandler(d.Gate, d.Sessions, d.Audit, handlers.CookieConfig{
		Name:   cfg.Session.CookieName,
		Secure: cfg.Session.Secure,
	}, d.Logger)
	d.SignalHandler = handlers.NewSignalHandler(d.Gate,
		signals.NewSignalService(d.Repos.Signals, d.Repos.Tags, d.Repos.Transactions, d.Logger), d.Logger)
	d.TagHandler = handlers.NewTagHandler(d.Gate, tags.NewTagService(d.Repos.Tags, d.Logger), d.Logger)
	d.UserHandler = handlers.NewUserHandler(d.Gate, d.Sessions, d.Logger)
	d.AuditHandler = handlers.NewAuditHandler(d.Gate, d.Audit, d.Logger)
	return nil
}

// StartWorkers launches the session sweep, the counter pruner and the flood
// guard pruner. They run until Close is called or ctx is done.
func (d *Dependencies) StartWorkers(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	d.stopWorkers = cancel

	go d.Sessions.StartCleanupWorker(ctx, d.Config.Session.SweepInterval)
	go d.Limiter.StartCleanupWorker(ctx, d.Config.RateLimit.PruneInterval, d.Table.LongestWindow())
	if d.FloodGuard != nil {
		d.FloodGuard.StartPruner(ctx)
	}
}

// Close stops the workers, drains the audit queue and closes the stores
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	if d.stopWorkers != nil {
		d.stopWorkers()
	}

	var errs []error

	if d.Audit != nil {
		timeout := d.Config.Audit.WriteTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.Audit.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to drain audit queue: %w", err))
		}
	}

	errs = append(errs, d.closeStores()...)

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	return errors.Join(errs...)
}

func (d *Dependencies) closeStores() []error {
	var errs []error
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}
	return errs
}
