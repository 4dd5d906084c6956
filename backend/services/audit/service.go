// Package audit persists the audit trail. Writes are detached from the
// caller: entries are queued on a buffered channel and written by a worker
// pool, and every failure ends in a log line and a metric, never in an error
// returned to the caller.
package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/upb/signal-admin/backend/internal/observability"
	"github.com/upb/signal-admin/backend/models"
	"github.com/upb/signal-admin/backend/repositories"
	"github.com/upb/signal-admin/backend/services"
	"github.com/upb/signal-admin/backend/utils"
	"go.uber.org/zap"
)

// AuditService handles asynchronous audit logging
type AuditService struct {
	auditRepo    repositories.AuditRepository
	logger       *zap.Logger
	metrics      *observability.Metrics
	eventChan    chan *models.AuditLog
	workerCount  int
	bufferSize   int
	writeTimeout time.Duration
	wg           sync.WaitGroup

	// mu guards started and stopped; senders hold the read lock so Stop
	// never closes the channel under them
	mu      sync.RWMutex
	started bool
	stopped bool

	written atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

// Config holds configuration for the AuditService
type Config struct {
	BufferSize   int           // Size of the event buffer channel
	WorkerCount  int           // Number of concurrent workers
	WriteTimeout time.Duration // Timeout of a single insert
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:   1000,
		WorkerCount:  4,
		WriteTimeout: 5 * time.Second,
	}
}

// NewAuditService creates a new AuditService instance. Zero config values
// fall back to DefaultConfig.
func NewAuditService(auditRepo repositories.AuditRepository, logger *zap.Logger, metrics *observability.Metrics, config Config) *AuditService {
	def := DefaultConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = def.BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = def.WorkerCount
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = def.WriteTimeout
	}

	return &AuditService{
		auditRepo:    auditRepo,
		logger:       logger,
		metrics:      metrics,
		eventChan:    make(chan *models.AuditLog, config.BufferSize),
		workerCount:  config.WorkerCount,
		bufferSize:   config.BufferSize,
		writeTimeout: config.WriteTimeout,
	}
}

// Start starts the background workers. Entries logged before Start stay
// queued until the workers run.
func (s *AuditService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return fmt.Errorf("audit service already stopped")
	}
	if s.started {
		return fmt.Errorf("audit service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop closes the queue and waits for the workers to drain it
func (s *AuditService) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("audit service not started")
	}
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	close(s.eventChan)
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_events", len(s.eventChan)))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// Log records an action without blocking the caller. It never fails: a full
// queue or a stopped service drops the entry with a warning.
func (s *AuditService) Log(actorID string, action models.AuditAction, resourceType, resourceID string, metadata map[string]interface{}) {
	entry := models.NewAuditLog(actorID, action, resourceType).
		WithResource(resourceID).
		WithMetadata(metadata)
	s.enqueue(entry)
}

// LogEntry queues a prepared entry, filling request metadata from ctx when
// the entry has none
func (s *AuditService) LogEntry(ctx context.Context, entry *models.AuditLog) {
	if entry == nil {
		return
	}
	info := utils.RequestInfoFromContext(ctx)
	if entry.RequestID == "" {
		entry.RequestID = info.RequestID
	}
	if entry.IPAddress == "" {
		entry.IPAddress = info.IPAddress
	}
	if entry.UserAgent == "" {
		entry.UserAgent = info.UserAgent
	}
	s.enqueue(entry)
}

func (s *AuditService) enqueue(entry *models.AuditLog) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.ID == "" {
		entry.ID = NewID(entry.CreatedAt)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.stopped {
		s.drop(entry, "audit service stopped, dropping event")
		return
	}

	select {
	case s.eventChan <- entry:
		s.metrics.AuditEvent("queued")
		s.metrics.SetAuditQueueDepth(len(s.eventChan))
	default:
		s.drop(entry, "audit event channel full, dropping event")
	}
}

func (s *AuditService) drop(entry *models.AuditLog, msg string) {
	s.dropped.Add(1)
	s.metrics.AuditEvent("dropped")
	s.logger.Warn(msg,
		zap.String("action", string(entry.Action)),
		zap.String("actor_id", entry.ActorID))
}

// worker processes events from the channel
func (s *AuditService) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for entry := range s.eventChan {
		s.metrics.SetAuditQueueDepth(len(s.eventChan))
		if err := s.processEvent(entry); err != nil {
			s.failed.Add(1)
			s.metrics.AuditEvent("failed")
			s.logger.Error("failed to process audit event",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("action", string(entry.Action)),
				zap.String("actor_id", entry.ActorID))
			continue
		}
		s.written.Add(1)
		s.metrics.AuditEvent("written")
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

// processEvent writes a single entry. A panicking repository is reported as
// an error so the worker keeps running.
func (s *AuditService) processEvent(entry *models.AuditLog) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("audit insert panicked: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	if err := s.auditRepo.Insert(ctx, entry); err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// GetStats returns statistics about the audit service
func (s *AuditService) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.workerCount,
		Started:       s.started,
		Stopped:       s.stopped,
		Written:       s.written.Load(),
		Failed:        s.failed.Load(),
		Dropped:       s.dropped.Load(),
	}
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize    int   `json:"buffer_size"`
	PendingEvents int   `json:"pending_events"`
	WorkerCount   int   `json:"worker_count"`
	Started       bool  `json:"started"`
	Stopped       bool  `json:"stopped"`
	Written       int64 `json:"written"`
	Failed        int64 `json:"failed"`
	Dropped       int64 `json:"dropped"`
}

// Convenience methods for logging common events

// LogSuspiciousActivity records a client change detected at session creation
func (s *AuditService) LogSuspiciousActivity(ctx context.Context, actorID, sessionID string, addressChanged, agentChanged bool, lastSeenAddress string) {
	entry := models.NewAuditLog(actorID, models.AuditActionSuspiciousSeen, "session").
		WithResource(sessionID).
		WithOutcome(models.AuditOutcomeDenied).
		WithMetadata(map[string]interface{}{
			"address_changed":           addressChanged,
			"agent_changed":             agentChanged,
			"last_seen_network_address": lastSeenAddress,
		})
	s.LogEntry(ctx, entry)
}

// List returns stored audit entries matching the filter
func (s *AuditService) List(ctx context.Context, filter repositories.AuditFilter) ([]*models.AuditLog, error) {
	logs, err := s.auditRepo.List(ctx, filter)
	if err != nil {
		return nil, services.NewStorageUnavailableError("list audit logs", err)
	}
	return logs, nil
}

// Get returns one audit entry
func (s *AuditService) Get(ctx context.Context, id string) (*models.AuditLog, error) {
	log, err := s.auditRepo.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, services.ErrAuditNotFound
	}
	if err != nil {
		return nil, services.NewStorageUnavailableError("get audit log", err)
	}
	return log, nil
}
