// Package signals is the business layer behind the signal endpoints. It
// assumes the caller already passed the security gate.
package signals

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/upb/signal-admin/backend/models"
	"github.com/upb/signal-admin/backend/repositories"
	"github.com/upb/signal-admin/backend/services"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// CreateInput is the payload of a new signal
type CreateInput struct {
	Title     string      `json:"title" validate:"required,min=3,max=200"`
	Body      string      `json:"body" validate:"max=10000"`
	Severity  string      `json:"severity" validate:"required,severity"`
	SourceURL string      `json:"source_url" validate:"omitempty,http_url"`
	TagIDs    []uuid.UUID `json:"tag_ids" validate:"max=20"`
}

// UpdateInput changes the provided fields of a signal
type UpdateInput struct {
	ID       uuid.UUID    `json:"-"`
	Title    *string      `json:"title" validate:"omitempty,min=3,max=200"`
	Body     *string      `json:"body" validate:"omitempty,max=10000"`
	Severity *string      `json:"severity" validate:"omitempty,severity"`
	Status   *string      `json:"status" validate:"omitempty,oneof=open triaged resolved"`
	TagIDs   *[]uuid.UUID `json:"tag_ids" validate:"omitempty,max=20"`
}

// AuditTarget returns the signal id
func (in UpdateInput) AuditTarget() string { return in.ID.String() }

// Ref identifies a single signal
type Ref struct {
	ID uuid.UUID `json:"id"`
}

// AuditTarget returns the signal id
func (r Ref) AuditTarget() string { return r.ID.String() }

// ListInput pages through signals
type ListInput struct {
	Status string `validate:"omitempty,oneof=open triaged resolved"`
	Limit  int    `validate:"min=0,max=200"`
	Offset int    `validate:"min=0"`
}

// SignalService handles signal CRUD
type SignalService struct {
	signals repositories.SignalRepository
	tags    repositories.TagRepository
	txMgr   repositories.TransactionManager
	logger  *zap.Logger
}

// NewSignalService creates a new SignalService
func NewSignalService(signals repositories.SignalRepository, tags repositories.TagRepository, txMgr repositories.TransactionManager, logger *zap.Logger) *SignalService {
	return &SignalService{
		signals: signals,
		tags:    tags,
		txMgr:   txMgr,
		logger:  logger,
	}
}

// Create stores a new open signal and attaches its tags atomically
func (s *SignalService) Create(ctx context.Context, actorID string, in CreateInput) (*models.Signal, error) {
	signal := models.NewSignal(in.Title, in.Body, models.SignalSeverity(in.Severity), in.SourceURL, actorID)

	return services.InTransactionResult(ctx, s.txMgr, func(ctx context.Context) (*models.Signal, error) {
		if err := s.requireTags(ctx, in.TagIDs); err != nil {
			return nil, err
		}
		if err := s.signals.Create(ctx, signal); err != nil {
			return nil, storageError("create signal", err)
		}
		if len(in.TagIDs) > 0 {
			if err := s.signals.SetTags(ctx, signal.ID, in.TagIDs); err != nil {
				return nil, storageError("tag signal", err)
			}
			signal.TagIDs = in.TagIDs
		}

		s.logger.Info("signal created",
			zap.String("signal_id", signal.ID.String()),
			zap.String("actor_id", actorID))
		return signal, nil
	})
}

// Get returns one signal
func (s *SignalService) Get(ctx context.Context, id uuid.UUID) (*models.Signal, error) {
	signal, err := s.signals.GetByID(ctx, id)
	if err != nil {
		return nil, storageError("get signal", err)
	}
	return signal, nil
}

// List returns a page of signals, newest first
func (s *SignalService) List(ctx context.Context, in ListInput) ([]*models.Signal, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	list, err := s.signals.List(ctx, models.SignalStatus(in.Status), limit, in.Offset)
	if err != nil {
		return nil, storageError("list signals", err)
	}
	return list, nil
}

// Update applies the non-nil fields of in
func (s *SignalService) Update(ctx context.Context, in UpdateInput) (*models.Signal, error) {
	return services.InTransactionResult(ctx, s.txMgr, func(ctx context.Context) (*models.Signal, error) {
		signal, err := s.signals.GetByID(ctx, in.ID)
		if err != nil {
			return nil, storageError("get signal", err)
		}

		if in.Title != nil {
			signal.Title = *in.Title
		}
		if in.Body != nil {
			signal.Body = *in.Body
		}
		if in.Severity != nil {
			signal.Severity = models.SignalSeverity(*in.Severity)
		}
		if in.Status != nil {
			signal.Status = models.SignalStatus(*in.Status)
		}
		signal.UpdatedAt = time.Now().UTC()

		if err := s.signals.Update(ctx, signal); err != nil {
			return nil, storageError("update signal", err)
		}

		if in.TagIDs != nil {
			if err := s.requireTags(ctx, *in.TagIDs); err != nil {
				return nil, err
			}
			if err := s.signals.SetTags(ctx, signal.ID, *in.TagIDs); err != nil {
				return nil, storageError("tag signal", err)
			}
			signal.TagIDs = *in.TagIDs
		}
		return signal, nil
	})
}

// Delete removes a signal
func (s *SignalService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.signals.Delete(ctx, id); err != nil {
		return storageError("delete signal", err)
	}
	s.logger.Info("signal deleted", zap.String("signal_id", id.String()))
	return nil
}

func (s *SignalService) requireTags(ctx context.Context, ids []uuid.UUID) error {
	for _, id := range ids {
		if _, err := s.tags.GetByID(ctx, id); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return services.NewValidationFailedError("unknown tag", map[string]string{
					"tag_ids": "tag " + id.String() + " does not exist",
				})
			}
			return services.NewStorageUnavailableError("get tag", err)
		}
	}
	return nil
}

func storageError(op string, err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return services.ErrSignalNotFound
	}
	return services.NewStorageUnavailableError(op, err)
}
