// Package gate runs every sensitive operation through the same checks, in
// order: authentication, role tier, input validation, rate limit. The
// business function runs only when all of them pass, and its outcome is
// written to the audit trail without ever affecting what the caller gets.
package gate

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/upb/signal-admin/backend/internal/observability"
	"github.com/upb/signal-admin/backend/models"
	"github.com/upb/signal-admin/backend/services"
	"github.com/upb/signal-admin/backend/services/ratelimit"
	"github.com/upb/signal-admin/backend/utils"
	"go.uber.org/zap"
)

// RateLimiter is the fixed-window check used in step four
type RateLimiter interface {
	Check(ctx context.Context, key string, maxCalls int, window time.Duration) (*models.RateLimitDecision, error)
}

// AuditLogger queues audit entries without blocking
type AuditLogger interface {
	LogEntry(ctx context.Context, entry *models.AuditLog)
}

// Validatable inputs get their own checks after struct tag validation
type Validatable interface {
	Validate() error
}

// AuditTarget is implemented by inputs and results that identify the
// resource an operation touched
type AuditTarget interface {
	AuditTarget() string
}

// Unparsed stands in for a request input that could not be decoded. Guard
// reports err at the validation step, after the role check.
func Unparsed(err error) any {
	return unparsed{err: err}
}

type unparsed struct {
	err error
}

func (u unparsed) Validate() error { return u.err }

// ParseInput returns in, or an Unparsed input when err is set
func ParseInput(in any, err error) any {
	if err != nil {
		return Unparsed(err)
	}
	return in
}

// Outcome labels recorded in gate_decisions_total
const (
	OutcomeSuccess            = "success"
	OutcomeFailure            = "failure"
	OutcomeAuthRequired       = "auth_required"
	OutcomeForbidden          = "forbidden"
	OutcomeValidationFailed   = "validation_failed"
	OutcomeRateLimited        = "rate_limited"
	OutcomeStorageUnavailable = "storage_unavailable"
)

var errAborted = errors.New("operation aborted")

// Gate holds the operation table and the collaborators of the pipeline
type Gate struct {
	table   Table
	limiter RateLimiter
	audit   AuditLogger
	logger  *zap.Logger
	metrics *observability.Metrics
}

// New creates a Gate after validating the table
func New(table Table, limiter RateLimiter, audit AuditLogger, logger *zap.Logger, metrics *observability.Metrics) (*Gate, error) {
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("invalid operation table: %w", err)
	}
	return &Gate{
		table:   table,
		limiter: limiter,
		audit:   audit,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Config returns the policy of op
func (g *Gate) Config(op Operation) (OperationConfig, bool) {
	cfg, ok := g.table[op]
	return cfg, ok
}

// Guard runs fn for actor if the operation's checks pass. Failures of the
// checks are returned as typed domain errors and fn is not called. The
// business result and error are returned unchanged.
func Guard[T any](ctx context.Context, g *Gate, op Operation, actor models.ActorIdentity, input any, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	cfg, err := g.admit(ctx, op, actor, input)
	if err != nil {
		return zero, err
	}

	var (
		result   T
		finished bool
	)
	defer func() {
		// fn panicked; the failure is still recorded
		if !finished {
			g.record(ctx, op, cfg, actor, input, nil, errAborted)
		}
	}()

	result, err = fn(ctx)
	finished = true

	g.record(ctx, op, cfg, actor, input, result, err)
	return result, err
}

// admit runs steps one to four and returns the operation's policy when the
// call may proceed
func (g *Gate) admit(ctx context.Context, op Operation, actor models.ActorIdentity, input any) (OperationConfig, error) {
	cfg, ok := g.table[op]
	if !ok {
		g.logger.Error("unknown operation", zap.String("operation", string(op)))
		return cfg, services.WrapInternal("unknown operation", fmt.Errorf("operation %q is not configured", op))
	}

	if !actor.Authenticated {
		g.metrics.GateDecision(string(op), OutcomeAuthRequired)
		return cfg, services.NewAuthRequiredError()
	}

	if !actor.Role.Satisfies(cfg.MinRole) {
		g.metrics.GateDecision(string(op), OutcomeForbidden)
		g.logger.Info("operation forbidden",
			zap.String("operation", string(op)),
			zap.String("actor_id", actor.ID),
			zap.String("role", string(actor.Role)))
		return cfg, services.NewForbiddenError()
	}

	if err := validateInput(input); err != nil {
		g.metrics.GateDecision(string(op), OutcomeValidationFailed)
		return cfg, err
	}

	decision, err := g.limiter.Check(ctx, ratelimit.Key(actor.ID, cfg.Bucket), cfg.MaxCalls, cfg.Window)
	if err != nil {
		if services.IsStorageUnavailableError(err) {
			g.metrics.GateDecision(string(op), OutcomeStorageUnavailable)
		}
		return cfg, err
	}
	if !decision.Allowed {
		g.metrics.GateDecision(string(op), OutcomeRateLimited)
		g.audit.LogEntry(ctx, models.NewAuditLog(actor.ID, models.AuditActionRateLimited, cfg.ResourceType).
			WithOutcome(models.AuditOutcomeDenied).
			WithMetadata(map[string]interface{}{
				"operation":     string(op),
				"limit":         decision.Limit,
				"reset_seconds": decision.ResetSeconds,
			}))
		return cfg, services.NewRateLimitedError(string(op), decision.ResetSeconds)
	}

	return cfg, nil
}

// record writes the audit entry of a finished operation
func (g *Gate) record(ctx context.Context, op Operation, cfg OperationConfig, actor models.ActorIdentity, input, result any, opErr error) {
	entry := models.NewAuditLog(actor.ID, cfg.AuditAction, cfg.ResourceType).
		WithResource(targetOf(result, input))
	metadata := map[string]interface{}{"operation": string(op)}

	if opErr != nil {
		g.metrics.GateDecision(string(op), OutcomeFailure)
		entry.WithOutcome(models.AuditOutcomeFailure)
		if t := services.GetErrorType(opErr); t != "" {
			metadata["error_type"] = string(t)
		} else {
			metadata["error_type"] = string(services.ErrorTypeInternal)
		}
	} else {
		g.metrics.GateDecision(string(op), OutcomeSuccess)
	}
	entry.WithMetadata(metadata)

	g.audit.LogEntry(ctx, entry)
}

// validateInput applies validate struct tags and the input's own Validate
func validateInput(input any) error {
	if isNil(input) {
		return nil
	}

	v := reflect.ValueOf(input)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if v.Kind() == reflect.Struct {
		if err := utils.ValidateStruct(input); err != nil {
			return toValidationFailed(err)
		}
	}

	if vi, ok := input.(Validatable); ok {
		if err := vi.Validate(); err != nil {
			return toValidationFailed(err)
		}
	}
	return nil
}

func toValidationFailed(err error) error {
	if services.IsValidationError(err) {
		return err
	}
	if utils.IsValidationError(err) {
		return services.NewValidationFailedError("validation failed", utils.GetValidationFields(err))
	}
	return services.NewValidationFailedError(err.Error(), nil)
}

// targetOf prefers the result's resource id over the input's
func targetOf(result, input any) string {
	for _, v := range []any{result, input} {
		if isNil(v) {
			continue
		}
		if t, ok := v.(AuditTarget); ok {
			if id := t.AuditTarget(); id != "" {
				return id
			}
		}
	}
	return ""
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
