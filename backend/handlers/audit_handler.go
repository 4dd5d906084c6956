package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/upb/signal-admin/backend/middleware"
	"github.com/upb/signal-admin/backend/models"
	"github.com/upb/signal-admin/backend/repositories"
	"github.com/upb/signal-admin/backend/services/audit"
	"github.com/upb/signal-admin/backend/services/gate"
	"github.com/upb/signal-admin/backend/utils"
	"go.uber.org/zap"
)

const defaultAuditPage = 100

// AuditQuery filters GET /api/v1/audit/logs
type AuditQuery struct {
	ActorID string     `validate:"omitempty,max=128"`
	Action  string     `validate:"omitempty,max=64"`
	Since   *time.Time `validate:"-"`
	Until   *time.Time `validate:"-"`
	Limit   int        `validate:"min=0,max=500"`
	Offset  int        `validate:"min=0"`
}

// Validate rejects an inverted time range
func (q AuditQuery) Validate() error {
	if q.Since != nil && q.Until != nil && q.Until.Before(*q.Since) {
		return utils.NewFieldError("until", "until must not be before since")
	}
	return nil
}

type auditRef struct {
	ID string `validate:"required,max=64"`
}

func (a auditRef) AuditTarget() string { return a.ID }

// AuditHandler serves the audit trail to administrators
type AuditHandler struct {
	gate   *gate.Gate
	audit  *audit.AuditService
	logger *zap.Logger
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(g *gate.Gate, auditService *audit.AuditService, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{gate: g, audit: auditService, logger: logger}
}

// HandleList handles GET /api/v1/audit/logs
func (h *AuditHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.ActorOrAnonymous(ctx)

	q, err := parseAuditQuery(r)

	logs, err := gate.Guard(ctx, h.gate, gate.OpAuditRead, actor, gate.ParseInput(q, err), func(ctx context.Context) ([]*models.AuditLog, error) {
		limit := q.Limit
		if limit == 0 {
			limit = defaultAuditPage
		}
		return h.audit.List(ctx, repositories.AuditFilter{
			ActorID: q.ActorID,
			Action:  models.AuditAction(q.Action),
			Since:   q.Since,
			Until:   q.Until,
			Limit:   limit,
			Offset:  q.Offset,
		})
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, logs)
}

// HandleGet handles GET /api/v1/audit/logs/{id}
func (h *AuditHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ref := auditRef{ID: chi.URLParam(r, "id")}

	log, err := gate.Guard(ctx, h.gate, gate.OpAuditRead, middleware.ActorOrAnonymous(ctx), ref, func(ctx context.Context) (*models.AuditLog, error) {
		return h.audit.Get(ctx, ref.ID)
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, log)
}

func parseAuditQuery(r *http.Request) (AuditQuery, error) {
	query := r.URL.Query()
	q := AuditQuery{
		ActorID: query.Get("actor_id"),
		Action:  query.Get("action"),
	}

	var err error
	if q.Limit, q.Offset, err = pageParams(r); err != nil {
		return q, err
	}
	if q.Since, err = queryTime(r, "since"); err != nil {
		return q, err
	}
	if q.Until, err = queryTime(r, "until"); err != nil {
		return q, err
	}
	return q, nil
}

func queryTime(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, utils.NewFieldError(name, name+" must be an RFC 3339 timestamp")
	}
	return &t, nil
}
