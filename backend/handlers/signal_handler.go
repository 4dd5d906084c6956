package handlers

import (
	"context"
	"net/http"

	"github.com/upb/signal-admin/backend/middleware"
	"github.com/upb/signal-admin/backend/models"
	"github.com/upb/signal-admin/backend/services/gate"
	"github.com/upb/signal-admin/backend/services/signals"
	"github.com/upb/signal-admin/backend/utils"
	"go.uber.org/zap"
)

// SignalHandler handles signal HTTP requests
type SignalHandler struct {
	gate    *gate.Gate
	signals *signals.SignalService
	logger  *zap.Logger
}

// NewSignalHandler creates a new SignalHandler
func NewSignalHandler(g *gate.Gate, signalService *signals.SignalService, logger *zap.Logger) *SignalHandler {
	return &SignalHandler{
		gate:    g,
		signals: signalService,
		logger:  logger,
	}
}

// HandleCreate handles POST /api/v1/signals
func (h *SignalHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.ActorOrAnonymous(ctx)

	var in signals.CreateInput
	decodeErr := utils.DecodeJSON(r, &in)
	input := gate.ParseInput(in, decodeErr)

	signal, err := gate.Guard(ctx, h.gate, gate.OpSignalCreate, actor, input, func(ctx context.Context) (*models.Signal, error) {
		return h.signals.Create(ctx, actor.ID, in)
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteCreated(w, signal)
}

// HandleList handles GET /api/v1/signals
func (h *SignalHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.ActorOrAnonymous(ctx)

	limit, offset, err := pageParams(r)
	in := signals.ListInput{
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Offset: offset,
	}

	list, err := gate.Guard(ctx, h.gate, gate.OpSignalList, actor, gate.ParseInput(in, err), func(ctx context.Context) ([]*models.Signal, error) {
		return h.signals.List(ctx, in)
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, list)
}

// HandleGet handles GET /api/v1/signals/{id}
func (h *SignalHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.ActorOrAnonymous(ctx)

	id, err := uuidParam(r, "id")
	input := gate.ParseInput(signals.Ref{ID: id}, err)

	signal, err := gate.Guard(ctx, h.gate, gate.OpSignalRead, actor, input, func(ctx context.Context) (*models.Signal, error) {
		return h.signals.Get(ctx, id)
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, signal)
}

// HandleUpdate handles PUT /api/v1/signals/{id}
func (h *SignalHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.ActorOrAnonymous(ctx)

	id, err := uuidParam(r, "id")
	var in signals.UpdateInput
	if err == nil {
		err = utils.DecodeJSON(r, &in)
	}
	in.ID = id

	signal, err := gate.Guard(ctx, h.gate, gate.OpSignalUpdate, actor, gate.ParseInput(in, err), func(ctx context.Context) (*models.Signal, error) {
		return h.signals.Update(ctx, in)
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, signal)
}

// HandleDelete handles DELETE /api/v1/signals/{id}
func (h *SignalHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.ActorOrAnonymous(ctx)

	id, err := uuidParam(r, "id")
	input := gate.ParseInput(signals.Ref{ID: id}, err)

	_, err = gate.Guard(ctx, h.gate, gate.OpSignalDelete, actor, input, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, h.signals.Delete(ctx, id)
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("signal deleted via API",
		zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
		zap.String("actor_id", actor.ID),
		zap.String("signal_id", id.String()))

	utils.WriteNoContent(w)
}
