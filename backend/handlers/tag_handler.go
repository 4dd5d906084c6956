package handlers

import (
	"context"
	"net/http"

	"github.com/upb/signal-admin/backend/middleware"
	"github.com/upb/signal-admin/backend/models"
	"github.com/upb/signal-admin/backend/services/gate"
	"github.com/upb/signal-admin/backend/services/tags"
	"github.com/upb/signal-admin/backend/utils"
	"go.uber.org/zap"
)

// TagHandler handles tag HTTP requests
type TagHandler struct {
	gate   *gate.Gate
	tags   *tags.TagService
	logger *zap.Logger
}

// NewTagHandler creates a new TagHandler
func NewTagHandler(g *gate.Gate, tagService *tags.TagService, logger *zap.Logger) *TagHandler {
	return &TagHandler{gate: g, tags: tagService, logger: logger}
}

// HandleCreate handles POST /api/v1/tags
func (h *TagHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.ActorOrAnonymous(ctx)

	var in tags.CreateInput
	decodeErr := utils.DecodeJSON(r, &in)
	input := gate.ParseInput(in, decodeErr)

	tag, err := gate.Guard(ctx, h.gate, gate.OpTagCreate, actor, input, func(ctx context.Context) (*models.Tag, error) {
		return h.tags.Create(ctx, in)
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteCreated(w, tag)
}

// HandleList handles GET /api/v1/tags
func (h *TagHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	list, err := gate.Guard(ctx, h.gate, gate.OpTagList, middleware.ActorOrAnonymous(ctx), nil, h.tags.List)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, list)
}

// HandleDelete handles DELETE /api/v1/tags/{id}
func (h *TagHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.ActorOrAnonymous(ctx)

	id, err := uuidParam(r, "id")
	input := gate.ParseInput(tags.Ref{ID: id}, err)

	_, err = gate.Guard(ctx, h.gate, gate.OpTagDelete, actor, input, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, h.tags.Delete(ctx, id)
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	utils.WriteNoContent(w)
}
