package handlers

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/signal-admin/backend/models"
)

func createSignal(t *testing.T, f *handlerFixture, actor string, body interface{}) models.Signal {
	t.Helper()
	w := f.do(t, call{method: http.MethodPost, path: "/signals", actor: actor, body: body})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var s models.Signal
	decodeData(t, w, &s)
	return s
}

func TestSignalHandler_CRUD(t *testing.T) {
	f := newHandlerFixture(t, nil)

	w := f.do(t, call{method: http.MethodPost, path: "/tags", actor: "ana:analyst", body: map[string]string{"name": "phishing", "color": "#ff0000"}})
	require.Equal(t, http.StatusCreated, w.Code)
	var tag models.Tag
	decodeData(t, w, &tag)

	created := createSignal(t, f, "ana:analyst", map[string]interface{}{
		"title":      "Credential harvesting page",
		"severity":   "high",
		"source_url": "https://example.org/login",
		"tag_ids":    []string{tag.ID.String()},
	})
	assert.Equal(t, "ana", created.CreatedBy)
	assert.Equal(t, []uuid.UUID{tag.ID}, created.TagIDs)

	w = f.do(t, call{method: http.MethodGet, path: "/signals/" + created.ID.String(), actor: "vic:viewer"})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, call{method: http.MethodPut, path: "/signals/" + created.ID.String(), actor: "ana:analyst", body: map[string]string{"status": "triaged"}})
	require.Equal(t, http.StatusOK, w.Code)
	var updated models.Signal
	decodeData(t, w, &updated)
	assert.Equal(t, models.SignalStatusTriaged, updated.Status)

	w = f.do(t, call{method: http.MethodGet, path: "/signals?status=triaged&limit=10", actor: "vic:viewer"})
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Signal
	decodeData(t, w, &list)
	assert.Len(t, list, 1)

	w = f.do(t, call{method: http.MethodDelete, path: "/signals/" + created.ID.String(), actor: "ana:analyst"})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, call{method: http.MethodGet, path: "/signals/" + created.ID.String(), actor: "vic:viewer"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	var deleted *models.AuditLog
	for _, l := range f.flushAudit(t) {
		if l.Action == models.AuditActionSignalDelete {
			deleted = l
		}
	}
	require.NotNil(t, deleted)
	assert.Equal(t, created.ID.String(), deleted.ResourceID)
	assert.Equal(t, models.AuditOutcomeSuccess, deleted.Outcome)
}

func TestSignalHandler_Errors(t *testing.T) {
	f := newHandlerFixture(t, nil)

	tests := []struct {
		name   string
		call   call
		status int
		errKey string
	}{
		{
			name:   "unauthenticated",
			call:   call{method: http.MethodGet, path: "/signals"},
			status: http.StatusUnauthorized,
			errKey: "unauthorized",
		},
		{
			name:   "user cannot create",
			call:   call{method: http.MethodPost, path: "/signals", actor: "ulises:user", body: map[string]string{"title": "valid title", "severity": "low"}},
			status: http.StatusForbidden,
			errKey: "forbidden",
		},
		{
			name:   "invalid payload",
			call:   call{method: http.MethodPost, path: "/signals", actor: "ana:analyst", body: map[string]string{"title": "x", "severity": "urgent"}},
			status: http.StatusBadRequest,
			errKey: "bad_request",
		},
		{
			name:   "unknown field",
			call:   call{method: http.MethodPost, path: "/signals", actor: "ana:analyst", body: `{"title":"valid title","severity":"low","owner":"me"}`},
			status: http.StatusBadRequest,
			errKey: "bad_request",
		},
		{
			name:   "malformed id",
			call:   call{method: http.MethodGet, path: "/signals/not-a-uuid", actor: "vic:viewer"},
			status: http.StatusBadRequest,
			errKey: "bad_request",
		},
		{
			name:   "bad page size",
			call:   call{method: http.MethodGet, path: "/signals?limit=abc", actor: "vic:viewer"},
			status: http.StatusBadRequest,
			errKey: "bad_request",
		},
		{
			name:   "unknown signal",
			call:   call{method: http.MethodDelete, path: "/signals/" + uuid.NewString(), actor: "ana:analyst"},
			status: http.StatusNotFound,
			errKey: "not_found",
		},
		{
			name:   "unknown tag",
			call:   call{method: http.MethodPost, path: "/signals", actor: "ana:analyst", body: map[string]interface{}{"title": "valid title", "severity": "low", "tag_ids": []string{uuid.NewString()}}},
			status: http.StatusBadRequest,
			errKey: "bad_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, tt.call)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.errKey, decodeError(t, w)["error"])
		})
	}
}

func TestSignalHandler_RoleCheckedBeforeParsing(t *testing.T) {
	f := newHandlerFixture(t, nil)

	tests := []struct {
		name string
		call call
	}{
		{name: "malformed body", call: call{method: http.MethodPost, path: "/signals", actor: "vic:viewer", body: "not json"}},
		{name: "unknown field", call: call{method: http.MethodPost, path: "/signals", actor: "vic:viewer", body: `{"unknown_field":1}`}},
		{name: "malformed id on delete", call: call{method: http.MethodDelete, path: "/signals/not-a-uuid", actor: "vic:viewer"}},
		{name: "malformed id on update", call: call{method: http.MethodPut, path: "/signals/not-a-uuid", actor: "vic:viewer", body: map[string]string{"status": "triaged"}}},
		{name: "malformed tag body", call: call{method: http.MethodPost, path: "/tags", actor: "vic:viewer", body: "{"}},
		{name: "malformed tag id", call: call{method: http.MethodDelete, path: "/tags/not-a-uuid", actor: "ana:analyst"}},
		{name: "malformed audit query", call: call{method: http.MethodGet, path: "/audit/logs?since=yesterday", actor: "ana:analyst"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, tt.call)
			assert.Equal(t, http.StatusForbidden, w.Code)
			assert.Equal(t, "forbidden", decodeError(t, w)["error"])
		})
	}

	w := f.do(t, call{method: http.MethodPut, path: "/signals/not-a-uuid", actor: "ana:analyst", body: map[string]string{"status": "triaged"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, call{method: http.MethodPost, path: "/signals", actor: "ana:analyst", body: "not json"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignalHandler_DeleteQuota(t *testing.T) {
	f := newHandlerFixture(t, nil)

	// SIGNAL_DELETE allows 50 calls per hour; misses still count
	for i := 0; i < 50; i++ {
		w := f.do(t, call{method: http.MethodDelete, path: "/signals/" + uuid.NewString(), actor: "ana:analyst"})
		require.Equal(t, http.StatusNotFound, w.Code)
	}

	w := f.do(t, call{method: http.MethodDelete, path: "/signals/" + uuid.NewString(), actor: "ana:analyst"})
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	w = f.do(t, call{method: http.MethodDelete, path: "/signals/" + uuid.NewString(), actor: "other:analyst"})
	assert.Equal(t, http.StatusNotFound, w.Code, "quotas are per actor")

	var limited int
	for _, l := range f.flushAudit(t) {
		if l.Action == models.AuditActionRateLimited {
			limited++
			assert.Equal(t, "ana", l.ActorID)
			assert.Equal(t, models.AuditOutcomeDenied, l.Outcome)
		}
	}
	assert.Equal(t, 1, limited)
}

func TestTagHandler(t *testing.T) {
	f := newHandlerFixture(t, nil)

	w := f.do(t, call{method: http.MethodPost, path: "/tags", actor: "ana:analyst", body: map[string]string{"name": "malware"}})
	require.Equal(t, http.StatusCreated, w.Code)
	var tag models.Tag
	decodeData(t, w, &tag)

	w = f.do(t, call{method: http.MethodPost, path: "/tags", actor: "ana:analyst", body: map[string]string{"name": "MALWARE"}})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, call{method: http.MethodPost, path: "/tags", actor: "ana:analyst", body: map[string]string{"name": "x", "color": "red"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, call{method: http.MethodGet, path: "/tags", actor: "vic:viewer"})
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Tag
	decodeData(t, w, &list)
	assert.Len(t, list, 1)

	w = f.do(t, call{method: http.MethodDelete, path: "/tags/" + tag.ID.String(), actor: "ana:analyst"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, call{method: http.MethodDelete, path: "/tags/" + tag.ID.String(), actor: "adm:admin"})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, call{method: http.MethodDelete, path: "/tags/" + tag.ID.String(), actor: "adm:admin"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
