package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/signal-admin/backend/models"
	"github.com/upb/signal-admin/backend/repositories/memory"
	"github.com/upb/signal-admin/backend/services"
	"github.com/upb/signal-admin/backend/services/session"
	"go.uber.org/zap"
)

// httptest.NewRequest uses this remote address
const testClientIP = "192.0.2.1"

type MockSessionValidator struct {
	mock.Mock
}

func (m *MockSessionValidator) ValidateSession(ctx context.Context, sessionID, actorID, networkAddress, clientAgent string) (*session.ValidationResult, error) {
	args := m.Called(ctx, sessionID, actorID, networkAddress, clientAgent)
	var result *session.ValidationResult
	if v := args.Get(0); v != nil {
		result = v.(*session.ValidationResult)
	}
	return result, args.Error(1)
}

func sessionRequest(actor *models.ActorIdentity, configure func(*http.Request)) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/signals", nil)
	req.Header.Set("User-Agent", "test-agent")
	if actor != nil {
		req = req.WithContext(WithActor(req.Context(), actor))
	}
	if configure != nil {
		configure(req)
	}
	return req
}

func TestRequireSession(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()
	actor := &models.ActorIdentity{ID: "user-1", Role: models.RoleAnalyst, Authenticated: true}

	manager := session.NewManager(memory.NewSessionRepository(), session.Config{}, nil, logger, nil)
	live, err := manager.CreateSession(ctx, actor.ID, testClientIP, "test-agent")
	require.NoError(t, err)
	revoked, err := manager.CreateSession(ctx, actor.ID, testClientIP, "test-agent")
	require.NoError(t, err)
	require.NoError(t, manager.RevokeSession(ctx, revoked.ID, models.RevokedByLogout))

	mw := NewSessionMiddleware(manager, "sid", logger)

	tests := []struct {
		name      string
		actor     *models.ActorIdentity
		configure func(*http.Request)
		wantCode  int
	}{
		{
			name:      "header session",
			actor:     actor,
			configure: func(r *http.Request) { r.Header.Set(SessionHeader, live.ID) },
			wantCode:  http.StatusOK,
		},
		{
			name:      "cookie session",
			actor:     actor,
			configure: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "sid", Value: live.ID}) },
			wantCode:  http.StatusOK,
		},
		{
			name:     "missing session",
			actor:    actor,
			wantCode: http.StatusUnauthorized,
		},
		{
			name:      "unknown session",
			actor:     actor,
			configure: func(r *http.Request) { r.Header.Set(SessionHeader, "does-not-exist") },
			wantCode:  http.StatusUnauthorized,
		},
		{
			name:      "revoked session",
			actor:     actor,
			configure: func(r *http.Request) { r.Header.Set(SessionHeader, revoked.ID) },
			wantCode:  http.StatusUnauthorized,
		},
		{
			name:  "session of another actor",
			actor: &models.ActorIdentity{ID: "user-2", Role: models.RoleAdmin, Authenticated: true},
			configure: func(r *http.Request) {
				r.Header.Set(SessionHeader, live.ID)
			},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:  "different client agent",
			actor: actor,
			configure: func(r *http.Request) {
				r.Header.Set(SessionHeader, live.ID)
				r.Header.Set("User-Agent", "curl/8.5.0")
			},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:      "no actor",
			configure: func(r *http.Request) { r.Header.Set(SessionHeader, live.ID) },
			wantCode:  http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *models.Session
			handler := mw.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetSessionFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, sessionRequest(tt.actor, tt.configure))

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusOK {
				require.NotNil(t, seen)
				assert.Equal(t, live.ID, seen.ID)
			} else {
				assert.Nil(t, seen)
			}
		})
	}
}

func TestRequireSession_GenericRejection(t *testing.T) {
	validator := new(MockSessionValidator)
	validator.On("ValidateSession", mock.Anything, "s1", "user-1", testClientIP, "test-agent").
		Return(&session.ValidationResult{Valid: false, Reason: session.ReasonFingerprintMismatch}, nil)

	mw := NewSessionMiddleware(validator, "", zap.NewNop())
	handler := mw.RequireSession(http.HandlerFunc(okHandler))

	req := sessionRequest(&models.ActorIdentity{ID: "user-1", Role: models.RoleUser}, func(r *http.Request) {
		r.Header.Set(SessionHeader, "s1")
	})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "session_invalid")
	assert.NotContains(t, w.Body.String(), "fingerprint")
	validator.AssertExpectations(t)
}

func TestRequireSession_StoreDown(t *testing.T) {
	validator := new(MockSessionValidator)
	validator.On("ValidateSession", mock.Anything, "s1", "user-1", testClientIP, "test-agent").
		Return(&session.ValidationResult{Valid: false}, services.NewStorageUnavailableError("validate session", errors.New("connection refused")))

	mw := NewSessionMiddleware(validator, "sid", zap.NewNop())
	handler := mw.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := sessionRequest(&models.ActorIdentity{ID: "user-1", Role: models.RoleUser}, func(r *http.Request) {
		r.Header.Set(SessionHeader, "s1")
	})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
