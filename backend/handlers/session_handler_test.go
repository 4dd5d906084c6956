package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/signal-admin/backend/models"
	"github.com/upb/signal-admin/backend/services/gate"
)

func createSession(t *testing.T, f *handlerFixture, c call) CreateSessionResponse {
	t.Helper()
	c.method, c.path = http.MethodPost, "/sessions"
	w := f.do(t, c)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp CreateSessionResponse
	decodeData(t, w, &resp)
	return resp
}

func TestSessionHandler_Create(t *testing.T) {
	f := newHandlerFixture(t, nil)

	w := f.do(t, call{method: http.MethodPost, path: "/sessions", actor: "ana:analyst"})
	require.Equal(t, http.StatusCreated, w.Code)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "sid" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)

	var first CreateSessionResponse
	decodeData(t, w, &first)
	assert.Equal(t, cookie.Value, first.Session.ID)
	assert.Equal(t, remoteClient, first.Session.NetworkAddress)
	assert.True(t, first.Session.Current)
	assert.False(t, first.Suspicious.Suspicious)
	assert.False(t, first.ConcurrentSessions)

	second := createSession(t, f, call{actor: "ana:analyst", remote: "203.0.113.9", agent: "curl/8.5.0"})
	assert.NotEqual(t, first.Session.ID, second.Session.ID)
	assert.True(t, second.Suspicious.Suspicious)
	assert.True(t, second.Suspicious.AddressChanged)
	assert.True(t, second.Suspicious.AgentChanged)
	assert.Equal(t, remoteClient, second.Suspicious.LastSeenNetworkAddress)
	assert.True(t, second.ConcurrentSessions)
	assert.Equal(t, 1, f.suspicion.count())

	logs := f.flushAudit(t)
	var created int
	for _, l := range logs {
		if l.Action == models.AuditActionSessionCreate && l.Outcome == models.AuditOutcomeSuccess {
			created++
			assert.Contains(t, []string{first.Session.ID, second.Session.ID}, l.ResourceID)
			assert.Equal(t, "ana", l.ActorID)
		}
	}
	assert.Equal(t, 2, created)
}

func TestSessionHandler_CreateRequiresAuthentication(t *testing.T) {
	f := newHandlerFixture(t, nil)

	w := f.do(t, call{method: http.MethodPost, path: "/sessions"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", decodeError(t, w)["error"])
}

func TestSessionHandler_CreateRateLimited(t *testing.T) {
	table := gate.DefaultTable()
	cfg := table[gate.OpSessionCreate]
	cfg.MaxCalls = 2
	cfg.Window = 15 * time.Minute
	table[gate.OpSessionCreate] = cfg
	f := newHandlerFixture(t, table)

	createSession(t, f, call{actor: "vic:viewer"})
	createSession(t, f, call{actor: "vic:viewer"})

	w := f.do(t, call{method: http.MethodPost, path: "/sessions", actor: "vic:viewer"})
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	body := decodeError(t, w)
	details := body["details"].(map[string]interface{})
	assert.Greater(t, details["reset_seconds"].(float64), float64(0))
	assert.LessOrEqual(t, details["reset_seconds"].(float64), float64(900))
}

func TestSessionHandler_ListAndLogout(t *testing.T) {
	f := newHandlerFixture(t, nil)

	a := createSession(t, f, call{actor: "ulises:user"})
	b := createSession(t, f, call{actor: "ulises:user"})
	createSession(t, f, call{actor: "other:user"})

	w := f.do(t, call{method: http.MethodGet, path: "/sessions", actor: "ulises:user", session: a.Session.ID})
	require.Equal(t, http.StatusOK, w.Code)
	var list []SessionResponse
	decodeData(t, w, &list)
	require.Len(t, list, 2)
	for _, s := range list {
		assert.Equal(t, s.ID == a.Session.ID, s.Current)
	}

	w = f.do(t, call{method: http.MethodDelete, path: "/sessions/current", actor: "ulises:user", session: a.Session.ID})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, call{method: http.MethodGet, path: "/sessions", actor: "ulises:user", session: a.Session.ID})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "revoked session is rejected")
	assert.Equal(t, "session_invalid", decodeError(t, w)["error"])

	w = f.do(t, call{method: http.MethodGet, path: "/sessions", actor: "ulises:user", session: b.Session.ID})
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &list)
	assert.Len(t, list, 1)
}

func TestSessionHandler_RevokeAll(t *testing.T) {
	f := newHandlerFixture(t, nil)

	a := createSession(t, f, call{actor: "ulises:user"})
	createSession(t, f, call{actor: "ulises:user"})
	createSession(t, f, call{actor: "ulises:user"})

	w := f.do(t, call{method: http.MethodDelete, path: "/sessions", actor: "ulises:user", session: a.Session.ID})
	require.Equal(t, http.StatusOK, w.Code)
	var result revokedCount
	decodeData(t, w, &result)
	assert.Equal(t, int64(3), result.Revoked)

	w = f.do(t, call{method: http.MethodGet, path: "/users/me", actor: "ulises:user", session: a.Session.ID})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionHandler_SessionBoundToClient(t *testing.T) {
	f := newHandlerFixture(t, nil)
	s := createSession(t, f, call{actor: "ana:analyst"})

	w := f.do(t, call{method: http.MethodGet, path: "/users/me", actor: "ana:analyst", session: s.Session.ID})
	require.Equal(t, http.StatusOK, w.Code)
	var me MeResponse
	decodeData(t, w, &me)
	assert.Equal(t, "ana", me.Actor.ID)
	assert.Equal(t, s.Session.ID, me.SessionID)

	w = f.do(t, call{method: http.MethodGet, path: "/users/me", actor: "ana:analyst", session: s.Session.ID, remote: "198.51.100.20"})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "session replayed from another address")

	w = f.do(t, call{method: http.MethodGet, path: "/users/me", actor: "eve:admin", session: s.Session.ID})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "session presented by another actor")
}

func TestUserHandler_Suspend(t *testing.T) {
	f := newHandlerFixture(t, nil)

	s := createSession(t, f, call{actor: "ulises:user"})
	createSession(t, f, call{actor: "ulises:user"})

	w := f.do(t, call{method: http.MethodPost, path: "/users/ulises/suspend", actor: "ana:analyst"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, call{method: http.MethodPost, path: "/users/ulises/suspend", actor: "adm:admin"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp SuspendResponse
	decodeData(t, w, &resp)
	assert.Equal(t, SuspendResponse{UserID: "ulises", RevokedSessions: 2}, resp)

	w = f.do(t, call{method: http.MethodGet, path: "/users/me", actor: "ulises:user", session: s.Session.ID})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var suspended *models.AuditLog
	for _, l := range f.flushAudit(t) {
		if l.Action == models.AuditActionUserSuspend && l.Outcome == models.AuditOutcomeSuccess {
			suspended = l
		}
	}
	require.NotNil(t, suspended)
	assert.Equal(t, "adm", suspended.ActorID)
	assert.Equal(t, "ulises", suspended.ResourceID)
}
