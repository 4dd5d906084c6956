package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/upb/signal-admin/backend/middleware"
	"github.com/upb/signal-admin/backend/models"
	"github.com/upb/signal-admin/backend/repositories"
	"github.com/upb/signal-admin/backend/repositories/memory"
	"github.com/upb/signal-admin/backend/services/audit"
	"github.com/upb/signal-admin/backend/services/gate"
	"github.com/upb/signal-admin/backend/services/ratelimit"
	"github.com/upb/signal-admin/backend/services/session"
	"github.com/upb/signal-admin/backend/services/signals"
	"github.com/upb/signal-admin/backend/services/tags"
	"go.uber.org/zap"
)

const (
	testAgent    = "test-agent"
	actorHeader  = "X-Test-Actor"
	remoteClient = "192.0.2.1"
)

// recordingSuspicion keeps suspicious activity reports
type recordingSuspicion struct {
	mu      sync.Mutex
	reports []string
}

func (r *recordingSuspicion) LogSuspiciousActivity(_ context.Context, actorID, sessionID string, addressChanged, agentChanged bool, lastSeenAddress string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, actorID+"@"+lastSeenAddress)
}

func (r *recordingSuspicion) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}

type handlerFixture struct {
	router    chi.Router
	sessions  *session.Manager
	auditRepo *memory.AuditRepository
	audit     *audit.AuditService
	tagRepo   *memory.TagRepository
	suspicion *recordingSuspicion
}

// testActor reads "id:role" from the X-Test-Actor header in place of a JWT
func testActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v := r.Header.Get(actorHeader); v != "" {
			id, role, _ := strings.Cut(v, ":")
			actor := &models.ActorIdentity{ID: id, Role: models.ParseRole(role), Authenticated: true}
			r = r.WithContext(middleware.WithActor(r.Context(), actor))
		}
		next.ServeHTTP(w, r)
	})
}

func newHandlerFixture(t *testing.T, table gate.Table) *handlerFixture {
	t.Helper()
	logger := zap.NewNop()

	repos := memory.NewRepositories()
	tagRepo := repos.Tags.(*memory.TagRepository)
	auditRepo := repos.Audit.(*memory.AuditRepository)

	auditService := audit.NewAuditService(auditRepo, logger, nil, audit.DefaultConfig())
	require.NoError(t, auditService.Start())
	t.Cleanup(func() { _ = auditService.Stop(time.Second) })

	limiter := ratelimit.NewLimiter(repos.Counters, nil, logger, nil)
	if table == nil {
		table = gate.DefaultTable()
	}
	g, err := gate.New(table, limiter, auditService, logger, nil)
	require.NoError(t, err)

	manager := session.NewManager(repos.Sessions, session.Config{}, nil, logger, nil)
	suspicion := &recordingSuspicion{}

	sessionHandler := NewSessionHandler(g, manager, suspicion, CookieConfig{Name: "sid"}, logger)
	signalHandler := NewSignalHandler(g, signals.NewSignalService(repos.Signals, repos.Tags, repos.Transactions, logger), logger)
	tagHandler := NewTagHandler(g, tags.NewTagService(repos.Tags, logger), logger)
	userHandler := NewUserHandler(g, manager, logger)
	auditHandler := NewAuditHandler(g, auditService, logger)
	requireSession := middleware.NewSessionMiddleware(manager, "sid", logger).RequireSession

	r := chi.NewRouter()
	r.Use(testActor)
	r.Post("/sessions", sessionHandler.HandleCreate)
	r.Group(func(r chi.Router) {
		r.Use(requireSession)
		r.Get("/sessions", sessionHandler.HandleList)
		r.Delete("/sessions/current", sessionHandler.HandleLogout)
		r.Delete("/sessions", sessionHandler.HandleRevokeAll)
		r.Get("/users/me", userHandler.HandleMe)
	})
	r.Post("/users/{id}/suspend", userHandler.HandleSuspend)
	r.Get("/signals", signalHandler.HandleList)
	r.Post("/signals", signalHandler.HandleCreate)
	r.Get("/signals/{id}", signalHandler.HandleGet)
	r.Put("/signals/{id}", signalHandler.HandleUpdate)
	r.Delete("/signals/{id}", signalHandler.HandleDelete)
	r.Get("/tags", tagHandler.HandleList)
	r.Post("/tags", tagHandler.HandleCreate)
	r.Delete("/tags/{id}", tagHandler.HandleDelete)
	r.Get("/audit/logs", auditHandler.HandleList)
	r.Get("/audit/logs/{id}", auditHandler.HandleGet)

	return &handlerFixture{
		router:    r,
		sessions:  manager,
		auditRepo: auditRepo,
		audit:     auditService,
		tagRepo:   tagRepo,
		suspicion: suspicion,
	}
}

type call struct {
	method  string
	path    string
	body    interface{}
	actor   string
	session string
	remote  string
	agent   string
}

func (f *handlerFixture) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	switch b := c.body.(type) {
	case nil:
	case string:
		body = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(c.method, c.path, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", testAgent)
	if c.agent != "" {
		req.Header.Set("User-Agent", c.agent)
	}
	if c.remote != "" {
		req.RemoteAddr = c.remote + ":4000"
	}
	if c.actor != "" {
		req.Header.Set(actorHeader, c.actor)
	}
	if c.session != "" {
		req.Header.Set(middleware.SessionHeader, c.session)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

// decodeData unwraps the {"data": ...} envelope
func decodeData(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, dst))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

// flushAudit stops the audit workers and returns every stored entry
func (f *handlerFixture) flushAudit(t *testing.T) []*models.AuditLog {
	t.Helper()
	require.NoError(t, f.audit.Stop(time.Second))
	logs, err := f.auditRepo.List(context.Background(), repositories.AuditFilter{Limit: 1000})
	require.NoError(t, err)
	return logs
}
