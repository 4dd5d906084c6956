package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/signal-admin/backend/app"
	"github.com/upb/signal-admin/backend/middleware"
	"github.com/upb/signal-admin/backend/models"
	"github.com/upb/signal-admin/backend/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimiddleware.RequestID)
	r.Use(deps.RealIP.Handler)
	r.Use(middleware.RequestInfo)
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.SessionHeader},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		if deps.FloodGuard != nil {
			r.Use(deps.FloodGuard.Handler)
		}
		r.Use(deps.AuthMiddleware.RequireAuth)

		// Session creation only needs a bearer token
		r.Post("/sessions", deps.SessionHandler.HandleCreate)

		r.Group(func(r chi.Router) {
			r.Use(deps.SessionMiddleware.RequireSession)

			r.Get("/sessions", deps.SessionHandler.HandleList)
			r.Delete("/sessions", deps.SessionHandler.HandleRevokeAll)
			r.Delete("/sessions/current", deps.SessionHandler.HandleLogout)

			r.Route("/users", func(r chi.Router) {
				r.Get("/me", deps.UserHandler.HandleMe)
				r.Post("/{id}/suspend", deps.UserHandler.HandleSuspend)
			})

			r.Route("/signals", func(r chi.Router) {
				r.Get("/", deps.SignalHandler.HandleList)
				r.Post("/", deps.SignalHandler.HandleCreate)
				r.Get("/{id}", deps.SignalHandler.HandleGet)
				r.Put("/{id}", deps.SignalHandler.HandleUpdate)
				r.Delete("/{id}", deps.SignalHandler.HandleDelete)
			})

			r.Route("/tags", func(r chi.Router) {
				r.Get("/", deps.TagHandler.HandleList)
				r.Post("/", deps.TagHandler.HandleCreate)
				r.Delete("/{id}", deps.TagHandler.HandleDelete)
			})

			// Audit logs (require admin role)
			r.Route("/audit", func(r chi.Router) {
				r.Use(deps.AuthMiddleware.RequireRole(models.RoleAdmin))
				r.Get("/logs", deps.AuditHandler.HandleList)
				r.Get("/logs/{id}", deps.AuditHandler.HandleGet)
			})
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})

	return r
}
