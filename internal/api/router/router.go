package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/apisentinel/apisentinel/internal/api/handlers"
	"github.com/apisentinel/apisentinel/internal/api/middleware"
	"github.com/apisentinel/apisentinel/internal/config"
	"github.com/apisentinel/apisentinel/internal/pkg/logger"
	"github.com/apisentinel/apisentinel/internal/pkg/metrics"
)

type Handlers struct {
	Health  *handlers.HealthHandler
	Ingest  *handlers.IngestHandler
	Project *handlers.ProjectHandler
	Channel *handlers.ChannelHandler
	Anomaly *handlers.AnomalyHandler
}

func New(cfg *config.Config, log *logger.Logger, resolver middleware.ProjectResolver, h *Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(middleware.DefaultCORS(cfg.Server.FrontendURL))
	r.Use(metrics.Middleware)
	r.Use(middleware.RateLimit(100, 200)) // 100 req/sec, burst of 200

	// Public routes
	r.Group(func(r chi.Router) {
		r.Get("/health", h.Health.Healthz)
		r.Get("/healthz", h.Health.Healthz)
		r.Get("/readyz", h.Health.Readyz)
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	})

	// Ingest routes (authenticated by project API key)
	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(resolver))
		r.Use(middleware.ProjectRateLimit(50, 100))

		r.Post("/api/v1/ingest", h.Ingest.Ingest)
	})

	// Management routes
	r.Group(func(r chi.Router) {
		// Projects
		r.Route("/api/v1/projects", func(r chi.Router) {
			r.Get("/", h.Project.List)
			r.Post("/", h.Project.Create)
			r.Get("/{id}", h.Project.Get)
			r.Route("/{projectID}/channels", func(r chi.Router) {
				r.Get("/", h.Channel.List)
				r.Post("/", h.Channel.Create)
			})
		})

		// Channels
		r.Route("/api/v1/channels", func(r chi.Router) {
			r.Get("/{id}", h.Channel.Get)
			r.Put("/{id}", h.Channel.Update)
			r.Delete("/{id}", h.Channel.Delete)
		})

		// Anomalies
		r.Route("/api/v1/anomalies", func(r chi.Router) {
			r.Get("/", h.Anomaly.List)
			r.Get("/summary", h.Anomaly.GetSummary)
			r.Get("/{id}", h.Anomaly.Get)
			r.Post("/{id}/resolve", h.Anomaly.Resolve)
			r.Get("/{id}/deliveries", h.Anomaly.ListDeliveries)
		})
	})

	return r
}
