package routes

import (
	"net/http"
	"time"

	"github.com/contentpilot/engine/app"
	"github.com/contentpilot/engine/handlers"
	appmiddleware "github.com/contentpilot/engine/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appmiddleware.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/healthz", handlers.HealthCheck(deps))
	r.Get("/readyz", handlers.ReadinessCheck(deps))

	// Prometheus metrics
	if deps.Config.Observability.MetricsEnabled {
		r.Get("/metrics", deps.Metrics.Handler().ServeHTTP)
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", handlers.StatusHandler(deps))

		r.Post("/generate", handlers.GenerateHandler(deps))
		r.Post("/route", handlers.RouteHandler(deps))

		r.Get("/providers/status", handlers.ProvidersStatusHandler(deps))
		r.Get("/costs/snapshot", handlers.CostSnapshotHandler(deps))

		r.Route("/cache", func(r chi.Router) {
			r.Post("/invalidate", handlers.CacheInvalidateHandler(deps))
			r.Get("/stats", handlers.CacheStatsHandler(deps))
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
