// Package httpapi assembles the chi router for the service.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"reelforge/internal/http/handlers"
	"reelforge/internal/infra"
	"reelforge/internal/middleware"
)

// NewRouter mounts the API surface behind the shared middleware chain.
func NewRouter(app *handlers.App, cfg *infra.Config, logger zerolog.Logger, lookup middleware.CountryLookup) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
		middleware.Metrics,
		middleware.CORS(cfg.CORSOrigins),
		middleware.RateLimit(cfg.RateLimitPerMin, time.Minute),
		middleware.I18N(cfg.DefaultLocale, lookup),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/runs", func(r chi.Router) {
		r.Post("/", app.RunsCreate)
		r.Get("/", app.RunsList)
		r.Get("/{runID}", app.RunGet)
		r.Get("/{runID}/events", app.RunEvents)
		r.Get("/{runID}/archive", app.RunArchive)
	})

	r.Post("/v1/images", app.ImagesGenerate)
	r.Post("/v1/strategies", app.StrategiesCreate)

	r.Handle("/metrics", promhttp.Handler())

	return r
}
