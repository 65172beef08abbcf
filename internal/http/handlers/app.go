// Package handlers implements the service's HTTP surface: pipeline runs and
// their event streams, synchronous image generation, and strategy planning.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"reelforge/internal/domain"
	"reelforge/internal/infra"
	"reelforge/internal/pipeline"
	"reelforge/internal/providers/stability"
	"reelforge/internal/storage"
	"reelforge/internal/strategy"
)

// App bundles the collaborators the handlers need. All fields are required
// unless the corresponding endpoint group is not mounted.
type App struct {
	Config   *infra.Config
	Logger   zerolog.Logger
	Runner   *pipeline.Runner
	Images   *stability.Client
	Profiler *strategy.Profiler
	Planner  *strategy.Planner
	Files    *storage.FileStore
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, slug, message string) {
	a.json(w, code, map[string]any{"error": map[string]string{"code": slug, "message": message}})
}

// failure translates taxonomy errors into HTTP statuses. Anything outside
// the taxonomy is a 500 with a generic body; the cause goes to the log only.
func (a *App) failure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrMissingCredentials):
		a.error(w, http.StatusServiceUnavailable, "not_configured", err.Error())
	case errors.Is(err, domain.ErrContentFiltered):
		a.error(w, http.StatusUnprocessableEntity, "content_filtered", err.Error())
	case errors.Is(err, domain.ErrTimedOut):
		a.error(w, http.StatusGatewayTimeout, "timed_out", err.Error())
	case errors.Is(err, domain.ErrRemoteFailed),
		errors.Is(err, domain.ErrMalformedResponse),
		errors.Is(err, domain.ErrTransport):
		a.error(w, http.StatusBadGateway, "upstream_failed", err.Error())
	default:
		a.Logger.Error().Err(err).Msg("http: unhandled error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
