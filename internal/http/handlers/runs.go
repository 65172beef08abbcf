package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"reelforge/internal/middleware"
	"reelforge/internal/pipeline"
	"reelforge/pkg/zip"
)

// Cross-origin policy is the CORS middleware's job; the upgrade itself
// accepts any origin.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// RunsCreate accepts a run request and queues it. The pipeline executes in
// the background; progress is available via the snapshot and event endpoints.
func (a *App) RunsCreate(w http.ResponseWriter, r *http.Request) {
	var req pipeline.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Locale == "" {
		req.Locale = middleware.LocaleFromContext(r.Context())
	}

	run, err := a.Runner.Start(r.Context(), req)
	if err != nil {
		a.failure(w, err)
		return
	}
	w.Header().Set("Location", "/v1/runs/"+run.ID)
	a.json(w, http.StatusAccepted, run)
}

// RunsList returns all known runs, newest first.
func (a *App) RunsList(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{"items": a.Runner.Store().List()})
}

// RunGet returns the current snapshot of one run.
func (a *App) RunGet(w http.ResponseWriter, r *http.Request) {
	run, ok := a.Runner.Store().Get(chi.URLParam(r, "runID"))
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "run not found")
		return
	}
	a.json(w, http.StatusOK, run)
}

// RunEvents upgrades to a WebSocket and streams the run's events: the
// recorded history first, then live events until the run closes or the
// client disconnects.
func (a *App) RunEvents(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if _, ok := a.Runner.Store().Get(runID); !ok {
		a.error(w, http.StatusNotFound, "not_found", "run not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the request.
		a.Logger.Warn().Err(err).Str("run_id", runID).Msg("http: websocket upgrade failed")
		return
	}

	hub := a.Runner.Hub()
	hub.Subscribe(runID, conn)
	defer func() {
		hub.Unsubscribe(runID, conn)
		_ = conn.Close()
	}()

	// Events flow from the hub; reads only notice the peer going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// RunArchive streams a zip of everything the run produced plus a run.json
// manifest. Artifacts a failed run never reached are simply absent.
func (a *App) RunArchive(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run, ok := a.Runner.Store().Get(runID)
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "run not found")
		return
	}

	manifest, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		a.failure(w, err)
		return
	}
	files := []zip.FileEntry{
		{Name: "narration.mp3", Path: run.Artifacts.AudioPath},
		{Name: "clip.mp4", Path: run.Artifacts.VideoPath},
		{Name: "final.mp4", Path: run.Artifacts.FinalPath},
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=run-%s.zip", runID))
	w.WriteHeader(http.StatusOK)
	if err := zip.WriteFiles(w, files, []zip.Entry{{Name: "run.json", Data: manifest}}); err != nil {
		// Headers are gone; all that is left is logging the broken stream.
		a.Logger.Error().Err(err).Str("run_id", runID).Msg("http: archive stream failed")
	}
}
