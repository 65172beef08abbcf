package handlers

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"reelforge/internal/domain"
	"reelforge/internal/infra"
	"reelforge/internal/jobs"
	"reelforge/internal/media"
	"reelforge/internal/pipeline"
	"reelforge/internal/providers/elevenlabs"
	"reelforge/internal/providers/runway"
	"reelforge/internal/providers/stability"
	"reelforge/internal/storage"
	"reelforge/internal/strategy"
)

type fakeNarrator struct{ err error }

func (f *fakeNarrator) Synthesize(ctx context.Context, req elevenlabs.SpeechRequest, w io.Writer) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	n, err := w.Write([]byte("mp3-bytes"))
	return int64(n), err
}

type fakeStudio struct{}

func (f *fakeStudio) GenerateImage(ctx context.Context, req runway.ImageRequest) (string, error) {
	return "task-img", nil
}

func (f *fakeStudio) AnimateImage(ctx context.Context, req runway.VideoRequest) (string, error) {
	return "task-vid", nil
}

func (f *fakeStudio) TaskStatus(ctx context.Context, taskID string) (jobs.Status, error) {
	return jobs.Status{State: domain.JobStatusSucceeded, Output: []string{"https://cdn.example/" + taskID}}, nil
}

func (f *fakeStudio) CancelTask(ctx context.Context, taskID string) error { return nil }

type fakeDownloader struct{ dir string }

func (f *fakeDownloader) Download(ctx context.Context, url, key string) (media.DownloadResult, error) {
	path := filepath.Join(f.dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("video-bytes"), 0o644); err != nil {
		return media.DownloadResult{}, err
	}
	return media.DownloadResult{Path: path, Bytes: 11}, nil
}

type fakeToolset struct{}

func (f *fakeToolset) ProbeDuration(ctx context.Context, path string) (float64, error) {
	return 4.2, nil
}

func (f *fakeToolset) Mux(ctx context.Context, videoPath, audioPath, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(outPath, []byte("final-bytes"), 0o644)
}

type appFixture struct {
	app    *App
	router http.Handler
	files  *storage.FileStore
}

// newAppFixture wires an App over a real pipeline runner with fake
// collaborators and mounts the handler routes the way the service does.
func newAppFixture(t *testing.T) *appFixture {
	t.Helper()

	files, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	runner, err := pipeline.NewRunner(pipeline.RunnerOptions{
		Store:         pipeline.NewStore(),
		Files:         files,
		Narrator:      &fakeNarrator{},
		Studio:        &fakeStudio{},
		Downloader:    &fakeDownloader{dir: t.TempDir()},
		Media:         &fakeToolset{},
		WaitBudget:    0,
		ImageInterval: time.Millisecond,
		VideoInterval: time.Millisecond,
		Logger:        zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	images, err := stability.NewClient(stability.Options{APIKey: "test-key", Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("stability.NewClient() error = %v", err)
	}

	app := &App{
		Config: &infra.Config{},
		Logger: zerolog.Nop(),
		Runner: runner,
		Images: images,
		Files:  files,
	}

	r := chi.NewRouter()
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

	return &appFixture{app: app, router: r, files: files}
}

// withPlanning adds a strategy stack backed by the given completer.
func (f *appFixture) withPlanning(t *testing.T, completer strategy.Completer) {
	t.Helper()
	prompts, err := strategy.LoadLibrary("")
	if err != nil {
		t.Fatalf("LoadLibrary() error = %v", err)
	}
	profiler, err := strategy.NewProfiler(completer, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewProfiler() error = %v", err)
	}
	planner, err := strategy.NewPlanner(completer, prompts, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewPlanner() error = %v", err)
	}
	f.app.Profiler = profiler
	f.app.Planner = planner
}
