package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"reelforge/internal/domain"
	"reelforge/internal/jobs"
	"reelforge/internal/media"
	"reelforge/internal/providers/elevenlabs"
	"reelforge/internal/providers/runway"
	"reelforge/internal/storage"
)

type fakeNarrator struct {
	err error
}

func (f *fakeNarrator) Synthesize(ctx context.Context, req elevenlabs.SpeechRequest, w io.Writer) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	n, err := w.Write([]byte("mp3-bytes"))
	return int64(n), err
}

type fakeStudio struct {
	mu         sync.Mutex
	statuses   map[string][]jobs.Status
	fetchCount map[string]int
	cancelled  []string
	submitErr  error
	animateReq runway.VideoRequest
}

func newFakeStudio() *fakeStudio {
	return &fakeStudio{
		statuses:   make(map[string][]jobs.Status),
		fetchCount: make(map[string]int),
	}
}

func (f *fakeStudio) GenerateImage(ctx context.Context, req runway.ImageRequest) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return "task-img", nil
}

func (f *fakeStudio) AnimateImage(ctx context.Context, req runway.VideoRequest) (string, error) {
	f.mu.Lock()
	f.animateReq = req
	f.mu.Unlock()
	return "task-vid", nil
}

// TaskStatus replays the scripted sequence for the task, holding the last
// entry once the script runs out.
func (f *fakeStudio) TaskStatus(ctx context.Context, taskID string) (jobs.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seq := f.statuses[taskID]
	if len(seq) == 0 {
		return jobs.Status{}, fmt.Errorf("no scripted status for %s", taskID)
	}
	idx := f.fetchCount[taskID]
	f.fetchCount[taskID]++
	if idx >= len(seq) {
		idx = len(seq) - 1
	}
	return seq[idx], nil
}

func (f *fakeStudio) CancelTask(ctx context.Context, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, taskID)
	return nil
}

type fakeDownloader struct {
	mu   sync.Mutex
	path string
	err  error
	url  string
	key  string
}

func (f *fakeDownloader) Download(ctx context.Context, url, key string) (media.DownloadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return media.DownloadResult{}, f.err
	}
	f.url, f.key = url, key
	return media.DownloadResult{Path: f.path, Bytes: 2048}, nil
}

type fakeToolset struct {
	mu       sync.Mutex
	seconds  float64
	probeErr error
	muxErr   error
	muxVideo string
	muxAudio string
	muxOut   string
}

func (f *fakeToolset) ProbeDuration(ctx context.Context, path string) (float64, error) {
	if f.probeErr != nil {
		return 0, f.probeErr
	}
	return f.seconds, nil
}

func (f *fakeToolset) Mux(ctx context.Context, videoPath, audioPath, outPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.muxErr != nil {
		return f.muxErr
	}
	f.muxVideo, f.muxAudio, f.muxOut = videoPath, audioPath, outPath
	return nil
}

type runnerFixture struct {
	runner     *Runner
	store      *Store
	hub        *Hub
	files      *storage.FileStore
	studio     *fakeStudio
	narrator   *fakeNarrator
	downloader *fakeDownloader
	toolset    *fakeToolset
}

func newRunnerFixture(t *testing.T) *runnerFixture {
	t.Helper()
	files, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	f := &runnerFixture{
		store:      NewStore(),
		hub:        NewHub(),
		files:      files,
		studio:     newFakeStudio(),
		narrator:   &fakeNarrator{},
		downloader: &fakeDownloader{path: "/tmp/clip.mp4"},
		toolset:    &fakeToolset{seconds: 8.2},
	}
	runner, err := NewRunner(RunnerOptions{
		Store:         f.store,
		Hub:           f.hub,
		Files:         files,
		Narrator:      f.narrator,
		Studio:        f.studio,
		Downloader:    f.downloader,
		Media:         f.toolset,
		WaitBudget:    10 * time.Second,
		ImageInterval: time.Millisecond,
		VideoInterval: time.Millisecond,
		Logger:        zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	f.runner = runner
	return f
}

func (f *runnerFixture) scriptHappyPath() {
	f.studio.statuses["task-img"] = []jobs.Status{
		{State: domain.JobStatusRunning},
		{State: domain.JobStatusSucceeded, Output: []string{"https://cdn.example/frame.png"}},
	}
	f.studio.statuses["task-vid"] = []jobs.Status{
		{State: domain.JobStatusSucceeded, Output: []string{"https://cdn.example/clip.mp4"}},
	}
}

func TestExecuteProducesFinalVideo(t *testing.T) {
	f := newRunnerFixture(t)
	f.scriptHappyPath()
	run := f.store.Create(RunRequest{Narration: "hello world", VisualPrompt: "a neon city"})

	if err := f.runner.Execute(context.Background(), run.ID); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	got, _ := f.store.Get(run.ID)
	if got.Status != RunStatusSucceeded {
		t.Fatalf("run status = %q, want %q (error: %s)", got.Status, RunStatusSucceeded, got.Error)
	}
	if got.CompletedAt == nil || got.StartedAt == nil {
		t.Fatal("run timestamps not set")
	}
	if got.Artifacts.AudioSeconds != 8.2 {
		t.Fatalf("audio seconds = %v, want 8.2", got.Artifacts.AudioSeconds)
	}
	if got.Artifacts.ClipSeconds != 10 {
		t.Fatalf("clip seconds = %d, want 10", got.Artifacts.ClipSeconds)
	}
	if got.Artifacts.ImageTaskID != "task-img" || got.Artifacts.VideoTaskID != "task-vid" {
		t.Fatalf("task ids = %q/%q, want task-img/task-vid", got.Artifacts.ImageTaskID, got.Artifacts.VideoTaskID)
	}
	if got.Artifacts.ImageURL != "https://cdn.example/frame.png" {
		t.Fatalf("image url = %q", got.Artifacts.ImageURL)
	}
	if _, err := os.Stat(got.Artifacts.AudioPath); err != nil {
		t.Fatalf("narration audio missing: %v", err)
	}
	if !strings.HasSuffix(got.Artifacts.FinalPath, filepath.Join("final_output", "final_video_task-vid.mp4")) {
		t.Fatalf("final path = %q", got.Artifacts.FinalPath)
	}

	if f.studio.animateReq.ImageURL != "https://cdn.example/frame.png" {
		t.Fatalf("animate image url = %q", f.studio.animateReq.ImageURL)
	}
	if f.studio.animateReq.Duration != 10 {
		t.Fatalf("animate duration = %d, want 10", f.studio.animateReq.Duration)
	}
	if f.downloader.url != "https://cdn.example/clip.mp4" {
		t.Fatalf("download url = %q", f.downloader.url)
	}
	if f.downloader.key != media.VideoKey("task-vid") {
		t.Fatalf("download key = %q, want %q", f.downloader.key, media.VideoKey("task-vid"))
	}
	if f.toolset.muxVideo != "/tmp/clip.mp4" || f.toolset.muxAudio != got.Artifacts.AudioPath || f.toolset.muxOut != got.Artifacts.FinalPath {
		t.Fatalf("mux args = %q %q %q", f.toolset.muxVideo, f.toolset.muxAudio, f.toolset.muxOut)
	}
}

func TestExecuteStreamsProgressEvents(t *testing.T) {
	f := newRunnerFixture(t)
	f.scriptHappyPath()
	run := f.store.Create(RunRequest{Narration: "n", VisualPrompt: "v"})

	if err := f.runner.Execute(context.Background(), run.ID); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	events := f.hub.History(run.ID)
	if len(events) == 0 {
		t.Fatal("no events published")
	}
	if last := events[len(events)-1]; last.Kind != EventRunCompleted {
		t.Fatalf("last event kind = %q, want %q", last.Kind, EventRunCompleted)
	}

	imageProgress := 0
	for _, ev := range events {
		if ev.Kind == EventJobProgress && ev.Stage == StageImage {
			imageProgress++
			if ev.JobID != "task-img" {
				t.Fatalf("image progress job id = %q", ev.JobID)
			}
		}
	}
	if imageProgress != 2 {
		t.Fatalf("image progress events = %d, want 2", imageProgress)
	}
}

func TestExecuteNarrationFailureMarksRun(t *testing.T) {
	f := newRunnerFixture(t)
	f.narrator.err = errors.New("tts unavailable")
	run := f.store.Create(RunRequest{Narration: "n", VisualPrompt: "v"})

	err := f.runner.Execute(context.Background(), run.ID)
	if err == nil || !strings.Contains(err.Error(), "tts unavailable") {
		t.Fatalf("Execute() error = %v, want tts unavailable", err)
	}

	got, _ := f.store.Get(run.ID)
	if got.Status != RunStatusFailed {
		t.Fatalf("run status = %q, want %q", got.Status, RunStatusFailed)
	}
	if got.Stage != StageNarration {
		t.Fatalf("run stage = %q, want %q", got.Stage, StageNarration)
	}

	audioPath := filepath.Join(f.files.BasePath(), "generated_audio", "narration_"+run.ID+".mp3")
	if _, err := os.Stat(audioPath); !os.IsNotExist(err) {
		t.Fatalf("partial narration file left behind at %s", audioPath)
	}

	events := f.hub.History(run.ID)
	if last := events[len(events)-1]; last.Kind != EventRunFailed {
		t.Fatalf("last event kind = %q, want %q", last.Kind, EventRunFailed)
	}
}

func TestExecuteRemoteFailureMarksRun(t *testing.T) {
	f := newRunnerFixture(t)
	f.studio.statuses["task-img"] = []jobs.Status{
		{State: domain.JobStatusSucceeded, Output: []string{"https://cdn.example/frame.png"}},
	}
	f.studio.statuses["task-vid"] = []jobs.Status{
		{State: domain.JobStatusFailed, Reason: "moderation rejected the frame"},
	}
	run := f.store.Create(RunRequest{Narration: "n", VisualPrompt: "v"})

	err := f.runner.Execute(context.Background(), run.ID)
	if !errors.Is(err, domain.ErrRemoteFailed) {
		t.Fatalf("Execute() error = %v, want ErrRemoteFailed", err)
	}
	if !strings.Contains(err.Error(), "moderation rejected the frame") {
		t.Fatalf("Execute() error = %v, want vendor reason included", err)
	}

	got, _ := f.store.Get(run.ID)
	if got.Status != RunStatusFailed || got.Stage != StageAnimation {
		t.Fatalf("run = %q/%q, want FAILED/animation", got.Status, got.Stage)
	}
}

func TestExecuteTimeoutCancelsRemoteTask(t *testing.T) {
	f := newRunnerFixture(t)
	f.runner.waitBudget = 5 * time.Millisecond
	f.studio.statuses["task-img"] = []jobs.Status{{State: domain.JobStatusRunning}}
	run := f.store.Create(RunRequest{Narration: "n", VisualPrompt: "v"})

	err := f.runner.Execute(context.Background(), run.ID)
	if !errors.Is(err, domain.ErrTimedOut) {
		t.Fatalf("Execute() error = %v, want ErrTimedOut", err)
	}

	f.studio.mu.Lock()
	cancelled := append([]string(nil), f.studio.cancelled...)
	f.studio.mu.Unlock()
	if len(cancelled) != 1 || cancelled[0] != "task-img" {
		t.Fatalf("cancelled tasks = %v, want [task-img]", cancelled)
	}

	got, _ := f.store.Get(run.ID)
	if got.Status != RunStatusFailed {
		t.Fatalf("run status = %q, want %q", got.Status, RunStatusFailed)
	}
}

func TestStartRunsInBackground(t *testing.T) {
	f := newRunnerFixture(t)
	f.scriptHappyPath()

	run, err := f.runner.Start(context.Background(), RunRequest{Narration: "hello", VisualPrompt: "a city"})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if run.Status != RunStatusQueued {
		t.Fatalf("Start() run status = %q, want %q", run.Status, RunStatusQueued)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, _ := f.store.Get(run.ID)
		if got.Status == RunStatusSucceeded {
			break
		}
		if got.Status == RunStatusFailed {
			t.Fatalf("run failed: %s", got.Error)
		}
		if time.Now().After(deadline) {
			t.Fatalf("run still %q after deadline", got.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRunReturnsFinalSnapshot(t *testing.T) {
	f := newRunnerFixture(t)
	f.scriptHappyPath()

	run, err := f.runner.Run(context.Background(), RunRequest{Narration: "hello", VisualPrompt: "a city"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if run.Status != RunStatusSucceeded {
		t.Fatalf("Run() status = %q, want %q", run.Status, RunStatusSucceeded)
	}
	if run.Artifacts.FinalPath == "" {
		t.Fatalf("Run() final path is empty")
	}
}

func TestRunSurfacesFailure(t *testing.T) {
	f := newRunnerFixture(t)
	f.narrator.err = errors.New("voice service down")

	run, err := f.runner.Run(context.Background(), RunRequest{Narration: "hello", VisualPrompt: "a city"})
	if err == nil {
		t.Fatalf("Run() error = nil, want narration failure")
	}
	if run.Status != RunStatusFailed {
		t.Fatalf("Run() status = %q, want %q", run.Status, RunStatusFailed)
	}
}

func TestStartRejectsBlankRequests(t *testing.T) {
	f := newRunnerFixture(t)

	cases := []RunRequest{
		{Narration: "", VisualPrompt: "v"},
		{Narration: "   ", VisualPrompt: "v"},
		{Narration: "n", VisualPrompt: ""},
	}
	for _, req := range cases {
		if _, err := f.runner.Start(context.Background(), req); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Fatalf("Start(%+v) error = %v, want ErrInvalidRequest", req, err)
		}
	}
	if got := len(f.store.List()); got != 0 {
		t.Fatalf("rejected requests registered %d runs", got)
	}
}

func TestExecuteUnknownRun(t *testing.T) {
	f := newRunnerFixture(t)
	if err := f.runner.Execute(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Execute(missing) error = %v, want ErrNotFound", err)
	}
}

func TestNewRunnerRequiresCollaborators(t *testing.T) {
	if _, err := NewRunner(RunnerOptions{}); err == nil {
		t.Fatal("NewRunner(empty) expected error")
	}

	files, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	_, err = NewRunner(RunnerOptions{Store: NewStore(), Files: files})
	if err == nil || !strings.Contains(err.Error(), "narrator") {
		t.Fatalf("NewRunner() error = %v, want narrator requirement", err)
	}
}
