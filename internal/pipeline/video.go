// Package pipeline orchestrates narrated promo-video production: narration
// synthesis, frame generation, animation, artifact download, and the final
// mux, with per-run progress streamed to subscribers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"reelforge/internal/domain"
	"reelforge/internal/jobs"
	"reelforge/internal/media"
	"reelforge/internal/providers/elevenlabs"
	"reelforge/internal/providers/runway"
	"reelforge/internal/storage"
)

// Narrator turns text into speech audio, streaming into w.
type Narrator interface {
	Synthesize(ctx context.Context, req elevenlabs.SpeechRequest, w io.Writer) (int64, error)
}

// VisualStudio renders and animates frames through asynchronous remote tasks.
type VisualStudio interface {
	GenerateImage(ctx context.Context, req runway.ImageRequest) (string, error)
	AnimateImage(ctx context.Context, req runway.VideoRequest) (string, error)
	TaskStatus(ctx context.Context, taskID string) (jobs.Status, error)
	CancelTask(ctx context.Context, taskID string) error
}

// ArtifactDownloader streams a finished artifact locator to local storage.
type ArtifactDownloader interface {
	Download(ctx context.Context, url, key string) (media.DownloadResult, error)
}

// MediaToolset probes and assembles local media files.
type MediaToolset interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
	Mux(ctx context.Context, videoPath, audioPath, outPath string) error
}

var (
	_ Narrator           = (*elevenlabs.Client)(nil)
	_ VisualStudio       = (*runway.Client)(nil)
	_ ArtifactDownloader = (*media.Downloader)(nil)
	_ MediaToolset       = (*media.FFmpeg)(nil)
)

// RunnerOptions wires a Runner's collaborators. Zero intervals and budget
// fall back to the poll defaults.
type RunnerOptions struct {
	Store      *Store
	Hub        *Hub
	Files      *storage.FileStore
	Narrator   Narrator
	Studio     VisualStudio
	Downloader ArtifactDownloader
	Media      MediaToolset

	WaitBudget    time.Duration
	ImageInterval time.Duration
	VideoInterval time.Duration
	Logger        zerolog.Logger
}

// Runner executes video runs stage by stage.
type Runner struct {
	store      *Store
	hub        *Hub
	files      *storage.FileStore
	narrator   Narrator
	studio     VisualStudio
	downloader ArtifactDownloader
	toolset    MediaToolset

	waitBudget    time.Duration
	imageInterval time.Duration
	videoInterval time.Duration
	logger        zerolog.Logger
}

// NewRunner validates opts and builds a Runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Store == nil {
		return nil, errors.New("pipeline: run store is required")
	}
	if opts.Files == nil {
		return nil, errors.New("pipeline: file store is required")
	}
	if opts.Narrator == nil {
		return nil, errors.New("pipeline: narrator is required")
	}
	if opts.Studio == nil {
		return nil, errors.New("pipeline: visual studio is required")
	}
	if opts.Downloader == nil {
		return nil, errors.New("pipeline: downloader is required")
	}
	if opts.Media == nil {
		return nil, errors.New("pipeline: media toolset is required")
	}
	if opts.Hub == nil {
		opts.Hub = NewHub()
	}
	return &Runner{
		store:         opts.Store,
		hub:           opts.Hub,
		files:         opts.Files,
		narrator:      opts.Narrator,
		studio:        opts.Studio,
		downloader:    opts.Downloader,
		toolset:       opts.Media,
		waitBudget:    opts.WaitBudget,
		imageInterval: opts.ImageInterval,
		videoInterval: opts.VideoInterval,
		logger:        opts.Logger,
	}, nil
}

// Hub exposes the event hub so transport layers can subscribe clients.
func (r *Runner) Hub() *Hub { return r.hub }

// Store exposes the run registry.
func (r *Runner) Store() *Store { return r.store }

// Start validates the request, registers a run, and executes it in the
// background. The returned Run is the queued snapshot; progress flows
// through the store and the hub.
func (r *Runner) Start(ctx context.Context, req RunRequest) (Run, error) {
	run, err := r.submit(req)
	if err != nil {
		return Run{}, err
	}
	go func() {
		// The request context dies with the HTTP response; the run must not.
		_ = r.Execute(context.WithoutCancel(ctx), run.ID)
	}()
	return run, nil
}

// Run executes a run to completion in the calling goroutine and returns the
// final snapshot. Callers that want fire-and-forget use Start instead.
func (r *Runner) Run(ctx context.Context, req RunRequest) (Run, error) {
	run, err := r.submit(req)
	if err != nil {
		return Run{}, err
	}
	execErr := r.Execute(ctx, run.ID)
	final, _ := r.store.Get(run.ID)
	return final, execErr
}

func (r *Runner) submit(req RunRequest) (Run, error) {
	req.Narration = strings.TrimSpace(req.Narration)
	req.VisualPrompt = strings.TrimSpace(req.VisualPrompt)
	if req.Narration == "" {
		return Run{}, fmt.Errorf("pipeline: narration text is required: %w", domain.ErrInvalidRequest)
	}
	if req.VisualPrompt == "" {
		return Run{}, fmt.Errorf("pipeline: visual prompt is required: %w", domain.ErrInvalidRequest)
	}
	return r.store.Create(req), nil
}

// Execute drives the run through narration, image, animation, download, and
// mux. Failures mark the run FAILED and are also returned.
func (r *Runner) Execute(ctx context.Context, runID string) error {
	run, ok := r.store.Get(runID)
	if !ok {
		return fmt.Errorf("pipeline: run %s: %w", runID, domain.ErrNotFound)
	}
	req := run.Request

	runsStarted.Inc()
	started := time.Now().UTC()
	r.store.Update(runID, func(run *Run) {
		run.Status = RunStatusRunning
		run.StartedAt = &started
	})

	audioPath, clip, err := r.narrate(ctx, runID, req)
	if err != nil {
		return r.fail(runID, StageNarration, err)
	}

	r.enterStage(runID, StageImage, "submitting text-to-image task")
	imageTask, err := r.studio.GenerateImage(ctx, runway.ImageRequest{Prompt: req.VisualPrompt})
	if err != nil {
		return r.fail(runID, StageImage, err)
	}
	r.store.Update(runID, func(run *Run) { run.Artifacts.ImageTaskID = imageTask })
	imageResult, err := r.awaitTask(ctx, runID, StageImage, domain.JobKindImage, imageTask)
	if err != nil {
		return r.fail(runID, StageImage, err)
	}
	imageURL := imageResult.First()
	r.store.Update(runID, func(run *Run) { run.Artifacts.ImageURL = imageURL })
	r.completeStage(runID, StageImage, fmt.Sprintf("frame rendered after %d polls", imageResult.Polls))

	r.enterStage(runID, StageAnimation, "submitting image-to-video task")
	videoTask, err := r.studio.AnimateImage(ctx, runway.VideoRequest{
		ImageURL: imageURL,
		Prompt:   req.VisualPrompt,
		Duration: clip,
	})
	if err != nil {
		return r.fail(runID, StageAnimation, err)
	}
	r.store.Update(runID, func(run *Run) { run.Artifacts.VideoTaskID = videoTask })
	videoResult, err := r.awaitTask(ctx, runID, StageAnimation, domain.JobKindVideo, videoTask)
	if err != nil {
		return r.fail(runID, StageAnimation, err)
	}
	videoURL := videoResult.First()
	r.store.Update(runID, func(run *Run) { run.Artifacts.VideoURL = videoURL })
	r.completeStage(runID, StageAnimation, fmt.Sprintf("clip rendered after %d polls", videoResult.Polls))

	r.enterStage(runID, StageDownload, "downloading rendered clip")
	dl, err := r.downloader.Download(ctx, videoURL, media.VideoKey(videoTask))
	if err != nil {
		return r.fail(runID, StageDownload, err)
	}
	r.store.Update(runID, func(run *Run) { run.Artifacts.VideoPath = dl.Path })
	r.completeStage(runID, StageDownload, fmt.Sprintf("clip saved, %d bytes", dl.Bytes))

	r.enterStage(runID, StageMux, "muxing narration over clip")
	finalPath, err := r.files.Path(media.FinalKey(videoTask))
	if err != nil {
		return r.fail(runID, StageMux, err)
	}
	if err := r.toolset.Mux(ctx, dl.Path, audioPath, finalPath); err != nil {
		return r.fail(runID, StageMux, err)
	}
	r.store.Update(runID, func(run *Run) { run.Artifacts.FinalPath = finalPath })
	r.completeStage(runID, StageMux, "final video assembled")

	done := time.Now().UTC()
	r.store.Update(runID, func(run *Run) {
		run.Status = RunStatusSucceeded
		run.CompletedAt = &done
	})
	runsCompleted.WithLabelValues(string(RunStatusSucceeded)).Inc()
	r.hub.Publish(Event{RunID: runID, Kind: EventRunCompleted, Message: "run succeeded"})
	r.hub.CloseRun(runID)
	r.logger.Info().Str("run_id", runID).Str("final_path", finalPath).Msg("pipeline: run succeeded")
	return nil
}

// narrate synthesizes the narration, measures it, and picks the clip length.
func (r *Runner) narrate(ctx context.Context, runID string, req RunRequest) (string, int, error) {
	r.enterStage(runID, StageNarration, "synthesizing narration")
	w, audioPath, err := r.files.Create(media.AudioKey("narration_" + runID))
	if err != nil {
		return "", 0, err
	}
	written, err := r.narrator.Synthesize(ctx, elevenlabs.SpeechRequest{Text: req.Narration}, w)
	if err != nil {
		w.Close()
		os.Remove(audioPath)
		return "", 0, err
	}
	if err := w.Close(); err != nil {
		return "", 0, err
	}

	seconds, err := r.toolset.ProbeDuration(ctx, audioPath)
	if err != nil {
		return "", 0, err
	}
	clip := media.ClipSeconds(seconds)
	r.store.Update(runID, func(run *Run) {
		run.Artifacts.AudioPath = audioPath
		run.Artifacts.AudioSeconds = seconds
		run.Artifacts.ClipSeconds = clip
	})
	r.completeStage(runID, StageNarration, fmt.Sprintf("narration ready: %d bytes, %.1fs audio, %ds clip", written, seconds, clip))
	return audioPath, clip, nil
}

// awaitTask polls one remote task to a terminal state, forwarding each
// observation to the run's event stream.
func (r *Runner) awaitTask(ctx context.Context, runID string, stage Stage, kind domain.JobKind, taskID string) (domain.JobResult, error) {
	interval := r.imageInterval
	if kind == domain.JobKindVideo {
		interval = r.videoInterval
	}
	poller, err := jobs.New(jobs.Options{
		Kind:     kind,
		Interval: interval,
		Budget:   r.waitBudget,
		Fetch:    r.studio.TaskStatus,
		Cancel:   r.studio.CancelTask,
		OnEvent: func(ev jobs.Event) {
			r.hub.Publish(Event{
				RunID:   runID,
				Kind:    EventJobProgress,
				Stage:   stage,
				JobID:   ev.JobID,
				Status:  string(ev.Status),
				Poll:    ev.Poll,
				Elapsed: ev.Elapsed,
			})
		},
		Logger: r.logger,
	})
	if err != nil {
		return domain.JobResult{}, err
	}
	return poller.Wait(ctx, taskID)
}

func (r *Runner) enterStage(runID string, stage Stage, message string) {
	r.store.Update(runID, func(run *Run) { run.Stage = stage })
	r.hub.Publish(Event{RunID: runID, Kind: EventStageStarted, Stage: stage, Message: message})
	r.logger.Info().Str("run_id", runID).Str("stage", string(stage)).Msg("pipeline: " + message)
}

func (r *Runner) completeStage(runID string, stage Stage, message string) {
	r.hub.Publish(Event{RunID: runID, Kind: EventStageCompleted, Stage: stage, Message: message})
}

// fail records the failure on the run, emits the terminal events, and hands
// the error back for the synchronous caller.
func (r *Runner) fail(runID string, stage Stage, err error) error {
	done := time.Now().UTC()
	r.store.Update(runID, func(run *Run) {
		run.Status = RunStatusFailed
		run.Error = err.Error()
		run.CompletedAt = &done
	})
	stageFailures.WithLabelValues(string(stage)).Inc()
	runsCompleted.WithLabelValues(string(RunStatusFailed)).Inc()
	r.hub.Publish(Event{RunID: runID, Kind: EventStageFailed, Stage: stage, Message: err.Error()})
	r.hub.Publish(Event{RunID: runID, Kind: EventRunFailed, Message: err.Error()})
	r.hub.CloseRun(runID)
	r.logger.Error().Err(err).Str("run_id", runID).Str("stage", string(stage)).Msg("pipeline: run failed")
	return err
}
