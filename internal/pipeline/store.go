package pipeline

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunStatus enumerates pipeline run lifecycle states.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "QUEUED"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusSucceeded RunStatus = "SUCCEEDED"
	RunStatusFailed    RunStatus = "FAILED"
)

// Stage enumerates the production stages of a run.
type Stage string

const (
	StageNarration Stage = "narration"
	StageImage     Stage = "image"
	StageAnimation Stage = "animation"
	StageDownload  Stage = "download"
	StageMux       Stage = "mux"
)

// RunRequest is the caller's ask: what to narrate and what to show.
type RunRequest struct {
	Narration    string `json:"narration"`
	VisualPrompt string `json:"visual_prompt"`
	Title        string `json:"title,omitempty"`
	Locale       string `json:"locale,omitempty"`
}

// Artifacts collects everything a run has produced so far.
type Artifacts struct {
	AudioPath    string  `json:"audio_path,omitempty"`
	AudioSeconds float64 `json:"audio_seconds,omitempty"`
	ClipSeconds  int     `json:"clip_seconds,omitempty"`
	ImageTaskID  string  `json:"image_task_id,omitempty"`
	ImageURL     string  `json:"image_url,omitempty"`
	VideoTaskID  string  `json:"video_task_id,omitempty"`
	VideoURL     string  `json:"video_url,omitempty"`
	VideoPath    string  `json:"video_path,omitempty"`
	FinalPath    string  `json:"final_path,omitempty"`
}

// Run is one narrated promo-video production.
type Run struct {
	ID          string     `json:"id"`
	Status      RunStatus  `json:"status"`
	Stage       Stage      `json:"stage,omitempty"`
	Request     RunRequest `json:"request"`
	Artifacts   Artifacts  `json:"artifacts"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Store keeps runs in memory. Nothing survives a restart; the service is a
// driver for remote work, not a system of record.
type Store struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewStore builds an empty Store.
func NewStore() *Store {
	return &Store{runs: make(map[string]*Run)}
}

// Create registers a queued run for the request and returns a snapshot.
func (s *Store) Create(req RunRequest) Run {
	run := &Run{
		ID:        uuid.NewString(),
		Status:    RunStatusQueued,
		Request:   req,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.runs[run.ID] = run
	s.mu.Unlock()
	return *run
}

// Get returns a snapshot of the run.
func (s *Store) Get(id string) (Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return Run{}, false
	}
	return *run, true
}

// List returns snapshots of all runs, newest first.
func (s *Store) List() []Run {
	s.mu.RLock()
	out := make([]Run, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, *run)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Update applies fn to the run under the store lock and returns the
// resulting snapshot.
func (s *Store) Update(id string, fn func(*Run)) (Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return Run{}, false
	}
	fn(run)
	return *run, true
}
