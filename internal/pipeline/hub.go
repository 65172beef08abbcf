package pipeline

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event kinds published over the run stream.
const (
	EventStageStarted   = "stage_started"
	EventStageCompleted = "stage_completed"
	EventStageFailed    = "stage_failed"
	EventJobProgress    = "job_progress"
	EventRunCompleted   = "run_completed"
	EventRunFailed      = "run_failed"
)

// replayLimit bounds the per-run event history kept for late subscribers.
const replayLimit = 256

// Event is one observable step of a run.
type Event struct {
	RunID   string    `json:"run_id"`
	Kind    string    `json:"kind"`
	Stage   Stage     `json:"stage,omitempty"`
	Message string    `json:"message,omitempty"`
	JobID   string    `json:"job_id,omitempty"`
	Status  string    `json:"status,omitempty"`
	Poll    int       `json:"poll,omitempty"`
	Elapsed float64   `json:"elapsed_seconds,omitempty"`
	Time    time.Time `json:"time"`
}

// Hub fans run events out to WebSocket subscribers. Events are buffered per
// run so a subscriber arriving mid-run sees the history before live ones.
type Hub struct {
	mu      sync.Mutex
	history map[string][]Event
	subs    map[string][]*websocket.Conn
}

// NewHub builds an empty Hub.
func NewHub() *Hub {
	return &Hub{
		history: make(map[string][]Event),
		subs:    make(map[string][]*websocket.Conn),
	}
}

// Publish records the event and pushes it to the run's subscribers.
// Connections that fail to accept the write are dropped.
func (h *Hub) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	events := append(h.history[ev.RunID], ev)
	if len(events) > replayLimit {
		events = events[len(events)-replayLimit:]
	}
	h.history[ev.RunID] = events

	kept := h.subs[ev.RunID][:0]
	for _, conn := range h.subs[ev.RunID] {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			continue
		}
		kept = append(kept, conn)
	}
	h.subs[ev.RunID] = kept
}

// Subscribe replays the run's buffered events to conn and registers it for
// live ones. A replay write failure closes the connection unregistered.
func (h *Hub) Subscribe(runID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ev := range h.history[runID] {
		payload, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			return
		}
	}
	h.subs[runID] = append(h.subs[runID], conn)
}

// Unsubscribe removes conn from the run's subscriber list.
func (h *Hub) Unsubscribe(runID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subs[runID]
	for i, c := range subs {
		if c == conn {
			h.subs[runID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

// CloseRun closes and forgets the run's subscribers. History stays around
// so the stream endpoint can replay finished runs.
func (h *Hub) CloseRun(runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conn := range h.subs[runID] {
		conn.Close()
	}
	delete(h.subs, runID)
}

// History returns a copy of the run's buffered events.
func (h *Hub) History(runID string) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	events := h.history[runID]
	out := make([]Event, len(events))
	copy(out, events)
	return out
}
