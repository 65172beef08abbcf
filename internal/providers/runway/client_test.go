package runway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"reelforge/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Options{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient() unexpected error: %v", err)
	}
	return client, srv
}

func TestGenerateImageSubmitsTask(t *testing.T) {
	var gotPath, gotAuth, gotVersion string
	var gotBody map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotVersion = r.Header.Get("X-Runway-Version")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "task-img-1"})
	}))

	id, err := client.GenerateImage(context.Background(), ImageRequest{Prompt: "a lighthouse at dusk"})
	if err != nil {
		t.Fatalf("GenerateImage() unexpected error: %v", err)
	}
	if id != "task-img-1" {
		t.Fatalf("GenerateImage() = %q, want %q", id, "task-img-1")
	}
	if gotPath != "/text_to_image" {
		t.Fatalf("path = %q, want /text_to_image", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("Authorization = %q, want bearer key", gotAuth)
	}
	if gotVersion != "2024-11-06" {
		t.Fatalf("X-Runway-Version = %q, want 2024-11-06", gotVersion)
	}
	if gotBody["model"] != "gen4_image" {
		t.Fatalf("model = %v, want gen4_image", gotBody["model"])
	}
	if gotBody["ratio"] != "1920:1080" {
		t.Fatalf("ratio = %v, want default 1920:1080", gotBody["ratio"])
	}
}

func TestGenerateImageModelOverride(t *testing.T) {
	var gotBody map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "task-img-2"})
	}))

	if _, err := client.GenerateImage(context.Background(), ImageRequest{Prompt: "p", Model: "gen3a_image"}); err != nil {
		t.Fatalf("GenerateImage() unexpected error: %v", err)
	}
	if gotBody["model"] != "gen3a_image" {
		t.Fatalf("model = %v, want per-request override", gotBody["model"])
	}
}

func TestGenerateImageMissingIDIsMalformed(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{})
	}))

	_, err := client.GenerateImage(context.Background(), ImageRequest{Prompt: "anything"})
	if !errors.Is(err, domain.ErrMalformedResponse) {
		t.Fatalf("GenerateImage() error = %v, want ErrMalformedResponse", err)
	}
}

func TestGenerateImageRequiresPrompt(t *testing.T) {
	client, err := NewClient(Options{APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient() unexpected error: %v", err)
	}
	if _, err := client.GenerateImage(context.Background(), ImageRequest{}); err == nil {
		t.Fatalf("GenerateImage() expected error for empty prompt")
	}
}

func TestGenerateImageRequiresCredentials(t *testing.T) {
	client, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("NewClient() unexpected error: %v", err)
	}
	_, err = client.GenerateImage(context.Background(), ImageRequest{Prompt: "x"})
	if !errors.Is(err, domain.ErrMissingCredentials) {
		t.Fatalf("GenerateImage() error = %v, want ErrMissingCredentials", err)
	}
}

func TestAnimateImageValidatesDuration(t *testing.T) {
	client, err := NewClient(Options{APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient() unexpected error: %v", err)
	}
	_, err = client.AnimateImage(context.Background(), VideoRequest{ImageURL: "https://cdn.example.com/a.png", Duration: 7})
	if err == nil {
		t.Fatalf("AnimateImage() expected error for 7s duration")
	}
}

func TestAnimateImageSubmitsTask(t *testing.T) {
	var gotBody map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/image_to_video" {
			t.Errorf("path = %q, want /image_to_video", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "task-vid-1"})
	}))

	id, err := client.AnimateImage(context.Background(), VideoRequest{
		ImageURL: "https://cdn.example.com/a.png",
		Prompt:   "slow dolly in",
		Duration: 10,
	})
	if err != nil {
		t.Fatalf("AnimateImage() unexpected error: %v", err)
	}
	if id != "task-vid-1" {
		t.Fatalf("AnimateImage() = %q, want task-vid-1", id)
	}
	if gotBody["model"] != "gen4_turbo" {
		t.Fatalf("model = %v, want gen4_turbo", gotBody["model"])
	}
	if gotBody["ratio"] != "720:1280" {
		t.Fatalf("ratio = %v, want default 720:1280", gotBody["ratio"])
	}
	if gotBody["duration"] != float64(10) {
		t.Fatalf("duration = %v, want 10", gotBody["duration"])
	}
}

func TestTaskStatusMapsStates(t *testing.T) {
	cases := []struct {
		name    string
		payload map[string]any
		want    domain.JobStatus
		outputs int
		reason  string
	}{
		{name: "running", payload: map[string]any{"id": "t", "status": "RUNNING"}, want: domain.JobStatusRunning},
		{name: "succeeded", payload: map[string]any{"id": "t", "status": "SUCCEEDED", "output": []string{"https://cdn.example.com/v.mp4"}}, want: domain.JobStatusSucceeded, outputs: 1},
		{name: "failed", payload: map[string]any{"id": "t", "status": "FAILED", "failure": "content policy"}, want: domain.JobStatusFailed, reason: "content policy"},
		{name: "throttled", payload: map[string]any{"id": "t", "status": "THROTTLED"}, want: domain.JobStatus("THROTTLED")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(tc.payload)
			}))
			st, err := client.TaskStatus(context.Background(), "t")
			if err != nil {
				t.Fatalf("TaskStatus() unexpected error: %v", err)
			}
			if st.State != tc.want {
				t.Fatalf("State = %q, want %q", st.State, tc.want)
			}
			if len(st.Output) != tc.outputs {
				t.Fatalf("Output = %v, want %d entries", st.Output, tc.outputs)
			}
			if st.Reason != tc.reason {
				t.Fatalf("Reason = %q, want %q", st.Reason, tc.reason)
			}
		})
	}
}

func TestTaskStatusMissingStatusIsMalformed(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "t"})
	}))
	_, err := client.TaskStatus(context.Background(), "t")
	if !errors.Is(err, domain.ErrMalformedResponse) {
		t.Fatalf("TaskStatus() error = %v, want ErrMalformedResponse", err)
	}
}

func TestTaskStatusVendorError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"error": "upstream unavailable"})
	}))
	_, err := client.TaskStatus(context.Background(), "t")
	if err == nil {
		t.Fatalf("TaskStatus() expected error for 502")
	}
}

func TestCancelTaskUsesDelete(t *testing.T) {
	var gotMethod, gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	if err := client.CancelTask(context.Background(), "task-9"); err != nil {
		t.Fatalf("CancelTask() unexpected error: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Fatalf("method = %q, want DELETE", gotMethod)
	}
	if gotPath != "/tasks/task-9" {
		t.Fatalf("path = %q, want /tasks/task-9", gotPath)
	}
}
