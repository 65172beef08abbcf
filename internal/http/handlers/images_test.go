package handlers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"reelforge/internal/providers/stability"
)

// withImageUpstream points the app's image client at a fake vendor.
func (f *appFixture) withImageUpstream(t *testing.T, handler http.Handler) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := stability.NewClient(stability.Options{APIKey: "k", BaseURL: srv.URL, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("stability.NewClient() error = %v", err)
	}
	f.app.Images = client
}

func TestImagesGenerateReturnsBytes(t *testing.T) {
	f := newAppFixture(t)
	f.withImageUpstream(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2beta/stable-image/generate/core" {
			t.Errorf("upstream path = %q", r.URL.Path)
		}
		w.Header().Set("seed", "1234")
		w.Header().Set("finish-reason", "SUCCESS")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("png-bytes"))
	}))

	rec := postJSON(t, f.router, "/v1/images", `{"prompt":"a lighthouse at dusk","output_format":"png"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("Content-Type = %q, want image/png", ct)
	}
	if seed := rec.Header().Get("X-Seed"); seed != "1234" {
		t.Fatalf("X-Seed = %q, want 1234", seed)
	}
	if rec.Body.String() != "png-bytes" {
		t.Fatalf("body = %q, want image bytes", rec.Body.String())
	}

	key := rec.Header().Get("X-Storage-Key")
	if key != "generated_images/generated_1234.png" {
		t.Fatalf("X-Storage-Key = %q", key)
	}
	path, err := f.files.Path(key)
	if err != nil {
		t.Fatalf("Path() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stored image missing: %v", err)
	}
}

func TestImagesGenerateContentFiltered(t *testing.T) {
	f := newAppFixture(t)
	f.withImageUpstream(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("finish-reason", "CONTENT_FILTERED")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("blurred"))
	}))

	rec := postJSON(t, f.router, "/v1/images", `{"prompt":"something"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
	if !strings.Contains(rec.Body.String(), "content_filtered") {
		t.Fatalf("body = %q, want content_filtered envelope", rec.Body.String())
	}
}

func TestImagesGenerateUpstreamFailure(t *testing.T) {
	f := newAppFixture(t)
	f.withImageUpstream(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"name":"server_error","errors":["gpu pool exhausted"]}`))
	}))

	rec := postJSON(t, f.router, "/v1/images", `{"prompt":"x"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
	if !strings.Contains(rec.Body.String(), "upstream_failed") {
		t.Fatalf("body = %q, want upstream_failed envelope", rec.Body.String())
	}
}

func TestImagesGenerateValidation(t *testing.T) {
	f := newAppFixture(t)

	rec := postJSON(t, f.router, "/v1/images", `{"prompt":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank prompt status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = postJSON(t, f.router, "/v1/images", `{"prompt":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("broken json status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestImagesGenerateWithoutCredentials(t *testing.T) {
	f := newAppFixture(t)
	client, err := stability.NewClient(stability.Options{Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("stability.NewClient() error = %v", err)
	}
	f.app.Images = client

	rec := postJSON(t, f.router, "/v1/images", `{"prompt":"x"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if !strings.Contains(rec.Body.String(), "not_configured") {
		t.Fatalf("body = %q, want not_configured envelope", rec.Body.String())
	}
}
