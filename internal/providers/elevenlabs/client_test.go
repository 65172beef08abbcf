package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"reelforge/internal/domain"
)

func TestSynthesizeStreamsAudio(t *testing.T) {
	audio := []byte("mp3-bytes-here")
	var gotPath, gotKey, gotFormat string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		gotFormat = r.URL.Query().Get("output_format")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write(audio)
	}))
	defer srv.Close()

	client, err := NewClient(Options{APIKey: "xi-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient() unexpected error: %v", err)
	}

	var buf bytes.Buffer
	n, err := client.Synthesize(context.Background(), SpeechRequest{Text: "welcome to the demo"}, &buf)
	if err != nil {
		t.Fatalf("Synthesize() unexpected error: %v", err)
	}
	if n != int64(len(audio)) {
		t.Fatalf("Synthesize() wrote %d bytes, want %d", n, len(audio))
	}
	if !bytes.Equal(buf.Bytes(), audio) {
		t.Fatalf("streamed %q, want served audio", buf.Bytes())
	}
	if gotPath != "/v1/text-to-speech/21m00Tcm4TlvDq8ikWAM" {
		t.Fatalf("path = %q, want default voice path", gotPath)
	}
	if gotFormat != "mp3_44100_128" {
		t.Fatalf("output_format = %q, want mp3_44100_128", gotFormat)
	}
	if gotKey != "xi-key" {
		t.Fatalf("xi-api-key = %q, want xi-key", gotKey)
	}
	if gotBody["model_id"] != "eleven_multilingual_v2" {
		t.Fatalf("model_id = %v, want default model", gotBody["model_id"])
	}
}

func TestSynthesizeOverridesVoice(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client, err := NewClient(Options{APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient() unexpected error: %v", err)
	}
	var buf bytes.Buffer
	if _, err := client.Synthesize(context.Background(), SpeechRequest{Text: "hi", VoiceID: "custom-voice"}, &buf); err != nil {
		t.Fatalf("Synthesize() unexpected error: %v", err)
	}
	if gotPath != "/v1/text-to-speech/custom-voice" {
		t.Fatalf("path = %q, want custom voice path", gotPath)
	}
}

func TestSynthesizeVendorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"detail": map[string]string{"status": "invalid_api_key", "message": "API key invalid"},
		})
	}))
	defer srv.Close()

	client, err := NewClient(Options{APIKey: "bad", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient() unexpected error: %v", err)
	}
	var buf bytes.Buffer
	_, err = client.Synthesize(context.Background(), SpeechRequest{Text: "hi"}, &buf)
	if err == nil || !strings.Contains(err.Error(), "API key invalid") {
		t.Fatalf("Synthesize() error = %v, want vendor detail", err)
	}
}

func TestSynthesizeRequiresTextAndKey(t *testing.T) {
	client, err := NewClient(Options{APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient() unexpected error: %v", err)
	}
	var buf bytes.Buffer
	if _, err := client.Synthesize(context.Background(), SpeechRequest{}, &buf); err == nil {
		t.Fatalf("Synthesize() expected error for empty text")
	}

	noKey, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("NewClient() unexpected error: %v", err)
	}
	if _, err := noKey.Synthesize(context.Background(), SpeechRequest{Text: "hi"}, &buf); !errors.Is(err, domain.ErrMissingCredentials) {
		t.Fatalf("Synthesize() error = %v, want ErrMissingCredentials", err)
	}
}
