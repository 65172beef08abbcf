package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"reelforge/internal/domain"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = fmt.Errorf("elevenlabs: api key is required: %w", domain.ErrMissingCredentials)

// Options configures the ElevenLabs text-to-speech client.
type Options struct {
	APIKey         string
	BaseURL        string
	VoiceID        string
	ModelID        string
	OutputFormat   string
	HTTPClient     *http.Client
	Logger         zerolog.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the ElevenLabs text-to-speech API.
type Client struct {
	apiKey       string
	baseURL      string
	voiceID      string
	modelID      string
	outputFormat string
	httpClient   *http.Client
	logger       zerolog.Logger
}

// SpeechRequest captures the inputs for one synthesis call. Empty fields
// fall back to the client's configured defaults.
type SpeechRequest struct {
	Text         string
	VoiceID      string
	ModelID      string
	OutputFormat string
}

type speechPayload struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

type errorDetail struct {
	Detail struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"detail"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.elevenlabs.io"
	}
	voiceID := strings.TrimSpace(opts.VoiceID)
	if voiceID == "" {
		voiceID = "21m00Tcm4TlvDq8ikWAM"
	}
	modelID := strings.TrimSpace(opts.ModelID)
	if modelID == "" {
		modelID = "eleven_multilingual_v2"
	}
	outputFormat := strings.TrimSpace(opts.OutputFormat)
	if outputFormat == "" {
		outputFormat = "mp3_44100_128"
	}
	return &Client{
		apiKey:       strings.TrimSpace(opts.APIKey),
		baseURL:      baseURL,
		voiceID:      voiceID,
		modelID:      modelID,
		outputFormat: outputFormat,
		httpClient:   httpClient,
		logger:       opts.Logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Synthesize renders narration audio for the text and streams it into w,
// returning the number of audio bytes written.
func (c *Client) Synthesize(ctx context.Context, req SpeechRequest, w io.Writer) (int64, error) {
	if !c.HasCredentials() {
		return 0, ErrMissingAPIKey
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return 0, errors.New("elevenlabs: text is required")
	}
	voiceID := strings.TrimSpace(req.VoiceID)
	if voiceID == "" {
		voiceID = c.voiceID
	}
	modelID := strings.TrimSpace(req.ModelID)
	if modelID == "" {
		modelID = c.modelID
	}
	format := strings.TrimSpace(req.OutputFormat)
	if format == "" {
		format = c.outputFormat
	}

	body, err := json.Marshal(speechPayload{Text: text, ModelID: modelID})
	if err != nil {
		return 0, fmt.Errorf("elevenlabs: encode request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s", c.baseURL, voiceID, format)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("elevenlabs: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		var detail errorDetail
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Detail.Message != "" {
			return 0, fmt.Errorf("elevenlabs: %s (%s)", detail.Detail.Message, detail.Detail.Status)
		}
		return 0, fmt.Errorf("elevenlabs: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	written, err := io.Copy(w, resp.Body)
	if err != nil {
		return written, fmt.Errorf("elevenlabs: stream audio: %w", err)
	}
	c.logger.Debug().
		Str("voice_id", voiceID).
		Str("model_id", modelID).
		Int64("bytes", written).
		Msg("elevenlabs: narration synthesized")
	return written, nil
}
