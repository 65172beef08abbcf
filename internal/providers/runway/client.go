package runway

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
	"reelforge/internal/jobs"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = fmt.Errorf("runway: api key is required: %w", domain.ErrMissingCredentials)

// Options configures the Runway generation client.
type Options struct {
	APIKey         string
	BaseURL        string
	Version        string
	ImageModel     string
	VideoModel     string
	HTTPClient     *http.Client
	Logger         zerolog.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the Runway task API: text-to-image and
// image-to-video submission, task status, and task cancellation.
type Client struct {
	apiKey     string
	baseURL    string
	version    string
	imageModel string
	videoModel string
	httpClient *http.Client
	logger     zerolog.Logger
}

// ImageRequest captures the inputs for a text-to-image submission. Model
// overrides the client default for this one submission.
type ImageRequest struct {
	Prompt string
	Model  string
	Ratio  string
}

// VideoRequest captures the inputs for an image-to-video submission.
// Duration is in seconds; the vendor only renders 5s or 10s clips.
type VideoRequest struct {
	ImageURL string
	Prompt   string
	Model    string
	Ratio    string
	Duration int
}

type textToImageRequest struct {
	Model      string `json:"model"`
	PromptText string `json:"promptText"`
	Ratio      string `json:"ratio"`
}

type imageToVideoRequest struct {
	Model       string `json:"model"`
	PromptImage string `json:"promptImage"`
	PromptText  string `json:"promptText,omitempty"`
	Ratio       string `json:"ratio"`
	Duration    int    `json:"duration"`
}

type taskSubmitResponse struct {
	ID string `json:"id"`
}

type taskStatusResponse struct {
	ID      string   `json:"id"`
	Status  string   `json:"status"`
	Output  []string `json:"output"`
	Failure string   `json:"failure"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.dev.runwayml.com/v1"
	}
	version := strings.TrimSpace(opts.Version)
	if version == "" {
		version = "2024-11-06"
	}
	imageModel := strings.TrimSpace(opts.ImageModel)
	if imageModel == "" {
		imageModel = "gen4_image"
	}
	videoModel := strings.TrimSpace(opts.VideoModel)
	if videoModel == "" {
		videoModel = "gen4_turbo"
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		version:    version,
		imageModel: imageModel,
		videoModel: videoModel,
		httpClient: httpClient,
		logger:     opts.Logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// GenerateImage submits a text-to-image task and returns its id. The task
// settles asynchronously; poll TaskStatus to observe it.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", errors.New("runway: prompt is required")
	}
	ratio := strings.TrimSpace(req.Ratio)
	if ratio == "" {
		ratio = "1920:1080"
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.imageModel
	}
	payload := textToImageRequest{Model: model, PromptText: prompt, Ratio: ratio}

	var decoded taskSubmitResponse
	if err := c.invoke(ctx, http.MethodPost, "/text_to_image", payload, &decoded); err != nil {
		return "", err
	}
	if decoded.ID == "" {
		return "", fmt.Errorf("runway: text_to_image response missing task id: %w", domain.ErrMalformedResponse)
	}
	c.logger.Debug().Str("task_id", decoded.ID).Str("model", model).Msg("runway: image task submitted")
	return decoded.ID, nil
}

// AnimateImage submits an image-to-video task and returns its id.
func (c *Client) AnimateImage(ctx context.Context, req VideoRequest) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}
	imageURL := strings.TrimSpace(req.ImageURL)
	if imageURL == "" {
		return "", errors.New("runway: prompt image is required")
	}
	if req.Duration != 5 && req.Duration != 10 {
		return "", fmt.Errorf("runway: duration %ds unsupported, want 5 or 10", req.Duration)
	}
	ratio := strings.TrimSpace(req.Ratio)
	if ratio == "" {
		ratio = "720:1280"
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.videoModel
	}
	payload := imageToVideoRequest{
		Model:       model,
		PromptImage: imageURL,
		PromptText:  strings.TrimSpace(req.Prompt),
		Ratio:       ratio,
		Duration:    req.Duration,
	}

	var decoded taskSubmitResponse
	if err := c.invoke(ctx, http.MethodPost, "/image_to_video", payload, &decoded); err != nil {
		return "", err
	}
	if decoded.ID == "" {
		return "", fmt.Errorf("runway: image_to_video response missing task id: %w", domain.ErrMalformedResponse)
	}
	c.logger.Debug().Str("task_id", decoded.ID).Str("model", model).Int("duration", req.Duration).Msg("runway: video task submitted")
	return decoded.ID, nil
}

// TaskStatus fetches the current state of a task. It satisfies
// jobs.FetchFunc, carrying vendor states through untranslated since they
// share the PENDING/RUNNING/SUCCEEDED/FAILED vocabulary.
func (c *Client) TaskStatus(ctx context.Context, taskID string) (jobs.Status, error) {
	if !c.HasCredentials() {
		return jobs.Status{}, ErrMissingAPIKey
	}
	var decoded taskStatusResponse
	if err := c.invoke(ctx, http.MethodGet, "/tasks/"+taskID, nil, &decoded); err != nil {
		return jobs.Status{}, err
	}
	if decoded.Status == "" {
		return jobs.Status{}, fmt.Errorf("runway: task %s response missing status: %w", taskID, domain.ErrMalformedResponse)
	}
	return jobs.Status{
		State:  domain.JobStatus(decoded.Status),
		Output: decoded.Output,
		Reason: decoded.Failure,
	}, nil
}

// CancelTask aborts a task. It satisfies jobs.CancelFunc.
func (c *Client) CancelTask(ctx context.Context, taskID string) error {
	if !c.HasCredentials() {
		return ErrMissingAPIKey
	}
	if err := c.invoke(ctx, http.MethodDelete, "/tasks/"+taskID, nil, nil); err != nil {
		return err
	}
	c.logger.Debug().Str("task_id", taskID).Msg("runway: task cancelled")
	return nil
}

func (c *Client) invoke(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("runway: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("runway: build request: %w", err)
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("X-Runway-Version", c.version)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("runway: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("runway: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Error != "" {
			return fmt.Errorf("runway: %s (status %d)", detail.Error, resp.StatusCode)
		}
		return fmt.Errorf("runway: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("runway: decode response: %w", err)
	}
	return nil
}
