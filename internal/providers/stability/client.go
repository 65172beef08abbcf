package stability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"reelforge/internal/domain"
	"reelforge/internal/jobs"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = fmt.Errorf("stability: api key is required: %w", domain.ErrMissingCredentials)

const finishContentFiltered = "CONTENT_FILTERED"

// Options configures the Stability image client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         zerolog.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the Stability v2beta image APIs: the
// synchronous core generation endpoint and the asynchronous edit flow.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// GenerateRequest captures the inputs for a synchronous core generation.
type GenerateRequest struct {
	Prompt         string
	NegativePrompt string
	AspectRatio    string
	Seed           int
	OutputFormat   string
	StylePreset    string
}

// GenerateResult is a finished synchronous generation.
type GenerateResult struct {
	Data         []byte
	Seed         string
	FinishReason string
	Format       string
}

// FileName derives the conventional local name for the artifact.
func (r *GenerateResult) FileName() string {
	seed := r.Seed
	if seed == "" {
		seed = "0"
	}
	format := r.Format
	if format == "" {
		format = "png"
	}
	return fmt.Sprintf("generated_%s.%s", seed, format)
}

// EditRequest captures the inputs for an asynchronous edit submission.
type EditRequest struct {
	// Operation selects the edit endpoint, e.g. "search-and-replace".
	Operation      string
	Image          io.Reader
	ImageName      string
	Prompt         string
	SearchPrompt   string
	NegativePrompt string
	Seed           int
	OutputFormat   string
}

type submitResponse struct {
	ID string `json:"id"`
}

type vendorError struct {
	Name   string   `json:"name"`
	Errors []string `json:"errors"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.stability.ai"
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     opts.Logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Generate runs one synchronous core generation and returns the image bytes
// along with the seed and finish reason the vendor reports in headers.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, errors.New("stability: prompt is required")
	}
	format := strings.TrimSpace(req.OutputFormat)
	if format == "" {
		format = "png"
	}

	fields := map[string]string{
		"prompt":        prompt,
		"output_format": format,
	}
	if v := strings.TrimSpace(req.NegativePrompt); v != "" {
		fields["negative_prompt"] = v
	}
	if v := strings.TrimSpace(req.AspectRatio); v != "" {
		fields["aspect_ratio"] = v
	}
	if v := strings.TrimSpace(req.StylePreset); v != "" {
		fields["style_preset"] = v
	}
	if req.Seed > 0 {
		fields["seed"] = strconv.Itoa(req.Seed)
	}

	body, contentType, err := encodeForm(fields, "", nil, "")
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2beta/stable-image/generate/core", body)
	if err != nil {
		return nil, fmt.Errorf("stability: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "image/*")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("stability: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("stability: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp.StatusCode, raw)
	}

	finish := resp.Header.Get("finish-reason")
	if finish == finishContentFiltered {
		return nil, fmt.Errorf("stability: generation blocked: %w", domain.ErrContentFiltered)
	}
	result := &GenerateResult{
		Data:         raw,
		Seed:         resp.Header.Get("seed"),
		FinishReason: finish,
		Format:       format,
	}
	c.logger.Debug().
		Str("seed", result.Seed).
		Str("finish_reason", finish).
		Int("bytes", len(raw)).
		Msg("stability: image generated")
	return result, nil
}

// SubmitEdit starts an asynchronous edit and returns its generation id.
// Results are collected by polling; see EditFetcher.
func (c *Client) SubmitEdit(ctx context.Context, req EditRequest) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}
	if req.Image == nil {
		return "", errors.New("stability: source image is required")
	}
	op := strings.TrimSpace(req.Operation)
	if op == "" {
		op = "search-and-replace"
	}
	name := strings.TrimSpace(req.ImageName)
	if name == "" {
		name = "image.png"
	}
	format := strings.TrimSpace(req.OutputFormat)
	if format == "" {
		format = "png"
	}

	fields := map[string]string{"output_format": format}
	if v := strings.TrimSpace(req.Prompt); v != "" {
		fields["prompt"] = v
	}
	if v := strings.TrimSpace(req.SearchPrompt); v != "" {
		fields["search_prompt"] = v
	}
	if v := strings.TrimSpace(req.NegativePrompt); v != "" {
		fields["negative_prompt"] = v
	}
	if req.Seed > 0 {
		fields["seed"] = strconv.Itoa(req.Seed)
	}

	body, contentType, err := encodeForm(fields, "image", req.Image, name)
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2beta/stable-image/edit/"+op, body)
	if err != nil {
		return "", fmt.Errorf("stability: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("stability: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("stability: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", decodeError(resp.StatusCode, raw)
	}

	var decoded submitResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("stability: decode response: %w", err)
	}
	if decoded.ID == "" {
		return "", fmt.Errorf("stability: edit response missing generation id: %w", domain.ErrMalformedResponse)
	}
	c.logger.Debug().Str("generation_id", decoded.ID).Str("operation", op).Msg("stability: edit submitted")
	return decoded.ID, nil
}

// EditFetcher adapts the results endpoint into a jobs.FetchFunc. While the
// edit is cooking the endpoint answers 202; a 200 carries the finished
// image bytes, which are handed to sink and reported as the job's output
// locator. Moderation blocks surface as a remote failure.
func (c *Client) EditFetcher(sink func(id string, data []byte, format string) (string, error)) jobs.FetchFunc {
	return func(ctx context.Context, generationID string) (jobs.Status, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2beta/results/"+generationID, nil)
		if err != nil {
			return jobs.Status{}, fmt.Errorf("stability: build request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Accept", "image/*")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return jobs.Status{}, fmt.Errorf("stability: http request: %w", err)
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusAccepted:
			io.Copy(io.Discard, resp.Body)
			return jobs.Status{State: domain.JobStatusRunning}, nil
		case http.StatusOK:
			raw, err := io.ReadAll(resp.Body)
			if err != nil {
				return jobs.Status{}, fmt.Errorf("stability: read result: %w", err)
			}
			if resp.Header.Get("finish-reason") == finishContentFiltered {
				return jobs.Status{State: domain.JobStatusFailed, Reason: "content filtered by moderation"}, nil
			}
			locator, err := sink(generationID, raw, formatFromContentType(resp.Header.Get("Content-Type")))
			if err != nil {
				return jobs.Status{}, fmt.Errorf("stability: store result: %w", err)
			}
			return jobs.Status{State: domain.JobStatusSucceeded, Output: []string{locator}}, nil
		default:
			raw, _ := io.ReadAll(resp.Body)
			return jobs.Status{}, decodeError(resp.StatusCode, raw)
		}
	}
}

// encodeForm builds a multipart body from scalar fields plus an optional
// single file part.
func encodeForm(fields map[string]string, fileField string, file io.Reader, fileName string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := w.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("stability: encode field %s: %w", key, err)
		}
	}
	if fileField != "" && file != nil {
		part, err := w.CreateFormFile(fileField, fileName)
		if err != nil {
			return nil, "", fmt.Errorf("stability: encode file part: %w", err)
		}
		if _, err := io.Copy(part, file); err != nil {
			return nil, "", fmt.Errorf("stability: copy file part: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("stability: finalize form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func decodeError(status int, raw []byte) error {
	var detail vendorError
	if err := json.Unmarshal(raw, &detail); err == nil && len(detail.Errors) > 0 {
		return fmt.Errorf("stability: %s (status %d): %w", strings.Join(detail.Errors, "; "), status, domain.ErrRemoteFailed)
	}
	return fmt.Errorf("stability: status %d: %s: %w", status, strings.TrimSpace(string(raw)), domain.ErrRemoteFailed)
}

func formatFromContentType(contentType string) string {
	if idx := strings.Index(contentType, "/"); idx >= 0 && idx+1 < len(contentType) {
		return contentType[idx+1:]
	}
	return "png"
}
