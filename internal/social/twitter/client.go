// Package twitter posts tweets through the v2 API with an app bearer token.
package twitter

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
	"reelforge/internal/policy"
)

const (
	defaultBaseURL = "https://api.twitter.com"

	// maxTweetRunes is the hard cap; longer texts are truncated, not
	// rejected, so a verbose planner never blocks a publish.
	maxTweetRunes = 280
)

// ErrMissingBearerToken reports an unconfigured client.
var ErrMissingBearerToken = fmt.Errorf("twitter: bearer token is required: %w", domain.ErrMissingCredentials)

// APIError is an error the Twitter API reported.
type APIError struct {
	Status int
	Title  string
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twitter: api error %d %s: %s", e.Status, e.Title, e.Detail)
}

// IsAPIError reports whether err chains to a vendor API error.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// Options configures a Client.
type Options struct {
	BearerToken string
	BaseURL     string
	HTTPClient  *http.Client
	Logger      zerolog.Logger
	// Limiter paces outbound calls. Defaults to 30 calls per minute.
	Limiter *policy.Limiter
	// Retry re-runs posts on vendor API errors. Defaults to 3 attempts.
	Retry *policy.Retry
}

// Client posts to the Twitter v2 API.
type Client struct {
	bearerToken string
	baseURL     string
	httpClient  *http.Client
	logger      zerolog.Logger
	limiter     *policy.Limiter
	retry       *policy.Retry
}

// NewClient validates the token and applies defaults.
func NewClient(opts Options) (*Client, error) {
	opts.BearerToken = strings.TrimSpace(opts.BearerToken)
	if opts.BearerToken == "" {
		return nil, ErrMissingBearerToken
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Limiter == nil {
		opts.Limiter = policy.NewLimiter(30, time.Minute)
	}
	if opts.Retry == nil {
		opts.Retry = policy.NewRetry(policy.RetryOptions{Retryable: IsAPIError})
	}
	return &Client{
		bearerToken: opts.BearerToken,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		limiter:     opts.Limiter,
		retry:       opts.Retry,
	}, nil
}

// Tweet is one published tweet.
type Tweet struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	URL  string `json:"url"`
}

type createTweetRequest struct {
	Text string `json:"text"`
}

type createTweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

type errorResponse struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// PostTweet publishes text, truncated to the platform cap, and returns the
// tweet id with its canonical URL.
func (c *Client) PostTweet(ctx context.Context, text string) (*Tweet, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("twitter: tweet text is required: %w", domain.ErrInvalidRequest)
	}
	if runes := []rune(text); len(runes) > maxTweetRunes {
		text = string(runes[:maxTweetRunes])
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	var out createTweetResponse
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		out = createTweetResponse{}
		return c.create(ctx, text, &out)
	})
	if err != nil {
		return nil, err
	}
	if out.Data.ID == "" {
		return nil, fmt.Errorf("twitter: create response carries no tweet id: %w", domain.ErrMalformedResponse)
	}

	tweet := &Tweet{
		ID:   out.Data.ID,
		Text: out.Data.Text,
		URL:  "https://twitter.com/user/status/" + out.Data.ID,
	}
	c.logger.Info().Str("tweet_id", tweet.ID).Msg("twitter: tweet published")
	return tweet, nil
}

func (c *Client) create(ctx context.Context, text string, out *createTweetResponse) error {
	payload, err := json.Marshal(createTweetRequest{Text: text})
	if err != nil {
		return fmt.Errorf("twitter: encode tweet: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/2/tweets", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("twitter: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("twitter: post tweet: %w: %w", domain.ErrTransport, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("twitter: read response: %w: %w", domain.ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var vendor errorResponse
		json.Unmarshal(raw, &vendor)
		apiErr := &APIError{Status: resp.StatusCode, Title: vendor.Title, Detail: vendor.Detail}
		if apiErr.Title == "" && apiErr.Detail == "" {
			apiErr.Detail = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("twitter: decode response: %w: %w", domain.ErrMalformedResponse, err)
	}
	return nil
}
