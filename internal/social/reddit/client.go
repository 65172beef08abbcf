// Package reddit posts, comments on, and analyzes subreddits through the
// OAuth2 password-grant API.
package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"reelforge/internal/domain"
	"reelforge/internal/policy"
)

const (
	defaultBaseURL  = "https://oauth.reddit.com"
	defaultTokenURL = "https://www.reddit.com"

	maxTitleRunes = 300
	maxBodyRunes  = 40000

	// tokenSlack renews the cached token before the vendor expires it.
	tokenSlack = 60 * time.Second
)

// ErrMissingCredentials reports an unconfigured script app.
var ErrMissingCredentials = fmt.Errorf("reddit: client id, secret, username, and password are required: %w", domain.ErrMissingCredentials)

// APIError is an error the Reddit API itself reported, either as a non-2xx
// status or as an entry in the response's errors array. These are the only
// errors worth a retry.
type APIError struct {
	Code    string
	Message string
	Field   string
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("reddit: api error %s on %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("reddit: api error %s: %s", e.Code, e.Message)
}

// IsAPIError reports whether err chains to a vendor API error.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// Options configures a Client.
type Options struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	UserAgent    string
	// BaseURL is the authenticated API host. Defaults to oauth.reddit.com.
	BaseURL string
	// TokenURL is the host serving the password grant. Defaults to
	// www.reddit.com.
	TokenURL   string
	HTTPClient *http.Client
	Logger     zerolog.Logger
	// Limiter paces outbound calls. Defaults to 30 calls per minute.
	Limiter *policy.Limiter
	// Retry re-runs operations on vendor API errors. Defaults to 3 attempts.
	Retry *policy.Retry
}

// Client talks to the Reddit API as one script app user.
type Client struct {
	clientID     string
	clientSecret string
	username     string
	password     string
	userAgent    string
	baseURL      string
	tokenURL     string
	httpClient   *http.Client
	logger       zerolog.Logger
	limiter      *policy.Limiter
	retry        *policy.Retry

	tokenMu    sync.Mutex
	token      string
	tokenUntil time.Time

	now func() time.Time
}

// NewClient validates credentials and applies defaults.
func NewClient(opts Options) (*Client, error) {
	opts.ClientID = strings.TrimSpace(opts.ClientID)
	opts.ClientSecret = strings.TrimSpace(opts.ClientSecret)
	opts.Username = strings.TrimSpace(opts.Username)
	opts.Password = strings.TrimSpace(opts.Password)
	if opts.ClientID == "" || opts.ClientSecret == "" || opts.Username == "" || opts.Password == "" {
		return nil, ErrMissingCredentials
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "reelforge/0.1 (by /u/" + opts.Username + ")"
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = defaultTokenURL
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
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		username:     opts.Username,
		password:     opts.Password,
		userAgent:    opts.UserAgent,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		tokenURL:     strings.TrimRight(opts.TokenURL, "/"),
		httpClient:   opts.HTTPClient,
		logger:       opts.Logger,
		limiter:      opts.Limiter,
		retry:        opts.Retry,
		now:          time.Now,
	}, nil
}

// Submission is one post to publish.
type Submission struct {
	Subreddit string
	Title     string
	Body      string
	// LinkURL switches the post from self-text to a link post.
	LinkURL string
}

// Post is one search or listing result.
type Post struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Score       int    `json:"score"`
	NumComments int    `json:"num_comments"`
}

// CommentRequest is one comment to publish under a post or another comment.
type CommentRequest struct {
	PostURL string
	Text    string
	// ParentCommentID turns the comment into a reply.
	ParentCommentID string
}

type submitResponse struct {
	JSON struct {
		Errors [][]string `json:"errors"`
		Data   struct {
			URL  string `json:"url"`
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
	} `json:"json"`
}

type commentResponse struct {
	JSON struct {
		Errors [][]string `json:"errors"`
		Data   struct {
			Things []struct {
				Data struct {
					ID        string `json:"id"`
					Permalink string `json:"permalink"`
				} `json:"data"`
			} `json:"things"`
		} `json:"data"`
	} `json:"json"`
}

type listing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Score       int    `json:"score"`
				NumComments int    `json:"num_comments"`
				IsSelf      bool   `json:"is_self"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// SubmitPost publishes a self or link post and returns its permalink.
func (c *Client) SubmitPost(ctx context.Context, sub Submission) (string, error) {
	sub.Subreddit = strings.TrimPrefix(strings.TrimSpace(sub.Subreddit), "r/")
	if sub.Subreddit == "" {
		return "", fmt.Errorf("reddit: subreddit is required: %w", domain.ErrInvalidRequest)
	}
	if n := utf8.RuneCountInString(sub.Title); n == 0 || n > maxTitleRunes {
		return "", fmt.Errorf("reddit: title must be 1 to %d characters: %w", maxTitleRunes, domain.ErrInvalidRequest)
	}
	kind := "self"
	if sub.LinkURL != "" {
		kind = "link"
	} else {
		if n := utf8.RuneCountInString(sub.Body); n == 0 || n > maxBodyRunes {
			return "", fmt.Errorf("reddit: self-post body must be 1 to %d characters: %w", maxBodyRunes, domain.ErrInvalidRequest)
		}
	}

	form := url.Values{
		"api_type": {"json"},
		"sr":       {sub.Subreddit},
		"kind":     {kind},
		"title":    {sub.Title},
	}
	if kind == "link" {
		form.Set("url", sub.LinkURL)
	} else {
		form.Set("text", sub.Body)
	}

	var out submitResponse
	err := c.call(ctx, func(ctx context.Context) error {
		out = submitResponse{}
		if err := c.postForm(ctx, "/api/submit", form, &out); err != nil {
			return err
		}
		return apiErrorFrom(out.JSON.Errors)
	})
	if err != nil {
		return "", err
	}
	if out.JSON.Data.URL == "" {
		return "", fmt.Errorf("reddit: submit response carries no post url: %w", domain.ErrMalformedResponse)
	}
	c.logger.Info().Str("subreddit", sub.Subreddit).Str("url", out.JSON.Data.URL).Msg("reddit: post published")
	return out.JSON.Data.URL, nil
}

// Comment publishes a comment under the post at PostURL, or under
// ParentCommentID when set, and returns the comment's permalink or id.
func (c *Client) Comment(ctx context.Context, req CommentRequest) (string, error) {
	if strings.TrimSpace(req.Text) == "" {
		return "", fmt.Errorf("reddit: comment text is required: %w", domain.ErrInvalidRequest)
	}
	submissionID := extractSubmissionID(req.PostURL)
	if submissionID == "" {
		return "", fmt.Errorf("reddit: no submission id in url %q: %w", req.PostURL, domain.ErrInvalidRequest)
	}
	thing := "t3_" + submissionID
	if req.ParentCommentID != "" {
		thing = "t1_" + strings.TrimPrefix(req.ParentCommentID, "t1_")
	}

	form := url.Values{
		"api_type": {"json"},
		"thing_id": {thing},
		"text":     {req.Text},
	}
	var out commentResponse
	err := c.call(ctx, func(ctx context.Context) error {
		out = commentResponse{}
		if err := c.postForm(ctx, "/api/comment", form, &out); err != nil {
			return err
		}
		return apiErrorFrom(out.JSON.Errors)
	})
	if err != nil {
		return "", err
	}
	if len(out.JSON.Data.Things) == 0 {
		return "", fmt.Errorf("reddit: comment response carries no thing: %w", domain.ErrMalformedResponse)
	}
	created := out.JSON.Data.Things[0].Data
	if created.Permalink != "" {
		return "https://reddit.com" + created.Permalink, nil
	}
	if created.ID == "" {
		return "", fmt.Errorf("reddit: comment response carries no id: %w", domain.ErrMalformedResponse)
	}
	return created.ID, nil
}

// Search queries one subreddit and returns up to limit posts. A non-positive
// limit asks for 5.
func (c *Client) Search(ctx context.Context, subreddit, query string, limit int) ([]Post, error) {
	subreddit = strings.TrimPrefix(strings.TrimSpace(subreddit), "r/")
	if subreddit == "" {
		return nil, fmt.Errorf("reddit: subreddit is required: %w", domain.ErrInvalidRequest)
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("reddit: search query is required: %w", domain.ErrInvalidRequest)
	}
	if limit <= 0 {
		limit = 5
	}

	params := url.Values{
		"q":           {query},
		"restrict_sr": {"1"},
		"limit":       {strconv.Itoa(limit)},
	}
	var out listing
	err := c.call(ctx, func(ctx context.Context) error {
		out = listing{}
		return c.getJSON(ctx, "/r/"+subreddit+"/search", params, &out)
	})
	if err != nil {
		return nil, err
	}

	posts := make([]Post, 0, len(out.Data.Children))
	for _, child := range out.Data.Children {
		posts = append(posts, Post{
			Title:       child.Data.Title,
			URL:         child.Data.URL,
			Score:       child.Data.Score,
			NumComments: child.Data.NumComments,
		})
	}
	return posts, nil
}

// call runs op behind the limiter and the retry policy.
func (c *Client) call(ctx context.Context, op func(ctx context.Context) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	return c.retry.Do(ctx, op)
}

// accessToken returns a cached token, renewing it through the password
// grant when missing or near expiry.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.token != "" && c.now().Before(c.tokenUntil) {
		return c.token, nil
	}

	form := url.Values{
		"grant_type": {"password"},
		"username":   {c.username},
		"password":   {c.password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL+"/api/v1/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("reddit: build token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("reddit: request token: %w: %w", domain.ErrTransport, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reddit: read token response: %w: %w", domain.ErrTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Code: "HTTP_" + strconv.Itoa(resp.StatusCode), Message: strings.TrimSpace(string(body))}
	}

	var tok struct {
		AccessToken string  `json:"access_token"`
		ExpiresIn   float64 `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("reddit: decode token response: %w: %w", domain.ErrMalformedResponse, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("reddit: token response carries no access token: %w", domain.ErrMalformedResponse)
	}

	c.token = tok.AccessToken
	c.tokenUntil = c.now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenSlack)
	c.logger.Debug().Time("valid_until", c.tokenUntil).Msg("reddit: access token renewed")
	return c.token, nil
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, out any) error {
	return c.invoke(ctx, http.MethodPost, path, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", out)
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	return c.invoke(ctx, http.MethodGet, path, nil, "", out)
}

func (c *Client) invoke(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("reddit: build request: %w", err)
	}
	req.Header.Set("Authorization", "bearer "+token)
	req.Header.Set("User-Agent", c.userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("reddit: %s %s: %w: %w", method, path, domain.ErrTransport, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reddit: read response for %s: %w: %w", path, domain.ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Code: "HTTP_" + strconv.Itoa(resp.StatusCode), Message: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("reddit: decode response for %s: %w: %w", path, domain.ErrMalformedResponse, err)
	}
	return nil
}

// apiErrorFrom lifts the first entry of a response errors array.
func apiErrorFrom(entries [][]string) error {
	if len(entries) == 0 {
		return nil
	}
	apiErr := &APIError{}
	entry := entries[0]
	if len(entry) > 0 {
		apiErr.Code = entry[0]
	}
	if len(entry) > 1 {
		apiErr.Message = entry[1]
	}
	if len(entry) > 2 {
		apiErr.Field = entry[2]
	}
	return apiErr
}

var submissionIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`reddit\.com/r/\w+/comments/([a-zA-Z0-9]+)`),
	regexp.MustCompile(`redd\.it/([a-zA-Z0-9]+)`),
	regexp.MustCompile(`/comments/([a-zA-Z0-9]+)`),
}

// extractSubmissionID pulls the submission id out of any accepted post URL
// shape. Empty means no pattern matched.
func extractSubmissionID(postURL string) string {
	for _, pattern := range submissionIDPatterns {
		if m := pattern.FindStringSubmatch(postURL); m != nil {
			return m[1]
		}
	}
	return ""
}
