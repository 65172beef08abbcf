package strategy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"reelforge/internal/domain"
	"reelforge/internal/providers/anthropic"
)

const (
	// profileFetchTimeout caps the company-site fetch.
	profileFetchTimeout = 10 * time.Second

	// maxSiteRunes bounds how much scraped text goes into the prompt.
	maxSiteRunes = 8000

	profileMaxTokens = 1024
)

const profileSystemPrompt = `You profile companies for marketing planning. You reply with strict JSON and nothing else.`

const profileFromSitePrompt = `Here is the visible text of a company's website:

%s

Summarize who they are and who they sell to. Reply with JSON only, in this
exact shape:
{"company_description": "...", "target_audience": "..."}`

const profileFromDescriptionPrompt = `Here is a company description:

%s

Polish the description and profile the ideal customer. Reply with JSON only,
in this exact shape:
{"company_description": "...", "target_audience": "..."}`

// Completer is the planning model behind profiling and strategy selection.
type Completer interface {
	Complete(ctx context.Context, req anthropic.CompletionRequest) (string, error)
}

var _ Completer = (*anthropic.Client)(nil)

// CompanyProfile is what the planner needs to know about a company.
type CompanyProfile struct {
	CompanyDescription string `json:"company_description"`
	TargetAudience     string `json:"target_audience"`
}

// Profiler turns a company website or a raw description into a profile.
type Profiler struct {
	completer  Completer
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewProfiler builds a Profiler. A nil httpClient gets the fetch timeout
// applied.
func NewProfiler(completer Completer, httpClient *http.Client, logger zerolog.Logger) (*Profiler, error) {
	if completer == nil {
		return nil, fmt.Errorf("strategy: completer is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: profileFetchTimeout}
	}
	return &Profiler{completer: completer, httpClient: httpClient, logger: logger}, nil
}

// FromURL scrapes the company site and asks the model for a profile.
func (p *Profiler) FromURL(ctx context.Context, siteURL string) (*CompanyProfile, error) {
	siteURL = strings.TrimSpace(siteURL)
	if siteURL == "" {
		return nil, fmt.Errorf("strategy: site url is required: %w", domain.ErrInvalidRequest)
	}
	text, err := p.scrape(ctx, siteURL)
	if err != nil {
		return nil, err
	}
	return p.complete(ctx, fmt.Sprintf(profileFromSitePrompt, text))
}

// FromDescription asks the model for a profile without touching the web.
func (p *Profiler) FromDescription(ctx context.Context, description string) (*CompanyProfile, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("strategy: company description is required: %w", domain.ErrInvalidRequest)
	}
	return p.complete(ctx, fmt.Sprintf(profileFromDescriptionPrompt, description))
}

func (p *Profiler) complete(ctx context.Context, prompt string) (*CompanyProfile, error) {
	reply, err := p.completer.Complete(ctx, anthropic.CompletionRequest{
		System:    profileSystemPrompt,
		Prompt:    prompt,
		MaxTokens: profileMaxTokens,
	})
	if err != nil {
		return nil, err
	}
	var profile CompanyProfile
	if err := decodeModelJSON(reply, &profile); err != nil {
		return nil, fmt.Errorf("strategy: parse profile reply: %w", err)
	}
	if profile.CompanyDescription == "" || profile.TargetAudience == "" {
		return nil, fmt.Errorf("strategy: profile reply misses description or audience: %w", domain.ErrMalformedResponse)
	}
	return &profile, nil
}

// scrape fetches the site and reduces it to visible text.
func (p *Profiler) scrape(ctx context.Context, siteURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, siteURL, nil)
	if err != nil {
		return "", fmt.Errorf("strategy: build site request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("strategy: fetch %s: %w: %w", siteURL, domain.ErrTransport, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("strategy: fetch %s: status %d: %w", siteURL, resp.StatusCode, domain.ErrTransport)
	}

	text := truncateRunes(visibleText(resp.Body), maxSiteRunes)
	if text == "" {
		return "", fmt.Errorf("strategy: no visible text at %s: %w", siteURL, domain.ErrMalformedResponse)
	}
	p.logger.Debug().Str("url", siteURL).Int("chars", len(text)).Msg("strategy: site scraped")
	return text, nil
}

// visibleText walks the markup and keeps text outside script and style tags,
// whitespace-normalized and space-joined.
func visibleText(r io.Reader) string {
	tokenizer := html.NewTokenizer(r)
	var parts []string
	skip := 0
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.Join(parts, " ")
		case html.StartTagToken:
			if name, _ := tokenizer.TagName(); isInvisibleTag(name) {
				skip++
			}
		case html.EndTagToken:
			if name, _ := tokenizer.TagName(); isInvisibleTag(name) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			if text := strings.Join(strings.Fields(string(tokenizer.Text())), " "); text != "" {
				parts = append(parts, text)
			}
		}
	}
}

func isInvisibleTag(name []byte) bool {
	tag := string(name)
	return tag == "script" || tag == "style"
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
