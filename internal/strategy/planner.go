package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"reelforge/internal/domain"
	"reelforge/internal/providers/anthropic"
)

const (
	selectionMaxTokens = 1024
	contentMaxTokens   = 4096

	maxSelectedPlatforms = 3
)

// platformAliases maps the names models actually emit to canonical keys.
var platformAliases = map[string]string{
	"tiktok":    "tiktok",
	"linkedin":  "linkedin",
	"reddit":    "reddit",
	"twitter":   "twitter",
	"x":         "twitter",
	"twitter/x": "twitter",
	"instagram": "instagram",
}

// brandNames overrides title-casing where the brand spells itself otherwise.
var brandNames = map[string]string{
	"tiktok":   "TikTok",
	"linkedin": "LinkedIn",
}

var titleCaser = cases.Title(language.English)

// PlanRequest is the input to a strategy plan.
type PlanRequest struct {
	CompanyDescription string `json:"company_description"`
	TargetAudience     string `json:"target_audience"`
}

// PlatformStrategy is the plan for one selected platform.
type PlatformStrategy struct {
	Platform  string `json:"platform"`
	Display   string `json:"display_name"`
	Priority  int    `json:"priority"`
	Rationale string `json:"rationale"`
	Content   string `json:"content_strategy"`
}

// Plan is a full cross-platform content plan.
type Plan struct {
	Platforms []PlatformStrategy `json:"platforms"`
}

// Planner selects platforms and drafts per-platform strategies.
type Planner struct {
	completer Completer
	prompts   *Library
	logger    zerolog.Logger
}

// NewPlanner builds a Planner over the model and the prompt library.
func NewPlanner(completer Completer, prompts *Library, logger zerolog.Logger) (*Planner, error) {
	if completer == nil {
		return nil, fmt.Errorf("strategy: completer is required")
	}
	if prompts == nil {
		return nil, fmt.Errorf("strategy: prompt library is required")
	}
	return &Planner{completer: completer, prompts: prompts, logger: logger}, nil
}

// Plan selects the platforms for the company and produces one content
// strategy per selection.
func (p *Planner) Plan(ctx context.Context, req PlanRequest) (*Plan, error) {
	req.CompanyDescription = strings.TrimSpace(req.CompanyDescription)
	req.TargetAudience = strings.TrimSpace(req.TargetAudience)
	if req.CompanyDescription == "" || req.TargetAudience == "" {
		return nil, fmt.Errorf("strategy: company description and target audience are required: %w", domain.ErrInvalidRequest)
	}

	vars := map[string]string{
		"company_description": req.CompanyDescription,
		"target_audience":     req.TargetAudience,
	}

	selected, err := p.selectPlatforms(ctx, vars)
	if err != nil {
		return nil, err
	}

	plan := &Plan{}
	for _, sel := range selected {
		tmpl, ok := p.prompts.Set(sel.Platform)
		if !ok {
			return nil, fmt.Errorf("strategy: no prompt set for platform %s", sel.Platform)
		}
		vars["platform"] = sel.Display
		content, err := p.completer.Complete(ctx, anthropic.CompletionRequest{
			System:    tmpl.SystemPrompt,
			Prompt:    Render(tmpl.ContentPrompt, vars),
			MaxTokens: contentMaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("strategy: draft %s strategy: %w", sel.Platform, err)
		}
		sel.Content = content
		plan.Platforms = append(plan.Platforms, sel)
		p.logger.Info().Str("platform", sel.Platform).Int("priority", sel.Priority).Msg("strategy: platform strategy drafted")
	}
	return plan, nil
}

type selectionReply struct {
	SelectedPlatforms []struct {
		Platform  string `json:"platform"`
		Priority  int    `json:"priority"`
		Rationale string `json:"rationale"`
	} `json:"selected_platforms"`
}

// selectPlatforms asks the model to rank platforms and normalizes its
// answer: aliases folded, unsupported names dropped, at most three kept.
func (p *Planner) selectPlatforms(ctx context.Context, vars map[string]string) ([]PlatformStrategy, error) {
	tmpl, ok := p.prompts.Set("platforms")
	if !ok {
		return nil, fmt.Errorf("strategy: platform selector prompt set is missing")
	}
	reply, err := p.completer.Complete(ctx, anthropic.CompletionRequest{
		System:    tmpl.SystemPrompt,
		Prompt:    Render(tmpl.SelectionPrompt, vars),
		MaxTokens: selectionMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("strategy: select platforms: %w", err)
	}

	var parsed selectionReply
	if err := decodeModelJSON(reply, &parsed); err != nil {
		return nil, fmt.Errorf("strategy: parse platform selection: %w", err)
	}

	var selected []PlatformStrategy
	seen := make(map[string]bool)
	for _, entry := range parsed.SelectedPlatforms {
		key, ok := canonicalPlatform(entry.Platform)
		if !ok {
			p.logger.Warn().Str("platform", entry.Platform).Msg("strategy: unsupported platform dropped")
			continue
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		selected = append(selected, PlatformStrategy{
			Platform:  key,
			Display:   displayName(key),
			Priority:  entry.Priority,
			Rationale: entry.Rationale,
		})
		if len(selected) == maxSelectedPlatforms {
			break
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("strategy: selection names no supported platform: %w", domain.ErrMalformedResponse)
	}
	return selected, nil
}

// Report renders the plan as readable text, platforms in priority order as
// the model ranked them.
func (p *Plan) Report() string {
	var b strings.Builder
	b.WriteString("Selected platforms:\n")
	for _, ps := range p.Platforms {
		fmt.Fprintf(&b, "  %d. %s\n     %s\n", ps.Priority, ps.Display, ps.Rationale)
	}
	for _, ps := range p.Platforms {
		fmt.Fprintf(&b, "\n--- %s strategy ---\n%s\n", ps.Display, strings.TrimSpace(ps.Content))
	}
	return b.String()
}

func canonicalPlatform(name string) (string, bool) {
	key, ok := platformAliases[strings.ToLower(strings.TrimSpace(name))]
	return key, ok
}

func displayName(key string) string {
	if name, ok := brandNames[key]; ok {
		return name
	}
	return titleCaser.String(key)
}

// decodeModelJSON lifts the JSON object out of a model reply: everything
// between the first '{' and the last '}'. Models pad JSON with prose no
// matter how firmly the prompt forbids it.
func decodeModelJSON(reply string, out any) error {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start == -1 || end == -1 || end < start {
		return fmt.Errorf("no JSON object in model reply: %w", domain.ErrMalformedResponse)
	}
	if err := json.Unmarshal([]byte(reply[start:end+1]), out); err != nil {
		return fmt.Errorf("invalid JSON in model reply: %w: %w", domain.ErrMalformedResponse, err)
	}
	return nil
}
