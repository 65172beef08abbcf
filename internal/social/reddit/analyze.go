package reddit

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"reelforge/internal/domain"
)

const (
	hotSampleSize  = 10
	topTitleCount  = 3
	titleReportLen = 80
)

// Rule is one subreddit rule.
type Rule struct {
	ShortName   string `json:"short_name"`
	Description string `json:"description"`
}

// Analysis summarizes a subreddit's rules and hot-post trends.
type Analysis struct {
	Subreddit   string   `json:"subreddit"`
	Rules       []Rule   `json:"rules"`
	Sampled     int      `json:"sampled"`
	AvgScore    float64  `json:"avg_score"`
	AvgComments float64  `json:"avg_comments"`
	SelfPosts   int      `json:"self_posts"`
	TopTitles   []string `json:"top_titles"`
}

type rulesResponse struct {
	Rules []struct {
		ShortName   string `json:"short_name"`
		Description string `json:"description"`
	} `json:"rules"`
}

// Analyze fetches the subreddit's rules and its hot posts and derives the
// trend numbers a content planner wants before posting there.
func (c *Client) Analyze(ctx context.Context, subreddit string) (*Analysis, error) {
	subreddit = strings.TrimPrefix(strings.TrimSpace(subreddit), "r/")
	if subreddit == "" {
		return nil, fmt.Errorf("reddit: subreddit is required: %w", domain.ErrInvalidRequest)
	}

	analysis := &Analysis{Subreddit: subreddit}

	// Rules are nice to have; plenty of subreddits hide them.
	var rules rulesResponse
	err := c.call(ctx, func(ctx context.Context) error {
		rules = rulesResponse{}
		return c.getJSON(ctx, "/r/"+subreddit+"/about/rules", nil, &rules)
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("subreddit", subreddit).Msg("reddit: rules not accessible")
	} else {
		for _, rule := range rules.Rules {
			analysis.Rules = append(analysis.Rules, Rule{ShortName: rule.ShortName, Description: rule.Description})
		}
	}

	params := url.Values{"limit": {fmt.Sprint(hotSampleSize)}}
	var hot listing
	err = c.call(ctx, func(ctx context.Context) error {
		hot = listing{}
		return c.getJSON(ctx, "/r/"+subreddit+"/hot", params, &hot)
	})
	if err != nil {
		return nil, err
	}

	children := hot.Data.Children
	analysis.Sampled = len(children)
	if len(children) > 0 {
		var scoreSum, commentSum int
		for _, child := range children {
			scoreSum += child.Data.Score
			commentSum += child.Data.NumComments
			if child.Data.IsSelf {
				analysis.SelfPosts++
			}
		}
		analysis.AvgScore = float64(scoreSum) / float64(len(children))
		analysis.AvgComments = float64(commentSum) / float64(len(children))
		for _, child := range children[:min(topTitleCount, len(children))] {
			analysis.TopTitles = append(analysis.TopTitles, truncateRunes(child.Data.Title, titleReportLen))
		}
	}
	return analysis, nil
}

// Report renders the analysis as a text block suitable for prompting.
func (a *Analysis) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analysis of r/%s:\n\n", a.Subreddit)

	b.WriteString("Rules:\n")
	if len(a.Rules) == 0 {
		b.WriteString("- rules not accessible\n")
	}
	for _, rule := range a.Rules {
		fmt.Fprintf(&b, "- %s: %s\n", rule.ShortName, rule.Description)
	}

	b.WriteString("\nHot post trends:\n")
	fmt.Fprintf(&b, "- average score: %.0f\n", a.AvgScore)
	fmt.Fprintf(&b, "- average comments: %.0f\n", a.AvgComments)
	fmt.Fprintf(&b, "- self posts: %d/%d\n", a.SelfPosts, a.Sampled)

	b.WriteString("\nPopular title examples:\n")
	if len(a.TopTitles) == 0 {
		b.WriteString("- no posts available\n")
	}
	for _, title := range a.TopTitles {
		fmt.Fprintf(&b, "- %s\n", title)
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
