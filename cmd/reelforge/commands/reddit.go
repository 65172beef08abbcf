package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"reelforge/internal/social/reddit"
)

// reddit flag names
const (
	flagRedditSub     = "subreddit"
	flagRedditTitle   = "title"
	flagRedditBody    = "body"
	flagRedditLink    = "link"
	flagRedditPostURL = "post-url"
	flagRedditText    = "text"
	flagRedditParent  = "parent"
	flagRedditQuery   = "query"
	flagRedditLimit   = "limit"
)

func init() {
	redditCmd.AddCommand(redditPostCmd)
	redditCmd.AddCommand(redditCommentCmd)
	redditCmd.AddCommand(redditAnalyzeCmd)
	redditCmd.AddCommand(redditSearchCmd)

	redditPostCmd.Flags().StringP(flagRedditSub, "r", "", "Target subreddit, with or without the r/ prefix")
	redditPostCmd.Flags().String(flagRedditTitle, "", "Post title")
	redditPostCmd.Flags().String(flagRedditBody, "", "Self-text body")
	redditPostCmd.Flags().String(flagRedditLink, "", "Link URL; turns the post into a link post")
	_ = redditPostCmd.MarkFlagRequired(flagRedditSub)
	_ = redditPostCmd.MarkFlagRequired(flagRedditTitle)

	redditCommentCmd.Flags().String(flagRedditPostURL, "", "Full URL of the post to comment on")
	redditCommentCmd.Flags().StringP(flagRedditText, "t", "", "Comment text")
	redditCommentCmd.Flags().String(flagRedditParent, "", "Parent comment ID; turns the comment into a reply")
	_ = redditCommentCmd.MarkFlagRequired(flagRedditPostURL)
	_ = redditCommentCmd.MarkFlagRequired(flagRedditText)

	redditAnalyzeCmd.Flags().StringP(flagRedditSub, "r", "", "Subreddit to analyze")
	_ = redditAnalyzeCmd.MarkFlagRequired(flagRedditSub)

	redditSearchCmd.Flags().StringP(flagRedditSub, "r", "", "Subreddit to search in")
	redditSearchCmd.Flags().StringP(flagRedditQuery, "q", "", "Search query")
	redditSearchCmd.Flags().Int(flagRedditLimit, 10, "Maximum number of results")
	_ = redditSearchCmd.MarkFlagRequired(flagRedditSub)
	_ = redditSearchCmd.MarkFlagRequired(flagRedditQuery)
}

var redditCmd = &cobra.Command{
	Use:   "reddit",
	Short: "Post to, comment on, and analyze subreddits",
}

var redditPostCmd = &cobra.Command{
	Use:   "post",
	Short: "Submit a self or link post",
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := newRedditClient()
		if err != nil {
			return fmt.Errorf("error building reddit client: %w", err)
		}

		sub, _ := cmd.Flags().GetString(flagRedditSub)
		title, _ := cmd.Flags().GetString(flagRedditTitle)
		body, _ := cmd.Flags().GetString(flagRedditBody)
		link, _ := cmd.Flags().GetString(flagRedditLink)

		url, err := client.SubmitPost(cmd.Context(), reddit.Submission{
			Subreddit: sub,
			Title:     title,
			Body:      body,
			LinkURL:   link,
		})
		if err != nil {
			return fmt.Errorf("error submitting post: %w", err)
		}

		if jsonOutput {
			return printJSON(map[string]string{"url": url})
		}
		fmt.Println("Posted:", url)
		return nil
	},
}

var redditCommentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Comment on a post, or reply to a comment",
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := newRedditClient()
		if err != nil {
			return fmt.Errorf("error building reddit client: %w", err)
		}

		postURL, _ := cmd.Flags().GetString(flagRedditPostURL)
		text, _ := cmd.Flags().GetString(flagRedditText)
		parent, _ := cmd.Flags().GetString(flagRedditParent)

		id, err := client.Comment(cmd.Context(), reddit.CommentRequest{
			PostURL:         postURL,
			Text:            text,
			ParentCommentID: parent,
		})
		if err != nil {
			return fmt.Errorf("error publishing comment: %w", err)
		}

		if jsonOutput {
			return printJSON(map[string]string{"id": id})
		}
		fmt.Println("Comment published:", id)
		return nil
	},
}

var redditAnalyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Summarize a subreddit's rules and trends before posting there",
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := newRedditClient()
		if err != nil {
			return fmt.Errorf("error building reddit client: %w", err)
		}

		sub, _ := cmd.Flags().GetString(flagRedditSub)
		analysis, err := client.Analyze(cmd.Context(), sub)
		if err != nil {
			return fmt.Errorf("error analyzing subreddit: %w", err)
		}

		if jsonOutput {
			return printJSON(analysis)
		}
		fmt.Printf("r/%s: %d hot posts sampled, avg score %.0f, avg comments %.0f, %d self posts\n",
			analysis.Subreddit, analysis.Sampled, analysis.AvgScore, analysis.AvgComments, analysis.SelfPosts)
		if len(analysis.Rules) > 0 {
			fmt.Println("Rules:")
			for _, rule := range analysis.Rules {
				fmt.Println("  -", rule.ShortName)
			}
		}
		if len(analysis.TopTitles) > 0 {
			fmt.Println("Top titles:")
			for _, title := range analysis.TopTitles {
				fmt.Println("  -", title)
			}
		}
		return nil
	},
}

var redditSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search posts within a subreddit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := newRedditClient()
		if err != nil {
			return fmt.Errorf("error building reddit client: %w", err)
		}

		sub, _ := cmd.Flags().GetString(flagRedditSub)
		query, _ := cmd.Flags().GetString(flagRedditQuery)
		limit, _ := cmd.Flags().GetInt(flagRedditLimit)

		posts, err := client.Search(cmd.Context(), sub, query, limit)
		if err != nil {
			return fmt.Errorf("error searching subreddit: %w", err)
		}

		if jsonOutput {
			return printJSON(map[string]any{"posts": posts})
		}
		if len(posts) == 0 {
			fmt.Println("No posts found.")
			return nil
		}
		for _, post := range posts {
			fmt.Printf("%5d pts %4d comments  %s\n          %s\n", post.Score, post.NumComments, post.Title, post.URL)
		}
		return nil
	},
}

// GetRedditCmd returns the reddit command.
func GetRedditCmd() *cobra.Command {
	return redditCmd
}
