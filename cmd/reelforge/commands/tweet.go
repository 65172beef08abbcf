package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// tweet flag names
const (
	flagTweetText = "text"
)

func init() {
	tweetCmd.Flags().StringP(flagTweetText, "t", "", "Tweet text")
	_ = tweetCmd.MarkFlagRequired(flagTweetText)
}

var tweetCmd = &cobra.Command{
	Use:   "tweet",
	Short: "Post a tweet",
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := newTwitterClient()
		if err != nil {
			return fmt.Errorf("error building twitter client: %w", err)
		}

		text, _ := cmd.Flags().GetString(flagTweetText)
		tweet, err := client.PostTweet(cmd.Context(), text)
		if err != nil {
			return fmt.Errorf("error posting tweet: %w", err)
		}

		if jsonOutput {
			return printJSON(tweet)
		}
		fmt.Println("Tweet posted:", tweet.URL)
		return nil
	},
}

// GetTweetCmd returns the tweet command.
func GetTweetCmd() *cobra.Command {
	return tweetCmd
}
