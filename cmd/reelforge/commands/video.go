package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"reelforge/internal/pipeline"
)

// video flag names
const (
	flagVideoNarration = "narration"
	flagVideoPrompt    = "prompt"
	flagVideoTitle     = "title"
	flagVideoLocale    = "locale"
)

func init() {
	videoCmd.Flags().StringP(flagVideoNarration, "n", "", "Narration text spoken over the clip")
	videoCmd.Flags().StringP(flagVideoPrompt, "p", "", "Visual prompt for the generated frame")
	videoCmd.Flags().String(flagVideoTitle, "", "Optional run title")
	videoCmd.Flags().String(flagVideoLocale, "", "Narration locale (defaults to DEFAULT_LOCALE)")
	_ = videoCmd.MarkFlagRequired(flagVideoNarration)
	_ = videoCmd.MarkFlagRequired(flagVideoPrompt)
}

var videoCmd = &cobra.Command{
	Use:   "video",
	Short: "Produce a narrated promo video end to end",
	Long: `video runs the full production pipeline in the foreground: narration
synthesis, frame generation, animation, clip download, and the final mux.
Stage progress streams to stderr while the pipeline works.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		narration, _ := cmd.Flags().GetString(flagVideoNarration)
		prompt, _ := cmd.Flags().GetString(flagVideoPrompt)
		title, _ := cmd.Flags().GetString(flagVideoTitle)
		locale, _ := cmd.Flags().GetString(flagVideoLocale)
		if locale == "" {
			locale = cfg.DefaultLocale
		}

		runner, err := newRunner()
		if err != nil {
			return fmt.Errorf("error assembling pipeline: %w", err)
		}

		run, err := runner.Run(cmd.Context(), pipeline.RunRequest{
			Narration:    narration,
			VisualPrompt: prompt,
			Title:        title,
			Locale:       locale,
		})
		if err != nil {
			return fmt.Errorf("error producing video: %w", err)
		}

		if jsonOutput {
			return printJSON(run)
		}
		fmt.Printf("Run %s %s\n", run.ID, run.Status)
		fmt.Println("Final video:", run.Artifacts.FinalPath)
		return nil
	},
}

// GetVideoCmd returns the video command.
func GetVideoCmd() *cobra.Command {
	return videoCmd
}
