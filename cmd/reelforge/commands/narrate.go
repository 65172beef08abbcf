package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"reelforge/internal/media"
	"reelforge/internal/providers/elevenlabs"
)

// narrate flag names
const (
	flagNarrateText  = "text"
	flagNarrateVoice = "voice"
	flagNarrateOut   = "out"
)

// narrationOutput represents the saved-narration result for --json.
type narrationOutput struct {
	Path  string `json:"path"`
	Bytes int64  `json:"bytes"`
}

func init() {
	narrateCmd.Flags().StringP(flagNarrateText, "t", "", "Text to synthesize")
	narrateCmd.Flags().String(flagNarrateVoice, "", "Voice ID override (defaults to ELEVENLABS_VOICE_ID)")
	narrateCmd.Flags().StringP(flagNarrateOut, "o", "", "Output file path (defaults into the storage root)")
	_ = narrateCmd.MarkFlagRequired(flagNarrateText)
}

var narrateCmd = &cobra.Command{
	Use:   "narrate",
	Short: "Synthesize narration audio from text",
	RunE: func(cmd *cobra.Command, _ []string) error {
		text, _ := cmd.Flags().GetString(flagNarrateText)
		voiceID, _ := cmd.Flags().GetString(flagNarrateVoice)

		voice, err := newVoice()
		if err != nil {
			return fmt.Errorf("error building speech client: %w", err)
		}

		var (
			w       io.WriteCloser
			outPath string
		)
		if flagged, _ := cmd.Flags().GetString(flagNarrateOut); flagged != "" {
			f, err := os.Create(flagged)
			if err != nil {
				return fmt.Errorf("error creating output file: %w", err)
			}
			w, outPath = f, flagged
		} else {
			files, err := newFileStore()
			if err != nil {
				return fmt.Errorf("error opening storage: %w", err)
			}
			key := media.AudioKey("narration_" + time.Now().UTC().Format("20060102_150405"))
			w, outPath, err = files.Create(key)
			if err != nil {
				return fmt.Errorf("error creating output file: %w", err)
			}
		}

		written, err := voice.Synthesize(cmd.Context(), elevenlabs.SpeechRequest{Text: text, VoiceID: voiceID}, w)
		if err != nil {
			w.Close()
			os.Remove(outPath)
			return fmt.Errorf("error synthesizing narration: %w", err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("error finishing output file: %w", err)
		}

		if jsonOutput {
			return printJSON(narrationOutput{Path: outPath, Bytes: written})
		}
		fmt.Printf("Narration saved: %s (%d bytes)\n", outPath, written)
		return nil
	},
}

// GetNarrateCmd returns the narrate command.
func GetNarrateCmd() *cobra.Command {
	return narrateCmd
}
