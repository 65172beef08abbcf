package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"reelforge/internal/providers/stability"
)

// image flag names
const (
	flagImagePrompt   = "prompt"
	flagImageNegative = "negative-prompt"
	flagImageRatio    = "aspect-ratio"
	flagImageSeed     = "seed"
	flagImageFormat   = "format"
	flagImageStyle    = "style"
	flagImageOut      = "out"
)

// imageOutput represents the saved-image result for --json.
type imageOutput struct {
	Path         string `json:"path"`
	Seed         string `json:"seed,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
	Bytes        int    `json:"bytes"`
}

func init() {
	imageCmd.Flags().StringP(flagImagePrompt, "p", "", "Prompt describing the image")
	imageCmd.Flags().String(flagImageNegative, "", "What the image must not contain")
	imageCmd.Flags().String(flagImageRatio, "", "Aspect ratio, e.g. 16:9 or 9:16")
	imageCmd.Flags().Int(flagImageSeed, 0, "Generation seed (0 lets the vendor pick)")
	imageCmd.Flags().String(flagImageFormat, "png", "Output format: png, jpeg, or webp")
	imageCmd.Flags().String(flagImageStyle, "", "Style preset, e.g. photographic or anime")
	imageCmd.Flags().StringP(flagImageOut, "o", "", "Output file path (defaults into the storage root)")
	_ = imageCmd.MarkFlagRequired(flagImagePrompt)
}

var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Generate one image synchronously",
	RunE: func(cmd *cobra.Command, _ []string) error {
		prompt, _ := cmd.Flags().GetString(flagImagePrompt)
		negative, _ := cmd.Flags().GetString(flagImageNegative)
		ratio, _ := cmd.Flags().GetString(flagImageRatio)
		seed, _ := cmd.Flags().GetInt(flagImageSeed)
		format, _ := cmd.Flags().GetString(flagImageFormat)
		style, _ := cmd.Flags().GetString(flagImageStyle)

		client, err := newImageClient()
		if err != nil {
			return fmt.Errorf("error building image client: %w", err)
		}
		result, err := client.Generate(cmd.Context(), stability.GenerateRequest{
			Prompt:         prompt,
			NegativePrompt: negative,
			AspectRatio:    ratio,
			Seed:           seed,
			OutputFormat:   format,
			StylePreset:    style,
		})
		if err != nil {
			return fmt.Errorf("error generating image: %w", err)
		}

		outPath, _ := cmd.Flags().GetString(flagImageOut)
		if outPath == "" {
			files, err := newFileStore()
			if err != nil {
				return fmt.Errorf("error opening storage: %w", err)
			}
			outPath, err = files.Write(cmd.Context(), "generated_images/"+result.FileName(), result.Data)
			if err != nil {
				return fmt.Errorf("error saving image: %w", err)
			}
		} else if err := os.WriteFile(outPath, result.Data, 0o644); err != nil {
			return fmt.Errorf("error saving image: %w", err)
		}

		if jsonOutput {
			return printJSON(imageOutput{
				Path:         outPath,
				Seed:         result.Seed,
				FinishReason: result.FinishReason,
				Bytes:        len(result.Data),
			})
		}
		fmt.Println("Image saved:", outPath)
		return nil
	},
}

// GetImageCmd returns the image command.
func GetImageCmd() *cobra.Command {
	return imageCmd
}
