package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"reelforge/internal/domain"
	"reelforge/internal/jobs"
	"reelforge/internal/providers/stability"
)

// edit flag names
const (
	flagEditImage     = "image"
	flagEditPrompt    = "prompt"
	flagEditSearch    = "search-prompt"
	flagEditOperation = "operation"
	flagEditNegative  = "negative-prompt"
	flagEditSeed      = "seed"
	flagEditFormat    = "format"
	flagEditOut       = "out"
)

// editOutput represents the finished-edit result for --json.
type editOutput struct {
	Path  string `json:"path"`
	Polls int    `json:"polls"`
}

func init() {
	editCmd.Flags().StringP(flagEditImage, "i", "", "Source image file to edit")
	editCmd.Flags().StringP(flagEditPrompt, "p", "", "What the edited region should become")
	editCmd.Flags().String(flagEditSearch, "", "What to find and replace in the image")
	editCmd.Flags().String(flagEditOperation, "", "Edit operation (defaults to search-and-replace)")
	editCmd.Flags().String(flagEditNegative, "", "What the edit must not introduce")
	editCmd.Flags().Int(flagEditSeed, 0, "Generation seed (0 lets the vendor pick)")
	editCmd.Flags().String(flagEditFormat, "png", "Output format: png, jpeg, or webp")
	editCmd.Flags().StringP(flagEditOut, "o", "", "Output file path (defaults into the storage root)")
	_ = editCmd.MarkFlagRequired(flagEditImage)
	_ = editCmd.MarkFlagRequired(flagEditPrompt)
}

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit an image asynchronously and wait for the result",
	Long: `edit submits an image edit, then polls until the vendor finishes
rendering or the wait budget runs out. The edited image lands in the storage
root unless --out points somewhere else.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		imagePath, _ := cmd.Flags().GetString(flagEditImage)
		prompt, _ := cmd.Flags().GetString(flagEditPrompt)
		search, _ := cmd.Flags().GetString(flagEditSearch)
		operation, _ := cmd.Flags().GetString(flagEditOperation)
		negative, _ := cmd.Flags().GetString(flagEditNegative)
		seed, _ := cmd.Flags().GetInt(flagEditSeed)
		format, _ := cmd.Flags().GetString(flagEditFormat)
		outPath, _ := cmd.Flags().GetString(flagEditOut)

		client, err := newImageClient()
		if err != nil {
			return fmt.Errorf("error building image client: %w", err)
		}

		source, err := os.Open(imagePath)
		if err != nil {
			return fmt.Errorf("error opening source image: %w", err)
		}
		defer source.Close()

		generationID, err := client.SubmitEdit(cmd.Context(), stability.EditRequest{
			Operation:      operation,
			Image:          source,
			ImageName:      imagePath,
			Prompt:         prompt,
			SearchPrompt:   search,
			NegativePrompt: negative,
			Seed:           seed,
			OutputFormat:   format,
		})
		if err != nil {
			return fmt.Errorf("error submitting edit: %w", err)
		}

		sink := func(id string, data []byte, gotFormat string) (string, error) {
			if outPath != "" {
				return outPath, os.WriteFile(outPath, data, 0o644)
			}
			files, err := newFileStore()
			if err != nil {
				return "", err
			}
			return files.Write(cmd.Context(), fmt.Sprintf("generated_images/edited_%s.%s", id, gotFormat), data)
		}
		poller, err := jobs.New(jobs.Options{
			Kind:   domain.JobKindImageEdit,
			Budget: cfg.WaitBudget,
			Fetch:  client.EditFetcher(sink),
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("error building poller: %w", err)
		}

		result, err := poller.Wait(cmd.Context(), generationID)
		if err != nil {
			return fmt.Errorf("error waiting for edit %s: %w", generationID, err)
		}

		if jsonOutput {
			return printJSON(editOutput{Path: result.First(), Polls: result.Polls})
		}
		fmt.Println("Edited image saved:", result.First())
		return nil
	},
}

// GetEditCmd returns the edit command.
func GetEditCmd() *cobra.Command {
	return editCmd
}
