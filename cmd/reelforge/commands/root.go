// Package commands implements the reelforge CLI.
package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"reelforge/internal/infra"
)

// persistent flag names
const (
	flagEnvFile = "env-file"
	flagJSON    = "json"
	flagVerbose = "verbose"
)

var (
	// cfg and logger are initialized by PersistentPreRunE before any RunE.
	cfg    *infra.Config
	logger zerolog.Logger

	envFile    string
	jsonOutput bool
	verbose    bool
)

// RootCmd is the base command all subcommands hang off.
var RootCmd = &cobra.Command{
	Use:   "reelforge",
	Short: "reelforge produces narrated promo videos and plans social content",
	Long: `reelforge turns a narration script and a visual prompt into a finished
promo video, generates one-off images and narration, plans per-platform
content strategies, and publishes to Reddit and Twitter.

Vendor credentials come from the environment (or a .env file); each command
only needs the keys of the vendors it talks to.`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		if envFile != "" {
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("error loading env file %s: %w", envFile, err)
			}
		} else {
			// .env is optional; deployments usually set the environment directly.
			_ = godotenv.Load()
		}

		var err error
		cfg, err = infra.LoadConfig()
		if err != nil {
			return fmt.Errorf("error loading configuration: %w", err)
		}

		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		// Results print to stdout; logs stay on stderr so output pipes clean.
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
			Level(level).
			With().
			Timestamp().
			Logger()
		return nil
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&envFile, flagEnvFile, "", "Path to a .env file to load before reading configuration")
	RootCmd.PersistentFlags().BoolVar(&jsonOutput, flagJSON, false, "Print results as indented JSON")
	RootCmd.PersistentFlags().BoolVarP(&verbose, flagVerbose, "v", false, "Enable debug logging")

	RootCmd.AddCommand(GetVideoCmd())
	RootCmd.AddCommand(GetImageCmd())
	RootCmd.AddCommand(GetEditCmd())
	RootCmd.AddCommand(GetNarrateCmd())
	RootCmd.AddCommand(GetStrategyCmd())
	RootCmd.AddCommand(GetRedditCmd())
	RootCmd.AddCommand(GetTweetCmd())
	RootCmd.AddCommand(GetDoctorCmd())
}

// Execute runs the root command.
func Execute() error {
	return RootCmd.Execute()
}

// printJSON renders v as indented JSON on stdout.
func printJSON(v any) error {
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("error formatting response: %w", err)
	}
	fmt.Println(string(pretty))
	return nil
}
