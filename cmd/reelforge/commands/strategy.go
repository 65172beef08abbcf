package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"reelforge/internal/strategy"
)

// strategy flag names
const (
	flagStrategyURL         = "url"
	flagStrategyDescription = "description"
)

// strategyOutput represents the full planning result for --json.
type strategyOutput struct {
	Profile *strategy.CompanyProfile `json:"profile"`
	Plan    *strategy.Plan           `json:"plan"`
	Report  string                   `json:"report"`
}

func init() {
	strategyCmd.Flags().StringP(flagStrategyURL, "u", "", "Company website to profile")
	strategyCmd.Flags().StringP(flagStrategyDescription, "d", "", "Company description to profile instead of a website")
}

var strategyCmd = &cobra.Command{
	Use:   "strategy",
	Short: "Plan per-platform content strategies for a company",
	Long: `strategy profiles the company from its website (or a written
description), picks the social platforms worth the effort, and drafts one
content strategy per platform.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		siteURL, _ := cmd.Flags().GetString(flagStrategyURL)
		description, _ := cmd.Flags().GetString(flagStrategyDescription)
		if siteURL == "" && description == "" {
			return fmt.Errorf("either --%s or --%s is required", flagStrategyURL, flagStrategyDescription)
		}

		model, err := newPlanModel()
		if err != nil {
			return fmt.Errorf("error building planning model: %w", err)
		}
		prompts, err := strategy.LoadLibrary(cfg.PromptsDir)
		if err != nil {
			return fmt.Errorf("error loading prompt library: %w", err)
		}
		profiler, err := strategy.NewProfiler(model, nil, logger)
		if err != nil {
			return fmt.Errorf("error building profiler: %w", err)
		}
		planner, err := strategy.NewPlanner(model, prompts, logger)
		if err != nil {
			return fmt.Errorf("error building planner: %w", err)
		}

		var profile *strategy.CompanyProfile
		if siteURL != "" {
			profile, err = profiler.FromURL(cmd.Context(), siteURL)
		} else {
			profile, err = profiler.FromDescription(cmd.Context(), description)
		}
		if err != nil {
			return fmt.Errorf("error profiling company: %w", err)
		}

		plan, err := planner.Plan(cmd.Context(), strategy.PlanRequest{
			CompanyDescription: profile.CompanyDescription,
			TargetAudience:     profile.TargetAudience,
		})
		if err != nil {
			return fmt.Errorf("error planning strategy: %w", err)
		}

		if jsonOutput {
			return printJSON(strategyOutput{Profile: profile, Plan: plan, Report: plan.Report()})
		}
		fmt.Println(plan.Report())
		return nil
	},
}

// GetStrategyCmd returns the strategy command.
func GetStrategyCmd() *cobra.Command {
	return strategyCmd
}
