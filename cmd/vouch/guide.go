package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vouch-dev/vouch/internal/verify"
)

var guideRefresh bool

var guideCmd = &cobra.Command{
	Use:   "guide <feature-id>",
	Short: "Get AI test guidance for a feature",
	Long: `Ask the AI for a concrete test plan covering the feature's acceptance
criteria. Guidance is cached on the feature and reused until the feature's
criteria change; --refresh forces regeneration.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openStore()
		defer s.Close()

		feature, err := s.GetFeature(ctx, args[0])
		if err != nil {
			fatalf("%v", err)
		}
		if feature == nil {
			fatalf("feature %s not found", args[0])
		}
		if guideRefresh {
			feature.TestGuidance = nil
		}

		agent := newAgent()
		if agent == nil {
			fatalf("no AI agent available (install claude/amp or set ANTHROPIC_API_KEY)")
		}

		guidance, err := verify.GenerateGuidance(ctx, agent, feature)
		if err != nil {
			fatalf("%v", err)
		}

		if feature.TestGuidance == nil || feature.TestGuidance.GeneratedAt != guidance.GeneratedAt {
			feature.TestGuidance = guidance
			if err := s.UpdateFeature(ctx, feature); err != nil {
				fatalf("failed to cache guidance: %v", err)
			}
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("\n%s\n\n", cyan("=== Test Guidance: "+feature.ID+" ==="))
		fmt.Println(guidance.Guidance)
		fmt.Printf("\n%s\n", gray(fmt.Sprintf("generated %s for version %d",
			guidance.GeneratedAt.Format("2006-01-02 15:04"), guidance.Version)))
	},
}

func init() {
	guideCmd.Flags().BoolVar(&guideRefresh, "refresh", false, "regenerate even if cached")
	rootCmd.AddCommand(guideCmd)
}
