package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vouch-dev/vouch/internal/lifecycle"
	"github.com/vouch-dev/vouch/internal/types"
	"github.com/vouch-dev/vouch/internal/vcs"
	"github.com/vouch-dev/vouch/internal/verify"
)

var (
	verifyAutonomous bool
	verifySkipChecks bool
	verifyBaseRef    string
	verifyNoApply    bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify <feature-id>",
	Short: "Verify a feature against the working tree",
	Long: `Run the full verification pipeline for a feature: collect the diff, run
the project's automated checks, and ask an AI judge to assess each
acceptance criterion. The verdict is folded back into the feature's
status unless --no-apply is given. Verification refuses to start while
the feature's required test files are missing.`,
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

		gate := lifecycle.NewTestGate(rootDir)
		if outcome := gate.Check(feature); !outcome.Satisfied {
			fatalf("test gate unmet for %s: %s\nwrite the required tests first, or adjust the feature's test requirements", feature.ID, outcome.Summary())
		}

		git, err := vcs.NewGit(ctx)
		if err != nil {
			fatalf("%v", err)
		}

		agent := newAgent()
		builder, err := verify.NewBuilder(cfg.DiffBudget)
		if err != nil {
			fatalf("%v", err)
		}
		runner := verify.NewCheckRunner(rootDir)
		runner.Timeout = cfg.CheckTimeout.Duration
		runner.MaxParallel = cfg.MaxParallelChecks

		engine, err := verify.NewEngine(verify.EngineConfig{
			VCS:      git,
			Detector: newDetector(ctx, agent),
			Agent:    agent,
			Builder:  builder,
			Checks:   runner,
			Timeout:  cfg.VerifyTimeout.Duration,
		})
		if err != nil {
			fatalf("%v", err)
		}

		result, err := engine.Verify(ctx, rootDir, feature, verify.Options{
			Autonomous: verifyAutonomous,
			BaseRef:    verifyBaseRef,
			SkipChecks: verifySkipChecks,
		})
		if err != nil {
			fatalf("verification failed: %v", err)
		}

		if err := s.SaveResult(ctx, result); err != nil {
			fatalf("failed to save result: %v", err)
		}

		if !verifyNoApply {
			if err := lifecycle.ApplyVerdict(feature, result, gate); err != nil {
				fatalf("failed to apply verdict: %v", err)
			}
			if err := s.UpdateFeature(ctx, feature); err != nil {
				fatalf("failed to update feature: %v", err)
			}
		}

		printResult(feature, result)
	},
}

func printResult(feature *types.Feature, r *types.VerificationResult) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s\n\n", cyan("=== Verification: "+feature.ID+" ==="))

	for _, check := range r.Checks {
		icon, paint := verdictGlyph(check.Success)
		fmt.Printf("  %s %-10s %s %s\n", paint(icon), check.Kind, check.Command,
			gray(fmt.Sprintf("(%v)", check.Duration.Round(10*time.Millisecond))))
	}
	if len(r.Checks) > 0 {
		fmt.Println()
	}

	for _, c := range r.Criteria {
		icon, paint := verdictGlyph(c.Satisfied)
		fmt.Printf("  %s %d. %s %s\n", paint(icon), c.Index+1, c.Criterion,
			gray(fmt.Sprintf("(%.2f)", c.Confidence)))
		if c.Reasoning != "" {
			fmt.Printf("      %s\n", gray(c.Reasoning))
		}
	}
	fmt.Println()

	fmt.Printf("Verdict: %s\n", colorVerdict(r.Verdict))
	if r.Reasoning != "" {
		fmt.Printf("  %s\n", r.Reasoning)
	}
	for _, suggestion := range r.Suggestions {
		fmt.Printf("  %s %s\n", gray("→"), suggestion)
	}
	fmt.Printf("\nFeature status: %s\n", colorStatus(feature.Status))
	if r.DiffSummary != "" {
		fmt.Printf("%s\n", gray(r.DiffSummary))
	}
}

func verdictGlyph(ok bool) (string, func(a ...any) string) {
	if ok {
		return "✓", color.New(color.FgGreen).SprintFunc()
	}
	return "✗", color.New(color.FgRed).SprintFunc()
}

func colorVerdict(v types.Verdict) string {
	switch v {
	case types.VerdictPass:
		return color.GreenString(string(v))
	case types.VerdictFail:
		return color.RedString(string(v))
	}
	return color.YellowString(string(v))
}

func colorStatus(s types.Status) string {
	switch s {
	case types.StatusPassing:
		return color.GreenString(string(s))
	case types.StatusFailing:
		return color.RedString(string(s))
	case types.StatusNeedsReview:
		return color.YellowString(string(s))
	case types.StatusBlocked:
		return color.MagentaString(string(s))
	}
	return color.HiBlackString(string(s))
}

func init() {
	verifyCmd.Flags().BoolVar(&verifyAutonomous, "autonomous", false, "let the agent explore the working tree")
	verifyCmd.Flags().BoolVar(&verifySkipChecks, "skip-checks", false, "skip automated checks")
	verifyCmd.Flags().StringVar(&verifyBaseRef, "base", "", "diff against a ref instead of the working tree")
	verifyCmd.Flags().BoolVar(&verifyNoApply, "no-apply", false, "record the result without changing feature status")
	rootCmd.AddCommand(verifyCmd)
}
