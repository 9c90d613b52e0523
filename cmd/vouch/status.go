package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vouch-dev/vouch/internal/lifecycle"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show feature progress and verification stats",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openStore()
		defer s.Close()

		features, err := s.ListFeatures(ctx)
		if err != nil {
			fatalf("%v", err)
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("\n%s\n\n", cyan("=== Feature Status ==="))

		if len(features) == 0 {
			fmt.Println(gray("No features yet. Add one with 'vouch add'."))
			return
		}

		progress := lifecycle.Measure(features)
		fmt.Printf("%s  %d/%d passing (%.0f%%)\n\n",
			progressBar(progress.Ratio(), 30),
			progress.Passing, progress.Total-progress.Deprecated, progress.Ratio()*100)

		for _, f := range features {
			fmt.Printf("  %-14s %-30s p%-3d %s\n",
				colorStatus(f.Status), f.ID, f.Priority, gray(f.Module))
			if f.LastVerification != nil {
				fmt.Printf("    %s\n", gray(fmt.Sprintf("last verified %s: %s (%d/%d criteria)",
					f.LastVerification.Timestamp.Format("2006-01-02 15:04"),
					f.LastVerification.Verdict,
					f.LastVerification.CriteriaMet,
					f.LastVerification.CriteriaTotal)))
			}
		}

		counts, err := s.CountVerdicts(ctx)
		if err == nil && counts.Pass+counts.Fail+counts.NeedsReview > 0 {
			fmt.Printf("\n%s %d pass / %d fail / %d needs review (all-time verdicts)\n",
				gray("history:"), counts.Pass, counts.Fail, counts.NeedsReview)
		}
		fmt.Println()
	},
}

func progressBar(ratio float64, width int) string {
	filled := int(ratio * float64(width))
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return color.GreenString(bar)
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
