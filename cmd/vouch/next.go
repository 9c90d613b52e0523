package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vouch-dev/vouch/internal/lifecycle"
	"github.com/vouch-dev/vouch/internal/types"
)

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the next feature to work on",
	Long: `Pick the most actionable feature: needs_review features first (a human
decision is cheaper than another agent run), then failing features by
ascending priority.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openStore()
		defer s.Close()

		features, err := s.ListFeatures(ctx)
		if err != nil {
			fatalf("%v", err)
		}

		f := lifecycle.SelectNext(features)
		if f == nil {
			fmt.Println("Nothing actionable: no failing or needs_review features.")
			return
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("%s %s  %s\n", colorStatus(f.Status), f.ID, gray(fmt.Sprintf("priority %d", f.Priority)))
		fmt.Printf("  %s\n", f.Description)
		for i, c := range f.Acceptance {
			fmt.Printf("  %d. %s\n", i+1, c)
		}
		if f.Status == types.StatusNeedsReview {
			fmt.Printf("\n%s\n", gray("Awaiting review: 'vouch review "+f.ID+"'"))
		} else {
			fmt.Printf("\n%s\n", gray("Verify with: 'vouch verify "+f.ID+"'"))
		}
	},
}

func init() {
	rootCmd.AddCommand(nextCmd)
}
