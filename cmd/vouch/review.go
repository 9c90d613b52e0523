package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vouch-dev/vouch/internal/lifecycle"
	"github.com/vouch-dev/vouch/internal/types"
)

var reviewCmd = &cobra.Command{
	Use:   "review <feature-id>",
	Short: "Review a feature awaiting a human decision",
	Long: `Show the latest verification result for a needs_review feature and
confirm it as passing or reject it back to failing. Confirmation is the
only way a needs_review feature reaches passing without a new pass
verdict.`,
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
		if feature.Status != types.StatusNeedsReview {
			fatalf("feature %s is %s; only needs_review features can be reviewed", feature.ID, feature.Status)
		}

		if latest, err := s.LatestResult(ctx, feature.ID); err == nil && latest != nil {
			printResult(feature, latest)
		} else {
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Printf("\n%s\n", gray("No verification result on record."))
			fmt.Printf("%s %s\n  %s\n", colorStatus(feature.Status), feature.ID, feature.Description)
		}
		if feature.Notes != "" {
			fmt.Printf("\nNotes:\n%s\n", feature.Notes)
		}

		rl, err := readline.New("confirm as passing? [y/n/q] ")
		if err != nil {
			fatalf("failed to start prompt: %v", err)
		}
		defer rl.Close()

		for {
			line, err := rl.Readline()
			if err != nil { // ^C or ^D
				fmt.Println("Review aborted; feature unchanged.")
				return
			}
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "y", "yes":
				if err := lifecycle.Confirm(feature, lifecycle.NewTestGate(rootDir)); err != nil {
					fatalf("%v", err)
				}
				if err := s.UpdateFeature(ctx, feature); err != nil {
					fatalf("%v", err)
				}
				fmt.Printf("%s %s confirmed as passing\n", color.GreenString("✓"), feature.ID)
				return
			case "n", "no":
				if err := lifecycle.Reject(feature); err != nil {
					fatalf("%v", err)
				}
				if err := s.UpdateFeature(ctx, feature); err != nil {
					fatalf("%v", err)
				}
				fmt.Printf("%s %s rejected back to failing\n", color.RedString("✗"), feature.ID)
				return
			case "q", "quit":
				fmt.Println("Review aborted; feature unchanged.")
				return
			default:
				fmt.Println("Please answer y, n, or q.")
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(reviewCmd)
}
