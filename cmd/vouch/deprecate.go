package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vouch-dev/vouch/internal/lifecycle"
)

var deprecateSuccessor string

var deprecateCmd = &cobra.Command{
	Use:   "deprecate <feature-id>",
	Short: "Retire a feature from the lifecycle",
	Long: `Mark a feature as deprecated. Deprecated features keep their history
but never count against progress and cannot change status again. Use
--successor to record which feature replaces it.`,
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

		if deprecateSuccessor != "" {
			successor, err := s.GetFeature(ctx, deprecateSuccessor)
			if err != nil {
				fatalf("%v", err)
			}
			if successor == nil {
				fatalf("successor feature %s not found", deprecateSuccessor)
			}
			successor.Supersedes = append(successor.Supersedes, feature.ID)
			if err := s.UpdateFeature(ctx, successor); err != nil {
				fatalf("failed to update successor: %v", err)
			}
		}

		if err := lifecycle.Deprecate(feature, deprecateSuccessor); err != nil {
			fatalf("%v", err)
		}
		if err := s.UpdateFeature(ctx, feature); err != nil {
			fatalf("%v", err)
		}

		msg := fmt.Sprintf("%s deprecated", feature.ID)
		if deprecateSuccessor != "" {
			msg += " (superseded by " + deprecateSuccessor + ")"
		}
		fmt.Printf("%s %s\n", color.GreenString("✓"), msg)
	},
}

func init() {
	deprecateCmd.Flags().StringVar(&deprecateSuccessor, "successor", "", "feature that replaces this one")
	rootCmd.AddCommand(deprecateCmd)
}
