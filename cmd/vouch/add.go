package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vouch-dev/vouch/internal/types"
)

var (
	addDescription string
	addModule      string
	addPriority    int
	addCriteria    []string
	addTags        []string
	addNoTDD       bool
)

var addCmd = &cobra.Command{
	Use:   "add <feature-id>",
	Short: "Add a feature to the ledger",
	Long: `Add a feature with acceptance criteria. Feature IDs are dotted paths,
e.g. "auth.login". New features start as failing; verification moves them
through the lifecycle. The configured TDD defaults apply unless --no-tdd
is given.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if addDescription == "" {
			fatalf("--description is required")
		}
		if len(addCriteria) == 0 {
			fatalf("at least one --criterion is required")
		}

		f := &types.Feature{
			ID:          args[0],
			Description: addDescription,
			Module:      addModule,
			Priority:    addPriority,
			Status:      types.StatusFailing,
			Acceptance:  addCriteria,
			Tags:        addTags,
			Origin:      "cli",
		}
		if !addNoTDD {
			f.TestRequirements = cfg.DefaultRequirements()
		}

		s := openStore()
		defer s.Close()

		if err := s.CreateFeature(context.Background(), f); err != nil {
			fatalf("%v", err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Added %s (%d criteria, priority %d)\n",
			green("✓"), f.ID, len(f.Acceptance), f.Priority)
	},
}

func init() {
	addCmd.Flags().StringVarP(&addDescription, "description", "d", "", "what the feature does")
	addCmd.Flags().StringVarP(&addModule, "module", "m", "", "owning module")
	addCmd.Flags().IntVarP(&addPriority, "priority", "p", 10, "priority (lower = more urgent)")
	addCmd.Flags().StringArrayVarP(&addCriteria, "criterion", "c", nil, "acceptance criterion (repeatable)")
	addCmd.Flags().StringSliceVar(&addTags, "tag", nil, "tags")
	addCmd.Flags().BoolVar(&addNoTDD, "no-tdd", false, "skip default test requirements")
	rootCmd.AddCommand(addCmd)
}
