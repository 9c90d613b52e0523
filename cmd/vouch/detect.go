package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vouch-dev/vouch/internal/capability"
	"github.com/vouch-dev/vouch/internal/types"
)

var (
	detectForce   bool
	detectForceAI bool
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect the project's check capabilities",
	Long: `Resolve how to test, lint, typecheck, and build this project. Detection
tries the cached profile first, then ecosystem presets, then AI discovery
for unrecognized stacks. The result is cached in .vouch/capabilities.json
and invalidated when tracked build files change.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		detector := newDetector(ctx, newAgent())

		profile := detector.Detect(ctx, rootDir, capability.Options{
			Force:   detectForce,
			ForceAI: detectForceAI,
			Verbose: verbose,
		})

		printProfile(profile)
	},
}

func printProfile(p *capability.Profile) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s\n\n", cyan("=== Capability Profile ==="))
	fmt.Printf("Source:     %s\n", p.Source)
	fmt.Printf("Confidence: %.2f\n", p.Confidence)
	if len(p.Languages) > 0 {
		fmt.Printf("Languages:  %v\n", p.Languages)
	}
	fmt.Println()

	for _, kind := range types.StandardCheckKinds {
		check := p.Check(kind)
		if !check.Available {
			fmt.Printf("  %s %-10s %s\n", gray("○"), kind, gray("unavailable"))
			continue
		}
		detail := check.Command
		if check.Framework != "" {
			detail += gray(fmt.Sprintf("  (%s)", check.Framework))
		}
		fmt.Printf("  %s %-10s %s\n", green("●"), kind, detail)
	}

	for _, rule := range p.CustomRules {
		fmt.Printf("  %s %-10s %s\n", green("●"), "custom", rule.Command)
		if rule.Description != "" {
			fmt.Printf("    %s\n", gray(rule.Description))
		}
	}
	fmt.Println()

	if !p.HasAny() {
		fmt.Println(gray("No automated checks detected; verification will rely on AI judgment only."))
	}
}

func init() {
	detectCmd.Flags().BoolVar(&detectForce, "force", false, "ignore the cached profile")
	detectCmd.Flags().BoolVar(&detectForceAI, "ai", false, "skip presets, use AI discovery")
	rootCmd.AddCommand(detectCmd)
}
