package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vouch-dev/vouch/internal/config"
	"github.com/vouch-dev/vouch/internal/store"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize vouch in the current project",
	Long: `Create the .vouch directory with a default configuration and an empty
feature database. Safe to run in an existing project; an existing config
is left untouched.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath := filepath.Join(rootDir, filepath.FromSlash(config.RelPath))
		if _, err := os.Stat(configPath); err == nil {
			fmt.Printf("vouch is already initialized in %s\n", rootDir)
			return
		}

		if err := cfg.Save(rootDir); err != nil {
			fatalf("failed to write config: %v", err)
		}

		s, err := store.Open(rootDir)
		if err != nil {
			fatalf("failed to create database: %v", err)
		}
		defer s.Close()

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Initialized vouch in %s\n", green("✓"), rootDir)
		fmt.Printf("  config:   %s\n", config.RelPath)
		fmt.Printf("  database: %s\n", store.DefaultRelPath)
		fmt.Println("\nNext: add a feature with 'vouch add'")
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
