// vouch is a feature acceptance tool for agent-driven development: it keeps
// a ledger of features with acceptance criteria and verifies each one
// against the working tree using automated checks plus an AI judge.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/vouch-dev/vouch/internal/ai"
	"github.com/vouch-dev/vouch/internal/capability"
	"github.com/vouch-dev/vouch/internal/config"
	"github.com/vouch-dev/vouch/internal/store"
	"github.com/vouch-dev/vouch/internal/vcs"
)

var (
	rootDir string
	verbose bool
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "vouch",
	Short: "Feature acceptance automation for agent-driven development",
	Long: `vouch tracks features with explicit acceptance criteria and verifies
each one against the working tree: automated checks (tests, lint, build)
plus an AI judgment pass over the diff. Features move through a strict
lifecycle (failing, passing, blocked, needs_review, deprecated) and a
test gate keeps untested code from reaching passing.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if rootDir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to determine working directory: %w", err)
			}
			rootDir = wd
		}
		abs, err := filepath.Abs(rootDir)
		if err != nil {
			return fmt.Errorf("invalid directory %q: %w", rootDir, err)
		}
		rootDir = abs

		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		cfg, err = config.Load(rootDir)
		if err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "C", "", "project directory (default: current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// openStore opens the project database, exiting on failure.
func openStore() *store.Store {
	s, err := store.Open(rootDir)
	if err != nil {
		fatalf("failed to open store: %v", err)
	}
	return s
}

// newAgent picks an AI backend following the configured priority order.
// Returns nil when nothing is available; callers decide whether that is
// fatal or a degraded run.
func newAgent() ai.Agent {
	order := cfg.Agents
	if len(order) == 0 {
		order = []string{"claude", "amp", "api"}
	}

	byName := make(map[string]ai.Tool)
	for _, tool := range ai.DefaultTools() {
		byName[tool.Name] = tool
	}

	for _, name := range order {
		if name == "api" {
			agent, err := ai.NewAPIAgent(ai.APIConfig{Model: cfg.Model})
			if err == nil {
				return agent
			}
			slog.Debug("API agent unavailable", "error", err)
			continue
		}
		tool, ok := byName[name]
		if !ok {
			slog.Debug("unknown agent in config", "name", name)
			continue
		}
		if _, err := exec.LookPath(tool.Binary); err == nil {
			return ai.NewCLIAgent(tool)
		}
	}
	return nil
}

// newDetector wires the standard detection chain for the project.
func newDetector(ctx context.Context, agent ai.Agent) *capability.Detector {
	var cache *capability.Cache
	if git, err := vcs.NewGit(ctx); err == nil {
		cache = capability.NewCache(git)
	} else {
		slog.Debug("git unavailable, capability cache disabled", "error", err)
	}

	var aiTier capability.Resolver
	if agent != nil {
		aiTier = capability.NewAIResolver(agent, 2*time.Minute)
	}
	return capability.NewDefaultDetector(cache, cfg.ConfidenceThreshold, aiTier)
}
