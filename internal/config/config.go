// Package config loads vouch's per-project configuration from
// .vouch/config.yaml. Every field has a working default; a missing file is
// a valid configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vouch-dev/vouch/internal/types"
)

// RelPath is the config location inside a project.
const RelPath = ".vouch/config.yaml"

// Config is the per-project configuration.
type Config struct {
	// Agents lists AI backends in priority order. Known values: "claude",
	// "amp", "api". Empty means autodetect CLI tools, then the API.
	Agents []string `yaml:"agents,omitempty"`

	// Model overrides the API model.
	Model string `yaml:"model,omitempty"`

	// ConfidenceThreshold is the preset confidence below which capability
	// detection falls back to AI discovery.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// DiffBudget caps how many bytes of diff are embedded in a judgment
	// prompt before truncation.
	DiffBudget int `yaml:"diff_budget"`

	// CheckTimeout bounds a single automated check.
	CheckTimeout Duration `yaml:"check_timeout"`

	// VerifyTimeout bounds the AI judgment pass of one verification.
	VerifyTimeout Duration `yaml:"verify_timeout"`

	// MaxParallelChecks limits concurrent automated check processes.
	MaxParallelChecks int `yaml:"max_parallel_checks"`

	// TDD configures default test requirements applied to new features.
	TDD TDDConfig `yaml:"tdd"`
}

// TDDConfig is the default test gate applied to features created without
// explicit requirements.
type TDDConfig struct {
	RequireTests bool   `yaml:"require_tests"`
	TestPattern  string `yaml:"test_pattern,omitempty"`
}

// Duration wraps time.Duration so YAML accepts "90s" style strings.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, perr)
		}
		d.Duration = parsed
		return nil
	}

	// Bare numbers read as seconds.
	var secs float64
	if err := value.Decode(&secs); err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	d.Duration = time.Duration(secs * float64(time.Second))
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ConfidenceThreshold: 0.8,
		DiffBudget:          10000,
		CheckTimeout:        Duration{10 * time.Minute},
		VerifyTimeout:       Duration{5 * time.Minute},
		MaxParallelChecks:   3,
		TDD: TDDConfig{
			RequireTests: true,
			TestPattern:  "**/*_test.go",
		},
	}
}

// Load reads the config under root, filling unset fields with defaults.
// A missing file yields the defaults; a malformed file is an error.
func Load(root string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(root, filepath.FromSlash(RelPath))
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg.applyEnv()
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", RelPath, err)
	}
	cfg.applyEnv()
	cfg.normalize()
	return cfg, nil
}

// applyEnv lets environment variables override the file, for one-off runs
// without editing project config.
func (c *Config) applyEnv() {
	if model := os.Getenv("VOUCH_MODEL"); model != "" {
		c.Model = model
	}
	if agent := os.Getenv("VOUCH_AGENT"); agent != "" {
		c.Agents = []string{agent}
	}
	if budget := os.Getenv("VOUCH_DIFF_BUDGET"); budget != "" {
		if n, err := strconv.Atoi(budget); err == nil && n > 0 {
			c.DiffBudget = n
		}
	}
}

// Save writes the config under root, creating the .vouch directory.
func (c *Config) Save(root string) error {
	path := filepath.Join(root, filepath.FromSlash(RelPath))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// DefaultRequirements expands the TDD defaults into per-feature
// requirements. Nil when the gate is disabled.
func (c *Config) DefaultRequirements() map[types.CheckKind]types.TestRequirement {
	if !c.TDD.RequireTests || c.TDD.TestPattern == "" {
		return nil
	}
	return map[types.CheckKind]types.TestRequirement{
		types.CheckTest: {Required: true, Pattern: c.TDD.TestPattern},
	}
}

// normalize clamps nonsense values back to defaults.
func (c *Config) normalize() {
	def := Default()
	c.ConfidenceThreshold = types.ClampConfidence(c.ConfidenceThreshold)
	if c.ConfidenceThreshold == 0 {
		c.ConfidenceThreshold = def.ConfidenceThreshold
	}
	if c.DiffBudget <= 0 {
		c.DiffBudget = def.DiffBudget
	}
	if c.CheckTimeout.Duration <= 0 {
		c.CheckTimeout = def.CheckTimeout
	}
	if c.VerifyTimeout.Duration <= 0 {
		c.VerifyTimeout = def.VerifyTimeout
	}
	if c.MaxParallelChecks <= 0 {
		c.MaxParallelChecks = def.MaxParallelChecks
	}
}
