package capability

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vouch-dev/vouch/internal/ai"
	"github.com/vouch-dev/vouch/internal/types"
)

const (
	// Bounds on the project context shipped to the AI for discovery.
	maxTreeEntries     = 120
	maxTreeDepth       = 3
	maxSampleFiles     = 4
	maxSampleBytes     = 1000
	maxRootListEntries = 40
)

var sourceExtensions = []string{".go", ".ts", ".tsx", ".js", ".py", ".rs", ".java", ".rb", ".c", ".cpp", ".cs", ".ex", ".kt"}

// AIResolver asks the AI agent to figure out how to test, lint, typecheck,
// and build a project the presets could not confidently identify.
//
// Any failure along the way (agent unavailable, timeout, unparsable output)
// degrades to a zero-confidence empty profile; discovery never errors.
type AIResolver struct {
	agent   ai.Agent
	timeout time.Duration
}

// NewAIResolver creates an AI-backed capability resolver.
func NewAIResolver(agent ai.Agent, timeout time.Duration) *AIResolver {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &AIResolver{agent: agent, timeout: timeout}
}

// Name implements Resolver.
func (r *AIResolver) Name() string { return "ai" }

// discoveryResponse is the JSON shape demanded from the agent. Treated as
// untrusted input: every field defaults sanely when absent or malformed.
type discoveryResponse struct {
	Languages []string `json:"languages"`
	Checks    map[string]struct {
		Available  bool    `json:"available"`
		Command    string  `json:"command"`
		Framework  string  `json:"framework"`
		Confidence float64 `json:"confidence"`
	} `json:"checks"`
	CustomRules []struct {
		ID          string `json:"id"`
		Description string `json:"description"`
		Command     string `json:"command"`
		Kind        string `json:"kind"`
	} `json:"custom_rules"`
}

// Resolve submits a bounded project context and parses the response
// defensively.
func (r *AIResolver) Resolve(ctx context.Context, root string) (*Profile, error) {
	if r.agent == nil {
		return EmptyProfile(SourceAI), nil
	}

	prompt := buildDiscoveryPrompt(root)
	resp, err := r.agent.Submit(ctx, prompt, ai.SubmitOptions{Dir: root, Timeout: r.timeout})
	if err != nil || !resp.Success {
		reason := resp.Failure
		if err != nil {
			reason = err.Error()
		}
		slog.Debug("AI capability discovery failed", "reason", reason)
		return EmptyProfile(SourceAI), nil
	}

	parsed := ai.Parse[discoveryResponse](resp.Output)
	if !parsed.OK || len(parsed.Data.Languages) == 0 {
		slog.Debug("AI capability discovery returned unusable output", "error", parsed.Err)
		return EmptyProfile(SourceAI), nil
	}

	return profileFromDiscovery(parsed.Data), nil
}

func profileFromDiscovery(d discoveryResponse) *Profile {
	p := EmptyProfile(SourceAI)
	p.Languages = d.Languages

	for _, kind := range types.StandardCheckKinds {
		c, ok := d.Checks[string(kind)]
		if !ok {
			continue
		}
		p.Checks[kind] = Check{
			Available:  c.Available && c.Command != "",
			Command:    c.Command,
			Framework:  c.Framework,
			Confidence: types.ClampConfidence(c.Confidence),
		}
	}

	for _, rule := range d.CustomRules {
		if rule.Command == "" {
			continue
		}
		id := rule.ID
		if id == "" {
			id = fmt.Sprintf("custom-%d", len(p.CustomRules)+1)
		}
		p.CustomRules = append(p.CustomRules, CustomRule{
			ID:          id,
			Description: rule.Description,
			Command:     rule.Command,
			Kind:        rule.Kind,
		})
	}

	p.recomputeConfidence()
	return p
}

func buildDiscoveryPrompt(root string) string {
	var sb strings.Builder

	sb.WriteString(`You are analyzing a software project to determine how to run its automated checks.

Respond with ONLY a JSON object in exactly this shape:
{
  "languages": ["<primary language>", ...],
  "checks": {
    "test":      {"available": bool, "command": "<shell command>", "framework": "<name>", "confidence": 0.0-1.0},
    "typecheck": {"available": bool, "command": "...", "framework": "...", "confidence": 0.0-1.0},
    "lint":      {"available": bool, "command": "...", "framework": "...", "confidence": 0.0-1.0},
    "build":     {"available": bool, "command": "...", "framework": "...", "confidence": 0.0-1.0}
  },
  "custom_rules": [{"id": "...", "description": "...", "command": "...", "kind": "..."}]
}

Rules:
- Commands must run from the project root and exit non-zero on failure.
- Mark a check unavailable rather than guessing at a command.
- Use custom_rules only for project-specific checks that fit no standard kind.
- languages must be non-empty.

`)

	if files := presentBuildFiles(root); len(files) > 0 {
		sb.WriteString("Build files present:\n")
		for _, f := range files {
			sb.WriteString("- " + f + "\n")
		}
		sb.WriteString("\n")
	}

	if entries := listRootEntries(root); len(entries) > 0 {
		sb.WriteString("Top-level entries:\n")
		for _, e := range entries {
			sb.WriteString("- " + e + "\n")
		}
		sb.WriteString("\n")
	}

	if tree := renderTree(root); tree != "" {
		sb.WriteString("Directory tree (depth-limited):\n")
		sb.WriteString(tree)
		sb.WriteString("\n")
	}

	for _, sample := range sampleSources(root) {
		fmt.Fprintf(&sb, "Leading content of %s:\n```\n%s\n```\n\n", sample.path, sample.content)
	}

	return sb.String()
}

func listRootEntries(root string) []string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() && ignorableDir(name) {
			continue
		}
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
		if len(names) >= maxRootListEntries {
			break
		}
	}
	sort.Strings(names)
	return names
}

func renderTree(root string) string {
	var sb strings.Builder
	count := 0
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		depth := strings.Count(rel, string(filepath.Separator))
		if d.IsDir() {
			if ignorableDir(d.Name()) || depth >= maxTreeDepth {
				return filepath.SkipDir
			}
		}
		if count >= maxTreeEntries {
			return filepath.SkipAll
		}
		count++
		indent := strings.Repeat("  ", depth)
		name := d.Name()
		if d.IsDir() {
			name += "/"
		}
		sb.WriteString(indent + name + "\n")
		return nil
	})
	return sb.String()
}

type sourceSample struct {
	path    string
	content string
}

func sampleSources(root string) []sourceSample {
	var samples []sourceSample
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if ignorableDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if len(samples) >= maxSampleFiles {
			return filepath.SkipAll
		}
		ext := filepath.Ext(d.Name())
		for _, se := range sourceExtensions {
			if ext == se {
				data, readErr := os.ReadFile(path)
				if readErr != nil {
					return nil
				}
				content := string(data)
				if len(content) > maxSampleBytes {
					cut := maxSampleBytes
					for cut > 0 && !utf8.RuneStart(content[cut]) {
						cut--
					}
					content = content[:cut]
				}
				rel, _ := filepath.Rel(root, path)
				samples = append(samples, sourceSample{path: rel, content: content})
				break
			}
		}
		return nil
	})
	return samples
}
