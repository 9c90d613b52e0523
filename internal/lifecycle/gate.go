package lifecycle

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/vouch-dev/vouch/internal/types"
)

// ErrTestsRequired marks pass attempts blocked by unmet test requirements.
var ErrTestsRequired = errors.New("required tests missing")

// TestGate enforces test-first discipline: a feature with required test
// patterns cannot reach passing until matching test files exist on disk.
type TestGate struct {
	Root string
}

// NewTestGate creates a gate rooted at the repository directory.
func NewTestGate(root string) *TestGate {
	return &TestGate{Root: root}
}

// MissingRequirement identifies one unmet test requirement.
type MissingRequirement struct {
	Kind    types.CheckKind
	Pattern string
}

// GateResult is the outcome of a gate check, itemizing every unmet
// requirement so the operator sees exactly what is missing.
type GateResult struct {
	Satisfied bool
	Missing   []MissingRequirement
}

// Summary renders the unmet requirements for notes and terminal output.
func (r GateResult) Summary() string {
	if r.Satisfied {
		return "all test requirements met"
	}
	parts := make([]string, len(r.Missing))
	for i, m := range r.Missing {
		parts[i] = fmt.Sprintf("%s (no files match %q)", m.Kind, m.Pattern)
	}
	return "missing " + strings.Join(parts, ", ")
}

// Check evaluates every required test pattern against the working tree.
// A feature with no requirements passes trivially. Disk errors count a
// requirement as unmet; the gate fails safe.
func (g *TestGate) Check(f *types.Feature) GateResult {
	result := GateResult{Satisfied: true}
	for _, kind := range orderedRequirementKinds(f) {
		req := f.TestRequirements[kind]
		if !req.Required || req.Pattern == "" {
			continue
		}
		if !g.anyMatch(req.Pattern) {
			result.Satisfied = false
			result.Missing = append(result.Missing, MissingRequirement{Kind: kind, Pattern: req.Pattern})
		}
	}
	return result
}

// orderedRequirementKinds keeps gate output deterministic: standard kinds
// in reporting order, then custom.
func orderedRequirementKinds(f *types.Feature) []types.CheckKind {
	var kinds []types.CheckKind
	for _, kind := range append(types.StandardCheckKinds, types.CheckCustom) {
		if _, ok := f.TestRequirements[kind]; ok {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// anyMatch reports whether any file under the root matches the glob.
// Patterns support a leading "**/" to match at any depth.
func (g *TestGate) anyMatch(pattern string) bool {
	anyDepth := false
	if rest, ok := strings.CutPrefix(pattern, "**/"); ok {
		anyDepth = true
		pattern = rest
	}

	found := false
	walkErr := filepath.WalkDir(g.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are not matches
		}
		if d.IsDir() {
			if path != g.Root && ignorableDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(g.Root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		target := rel
		if anyDepth {
			target = filepath.Base(rel)
		}
		if ok, _ := filepath.Match(pattern, target); ok {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	if walkErr != nil {
		return false
	}
	return found
}

func ignorableDir(name string) bool {
	switch name {
	case "node_modules", "vendor", "target", "dist", "build", "__pycache__":
		return true
	}
	return strings.HasPrefix(name, ".")
}
