package capability

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"

	"github.com/vouch-dev/vouch/internal/types"
)

// PresetResolver infers capabilities from well-known build and config files.
// Each check's confidence grows with the number of corroborating signals:
// a test framework dependency plus a test script scores higher than either
// alone.
type PresetResolver struct{}

// Name implements Resolver.
func (r *PresetResolver) Name() string { return "preset" }

// Resolve inspects the project root for known ecosystems. It never fails;
// an unrecognized project yields an empty profile.
func (r *PresetResolver) Resolve(ctx context.Context, root string) (*Profile, error) {
	p := EmptyProfile(SourcePreset)

	detectGo(root, p)
	detectNode(root, p)
	detectRust(root, p)
	detectPython(root, p)
	detectMake(root, p)

	p.recomputeConfidence()
	return p, nil
}

func addLanguage(p *Profile, lang string) {
	for _, l := range p.Languages {
		if l == lang {
			return
		}
	}
	p.Languages = append(p.Languages, lang)
}

// setCheck records a capability unless a higher-confidence one is already
// present for the same kind.
func setCheck(p *Profile, kind types.CheckKind, c Check) {
	if existing, ok := p.Checks[kind]; ok && existing.Available && existing.Confidence >= c.Confidence {
		return
	}
	c.Confidence = types.ClampConfidence(c.Confidence)
	p.Checks[kind] = c
}

func exists(root string, name string) bool {
	_, err := os.Stat(filepath.Join(root, name))
	return err == nil
}

func detectGo(root string, p *Profile) {
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return
	}
	mf, err := modfile.Parse("go.mod", data, nil)
	if err != nil {
		return
	}
	addLanguage(p, "go")

	testConfidence := 0.6
	if hasFileWithSuffix(root, "_test.go", 3) {
		testConfidence += 0.3
	}
	for _, req := range mf.Require {
		if strings.Contains(req.Mod.Path, "stretchr/testify") {
			testConfidence += 0.05
			break
		}
	}
	if testConfidence > 0.95 {
		testConfidence = 0.95
	}
	setCheck(p, types.CheckTest, Check{Available: true, Command: "go test ./...", Framework: "go test", Confidence: testConfidence})
	setCheck(p, types.CheckTypecheck, Check{Available: true, Command: "go vet ./...", Framework: "go vet", Confidence: 0.9})
	setCheck(p, types.CheckBuild, Check{Available: true, Command: "go build ./...", Framework: "go", Confidence: 0.9})

	if exists(root, ".golangci.yml") || exists(root, ".golangci.yaml") || exists(root, ".golangci.toml") {
		setCheck(p, types.CheckLint, Check{Available: true, Command: "golangci-lint run ./...", Framework: "golangci-lint", Confidence: 0.85})
	}
}

type packageJSON struct {
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

var nodeTestFrameworks = []string{"jest", "vitest", "mocha", "ava", "tap", "jasmine"}

func detectNode(root string, p *Profile) {
	data, err := os.ReadFile(filepath.Join(root, "package.json"))
	if err != nil {
		return
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return
	}

	lang := "javascript"
	hasTS := exists(root, "tsconfig.json")
	if hasTS {
		lang = "typescript"
	}
	addLanguage(p, lang)

	runner := "npm"
	switch {
	case exists(root, "pnpm-lock.yaml"):
		runner = "pnpm"
	case exists(root, "yarn.lock"):
		runner = "yarn"
	}
	hasLockfile := runner != "npm" || exists(root, "package-lock.json")

	dep := func(name string) bool {
		_, inDeps := pkg.Dependencies[name]
		_, inDev := pkg.DevDependencies[name]
		return inDeps || inDev
	}

	framework := ""
	for _, fw := range nodeTestFrameworks {
		if dep(fw) {
			framework = fw
			break
		}
	}

	testScript, hasTestScript := pkg.Scripts["test"]
	if hasTestScript && strings.Contains(testScript, "no test specified") {
		hasTestScript = false
	}

	// Corroboration: a declared framework plus a test script entry is a
	// much stronger signal than either alone. A framework pinned by a
	// lockfile counts as corroborated too.
	switch {
	case hasTestScript && framework != "":
		setCheck(p, types.CheckTest, Check{Available: true, Command: runner + " test", Framework: framework, Confidence: 0.9})
	case hasTestScript:
		setCheck(p, types.CheckTest, Check{Available: true, Command: runner + " test", Confidence: 0.6})
	case framework != "" && hasLockfile:
		setCheck(p, types.CheckTest, Check{Available: true, Command: "npx " + framework, Framework: framework, Confidence: 0.85})
	case framework != "":
		setCheck(p, types.CheckTest, Check{Available: true, Command: "npx " + framework, Framework: framework, Confidence: 0.5})
	}

	if _, ok := pkg.Scripts["lint"]; ok {
		setCheck(p, types.CheckLint, Check{Available: true, Command: runner + " run lint", Confidence: 0.8})
	} else if dep("eslint") {
		setCheck(p, types.CheckLint, Check{Available: true, Command: "npx eslint .", Framework: "eslint", Confidence: 0.6})
	}

	if hasTS {
		conf := 0.7
		if dep("typescript") {
			conf = 0.85
		}
		setCheck(p, types.CheckTypecheck, Check{Available: true, Command: "npx tsc --noEmit", Framework: "tsc", Confidence: conf})
	}

	if _, ok := pkg.Scripts["build"]; ok {
		setCheck(p, types.CheckBuild, Check{Available: true, Command: runner + " run build", Confidence: 0.8})
	}
}

func detectRust(root string, p *Profile) {
	if !exists(root, "Cargo.toml") {
		return
	}
	addLanguage(p, "rust")

	conf := 0.8
	if exists(root, "Cargo.lock") {
		conf = 0.9
	}
	setCheck(p, types.CheckTest, Check{Available: true, Command: "cargo test", Framework: "cargo", Confidence: conf})
	setCheck(p, types.CheckBuild, Check{Available: true, Command: "cargo build", Framework: "cargo", Confidence: conf})
	setCheck(p, types.CheckTypecheck, Check{Available: true, Command: "cargo check", Framework: "cargo", Confidence: conf})
	setCheck(p, types.CheckLint, Check{Available: true, Command: "cargo clippy -- -D warnings", Framework: "clippy", Confidence: 0.6})
}

func detectPython(root string, p *Profile) {
	pyproject := readFileString(root, "pyproject.toml")
	requirements := readFileString(root, "requirements.txt") + readFileString(root, "requirements-dev.txt")
	if pyproject == "" && requirements == "" && !exists(root, "setup.py") {
		return
	}
	addLanguage(p, "python")

	declared := func(tool string) bool {
		return strings.Contains(pyproject, tool) || strings.Contains(requirements, tool)
	}

	if declared("pytest") {
		conf := 0.8
		if exists(root, "tests") || exists(root, "test") {
			conf = 0.9
		}
		setCheck(p, types.CheckTest, Check{Available: true, Command: "pytest", Framework: "pytest", Confidence: conf})
	} else if exists(root, "tests") {
		setCheck(p, types.CheckTest, Check{Available: true, Command: "python -m pytest", Framework: "pytest", Confidence: 0.4})
	}

	if declared("ruff") {
		setCheck(p, types.CheckLint, Check{Available: true, Command: "ruff check .", Framework: "ruff", Confidence: 0.85})
	} else if declared("flake8") {
		setCheck(p, types.CheckLint, Check{Available: true, Command: "flake8", Framework: "flake8", Confidence: 0.8})
	}

	if declared("mypy") {
		setCheck(p, types.CheckTypecheck, Check{Available: true, Command: "mypy .", Framework: "mypy", Confidence: 0.8})
	}
}

// detectMake fills remaining gaps from Makefile targets, at low confidence:
// a target's existence says little about what it actually runs.
func detectMake(root string, p *Profile) {
	content := readFileString(root, "Makefile")
	if content == "" {
		return
	}

	targets := map[types.CheckKind]string{
		types.CheckTest:  "test",
		types.CheckLint:  "lint",
		types.CheckBuild: "build",
	}
	for kind, target := range targets {
		if p.Checks[kind].Available {
			continue
		}
		if hasMakeTarget(content, target) {
			setCheck(p, kind, Check{Available: true, Command: "make " + target, Framework: "make", Confidence: 0.5})
		}
	}
}

func hasMakeTarget(content, target string) bool {
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, target+":") {
			return true
		}
	}
	return false
}

func readFileString(root, name string) string {
	data, err := os.ReadFile(filepath.Join(root, name))
	if err != nil {
		return ""
	}
	return string(data)
}

// hasFileWithSuffix walks at most maxDepth levels looking for a file with
// the given suffix, skipping ignorable directories.
func hasFileWithSuffix(root, suffix string, maxDepth int) bool {
	found := false
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if d.IsDir() {
			if ignorableDir(d.Name()) {
				return filepath.SkipDir
			}
			if strings.Count(rel, string(filepath.Separator)) >= maxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), suffix) {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	return found
}

func ignorableDir(name string) bool {
	switch name {
	case ".git", "node_modules", "vendor", "target", "dist", "build",
		"__pycache__", ".venv", "venv", ".idea", ".vscode", ".vouch":
		return true
	}
	return strings.HasPrefix(name, ".")
}
