package capability

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/vouch-dev/vouch/internal/types"
)

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestPresets_EmptyDirectory(t *testing.T) {
	p, err := (&PresetResolver{}).Resolve(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if p.HasAny() {
		t.Error("expected no capabilities in an empty directory")
	}
	if p.Confidence != 0 {
		t.Errorf("expected zero confidence, got %v", p.Confidence)
	}
}

func TestPresets_GoProject(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "go.mod", "module example.com/demo\n\ngo 1.22\n\nrequire github.com/stretchr/testify v1.9.0\n")
	writeFile(t, root, "demo_test.go", "package demo\n")

	p, err := (&PresetResolver{}).Resolve(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}

	if len(p.Languages) != 1 || p.Languages[0] != "go" {
		t.Errorf("expected go language, got %v", p.Languages)
	}

	test := p.Check(types.CheckTest)
	if !test.Available || test.Command != "go test ./..." {
		t.Errorf("unexpected test check: %+v", test)
	}
	if test.Confidence <= 0.8 {
		t.Errorf("expected corroborated test confidence above 0.8, got %v", test.Confidence)
	}

	if got := p.Check(types.CheckTypecheck).Command; got != "go vet ./..." {
		t.Errorf("unexpected typecheck command %q", got)
	}
	if got := p.Check(types.CheckBuild).Command; got != "go build ./..." {
		t.Errorf("unexpected build command %q", got)
	}
	if p.Check(types.CheckLint).Available {
		t.Error("expected no lint check without golangci config")
	}

	writeFile(t, root, ".golangci.yml", "linters: {}\n")
	p, _ = (&PresetResolver{}).Resolve(context.Background(), root)
	if !p.Check(types.CheckLint).Available {
		t.Error("expected lint check with golangci config present")
	}
}

// A manifest declaring a test framework plus a test script must score above
// the AI-fallback threshold, so discovery is never consulted for it.
func TestPresets_NodeCorroboratedSignalsBeatThreshold(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{
		"scripts": {"test": "jest"},
		"devDependencies": {"jest": "^29.0.0"}
	}`)
	writeFile(t, root, "package-lock.json", "{}")

	p, err := (&PresetResolver{}).Resolve(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}

	if len(p.Languages) == 0 || p.Languages[0] != "javascript" {
		t.Errorf("expected javascript language, got %v", p.Languages)
	}
	test := p.Check(types.CheckTest)
	if !test.Available {
		t.Fatal("expected test capability")
	}
	if test.Framework != "jest" {
		t.Errorf("expected jest framework, got %q", test.Framework)
	}
	if test.Confidence <= DefaultConfidenceThreshold {
		t.Errorf("expected confidence above %v, got %v", DefaultConfidenceThreshold, test.Confidence)
	}
	if p.Confidence <= DefaultConfidenceThreshold {
		t.Errorf("expected aggregate confidence above threshold, got %v", p.Confidence)
	}
}

// A lockfile pinning a declared framework is enough corroboration on its
// own, even without a test script entry.
func TestPresets_NodeFrameworkWithLockfileBeatsThreshold(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{"devDependencies": {"vitest": "^1.0.0"}}`)
	writeFile(t, root, "pnpm-lock.yaml", "")

	p, err := (&PresetResolver{}).Resolve(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}

	test := p.Check(types.CheckTest)
	if !test.Available || test.Framework != "vitest" {
		t.Fatalf("unexpected test check: %+v", test)
	}
	if test.Confidence <= DefaultConfidenceThreshold {
		t.Errorf("expected confidence above %v, got %v", DefaultConfidenceThreshold, test.Confidence)
	}
	if p.Confidence <= DefaultConfidenceThreshold {
		t.Errorf("expected aggregate confidence above threshold, got %v", p.Confidence)
	}
}

func TestPresets_NodeSingleSignalIsWeaker(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{"devDependencies": {"vitest": "^1.0.0"}}`)

	p, _ := (&PresetResolver{}).Resolve(context.Background(), root)
	test := p.Check(types.CheckTest)
	if !test.Available {
		t.Fatal("expected test capability from framework dependency alone")
	}
	if test.Confidence >= 0.8 {
		t.Errorf("expected single-signal confidence below 0.8, got %v", test.Confidence)
	}

	// Default npm placeholder script is not a real test signal.
	root2 := t.TempDir()
	writeFile(t, root2, "package.json", `{"scripts": {"test": "echo \"Error: no test specified\" && exit 1"}}`)
	p2, _ := (&PresetResolver{}).Resolve(context.Background(), root2)
	if p2.Check(types.CheckTest).Available {
		t.Error("expected placeholder test script to be ignored")
	}
}

func TestPresets_TypeScriptProject(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{
		"scripts": {"build": "tsc", "lint": "eslint ."},
		"devDependencies": {"typescript": "^5.0.0", "eslint": "^9.0.0"}
	}`)
	writeFile(t, root, "tsconfig.json", "{}")
	writeFile(t, root, "pnpm-lock.yaml", "")

	p, _ := (&PresetResolver{}).Resolve(context.Background(), root)

	if len(p.Languages) == 0 || p.Languages[0] != "typescript" {
		t.Errorf("expected typescript language, got %v", p.Languages)
	}
	if got := p.Check(types.CheckTypecheck).Command; got != "npx tsc --noEmit" {
		t.Errorf("unexpected typecheck command %q", got)
	}
	if got := p.Check(types.CheckLint).Command; got != "pnpm run lint" {
		t.Errorf("expected pnpm runner from lockfile, got %q", got)
	}
	if got := p.Check(types.CheckBuild).Command; got != "pnpm run build" {
		t.Errorf("unexpected build command %q", got)
	}
}

func TestPresets_RustProject(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Cargo.toml", "[package]\nname = \"demo\"\n")
	writeFile(t, root, "Cargo.lock", "")

	p, _ := (&PresetResolver{}).Resolve(context.Background(), root)

	if len(p.Languages) == 0 || p.Languages[0] != "rust" {
		t.Errorf("expected rust language, got %v", p.Languages)
	}
	if got := p.Check(types.CheckTest).Command; got != "cargo test" {
		t.Errorf("unexpected test command %q", got)
	}
	if got := p.Check(types.CheckTypecheck).Command; got != "cargo check" {
		t.Errorf("unexpected typecheck command %q", got)
	}
}

func TestPresets_PythonProject(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pyproject.toml", "[tool.pytest.ini_options]\n[tool.ruff]\n[tool.mypy]\n")
	writeFile(t, root, "tests/test_demo.py", "def test_ok():\n    pass\n")

	p, _ := (&PresetResolver{}).Resolve(context.Background(), root)

	if len(p.Languages) == 0 || p.Languages[0] != "python" {
		t.Errorf("expected python language, got %v", p.Languages)
	}
	test := p.Check(types.CheckTest)
	if !test.Available || test.Framework != "pytest" {
		t.Errorf("unexpected test check: %+v", test)
	}
	if test.Confidence < 0.9 {
		t.Errorf("expected corroborated pytest confidence, got %v", test.Confidence)
	}
	if got := p.Check(types.CheckLint).Command; got != "ruff check ." {
		t.Errorf("unexpected lint command %q", got)
	}
	if got := p.Check(types.CheckTypecheck).Command; got != "mypy ." {
		t.Errorf("unexpected typecheck command %q", got)
	}
}

func TestPresets_MakefileFallback(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Makefile", "test:\n\t./run_tests.sh\n\nbuild:\n\t./build.sh\n")

	p, _ := (&PresetResolver{}).Resolve(context.Background(), root)

	test := p.Check(types.CheckTest)
	if !test.Available || test.Command != "make test" {
		t.Errorf("unexpected test check: %+v", test)
	}
	if test.Confidence >= 0.8 {
		t.Errorf("expected low-confidence make fallback, got %v", test.Confidence)
	}
	if p.Check(types.CheckLint).Available {
		t.Error("expected no lint check without a lint target")
	}
}

func TestPresets_MakefileDoesNotOverrideEcosystem(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "go.mod", "module example.com/demo\n\ngo 1.22\n")
	writeFile(t, root, "Makefile", "test:\n\tgo test ./...\n")

	p, _ := (&PresetResolver{}).Resolve(context.Background(), root)
	if got := p.Check(types.CheckTest).Command; got != "go test ./..." {
		t.Errorf("expected ecosystem preset to win over Makefile, got %q", got)
	}
}
