package verify

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/vouch-dev/vouch/internal/types"
)

func TestBuilder_EmbedsFeatureAndCriteria(t *testing.T) {
	b, err := NewBuilder(0)
	if err != nil {
		t.Fatal(err)
	}

	prompt, _, err := b.Build(BuildInput{
		Feature:      twoCriteriaFeature(),
		Diff:         "",
		ChangedFiles: []string{"auth/login.go", "auth/login_test.go"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(prompt, "auth.login") {
		t.Error("expected feature ID in prompt")
	}
	if !strings.Contains(prompt, "1. valid credentials return a session token") {
		t.Error("expected 1-indexed first criterion")
	}
	if !strings.Contains(prompt, "2. invalid credentials return 401") {
		t.Error("expected 1-indexed second criterion")
	}
	if !strings.Contains(prompt, "auth/login_test.go") {
		t.Error("expected changed files in prompt")
	}
	if !strings.Contains(prompt, "(no diff available)") {
		t.Error("expected empty diff placeholder")
	}
	if !strings.Contains(prompt, `"verdict"`) {
		t.Error("expected JSON shape demand")
	}
}

func TestBuilder_TruncatesDiff(t *testing.T) {
	b, err := NewBuilder(500)
	if err != nil {
		t.Fatal(err)
	}

	var sb strings.Builder
	sb.WriteString("diff --git a/big.go b/big.go\n--- a/big.go\n+++ b/big.go\n")
	sb.WriteString(fmt.Sprintf("@@ -1,%d +1,%d @@\n", 200, 200))
	for i := 0; i < 200; i++ {
		sb.WriteString(fmt.Sprintf(" context line %d\n", i))
	}

	prompt, info, err := b.Build(BuildInput{Feature: twoCriteriaFeature(), Diff: sb.String()})
	if err != nil {
		t.Fatal(err)
	}

	if !info.WasTruncated {
		t.Fatal("expected oversized diff to be truncated")
	}
	if strings.Contains(prompt, "context line 199") {
		t.Error("expected tail of oversized diff to be dropped")
	}
	if !strings.Contains(prompt, "@@") {
		t.Error("expected hunk header to survive truncation")
	}
}

func TestBuilder_EmbedsCheckResults(t *testing.T) {
	b, _ := NewBuilder(0)

	prompt, _, err := b.Build(BuildInput{
		Feature: twoCriteriaFeature(),
		Checks: []types.AutomatedCheckResult{
			{Kind: types.CheckTest, Command: "go test ./...", Success: false,
				Output: "--- FAIL: TestLogin", Duration: 2 * time.Second},
			{Kind: types.CheckBuild, Command: "go build ./...", Success: true,
				Duration: time.Second},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(prompt, "test (go test ./...) - FAILED") {
		t.Error("expected failed check heading")
	}
	if !strings.Contains(prompt, "--- FAIL: TestLogin") {
		t.Error("expected check output in prompt")
	}
	if !strings.Contains(prompt, "build (go build ./...) - PASSED") {
		t.Error("expected passing check heading")
	}
}

func TestBuilder_CapsRelatedFiles(t *testing.T) {
	b, _ := NewBuilder(0)

	big := strings.Repeat("x", DefaultRelatedFileCap+100)
	prompt, _, err := b.Build(BuildInput{
		Feature:      twoCriteriaFeature(),
		RelatedFiles: map[string]string{"huge.go": big},
	})
	if err != nil {
		t.Fatal(err)
	}

	if strings.Contains(prompt, big) {
		t.Error("expected related file content to be capped")
	}
	if !strings.Contains(prompt, "huge.go") {
		t.Error("expected related file path in prompt")
	}
	if !strings.Contains(prompt, "... (truncated)") {
		t.Error("expected truncation marker")
	}
}

func TestBuilder_AutonomousExplorationNote(t *testing.T) {
	b, _ := NewBuilder(0)

	withExplore, _, _ := b.Build(BuildInput{Feature: twoCriteriaFeature(), Autonomous: true})
	without, _, _ := b.Build(BuildInput{Feature: twoCriteriaFeature()})

	if !strings.Contains(withExplore, "EXPLORATION") {
		t.Error("expected exploration section in autonomous mode")
	}
	if strings.Contains(without, "EXPLORATION") {
		t.Error("expected no exploration section by default")
	}
}

func TestBuilder_RejectsInvalidFeature(t *testing.T) {
	b, _ := NewBuilder(0)

	if _, _, err := b.Build(BuildInput{}); err == nil {
		t.Error("expected error for nil feature")
	}
	if _, _, err := b.Build(BuildInput{Feature: &types.Feature{ID: "x"}}); err == nil {
		t.Error("expected error for feature without criteria")
	}
}

func TestTruncateTail_KeepsRunesWhole(t *testing.T) {
	if got := truncateTail("short", 100); got != "short" {
		t.Errorf("expected identity under the cap, got %q", got)
	}

	// An odd cap over 2-byte runes forces the naive cut mid-rune.
	s := strings.Repeat("é", 50)
	got := truncateTail(s, 21)
	if !strings.HasPrefix(got, "...") {
		t.Fatalf("expected tail marker, got %q", got)
	}
	if !utf8.ValidString(got) {
		t.Error("expected the cut to land on a rune boundary")
	}
	if want := strings.Repeat("é", 10); !strings.HasSuffix(got, want) {
		t.Errorf("expected the last 10 runes kept, got %q", got)
	}
}
