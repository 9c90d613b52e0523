package verify

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/vouch-dev/vouch/internal/capability"
	"github.com/vouch-dev/vouch/internal/types"
)

func requireSh(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func profileWith(checks map[types.CheckKind]string) *capability.Profile {
	p := capability.EmptyProfile(capability.SourcePreset)
	for kind, cmd := range checks {
		p.Checks[kind] = capability.Check{Available: true, Command: cmd, Confidence: 0.9}
	}
	return p
}

func TestCheckRunner_RunsAllInKindOrder(t *testing.T) {
	requireSh(t)

	runner := NewCheckRunner(t.TempDir())
	results := runner.RunAll(context.Background(), profileWith(map[types.CheckKind]string{
		types.CheckBuild: "true",
		types.CheckTest:  "echo ok",
	}))

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Kind != types.CheckTest || results[1].Kind != types.CheckBuild {
		t.Errorf("expected standard kind order, got %v then %v", results[0].Kind, results[1].Kind)
	}
	if !results[0].Success || !results[1].Success {
		t.Error("expected both checks to succeed")
	}
	if results[0].Output == "" {
		t.Error("expected captured output")
	}
}

func TestCheckRunner_FailureIsResultNotError(t *testing.T) {
	requireSh(t)

	runner := NewCheckRunner(t.TempDir())
	results := runner.RunAll(context.Background(), profileWith(map[types.CheckKind]string{
		types.CheckTest: "echo 'error: assertion failed' && exit 1",
	}))

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.Success {
		t.Error("expected failed check")
	}
	if r.ErrorCount == 0 {
		t.Error("expected error lines to be counted")
	}
	if r.Duration <= 0 {
		t.Error("expected a positive duration")
	}
}

func TestCheckRunner_TimeoutIsFailure(t *testing.T) {
	requireSh(t)

	runner := NewCheckRunner(t.TempDir())
	runner.Timeout = 100 * time.Millisecond
	results := runner.RunAll(context.Background(), profileWith(map[types.CheckKind]string{
		types.CheckTest: "sleep 5",
	}))

	if results[0].Success {
		t.Error("expected timed-out check to fail")
	}
}

func TestCheckRunner_CustomRulesRunLast(t *testing.T) {
	requireSh(t)

	p := profileWith(map[types.CheckKind]string{types.CheckTest: "true"})
	p.CustomRules = []capability.CustomRule{
		{ID: "audit", Description: "dependency audit", Command: "echo audited"},
	}

	runner := NewCheckRunner(t.TempDir())
	results := runner.RunAll(context.Background(), p)

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	last := results[len(results)-1]
	if last.Kind != types.CheckCustom || last.Command != "echo audited" {
		t.Errorf("expected custom rule last, got %+v", last)
	}
}

func TestCheckRunner_EmptyProfile(t *testing.T) {
	runner := NewCheckRunner(t.TempDir())
	if got := runner.RunAll(context.Background(), capability.EmptyProfile(capability.SourcePreset)); got != nil {
		t.Errorf("expected nil results for empty profile, got %v", got)
	}
	if got := runner.RunAll(context.Background(), nil); got != nil {
		t.Errorf("expected nil results for nil profile, got %v", got)
	}
}
