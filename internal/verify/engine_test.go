package verify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vouch-dev/vouch/internal/ai"
	"github.com/vouch-dev/vouch/internal/capability"
	"github.com/vouch-dev/vouch/internal/types"
)

// fakeEngineVCS serves canned evidence.
type fakeEngineVCS struct {
	inRepo  bool
	head    string
	files   []string
	diff    string
	diffErr error
}

func (f *fakeEngineVCS) IsRepo(ctx context.Context, root string) bool { return f.inRepo }

func (f *fakeEngineVCS) HeadRevision(ctx context.Context, root string) (string, error) {
	return f.head, nil
}

func (f *fakeEngineVCS) ChangedFiles(ctx context.Context, root string) ([]string, error) {
	return f.files, nil
}

func (f *fakeEngineVCS) WorkingTreeDiff(ctx context.Context, root string) (string, error) {
	return f.diff, f.diffErr
}

func (f *fakeEngineVCS) Diff(ctx context.Context, root, from, to string, paths ...string) (string, error) {
	return f.diff, f.diffErr
}

// fakeJudge implements ai.Agent with a canned response.
type fakeJudge struct {
	response ai.Response
	err      error
	prompts  []string
}

func (f *fakeJudge) ID() string { return "fake-judge" }

func (f *fakeJudge) Submit(ctx context.Context, prompt string, opts ai.SubmitOptions) (ai.Response, error) {
	f.prompts = append(f.prompts, prompt)
	return f.response, f.err
}

// fakeProfileDetector returns a fixed profile.
type fakeProfileDetector struct {
	profile *capability.Profile
}

func (f *fakeProfileDetector) Detect(ctx context.Context, root string, opts capability.Options) *capability.Profile {
	return f.profile
}

func newTestEngine(t *testing.T, vcs VCS, agent ai.Agent, detector Detector, checks *CheckRunner) *Engine {
	t.Helper()
	builder, err := NewBuilder(0)
	if err != nil {
		t.Fatal(err)
	}
	engine, err := NewEngine(EngineConfig{
		VCS:      vcs,
		Detector: detector,
		Agent:    agent,
		Builder:  builder,
		Checks:   checks,
	})
	if err != nil {
		t.Fatal(err)
	}
	return engine
}

const sampleDiff = `diff --git a/auth/login.go b/auth/login.go
--- a/auth/login.go
+++ b/auth/login.go
@@ -1,3 +1,4 @@
 package auth
+func Login() {}
`

// A failed automated check plus a fail judgment produce a fail verdict with
// the check recorded as evidence.
func TestEngine_FailedCheckAndFailJudgment(t *testing.T) {
	requireSh(t)

	vcs := &fakeEngineVCS{inRepo: true, head: "abc123", files: []string{"auth/login.go"}, diff: sampleDiff}
	judge := &fakeJudge{response: ai.Response{Success: true, Output: `{
		"criteria": [
			{"index": 1, "satisfied": true, "reasoning": "token issued", "confidence": 0.9},
			{"index": 2, "satisfied": false, "reasoning": "401 path untested and broken", "confidence": 0.85}
		],
		"verdict": "fail",
		"reasoning": "second criterion fails; test suite confirms"
	}`}}
	detector := &fakeProfileDetector{profile: profileWith(map[types.CheckKind]string{
		types.CheckTest: "echo '--- FAIL: TestLoginRejects' && exit 1",
	})}

	engine := newTestEngine(t, vcs, judge, detector, NewCheckRunner(t.TempDir()))
	result, err := engine.Verify(context.Background(), t.TempDir(), twoCriteriaFeature(), Options{})
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	if result.Verdict != types.VerdictFail {
		t.Errorf("expected fail verdict, got %q", result.Verdict)
	}
	if len(result.Criteria) != 2 {
		t.Fatalf("expected 2 criteria, got %d", len(result.Criteria))
	}
	if result.Criteria[0].Satisfied == result.Criteria[1].Satisfied {
		t.Error("expected mixed criterion outcomes")
	}
	if len(result.Checks) != 1 || result.Checks[0].Success {
		t.Errorf("expected the failed check recorded, got %+v", result.Checks)
	}
	if result.CommitHash != "abc123" {
		t.Errorf("expected commit hash recorded, got %q", result.CommitHash)
	}
	if result.FeatureID != "auth.login" || result.ID == "" {
		t.Errorf("expected identified result, got id=%q feature=%q", result.ID, result.FeatureID)
	}

	// The judge saw the check evidence, not just the diff.
	if len(judge.prompts) != 1 || !strings.Contains(judge.prompts[0], "FAIL: TestLoginRejects") {
		t.Error("expected check output in judge prompt")
	}
}

func TestEngine_AgentErrorAbstains(t *testing.T) {
	vcs := &fakeEngineVCS{inRepo: true, head: "abc123", diff: sampleDiff}
	judge := &fakeJudge{err: errors.New("spawn failed")}

	engine := newTestEngine(t, vcs, judge, nil, nil)
	result, err := engine.Verify(context.Background(), t.TempDir(), twoCriteriaFeature(), Options{})
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	if result.Verdict != types.VerdictNeedsReview {
		t.Errorf("agent failure must abstain, got %q", result.Verdict)
	}
	if len(result.Criteria) != 2 {
		t.Fatalf("expected synthesized criteria, got %d", len(result.Criteria))
	}
	for _, c := range result.Criteria {
		if c.Satisfied {
			t.Error("abstained run must not mark criteria satisfied")
		}
	}
}

func TestEngine_AgentTimeoutAbstains(t *testing.T) {
	vcs := &fakeEngineVCS{inRepo: true, diff: sampleDiff}
	judge := &fakeJudge{response: ai.Response{TimedOut: true, Failure: "deadline exceeded"}}

	engine := newTestEngine(t, vcs, judge, nil, nil)
	result, _ := engine.Verify(context.Background(), t.TempDir(), twoCriteriaFeature(), Options{})

	if result.Verdict != types.VerdictNeedsReview {
		t.Errorf("timed-out agent must abstain, got %q", result.Verdict)
	}
	if !strings.Contains(result.Reasoning, "timed out") {
		t.Errorf("expected timeout cause in reasoning, got %q", result.Reasoning)
	}
}

func TestEngine_NoAgentAbstains(t *testing.T) {
	engine := newTestEngine(t, &fakeEngineVCS{inRepo: true}, nil, nil, nil)

	result, err := engine.Verify(context.Background(), t.TempDir(), twoCriteriaFeature(), Options{})
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if result.Verdict != types.VerdictNeedsReview {
		t.Errorf("expected needs_review without an agent, got %q", result.Verdict)
	}
}

func TestEngine_VCSFailuresDegrade(t *testing.T) {
	vcs := &fakeEngineVCS{inRepo: true, diffErr: errors.New("bad object")}
	judge := &fakeJudge{response: ai.Response{Success: true, Output: `{
		"criteria": [{"index": 1, "satisfied": false, "confidence": 0.5},
		             {"index": 2, "satisfied": false, "confidence": 0.5}],
		"verdict": "needs_review",
		"reasoning": "no diff to judge"
	}`}}

	engine := newTestEngine(t, vcs, judge, nil, nil)
	result, err := engine.Verify(context.Background(), t.TempDir(), twoCriteriaFeature(), Options{})
	if err != nil {
		t.Fatalf("VCS failure must not abort verification: %v", err)
	}
	if result.DiffSummary != "no diff" {
		t.Errorf("expected empty-diff summary, got %q", result.DiffSummary)
	}
	if !strings.Contains(judge.prompts[0], "(no diff available)") {
		t.Error("expected missing-diff placeholder in prompt")
	}
}

func TestEngine_SkipChecks(t *testing.T) {
	detector := &fakeProfileDetector{profile: profileWith(map[types.CheckKind]string{
		types.CheckTest: "false",
	})}
	judge := &fakeJudge{response: ai.Response{Success: true, Output: `{
		"criteria": [{"index": 1, "satisfied": true, "confidence": 0.9},
		             {"index": 2, "satisfied": true, "confidence": 0.9}],
		"verdict": "pass"
	}`}}

	engine := newTestEngine(t, &fakeEngineVCS{inRepo: true, diff: sampleDiff}, judge, detector, NewCheckRunner(t.TempDir()))
	result, _ := engine.Verify(context.Background(), t.TempDir(), twoCriteriaFeature(), Options{SkipChecks: true})

	if len(result.Checks) != 0 {
		t.Errorf("expected no checks when skipped, got %d", len(result.Checks))
	}
	if result.Verdict != types.VerdictPass {
		t.Errorf("expected pass, got %q", result.Verdict)
	}
}

func TestEngine_InvalidFeatureIsError(t *testing.T) {
	engine := newTestEngine(t, &fakeEngineVCS{}, nil, nil, nil)

	if _, err := engine.Verify(context.Background(), t.TempDir(), nil, Options{}); err == nil {
		t.Error("expected error for nil feature")
	}
	if _, err := engine.Verify(context.Background(), t.TempDir(), &types.Feature{ID: "x"}, Options{}); err == nil {
		t.Error("expected error for feature without acceptance criteria")
	}
}
