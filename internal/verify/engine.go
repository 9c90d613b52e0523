package verify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vouch-dev/vouch/internal/ai"
	"github.com/vouch-dev/vouch/internal/capability"
	"github.com/vouch-dev/vouch/internal/types"
)

// VCS is the version-control surface the engine queries for evidence.
type VCS interface {
	IsRepo(ctx context.Context, root string) bool
	HeadRevision(ctx context.Context, root string) (string, error)
	ChangedFiles(ctx context.Context, root string) ([]string, error)
	WorkingTreeDiff(ctx context.Context, root string) (string, error)
	Diff(ctx context.Context, root, from, to string, paths ...string) (string, error)
}

// Detector resolves the project's capability profile.
type Detector interface {
	Detect(ctx context.Context, root string, opts capability.Options) *capability.Profile
}

// EngineConfig wires the engine's collaborators.
type EngineConfig struct {
	VCS      VCS
	Detector Detector
	Agent    ai.Agent
	Builder  *Builder
	Checks   *CheckRunner
	Timeout  time.Duration // per-verification AI budget; 0 uses the agent default
}

// Engine runs the full verification pipeline for a feature: gather the diff,
// run the automated checks, build the judgment prompt, submit it, and fold
// the response into an immutable VerificationResult.
type Engine struct {
	cfg EngineConfig
}

// Options tunes a single verification run.
type Options struct {
	// Autonomous lets the agent explore the working tree itself instead of
	// judging purely from the embedded diff.
	Autonomous bool

	// BaseRef diffs against a specific ref instead of the working tree.
	BaseRef string

	// SkipChecks bypasses automated checks. The judge sees no check evidence.
	SkipChecks bool

	// RelatedFiles embeds extra file contents into the prompt, keyed by path.
	RelatedFiles map[string]string
}

// NewEngine creates a verification engine. VCS and Builder are required;
// Agent may be nil, in which case every run abstains with needs_review.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.VCS == nil {
		return nil, fmt.Errorf("vcs is required")
	}
	if cfg.Builder == nil {
		return nil, fmt.Errorf("prompt builder is required")
	}
	return &Engine{cfg: cfg}, nil
}

// Verify runs one verification attempt for feature in the repository at
// root. Evidence-gathering failures degrade (empty diff, no checks) rather
// than abort; only an invalid feature is an error. The returned result
// always satisfies len(Criteria) == len(feature.Acceptance).
func (e *Engine) Verify(ctx context.Context, root string, feature *types.Feature, opts Options) (*types.VerificationResult, error) {
	if feature == nil {
		return nil, fmt.Errorf("feature is required")
	}
	if err := feature.Validate(); err != nil {
		return nil, err
	}

	slog.Debug("verification started", "feature", feature.ID, "root", root)

	commitHash, changedFiles, diff := e.gatherEvidence(ctx, root, opts)

	var checks []types.AutomatedCheckResult
	if !opts.SkipChecks && e.cfg.Detector != nil {
		profile := e.cfg.Detector.Detect(ctx, root, capability.Options{})
		if e.cfg.Checks != nil {
			checks = e.cfg.Checks.RunAll(ctx, profile)
		}
	}

	prompt, diffInfo, err := e.cfg.Builder.Build(BuildInput{
		Feature:      feature,
		Diff:         diff,
		ChangedFiles: changedFiles,
		Checks:       checks,
		RelatedFiles: opts.RelatedFiles,
		Autonomous:   opts.Autonomous,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build verification prompt: %w", err)
	}

	judgment, agentID := e.judge(ctx, root, feature, prompt, opts)

	result := &types.VerificationResult{
		ID:           uuid.NewString(),
		FeatureID:    feature.ID,
		Timestamp:    time.Now().UTC(),
		CommitHash:   commitHash,
		ChangedFiles: changedFiles,
		DiffSummary:  diffSummary(diffInfo.WasTruncated, diffInfo.TruncatedSize, diffInfo.OriginalSize),
		Checks:       checks,
		Criteria:     judgment.Criteria,
		Verdict:      judgment.Verdict,
		AgentID:      agentID,
		Reasoning:    judgment.Reasoning,
		Suggestions:  judgment.Suggestions,
		QualityNotes: judgment.QualityNotes,
	}

	slog.Debug("verification finished",
		"feature", feature.ID, "verdict", result.Verdict, "checks", len(checks))
	return result, nil
}

// gatherEvidence collects commit hash, changed files, and the diff text.
// Every VCS failure degrades to empty evidence; the judge is told what is
// missing through the prompt rather than the run aborting.
func (e *Engine) gatherEvidence(ctx context.Context, root string, opts Options) (commitHash string, changedFiles []string, diff string) {
	if !e.cfg.VCS.IsRepo(ctx, root) {
		return "", nil, ""
	}

	if hash, err := e.cfg.VCS.HeadRevision(ctx, root); err == nil {
		commitHash = hash
	} else {
		slog.Debug("head revision unavailable", "error", err)
	}

	var err error
	if opts.BaseRef != "" {
		diff, err = e.cfg.VCS.Diff(ctx, root, opts.BaseRef, "")
	} else {
		diff, err = e.cfg.VCS.WorkingTreeDiff(ctx, root)
	}
	if err != nil {
		slog.Debug("diff unavailable", "error", err)
		diff = ""
	}

	if files, err := e.cfg.VCS.ChangedFiles(ctx, root); err == nil {
		changedFiles = files
	} else {
		slog.Debug("changed files unavailable", "error", err)
	}

	return commitHash, changedFiles, diff
}

// judge submits the prompt and normalizes the outcome. Agent failures of any
// kind abstain; a broken judge can never pass a feature.
func (e *Engine) judge(ctx context.Context, root string, feature *types.Feature, prompt string, opts Options) (Judgment, string) {
	if e.cfg.Agent == nil {
		return abstainedJudgment(feature, "no agent configured"), ""
	}

	resp, err := e.cfg.Agent.Submit(ctx, prompt, ai.SubmitOptions{
		Dir:        root,
		Timeout:    e.cfg.Timeout,
		Autonomous: opts.Autonomous,
	})
	agentID := e.cfg.Agent.ID()
	if err != nil {
		return abstainedJudgment(feature, err.Error()), agentID
	}
	if !resp.Success {
		cause := resp.Failure
		if resp.TimedOut {
			cause = "timed out"
		}
		if cause == "" {
			cause = "no output"
		}
		return abstainedJudgment(feature, cause), agentID
	}

	return parseJudgment(resp.Output, feature), agentID
}

func diffSummary(truncated bool, shown, original int) string {
	if original == 0 {
		return "no diff"
	}
	if truncated {
		return fmt.Sprintf("diff truncated to %d of %d bytes", shown, original)
	}
	return fmt.Sprintf("full diff, %d bytes", original)
}
