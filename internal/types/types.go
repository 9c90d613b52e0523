// Package types defines the core data model shared across vouch components:
// features, verification results, and the vocabulary of verdicts and checks.
package types

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Status represents the lifecycle state of a feature.
type Status string

const (
	StatusFailing     Status = "failing"
	StatusPassing     Status = "passing"
	StatusBlocked     Status = "blocked"
	StatusNeedsReview Status = "needs_review"
	StatusDeprecated  Status = "deprecated"
)

// IsValid reports whether s is a known status value.
func (s Status) IsValid() bool {
	switch s {
	case StatusFailing, StatusPassing, StatusBlocked, StatusNeedsReview, StatusDeprecated:
		return true
	}
	return false
}

// IsTerminal reports whether s is a terminal state. Deprecated features
// never re-enter the lifecycle.
func (s Status) IsTerminal() bool {
	return s == StatusDeprecated
}

// Verdict is the tri-state outcome of a verification run.
type Verdict string

const (
	VerdictPass        Verdict = "pass"
	VerdictFail        Verdict = "fail"
	VerdictNeedsReview Verdict = "needs_review"
)

// ParseVerdict normalizes an arbitrary verdict string. Anything that is not
// a known verdict coerces to needs_review; the judge abstains rather than
// guesses.
func ParseVerdict(s string) Verdict {
	switch Verdict(strings.ToLower(strings.TrimSpace(s))) {
	case VerdictPass:
		return VerdictPass
	case VerdictFail:
		return VerdictFail
	case VerdictNeedsReview:
		return VerdictNeedsReview
	}
	return VerdictNeedsReview
}

// ClampConfidence maps any numeric confidence into [0, 1].
// NaN and infinities map to 0.
func ClampConfidence(c float64) float64 {
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 0
	}
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// CheckKind identifies an automated check category.
type CheckKind string

const (
	CheckTest      CheckKind = "test"
	CheckTypecheck CheckKind = "typecheck"
	CheckLint      CheckKind = "lint"
	CheckBuild     CheckKind = "build"
	CheckE2E       CheckKind = "e2e"
	CheckCustom    CheckKind = "custom"
)

// StandardCheckKinds is the order in which automated checks are reported.
var StandardCheckKinds = []CheckKind{CheckTest, CheckTypecheck, CheckLint, CheckBuild, CheckE2E}

// TestRequirement configures the TDD gate for one check kind.
type TestRequirement struct {
	Required bool   `json:"required"`
	Pattern  string `json:"pattern,omitempty"` // file glob, e.g. "**/*_test.go"
}

// VerificationSummary is the compact form of the latest verification result
// embedded back into a Feature.
type VerificationSummary struct {
	Timestamp     time.Time `json:"timestamp"`
	Verdict       Verdict   `json:"verdict"`
	CommitHash    string    `json:"commit_hash,omitempty"`
	CriteriaMet   int       `json:"criteria_met"`
	CriteriaTotal int       `json:"criteria_total"`
	Reasoning     string    `json:"reasoning,omitempty"`
}

// TestGuidance is AI-generated advice on how to test a feature, cached on
// the feature and keyed by the feature version that produced it.
type TestGuidance struct {
	Version     int       `json:"version"`
	Guidance    string    `json:"guidance"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Feature is a unit of work tracked through the acceptance loop.
//
// Features are exclusively owned by the feature store; the verification
// engine only reads them and annotates the latest verification summary.
// Features are never hard-deleted: deprecation is a status, not removal.
type Feature struct {
	ID          string   `json:"id"` // dotted path, e.g. "auth.login"
	Description string   `json:"description"`
	Module      string   `json:"module"`
	Priority    int      `json:"priority"` // lower = more urgent
	Status      Status   `json:"status"`
	Acceptance  []string `json:"acceptance"` // non-empty, ordered
	DependsOn   []string `json:"depends_on,omitempty"`
	Supersedes  []string `json:"supersedes,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Version     int      `json:"version"` // bumped when description/criteria change
	Origin      string   `json:"origin,omitempty"`
	Notes       string   `json:"notes,omitempty"`

	TestRequirements map[CheckKind]TestRequirement `json:"test_requirements,omitempty"`
	LastVerification *VerificationSummary          `json:"last_verification,omitempty"`
	TestGuidance     *TestGuidance                 `json:"test_guidance,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the structural invariants of a feature.
func (f *Feature) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("feature id is required")
	}
	if len(f.Acceptance) == 0 {
		return fmt.Errorf("feature %s has no acceptance criteria", f.ID)
	}
	if f.Status != "" && !f.Status.IsValid() {
		return fmt.Errorf("feature %s has invalid status %q", f.ID, f.Status)
	}
	return nil
}

// CachedGuidance returns the cached test guidance if it matches the current
// feature version, or nil if it is missing or stale.
func (f *Feature) CachedGuidance() *TestGuidance {
	if f.TestGuidance == nil || f.TestGuidance.Version != f.Version {
		return nil
	}
	return f.TestGuidance
}

// AutomatedCheckResult records one automated check execution.
type AutomatedCheckResult struct {
	Kind       CheckKind     `json:"kind"`
	Command    string        `json:"command"`
	Success    bool          `json:"success"`
	Output     string        `json:"output,omitempty"`
	Duration   time.Duration `json:"duration"`
	ErrorCount int           `json:"error_count,omitempty"`
}

// CriterionResult is the AI judge's verdict on one acceptance criterion.
type CriterionResult struct {
	Criterion  string   `json:"criterion"`
	Index      int      `json:"index"`
	Satisfied  bool     `json:"satisfied"`
	Reasoning  string   `json:"reasoning,omitempty"`
	Evidence   []string `json:"evidence,omitempty"`
	Confidence float64  `json:"confidence"`
}

// VerificationResult captures one verification attempt for a feature.
//
// Invariant: len(Criteria) always equals len(feature.Acceptance), ordered by
// index with no gaps. Missing AI judgments are synthesized as unsatisfied
// with zero confidence rather than omitted. Results are immutable once
// created; later runs supersede rather than overwrite.
type VerificationResult struct {
	ID           string                 `json:"id"`
	FeatureID    string                 `json:"feature_id"`
	Timestamp    time.Time              `json:"timestamp"`
	CommitHash   string                 `json:"commit_hash,omitempty"`
	ChangedFiles []string               `json:"changed_files,omitempty"`
	DiffSummary  string                 `json:"diff_summary,omitempty"`
	Checks       []AutomatedCheckResult `json:"checks,omitempty"`
	Criteria     []CriterionResult      `json:"criteria"`
	Verdict      Verdict                `json:"verdict"`
	AgentID      string                 `json:"agent_id,omitempty"`
	Reasoning    string                 `json:"reasoning,omitempty"`
	Suggestions  []string               `json:"suggestions,omitempty"`
	QualityNotes []string               `json:"quality_notes,omitempty"`
}

// Summary produces the compact form embedded back into the feature.
func (r *VerificationResult) Summary() *VerificationSummary {
	met := 0
	for _, c := range r.Criteria {
		if c.Satisfied {
			met++
		}
	}
	return &VerificationSummary{
		Timestamp:     r.Timestamp,
		Verdict:       r.Verdict,
		CommitHash:    r.CommitHash,
		CriteriaMet:   met,
		CriteriaTotal: len(r.Criteria),
		Reasoning:     r.Reasoning,
	}
}
