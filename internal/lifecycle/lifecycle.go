// Package lifecycle governs feature state transitions. All status changes
// flow through here so the transition rules, the TDD gate, and the
// verdict-to-status mapping live in one place.
package lifecycle

import (
	"fmt"
	"sort"
	"time"

	"github.com/vouch-dev/vouch/internal/types"
)

// transitions is the set of legal status moves. Deprecated is terminal and
// has no outgoing edges.
var transitions = map[types.Status][]types.Status{
	types.StatusFailing:     {types.StatusPassing, types.StatusBlocked, types.StatusNeedsReview, types.StatusDeprecated},
	types.StatusPassing:     {types.StatusFailing, types.StatusNeedsReview, types.StatusDeprecated},
	types.StatusBlocked:     {types.StatusFailing, types.StatusDeprecated},
	types.StatusNeedsReview: {types.StatusFailing, types.StatusPassing, types.StatusDeprecated},
	types.StatusDeprecated:  {},
}

// CanTransition reports whether moving from one status to another is legal.
// A no-op transition is always allowed.
func CanTransition(from, to types.Status) bool {
	if from == to {
		return true
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition moves a feature to a new status, enforcing the transition
// table. The feature's UpdatedAt is bumped on any actual change.
func Transition(f *types.Feature, to types.Status) error {
	if !to.IsValid() {
		return fmt.Errorf("invalid status %q", to)
	}
	if f.Status.IsTerminal() && f.Status != to {
		return fmt.Errorf("feature %s is deprecated and cannot change status", f.ID)
	}
	if !CanTransition(f.Status, to) {
		return fmt.Errorf("feature %s cannot move from %s to %s", f.ID, f.Status, to)
	}
	if f.Status == to {
		return nil
	}
	f.Status = to
	f.UpdatedAt = time.Now().UTC()
	return nil
}

// ApplyVerdict folds a verification result into the feature's status and
// records the verification summary.
//
// A pass verdict moves the feature to passing only if the test gate is
// satisfied; a gated pass lands in needs_review instead, with the missing
// test evidence noted. Fail moves to failing. Needs_review moves to
// needs_review; a human confirms or rejects from there. A nil gate skips
// gating.
func ApplyVerdict(f *types.Feature, result *types.VerificationResult, gate *TestGate) error {
	if result == nil {
		return fmt.Errorf("verification result is required")
	}
	if result.FeatureID != f.ID {
		return fmt.Errorf("result for %s applied to feature %s", result.FeatureID, f.ID)
	}

	target := types.StatusNeedsReview
	switch result.Verdict {
	case types.VerdictPass:
		target = types.StatusPassing
	case types.VerdictFail:
		target = types.StatusFailing
	case types.VerdictNeedsReview:
		target = types.StatusNeedsReview
	default:
		return fmt.Errorf("unknown verdict %q", result.Verdict)
	}

	if target == types.StatusPassing && gate != nil {
		if outcome := gate.Check(f); !outcome.Satisfied {
			target = types.StatusNeedsReview
			f.Notes = appendNote(f.Notes, "test gate unmet: "+outcome.Summary())
		}
	}

	if err := Transition(f, target); err != nil {
		return err
	}
	f.LastVerification = result.Summary()
	f.UpdatedAt = time.Now().UTC()
	return nil
}

// Confirm is the operator action that accepts a needs_review feature as
// passing. It bypasses the judge but not the test gate: confirmation is
// refused while required test files are missing, so a gated pass cannot be
// waved through by hand. A nil gate skips gating.
func Confirm(f *types.Feature, gate *TestGate) error {
	if f.Status != types.StatusNeedsReview {
		return fmt.Errorf("feature %s is %s, only needs_review can be confirmed", f.ID, f.Status)
	}
	if gate != nil {
		if outcome := gate.Check(f); !outcome.Satisfied {
			return fmt.Errorf("feature %s cannot be confirmed: %s: %w", f.ID, outcome.Summary(), ErrTestsRequired)
		}
	}
	return Transition(f, types.StatusPassing)
}

// Reject is the operator action that sends a needs_review feature back to
// failing.
func Reject(f *types.Feature) error {
	if f.Status != types.StatusNeedsReview {
		return fmt.Errorf("feature %s is %s, only needs_review can be rejected", f.ID, f.Status)
	}
	return Transition(f, types.StatusFailing)
}

// Deprecate retires a feature from the lifecycle. Any non-deprecated status
// may deprecate. An optional successor records which feature supersedes it.
func Deprecate(f *types.Feature, successor string) error {
	if f.Status == types.StatusDeprecated {
		return nil
	}
	if err := Transition(f, types.StatusDeprecated); err != nil {
		return err
	}
	if successor != "" {
		f.Notes = appendNote(f.Notes, "superseded by "+successor)
	}
	return nil
}

// Block marks a feature as waiting on an external dependency.
func Block(f *types.Feature, reason string) error {
	if err := Transition(f, types.StatusBlocked); err != nil {
		return err
	}
	if reason != "" {
		f.Notes = appendNote(f.Notes, "blocked: "+reason)
	}
	return nil
}

// SelectNext picks the feature to work on: needs_review features first (a
// human decision is cheaper than another agent run), then failing features,
// both ordered by ascending priority, ties broken by ID for stable output.
// Blocked and terminal features are never selected. Returns nil when
// nothing is actionable.
func SelectNext(features []*types.Feature) *types.Feature {
	actionable := func(status types.Status) int {
		switch status {
		case types.StatusNeedsReview:
			return 0
		case types.StatusFailing:
			return 1
		}
		return -1
	}

	var candidates []*types.Feature
	for _, f := range features {
		if actionable(f.Status) >= 0 {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if ra, rb := actionable(a.Status), actionable(b.Status); ra != rb {
			return ra < rb
		}
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.ID < b.ID
	})
	return candidates[0]
}

// Progress summarizes completion across a feature set.
type Progress struct {
	Total       int
	Passing     int
	Failing     int
	Blocked     int
	NeedsReview int
	Deprecated  int
}

// Ratio is passing over the live feature count. Deprecated features do not
// count against progress.
func (p Progress) Ratio() float64 {
	live := p.Total - p.Deprecated
	if live <= 0 {
		return 0
	}
	return float64(p.Passing) / float64(live)
}

// Measure computes progress over a feature set.
func Measure(features []*types.Feature) Progress {
	p := Progress{Total: len(features)}
	for _, f := range features {
		switch f.Status {
		case types.StatusPassing:
			p.Passing++
		case types.StatusFailing:
			p.Failing++
		case types.StatusBlocked:
			p.Blocked++
		case types.StatusNeedsReview:
			p.NeedsReview++
		case types.StatusDeprecated:
			p.Deprecated++
		}
	}
	return p
}

func appendNote(notes, note string) string {
	if notes == "" {
		return note
	}
	return notes + "\n" + note
}
