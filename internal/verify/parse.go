package verify

import (
	"fmt"
	"log/slog"

	"github.com/vouch-dev/vouch/internal/ai"
	"github.com/vouch-dev/vouch/internal/types"
)

// judgeResponse is the wire shape demanded by the judgment prompt.
type judgeResponse struct {
	Criteria []struct {
		Index      int      `json:"index"`
		Satisfied  bool     `json:"satisfied"`
		Reasoning  string   `json:"reasoning"`
		Evidence   []string `json:"evidence"`
		Confidence float64  `json:"confidence"`
	} `json:"criteria"`
	Verdict      string   `json:"verdict"`
	Reasoning    string   `json:"reasoning"`
	Suggestions  []string `json:"suggestions"`
	QualityNotes []string `json:"quality_notes"`
}

// Judgment is the normalized outcome of a judgment response. It always holds
// exactly one CriterionResult per acceptance criterion, in order.
type Judgment struct {
	Criteria     []types.CriterionResult
	Verdict      types.Verdict
	Reasoning    string
	Suggestions  []string
	QualityNotes []string
}

// parseJudgment normalizes raw model output into a Judgment. It is total:
// malformed output, stray indices, and out-of-range confidences all degrade
// to conservative values instead of errors. A judge that cannot be parsed
// abstains with needs_review; it never passes a feature.
func parseJudgment(output string, feature *types.Feature) Judgment {
	n := len(feature.Acceptance)

	res := ai.Parse[judgeResponse](output)
	if !res.OK {
		slog.Debug("judge response unparseable, abstaining",
			"feature", feature.ID, "error", res.Err)
		return Judgment{
			Criteria:  synthesizeAll(feature, "verification response could not be parsed"),
			Verdict:   types.VerdictNeedsReview,
			Reasoning: "verification response could not be parsed",
		}
	}
	parsed := res.Data

	criteria := make([]types.CriterionResult, n)
	seen := make([]bool, n)
	for _, entry := range parsed.Criteria {
		// Criteria are numbered from 1 in the prompt.
		i := entry.Index - 1
		if i < 0 || i >= n || seen[i] {
			continue
		}
		seen[i] = true
		criteria[i] = types.CriterionResult{
			Criterion:  feature.Acceptance[i],
			Index:      i,
			Satisfied:  entry.Satisfied,
			Reasoning:  entry.Reasoning,
			Evidence:   entry.Evidence,
			Confidence: types.ClampConfidence(entry.Confidence),
		}
	}
	for i := range criteria {
		if !seen[i] {
			criteria[i] = synthesizeCriterion(feature, i, "not analyzed in verification response")
		}
	}

	return Judgment{
		Criteria:     criteria,
		Verdict:      types.ParseVerdict(parsed.Verdict),
		Reasoning:    parsed.Reasoning,
		Suggestions:  parsed.Suggestions,
		QualityNotes: parsed.QualityNotes,
	}
}

// synthesizeCriterion produces the conservative placeholder for a criterion
// the judge did not address: unsatisfied, zero confidence.
func synthesizeCriterion(feature *types.Feature, i int, reason string) types.CriterionResult {
	return types.CriterionResult{
		Criterion:  feature.Acceptance[i],
		Index:      i,
		Satisfied:  false,
		Reasoning:  reason,
		Confidence: 0,
	}
}

func synthesizeAll(feature *types.Feature, reason string) []types.CriterionResult {
	out := make([]types.CriterionResult, len(feature.Acceptance))
	for i := range out {
		out[i] = synthesizeCriterion(feature, i, reason)
	}
	return out
}

// abstainedJudgment covers the case where the agent itself failed: no output
// to parse, so every criterion is synthesized and the verdict abstains.
func abstainedJudgment(feature *types.Feature, cause string) Judgment {
	reason := fmt.Sprintf("verification agent failed: %s", cause)
	return Judgment{
		Criteria:  synthesizeAll(feature, reason),
		Verdict:   types.VerdictNeedsReview,
		Reasoning: reason,
	}
}
