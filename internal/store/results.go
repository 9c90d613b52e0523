package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vouch-dev/vouch/internal/types"
)

// SaveResult appends a verification result. Results are immutable; a later
// run inserts a new row rather than updating an old one.
func (s *Store) SaveResult(ctx context.Context, r *types.VerificationResult) error {
	if r.FeatureID == "" {
		return fmt.Errorf("verification result has no feature ID")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verification_results (
			id, feature_id, timestamp, commit_hash, changed_files,
			diff_summary, checks, criteria, verdict, agent_id,
			reasoning, suggestions, quality_notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.FeatureID, r.Timestamp, r.CommitHash,
		mustJSON(r.ChangedFiles), r.DiffSummary, mustJSON(r.Checks),
		mustJSON(r.Criteria), r.Verdict, r.AgentID, r.Reasoning,
		mustJSON(r.Suggestions), mustJSON(r.QualityNotes))
	if err != nil {
		return fmt.Errorf("failed to save verification result for %s: %w", r.FeatureID, err)
	}
	return nil
}

// LatestResult returns the most recent result for a feature, or (nil, nil)
// when the feature has never been verified.
func (s *Store) LatestResult(ctx context.Context, featureID string) (*types.VerificationResult, error) {
	row := s.db.QueryRowContext(ctx, resultSelect+`
		WHERE feature_id = ? ORDER BY timestamp DESC LIMIT 1`, featureID)
	r, err := scanResult(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest result for %s: %w", featureID, err)
	}
	return r, nil
}

// ResultsForFeature returns every result for a feature, newest first.
func (s *Store) ResultsForFeature(ctx context.Context, featureID string) ([]*types.VerificationResult, error) {
	return s.listResults(ctx, resultSelect+`
		WHERE feature_id = ? ORDER BY timestamp DESC`, featureID)
}

// ClearResults deletes the verification history of one feature. Clearing a
// feature with no history is not an error.
func (s *Store) ClearResults(ctx context.Context, featureID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM verification_results WHERE feature_id = ?`, featureID)
	if err != nil {
		return fmt.Errorf("failed to clear results for %s: %w", featureID, err)
	}
	return nil
}

// VerdictCounts aggregates result verdicts across all features.
type VerdictCounts struct {
	Pass        int
	Fail        int
	NeedsReview int
}

// CountVerdicts tallies every stored verdict.
func (s *Store) CountVerdicts(ctx context.Context) (VerdictCounts, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT verdict, COUNT(*) FROM verification_results GROUP BY verdict`)
	if err != nil {
		return VerdictCounts{}, fmt.Errorf("failed to count verdicts: %w", err)
	}
	defer rows.Close()

	var counts VerdictCounts
	for rows.Next() {
		var verdict string
		var n int
		if err := rows.Scan(&verdict, &n); err != nil {
			return VerdictCounts{}, fmt.Errorf("failed to scan verdict count: %w", err)
		}
		switch types.Verdict(verdict) {
		case types.VerdictPass:
			counts.Pass = n
		case types.VerdictFail:
			counts.Fail = n
		case types.VerdictNeedsReview:
			counts.NeedsReview = n
		}
	}
	return counts, rows.Err()
}

func (s *Store) listResults(ctx context.Context, query string, args ...any) ([]*types.VerificationResult, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	var results []*types.VerificationResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

const resultSelect = `
	SELECT id, feature_id, timestamp, commit_hash, changed_files,
	       diff_summary, checks, criteria, verdict, agent_id,
	       reasoning, suggestions, quality_notes
	FROM verification_results`

func scanResult(row scannable) (*types.VerificationResult, error) {
	var r types.VerificationResult
	var changedFiles, checks, criteria, suggestions, qualityNotes sql.NullString
	err := row.Scan(
		&r.ID, &r.FeatureID, &r.Timestamp, &r.CommitHash, &changedFiles,
		&r.DiffSummary, &checks, &criteria, &r.Verdict, &r.AgentID,
		&r.Reasoning, &suggestions, &qualityNotes)
	if err != nil {
		return nil, err
	}

	if err := fromJSON(changedFiles, &r.ChangedFiles); err != nil {
		return nil, err
	}
	if err := fromJSON(checks, &r.Checks); err != nil {
		return nil, err
	}
	if err := fromJSON(criteria, &r.Criteria); err != nil {
		return nil, err
	}
	if err := fromJSON(suggestions, &r.Suggestions); err != nil {
		return nil, err
	}
	if err := fromJSON(qualityNotes, &r.QualityNotes); err != nil {
		return nil, err
	}
	return &r, nil
}
