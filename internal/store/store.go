// Package store persists features and verification results in SQLite.
//
// The store is the exclusive owner of feature records. Queryable fields are
// real columns; list- and map-valued fields are JSON-encoded text columns.
// A single process writes at a time; WAL mode keeps concurrent readers out
// of the writer's way.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vouch-dev/vouch/internal/types"
)

// DefaultRelPath is where the database lives inside a project.
const DefaultRelPath = ".vouch/vouch.db"

// ErrFeatureNotFound marks operations on features that do not exist.
var ErrFeatureNotFound = errors.New("feature not found")

const schema = `
CREATE TABLE IF NOT EXISTS features (
	id TEXT PRIMARY KEY,
	description TEXT NOT NULL,
	module TEXT NOT NULL DEFAULT '',
	priority INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'failing',
	acceptance TEXT NOT NULL,
	depends_on TEXT,
	supersedes TEXT,
	tags TEXT,
	version INTEGER NOT NULL DEFAULT 1,
	origin TEXT,
	notes TEXT,
	test_requirements TEXT,
	last_verification TEXT,
	test_guidance TEXT,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_features_status ON features(status);

CREATE TABLE IF NOT EXISTS verification_results (
	id TEXT PRIMARY KEY,
	feature_id TEXT NOT NULL REFERENCES features(id),
	timestamp TIMESTAMP NOT NULL,
	commit_hash TEXT,
	changed_files TEXT,
	diff_summary TEXT,
	checks TEXT,
	criteria TEXT NOT NULL,
	verdict TEXT NOT NULL,
	agent_id TEXT,
	reasoning TEXT,
	suggestions TEXT,
	quality_notes TEXT
);

CREATE INDEX IF NOT EXISTS idx_results_feature
	ON verification_results(feature_id, timestamp);
`

// Store is the SQLite-backed persistence layer.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path and initializes the schema.
// A file that turns out not to be a usable database is moved aside to
// <path>.corrupt and replaced with a fresh, empty one.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := openDB(path)
	if err != nil {
		backup := path + ".corrupt"
		if renameErr := os.Rename(path, backup); renameErr != nil {
			return nil, err
		}
		slog.Warn("database unreadable, reinitializing", "path", path, "backup", backup, "error", err)
		if db, err = openDB(path); err != nil {
			return nil, err
		}
	}

	return &Store{db: db}, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

// Open opens the store at its default location under root.
func Open(root string) (*Store, error) {
	return New(filepath.Join(root, filepath.FromSlash(DefaultRelPath)))
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateFeature inserts a new feature. The ID must be unique; creation of a
// duplicate is an error, not an upsert.
func (s *Store) CreateFeature(ctx context.Context, f *types.Feature) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	f.UpdatedAt = now
	if f.Status == "" {
		f.Status = types.StatusFailing
	}
	if f.Version == 0 {
		f.Version = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO features (
			id, description, module, priority, status, acceptance,
			depends_on, supersedes, tags, version, origin, notes,
			test_requirements, last_verification, test_guidance,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Description, f.Module, f.Priority, f.Status,
		mustJSON(f.Acceptance), mustJSON(f.DependsOn), mustJSON(f.Supersedes),
		mustJSON(f.Tags), f.Version, f.Origin, f.Notes,
		mustJSON(f.TestRequirements), mustJSON(f.LastVerification),
		mustJSON(f.TestGuidance), f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create feature %s: %w", f.ID, err)
	}
	return nil
}

// UpdateFeature persists the current state of an existing feature.
func (s *Store) UpdateFeature(ctx context.Context, f *types.Feature) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	f.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE features SET
			description = ?, module = ?, priority = ?, status = ?,
			acceptance = ?, depends_on = ?, supersedes = ?, tags = ?,
			version = ?, origin = ?, notes = ?, test_requirements = ?,
			last_verification = ?, test_guidance = ?, updated_at = ?
		WHERE id = ?`,
		f.Description, f.Module, f.Priority, f.Status,
		mustJSON(f.Acceptance), mustJSON(f.DependsOn), mustJSON(f.Supersedes),
		mustJSON(f.Tags), f.Version, f.Origin, f.Notes,
		mustJSON(f.TestRequirements), mustJSON(f.LastVerification),
		mustJSON(f.TestGuidance), f.UpdatedAt, f.ID)
	if err != nil {
		return fmt.Errorf("failed to update feature %s: %w", f.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("feature %s: %w", f.ID, ErrFeatureNotFound)
	}
	return nil
}

// GetFeature loads one feature by ID. Missing features return (nil, nil).
func (s *Store) GetFeature(ctx context.Context, id string) (*types.Feature, error) {
	row := s.db.QueryRowContext(ctx, featureSelect+` WHERE id = ?`, id)
	f, err := scanFeature(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load feature %s: %w", id, err)
	}
	return f, nil
}

// ListFeatures returns every feature, ordered by priority then ID. Rows
// whose JSON columns no longer decode are skipped rather than failing the
// whole listing.
func (s *Store) ListFeatures(ctx context.Context) ([]*types.Feature, error) {
	return s.listFeatures(ctx, featureSelect+` ORDER BY priority, id`)
}

// ListByStatus returns features in the given status, ordered by priority.
func (s *Store) ListByStatus(ctx context.Context, status types.Status) ([]*types.Feature, error) {
	return s.listFeatures(ctx, featureSelect+` WHERE status = ? ORDER BY priority, id`, status)
}

func (s *Store) listFeatures(ctx context.Context, query string, args ...any) ([]*types.Feature, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list features: %w", err)
	}
	defer rows.Close()

	var features []*types.Feature
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			slog.Debug("skipping undecodable feature row", "error", err)
			continue
		}
		features = append(features, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate features: %w", err)
	}
	return features, nil
}

const featureSelect = `
	SELECT id, description, module, priority, status, acceptance,
	       depends_on, supersedes, tags, version, origin, notes,
	       test_requirements, last_verification, test_guidance,
	       created_at, updated_at
	FROM features`

type scannable interface {
	Scan(dest ...any) error
}

func scanFeature(row scannable) (*types.Feature, error) {
	var f types.Feature
	var acceptance, dependsOn, supersedes, tags, testReqs, lastVerif, guidance sql.NullString
	err := row.Scan(
		&f.ID, &f.Description, &f.Module, &f.Priority, &f.Status,
		&acceptance, &dependsOn, &supersedes, &tags,
		&f.Version, &f.Origin, &f.Notes,
		&testReqs, &lastVerif, &guidance,
		&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := fromJSON(acceptance, &f.Acceptance); err != nil {
		return nil, fmt.Errorf("feature %s: bad acceptance column: %w", f.ID, err)
	}
	if err := fromJSON(dependsOn, &f.DependsOn); err != nil {
		return nil, fmt.Errorf("feature %s: bad depends_on column: %w", f.ID, err)
	}
	if err := fromJSON(supersedes, &f.Supersedes); err != nil {
		return nil, fmt.Errorf("feature %s: bad supersedes column: %w", f.ID, err)
	}
	if err := fromJSON(tags, &f.Tags); err != nil {
		return nil, fmt.Errorf("feature %s: bad tags column: %w", f.ID, err)
	}
	if err := fromJSON(testReqs, &f.TestRequirements); err != nil {
		return nil, fmt.Errorf("feature %s: bad test_requirements column: %w", f.ID, err)
	}
	if err := fromJSON(lastVerif, &f.LastVerification); err != nil {
		return nil, fmt.Errorf("feature %s: bad last_verification column: %w", f.ID, err)
	}
	if err := fromJSON(guidance, &f.TestGuidance); err != nil {
		return nil, fmt.Errorf("feature %s: bad test_guidance column: %w", f.ID, err)
	}
	return &f, nil
}

// mustJSON encodes a value for a JSON text column. Encoding the model types
// cannot fail; nil-ish values store as NULL.
func mustJSON(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case *types.VerificationSummary:
		if val == nil {
			return nil
		}
	case *types.TestGuidance:
		if val == nil {
			return nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	if string(data) == "null" {
		return nil
	}
	return string(data)
}

func fromJSON(col sql.NullString, dst any) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(col.String), dst)
}
