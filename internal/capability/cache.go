package capability

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// cacheSchemaVersion gates cache reads: a mismatch forces cold detection.
const cacheSchemaVersion = 2

// CacheRelPath is the project-relative location of the capability cache.
const CacheRelPath = ".vouch/capabilities.json"

// trackedBuildFiles are the build-definition files whose modification
// invalidates a cached profile. Only the subset present at save time is
// recorded and watched.
var trackedBuildFiles = []string{
	"package.json", "package-lock.json", "pnpm-lock.yaml", "yarn.lock",
	"tsconfig.json",
	"go.mod", "go.sum",
	"Cargo.toml", "Cargo.lock",
	"pyproject.toml", "requirements.txt", "setup.py", "Pipfile", "Pipfile.lock",
	"pom.xml", "build.gradle", "build.gradle.kts",
	"Gemfile", "Gemfile.lock",
	"composer.json", "mix.exs",
	"Makefile", "CMakeLists.txt",
}

// VCS is the narrow version-control surface the cache needs for staleness
// checks.
type VCS interface {
	IsRepo(ctx context.Context, root string) bool
	HeadRevision(ctx context.Context, root string) (string, error)
	ChangedPathsBetween(ctx context.Context, root, from, to string, paths ...string) ([]string, error)
}

type cacheRecord struct {
	SchemaVersion int       `json:"schema_version"`
	Profile       *Profile  `json:"profile"`
	Revision      string    `json:"revision,omitempty"`
	TrackedFiles  []string  `json:"tracked_files,omitempty"`
	SavedAt       time.Time `json:"saved_at"`
}

// Cache persists detected capability profiles and decides when they are
// stale. Corrupt or mismatched cache files read as cold; reads never fail.
type Cache struct {
	vcs VCS
}

// NewCache creates a capability cache backed by the given VCS.
func NewCache(vcs VCS) *Cache {
	return &Cache{vcs: vcs}
}

func cachePath(root string) string {
	return filepath.Join(root, filepath.FromSlash(CacheRelPath))
}

// Load returns the cached profile, or nil when the cache is missing,
// corrupt, or written by a different schema version.
func (c *Cache) Load(root string) *Profile {
	data, err := os.ReadFile(cachePath(root))
	if err != nil {
		return nil
	}

	var rec cacheRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		slog.Debug("capability cache is corrupt, treating as cold", "error", err)
		return nil
	}
	if rec.SchemaVersion != cacheSchemaVersion || rec.Profile == nil {
		return nil
	}
	return rec.Profile
}

// Save persists the profile together with the current revision and the
// subset of tracked build files present in the project.
func (c *Cache) Save(ctx context.Context, root string, profile *Profile) error {
	rec := cacheRecord{
		SchemaVersion: cacheSchemaVersion,
		Profile:       profile,
		TrackedFiles:  presentBuildFiles(root),
		SavedAt:       time.Now(),
	}

	if c.vcs != nil && c.vcs.IsRepo(ctx, root) {
		if rev, err := c.vcs.HeadRevision(ctx, root); err == nil {
			rec.Revision = rev
		}
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	path := cachePath(root)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Invalidate removes the cached profile.
func (c *Cache) Invalidate(root string) error {
	err := os.Remove(cachePath(root))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// IsStale reports whether the cached profile can no longer be trusted.
// It fails safe: any doubt (no stored revision, VCS query failure) reads
// as stale so detection runs again.
func (c *Cache) IsStale(ctx context.Context, root string) bool {
	data, err := os.ReadFile(cachePath(root))
	if err != nil {
		return true
	}
	var rec cacheRecord
	if err := json.Unmarshal(data, &rec); err != nil || rec.SchemaVersion != cacheSchemaVersion {
		return true
	}
	if rec.Revision == "" || c.vcs == nil {
		return true
	}

	head, err := c.vcs.HeadRevision(ctx, root)
	if err != nil {
		return true
	}
	if head == rec.Revision {
		// Same commit; tracked files cannot have changed between revisions.
		return false
	}

	tracked := rec.TrackedFiles
	if len(tracked) == 0 {
		tracked = trackedBuildFiles
	}
	changed, err := c.vcs.ChangedPathsBetween(ctx, root, rec.Revision, head, tracked...)
	if err != nil {
		return true
	}
	return len(changed) > 0
}

// presentBuildFiles returns the tracked build files that exist under root.
func presentBuildFiles(root string) []string {
	var present []string
	for _, name := range trackedBuildFiles {
		if _, err := os.Stat(filepath.Join(root, name)); err == nil {
			present = append(present, name)
		}
	}
	return present
}
