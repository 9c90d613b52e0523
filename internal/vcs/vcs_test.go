package vcs

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// initTestRepo creates a git repo with one commit and returns its path.
func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v failed: %v\n%s", args, err, out)
		}
	}

	run("init")
	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0644); err != nil {
		t.Fatal(err)
	}
	run("add", ".")
	run("commit", "-m", "initial")
	return dir
}

func TestNewGit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	g, err := NewGit(context.Background())
	if err != nil {
		t.Fatalf("NewGit failed: %v", err)
	}
	if g.gitPath == "" {
		t.Error("expected git path to be resolved")
	}
}

func TestIsRepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	ctx := context.Background()
	g, err := NewGit(ctx)
	if err != nil {
		t.Fatal(err)
	}

	repo := initTestRepo(t)
	if !g.IsRepo(ctx, repo) {
		t.Error("expected initialized repo to be detected")
	}

	if g.IsRepo(ctx, t.TempDir()) {
		t.Error("expected plain directory to not be a repo")
	}
}

func TestHeadRevision(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	ctx := context.Background()
	g, err := NewGit(ctx)
	if err != nil {
		t.Fatal(err)
	}

	repo := initTestRepo(t)
	rev, err := g.HeadRevision(ctx, repo)
	if err != nil {
		t.Fatalf("HeadRevision failed: %v", err)
	}
	if len(rev) != 40 {
		t.Errorf("expected 40-char commit hash, got %q", rev)
	}
}

func TestChangedFiles(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	ctx := context.Background()
	g, err := NewGit(ctx)
	if err != nil {
		t.Fatal(err)
	}

	repo := initTestRepo(t)

	files, err := g.ChangedFiles(ctx, repo)
	if err != nil {
		t.Fatalf("ChangedFiles failed: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("expected clean tree, got %v", files)
	}

	if err := os.WriteFile(filepath.Join(repo, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(repo, "new.go"), []byte("package main\n"), 0644); err != nil {
		t.Fatal(err)
	}

	files, err = g.ChangedFiles(ctx, repo)
	if err != nil {
		t.Fatalf("ChangedFiles failed: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("expected 2 changed files, got %v", files)
	}
}

func TestWorkingTreeDiff(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	ctx := context.Background()
	g, err := NewGit(ctx)
	if err != nil {
		t.Fatal(err)
	}

	repo := initTestRepo(t)
	if err := os.WriteFile(filepath.Join(repo, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	diff, err := g.WorkingTreeDiff(ctx, repo)
	if err != nil {
		t.Fatalf("WorkingTreeDiff failed: %v", err)
	}
	if diff == "" {
		t.Error("expected non-empty diff for modified tree")
	}
}
