// Package vcs wraps the git CLI behind the narrow query surface the
// verification engine and capability cache need.
//
// All invocations use argument vectors, never shell strings, so file paths
// cannot inject commands.
package vcs

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Git implements the version-control queries using the git CLI.
type Git struct {
	gitPath string
}

// NewGit creates a new Git instance, verifying git is available.
func NewGit(ctx context.Context) (*Git, error) {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("git not found in PATH: %w", err)
	}

	cmd := exec.CommandContext(ctx, gitPath, "version")
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git command failed: %w", err)
	}

	return &Git{gitPath: gitPath}, nil
}

// IsRepo reports whether root is inside a git work tree.
func (g *Git) IsRepo(ctx context.Context, root string) bool {
	cmd := exec.CommandContext(ctx, g.gitPath, "-C", root, "rev-parse", "--is-inside-work-tree")
	output, err := cmd.Output()
	return err == nil && strings.TrimSpace(string(output)) == "true"
}

// HeadRevision returns the current HEAD commit hash.
func (g *Git) HeadRevision(ctx context.Context, root string) (string, error) {
	cmd := exec.CommandContext(ctx, g.gitPath, "-C", root, "rev-parse", "HEAD")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git rev-parse failed in %s: %w", root, err)
	}
	return strings.TrimSpace(string(output)), nil
}

// ChangedFiles lists files changed in the working tree relative to HEAD,
// including untracked files. Parsed from porcelain status output.
func (g *Git) ChangedFiles(ctx context.Context, root string) ([]string, error) {
	cmd := exec.CommandContext(ctx, g.gitPath, "-C", root, "status", "--porcelain")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git status failed in %s: %w", root, err)
	}

	var files []string
	scanner := bufio.NewScanner(strings.NewReader(string(output)))
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 4 {
			continue
		}
		path := line[3:]
		// Renames report "old -> new"; the new path is what changed.
		if idx := strings.Index(path, " -> "); idx >= 0 {
			path = path[idx+4:]
		}
		files = append(files, path)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse git status: %w", err)
	}

	return files, nil
}

// Diff returns the unified diff text between two refs, optionally scoped to
// paths. An empty "to" diffs against the working tree.
func (g *Git) Diff(ctx context.Context, root, from, to string, paths ...string) (string, error) {
	args := []string{"-C", root, "diff"}
	if from != "" {
		args = append(args, from)
	}
	if to != "" {
		args = append(args, to)
	}
	if len(paths) > 0 {
		args = append(args, "--")
		args = append(args, paths...)
	}

	cmd := exec.CommandContext(ctx, g.gitPath, args...)
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git diff failed in %s: %w", root, err)
	}
	return string(output), nil
}

// WorkingTreeDiff returns the diff of uncommitted changes against HEAD.
func (g *Git) WorkingTreeDiff(ctx context.Context, root string) (string, error) {
	return g.Diff(ctx, root, "HEAD", "")
}

// ChangedPathsBetween returns the file paths touched between two revisions,
// optionally scoped to paths. Used for capability cache staleness checks.
func (g *Git) ChangedPathsBetween(ctx context.Context, root, from, to string, paths ...string) ([]string, error) {
	args := []string{"-C", root, "diff", "--name-only", from, to}
	if len(paths) > 0 {
		args = append(args, "--")
		args = append(args, paths...)
	}

	cmd := exec.CommandContext(ctx, g.gitPath, args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git diff --name-only failed in %s: %w", root, err)
	}

	var out []string
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}
