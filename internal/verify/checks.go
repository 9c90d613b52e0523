package verify

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vouch-dev/vouch/internal/capability"
	"github.com/vouch-dev/vouch/internal/types"
)

const (
	// DefaultCheckTimeout bounds a single automated check.
	DefaultCheckTimeout = 10 * time.Minute

	// defaultCheckParallelism limits concurrent check processes.
	defaultCheckParallelism = 3

	// checkOutputCap bounds how much check output is retained per check.
	checkOutputCap = 20000
)

// CheckRunner executes the automated checks a capability profile declares.
// Checks run concurrently; all of them complete before the runner returns,
// so AI judgment always sees the full evidence.
type CheckRunner struct {
	WorkDir     string
	Timeout     time.Duration
	MaxParallel int
}

// NewCheckRunner creates a runner for the given working directory.
func NewCheckRunner(workDir string) *CheckRunner {
	return &CheckRunner{
		WorkDir:     workDir,
		Timeout:     DefaultCheckTimeout,
		MaxParallel: defaultCheckParallelism,
	}
}

// RunAll executes every available check in the profile plus its custom
// rules. Check failures are recorded as results, not returned as errors;
// a failed test run is evidence for the judge, not a reason to abort.
// Results come back in the standard kind order, custom rules last.
func (r *CheckRunner) RunAll(ctx context.Context, profile *capability.Profile) []types.AutomatedCheckResult {
	if profile == nil {
		return nil
	}

	type job struct {
		kind    types.CheckKind
		command string
	}
	var jobs []job
	for _, kind := range types.StandardCheckKinds {
		if check := profile.Check(kind); check.Available && check.Command != "" {
			jobs = append(jobs, job{kind: kind, command: check.Command})
		}
	}
	for _, rule := range profile.CustomRules {
		if rule.Command != "" {
			jobs = append(jobs, job{kind: types.CheckCustom, command: rule.Command})
		}
	}
	if len(jobs) == 0 {
		return nil
	}

	results := make([]types.AutomatedCheckResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxParallel())
	for i, j := range jobs {
		g.Go(func() error {
			results[i] = r.runOne(gctx, j.kind, j.command)
			return nil
		})
	}
	g.Wait() // workers never return errors

	return results
}

func (r *CheckRunner) maxParallel() int {
	if r.MaxParallel > 0 {
		return r.MaxParallel
	}
	return defaultCheckParallelism
}

// runOne executes a single check command through the shell. Commands come
// from presets or the reviewed capability profile, not from diff content.
func (r *CheckRunner) runOne(ctx context.Context, kind types.CheckKind, command string) types.AutomatedCheckResult {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = r.WorkDir
	output, err := cmd.CombinedOutput()
	duration := time.Since(start)

	text := string(output)
	if ctx.Err() == context.DeadlineExceeded {
		text += "\n(check timed out)"
		err = ctx.Err()
	}
	text = truncateTail(text, checkOutputCap)

	result := types.AutomatedCheckResult{
		Kind:       kind,
		Command:    command,
		Success:    err == nil,
		Output:     text,
		Duration:   duration,
		ErrorCount: countErrorLines(text),
	}
	slog.Debug("automated check finished",
		"kind", kind, "command", command, "success", result.Success, "duration", duration)
	return result
}

// countErrorLines gives the judge a rough error density signal.
func countErrorLines(output string) int {
	count := 0
	for _, line := range strings.Split(output, "\n") {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "error") || strings.Contains(lower, "fail:") ||
			strings.HasPrefix(strings.TrimSpace(line), "FAIL") {
			count++
		}
	}
	return count
}
