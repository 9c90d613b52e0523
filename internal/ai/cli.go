package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
)

// Tool describes one command-line coding agent vouch knows how to drive.
type Tool struct {
	Name   string
	Binary string
	// Args builds the argument vector for a single-shot prompt submission.
	Args func(prompt string, autonomous bool) []string
}

// DefaultTools returns the supported CLI agents in priority order. The
// first one present on PATH wins.
func DefaultTools() []Tool {
	return []Tool{
		{
			Name:   "claude",
			Binary: "claude",
			Args: func(prompt string, autonomous bool) []string {
				args := []string{"-p"}
				if autonomous {
					args = append(args, "--dangerously-skip-permissions")
				}
				return append(args, prompt)
			},
		},
		{
			Name:   "amp",
			Binary: "amp",
			Args: func(prompt string, autonomous bool) []string {
				args := []string{}
				if autonomous {
					args = append(args, "--dangerously-allow-all")
				}
				return append(args, "--execute", prompt)
			},
		},
	}
}

// ErrNoToolAvailable means none of the configured CLI agents is installed.
var ErrNoToolAvailable = errors.New("no AI agent tool available on PATH")

// CLIAgent submits prompts to an external coding-agent CLI as a subprocess.
// Timeouts terminate the process and come back as a failed Response.
type CLIAgent struct {
	tools []Tool

	resolveOnce sync.Once
	resolved    *Tool
	resolveErr  error
}

// NewCLIAgent creates a CLI-backed agent. With no tools given, the default
// priority order applies.
func NewCLIAgent(tools ...Tool) *CLIAgent {
	if len(tools) == 0 {
		tools = DefaultTools()
	}
	return &CLIAgent{tools: tools}
}

// ID identifies the resolved tool, or "cli" before resolution.
func (a *CLIAgent) ID() string {
	if a.resolved != nil {
		return "cli:" + a.resolved.Name
	}
	return "cli"
}

func (a *CLIAgent) resolve() (*Tool, error) {
	a.resolveOnce.Do(func() {
		for i := range a.tools {
			if _, err := exec.LookPath(a.tools[i].Binary); err == nil {
				a.resolved = &a.tools[i]
				return
			}
		}
		a.resolveErr = ErrNoToolAvailable
	})
	return a.resolved, a.resolveErr
}

// Submit runs the first available tool with the prompt as a single-shot
// invocation. The subprocess is killed when the timeout elapses.
func (a *CLIAgent) Submit(ctx context.Context, prompt string, opts SubmitOptions) (Response, error) {
	tool, err := a.resolve()
	if err != nil {
		return Response{}, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultSubmitTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, tool.Binary, tool.Args(prompt, opts.Autonomous)...)
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if runCtx.Err() == context.DeadlineExceeded {
		return Response{
			TimedOut: true,
			Failure:  fmt.Sprintf("%s timed out after %v", tool.Name, timeout),
		}, nil
	}
	if runErr != nil {
		return Response{
			Output:  stdout.String(),
			Failure: fmt.Sprintf("%s failed: %v: %s", tool.Name, runErr, preview(stderr.String(), 500)),
		}, nil
	}

	return Response{Success: true, Output: stdout.String()}, nil
}
