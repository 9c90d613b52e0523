// Package ai provides the collaborator that turns a text prompt into a text
// response, plus the defensive plumbing around it: JSON extraction from
// model output, retry with backoff, and a circuit breaker.
//
// The rest of the system depends only on the Agent interface; whether the
// response comes from a command-line coding agent or a direct API call is
// invisible to callers.
package ai

import (
	"context"
	"time"
)

// Response is the outcome of one agent submission.
//
// A timeout or non-zero exit produces a failed Response, not an error:
// callers degrade to a conservative verdict instead of crashing.
type Response struct {
	Success  bool
	Output   string
	TimedOut bool
	Failure  string // reason when Success is false
}

// SubmitOptions bound a single submission.
type SubmitOptions struct {
	Dir        string        // working directory for CLI-backed agents
	Timeout    time.Duration // forcible termination deadline (0 = default)
	Autonomous bool          // allow the agent to explore the working tree
}

// Agent submits a text prompt and returns a text response.
type Agent interface {
	// ID identifies the agent backend, recorded on verification results.
	ID() string

	// Submit sends the prompt. The returned error covers only failures to
	// attempt the call (no tool installed, context canceled before start);
	// everything else is reported through Response.
	Submit(ctx context.Context, prompt string, opts SubmitOptions) (Response, error)
}

// DefaultSubmitTimeout bounds agent calls that did not specify one.
const DefaultSubmitTimeout = 5 * time.Minute
