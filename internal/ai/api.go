package ai

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ModelDefault is the model used for judgment calls unless overridden via
// the VOUCH_MODEL environment variable.
const ModelDefault = "claude-sonnet-4-5-20250929"

// DefaultModel returns the judge model, honoring VOUCH_MODEL.
func DefaultModel() string {
	if model := os.Getenv("VOUCH_MODEL"); model != "" {
		return model
	}
	return ModelDefault
}

// APIConfig configures the direct-API agent backend.
type APIConfig struct {
	APIKey    string // falls back to ANTHROPIC_API_KEY
	Model     string // falls back to DefaultModel()
	MaxTokens int    // default: 4096
	Retry     RetryConfig

	// MaxConcurrent bounds in-flight API calls (default: 3, 0 = default).
	MaxConcurrent int
	// CallsPerMinute rate-limits API calls (default: 30, 0 = default).
	CallsPerMinute int
}

// APIAgent submits prompts straight to the Anthropic Messages API. Compared
// to a CLI agent it cannot explore a working tree, but it is faster and
// cheaper for pure judgment prompts.
type APIAgent struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	retry     RetryConfig
	breaker   *circuitBreaker
	sem       *semaphore.Weighted
	limiter   *rate.Limiter
}

// NewAPIAgent creates an API-backed agent.
func NewAPIAgent(cfg APIConfig) (*APIAgent, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel()
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}
	perMinute := cfg.CallsPerMinute
	if perMinute <= 0 {
		perMinute = 30
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	return &APIAgent{
		client:    &client,
		model:     model,
		maxTokens: maxTokens,
		retry:     retry,
		breaker:   newCircuitBreaker(retry),
		sem:       semaphore.NewWeighted(int64(maxConcurrent)),
		limiter:   rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
	}, nil
}

// ID identifies the backend and model.
func (a *APIAgent) ID() string {
	return "api:" + a.model
}

// Submit sends the prompt to the Messages API with retry and backoff.
// Failures after all retries come back as a failed Response.
func (a *APIAgent) Submit(ctx context.Context, prompt string, opts SubmitOptions) (Response, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultSubmitTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := a.sem.Acquire(callCtx, 1); err != nil {
		return Response{Failure: fmt.Sprintf("failed to acquire API slot: %v", err)}, nil
	}
	defer a.sem.Release(1)

	if err := a.limiter.Wait(callCtx); err != nil {
		return Response{Failure: fmt.Sprintf("rate limiter wait canceled: %v", err)}, nil
	}

	var message *anthropic.Message
	err := retryWithBackoff(callCtx, a.retry, a.breaker, "judgment", func(attemptCtx context.Context) error {
		resp, apiErr := a.client.Messages.New(attemptCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(a.model),
			MaxTokens: int64(a.maxTokens),
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if apiErr != nil {
			return apiErr
		}
		message = resp
		return nil
	})

	if err != nil {
		timedOut := callCtx.Err() == context.DeadlineExceeded
		return Response{
			TimedOut: timedOut,
			Failure:  fmt.Sprintf("anthropic API call failed: %v", err),
		}, nil
	}

	var out strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	return Response{Success: true, Output: out.String()}, nil
}
