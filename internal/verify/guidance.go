package verify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vouch-dev/vouch/internal/ai"
	"github.com/vouch-dev/vouch/internal/types"
)

const guidancePromptTemplate = `Suggest how to test the following feature. Be concrete: name the test cases,
the edge cases worth covering, and what each should assert.

**Feature**: %s
**Description**: %s

Acceptance criteria:
%s

Respond with ONLY a JSON object:
{"guidance": "<markdown test plan>"}`

type guidanceResponse struct {
	Guidance string `json:"guidance"`
}

// GenerateGuidance asks the agent for a test plan for the feature. The
// result is keyed by the feature version so callers can cache it on the
// feature and drop it when the criteria change.
func GenerateGuidance(ctx context.Context, agent ai.Agent, feature *types.Feature) (*types.TestGuidance, error) {
	if agent == nil {
		return nil, fmt.Errorf("no agent available for guidance")
	}
	if err := feature.Validate(); err != nil {
		return nil, err
	}
	if cached := feature.CachedGuidance(); cached != nil {
		return cached, nil
	}

	var criteria strings.Builder
	for i, c := range feature.Acceptance {
		fmt.Fprintf(&criteria, "%d. %s\n", i+1, c)
	}
	prompt := fmt.Sprintf(guidancePromptTemplate, feature.ID, feature.Description, criteria.String())

	resp, err := agent.Submit(ctx, prompt, ai.SubmitOptions{})
	if err != nil {
		return nil, fmt.Errorf("guidance request failed: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("guidance request failed: %s", resp.Failure)
	}

	parsed := ai.Parse[guidanceResponse](resp.Output)
	guidance := strings.TrimSpace(parsed.Data.Guidance)
	if !parsed.OK || guidance == "" {
		// A plain-prose answer still beats nothing.
		guidance = strings.TrimSpace(resp.Output)
	}
	if guidance == "" {
		return nil, fmt.Errorf("agent returned no guidance")
	}

	return &types.TestGuidance{
		Version:     feature.Version,
		Guidance:    guidance,
		GeneratedAt: time.Now().UTC(),
	}, nil
}
