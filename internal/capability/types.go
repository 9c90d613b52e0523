// Package capability discovers how to test, lint, typecheck, and build an
// arbitrary project without per-project configuration.
//
// Resolution is a three-tier chain: a persisted cache, heuristic presets for
// well-known ecosystems, and AI discovery for everything else. Detection
// never fails hard; the worst case is a zero-confidence profile that
// downstream treats as "nothing automatable".
package capability

import (
	"time"

	"github.com/vouch-dev/vouch/internal/types"
)

// Source tags how a profile was produced.
type Source string

const (
	SourcePreset Source = "preset"
	SourceAI     Source = "ai-discovered"
	SourceCached Source = "cached"
)

// Check is one discovered check capability: the command to run it and how
// confident the detector is in that discovery.
type Check struct {
	Available  bool    `json:"available"`
	Command    string  `json:"command,omitempty"`
	Framework  string  `json:"framework,omitempty"`
	Confidence float64 `json:"confidence"`
}

// CustomRule is a project-specific check discovered by AI that does not map
// to a standard kind.
type CustomRule struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
	Command     string `json:"command"`
	Kind        string `json:"kind,omitempty"`
}

// Profile is a project's discovered tooling profile.
type Profile struct {
	Checks      map[types.CheckKind]Check `json:"checks"`
	Languages   []string                  `json:"languages,omitempty"`
	CustomRules []CustomRule              `json:"custom_rules,omitempty"`
	Confidence  float64                   `json:"confidence"`
	Source      Source                    `json:"source"`
	DetectedAt  time.Time                 `json:"detected_at"`
}

// EmptyProfile returns a zero-confidence profile with every check
// unavailable, the conservative fallback when detection finds nothing.
func EmptyProfile(source Source) *Profile {
	checks := make(map[types.CheckKind]Check, len(types.StandardCheckKinds))
	for _, kind := range types.StandardCheckKinds {
		checks[kind] = Check{}
	}
	return &Profile{
		Checks:     checks,
		Source:     source,
		DetectedAt: time.Now(),
	}
}

// Check returns the capability for a kind; the zero value when unknown.
func (p *Profile) Check(kind types.CheckKind) Check {
	if p == nil || p.Checks == nil {
		return Check{}
	}
	return p.Checks[kind]
}

// HasAny reports whether at least one check is available.
func (p *Profile) HasAny() bool {
	if p == nil {
		return false
	}
	for _, c := range p.Checks {
		if c.Available {
			return true
		}
	}
	return len(p.CustomRules) > 0
}

// recomputeConfidence sets the aggregate confidence to the mean confidence
// of available checks. No available checks means zero confidence.
func (p *Profile) recomputeConfidence() {
	sum, n := 0.0, 0
	for _, c := range p.Checks {
		if c.Available {
			sum += types.ClampConfidence(c.Confidence)
			n++
		}
	}
	if n == 0 {
		p.Confidence = 0
		return
	}
	p.Confidence = sum / float64(n)
}
