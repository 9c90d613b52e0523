package capability

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultConfidenceThreshold is the aggregate confidence below which preset
// detection falls through to AI discovery.
const DefaultConfidenceThreshold = 0.8

// Resolver is one strategy for producing a capability profile. Resolvers
// are tried in order until one yields a sufficiently confident result; this
// keeps the fallback policy independent of how many strategies exist.
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, root string) (*Profile, error)
}

// Options controls a detection run.
type Options struct {
	Force   bool // skip the cache, re-run detection
	ForceAI bool // skip cache and presets, go straight to AI discovery
	Verbose bool
}

// Detector resolves a project's capability profile through the cache and an
// ordered resolver chain. Detect never fails: the worst case is an empty,
// zero-confidence profile downstream treats as "nothing automatable".
type Detector struct {
	cache     *Cache
	resolvers []Resolver
	threshold float64
}

// NewDetector builds a detector over the given resolver chain. A nil cache
// disables persistence.
func NewDetector(cache *Cache, threshold float64, resolvers ...Resolver) *Detector {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultConfidenceThreshold
	}
	return &Detector{cache: cache, resolvers: resolvers, threshold: threshold}
}

// NewDefaultDetector wires the standard chain: cache, then presets, then AI
// discovery via the given resolver (nil to disable the AI tier).
func NewDefaultDetector(cache *Cache, threshold float64, aiResolver Resolver) *Detector {
	resolvers := []Resolver{&PresetResolver{}}
	if aiResolver != nil {
		resolvers = append(resolvers, aiResolver)
	}
	return NewDetector(cache, threshold, resolvers...)
}

// Detect resolves the capability profile for root.
func (d *Detector) Detect(ctx context.Context, root string, opts Options) *Profile {
	if !opts.Force && !opts.ForceAI && d.cache != nil {
		if cached := d.cache.Load(root); cached != nil && !d.cache.IsStale(ctx, root) {
			cached.Source = SourceCached
			if opts.Verbose {
				fmt.Printf("capabilities: using cached profile (confidence %.2f)\n", cached.Confidence)
			}
			return cached
		}
	}

	var best *Profile
	for _, resolver := range d.resolvers {
		if opts.ForceAI && resolver.Name() != "ai" {
			continue
		}

		profile, err := resolver.Resolve(ctx, root)
		if err != nil || profile == nil {
			slog.Debug("capability resolver failed", "resolver", resolver.Name(), "error", err)
			continue
		}
		if opts.Verbose {
			fmt.Printf("capabilities: %s detection confidence %.2f\n", resolver.Name(), profile.Confidence)
		}

		if best == nil || profile.Confidence > best.Confidence {
			best = profile
		}
		if profile.Confidence >= d.threshold {
			break
		}
	}

	if best == nil {
		best = EmptyProfile(SourcePreset)
	}
	if best.DetectedAt.IsZero() {
		best.DetectedAt = time.Now()
	}

	// Persist on the success path only; an empty profile is not worth
	// caching and would mask later tool installs.
	if d.cache != nil && best.HasAny() {
		if err := d.cache.Save(ctx, root, best); err != nil {
			slog.Debug("failed to persist capability profile", "error", err)
		}
	}

	return best
}
