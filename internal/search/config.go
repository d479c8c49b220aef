package search

import (
	"math"

	"github.com/alexzheng587/corels/dataset"
	"github.com/alexzheng587/corels/internal/cache"
	"github.com/alexzheng587/corels/internal/pmap"
)

// Config holds the search parameters.
type Config struct {
	// MaxPrefixLength is the deepest layer expanded. Required.
	MaxPrefixLength int

	// MaxAccuracy is the initial incumbent accuracy, a lower bound every
	// reported list must beat.
	MaxAccuracy float64

	// BestPrefix seeds the incumbent with a known list. Optional.
	BestPrefix []int

	// GC selects the permutation garbage collection mode.
	GC pmap.Mode

	// MaxNodes is an advisory ceiling on cached entries; 0 disables it.
	MaxNodes int

	// WarmStart seeds the incumbent with a greedily built list.
	WarmStart bool
}

// Validate checks c against ds.
func (c Config) Validate(ds *dataset.Dataset) error {
	if c.MaxPrefixLength <= 0 {
		return configErrorf("max prefix length", "must be positive, got %d", c.MaxPrefixLength)
	}
	if ds == nil || ds.NRules() == 0 {
		return configErrorf("rules", "empty rule set")
	}
	if ds.NRules() >= cache.MaxRules {
		return configErrorf("rules", "%d rules exceed the limit of %d", ds.NRules(), cache.MaxRules-1)
	}
	if ds.NData() == 0 {
		return configErrorf("labels", "no samples")
	}
	if math.IsNaN(c.MaxAccuracy) || c.MaxAccuracy < 0 || c.MaxAccuracy > 1 {
		return configErrorf("max accuracy", "%g is not in [0, 1]", c.MaxAccuracy)
	}
	if c.MaxAccuracy >= 1 && len(c.BestPrefix) == 0 {
		return configErrorf("max accuracy", "no list can exceed %g", c.MaxAccuracy)
	}
	if c.MaxNodes < 0 {
		return configErrorf("max nodes", "must not be negative, got %d", c.MaxNodes)
	}
	if len(c.BestPrefix) > c.MaxPrefixLength {
		return configErrorf("best prefix", "length %d exceeds max prefix length %d", len(c.BestPrefix), c.MaxPrefixLength)
	}
	seen := make(map[int]bool, len(c.BestPrefix))
	for _, r := range c.BestPrefix {
		if r < 0 || r >= ds.NRules() {
			return configErrorf("best prefix", "unknown rule %d", r)
		}
		if seen[r] {
			return configErrorf("best prefix", "rule %d repeated", r)
		}
		seen[r] = true
	}
	return nil
}
