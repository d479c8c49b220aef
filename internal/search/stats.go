package search

import (
	"fmt"
	"time"
)

// LayerStats counts what happened while building the prefixes of one length.
//
// Every candidate extension ends in exactly one of Retained, CapturedZero,
// DeadPrefix or Inferior, so
//
//	Retained + CapturedZero + DeadPrefix + Inferior == (nrules - Length + 1) * Expanded
//
// DeadPrefixStart, Stunted and Deferred count parents of length Length-1 that
// were not expanded.
type LayerStats struct {
	Length          int
	Retained        int
	CapturedZero    int
	DeadPrefix      int
	Inferior        int
	DeadPrefixStart int
	Stunted         int
	Deferred        int
	Expanded        int
	Duration        time.Duration
}

// Candidates returns the number of extensions the layer evaluated.
func (s LayerStats) Candidates() int {
	return s.Retained + s.CapturedZero + s.DeadPrefix + s.Inferior
}

// Check verifies the completeness identity for nrules candidate rules.
func (s LayerStats) Check(nrules int) error {
	want := (nrules - s.Length + 1) * s.Expanded
	if got := s.Candidates(); got != want {
		return &InvariantViolation{
			Layer: s.Length,
			Reason: fmt.Sprintf("retained %d + captured-zero %d + dead %d + inferior %d = %d, want (%d - %d + 1) * %d = %d",
				s.Retained, s.CapturedZero, s.DeadPrefix, s.Inferior, got, nrules, s.Length, s.Expanded, want),
		}
	}
	return nil
}
