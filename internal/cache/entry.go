package cache

import (
	"errors"
	"fmt"
	"slices"

	"github.com/alexzheng587/corels/internal/bitvec"
	"github.com/alexzheng587/corels/persistence"
)

// ErrInvalidEntry is matched by entries that break their own invariants.
var ErrInvalidEntry = errors.New("invalid cache entry")

// Entry is the evaluation record of one prefix. Entries are immutable once
// stored in a Cache.
type Entry struct {
	Prefix             Prefix
	Prediction         []bool
	DefaultRule        bool
	Accuracy           float64
	UpperBound         float64
	NumCaptured        int
	NumCapturedCorrect int
	NotCaptured        *bitvec.Vector
}

// Validate checks the entry invariants against a dataset of ndata rows.
func (e *Entry) Validate(ndata int) error {
	switch {
	case len(e.Prediction) != len(e.Prefix):
		return fmt.Errorf("%w %s: %d predictions for %d rules", ErrInvalidEntry, e.Prefix, len(e.Prediction), len(e.Prefix))
	case e.UpperBound < e.Accuracy:
		return fmt.Errorf("%w %s: upper bound %g below accuracy %g", ErrInvalidEntry, e.Prefix, e.UpperBound, e.Accuracy)
	case e.NumCapturedCorrect < 0 || e.NumCapturedCorrect > e.NumCaptured || e.NumCaptured > ndata:
		return fmt.Errorf("%w %s: captured %d correct %d of %d rows", ErrInvalidEntry, e.Prefix, e.NumCaptured, e.NumCapturedCorrect, ndata)
	case e.NotCaptured == nil || int(e.NotCaptured.Len()) != ndata:
		return fmt.Errorf("%w %s: not-captured vector has wrong width", ErrInvalidEntry, e.Prefix)
	case e.NotCaptured.Count()+e.NumCaptured != ndata:
		return fmt.Errorf("%w %s: %d uncaptured + %d captured != %d", ErrInvalidEntry, e.Prefix, e.NotCaptured.Count(), e.NumCaptured, ndata)
	}
	return nil
}

// SizeBytes estimates the memory held by the entry.
func (e *Entry) SizeBytes() int64 {
	const fixed = 96
	n := fixed + 2*len(e.Prefix) + len(e.Prediction)
	if e.NotCaptured != nil {
		n += e.NotCaptured.SizeBytes()
	}
	return int64(n)
}

// Row converts the entry to a dump row.
func (e *Entry) Row() persistence.Row {
	return persistence.Row{
		Prefix:             e.Prefix.Ints(),
		Prediction:         slices.Clone(e.Prediction),
		DefaultRule:        e.DefaultRule,
		Accuracy:           e.Accuracy,
		UpperBound:         e.UpperBound,
		NumCaptured:        e.NumCaptured,
		NumCapturedCorrect: e.NumCapturedCorrect,
	}
}

// Summary renders the fields that identify an entry in error messages.
func (e *Entry) Summary() string {
	return fmt.Sprintf("%s acc=%g ub=%g captured=%d correct=%d default=%t",
		e.Prefix, e.Accuracy, e.UpperBound, e.NumCaptured, e.NumCapturedCorrect, e.DefaultRule)
}
