package search

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/alexzheng587/corels/internal/cache"
	"github.com/alexzheng587/corels/persistence"
)

// Restore loads the rows of a previous run with prefixes of length 1..through
// and continues the search at layer through+1. Each row is recomputed from the
// dataset; a row that disagrees with its recomputation, or repeats a prefix
// with different values, is an InvariantViolation. The best restored row is
// offered to the incumbent.
//
// Restore must be called before Run.
func (d *Driver) Restore(rows []persistence.Row, through int) error {
	if d.next != 1 || d.cache.Len() != 1 {
		return fmt.Errorf("search: restore after the search started")
	}
	through = min(through, d.cache.MaxLength())

	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b persistence.Row) int {
		return cmp.Compare(a.Length(), b.Length())
	})

	for _, row := range sorted {
		if row.Length() == 0 || row.Length() > through {
			continue
		}
		p, err := d.rowPrefix(row)
		if err != nil {
			return err
		}
		e, err := d.eval.EvaluatePrefix(p)
		if err != nil {
			return &InvariantViolation{Layer: len(p), Prefix: p, Reason: err.Error()}
		}
		if reason := diverges(e, row); reason != "" {
			return &InvariantViolation{
				Layer:    len(p),
				Prefix:   p,
				Reason:   "stored row disagrees with the dataset: " + reason,
				Existing: e.Summary(),
				Incoming: rowSummary(row),
			}
		}
		if prev, ok := d.cache.Get(p); ok {
			if diverges(prev, row) != "" {
				return &InvariantViolation{
					Layer:    len(p),
					Prefix:   p,
					Reason:   "duplicate cache key with divergent values",
					Existing: prev.Summary(),
					Incoming: rowSummary(row),
				}
			}
			continue
		}
		if err := d.cache.Put(e); err != nil {
			return err
		}
		d.offer(e)
	}

	d.next = through + 1
	d.logger.Info("restored cache",
		"through", through,
		"entries", d.cache.Len(),
		"max_accuracy", d.inc.Accuracy())
	return nil
}

func (d *Driver) rowPrefix(row persistence.Row) (cache.Prefix, error) {
	for _, r := range row.Prefix {
		if r < 0 || r >= d.ds.NRules() {
			return nil, &InvariantViolation{
				Layer:  row.Length(),
				Prefix: cache.FromInts(row.Prefix),
				Reason: fmt.Sprintf("rule %d not in a dataset of %d rules", r, d.ds.NRules()),
			}
		}
	}
	return cache.FromInts(row.Prefix), nil
}

func diverges(e *cache.Entry, row persistence.Row) string {
	switch {
	case !slices.Equal(e.Prediction, row.Prediction):
		return "prediction"
	case e.DefaultRule != row.DefaultRule:
		return "default rule"
	case e.Accuracy != row.Accuracy:
		return "accuracy"
	case e.UpperBound != row.UpperBound:
		return "upper bound"
	case e.NumCaptured != row.NumCaptured:
		return "num captured"
	case e.NumCapturedCorrect != row.NumCapturedCorrect:
		return "num captured correct"
	}
	return ""
}

func rowSummary(r persistence.Row) string {
	return fmt.Sprintf("%v acc=%g ub=%g captured=%d correct=%d default=%t",
		r.Prefix, r.Accuracy, r.UpperBound, r.NumCaptured, r.NumCapturedCorrect, r.DefaultRule)
}
