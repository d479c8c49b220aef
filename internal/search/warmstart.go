package search

import (
	"github.com/alexzheng587/corels/internal/cache"
)

// Greedy builds a list of up to maxLength rules by repeatedly appending the
// rule whose captured rows are classified most purely, preferring larger
// captures on ties. It returns the most accurate prefix along the way, or nil
// when no rule captures anything.
func (ev *Evaluator) Greedy(maxLength int) *cache.Entry {
	var best *cache.Entry
	e := ev.Root()
	for len(e.Prefix) < maxLength {
		var (
			next               *cache.Entry
			nextN, nextCorrect int
		)
		for r := range ev.rules {
			rule := uint16(r)
			if e.Prefix.Contains(rule) {
				continue
			}
			n := e.NotCaptured.AndCount(ev.rules[rule])
			if n == 0 {
				continue
			}
			child, _ := ev.extend(e, rule)
			correct := child.NumCapturedCorrect - e.NumCapturedCorrect
			// correct/n > nextCorrect/nextN, without division.
			better := next == nil ||
				correct*nextN > nextCorrect*n ||
				(correct*nextN == nextCorrect*n && n > nextN)
			if better {
				next, nextN, nextCorrect = child, n, correct
			}
		}
		if next == nil {
			break
		}
		e = next
		if best == nil || e.Accuracy > best.Accuracy {
			best = e
		}
	}
	return best
}
