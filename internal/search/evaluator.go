package search

import (
	"fmt"

	"github.com/alexzheng587/corels/dataset"
	"github.com/alexzheng587/corels/internal/bitvec"
	"github.com/alexzheng587/corels/internal/cache"
)

// Result classifies one candidate extension.
type Result uint8

const (
	// Candidate means the extension produced an entry worth recording.
	Candidate Result = iota
	// CapturedZero means the new rule captured no remaining row.
	CapturedZero
	// DeadPrefix means the extension cannot beat the incumbent.
	DeadPrefix
)

func (r Result) String() string {
	switch r {
	case Candidate:
		return "candidate"
	case CapturedZero:
		return "captured-zero"
	default:
		return "dead-prefix"
	}
}

// Evaluator computes cache entries incrementally from their parents.
// It only reads the dataset and is safe for concurrent use.
type Evaluator struct {
	labels *bitvec.Vector
	rules  []*bitvec.Vector
	ndata  int
}

// NewEvaluator creates an evaluator over ds.
func NewEvaluator(ds *dataset.Dataset) *Evaluator {
	rules := make([]*bitvec.Vector, ds.NRules())
	for i, r := range ds.Rules() {
		rules[i] = r.Captures
	}
	return &Evaluator{
		labels: ds.Labels(),
		rules:  rules,
		ndata:  ds.NData(),
	}
}

// NRules returns the number of candidate rules.
func (ev *Evaluator) NRules() int { return len(ev.rules) }

// majority returns the default prediction over the rows in nc and how many of
// them it classifies correctly. Ties predict 0.
func (ev *Evaluator) majority(nc *bitvec.Vector) (bool, int) {
	total := nc.Count()
	ones := nc.AndCount(ev.labels)
	if 2*ones > total {
		return true, ones
	}
	return false, total - ones
}

func (ev *Evaluator) ratio(n int) float64 {
	return float64(n) / float64(ev.ndata)
}

// Root returns the entry of the empty prefix: every row goes to the default.
func (ev *Evaluator) Root() *cache.Entry {
	nc := bitvec.Ones(uint(ev.ndata))
	def, correct := ev.majority(nc)
	return &cache.Entry{
		Prefix:      cache.Prefix{},
		Prediction:  []bool{},
		DefaultRule: def,
		Accuracy:    ev.ratio(correct),
		UpperBound:  1,
		NotCaptured: nc,
	}
}

// extend appends rule to parent and reports how many rows it captured.
func (ev *Evaluator) extend(parent *cache.Entry, rule uint16) (*cache.Entry, int) {
	rv := ev.rules[rule]
	captured := parent.NotCaptured.And(rv)
	n := captured.Count()

	ones := captured.AndCount(ev.labels)
	predict := 2*ones >= n
	correct := n - ones
	if predict {
		correct = ones
	}

	nc := parent.NotCaptured.AndNot(rv)
	def, defCorrect := ev.majority(nc)
	already := parent.NumCapturedCorrect + correct

	prediction := make([]bool, len(parent.Prediction)+1)
	copy(prediction, parent.Prediction)
	prediction[len(parent.Prediction)] = predict

	return &cache.Entry{
		Prefix:             parent.Prefix.Append(rule),
		Prediction:         prediction,
		DefaultRule:        def,
		Accuracy:           ev.ratio(already + defCorrect),
		UpperBound:         ev.ratio(already + nc.Count()),
		NumCaptured:        parent.NumCaptured + n,
		NumCapturedCorrect: already,
		NotCaptured:        nc,
	}, n
}

// Evaluate extends parent by rule. It returns a nil entry when the rule
// captures nothing new or when the extension's upper bound does not exceed
// maxAccuracy.
func (ev *Evaluator) Evaluate(parent *cache.Entry, rule uint16, maxAccuracy float64) (*cache.Entry, Result) {
	if parent.NotCaptured.AndCount(ev.rules[rule]) == 0 {
		return nil, CapturedZero
	}
	e, _ := ev.extend(parent, rule)
	if e.UpperBound <= maxAccuracy {
		return nil, DeadPrefix
	}
	return e, Candidate
}

// EvaluatePrefix evaluates p from the root without pruning. A rule that
// captures nothing predicts 1 over zero rows.
func (ev *Evaluator) EvaluatePrefix(p cache.Prefix) (*cache.Entry, error) {
	e := ev.Root()
	for _, r := range p {
		if int(r) >= len(ev.rules) {
			return nil, fmt.Errorf("rule %d out of range [0, %d)", r, len(ev.rules))
		}
		if e.Prefix.Contains(r) {
			return nil, fmt.Errorf("rule %d repeated in %s", r, p)
		}
		e, _ = ev.extend(e, r)
	}
	return e, nil
}
