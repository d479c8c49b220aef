package testutil

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/alexzheng587/corels/dataset"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Bools returns n values that are true with probability p.
func (r *RNG) Bools(n int, p float64) []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bool, n)
	for i := range out {
		out[i] = r.rand.Float64() < p
	}
	return out
}

// Dataset generates ndata samples with balanced random labels and nrules
// rules, each capturing a sample with probability density.
func (r *RNG) Dataset(ndata, nrules int, density float64) *dataset.Dataset {
	labels := r.Bools(ndata, 0.5)
	rules := make([][]bool, nrules)
	names := make([]string, nrules)
	for i := range rules {
		rules[i] = r.Bools(ndata, density)
		names[i] = fmt.Sprintf("r%d", i)
	}
	ds, err := dataset.New(labels, rules, names)
	if err != nil {
		panic(err)
	}
	return ds
}

// Accuracy scores the rule list given by prefix row by row: each sample is
// predicted by the first rule that captures it, with the majority label of
// the samples that rule captures (ties predict 1), or by the majority of the
// uncaptured samples (ties predict 0).
func Accuracy(ds *dataset.Dataset, prefix []int) float64 {
	n := ds.NData()
	labels := make([]bool, n)
	for i := range n {
		labels[i] = ds.Labels().Test(uint(i))
	}

	owner := make([]int, n)
	for i := range owner {
		owner[i] = -1
		for j, r := range prefix {
			if ds.Rule(r).Captures.Test(uint(i)) {
				owner[i] = j
				break
			}
		}
	}

	ones := make([]int, len(prefix)+1)
	total := make([]int, len(prefix)+1)
	for i, o := range owner {
		slot := o
		if o < 0 {
			slot = len(prefix)
		}
		total[slot]++
		if labels[i] {
			ones[slot]++
		}
	}

	correct := 0
	for j := range prefix {
		if 2*ones[j] >= total[j] {
			correct += ones[j]
		} else {
			correct += total[j] - ones[j]
		}
	}
	d := len(prefix)
	if 2*ones[d] > total[d] {
		correct += ones[d]
	} else {
		correct += total[d] - ones[d]
	}
	return float64(correct) / float64(n)
}

// BruteForce scores every ordered list of distinct rules up to maxLength,
// including the empty list, and returns the best accuracy and the first list
// reaching it in (length, lexicographic) order.
func BruteForce(ds *dataset.Dataset, maxLength int) (float64, []int) {
	best := Accuracy(ds, nil)
	var bestPrefix []int

	used := make([]bool, ds.NRules())
	var walk func(prefix []int)
	walk = func(prefix []int) {
		if len(prefix) == maxLength {
			return
		}
		for r := range ds.NRules() {
			if used[r] {
				continue
			}
			next := append(prefix, r)
			if acc := Accuracy(ds, next); acc > best ||
				(acc == best && bestPrefix != nil && len(next) < len(bestPrefix)) {
				best = acc
				bestPrefix = append([]int(nil), next...)
			}
			used[r] = true
			walk(next)
			used[r] = false
		}
	}
	walk(make([]int, 0, maxLength))
	return best, bestPrefix
}
