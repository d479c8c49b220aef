package search

import (
	"sync"
	"testing"

	"github.com/alexzheng587/corels/dataset"
	"github.com/stretchr/testify/require"
)

// build creates a dataset from label bits and the row sets each rule captures.
func build(t *testing.T, labels []int, captures ...[]int) *dataset.Dataset {
	t.Helper()
	lb := make([]bool, len(labels))
	for i, l := range labels {
		lb[i] = l == 1
	}
	rules := make([][]bool, len(captures))
	for i, rows := range captures {
		rules[i] = make([]bool, len(labels))
		for _, r := range rows {
			rules[i][r] = true
		}
	}
	ds, err := dataset.New(lb, rules, nil)
	require.NoError(t, err)
	return ds
}

type recorder struct {
	mu         sync.Mutex
	layers     []LayerStats
	incumbents []Snapshot
}

func (r *recorder) OnLayer(s LayerStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.layers = append(r.layers, s)
}

func (r *recorder) OnIncumbent(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.incumbents = append(r.incumbents, s)
}
