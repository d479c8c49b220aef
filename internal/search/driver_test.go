package search

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/alexzheng587/corels/internal/cache"
	"github.com/alexzheng587/corels/internal/pmap"
	"github.com/alexzheng587/corels/internal/resource"
	"github.com/alexzheng587/corels/persistence"
	"github.com/alexzheng587/corels/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rowSink struct{ rows []persistence.Row }

func (s *rowSink) WriteRow(r persistence.Row) error {
	s.rows = append(s.rows, r)
	return nil
}

func TestConfigValidate(t *testing.T) {
	ds := build(t, []int{1, 0}, []int{0}, []int{1})
	empty := build(t, []int{1, 0})

	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"zero length", Config{MaxPrefixLength: 0}, "max prefix length"},
		{"negative length", Config{MaxPrefixLength: -1}, "max prefix length"},
		{"accuracy above one", Config{MaxPrefixLength: 1, MaxAccuracy: 1.5}, "max accuracy"},
		{"accuracy one without seed", Config{MaxPrefixLength: 1, MaxAccuracy: 1}, "max accuracy"},
		{"accuracy NaN", Config{MaxPrefixLength: 1, MaxAccuracy: math.NaN()}, "max accuracy"},
		{"unknown rule", Config{MaxPrefixLength: 2, BestPrefix: []int{4}}, "best prefix"},
		{"repeated rule", Config{MaxPrefixLength: 2, BestPrefix: []int{1, 1}}, "best prefix"},
		{"prefix too long", Config{MaxPrefixLength: 1, BestPrefix: []int{0, 1}}, "best prefix"},
		{"negative nodes", Config{MaxPrefixLength: 1, MaxNodes: -1}, "max nodes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(ds, tt.cfg)
			require.ErrorIs(t, err, ErrConfiguration)
			var ce *ConfigurationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}

	_, err := New(empty, Config{MaxPrefixLength: 1})
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestRunPermutationInferior(t *testing.T) {
	ds := build(t, []int{1, 1, 0, 0, 1, 0}, []int{0, 1}, []int{2, 3})

	for _, mode := range []pmap.Mode{pmap.RuleSet, pmap.Captured} {
		t.Run(mode.String(), func(t *testing.T) {
			d, err := New(ds, Config{MaxPrefixLength: 2, GC: mode})
			require.NoError(t, err)
			out, err := d.Run(context.Background())
			require.NoError(t, err)

			require.Len(t, out.Layers, 2)
			l2 := out.Layers[1]
			assert.Equal(t, 1, l2.Retained)
			assert.Equal(t, 1, l2.Inferior)
			assert.Equal(t, 2, l2.Expanded)

			_, ok := d.Cache().Get(cache.Prefix{0, 1})
			assert.True(t, ok, "first inserted ordering survives")
			_, ok = d.Cache().Get(cache.Prefix{1, 0})
			assert.False(t, ok)
		})
	}

	d, err := New(ds, Config{MaxPrefixLength: 2, GC: pmap.Off})
	require.NoError(t, err)
	out, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, out.Layers[1].Retained)
	assert.Zero(t, out.Layers[1].Inferior)
}

func TestRunCapturedZero(t *testing.T) {
	ds := build(t, []int{1, 0, 1, 0}, []int{0, 1}, []int{2, 3}, []int{0})
	d, err := New(ds, Config{MaxPrefixLength: 2, GC: pmap.RuleSet})
	require.NoError(t, err)

	out, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Layers, 2)
	assert.Positive(t, out.Layers[1].CapturedZero)
	_, ok := d.Cache().Get(cache.Prefix{0, 2})
	assert.False(t, ok)
}

func TestRunDeadPrefix(t *testing.T) {
	ds := build(t, []int{1, 0, 1, 0}, []int{0, 1}, []int{2, 3})
	rec := &recorder{}
	d, err := New(ds, Config{MaxPrefixLength: 3, MaxAccuracy: 0.75}, WithObserver(rec))
	require.NoError(t, err)

	out, err := d.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, out.Layers, 1, "no retained prefix, no further layer")
	assert.Equal(t, 2, out.Layers[0].DeadPrefix)
	assert.Zero(t, out.Layers[0].Retained)
	assert.Equal(t, 1, d.Cache().Len())
	assert.Equal(t, 0.75, out.MaxAccuracy)
	assert.False(t, out.Known)
	assert.Len(t, rec.layers, 1)
	assert.Empty(t, rec.incumbents)
}

func TestRunStunted(t *testing.T) {
	// Rule 0 alone classifies everything; its entry is stunted.
	ds := build(t, []int{1, 1, 0, 0}, []int{0, 1}, []int{0})
	d, err := New(ds, Config{MaxPrefixLength: 3})
	require.NoError(t, err)

	out, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, out.MaxAccuracy)
	assert.Equal(t, cache.Prefix{0}, out.BestPrefix)
	require.Len(t, out.Layers, 2)
	assert.Equal(t, 1, out.Layers[0].DeadPrefix)
	assert.Equal(t, 1, out.Layers[1].Stunted)
	assert.Zero(t, out.Layers[1].Expanded)
}

func TestRunMatchesBruteForce(t *testing.T) {
	modes := []pmap.Mode{pmap.Off, pmap.RuleSet, pmap.Captured}
	for seed := int64(1); seed <= 6; seed++ {
		rng := testutil.NewRNG(seed)
		ds := rng.Dataset(40, 6, 0.25)
		want, _ := testutil.BruteForce(ds, 3)

		for _, mode := range modes {
			for _, workers := range []int64{1, 4} {
				t.Run(fmt.Sprintf("seed=%d/%s/workers=%d", seed, mode, workers), func(t *testing.T) {
					rc := resource.NewController(resource.Config{MaxWorkers: workers})
					d, err := New(ds, Config{MaxPrefixLength: 3, GC: mode}, WithResourceController(rc))
					require.NoError(t, err)

					out, err := d.Run(context.Background())
					require.NoError(t, err)
					assert.Equal(t, want, out.MaxAccuracy)
					require.True(t, out.Known)
					assert.Equal(t, out.MaxAccuracy, testutil.Accuracy(ds, out.BestPrefix.Ints()))
					assert.False(t, out.Truncated)

					for _, l := range out.Layers {
						require.NoError(t, l.Check(ds.NRules()))
					}
					for k := range d.Cache().MaxLength() + 1 {
						for p, e := range d.Cache().EntriesOfLength(k) {
							require.NoError(t, e.Validate(ds.NData()), p.String())
						}
					}
				})
			}
		}
	}
}

func TestRunSerialDeterministic(t *testing.T) {
	ds := testutil.NewRNG(3).Dataset(60, 7, 0.3)
	run := func() ([]LayerStats, []persistence.Row) {
		d, err := New(ds, Config{MaxPrefixLength: 3, GC: pmap.RuleSet})
		require.NoError(t, err)
		out, err := d.Run(context.Background())
		require.NoError(t, err)
		var sink rowSink
		require.NoError(t, d.Cache().Serialize(&sink))
		for i := range out.Layers {
			out.Layers[i].Duration = 0
		}
		return out.Layers, sink.rows
	}
	l1, r1 := run()
	l2, r2 := run()
	assert.Equal(t, l1, l2)
	assert.Equal(t, r1, r2)
}

func TestRunIncumbentMonotone(t *testing.T) {
	ds := testutil.NewRNG(5).Dataset(80, 8, 0.2)
	rec := &recorder{}
	d, err := New(ds, Config{MaxPrefixLength: 3, GC: pmap.Captured}, WithObserver(rec))
	require.NoError(t, err)
	out, err := d.Run(context.Background())
	require.NoError(t, err)

	prev := 0.0
	for _, s := range rec.incumbents {
		assert.Greater(t, s.Accuracy, prev)
		prev = s.Accuracy
	}
	assert.Equal(t, out.MaxAccuracy, prev)
	assert.Len(t, rec.layers, len(out.Layers))
}

func TestRunMaxNodesDefers(t *testing.T) {
	ds := testutil.NewRNG(9).Dataset(40, 5, 0.3)
	d, err := New(ds, Config{MaxPrefixLength: 3, MaxNodes: 1})
	require.NoError(t, err)

	out, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Layers, 1)
	assert.Equal(t, 1, out.Layers[0].Deferred)
	assert.Zero(t, out.Layers[0].Expanded)
	assert.True(t, out.Truncated)
}

func TestRunMemoryLimitDefers(t *testing.T) {
	ds := testutil.NewRNG(9).Dataset(40, 5, 0.3)
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 1})
	d, err := New(ds, Config{MaxPrefixLength: 3}, WithResourceController(rc))
	require.NoError(t, err)

	out, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Truncated)
	assert.Equal(t, 1, out.Layers[0].Deferred)
}

func TestRunCanceled(t *testing.T) {
	ds := testutil.NewRNG(9).Dataset(40, 5, 0.3)
	d, err := New(ds, Config{MaxPrefixLength: 3})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSeededPrefix(t *testing.T) {
	ds := build(t, []int{1, 1, 0, 0, 1, 0}, []int{0, 1}, []int{2, 3})

	d, err := New(ds, Config{MaxPrefixLength: 2, BestPrefix: []int{1}})
	require.NoError(t, err)
	snap := d.Incumbent().Snapshot()
	assert.True(t, snap.Known)
	assert.Equal(t, cache.Prefix{1}, snap.Prefix)
	assert.Equal(t, 5.0/6, snap.Accuracy)

	// A seed below MaxAccuracy is dropped; the incumbent stays unknown.
	d, err = New(ds, Config{MaxPrefixLength: 2, MaxAccuracy: 0.9, BestPrefix: []int{1}})
	require.NoError(t, err)
	snap = d.Incumbent().Snapshot()
	assert.False(t, snap.Known)
	assert.Equal(t, 0.9, snap.Accuracy)

	// Accuracy 1 only stands when the seed reaches it.
	_, err = New(ds, Config{MaxPrefixLength: 2, MaxAccuracy: 1, BestPrefix: []int{1}})
	require.ErrorIs(t, err, ErrConfiguration)

	perfect := build(t, []int{1, 1, 0, 0}, []int{0, 1}, []int{2, 3})
	d, err = New(perfect, Config{MaxPrefixLength: 1, MaxAccuracy: 1, BestPrefix: []int{0}})
	require.NoError(t, err)
	snap = d.Incumbent().Snapshot()
	assert.True(t, snap.Known)
	assert.Equal(t, 1.0, snap.Accuracy)
}

func TestWarmStart(t *testing.T) {
	ds := testutil.NewRNG(21).Dataset(60, 6, 0.3)
	want, _ := testutil.BruteForce(ds, 3)

	d, err := New(ds, Config{MaxPrefixLength: 3, WarmStart: true, GC: pmap.RuleSet})
	require.NoError(t, err)
	start := d.Incumbent().Accuracy()
	assert.GreaterOrEqual(t, start, d.Evaluator().Root().Accuracy)

	out, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, out.MaxAccuracy)
	assert.GreaterOrEqual(t, out.MaxAccuracy, start)
}

func TestRestore(t *testing.T) {
	ds := testutil.NewRNG(13).Dataset(50, 6, 0.3)
	want, _ := testutil.BruteForce(ds, 3)

	first, err := New(ds, Config{MaxPrefixLength: 2, GC: pmap.RuleSet})
	require.NoError(t, err)
	_, err = first.Run(context.Background())
	require.NoError(t, err)
	var sink rowSink
	require.NoError(t, first.Cache().Serialize(&sink))

	second, err := New(ds, Config{MaxPrefixLength: 3, GC: pmap.RuleSet})
	require.NoError(t, err)
	require.NoError(t, second.Restore(sink.rows, 2))
	assert.Equal(t, first.Cache().Len(), second.Cache().Len())

	out, err := second.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, out.MaxAccuracy)
	require.Len(t, out.Layers, 1)
	assert.Equal(t, 3, out.Layers[0].Length)

	require.Error(t, second.Restore(sink.rows, 2), "restore after run")
}

func TestRestoreRejectsDivergentRows(t *testing.T) {
	ds := testutil.NewRNG(13).Dataset(50, 6, 0.3)

	first, err := New(ds, Config{MaxPrefixLength: 1})
	require.NoError(t, err)
	_, err = first.Run(context.Background())
	require.NoError(t, err)
	var sink rowSink
	require.NoError(t, first.Cache().Serialize(&sink))
	require.Greater(t, len(sink.rows), 1)

	tampered := append([]persistence.Row(nil), sink.rows...)
	tampered[1].NumCapturedCorrect++

	d, err := New(ds, Config{MaxPrefixLength: 2})
	require.NoError(t, err)
	err = d.Restore(tampered, 1)
	require.ErrorIs(t, err, ErrInvariantViolation)
	var iv *InvariantViolation
	require.ErrorAs(t, err, &iv)
	assert.Equal(t, cache.FromInts(tampered[1].Prefix), iv.Prefix)
	assert.NotEmpty(t, iv.Existing)
	assert.NotEmpty(t, iv.Incoming)

	d, err = New(ds, Config{MaxPrefixLength: 2})
	require.NoError(t, err)
	bad := append([]persistence.Row(nil), sink.rows...)
	bad[1].Prefix = []int{99}
	require.ErrorIs(t, d.Restore(bad, 1), ErrInvariantViolation)
}

func TestLayerStatsCheck(t *testing.T) {
	s := LayerStats{Length: 2, Retained: 3, CapturedZero: 1, DeadPrefix: 1, Inferior: 1, Expanded: 2}
	require.NoError(t, s.Check(4))

	s.Retained++
	err := s.Check(4)
	require.ErrorIs(t, err, ErrInvariantViolation)
	assert.Contains(t, err.Error(), "length 2")
}

func TestRunDeadPrefixStart(t *testing.T) {
	// (0) is retained while the incumbent is 4/6, then rule 1 reaches 1.0.
	ds := build(t, []int{1, 0, 1, 1, 1, 0}, []int{0, 1}, []int{1, 5})
	d, err := New(ds, Config{MaxPrefixLength: 2})
	require.NoError(t, err)

	out, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Layers, 2)
	assert.Equal(t, 2, out.Layers[0].Retained)
	assert.Equal(t, 1, out.Layers[1].DeadPrefixStart)
	assert.Equal(t, 1, out.Layers[1].Stunted)
	assert.Equal(t, 1.0, out.MaxAccuracy)
	assert.Equal(t, cache.Prefix{1}, out.BestPrefix)
}
