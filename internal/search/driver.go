package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/alexzheng587/corels/dataset"
	"github.com/alexzheng587/corels/internal/cache"
	"github.com/alexzheng587/corels/internal/pmap"
	"github.com/alexzheng587/corels/internal/resource"
)

// Observer receives search events. Calls may come from several goroutines.
type Observer interface {
	OnLayer(LayerStats)
	OnIncumbent(Snapshot)
}

type nopObserver struct{}

func (nopObserver) OnLayer(LayerStats)   {}
func (nopObserver) OnIncumbent(Snapshot) {}

// Outcome is the result of a finished search.
type Outcome struct {
	MaxAccuracy float64
	BestPrefix  cache.Prefix
	// Known is false when no list reached MaxAccuracy and the initial
	// accuracy was supplied without one.
	Known     bool
	Layers    []LayerStats
	Truncated bool
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the progress logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithObserver sets the event observer.
func WithObserver(o Observer) Option {
	return func(d *Driver) { d.observer = o }
}

// WithResourceController sets the worker pool and memory ceiling.
func WithResourceController(rc *resource.Controller) Option {
	return func(d *Driver) { d.rc = rc }
}

// WithProgressInterval sets how often in-layer progress is logged.
func WithProgressInterval(iv time.Duration) Option {
	return func(d *Driver) { d.progress = &rate.Sometimes{Interval: iv} }
}

// Driver runs the breadth-first branch-and-bound search.
type Driver struct {
	cfg      Config
	ds       *dataset.Dataset
	eval     *Evaluator
	cache    *cache.Cache
	inc      *Incumbent
	all      *roaring.Bitmap
	rc       *resource.Controller
	logger   *slog.Logger
	observer Observer
	progress *rate.Sometimes

	next   int
	layers []LayerStats
}

// New validates cfg against ds and prepares a search. The incumbent starts at
// cfg.MaxAccuracy and is raised by the root, the seeded prefix and the greedy
// warm start when they do better.
func New(ds *dataset.Dataset, cfg Config, opts ...Option) (*Driver, error) {
	if err := cfg.Validate(ds); err != nil {
		return nil, err
	}
	d := &Driver{
		cfg:      cfg,
		ds:       ds,
		eval:     NewEvaluator(ds),
		logger:   slog.New(slog.DiscardHandler),
		observer: nopObserver{},
		progress: &rate.Sometimes{Interval: 10 * time.Second},
		next:     1,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.rc == nil {
		d.rc = resource.NewController(resource.Config{})
	}

	d.all = roaring.New()
	d.all.AddRange(0, uint64(ds.NRules()))

	d.cache = cache.New(min(cfg.MaxPrefixLength, ds.NRules()), cache.WithResourceController(d.rc))
	root := d.eval.Root()
	if err := d.cache.Put(root); err != nil {
		return nil, err
	}

	d.inc = NewIncumbent(cfg.MaxAccuracy, nil, false)
	if len(cfg.BestPrefix) > 0 {
		seed, err := d.eval.EvaluatePrefix(cache.FromInts(cfg.BestPrefix))
		if err != nil {
			return nil, configErrorf("best prefix", "%v", err)
		}
		switch {
		case seed.Accuracy >= cfg.MaxAccuracy:
			d.inc = NewIncumbent(seed.Accuracy, seed.Prefix, true)
		case cfg.MaxAccuracy >= 1:
			return nil, configErrorf("max accuracy", "best prefix %s reaches %g, below %g", seed.Prefix, seed.Accuracy, cfg.MaxAccuracy)
		default:
			d.logger.Warn("seeded prefix is below max accuracy, ignoring it",
				"prefix", seed.Prefix.String(),
				"accuracy", seed.Accuracy,
				"max_accuracy", cfg.MaxAccuracy)
		}
	}
	d.offer(root)

	if cfg.WarmStart {
		if e := d.eval.Greedy(cfg.MaxPrefixLength); e != nil {
			d.offer(e)
		}
	}
	return d, nil
}

// Cache returns the prefix cache.
func (d *Driver) Cache() *cache.Cache { return d.cache }

// Incumbent returns the shared incumbent.
func (d *Driver) Incumbent() *Incumbent { return d.inc }

// Evaluator returns the driver's evaluator.
func (d *Driver) Evaluator() *Evaluator { return d.eval }

func (d *Driver) offer(e *cache.Entry) {
	if d.inc.Raise(e.Accuracy, e.Prefix) {
		d.observer.OnIncumbent(d.inc.Snapshot())
	}
}

func (d *Driver) deferred() bool {
	if d.cfg.MaxNodes > 0 && d.cache.Len() >= d.cfg.MaxNodes {
		return true
	}
	return d.rc.MemoryExceeded()
}

// Run expands layers until MaxPrefixLength, an empty layer, or ctx is done.
func (d *Driver) Run(ctx context.Context) (*Outcome, error) {
	truncated := false
	for i := d.next; i <= d.cfg.MaxPrefixLength && i <= d.ds.NRules(); i++ {
		stats, err := d.runLayer(ctx, i)
		if err != nil {
			return nil, err
		}
		d.layers = append(d.layers, stats)
		d.next = i + 1
		if stats.Deferred > 0 {
			truncated = true
		}

		d.observer.OnLayer(stats)

		if stats.Retained == 0 {
			break
		}
	}

	snap := d.inc.Snapshot()
	return &Outcome{
		MaxAccuracy: snap.Accuracy,
		BestPrefix:  snap.Prefix,
		Known:       snap.Known,
		Layers:      d.Layers(),
		Truncated:   truncated,
	}, nil
}

// Layers returns the stats of the layers built so far.
func (d *Driver) Layers() []LayerStats {
	out := make([]LayerStats, len(d.layers))
	copy(out, d.layers)
	return out
}

func (d *Driver) runLayer(ctx context.Context, i int) (LayerStats, error) {
	start := time.Now()
	stats := LayerStats{Length: i}
	gc := pmap.New(d.cfg.GC, d.cache)

	var capturedZero, deadPrefix atomic.Int64
	g, gctx := errgroup.WithContext(ctx)

	for _, parent := range d.cache.EntriesOfLength(i - 1) {
		if gctx.Err() != nil {
			break
		}
		switch best := d.inc.Accuracy(); {
		case parent.UpperBound < best:
			stats.DeadPrefixStart++
			continue
		case parent.Accuracy == parent.UpperBound:
			stats.Stunted++
			continue
		case d.deferred():
			stats.Deferred++
			continue
		}

		if err := d.rc.AcquireWorker(gctx); err != nil {
			break
		}
		stats.Expanded++
		g.Go(func() error {
			defer d.rc.ReleaseWorker()
			cz, dp, err := d.expand(gctx, gc, parent)
			capturedZero.Add(int64(cz))
			deadPrefix.Add(int64(dp))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	_, replaced, inferior := gc.Stats()
	stats.Retained = d.cache.LenOf(i)
	stats.CapturedZero = int(capturedZero.Load())
	stats.DeadPrefix = int(deadPrefix.Load())
	stats.Inferior = replaced + inferior
	stats.Duration = time.Since(start)

	if err := stats.Check(d.ds.NRules()); err != nil {
		return stats, err
	}
	return stats, nil
}

// expand evaluates every rule not in parent.Prefix as its next clause.
func (d *Driver) expand(ctx context.Context, gc *pmap.Map, parent *cache.Entry) (capturedZero, deadPrefix int, err error) {
	candidates := roaring.AndNot(d.all, pmap.Rules(parent.Prefix))
	it := candidates.Iterator()
	for it.HasNext() {
		rule := uint16(it.Next())
		e, res := d.eval.Evaluate(parent, rule, d.inc.Accuracy())
		switch res {
		case CapturedZero:
			capturedZero++
			continue
		case DeadPrefix:
			deadPrefix++
			continue
		}

		out, err := gc.Record(e)
		if err != nil {
			return capturedZero, deadPrefix, d.violation(e, err)
		}
		if out != pmap.Inferior {
			d.offer(e)
		}
	}

	d.progress.Do(func() {
		d.logger.Info("expanding",
			"length", len(parent.Prefix)+1,
			"prefix", parent.Prefix.String(),
			"cache_size", d.cache.Len(),
			"max_accuracy", d.inc.Accuracy())
	})
	return capturedZero, deadPrefix, ctx.Err()
}

func (d *Driver) violation(e *cache.Entry, err error) error {
	var ce *pmap.ConflictError
	if errors.As(err, &ce) {
		return &InvariantViolation{
			Layer:    len(e.Prefix),
			Prefix:   e.Prefix,
			Reason:   "same rule set with different uncaptured rows",
			Existing: ce.Existing.Summary(),
			Incoming: ce.Incoming.Summary(),
			cause:    err,
		}
	}
	if errors.Is(err, cache.ErrDuplicateKey) {
		existing := ""
		if prev, ok := d.cache.Get(e.Prefix); ok {
			existing = prev.Summary()
		}
		return &InvariantViolation{
			Layer:    len(e.Prefix),
			Prefix:   e.Prefix,
			Reason:   "duplicate cache key",
			Existing: existing,
			Incoming: e.Summary(),
			cause:    err,
		}
	}
	return fmt.Errorf("record %s: %w", e.Prefix, err)
}
