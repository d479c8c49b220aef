package corels

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/alexzheng587/corels/dataset"
	"github.com/alexzheng587/corels/internal/pmap"
	"github.com/alexzheng587/corels/internal/resource"
	"github.com/alexzheng587/corels/internal/search"
	"github.com/alexzheng587/corels/ledger"
	"github.com/alexzheng587/corels/persistence"
)

// LayerStats counts the outcomes of one layer of the search.
type LayerStats = search.LayerStats

// Result is the outcome of Search.
type Result struct {
	// Accuracy is the best accuracy found, or the configured max accuracy if
	// nothing beat it.
	Accuracy float64
	// Prefix holds the rule indices of the best list. It is nil when Known
	// is false.
	Prefix []int
	// Known reports whether a rule list reaching Accuracy was found or seeded.
	Known bool
	// Rules is the rendered best list.
	Rules RuleList

	Layers    []LayerStats
	Truncated bool
	CacheSize int
	Duration  time.Duration

	// Manifest describes the saved run when WithStore was given.
	Manifest *persistence.Manifest
}

// Search finds the most accurate rule list of at most the configured length
// over ds.
func Search(ctx context.Context, ds *dataset.Dataset, optFns ...Option) (res *Result, err error) {
	o := applyOptions(optFns)
	start := time.Now()
	defer func() {
		size := 0
		if res != nil {
			size = res.CacheSize
		}
		o.metricsCollector.RecordRun(time.Since(start), size, err)
		o.logger.LogRun(ctx, res, err)
	}()

	if ds == nil {
		return nil, &ConfigurationError{Field: "dataset", Reason: "missing"}
	}
	if o.sample > 0 {
		ds = ds.Subsample(o.seed, o.sample)
	}
	if o.workers <= 0 {
		return nil, &ConfigurationError{Field: "workers", Reason: fmt.Sprintf("must be positive, got %d", o.workers)}
	}
	if (o.resume != "" || o.runName != "") && o.store == nil {
		return nil, &ConfigurationError{Field: "store", Reason: "saving or resuming a run needs a store"}
	}

	fingerprint, err := Fingerprint(ds)
	if err != nil {
		return nil, err
	}
	logger := o.logger.WithDataset(ds.NData(), ds.NRules())
	if o.runName != "" {
		logger = logger.WithRun(o.runName)
	}

	rc := resource.NewController(resource.Config{
		MemoryLimitBytes:   o.memoryLimit,
		MaxWorkers:         int64(o.workers),
		IOLimitBytesPerSec: o.ioLimit,
	})
	runs := persistence.NewRunStore(o.store,
		persistence.WithCodec(o.codec),
		persistence.WithResourceController(rc),
		persistence.WithCompression(o.compression),
	)

	cfg := search.Config{
		MaxPrefixLength: o.maxPrefixLength,
		MaxAccuracy:     o.maxAccuracy,
		BestPrefix:      o.bestPrefix,
		GC:              pmap.Mode(o.gc),
		MaxNodes:        o.maxNodes,
		WarmStart:       o.warmStart,
	}

	var (
		resumed  *persistence.Manifest
		rows     []persistence.Row
		restored int
	)
	if o.resume != "" {
		resumed, rows, err = runs.Load(ctx, o.resume)
		if err != nil {
			return nil, fmt.Errorf("resume %q: %w", o.resume, err)
		}
		if resumed.Dataset.Fingerprint != fingerprint {
			return nil, &ConfigurationError{Field: "resume", Reason: fmt.Sprintf("run %q was computed on a different dataset", o.resume)}
		}
		restored = completeLayers(resumed)
		if len(cfg.BestPrefix) == 0 && resumed.Incumbent.Known && len(resumed.Incumbent.Prefix) <= cfg.MaxPrefixLength {
			cfg.BestPrefix = resumed.Incumbent.Prefix
		}
	}

	ledgerKey := o.ledgerKey
	if ledgerKey == "" {
		ledgerKey = fmt.Sprintf("%08x", fingerprint)
	}
	if o.ledger != nil && len(cfg.BestPrefix) == 0 {
		rec, err := o.ledger.Get(ctx, ledgerKey)
		switch {
		case errors.Is(err, ledger.ErrNotFound):
		case err != nil:
			return nil, fmt.Errorf("ledger: %w", err)
		case validSeed(rec.Prefix, ds.NRules(), cfg.MaxPrefixLength):
			cfg.BestPrefix = rec.Prefix
		default:
			logger.Warn("ignoring ledger record that does not fit this search",
				"key", ledgerKey,
				"prefix", rec.Prefix)
		}
	}

	d, err := search.New(ds, cfg,
		search.WithLogger(logger.Logger),
		search.WithObserver(observer{ctx: ctx, logger: logger, metrics: o.metricsCollector}),
		search.WithResourceController(rc),
		search.WithProgressInterval(o.progressInterval),
	)
	if err != nil {
		return nil, err
	}
	if resumed != nil {
		if err := d.Restore(rows, restored); err != nil {
			return nil, err
		}
	}

	out, err := d.Run(ctx)
	if err != nil {
		return nil, err
	}

	res = &Result{
		Accuracy:  out.MaxAccuracy,
		Known:     out.Known,
		Truncated: out.Truncated,
		CacheSize: d.Cache().Len(),
	}
	if resumed != nil {
		for _, l := range resumed.Layers[:restored] {
			res.Layers = append(res.Layers, layerFromRecord(l))
		}
	}
	res.Layers = append(res.Layers, out.Layers...)
	if out.Known {
		res.Prefix = out.BestPrefix.Ints()
		if res.Rules, err = NewRuleList(ds, res.Prefix); err != nil {
			return nil, err
		}
	}

	if o.runName != "" {
		m := &persistence.Manifest{
			Name: o.runName,
			Dataset: persistence.DatasetInfo{
				NData:       ds.NData(),
				NRules:      ds.NRules(),
				NumPositive: ds.NumPositive(),
				Fingerprint: fingerprint,
			},
			Config: persistence.RunConfig{
				MaxPrefixLength: o.maxPrefixLength,
				MaxAccuracy:     o.maxAccuracy,
				BestPrefix:      o.bestPrefix,
				GarbageCollect:  o.gc.String(),
				Workers:         o.workers,
				MaxNodes:        o.maxNodes,
				MemoryLimit:     o.memoryLimit,
				Seed:            o.seed,
				Sample:          o.sample,
				WarmStart:       o.warmStart,
			},
			Incumbent: persistence.IncumbentRecord{
				Accuracy: res.Accuracy,
				Prefix:   res.Prefix,
				Known:    res.Known,
			},
			Truncated: res.Truncated,
		}
		for _, l := range res.Layers {
			m.Layers = append(m.Layers, recordFromLayer(l))
		}
		err = runs.Save(ctx, m, func(w *persistence.DumpWriter) error {
			return d.Cache().Serialize(w)
		})
		logger.LogSave(ctx, o.runName, m.Dump.Rows, err)
		if err != nil {
			return nil, fmt.Errorf("save run %q: %w", o.runName, err)
		}
		res.Manifest = m
	}

	if o.ledger != nil && res.Known {
		ok, err := o.ledger.Offer(ctx, ledger.Record{Key: ledgerKey, Accuracy: res.Accuracy, Prefix: res.Prefix})
		if err != nil {
			return nil, fmt.Errorf("ledger: %w", err)
		}
		if ok {
			logger.Info("ledger updated", "key", ledgerKey, "accuracy", res.Accuracy)
		}
	}

	res.Duration = time.Since(start)
	return res, nil
}

// Fingerprint returns a CRC32 of the labels and rule captures of ds. Runs
// are only resumed on a dataset with the same fingerprint.
func Fingerprint(ds *dataset.Dataset) (uint32, error) {
	cw := persistence.NewChecksumWriter(io.Discard)
	if _, err := ds.Labels().WriteTo(cw); err != nil {
		return 0, err
	}
	for _, r := range ds.Rules() {
		if _, err := r.Captures.WriteTo(cw); err != nil {
			return 0, err
		}
	}
	return cw.Sum(), nil
}

// completeLayers returns how many leading layers of m finished without
// deferring any prefix.
func completeLayers(m *persistence.Manifest) int {
	for i, l := range m.Layers {
		if l.Deferred > 0 {
			return i
		}
	}
	return len(m.Layers)
}

func validSeed(prefix []int, nrules, maxLength int) bool {
	if len(prefix) == 0 || len(prefix) > maxLength {
		return false
	}
	for i, r := range prefix {
		if r < 0 || r >= nrules || slices.Contains(prefix[:i], r) {
			return false
		}
	}
	return true
}

func layerFromRecord(l persistence.LayerRecord) LayerStats {
	return LayerStats{
		Length:          l.Length,
		Retained:        l.Retained,
		CapturedZero:    l.CapturedZero,
		DeadPrefix:      l.DeadPrefix,
		Inferior:        l.Inferior,
		DeadPrefixStart: l.DeadPrefixStart,
		Stunted:         l.Stunted,
		Deferred:        l.Deferred,
	}
}

func recordFromLayer(l LayerStats) persistence.LayerRecord {
	return persistence.LayerRecord{
		Length:          l.Length,
		Retained:        l.Retained,
		CapturedZero:    l.CapturedZero,
		DeadPrefix:      l.DeadPrefix,
		Inferior:        l.Inferior,
		DeadPrefixStart: l.DeadPrefixStart,
		Stunted:         l.Stunted,
		Deferred:        l.Deferred,
	}
}

type observer struct {
	ctx     context.Context
	logger  *Logger
	metrics MetricsCollector
}

func (o observer) OnLayer(s search.LayerStats) {
	o.logger.LogLayer(o.ctx, s)
	o.metrics.RecordLayer(s)
}

func (o observer) OnIncumbent(s search.Snapshot) {
	o.logger.LogIncumbent(o.ctx, s.Accuracy, s.Prefix.Ints())
	o.metrics.RecordIncumbent(s.Accuracy, len(s.Prefix))
}
