package corels

import (
	"log/slog"
	"time"

	"github.com/alexzheng587/corels/blobstore"
	"github.com/alexzheng587/corels/codec"
	"github.com/alexzheng587/corels/internal/pmap"
	"github.com/alexzheng587/corels/ledger"
	"github.com/alexzheng587/corels/persistence"
)

// GCMode selects how permutations of cached prefixes are collected.
type GCMode uint8

const (
	// GCOff keeps every prefix.
	GCOff = GCMode(pmap.Off)
	// GCRuleSet keeps one prefix per set of rules.
	GCRuleSet = GCMode(pmap.RuleSet)
	// GCCaptured keeps one prefix per set of uncaptured samples.
	GCCaptured = GCMode(pmap.Captured)
)

// String returns the mode name.
func (m GCMode) String() string { return pmap.Mode(m).String() }

// ParseGCMode parses "off", "ruleset" or "captured". "true" and "false"
// select GCRuleSet and GCOff.
func ParseGCMode(s string) (GCMode, error) {
	m, err := pmap.ParseMode(s)
	return GCMode(m), err
}

type options struct {
	maxPrefixLength  int
	maxAccuracy      float64
	bestPrefix       []int
	gc               GCMode
	workers          int
	maxNodes         int
	memoryLimit      int64
	ioLimit          int64
	seed             int64
	sample           float64
	warmStart        bool
	progressInterval time.Duration
	metricsCollector MetricsCollector
	logger           *Logger
	store            blobstore.BlobStore
	runName          string
	compression      persistence.Compression
	codec            codec.Codec
	resume           string
	ledger           ledger.Ledger
	ledgerKey        string
}

// Option configures Search.
type Option func(*options)

// WithMaxPrefixLength sets the longest rule list searched. Default: 3.
func WithMaxPrefixLength(n int) Option {
	return func(o *options) {
		o.maxPrefixLength = n
	}
}

// WithMaxAccuracy sets the accuracy a rule list must beat. A search resumed
// from a known result can start from its accuracy.
func WithMaxAccuracy(acc float64) Option {
	return func(o *options) {
		o.maxAccuracy = acc
	}
}

// WithBestPrefix seeds the incumbent with a known rule list, given as rule
// indices. The seed is ignored, with a warning, if its accuracy is below the
// configured max accuracy.
func WithBestPrefix(prefix ...int) Option {
	return func(o *options) {
		o.bestPrefix = append([]int(nil), prefix...)
	}
}

// WithGarbageCollection selects the permutation garbage collection mode.
// Default: GCRuleSet.
func WithGarbageCollection(m GCMode) Option {
	return func(o *options) {
		o.gc = m
	}
}

// WithWorkers sets the number of prefixes expanded in parallel. With one
// worker (the default) the search order is deterministic.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithMaxNodes sets an advisory ceiling on cached prefixes. Once reached,
// remaining prefixes are not expanded and the result is marked truncated.
func WithMaxNodes(n int) Option {
	return func(o *options) {
		o.maxNodes = n
	}
}

// WithMemoryLimit sets an advisory ceiling on cache memory in bytes, with the
// same effect as WithMaxNodes.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithIOLimit throttles run uploads to bytesPerSec.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioLimit = bytesPerSec
	}
}

// WithSample searches a deterministic random fraction of the samples.
func WithSample(seed int64, fraction float64) Option {
	return func(o *options) {
		o.seed = seed
		o.sample = fraction
	}
}

// WithWarmStart seeds the incumbent with a greedily built rule list.
func WithWarmStart() Option {
	return func(o *options) {
		o.warmStart = true
	}
}

// WithProgressInterval sets how often in-layer progress is logged.
func WithProgressInterval(d time.Duration) Option {
	return func(o *options) {
		o.progressInterval = d
	}
}

// WithQuiet disables logging. Equivalent to WithLogger(NoopLogger()).
func WithQuiet() Option {
	return func(o *options) {
		o.logger = NoopLogger()
	}
}

// WithMetricsCollector configures a metrics collector for monitoring searches.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &corels.BasicMetricsCollector{}
//	res, _ := corels.Search(ctx, ds, corels.WithMetricsCollector(metrics))
//	stats := metrics.GetStats()
//	fmt.Printf("layers: %d, retained: %d\n", stats.LayerCount, stats.Retained)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := corels.NewJSONLogger(slog.LevelInfo)
//	res, _ := corels.Search(ctx, ds, corels.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithStore saves the run as name in store: the cache dump and a manifest
// describing the dataset, options and per-layer counters.
func WithStore(store blobstore.BlobStore, name string) Option {
	return func(o *options) {
		o.store = store
		o.runName = name
	}
}

// WithCompression sets the compression of saved dumps.
func WithCompression(c persistence.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithCodec configures the codec used for run manifests.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithResume continues the saved run name from the store given by WithStore.
// Its completed layers are restored and verified against the dataset.
func WithResume(name string) Option {
	return func(o *options) {
		o.resume = name
	}
}

// WithLedger consults l before the search and offers it the result after.
// key defaults to the dataset fingerprint.
func WithLedger(l ledger.Ledger, key string) Option {
	return func(o *options) {
		o.ledger = l
		o.ledgerKey = key
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		maxPrefixLength:  3,
		gc:               GCRuleSet,
		workers:          1,
		progressInterval: 10 * time.Second,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		codec:            codec.Default,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
