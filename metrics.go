package corels

import (
	"math"
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting search metrics.
// Implement this interface to integrate with monitoring systems like Prometheus;
// see observability.PrometheusCollector.
type MetricsCollector interface {
	// RecordLayer is called after each layer of the search.
	RecordLayer(s LayerStats)

	// RecordIncumbent is called whenever a better rule list is found.
	RecordIncumbent(accuracy float64, length int)

	// RecordRun is called once per Search with its total duration;
	// err is nil if successful.
	RecordRun(duration time.Duration, cacheSize int, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordLayer(LayerStats)              {}
func (NoopMetricsCollector) RecordIncumbent(float64, int)        {}
func (NoopMetricsCollector) RecordRun(time.Duration, int, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	LayerCount      atomic.Int64
	Retained        atomic.Int64
	CapturedZero    atomic.Int64
	DeadPrefix      atomic.Int64
	Inferior        atomic.Int64
	DeadPrefixStart atomic.Int64
	Stunted         atomic.Int64
	Deferred        atomic.Int64
	IncumbentRaises atomic.Int64
	accuracyBits    atomic.Uint64
	RunCount        atomic.Int64
	RunErrors       atomic.Int64
	RunTotalNanos   atomic.Int64
	CacheSize       atomic.Int64
}

// RecordLayer implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLayer(s LayerStats) {
	b.LayerCount.Add(1)
	b.Retained.Add(int64(s.Retained))
	b.CapturedZero.Add(int64(s.CapturedZero))
	b.DeadPrefix.Add(int64(s.DeadPrefix))
	b.Inferior.Add(int64(s.Inferior))
	b.DeadPrefixStart.Add(int64(s.DeadPrefixStart))
	b.Stunted.Add(int64(s.Stunted))
	b.Deferred.Add(int64(s.Deferred))
}

// RecordIncumbent implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIncumbent(accuracy float64, _ int) {
	b.IncumbentRaises.Add(1)
	b.accuracyBits.Store(math.Float64bits(accuracy))
}

// RecordRun implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRun(duration time.Duration, cacheSize int, err error) {
	b.RunCount.Add(1)
	b.RunTotalNanos.Add(duration.Nanoseconds())
	b.CacheSize.Store(int64(cacheSize))
	if err != nil {
		b.RunErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		LayerCount:      b.LayerCount.Load(),
		Retained:        b.Retained.Load(),
		CapturedZero:    b.CapturedZero.Load(),
		DeadPrefix:      b.DeadPrefix.Load(),
		Inferior:        b.Inferior.Load(),
		DeadPrefixStart: b.DeadPrefixStart.Load(),
		Stunted:         b.Stunted.Load(),
		Deferred:        b.Deferred.Load(),
		IncumbentRaises: b.IncumbentRaises.Load(),
		BestAccuracy:    math.Float64frombits(b.accuracyBits.Load()),
		RunCount:        b.RunCount.Load(),
		RunErrors:       b.RunErrors.Load(),
		RunAvgNanos:     b.getAvgRunNanos(),
		CacheSize:       b.CacheSize.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgRunNanos() int64 {
	count := b.RunCount.Load()
	if count == 0 {
		return 0
	}
	return b.RunTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	LayerCount      int64
	Retained        int64
	CapturedZero    int64
	DeadPrefix      int64
	Inferior        int64
	DeadPrefixStart int64
	Stunted         int64
	Deferred        int64
	IncumbentRaises int64
	BestAccuracy    float64
	RunCount        int64
	RunErrors       int64
	RunAvgNanos     int64
	CacheSize       int64
}
