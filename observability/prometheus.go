// Package observability exports search metrics to Prometheus.
package observability

import (
	"time"

	"github.com/alexzheng587/corels"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements corels.MetricsCollector.
type PrometheusCollector struct {
	prefixes      *prometheus.CounterVec
	layers        prometheus.Counter
	layerDuration prometheus.Histogram
	incumbent     prometheus.Gauge
	incumbentLen  prometheus.Gauge
	raises        prometheus.Counter
	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	cacheSize     prometheus.Gauge
}

var _ corels.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheusCollector creates a collector and registers it with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &PrometheusCollector{
		prefixes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corels_prefixes_total",
			Help: "Prefixes classified per outcome",
		}, []string{"outcome"}),
		layers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "corels_layers_total",
			Help: "Search layers completed",
		}),
		layerDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "corels_layer_duration_seconds",
			Help:    "Time spent per search layer",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		incumbent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "corels_incumbent_accuracy",
			Help: "Accuracy of the best rule list found so far",
		}),
		incumbentLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "corels_incumbent_length",
			Help: "Number of rules in the best rule list found so far",
		}),
		raises: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "corels_incumbent_raises_total",
			Help: "Times the incumbent accuracy was raised",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corels_runs_total",
			Help: "Completed searches",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "corels_run_duration_seconds",
			Help:    "Duration of complete searches",
			Buckets: prometheus.DefBuckets,
		}),
		cacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "corels_cache_entries",
			Help: "Cache entries at the end of the last search",
		}),
	}

	for _, col := range []prometheus.Collector{
		c.prefixes, c.layers, c.layerDuration, c.incumbent, c.incumbentLen,
		c.raises, c.runs, c.runDuration, c.cacheSize,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// RecordLayer implements corels.MetricsCollector.
func (c *PrometheusCollector) RecordLayer(s corels.LayerStats) {
	c.layers.Inc()
	c.layerDuration.Observe(s.Duration.Seconds())
	c.add("retained", s.Retained)
	c.add("captured_zero", s.CapturedZero)
	c.add("dead_prefix", s.DeadPrefix)
	c.add("inferior", s.Inferior)
	c.add("dead_prefix_start", s.DeadPrefixStart)
	c.add("stunted", s.Stunted)
	c.add("deferred", s.Deferred)
}

func (c *PrometheusCollector) add(outcome string, n int) {
	if n > 0 {
		c.prefixes.WithLabelValues(outcome).Add(float64(n))
	}
}

// RecordIncumbent implements corels.MetricsCollector.
func (c *PrometheusCollector) RecordIncumbent(accuracy float64, length int) {
	c.raises.Inc()
	c.incumbent.Set(accuracy)
	c.incumbentLen.Set(float64(length))
}

// RecordRun implements corels.MetricsCollector.
func (c *PrometheusCollector) RecordRun(d time.Duration, cacheSize int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.runs.WithLabelValues(status).Inc()
	c.runDuration.Observe(d.Seconds())
	c.cacheSize.Set(float64(cacheSize))
}
