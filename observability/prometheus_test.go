package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alexzheng587/corels"
	"github.com/alexzheng587/corels/testutil"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollector_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	c.RecordLayer(corels.LayerStats{Length: 1, Retained: 3, CapturedZero: 1, Duration: time.Millisecond})
	c.RecordLayer(corels.LayerStats{Length: 2, Retained: 2, Inferior: 4})
	c.RecordIncumbent(0.75, 2)
	c.RecordRun(time.Second, 12, nil)
	c.RecordRun(time.Second, 0, errors.New("boom"))

	assert.Equal(t, 2.0, promtest.ToFloat64(c.layers))
	assert.Equal(t, 5.0, promtest.ToFloat64(c.prefixes.WithLabelValues("retained")))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.prefixes.WithLabelValues("captured_zero")))
	assert.Equal(t, 4.0, promtest.ToFloat64(c.prefixes.WithLabelValues("inferior")))
	assert.Equal(t, 0.75, promtest.ToFloat64(c.incumbent))
	assert.Equal(t, 2.0, promtest.ToFloat64(c.incumbentLen))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.raises))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.runs.WithLabelValues("success")))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.runs.WithLabelValues("error")))
	assert.Equal(t, 0.0, promtest.ToFloat64(c.cacheSize))

	var m dto.Metric
	require.NoError(t, c.runDuration.Write(&m))
	assert.Equal(t, uint64(2), m.GetHistogram().GetSampleCount())
	assert.Equal(t, 2.0, m.GetHistogram().GetSampleSum())
}

func TestPrometheusCollector_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	_, err = NewPrometheusCollector(reg)
	var are prometheus.AlreadyRegisteredError
	assert.ErrorAs(t, err, &are)
}

func TestPrometheusCollector_Search(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	ds := testutil.NewRNG(3).Dataset(40, 6, 0.3)
	res, err := corels.Search(context.Background(), ds,
		corels.WithMaxPrefixLength(2),
		corels.WithMetricsCollector(c),
		corels.WithQuiet(),
	)
	require.NoError(t, err)

	assert.Equal(t, float64(len(res.Layers)), promtest.ToFloat64(c.layers))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.runs.WithLabelValues("success")))
	assert.Equal(t, float64(res.CacheSize), promtest.ToFloat64(c.cacheSize))
	assert.GreaterOrEqual(t, res.Accuracy, promtest.ToFloat64(c.incumbent))
}
