package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, r *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, r.Collect(context.Background(), &rm))
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestNew(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	m, err := New(&Config{Enabled: false})
	require.NoError(t, err)
	assert.Equal(t, Discard(), m)

	m, err = New(NewDevDefaultConfig("test"))
	require.NoError(t, err)
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestCounterAndGauge(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	m, err := New(NewDevDefaultConfig("test"), WithReader(reader))
	require.NoError(t, err)
	defer m.Shutdown(ctx)

	c, err := m.Counter("fabric_test_total", "test counter")
	require.NoError(t, err)
	c.Inc(ctx, L("type", "a"))
	c.Add(ctx, 2, L("type", "a"))

	g, err := m.Gauge("fabric_test_gauge", "test gauge")
	require.NoError(t, err)
	g.Set(ctx, 5)
	g.Inc(ctx)
	g.Dec(ctx)
	g.Dec(ctx)

	h, err := m.Histogram("fabric_test_seconds", "test histogram", WithUnit("s"))
	require.NoError(t, err)
	h.Record(ctx, 0.25)

	data := collect(t, reader)

	sum, ok := data["fabric_test_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(3), sum.DataPoints[0].Value)

	gauge, ok := data["fabric_test_gauge"].(metricdata.Gauge[float64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, float64(4), gauge.DataPoints[0].Value)

	hist, ok := data["fabric_test_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
}

func TestDiscard(t *testing.T) {
	m := Discard()
	c, err := m.Counter("x", "x")
	require.NoError(t, err)
	c.Inc(context.Background())
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestServer_NoPortIsNoop(t *testing.T) {
	s := NewServer(&Config{Enabled: true}, Discard(), nil)
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
}
