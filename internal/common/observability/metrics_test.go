package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestRecordJob(t *testing.T) {
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))

	obs, err := newWithProvider(provider, "test")
	require.NoError(t, err)

	ctx := context.Background()
	obs.RecordJob(ctx, "submit-interest", "completed", 12*time.Millisecond)
	obs.RecordJob(ctx, "submit-interest", "failed", 3*time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	names := map[string]bool{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		names[m.Name] = true
		if m.Name == "jobs.processed" {
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			assert.Len(t, sum.DataPoints, 2)
		}
	}
	assert.True(t, names["jobs.processed"])
	assert.True(t, names["jobs.duration"])

	assert.NoError(t, obs.Shutdown(ctx))
}

func TestZeroValueIsSafe(t *testing.T) {
	obs := &Observability{}
	assert.NotPanics(t, func() {
		obs.RecordJob(context.Background(), "x", "completed", time.Second)
	})
	assert.NoError(t, obs.Shutdown(context.Background()))
}
