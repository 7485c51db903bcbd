package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/architeacher/svc-msg-queue/internal/config"
	"github.com/architeacher/svc-msg-queue/pkg/queue"
)

func newTestMetrics(t *testing.T) (*OTELMetrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics, err := newOTELMetrics(provider, "test", NewTestLogger())
	require.NoError(t, err)

	return metrics, reader
}

func sumOf(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}

			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)

			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}

	return total
}

func TestOTELMetrics_QueueOperations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	metrics, reader := newTestMetrics(t)

	metrics.RecordQueueOperation(ctx, "redis", "put", time.Millisecond, nil)
	metrics.RecordQueueOperation(ctx, "redis", "pull", time.Millisecond, errors.New("boom"))
	metrics.RecordMessages(ctx, "redis", "pull", 3)
	metrics.RecordMessages(ctx, "redis", "pull", 0)
	metrics.RecordPutRejected(ctx, "redis", "vetoed")

	assert.Equal(t, int64(2), sumOf(t, reader, "queue_operations_total"))
	assert.Equal(t, int64(1), sumOf(t, reader, "queue_errors_total"))
	assert.Equal(t, int64(3), sumOf(t, reader, "queue_messages_total"))
	assert.Equal(t, int64(1), sumOf(t, reader, "queue_put_rejected_total"))
}

func TestOTELMetrics_Sweeps(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	metrics, reader := newTestMetrics(t)

	metrics.RecordSweep(ctx, "a", 4, nil)
	metrics.RecordSweep(ctx, "a", 0, errors.New("connection refused"))

	assert.Equal(t, int64(4), sumOf(t, reader, "sweeper_released_total"))
	assert.Equal(t, int64(1), sumOf(t, reader, "sweeper_errors_total"))
}

func TestNewMetrics_Disabled(t *testing.T) {
	t.Parallel()

	metrics, err := NewMetrics(context.Background(), config.ServiceConfig{}, NewTestLogger())
	require.NoError(t, err)
	assert.IsType(t, &NoOpMetrics{}, metrics)
	assert.NoError(t, metrics.Shutdown(context.Background()))
}

func TestErrorType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{err: nil, want: ""},
		{err: queue.Unsupported("sysv", "peek", ""), want: "unsupported"},
		{err: queue.NewConfigError("id", "empty"), want: "invalid_config"},
		{err: fmt.Errorf("send: %w", queue.ErrQueueFull), want: "queue_full"},
		{err: context.DeadlineExceeded, want: "canceled"},
		{err: errors.New("boom"), want: "internal"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorType(tt.err))
	}
}
