package adapters

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/architeacher/svc-msg-queue/internal/domain"
	"github.com/architeacher/svc-msg-queue/internal/ports"
)

func pingResult(err error) ports.Pinger {
	return ports.PingFunc(func(context.Context) error { return err })
}

func TestHealthChecker_CheckHealth(t *testing.T) {
	t.Parallel()

	down := errors.New("connection refused")

	tests := []struct {
		name         string
		queue        ports.Pinger
		dependencies map[string]ports.Pinger
		want         domain.HealthResponseStatus
	}{
		{
			name:  "everything answers",
			queue: pingResult(nil),
			dependencies: map[string]ports.Pinger{
				"vault": pingResult(nil),
			},
			want: domain.HealthResponseStatusHealthy,
		},
		{
			name:  "auxiliary dependency down degrades",
			queue: pingResult(nil),
			dependencies: map[string]ports.Pinger{
				"vault": pingResult(down),
			},
			want: domain.HealthResponseStatusDegraded,
		},
		{
			name:  "queue backend down is unhealthy",
			queue: pingResult(down),
			dependencies: map[string]ports.Pinger{
				"vault": pingResult(down),
			},
			want: domain.HealthResponseStatusUnhealthy,
		},
		{
			name: "no pinger counts as healthy",
			want: domain.HealthResponseStatusHealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := NewHealthChecker(tt.queue, tt.dependencies).CheckHealth(context.Background())

			assert.Equal(t, tt.want, result.OverallStatus)
			assert.Len(t, result.Dependencies, len(tt.dependencies))
			assert.GreaterOrEqual(t, result.Uptime, float32(0))
		})
	}
}

func TestHealthChecker_ReportsErrors(t *testing.T) {
	t.Parallel()

	checker := NewHealthChecker(pingResult(errors.New("queue is gone")), nil)

	result := checker.CheckHealth(context.Background())
	assert.Equal(t, domain.DependencyCheckStatusUnhealthy, result.Queue.Status)
	assert.Equal(t, "queue is gone", result.Queue.Error)
	assert.False(t, result.Queue.LastChecked.IsZero())

	readiness := checker.CheckReadiness(context.Background())
	assert.Equal(t, domain.ReadinessResponseStatusNotReady, readiness.OverallStatus)
}

func TestHealthChecker_PingHasDeadline(t *testing.T) {
	t.Parallel()

	var hasDeadline bool
	checker := NewHealthChecker(ports.PingFunc(func(ctx context.Context) error {
		_, hasDeadline = ctx.Deadline()

		return nil
	}), nil)

	readiness := checker.CheckReadiness(context.Background())

	require.Equal(t, domain.ReadinessResponseStatusReady, readiness.OverallStatus)
	assert.True(t, hasDeadline)
}
