package adapters

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/architeacher/svc-msg-queue/internal/domain"
	"github.com/architeacher/svc-msg-queue/internal/ports"
)

const defaultCheckTimeout = 2 * time.Second

var _ ports.HealthChecker = (*HealthChecker)(nil)

// HealthChecker pings the queue backend and the auxiliary dependencies.
type HealthChecker struct {
	startTime    time.Time
	timeout      time.Duration
	queue        ports.Pinger
	dependencies map[string]ports.Pinger
}

// NewHealthChecker creates a new health checker. The queue pinger is critical, the
// dependencies only degrade the reported health.
func NewHealthChecker(queue ports.Pinger, dependencies map[string]ports.Pinger) *HealthChecker {
	return &HealthChecker{
		startTime:    time.Now(),
		timeout:      defaultCheckTimeout,
		queue:        queue,
		dependencies: dependencies,
	}
}

// CheckReadiness reports ready as long as the queue backend answers.
func (h *HealthChecker) CheckReadiness(ctx context.Context) *domain.ReadinessResult {
	queueStatus := h.check(ctx, h.queue)

	overallStatus := domain.ReadinessResponseStatusReady
	if queueStatus.Status == domain.DependencyCheckStatusUnhealthy {
		overallStatus = domain.ReadinessResponseStatusNotReady
	}

	return &domain.ReadinessResult{
		OverallStatus: overallStatus,
		Queue:         queueStatus,
	}
}

// CheckHealth performs a comprehensive health check and returns detailed results.
func (h *HealthChecker) CheckHealth(ctx context.Context) *domain.HealthResult {
	result := &domain.HealthResult{
		Queue:        h.check(ctx, h.queue),
		Dependencies: make(map[string]domain.DependencyStatus, len(h.dependencies)),
		Uptime:       float32(time.Since(h.startTime).Seconds()),
	}

	for _, name := range slices.Sorted(maps.Keys(h.dependencies)) {
		result.Dependencies[name] = h.check(ctx, h.dependencies[name])
	}

	result.OverallStatus = overallHealthStatus(result)

	return result
}

// overallHealthStatus fails on the queue backend and degrades on anything else.
func overallHealthStatus(result *domain.HealthResult) domain.HealthResponseStatus {
	if result.Queue.Status == domain.DependencyCheckStatusUnhealthy {
		return domain.HealthResponseStatusUnhealthy
	}

	for _, status := range result.Dependencies {
		if status.Status == domain.DependencyCheckStatusUnhealthy {
			return domain.HealthResponseStatusDegraded
		}
	}

	return domain.HealthResponseStatusHealthy
}

func (h *HealthChecker) check(ctx context.Context, pinger ports.Pinger) domain.DependencyStatus {
	start := time.Now()

	if pinger == nil {
		return domain.DependencyStatus{
			Status:      domain.DependencyCheckStatusHealthy,
			LastChecked: start,
		}
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	err := pinger.Ping(ctx)

	status := domain.DependencyStatus{
		Status:       domain.DependencyCheckStatusHealthy,
		ResponseTime: float32(time.Since(start).Milliseconds()),
		LastChecked:  time.Now(),
	}

	if err != nil {
		status.Status = domain.DependencyCheckStatusUnhealthy
		status.Error = err.Error()
	}

	return status
}
