package ports

import (
	"context"

	"github.com/architeacher/svc-msg-queue/internal/domain"
)

type (
	// Pinger checks that a dependency is reachable.
	Pinger interface {
		Ping(ctx context.Context) error
	}

	// PingFunc adapts a function to Pinger.
	PingFunc func(ctx context.Context) error

	HealthChecker interface {
		CheckHealth(ctx context.Context) *domain.HealthResult
		CheckReadiness(ctx context.Context) *domain.ReadinessResult
	}
)

func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}
