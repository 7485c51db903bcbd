package runtime

import (
	"context"
	"fmt"

	"github.com/architeacher/svc-msg-queue/internal/adapters"
	"github.com/architeacher/svc-msg-queue/internal/adapters/sweeper"
	"github.com/architeacher/svc-msg-queue/internal/config"
	"github.com/architeacher/svc-msg-queue/internal/infrastructure"
	"github.com/architeacher/svc-msg-queue/internal/ports"
	"github.com/architeacher/svc-msg-queue/pkg/queue"
)

type (
	DependencyOption func(*Dependencies) error
)

func defaultOptions(ctx context.Context) []DependencyOption {
	return []DependencyOption{
		WithSecretStorage(),
		WithSecretStorageRepo(),
		WithConfigLoader(ctx),
		WithMetrics(ctx),
		WithTracing(ctx),
	}
}

// WithSecretStorage initializes the Vault client using ENV config.
func WithSecretStorage() DependencyOption {
	return func(d *Dependencies) error {
		if !d.cfg.SecretStorage.Enabled {
			return nil
		}

		client, err := infrastructure.NewVaultClient(d.cfg.SecretStorage)
		if err != nil {
			return err
		}

		d.Infra.SecretStorageClient = client

		return nil
	}
}

func WithSecretStorageRepo() DependencyOption {
	return func(d *Dependencies) error {
		if d.Infra.SecretStorageClient == nil {
			return nil
		}

		d.Repos.SecretStorageRepo = infrastructure.NewVaultRepository(d.Infra.SecretStorageClient)

		return nil
	}
}

func WithConfigLoader(ctx context.Context) DependencyOption {
	return func(d *Dependencies) error {
		var secretsRepo ports.SecretsRepository
		if d.Repos.SecretStorageRepo != nil {
			secretsRepo = d.Repos.SecretStorageRepo
		}

		d.configLoader = config.NewLoader(d.cfg, secretsRepo, d.secretVersion)

		if !d.cfg.SecretStorage.Enabled {
			d.logger.Debug().Msg("secret storage is disabled, skipping vault configuration loading")

			return nil
		}

		version, err := d.configLoader.Load(ctx, secretsRepo, d.cfg)
		if err != nil {
			return fmt.Errorf("unable to load service configuration: %w", err)
		}

		d.secretVersion = version

		return nil
	}
}

// WithConfigOverrides applies fn to the loaded configuration and validates the result.
func WithConfigOverrides(fn func(cfg *config.ServiceConfig)) DependencyOption {
	return func(d *Dependencies) error {
		fn(d.cfg)

		return d.cfg.Validate()
	}
}

func WithMetrics(ctx context.Context) DependencyOption {
	return func(d *Dependencies) error {
		metrics, err := infrastructure.NewMetrics(ctx, *d.cfg, d.logger)
		if err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}

		d.Infra.Metrics = metrics

		return nil
	}
}

func WithTracing(ctx context.Context) DependencyOption {
	return func(d *Dependencies) error {
		if !d.cfg.Telemetry.Traces.Enabled {
			d.tracerShutdownFunc = func(_ context.Context) error {
				return nil
			}

			return nil
		}

		tracerShutdownFunc, err := infrastructure.InitGlobalTracer(ctx, d.cfg.Telemetry, d.cfg.AppConfig)
		if err != nil {
			d.logger.Error().Err(err).Msg("failed to initialize global tracer")

			return err
		}

		d.tracerShutdownFunc = tracerShutdownFunc

		return nil
	}
}

// WithQueue builds the configured backend. Network backends are guarded by the circuit breaker
// when it is enabled; every backend is instrumented.
func WithQueue(ctx context.Context) DependencyOption {
	return func(d *Dependencies) error {
		backend, err := infrastructure.NewQueueBackend(ctx, d.cfg, d.logger)
		if err != nil {
			return fmt.Errorf("failed to initialize queue: %w", err)
		}

		d.Infra.QueueBackend = backend
		d.Queue = decorateQueue(backend, d.cfg, d.logger, d.Infra.Metrics)

		return nil
	}
}

func decorateQueue(
	backend *infrastructure.QueueBackend,
	cfg *config.ServiceConfig,
	logger infrastructure.Logger,
	metrics infrastructure.Metrics,
) queue.Queue {
	q := backend.Queue

	if cfg.CircuitBreaker.Enabled && backend.IsNetworked() {
		q = adapters.NewBreakerQueue(q, cfg.CircuitBreaker, logger.Component("circuit-breaker"))
	}

	return adapters.NewInstrumentedQueue(q, backend.Name, metrics)
}

func WithSweeper() DependencyOption {
	return func(d *Dependencies) error {
		if !d.cfg.Sweeper.Enabled {
			d.logger.Info().Msg("reservation sweeper is disabled")

			return nil
		}

		d.Workers.Sweeper = sweeper.New(
			d.cfg.Sweeper.Interval,
			d.Infra.Metrics,
			d.logger.Component("sweeper"),
			d.Queue,
		)

		return nil
	}
}

func WithHTTPServer() DependencyOption {
	return func(d *Dependencies) error {
		dependencies := map[string]ports.Pinger{}
		if d.Repos.SecretStorageRepo != nil {
			dependencies["vault"] = d.Repos.SecretStorageRepo
		}

		healthChecker := adapters.NewHealthChecker(d.Infra.QueueBackend, dependencies)
		requestHandler := adapters.NewRequestHandler(d.Queue, healthChecker, d.logger.Component("http"))

		d.Infra.HTTPServer = initHTTPServer(d.cfg, d.logger, d.Infra.Metrics, requestHandler)

		return nil
	}
}
