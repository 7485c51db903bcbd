package infrastructure

import (
	"context"
	"errors"
	"fmt"

	"github.com/architeacher/svc-msg-queue/internal/config"
	"github.com/architeacher/svc-msg-queue/internal/shared/backoff"
	"github.com/architeacher/svc-msg-queue/pkg/queue"
	"github.com/architeacher/svc-msg-queue/pkg/queue/amqpqueue"
	"github.com/architeacher/svc-msg-queue/pkg/queue/pgqueue"
	"github.com/architeacher/svc-msg-queue/pkg/queue/redisqueue"
	"github.com/architeacher/svc-msg-queue/pkg/queue/sysvqueue"
)

// ErrUnknownBackend is returned for a QUEUE_BACKEND value no backend answers to.
var ErrUnknownBackend = errors.New("unknown queue backend")

// QueueBackend is a configured queue together with the clients it owns.
type QueueBackend struct {
	Name  string
	Queue queue.Queue

	ping    func(ctx context.Context) error
	closers []func() error
}

// Ping checks the connection to the backend.
func (b *QueueBackend) Ping(ctx context.Context) error {
	if b.ping == nil {
		return nil
	}

	return b.ping(ctx)
}

// IsNetworked reports whether the backend talks to a remote server.
func (b *QueueBackend) IsNetworked() bool {
	return b.Name != config.BackendSysV
}

// Close releases the clients in reverse creation order.
func (b *QueueBackend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}

	return errors.Join(errs...)
}

// NewQueueBackend builds the backend selected by cfg.Queue.Backend. Connections are opened lazily
// except for Postgres, whose schema is created when auto migration is on.
func NewQueueBackend(ctx context.Context, cfg *config.ServiceConfig, logger Logger, extra ...queue.Option) (*QueueBackend, error) {
	opts := append([]queue.Option{
		queue.WithLogger(logger.Component("queue").QueueLogger()),
		queue.WithBackoff(backoff.NewExponentialStrategy(cfg.Backoff)),
		queue.WithPrincipal(queue.SenderPrincipal(cfg.Queue.SenderID)),
	}, extra...)

	backend := &QueueBackend{Name: cfg.Queue.Backend}

	var err error

	switch cfg.Queue.Backend {
	case config.BackendSysV:
		err = backend.initSysV(cfg, opts)
	case config.BackendRedis:
		err = backend.initRedis(cfg, logger, opts)
	case config.BackendPostgres:
		err = backend.initPostgres(ctx, cfg, opts)
	case config.BackendAMQP:
		err = backend.initAMQP(cfg, opts)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownBackend, cfg.Queue.Backend)
	}

	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to create %s queue: %w", cfg.Queue.Backend, err), backend.Close())
	}

	logger.Info().
		Str("backend", backend.Name).
		Str("queue_id", backend.Queue.ID()).
		Str("label", backend.Queue.Label()).
		Msg("queue backend created")

	return backend, nil
}

func (b *QueueBackend) initSysV(cfg *config.ServiceConfig, opts []queue.Option) error {
	q, err := sysvqueue.New(sysvqueue.Config{
		ID:             cfg.Queue.ID,
		Label:          cfg.Queue.Label,
		KeyPath:        cfg.SysV.KeyPath,
		Permissions:    cfg.SysV.Permissions.FileMode(),
		MaxMessageSize: cfg.SysV.MaxMessageSize,
	}, opts...)
	if err != nil {
		return err
	}

	b.Queue = q
	b.ping = q.Ping

	return nil
}

func (b *QueueBackend) initRedis(cfg *config.ServiceConfig, logger Logger, opts []queue.Option) error {
	client := NewRedisClient(cfg.Cache, logger)
	b.closers = append(b.closers, client.Close)

	q, err := redisqueue.New(client.Client, redisqueue.Config{
		ID:        cfg.Queue.ID,
		Label:     cfg.Queue.Label,
		KeyPrefix: cfg.Cache.KeyPrefix,
	}, opts...)
	if err != nil {
		return err
	}

	b.Queue = q
	b.ping = client.Ping

	return nil
}

func (b *QueueBackend) initPostgres(ctx context.Context, cfg *config.ServiceConfig, opts []queue.Option) error {
	storage, err := NewStorage(cfg.Storage)
	if err != nil {
		return err
	}

	b.closers = append(b.closers, storage.Close)

	db, err := storage.GetDB()
	if err != nil {
		return err
	}

	q, err := pgqueue.New(db, pgqueue.Config{
		ID:           cfg.Queue.ID,
		Label:        cfg.Queue.Label,
		QueryTimeout: cfg.Storage.QueryTimeout,
	}, opts...)
	if err != nil {
		return err
	}

	if cfg.Storage.AutoMigrate {
		if err := q.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	b.Queue = q
	b.ping = storage.Ping

	return nil
}

func (b *QueueBackend) initAMQP(cfg *config.ServiceConfig, opts []queue.Option) error {
	q, err := amqpqueue.New(amqpqueue.Config{
		Username:          cfg.AMQP.Username,
		Password:          cfg.AMQP.Password,
		Host:              cfg.AMQP.Host,
		Port:              cfg.AMQP.Port,
		Vhost:             cfg.AMQP.VirtualHost,
		ID:                cfg.Queue.ID,
		Label:             cfg.Queue.Label,
		QueuePrefix:       cfg.AMQP.QueuePrefix,
		PublishingTimeout: cfg.AMQP.PublishingTimeout,
	}, opts...)
	if err != nil {
		return err
	}

	b.Queue = q
	b.ping = q.Ping
	b.closers = append(b.closers, q.Close)

	return nil
}
