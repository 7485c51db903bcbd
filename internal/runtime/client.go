package runtime

import (
	"context"
	"io"

	"github.com/architeacher/svc-msg-queue/internal/adapters/sweeper"
	"github.com/architeacher/svc-msg-queue/internal/config"
	"github.com/architeacher/svc-msg-queue/pkg/queue"
)

// Client gives one-shot commands access to the configured queue.
type Client struct {
	deps *Dependencies
}

// NewClient loads the configuration, applies overrides when given and builds the queue. Logs
// go to logOutput so that command results can own stdout.
func NewClient(ctx context.Context, logOutput io.Writer, overrides func(cfg *config.ServiceConfig)) (*Client, error) {
	var opts []DependencyOption
	if overrides != nil {
		opts = append(opts, WithConfigOverrides(overrides))
	}

	opts = append(opts, WithQueue(ctx))

	deps, err := buildDependencies(ctx, logOutput, opts...)
	if err != nil {
		return nil, err
	}

	return &Client{deps: deps}, nil
}

func (c *Client) Queue() queue.Queue {
	return c.deps.Queue
}

// Sweeper returns a sweeper over the client queue, for single passes.
func (c *Client) Sweeper() *sweeper.Sweeper {
	return sweeper.New(
		c.deps.cfg.Sweeper.Interval,
		c.deps.Infra.Metrics,
		c.deps.logger.Component("sweeper"),
		c.deps.Queue,
	)
}

// Sweep releases the expired reservations of the client queue once.
func (c *Client) Sweep(ctx context.Context) map[string][]string {
	return c.Sweeper().SweepOnce(ctx)
}

func (c *Client) Close(ctx context.Context) {
	c.deps.Close(ctx)
}
