package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/architeacher/svc-msg-queue/internal/infrastructure"
	"github.com/architeacher/svc-msg-queue/internal/ports"
	"github.com/architeacher/svc-msg-queue/pkg/queue"
)

const DefaultInterval = 30 * time.Second

var _ ports.BackgroundProcessor = (*Sweeper)(nil)

// Sweeper periodically gives timed out reservations back to their queues.
type Sweeper struct {
	queues   []queue.Queue
	interval time.Duration
	metrics  infrastructure.Metrics
	logger   infrastructure.Logger
}

func New(
	interval time.Duration,
	metrics infrastructure.Metrics,
	logger infrastructure.Logger,
	queues ...queue.Queue,
) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}

	if metrics == nil {
		metrics = &infrastructure.NoOpMetrics{}
	}

	return &Sweeper{
		queues:   queues,
		interval: interval,
		metrics:  metrics,
		logger:   logger,
	}
}

func (s *Sweeper) Start(ctx context.Context) error {
	s.logger.Info().
		Dur("interval", s.interval).
		Int("queues", len(s.queues)).
		Msg("starting reservation sweeper")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("reservation sweeper shutting down")

			return ctx.Err()

		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce releases the timed out reservations of every queue supporting reservation and
// returns the released ids per queue id.
func (s *Sweeper) SweepOnce(ctx context.Context) map[string][]string {
	var (
		wg       sync.WaitGroup
		mutex    sync.Mutex
		released = make(map[string][]string, len(s.queues))
	)

	for _, q := range s.queues {
		if !q.Capabilities().Reservation {
			s.logger.Debug().
				Str("queue_id", q.ID()).
				Msg("queue does not support reservation, skipping")

			continue
		}

		wg.Go(func() {
			ids, err := q.ReleaseTimedout(ctx)
			s.metrics.RecordSweep(ctx, q.ID(), len(ids), err)

			if err != nil {
				s.logger.Error().
					Err(err).
					Str("queue_id", q.ID()).
					Msg("failed to release timed out messages")

				return
			}

			if len(ids) > 0 {
				s.logger.Info().
					Str("queue_id", q.ID()).
					Int("count", len(ids)).
					Msg("released timed out messages")
			}

			mutex.Lock()
			released[q.ID()] = ids
			mutex.Unlock()
		})
	}

	wg.Wait()

	return released
}
