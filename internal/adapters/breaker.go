package adapters

import (
	"context"
	"errors"
	"fmt"

	"github.com/sony/gobreaker"

	"github.com/architeacher/svc-msg-queue/internal/config"
	"github.com/architeacher/svc-msg-queue/internal/infrastructure"
	"github.com/architeacher/svc-msg-queue/pkg/queue"
)

// ErrBackendUnavailable is returned while the circuit breaker of a queue rejects calls.
var ErrBackendUnavailable = errors.New("queue backend temporarily unavailable")

// BreakerQueue stops calling a network backend after repeated failures.
type BreakerQueue struct {
	queue.Queue

	circuitBreaker *gobreaker.CircuitBreaker
	logger         infrastructure.Logger
}

func NewBreakerQueue(next queue.Queue, cfg config.CircuitBreakerConfig, logger infrastructure.Logger) *BreakerQueue {
	settings := gobreaker.Settings{
		Name:        "queue-" + next.ID(),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: isBackendHealthy,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info().
				Str("name", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	}

	return &BreakerQueue{
		Queue:          next,
		circuitBreaker: gobreaker.NewCircuitBreaker(settings),
		logger:         logger,
	}
}

// State returns the current breaker state.
func (q *BreakerQueue) State() gobreaker.State {
	return q.circuitBreaker.State()
}

// Put counts a put the backend refused as a failure while still reporting false without an
// error to the caller. Vetoed puts leave no outcome and count as successful calls.
func (q *BreakerQueue) Put(ctx context.Context, body any, opts ...queue.PutOption) (bool, error) {
	ok, err := execute(q, OperationPut, func() (bool, error) {
		ctx, outcome := queue.WithPutOutcome(ctx)

		ok, err := q.Queue.Put(ctx, body, opts...)
		if err == nil && !ok && outcome.Err() != nil {
			return false, &refusedPutError{cause: outcome.Err()}
		}

		return ok, err
	})

	var refused *refusedPutError
	if errors.As(err, &refused) {
		return false, nil
	}

	return ok, err
}

func (q *BreakerQueue) Peek(ctx context.Context, opts ...queue.ReadOption) ([]*queue.Message, error) {
	return execute(q, OperationPeek, func() ([]*queue.Message, error) {
		return q.Queue.Peek(ctx, opts...)
	})
}

func (q *BreakerQueue) Pull(ctx context.Context, opts ...queue.ReadOption) ([]*queue.Message, error) {
	return execute(q, OperationPull, func() ([]*queue.Message, error) {
		return q.Queue.Pull(ctx, opts...)
	})
}

func (q *BreakerQueue) Delete(ctx context.Context, ids ...string) ([]string, error) {
	return execute(q, OperationDelete, func() ([]string, error) {
		return q.Queue.Delete(ctx, ids...)
	})
}

func (q *BreakerQueue) Release(ctx context.Context, ids ...string) ([]string, error) {
	return execute(q, OperationRelease, func() ([]string, error) {
		return q.Queue.Release(ctx, ids...)
	})
}

func (q *BreakerQueue) ReleaseTimedout(ctx context.Context) ([]string, error) {
	return execute(q, OperationReleaseTimedout, func() ([]string, error) {
		return q.Queue.ReleaseTimedout(ctx)
	})
}

func (q *BreakerQueue) Subscribe(ctx context.Context, subscriberID, label string, categories, exceptions []string) error {
	_, err := execute(q, OperationSubscribe, func() (struct{}, error) {
		return struct{}{}, q.Queue.Subscribe(ctx, subscriberID, label, categories, exceptions)
	})

	return err
}

func (q *BreakerQueue) Unsubscribe(ctx context.Context, subscriberID string, categories []string) error {
	_, err := execute(q, OperationUnsubscribe, func() (struct{}, error) {
		return struct{}{}, q.Queue.Unsubscribe(ctx, subscriberID, categories)
	})

	return err
}

func (q *BreakerQueue) Subscriptions(ctx context.Context, subscriberID string) ([]queue.Subscription, error) {
	return execute(q, OperationSubscriptions, func() ([]queue.Subscription, error) {
		return q.Queue.Subscriptions(ctx, subscriberID)
	})
}

// execute runs fn through the breaker. Results returned along with an error are kept.
func execute[T any](q *BreakerQueue, operation string, fn func() (T, error)) (T, error) {
	result, err := q.circuitBreaker.Execute(func() (any, error) {
		return fn()
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		q.logger.Warn().
			Str("queue_id", q.ID()).
			Str("operation", operation).
			Msg("circuit breaker is open")

		var zero T

		return zero, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}

	value, _ := result.(T)

	return value, err
}

// refusedPutError carries a backend put refusal through the breaker.
type refusedPutError struct {
	cause error
}

func (e *refusedPutError) Error() string {
	return "put refused: " + e.cause.Error()
}

func (e *refusedPutError) Unwrap() error {
	return e.cause
}

// isBackendHealthy treats caller mistakes and unsupported operations as successful calls.
func isBackendHealthy(err error) bool {
	return err == nil ||
		errors.Is(err, queue.ErrUnsupported) ||
		errors.Is(err, queue.ErrMissingSubscriber) ||
		errors.Is(err, queue.ErrMessageTooLarge) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
