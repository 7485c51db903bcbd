package adapters

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/architeacher/svc-msg-queue/internal/infrastructure"
	"github.com/architeacher/svc-msg-queue/pkg/queue"
)

const tracerName = "github.com/architeacher/svc-msg-queue/internal/adapters"

const (
	OperationPut             = "put"
	OperationPeek            = "peek"
	OperationPull            = "pull"
	OperationDelete          = "delete"
	OperationRelease         = "release"
	OperationReleaseTimedout = "release_timedout"
	OperationSubscribe       = "subscribe"
	OperationUnsubscribe     = "unsubscribe"
	OperationSubscriptions   = "subscriptions"
)

// InstrumentedQueue records a span and metrics for every queue operation.
type InstrumentedQueue struct {
	queue.Queue

	backend string
	metrics infrastructure.Metrics
	tracer  trace.Tracer
}

type InstrumentOption func(*InstrumentedQueue)

func WithTracer(tracer trace.Tracer) InstrumentOption {
	return func(q *InstrumentedQueue) {
		q.tracer = tracer
	}
}

func NewInstrumentedQueue(next queue.Queue, backend string, metrics infrastructure.Metrics, opts ...InstrumentOption) *InstrumentedQueue {
	q := &InstrumentedQueue{
		Queue:   next,
		backend: backend,
		metrics: metrics,
		tracer:  otel.Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(q)
	}

	if q.metrics == nil {
		q.metrics = &infrastructure.NoOpMetrics{}
	}

	return q
}

func (q *InstrumentedQueue) Put(ctx context.Context, body any, opts ...queue.PutOption) (bool, error) {
	ctx, done := q.start(ctx, OperationPut)

	ok, err := q.Queue.Put(ctx, body, opts...)
	done(err)

	switch {
	case err != nil:
	case ok:
		q.metrics.RecordMessages(ctx, q.backend, OperationPut, 1)
	default:
		q.metrics.RecordPutRejected(ctx, q.backend, "rejected")
	}

	return ok, err
}

func (q *InstrumentedQueue) Peek(ctx context.Context, opts ...queue.ReadOption) ([]*queue.Message, error) {
	return q.read(ctx, OperationPeek, q.Queue.Peek, opts)
}

func (q *InstrumentedQueue) Pull(ctx context.Context, opts ...queue.ReadOption) ([]*queue.Message, error) {
	return q.read(ctx, OperationPull, q.Queue.Pull, opts)
}

func (q *InstrumentedQueue) Delete(ctx context.Context, ids ...string) ([]string, error) {
	return q.update(ctx, OperationDelete, func(ctx context.Context) ([]string, error) {
		return q.Queue.Delete(ctx, ids...)
	})
}

func (q *InstrumentedQueue) Release(ctx context.Context, ids ...string) ([]string, error) {
	return q.update(ctx, OperationRelease, func(ctx context.Context) ([]string, error) {
		return q.Queue.Release(ctx, ids...)
	})
}

func (q *InstrumentedQueue) ReleaseTimedout(ctx context.Context) ([]string, error) {
	return q.update(ctx, OperationReleaseTimedout, q.Queue.ReleaseTimedout)
}

func (q *InstrumentedQueue) Subscribe(ctx context.Context, subscriberID, label string, categories, exceptions []string) error {
	ctx, done := q.start(ctx, OperationSubscribe, attribute.String("queue.subscriber_id", subscriberID))

	err := q.Queue.Subscribe(ctx, subscriberID, label, categories, exceptions)
	done(err)

	return err
}

func (q *InstrumentedQueue) Unsubscribe(ctx context.Context, subscriberID string, categories []string) error {
	ctx, done := q.start(ctx, OperationUnsubscribe, attribute.String("queue.subscriber_id", subscriberID))

	err := q.Queue.Unsubscribe(ctx, subscriberID, categories)
	done(err)

	return err
}

func (q *InstrumentedQueue) Subscriptions(ctx context.Context, subscriberID string) ([]queue.Subscription, error) {
	ctx, done := q.start(ctx, OperationSubscriptions)

	subs, err := q.Queue.Subscriptions(ctx, subscriberID)
	done(err)

	return subs, err
}

func (q *InstrumentedQueue) read(
	ctx context.Context,
	operation string,
	fn func(context.Context, ...queue.ReadOption) ([]*queue.Message, error),
	opts []queue.ReadOption,
) ([]*queue.Message, error) {
	resolved := queue.ResolveReadOptions(opts...)

	ctx, done := q.start(ctx, operation,
		attribute.Int("queue.limit", resolved.Limit),
		attribute.String("queue.status", string(resolved.Status)),
		attribute.Bool("queue.blocking", resolved.Blocking),
	)

	msgs, err := fn(ctx, opts...)
	done(err, attribute.Int("queue.messages", len(msgs)))

	q.metrics.RecordMessages(ctx, q.backend, operation, len(msgs))

	return msgs, err
}

func (q *InstrumentedQueue) update(ctx context.Context, operation string, fn func(context.Context) ([]string, error)) ([]string, error) {
	ctx, done := q.start(ctx, operation)

	ids, err := fn(ctx)
	done(err, attribute.Int("queue.messages", len(ids)))

	q.metrics.RecordMessages(ctx, q.backend, operation, len(ids))

	return ids, err
}

func (q *InstrumentedQueue) start(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(error, ...attribute.KeyValue)) {
	startTime := time.Now()

	attrs = append(attrs,
		attribute.String("queue.backend", q.backend),
		attribute.String("queue.id", q.ID()),
	)

	ctx, span := q.tracer.Start(ctx, "queue."+operation, trace.WithAttributes(attrs...))

	return ctx, func(err error, extra ...attribute.KeyValue) {
		span.SetAttributes(extra...)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		span.End()

		q.metrics.RecordQueueOperation(ctx, q.backend, operation, time.Since(startTime), err)
	}
}
