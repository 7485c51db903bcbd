// Package queue defines a backend-agnostic message queue: the Message entity and its lifecycle,
// category based subscriptions, and the Queue operation contract every backend implements.
//
// # Overview
//
// A producer calls Put with an opaque payload. The queue wraps it in a Message, asks every
// registered before-put listener whether it may be enqueued, hands it to the backend and finally
// notifies the after-put listeners. A consumer calls Pull (destructive) or Peek (non-destructive)
// and, on backends supporting reservation, acknowledges with Delete or gives the message back
// with Release.
//
// # Message lifecycle
//
// A Message is in exactly one State:
//
//   - Available: it can be peeked or pulled
//   - Reserved: a consumer claimed it until TimesOutOn
//   - Deleted: it is logically gone
//
// The serialized attribute set depends on the state, see Message.Attributes.
//
// # Backends
//
// Concrete backends live in sub-packages:
//
//   - sysvqueue: System V IPC message queue, local to one host
//   - redisqueue: Redis, with reservations and subscriptions
//   - pgqueue: PostgreSQL, with reservations and subscriptions
//   - amqpqueue: RabbitMQ, receive-destructive
//
// Capabilities reports which optional operations a backend supports. An operation a backend
// cannot honor returns an *UnsupportedOperationError instead of silently doing nothing.
//
// # Basic Usage
//
//	q, err := sysvqueue.New(sysvqueue.Config{ID: "a", Label: "jobs"},
//		queue.WithLogger(queue.NewLoggerAdapter(logger)),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	q.OnBeforePut(func(ctx context.Context, e *queue.BeforePutEvent) bool {
//		return e.Message.Body != nil
//	})
//
//	if ok, err := q.Put(ctx, map[string]any{"job": 42}); err != nil || !ok {
//		log.Printf("not enqueued: %v", err)
//	}
//
//	msgs, err := q.Pull(ctx, queue.WithLimit(10))
//
// # Subscriptions
//
// On backends supporting them, a put tagged with WithCategory is copied to every subscriber
// whose Subscription matches the category. Copies carry the original id in MessageID and are
// read with WithSubscriber.
//
// # Logging Integration
//
// The package defines a minimal logging interface. LoggerAdapter adapts a zerolog.Logger and
// NopLogger is used when none is given.
package queue
