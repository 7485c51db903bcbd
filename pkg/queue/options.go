package queue

import (
	"context"
	"time"

	"github.com/architeacher/svc-msg-queue/internal/config"
	"github.com/architeacher/svc-msg-queue/internal/shared/backoff"
)

// Unbounded is the limit value meaning "as many messages as available".
const Unbounded = -1

type (
	// PrincipalFunc returns the id of the user on whose behalf ctx puts a message, if any.
	PrincipalFunc func(ctx context.Context) (string, bool)

	// Formatter transforms a message before it is handed to the backend.
	Formatter func(msg *Message) *Message

	// BackoffStrategy returns the wait before the next poll given the number of empty polls.
	BackoffStrategy interface {
		Backoff(retries int) time.Duration
	}
)

type options struct {
	logger    Logger
	principal PrincipalFunc
	formatter Formatter
	backoff   BackoffStrategy
	clock     func() time.Time
	newID     func() string
}

// Option configures the backend-agnostic part of a queue.
type Option func(options *options)

// WithLogger returns an Option which sets the logger used by the queue.
func WithLogger(l Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

type senderKey struct{}

// ContextWithSender returns a context whose puts are stamped with senderID by SenderPrincipal.
func ContextWithSender(ctx context.Context, senderID string) context.Context {
	return context.WithValue(ctx, senderKey{}, senderID)
}

// SenderPrincipal looks the sender up in the put context and falls back to fallback.
// An empty result leaves SenderID unset.
func SenderPrincipal(fallback string) PrincipalFunc {
	return func(ctx context.Context) (string, bool) {
		if senderID, ok := ctx.Value(senderKey{}).(string); ok && senderID != "" {
			return senderID, true
		}

		return fallback, fallback != ""
	}
}

// WithPrincipal returns an Option which sets the lookup used to stamp SenderID.
func WithPrincipal(fn PrincipalFunc) Option {
	return func(o *options) {
		o.principal = fn
	}
}

// WithFormatter returns an Option which replaces the identity message formatter.
func WithFormatter(fn Formatter) Option {
	return func(o *options) {
		o.formatter = fn
	}
}

// WithBackoff returns an Option which sets the polling strategy of blocking reads.
func WithBackoff(strategy BackoffStrategy) Option {
	return func(o *options) {
		o.backoff = strategy
	}
}

// WithClock returns an Option which sets the time source.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithIDGenerator returns an Option which sets the message id generator.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		o.newID = fn
	}
}

// DefaultBackoff is the polling strategy used when none is configured.
func DefaultBackoff() BackoffStrategy {
	return backoff.NewExponentialStrategy(config.BackoffConfig{
		BaseDelay:  50 * time.Millisecond,
		Multiplier: 1.6,
		Jitter:     0.2,
		MaxDelay:   time.Second,
	})
}

// PutOptions are the resolved options of a Put call.
type PutOptions struct {
	Category string
}

// PutOption configures a Put call.
type PutOption func(options *PutOptions)

// WithCategory returns a PutOption which tags the message for subscription fan-out.
func WithCategory(category string) PutOption {
	return func(o *PutOptions) {
		o.Category = category
	}
}

// ResolvePutOptions applies opts over the defaults.
func ResolvePutOptions(opts ...PutOption) PutOptions {
	var o PutOptions
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// ReadOptions are the resolved options of a Peek or Pull call.
type ReadOptions struct {
	Limit        int
	Status       Status
	Blocking     bool
	SubscriberID string
	// Reservation is nil for a plain destructive pull.
	Reservation *time.Duration
}

// ReadOption configures a Peek or Pull call.
type ReadOption func(options *ReadOptions)

// WithLimit returns a ReadOption which caps the number of returned messages. Unbounded means no cap.
func WithLimit(limit int) ReadOption {
	return func(o *ReadOptions) {
		o.Limit = limit
	}
}

// WithStatus returns a ReadOption which selects the status peeked at.
func WithStatus(status Status) ReadOption {
	return func(o *ReadOptions) {
		o.Status = status
	}
}

// WithBlocking returns a ReadOption which makes the read wait for messages.
func WithBlocking(blocking bool) ReadOption {
	return func(o *ReadOptions) {
		o.Blocking = blocking
	}
}

// WithSubscriber returns a ReadOption which reads the copies delivered to a subscriber.
func WithSubscriber(subscriberID string) ReadOption {
	return func(o *ReadOptions) {
		o.SubscriberID = subscriberID
	}
}

// WithReservation returns a ReadOption which reserves pulled messages for timeout instead of
// removing them.
func WithReservation(timeout time.Duration) ReadOption {
	return func(o *ReadOptions) {
		o.Reservation = &timeout
	}
}

// ResolveReadOptions applies opts over the defaults: unbounded, available, non-blocking.
func ResolveReadOptions(opts ...ReadOption) ReadOptions {
	o := ReadOptions{
		Limit:  Unbounded,
		Status: StatusAvailable,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// Reached reports whether count messages satisfy the limit.
func (o ReadOptions) Reached(count int) bool {
	return o.Limit >= 0 && count >= o.Limit
}
