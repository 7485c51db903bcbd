package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Queue is the operation contract every backend implements.
//
// Operations a backend cannot honor return an *UnsupportedOperationError; they never degrade to
// a silent no-op. Capabilities tells callers up front which optional operations are available.
type Queue interface {
	ID() string
	Label() string
	Capabilities() Capabilities

	OnBeforePut(listener BeforePutListener)
	OnAfterPut(listener AfterPutListener)

	// Put enqueues one payload. It reports false without an error when a listener vetoed the
	// put or when the backend refused the message; both cases are logged.
	Put(ctx context.Context, body any, opts ...PutOption) (bool, error)
	// Peek returns messages without removing them, oldest first.
	Peek(ctx context.Context, opts ...ReadOption) ([]*Message, error)
	// Pull removes messages from the queue, or reserves them when WithReservation is given.
	Pull(ctx context.Context, opts ...ReadOption) ([]*Message, error)
	// Delete removes reserved messages and returns the ids actually deleted.
	Delete(ctx context.Context, ids ...string) ([]string, error)
	// Release makes reserved messages available again and returns the ids actually released.
	Release(ctx context.Context, ids ...string) ([]string, error)
	// ReleaseTimedout releases every reservation past its timeout.
	ReleaseTimedout(ctx context.Context) ([]string, error)

	Subscribe(ctx context.Context, subscriberID, label string, categories, exceptions []string) error
	// Unsubscribe removes the given categories from a subscription, or the whole subscription
	// when categories is nil.
	Unsubscribe(ctx context.Context, subscriberID string, categories []string) error
	// Subscriptions lists the subscriptions of subscriberID, or all of them when it is empty.
	Subscriptions(ctx context.Context, subscriberID string) ([]Subscription, error)
}

// Capabilities lists the optional operations a backend supports.
type Capabilities struct {
	Peek          bool `json:"peek"`
	Reservation   bool `json:"reservation"`
	Subscriptions bool `json:"subscriptions"`
}

// Base implements the backend-agnostic part of a Queue: identity, put listeners and message
// creation. Backends embed it.
type Base struct {
	id    string
	label string

	logger    Logger
	principal PrincipalFunc
	formatter Formatter
	backoff   BackoffStrategy
	clock     func() time.Time
	newID     func() string

	mutex     sync.RWMutex
	beforePut []BeforePutListener
	afterPut  []AfterPutListener
}

// NewBase creates the shared part of a queue.
func NewBase(id, label string, opts ...Option) *Base {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	b := &Base{
		id:        id,
		label:     label,
		logger:    o.logger,
		principal: o.principal,
		formatter: o.formatter,
		backoff:   o.backoff,
		clock:     o.clock,
		newID:     o.newID,
	}

	if b.logger == nil {
		b.logger = NopLogger{}
	}
	if b.backoff == nil {
		b.backoff = DefaultBackoff()
	}
	if b.clock == nil {
		b.clock = time.Now
	}
	if b.newID == nil {
		b.newID = func() string { return uuid.NewString() }
	}

	return b
}

func (b *Base) ID() string {
	return b.id
}

func (b *Base) Label() string {
	return b.label
}

// Logger returns the logger configured for the queue.
func (b *Base) Logger() Logger {
	return b.logger
}

// Backoff returns the polling strategy of blocking reads.
func (b *Base) Backoff() BackoffStrategy {
	return b.backoff
}

// Now returns the current UTC time of the queue clock.
func (b *Base) Now() time.Time {
	return b.clock().UTC()
}

// NewID returns a fresh message id.
func (b *Base) NewID() string {
	return b.newID()
}

// OnBeforePut registers a listener invoked before every put, in registration order.
func (b *Base) OnBeforePut(listener BeforePutListener) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.beforePut = append(b.beforePut, listener)
}

// OnAfterPut registers a listener invoked after every successful put, in registration order.
func (b *Base) OnAfterPut(listener AfterPutListener) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.afterPut = append(b.afterPut, listener)
}

// BeforePut dispatches a BeforePutEvent and reports whether the put may proceed. Every listener
// is called; any veto vetoes the put.
func (b *Base) BeforePut(ctx context.Context, msg *Message) bool {
	b.mutex.RLock()
	listeners := append([]BeforePutListener(nil), b.beforePut...)
	b.mutex.RUnlock()

	event := &BeforePutEvent{
		Message: msg,
		IsValid: true,
	}

	valid := true
	for _, listener := range listeners {
		if !listener(ctx, event) {
			valid = false
		}
	}

	return valid && event.IsValid
}

// AfterPut dispatches an AfterPutEvent. Backends call it only after a successful enqueue.
func (b *Base) AfterPut(ctx context.Context, msg *Message) {
	b.mutex.RLock()
	listeners := append([]AfterPutListener(nil), b.afterPut...)
	b.mutex.RUnlock()

	for _, listener := range listeners {
		listener(ctx, AfterPutEvent{Message: msg})
	}
}

// CreateMessage wraps a payload into an available message stamped with a new id, the UTC
// creation time and, when a principal lookup is configured, the sender id.
func (b *Base) CreateMessage(ctx context.Context, body any) *Message {
	msg := &Message{
		ID:        b.NewID(),
		CreatedOn: b.Now(),
		Body:      body,
		State:     Available{},
	}

	if b.principal != nil {
		if senderID, ok := b.principal(ctx); ok {
			msg.SenderID = senderID
		}
	}

	return b.FormatMessage(msg)
}

// CopyFor returns the per-subscriber copy of msg: a new id pointing back at the original.
func (b *Base) CopyFor(msg *Message, subscriberID string) *Message {
	return &Message{
		ID:           b.NewID(),
		CreatedOn:    msg.CreatedOn,
		SenderID:     msg.SenderID,
		MessageID:    msg.ID,
		SubscriberID: subscriberID,
		Body:         msg.Body,
		State:        Available{},
	}
}

// FormatMessage applies the configured formatter, the identity by default.
func (b *Base) FormatMessage(msg *Message) *Message {
	if b.formatter == nil {
		return msg
	}

	return b.formatter(msg)
}

// Poll calls fetch until it returns messages, fails, or, when blocking is false, once.
// Between empty polls it waits according to the queue backoff strategy.
func (b *Base) Poll(ctx context.Context, blocking bool, fetch func(ctx context.Context) ([]*Message, error)) ([]*Message, error) {
	return Poll(ctx, b.backoff, blocking, fetch)
}

// Poll is the strategy-driven loop behind Base.Poll.
func Poll(
	ctx context.Context,
	strategy BackoffStrategy,
	blocking bool,
	fetch func(ctx context.Context) ([]*Message, error),
) ([]*Message, error) {
	for attempt := 0; ; attempt++ {
		msgs, err := fetch(ctx)
		if err != nil || len(msgs) > 0 || !blocking {
			return msgs, err
		}

		timer := time.NewTimer(strategy.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()

			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
