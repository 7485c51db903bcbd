package sysvqueue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/architeacher/svc-msg-queue/pkg/queue"
)

const (
	backendName = "sysv"

	// messageType tags every message sent to the kernel queue.
	messageType int64 = 1
)

var errInterrupted = errors.New("interrupted system call")

// Ensure Queue implements the queue.Queue interface
var _ queue.Queue = (*Queue)(nil)

type (
	// msgQueue is the kernel message queue. It is an interface mainly to be able to fake the
	// kernel in tests.
	msgQueue interface {
		send(mtype int64, data []byte, wait bool) error
		receive(maxSize int, mtype int64, wait bool) ([]byte, error)
		remove() error
	}

	keyFunc    func(path string, id byte) (int, error)
	openerFunc func(key int, perms os.FileMode) (msgQueue, error)
)

// Queue is a queue.Queue backed by one System V IPC message queue.
//
// Receiving a message removes it from the kernel, so the queue never holds reserved messages:
// peeking, reservations and everything built on them are unsupported.
type Queue struct {
	*queue.Base

	cfg  Config
	key  keyFunc
	open openerFunc

	mutex sync.Mutex
	mq    msgQueue
}

// New creates a queue. The kernel queue is opened lazily on first use.
func New(cfg Config, opts ...queue.Option) (*Queue, error) {
	return newQueue(cfg, ftok, openKernelQueue, opts...)
}

func newQueue(cfg Config, key keyFunc, open openerFunc, opts ...queue.Option) (*Queue, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &Queue{
		Base: queue.NewBase(cfg.ID, cfg.Label, opts...),
		cfg:  cfg,
		key:  key,
		open: open,
	}, nil
}

func (q *Queue) Capabilities() queue.Capabilities {
	return queue.Capabilities{}
}

// Key returns the kernel key of the queue. Queues with the same key path and id share a key.
func (q *Queue) Key() (int, error) {
	return q.key(q.cfg.KeyPath, q.cfg.ID[0])
}

func (q *Queue) handle() (msgQueue, error) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if q.mq != nil {
		return q.mq, nil
	}

	key, err := q.Key()
	if err != nil {
		return nil, fmt.Errorf("failed to derive queue key: %w", err)
	}

	mq, err := q.open(key, q.cfg.Permissions)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue %q: %w", q.ID(), err)
	}

	q.mq = mq

	return mq, nil
}

// Ping opens the kernel queue if needed.
func (q *Queue) Ping(_ context.Context) error {
	_, err := q.handle()

	return err
}

// Put sends a message without blocking. A full kernel queue and an envelope larger than
// MaxMessageSize are reported as false, not as an error.
func (q *Queue) Put(ctx context.Context, body any, _ ...queue.PutOption) (bool, error) {
	msg := q.CreateMessage(ctx, body)

	if !q.BeforePut(ctx, msg) {
		q.Logger().Info().Str("queue_id", q.ID()).Str("message_id", msg.ID).Msg("not putting message, vetoed by listener")

		return false, nil
	}

	data, err := msg.Encode()
	if err != nil {
		return false, err
	}

	// A receive never accepts more than MaxMessageSize, so a bigger envelope would jam the queue.
	if len(data) > q.cfg.MaxMessageSize {
		q.PutFailed(ctx, msg, fmt.Errorf("%w: %d bytes, at most %d accepted", queue.ErrMessageTooLarge, len(data), q.cfg.MaxMessageSize))

		return false, nil
	}

	mq, err := q.handle()
	if err != nil {
		return false, err
	}

	if err := mq.send(messageType, data, false); err != nil {
		q.PutFailed(ctx, msg, err)

		if errors.Is(err, queue.ErrQueueFull) {
			q.Logger().Error().Str("queue_id", q.ID()).Msg("queue is full")
		}

		return false, nil
	}

	q.AfterPut(ctx, msg)

	q.Logger().Info().Str("queue_id", q.ID()).Str("message_id", msg.ID).Msg("message put")

	return true, nil
}

// Peek is unsupported: receiving from a System V queue removes the message.
func (q *Queue) Peek(_ context.Context, _ ...queue.ReadOption) ([]*queue.Message, error) {
	return nil, queue.Unsupported(backendName, "peek", "receiving removes the message, use Pull instead")
}

// Pull receives up to the requested number of messages. Reservations are unsupported.
//
// A blocking pull waits until the limit is reached. With a cancellable context it polls the
// kernel so that cancellation is honored; otherwise it blocks in the kernel. Messages received
// before an error are returned together with it since they are already gone from the kernel.
func (q *Queue) Pull(ctx context.Context, opts ...queue.ReadOption) ([]*queue.Message, error) {
	o := queue.ResolveReadOptions(opts...)

	if o.Reservation != nil {
		return nil, queue.Unsupported(backendName, "pull with reservation", "received messages cannot be released")
	}
	if o.SubscriberID != "" {
		return nil, queue.Unsupported(backendName, "pull for subscriber", "subscriptions are not available")
	}

	mq, err := q.handle()
	if err != nil {
		return nil, err
	}

	var msgs []*queue.Message
	for !o.Reached(len(msgs)) {
		data, err := q.receive(ctx, mq, o.Blocking)
		if errors.Is(err, queue.ErrEmpty) {
			break
		}
		if err != nil {
			if len(msgs) > 0 {
				return msgs, err
			}

			return nil, err
		}

		msg, err := queue.Decode(data)
		if err != nil {
			q.Logger().Error().Err(err).Str("queue_id", q.ID()).Msg("discarding undecodable message")

			continue
		}

		msg.State = queue.Available{}
		msgs = append(msgs, msg)
	}

	return msgs, nil
}

func (q *Queue) receive(ctx context.Context, mq msgQueue, blocking bool) ([]byte, error) {
	if !blocking {
		return mq.receive(q.cfg.MaxMessageSize, messageType, false)
	}

	if ctx.Done() == nil {
		for {
			data, err := mq.receive(q.cfg.MaxMessageSize, messageType, true)
			if errors.Is(err, errInterrupted) {
				continue
			}

			return data, err
		}
	}

	for attempt := 0; ; attempt++ {
		data, err := mq.receive(q.cfg.MaxMessageSize, messageType, false)
		if !errors.Is(err, queue.ErrEmpty) {
			return data, err
		}

		timer := time.NewTimer(q.Backoff().Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()

			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (q *Queue) Delete(_ context.Context, _ ...string) ([]string, error) {
	return nil, queue.Unsupported(backendName, "delete", "messages are removed when pulled")
}

func (q *Queue) Release(_ context.Context, _ ...string) ([]string, error) {
	return nil, queue.Unsupported(backendName, "release", "messages are never reserved")
}

func (q *Queue) ReleaseTimedout(_ context.Context) ([]string, error) {
	return nil, queue.Unsupported(backendName, "release timed out", "messages are never reserved")
}

func (q *Queue) Subscribe(_ context.Context, _, _ string, _, _ []string) error {
	return queue.Unsupported(backendName, "subscribe", "")
}

func (q *Queue) Unsubscribe(_ context.Context, _ string, _ []string) error {
	return queue.Unsupported(backendName, "unsubscribe", "")
}

func (q *Queue) Subscriptions(_ context.Context, _ string) ([]queue.Subscription, error) {
	return nil, queue.Unsupported(backendName, "subscriptions", "")
}

// Remove deletes the kernel queue together with any message still in it.
func (q *Queue) Remove() error {
	mq, err := q.handle()
	if err != nil {
		return err
	}

	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.mq = nil

	return mq.remove()
}
