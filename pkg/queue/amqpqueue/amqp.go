package amqpqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/architeacher/svc-msg-queue/pkg/queue"
)

const backendName = "amqp"

// Ensure Queue implements the queue.Queue interface
var _ queue.Queue = (*Queue)(nil)

type dialFunc func(url string) (connection, error)

// Queue is a queue.Queue backed by one durable RabbitMQ queue.
//
// Messages are fetched with basic.get and acknowledged on receipt, so like the System V backend
// a pull is destructive and reservations are unsupported.
type Queue struct {
	*queue.Base

	cfg  Config
	dial dialFunc

	mutex   sync.Mutex
	conn    connection
	channel *ChannelWrapper
}

// New creates a queue. The connection is established lazily on first use.
func New(cfg Config, opts ...queue.Option) (*Queue, error) {
	return newQueue(cfg, dial, opts...)
}

func newQueue(cfg Config, dial dialFunc, opts ...queue.Option) (*Queue, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &Queue{
		Base: queue.NewBase(cfg.ID, cfg.Label, opts...),
		cfg:  cfg,
		dial: dial,
	}, nil
}

func (q *Queue) Capabilities() queue.Capabilities {
	return queue.Capabilities{}
}

// Connect establishes a connection to RabbitMQ and declares the queue. It is a no-op when
// already connected.
func (q *Queue) Connect() error {
	_, err := q.handle()

	return err
}

// Ping connects to the broker if needed.
func (q *Queue) Ping(_ context.Context) error {
	return q.Connect()
}

// IsConnected returns true if connected to RabbitMQ.
func (q *Queue) IsConnected() bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return q.conn != nil && !q.conn.IsClosed()
}

func (q *Queue) handle() (*ChannelWrapper, error) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if q.conn != nil && !q.conn.IsClosed() && q.channel != nil && !q.channel.isClosed() {
		return q.channel, nil
	}

	q.resetLocked()

	conn, err := q.dial(getURL(q.cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	amqpCh, err := conn.channel()
	if err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	ch := newChannelWrapper(amqpCh)
	if _, err := ch.queueDeclare(q.cfg.queueName()); err != nil {
		_ = ch.Close()
		_ = conn.Close()

		return nil, fmt.Errorf("failed to declare queue %q: %w", q.cfg.queueName(), err)
	}

	q.conn = conn
	q.channel = ch

	q.Logger().Info().Str("queue", q.cfg.queueName()).Msg("successfully connected to RabbitMQ")

	return ch, nil
}

func (q *Queue) resetLocked() {
	if q.channel != nil {
		_ = q.channel.Close()
		q.channel = nil
	}

	if q.conn != nil {
		if !q.conn.IsClosed() {
			_ = q.conn.Close()
		}
		q.conn = nil
	}
}

// Close closes the channel and the connection to RabbitMQ.
func (q *Queue) Close() error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if q.channel != nil {
		_ = q.channel.Close()
		q.channel = nil
	}

	if q.conn != nil && !q.conn.IsClosed() {
		err := q.conn.Close()
		q.conn = nil

		return err
	}

	q.conn = nil

	return nil
}

// Put publishes a persistent message to the queue through the default exchange.
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

	ch, err := q.handle()
	if err != nil {
		q.PutFailed(ctx, msg, err)

		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, q.cfg.PublishingTimeout)
	defer cancel()

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Timestamp:    msg.CreatedOn,
		Body:         data,
	}

	if err := ch.publish(ctx, "", q.cfg.queueName(), publishing); err != nil {
		q.PutFailed(ctx, msg, err)

		if errors.Is(err, amqp.ErrClosed) {
			q.mutex.Lock()
			q.resetLocked()
			q.mutex.Unlock()
		}

		return false, nil
	}

	q.AfterPut(ctx, msg)

	q.Logger().Info().Str("queue_id", q.ID()).Str("message_id", msg.ID).Msg("message put")

	return true, nil
}

func (q *Queue) Peek(_ context.Context, _ ...queue.ReadOption) ([]*queue.Message, error) {
	return nil, queue.Unsupported(backendName, "peek", "messages are acknowledged on receipt, use Pull instead")
}

// Pull fetches up to the requested number of messages. A blocking pull polls the broker until at
// least one message is available or the context ends.
func (q *Queue) Pull(ctx context.Context, opts ...queue.ReadOption) ([]*queue.Message, error) {
	o := queue.ResolveReadOptions(opts...)

	if o.Reservation != nil {
		return nil, queue.Unsupported(backendName, "pull with reservation", "messages are acknowledged on receipt")
	}
	if o.SubscriberID != "" {
		return nil, queue.Unsupported(backendName, "pull for subscriber", "subscriptions are not available")
	}

	return q.Poll(ctx, o.Blocking, func(context.Context) ([]*queue.Message, error) {
		return q.fetch(o)
	})
}

func (q *Queue) fetch(o queue.ReadOptions) ([]*queue.Message, error) {
	ch, err := q.handle()
	if err != nil {
		return nil, err
	}

	var msgs []*queue.Message
	for !o.Reached(len(msgs)) {
		delivery, ok, err := ch.get(q.cfg.queueName())
		if err != nil {
			if len(msgs) > 0 {
				return msgs, err
			}

			return nil, fmt.Errorf("failed to get message: %w", err)
		}
		if !ok {
			break
		}

		msg, err := queue.Decode(delivery.Body)
		if err != nil {
			q.Logger().Error().Err(err).Str("queue_id", q.ID()).Msg("discarding undecodable message")

			continue
		}

		msg.State = queue.Available{}
		msgs = append(msgs, msg)
	}

	return msgs, nil
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

// Remove deletes the broker queue together with any message still in it.
func (q *Queue) Remove() error {
	ch, err := q.handle()
	if err != nil {
		return err
	}

	if _, err := ch.queueDelete(q.cfg.queueName()); err != nil {
		return fmt.Errorf("failed to delete queue %q: %w", q.cfg.queueName(), err)
	}

	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.resetLocked()

	return nil
}
