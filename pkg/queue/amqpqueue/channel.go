package amqpqueue

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	amqp "github.com/rabbitmq/amqp091-go"
)

// amqpChannel is used mainly to be able to generate mocks for the AMQP behavior.
type amqpChannel interface {
	io.Closer

	Get(queue string, autoAck bool) (amqp.Delivery, bool, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueDelete(name string, ifUnused, ifEmpty, noWait bool) (int, error)
}

// connection is used mainly to be able to fake the broker connection in tests.
type connection interface {
	io.Closer

	IsClosed() bool
	channel() (amqpChannel, error)
}

type amqpConnection struct {
	*amqp.Connection
}

func (c amqpConnection) channel() (amqpChannel, error) {
	ch, err := c.Channel()
	if err != nil {
		return nil, err
	}

	return ch, nil
}

func dial(url string) (connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	return amqpConnection{Connection: conn}, nil
}

// ChannelWrapper is a wrapper around amqp091-go.Channel serializing its use and remembering the
// queues already declared on it.
type ChannelWrapper struct {
	amqpChan amqpChannel

	mutex  *sync.Mutex
	closed atomic.Bool

	declared map[string]amqp.Queue
}

func newChannelWrapper(ch amqpChannel) *ChannelWrapper {
	return &ChannelWrapper{
		amqpChan: ch,
		mutex:    &sync.Mutex{},
		declared: make(map[string]amqp.Queue),
	}
}

// Close is a wrapper around amqp091-go.Channel.Close method, which closes a channel.
func (ch *ChannelWrapper) Close() error {
	defer ch.mutex.Unlock()
	ch.mutex.Lock()

	if ch.isClosed() {
		return amqp.ErrClosed
	}

	ch.closed.Store(true)

	return ch.amqpChan.Close()
}

// queueDeclare declares a durable queue once per channel.
func (ch *ChannelWrapper) queueDeclare(name string) (amqp.Queue, error) {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()

	if q, ok := ch.declared[name]; ok {
		return q, nil
	}

	q, err := ch.amqpChan.QueueDeclare(name, true, false, false, false, nil)
	if err != nil {
		return amqp.Queue{}, err
	}

	ch.declared[name] = q

	return q, nil
}

func (ch *ChannelWrapper) publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()

	return ch.amqpChan.PublishWithContext(ctx, exchange, key, false, false, msg)
}

func (ch *ChannelWrapper) get(name string) (amqp.Delivery, bool, error) {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()

	return ch.amqpChan.Get(name, true)
}

func (ch *ChannelWrapper) queueDelete(name string) (int, error) {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()

	delete(ch.declared, name)

	return ch.amqpChan.QueueDelete(name, false, false, false)
}

func (ch *ChannelWrapper) isClosed() bool {
	return ch.closed.Load()
}
