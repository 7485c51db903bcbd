package amqpqueue

import (
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/architeacher/svc-msg-queue/pkg/queue"
)

const (
	defaultPublishingTimeout = 3 * time.Second
	defaultQueuePrefix       = "queue."
)

// Config is used to establish a connection with a RabbitMQ server and name the queue.
type Config struct {
	Scheme   string
	Username string
	Password string
	Host     string
	Port     int
	Vhost    string

	ID          string
	Label       string
	QueuePrefix string

	PublishingTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Scheme == "" {
		c.Scheme = "amqp"
	}
	if c.QueuePrefix == "" {
		c.QueuePrefix = defaultQueuePrefix
	}
	if c.PublishingTimeout <= 0 {
		c.PublishingTimeout = defaultPublishingTimeout
	}

	return c
}

func (c Config) validate() error {
	if c.ID == "" {
		return queue.NewConfigError("id", "must not be empty")
	}
	if c.Host == "" {
		return queue.NewConfigError("host", "must not be empty")
	}

	return nil
}

func (c Config) queueName() string {
	return c.QueuePrefix + c.ID
}

func getURL(cfg Config) string {
	uri := amqp.URI{
		Scheme:   cfg.Scheme,
		Username: cfg.Username,
		Password: cfg.Password,
		Host:     cfg.Host,
		Port:     cfg.Port,
		Vhost:    cfg.Vhost,
	}

	return uri.String()
}
