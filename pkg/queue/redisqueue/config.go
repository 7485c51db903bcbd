package redisqueue

import (
	"strings"

	"github.com/architeacher/svc-msg-queue/pkg/queue"
)

const DefaultKeyPrefix = "queue:"

// Config names the queue and the key space it lives in.
type Config struct {
	ID        string
	Label     string
	KeyPrefix string
}

func (c Config) withDefaults() Config {
	if c.KeyPrefix == "" {
		c.KeyPrefix = DefaultKeyPrefix
	}

	return c
}

func (c Config) validate() error {
	if c.ID == "" {
		return queue.NewConfigError("id", "must not be empty")
	}
	if strings.Contains(c.ID, ":") {
		return queue.NewConfigError("id", "must not contain ':'")
	}

	return nil
}

// keys builds the key names of one queue:
//
//	{prefix}{id}:msg:{message id}            hash of one message
//	{prefix}{id}:available                   zset of available ids scored by creation time
//	{prefix}{id}:sub:{subscriber}:available  same, for the copies of one subscriber
//	{prefix}{id}:reserved                    zset of reserved ids scored by timeout
//	{prefix}{id}:subscriptions               hash of subscriber id to subscription
type keys struct {
	base string
}

func newKeys(cfg Config) keys {
	return keys{base: cfg.KeyPrefix + cfg.ID + ":"}
}

func (k keys) messagePrefix() string {
	return k.base + "msg:"
}

func (k keys) message(id string) string {
	return k.messagePrefix() + id
}

func (k keys) available(subscriberID string) string {
	if subscriberID == "" {
		return k.base + "available"
	}

	return k.base + "sub:" + subscriberID + ":available"
}

func (k keys) reserved() string {
	return k.base + "reserved"
}

func (k keys) subscriptions() string {
	return k.base + "subscriptions"
}
