package pgqueue

import (
	"time"

	"github.com/architeacher/svc-msg-queue/pkg/queue"
)

// Config names the queue. Several queues share the same tables, keyed by ID.
type Config struct {
	ID    string
	Label string
	// QueryTimeout bounds every statement; zero means only the caller context applies.
	QueryTimeout time.Duration
}

func (c Config) validate() error {
	if c.ID == "" {
		return queue.NewConfigError("id", "must not be empty")
	}

	return nil
}
