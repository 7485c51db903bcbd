package pgqueue

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS queue_messages (
    id            TEXT PRIMARY KEY,
    queue_id      TEXT        NOT NULL,
    created_on    TIMESTAMPTZ NOT NULL,
    sender_id     TEXT        NOT NULL DEFAULT '',
    message_id    TEXT        NOT NULL DEFAULT '',
    subscriber_id TEXT        NOT NULL DEFAULT '',
    body          JSONB,
    status        TEXT        NOT NULL DEFAULT 'available',
    reserved_on   TIMESTAMPTZ,
    times_out_on  TIMESTAMPTZ,
    deleted_on    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS queue_messages_read_idx
    ON queue_messages (queue_id, subscriber_id, status, created_on);

CREATE INDEX IF NOT EXISTS queue_messages_timeout_idx
    ON queue_messages (queue_id, times_out_on)
    WHERE status = 'reserved';

CREATE TABLE IF NOT EXISTS queue_subscriptions (
    queue_id      TEXT        NOT NULL,
    subscriber_id TEXT        NOT NULL,
    label         TEXT        NOT NULL DEFAULT '',
    categories    TEXT[]      NOT NULL DEFAULT '{}',
    exceptions    TEXT[]      NOT NULL DEFAULT '{}',
    created_on    TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (queue_id, subscriber_id)
);
`

// EnsureSchema creates the queue tables when they do not exist.
func (q *Queue) EnsureSchema(ctx context.Context) error {
	ctx, cancel := q.withTimeout(ctx)
	defer cancel()

	if _, err := q.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create queue schema: %w", err)
	}

	return nil
}
