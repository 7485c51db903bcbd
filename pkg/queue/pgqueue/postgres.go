package pgqueue

import (
	"context"
	"fmt"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/architeacher/svc-msg-queue/pkg/queue"
)

// Ensure Queue implements the queue.Queue interface
var _ queue.Queue = (*Queue)(nil)

// Queue is a queue.Queue stored in PostgreSQL. Deleted messages stay in the table with their
// deletion time, so they can still be peeked.
type Queue struct {
	*queue.Base

	db  *sqlx.DB
	cfg Config
}

// New creates a queue on top of db. The connection pool is owned by the caller; call
// EnsureSchema once before use when the tables may be missing.
func New(db *sqlx.DB, cfg Config, opts ...queue.Option) (*Queue, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if db == nil {
		return nil, queue.NewConfigError("db", "must not be nil")
	}

	return &Queue{
		Base: queue.NewBase(cfg.ID, cfg.Label, opts...),
		db:   db,
		cfg:  cfg,
	}, nil
}

func (q *Queue) Capabilities() queue.Capabilities {
	return queue.Capabilities{
		Peek:          true,
		Reservation:   true,
		Subscriptions: true,
	}
}

func (q *Queue) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if q.cfg.QueryTimeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, q.cfg.QueryTimeout)
}

// Put inserts the message and, when a category is given, one copy per matching subscription,
// in one transaction.
func (q *Queue) Put(ctx context.Context, body any, opts ...queue.PutOption) (bool, error) {
	o := queue.ResolvePutOptions(opts...)
	msg := q.CreateMessage(ctx, body)

	if !q.BeforePut(ctx, msg) {
		q.Logger().Info().Str("queue_id", q.ID()).Str("message_id", msg.ID).Msg("not putting message, vetoed by listener")

		return false, nil
	}

	row, err := toRow(msg)
	if err != nil {
		return false, err
	}

	copies, err := q.insert(ctx, msg, row, o.Category)
	if err != nil {
		q.PutFailed(ctx, msg, err)

		return false, nil
	}

	q.AfterPut(ctx, msg)

	q.Logger().Info().
		Str("queue_id", q.ID()).
		Str("message_id", msg.ID).
		Int("copies", copies).
		Msg("message put")

	return true, nil
}

func (q *Queue) insert(ctx context.Context, msg *queue.Message, row messageRow, category string) (int, error) {
	ctx, cancel := q.withTimeout(ctx)
	defer cancel()

	tx, err := q.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows := []messageRow{row}
	if category != "" {
		subs, err := q.subscriptions(ctx, tx, "", false)
		if err != nil {
			return 0, err
		}

		for _, sub := range queue.Matching(subs, category) {
			cp := row
			cp.ID = q.NewID()
			cp.MessageID = msg.ID
			cp.SubscriberID = sub.SubscriberID
			rows = append(rows, cp)
		}
	}

	query, args, err := insertMessages(q.ID(), rows).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("failed to insert messages: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return len(rows) - 1, nil
}

func (q *Queue) Peek(ctx context.Context, opts ...queue.ReadOption) ([]*queue.Message, error) {
	o := queue.ResolveReadOptions(opts...)
	if o.Reached(0) {
		return nil, nil
	}

	return q.Poll(ctx, o.Blocking, func(ctx context.Context) ([]*queue.Message, error) {
		query, args, err := selectMessages(q.ID(), o).ToSql()
		if err != nil {
			return nil, fmt.Errorf("failed to build select query: %w", err)
		}

		return q.query(ctx, "peek messages", query, args)
	})
}

// Pull marks messages deleted or, with a reservation, reserved, and returns them oldest first.
func (q *Queue) Pull(ctx context.Context, opts ...queue.ReadOption) ([]*queue.Message, error) {
	o := queue.ResolveReadOptions(opts...)
	if o.Reached(0) {
		return nil, nil
	}

	return q.Poll(ctx, o.Blocking, func(ctx context.Context) ([]*queue.Message, error) {
		update, err := claimMessages(q.ID(), o, q.Now())
		if err != nil {
			return nil, err
		}

		query, args, err := update.ToSql()
		if err != nil {
			return nil, fmt.Errorf("failed to build update query: %w", err)
		}

		msgs, err := q.query(ctx, "pull messages", query, args)
		if err != nil {
			return nil, err
		}

		// RETURNING does not keep the order of the candidates.
		sort.SliceStable(msgs, func(i, j int) bool {
			if msgs[i].CreatedOn.Equal(msgs[j].CreatedOn) {
				return msgs[i].ID < msgs[j].ID
			}

			return msgs[i].CreatedOn.Before(msgs[j].CreatedOn)
		})

		return msgs, nil
	})
}

func (q *Queue) query(ctx context.Context, what, query string, args []any) ([]*queue.Message, error) {
	ctx, cancel := q.withTimeout(ctx)
	defer cancel()

	var rows []messageRow
	if err := q.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to %s: %w", what, err)
	}

	msgs := make([]*queue.Message, 0, len(rows))
	for _, row := range rows {
		msg, err := row.message()
		if err != nil {
			q.Logger().Error().Err(err).Str("queue_id", q.ID()).Msg("discarding undecodable message")

			continue
		}

		msgs = append(msgs, msg)
	}

	return msgs, nil
}

// Delete marks reserved messages deleted.
func (q *Queue) Delete(ctx context.Context, ids ...string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	return q.updateIDs(ctx, "delete messages", deleteReserved(q.ID(), ids, q.Now()))
}

// Release makes reserved messages available again.
func (q *Queue) Release(ctx context.Context, ids ...string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	return q.updateIDs(ctx, "release messages", releaseReserved(q.ID(), withIDs(ids)))
}

func (q *Queue) ReleaseTimedout(ctx context.Context) ([]string, error) {
	return q.updateIDs(ctx, "release timed out messages", releaseReserved(q.ID(), timedOut(q.Now())))
}

func (q *Queue) updateIDs(ctx context.Context, what string, update sq.UpdateBuilder) ([]string, error) {
	query, args, err := update.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build update query: %w", err)
	}

	ctx, cancel := q.withTimeout(ctx)
	defer cancel()

	var ids []string
	if err := q.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("failed to %s: %w", what, err)
	}

	sort.Strings(ids)

	return ids, nil
}

// Subscribe creates the subscription or extends an existing one.
func (q *Queue) Subscribe(ctx context.Context, subscriberID, label string, categories, exceptions []string) error {
	if subscriberID == "" {
		return queue.ErrMissingSubscriber
	}

	return q.updateSubscription(ctx, subscriberID, func(current *queue.Subscription) *queue.Subscription {
		if current == nil {
			current = &queue.Subscription{
				SubscriberID: subscriberID,
				CreatedOn:    q.Now(),
			}
		}

		current.Extend(label, categories, exceptions)

		return current
	})
}

func (q *Queue) Unsubscribe(ctx context.Context, subscriberID string, categories []string) error {
	if subscriberID == "" {
		return queue.ErrMissingSubscriber
	}

	return q.updateSubscription(ctx, subscriberID, func(current *queue.Subscription) *queue.Subscription {
		if current == nil || categories == nil || !current.Without(categories) {
			return nil
		}

		return current
	})
}

func (q *Queue) Subscriptions(ctx context.Context, subscriberID string) ([]queue.Subscription, error) {
	ctx, cancel := q.withTimeout(ctx)
	defer cancel()

	return q.subscriptions(ctx, q.db, subscriberID, false)
}

func (q *Queue) subscriptions(ctx context.Context, db sqlx.QueryerContext, subscriberID string, forUpdate bool) ([]queue.Subscription, error) {
	query, args, err := selectSubscriptions(q.ID(), subscriberID, forUpdate).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	var rows []subscriptionRow
	if err := sqlx.SelectContext(ctx, db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}

	subs := make([]queue.Subscription, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, row.subscription())
	}

	return subs, nil
}

// updateSubscription applies update to the locked subscription row. A nil result removes it.
func (q *Queue) updateSubscription(
	ctx context.Context,
	subscriberID string,
	update func(current *queue.Subscription) *queue.Subscription,
) error {
	ctx, cancel := q.withTimeout(ctx)
	defer cancel()

	tx, err := q.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	subs, err := q.subscriptions(ctx, tx, subscriberID, true)
	if err != nil {
		return err
	}

	var current *queue.Subscription
	if len(subs) > 0 {
		current = &subs[0]
	}

	var stmt sq.Sqlizer
	switch next := update(current); {
	case next != nil:
		stmt = upsertSubscription(q.ID(), *next)
	case current != nil:
		stmt = deleteSubscription(q.ID(), subscriberID)
	default:
		return nil
	}

	query, args, err := stmt.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build subscription query: %w", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update subscription %q: %w", subscriberID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Purge removes the messages of the queue deleted before the given time.
func (q *Queue) Purge(ctx context.Context, before time.Time) (int64, error) {
	query, args, err := psql.Delete(messagesTable).
		Where(sq.Eq{"queue_id": q.ID(), "status": string(queue.StatusDeleted)}).
		Where(sq.Lt{"deleted_on": before}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build delete query: %w", err)
	}

	ctx, cancel := q.withTimeout(ctx)
	defer cancel()

	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to purge messages: %w", err)
	}

	return res.RowsAffected()
}
