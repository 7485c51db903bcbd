package pgqueue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/architeacher/svc-msg-queue/pkg/queue"
)

const (
	messagesTable      = "queue_messages"
	subscriptionsTable = "queue_subscriptions"
)

var (
	psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	messageColumns = []string{
		"id", "created_on", "sender_id", "message_id", "subscriber_id",
		"body", "status", "reserved_on", "times_out_on", "deleted_on",
	}

	subscriptionColumns = []string{"subscriber_id", "label", "categories", "exceptions", "created_on"}
)

type (
	messageRow struct {
		ID           string     `db:"id"`
		CreatedOn    time.Time  `db:"created_on"`
		SenderID     string     `db:"sender_id"`
		MessageID    string     `db:"message_id"`
		SubscriberID string     `db:"subscriber_id"`
		Body         []byte     `db:"body"`
		Status       string     `db:"status"`
		ReservedOn   *time.Time `db:"reserved_on"`
		TimesOutOn   *time.Time `db:"times_out_on"`
		DeletedOn    *time.Time `db:"deleted_on"`
	}

	subscriptionRow struct {
		SubscriberID string         `db:"subscriber_id"`
		Label        string         `db:"label"`
		Categories   pq.StringArray `db:"categories"`
		Exceptions   pq.StringArray `db:"exceptions"`
		CreatedOn    time.Time      `db:"created_on"`
	}
)

func toRow(msg *queue.Message) (messageRow, error) {
	body, err := json.Marshal(msg.Body)
	if err != nil {
		return messageRow{}, fmt.Errorf("could not marshal message body: %w", err)
	}

	return messageRow{
		ID:           msg.ID,
		CreatedOn:    msg.CreatedOn,
		SenderID:     msg.SenderID,
		MessageID:    msg.MessageID,
		SubscriberID: msg.SubscriberID,
		Body:         body,
		Status:       string(msg.Status()),
	}, nil
}

func (r messageRow) message() (*queue.Message, error) {
	var body any
	if len(r.Body) > 0 {
		if err := json.Unmarshal(r.Body, &body); err != nil {
			return nil, fmt.Errorf("could not unmarshal body of message %s: %w", r.ID, err)
		}
	}

	msg := &queue.Message{
		ID:           r.ID,
		CreatedOn:    r.CreatedOn.UTC(),
		SenderID:     r.SenderID,
		MessageID:    r.MessageID,
		SubscriberID: r.SubscriberID,
		Body:         body,
		State:        queue.Available{},
	}

	switch queue.Status(r.Status) {
	case queue.StatusReserved:
		msg.State = queue.Reserved{
			ReservedOn: utc(r.ReservedOn),
			TimesOutOn: utc(r.TimesOutOn),
		}
	case queue.StatusDeleted:
		msg.State = queue.Deleted{DeletedOn: utc(r.DeletedOn)}
	}

	return msg, nil
}

func (r subscriptionRow) subscription() queue.Subscription {
	return queue.Subscription{
		SubscriberID: r.SubscriberID,
		CreatedOn:    r.CreatedOn.UTC(),
		Label:        r.Label,
		Categories:   []string(r.Categories),
		Exceptions:   []string(r.Exceptions),
	}
}

func utc(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}

	return t.UTC()
}

func insertMessages(queueID string, rows []messageRow) sq.InsertBuilder {
	insert := psql.Insert(messagesTable).
		Columns("id", "queue_id", "created_on", "sender_id", "message_id", "subscriber_id", "body", "status")

	for _, r := range rows {
		insert = insert.Values(r.ID, queueID, r.CreatedOn, r.SenderID, r.MessageID, r.SubscriberID, r.Body, r.Status)
	}

	return insert
}

func selectMessages(queueID string, o queue.ReadOptions) sq.SelectBuilder {
	query := psql.Select(messageColumns...).
		From(messagesTable).
		Where(sq.Eq{
			"queue_id":      queueID,
			"subscriber_id": o.SubscriberID,
			"status":        string(o.Status),
		}).
		OrderBy("created_on", "id")

	if o.Limit >= 0 {
		query = query.Limit(uint64(o.Limit))
	}

	return query
}

// claimMessages marks the oldest available messages deleted or, with a reservation, reserved.
// Rows locked by a concurrent claim are skipped.
func claimMessages(queueID string, o queue.ReadOptions, now time.Time) (sq.UpdateBuilder, error) {
	candidates := sq.Select("id").
		From(messagesTable).
		Where(sq.Eq{
			"queue_id":      queueID,
			"subscriber_id": o.SubscriberID,
			"status":        string(queue.StatusAvailable),
		}).
		OrderBy("created_on", "id").
		Suffix("FOR UPDATE SKIP LOCKED")

	if o.Limit >= 0 {
		candidates = candidates.Limit(uint64(o.Limit))
	}

	candidatesSQL, candidatesArgs, err := candidates.ToSql()
	if err != nil {
		return sq.UpdateBuilder{}, fmt.Errorf("failed to build candidates query: %w", err)
	}

	update := psql.Update(messagesTable)
	if o.Reservation != nil {
		update = update.
			Set("status", string(queue.StatusReserved)).
			Set("reserved_on", now).
			Set("times_out_on", now.Add(*o.Reservation))
	} else {
		update = update.
			Set("status", string(queue.StatusDeleted)).
			Set("deleted_on", now)
	}

	return update.
		Where(sq.Expr("id IN ("+candidatesSQL+")", candidatesArgs...)).
		Suffix("RETURNING " + strings.Join(messageColumns, ", ")), nil
}

func deleteReserved(queueID string, ids []string, now time.Time) sq.UpdateBuilder {
	return psql.Update(messagesTable).
		Set("status", string(queue.StatusDeleted)).
		Set("deleted_on", now).
		Set("reserved_on", nil).
		Set("times_out_on", nil).
		Where(sq.Eq{"queue_id": queueID, "status": string(queue.StatusReserved)}).
		Where(withIDs(ids)).
		Suffix("RETURNING id")
}

func releaseReserved(queueID string, criteria sq.Sqlizer) sq.UpdateBuilder {
	return psql.Update(messagesTable).
		Set("status", string(queue.StatusAvailable)).
		Set("reserved_on", nil).
		Set("times_out_on", nil).
		Where(sq.Eq{"queue_id": queueID, "status": string(queue.StatusReserved)}).
		Where(criteria).
		Suffix("RETURNING id")
}

func withIDs(ids []string) sq.Sqlizer {
	return sq.Expr("id = ANY(?)", pq.Array(ids))
}

func timedOut(now time.Time) sq.Sqlizer {
	return sq.LtOrEq{"times_out_on": now}
}

func selectSubscriptions(queueID, subscriberID string, forUpdate bool) sq.SelectBuilder {
	where := sq.Eq{"queue_id": queueID}
	if subscriberID != "" {
		where["subscriber_id"] = subscriberID
	}

	query := psql.Select(subscriptionColumns...).
		From(subscriptionsTable).
		Where(where).
		OrderBy("subscriber_id")

	if forUpdate {
		query = query.Suffix("FOR UPDATE")
	}

	return query
}

func upsertSubscription(queueID string, s queue.Subscription) sq.InsertBuilder {
	return psql.Insert(subscriptionsTable).
		Columns("queue_id", "subscriber_id", "label", "categories", "exceptions", "created_on").
		Values(queueID, s.SubscriberID, s.Label, pq.StringArray(orEmpty(s.Categories)), pq.StringArray(orEmpty(s.Exceptions)), s.CreatedOn).
		Suffix("ON CONFLICT (queue_id, subscriber_id) DO UPDATE SET " +
			"label = EXCLUDED.label, categories = EXCLUDED.categories, exceptions = EXCLUDED.exceptions")
}

func deleteSubscription(queueID, subscriberID string) sq.DeleteBuilder {
	return psql.Delete(subscriptionsTable).
		Where(sq.Eq{"queue_id": queueID, "subscriber_id": subscriberID})
}

// orEmpty keeps NOT NULL array columns from receiving NULL for a nil slice.
func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}

	return values
}
