package pgqueue

import (
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/architeacher/svc-msg-queue/pkg/queue"
)

const allMessageColumns = "id, created_on, sender_id, message_id, subscriber_id, body, status, reserved_on, times_out_on, deleted_on"

func TestSelectMessages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		opts     []queue.ReadOption
		wantSQL  string
		wantArgs []any
	}{
		{
			name: "available, unbounded",
			wantSQL: "SELECT " + allMessageColumns + " FROM queue_messages " +
				"WHERE queue_id = $1 AND status = $2 AND subscriber_id = $3 ORDER BY created_on, id",
			wantArgs: []any{"jobs", "available", ""},
		},
		{
			name: "reserved copies of a subscriber, limited",
			opts: []queue.ReadOption{
				queue.WithStatus(queue.StatusReserved),
				queue.WithSubscriber("web"),
				queue.WithLimit(5),
			},
			wantSQL: "SELECT " + allMessageColumns + " FROM queue_messages " +
				"WHERE queue_id = $1 AND status = $2 AND subscriber_id = $3 ORDER BY created_on, id LIMIT 5",
			wantArgs: []any{"jobs", "reserved", "web"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			query, args, err := selectMessages("jobs", queue.ResolveReadOptions(tt.opts...)).ToSql()
			require.NoError(t, err)

			assert.Equal(t, tt.wantSQL, query)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestClaimMessages(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("destructive pull marks rows deleted", func(t *testing.T) {
		t.Parallel()

		update, err := claimMessages("jobs", queue.ResolveReadOptions(queue.WithLimit(3)), now)
		require.NoError(t, err)

		query, args, err := update.ToSql()
		require.NoError(t, err)

		assert.Equal(t,
			"UPDATE queue_messages SET status = $1, deleted_on = $2 "+
				"WHERE id IN (SELECT id FROM queue_messages WHERE queue_id = $3 AND status = $4 AND subscriber_id = $5 "+
				"ORDER BY created_on, id LIMIT 3 FOR UPDATE SKIP LOCKED) "+
				"RETURNING "+allMessageColumns,
			query,
		)
		assert.Equal(t, []any{"deleted", now, "jobs", "available", ""}, args)
	})

	t.Run("reserving pull sets the timeout", func(t *testing.T) {
		t.Parallel()

		update, err := claimMessages("jobs", queue.ResolveReadOptions(
			queue.WithReservation(time.Minute),
			queue.WithSubscriber("web"),
		), now)
		require.NoError(t, err)

		query, args, err := update.ToSql()
		require.NoError(t, err)

		assert.Contains(t, query, "SET status = $1, reserved_on = $2, times_out_on = $3")
		assert.NotContains(t, query, "LIMIT")
		assert.Equal(t, []any{"reserved", now, now.Add(time.Minute), "jobs", "available", "web"}, args)
	})
}

func TestDeleteReserved(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	ids := []string{"a", "b"}

	query, args, err := deleteReserved("jobs", ids, now).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"UPDATE queue_messages SET status = $1, deleted_on = $2, reserved_on = $3, times_out_on = $4 "+
			"WHERE queue_id = $5 AND status = $6 AND id = ANY($7) RETURNING id",
		query,
	)
	require.Len(t, args, 7)
	assert.Equal(t, "deleted", args[0])
	assert.Nil(t, args[2])
	assert.Equal(t, pq.Array(ids), args[6])
}

func TestReleaseReserved(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	query, args, err := releaseReserved("jobs", timedOut(now)).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"UPDATE queue_messages SET status = $1, reserved_on = $2, times_out_on = $3 "+
			"WHERE queue_id = $4 AND status = $5 AND times_out_on <= $6 RETURNING id",
		query,
	)
	assert.Equal(t, []any{"available", nil, nil, "jobs", "reserved", now}, args)
}

func TestSelectSubscriptions(t *testing.T) {
	t.Parallel()

	query, args, err := selectSubscriptions("jobs", "", false).ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT subscriber_id, label, categories, exceptions, created_on FROM queue_subscriptions "+
			"WHERE queue_id = $1 ORDER BY subscriber_id",
		query,
	)
	assert.Equal(t, []any{"jobs"}, args)

	query, args, err = selectSubscriptions("jobs", "web", true).ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "WHERE queue_id = $1 AND subscriber_id = $2")
	assert.Contains(t, query, "FOR UPDATE")
	assert.Equal(t, []any{"jobs", "web"}, args)
}

func TestUpsertSubscription(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	query, args, err := upsertSubscription("jobs", queue.Subscription{
		SubscriberID: "web",
		Label:        "web logs",
		Exceptions:   []string{"system.web.health"},
		CreatedOn:    created,
	}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, query, "INSERT INTO queue_subscriptions")
	assert.Contains(t, query, "ON CONFLICT (queue_id, subscriber_id) DO UPDATE SET label = EXCLUDED.label")
	require.Len(t, args, 6)
	assert.Equal(t, pq.StringArray{}, args[3], "nil categories are stored as an empty array")
	assert.Equal(t, pq.StringArray{"system.web.health"}, args[4])
	assert.Equal(t, created, args[5])
}

func TestInsertMessages(t *testing.T) {
	t.Parallel()

	rows := []messageRow{
		{ID: "m1", Body: []byte(`"a"`), Status: "available"},
		{ID: "m2", MessageID: "m1", SubscriberID: "web", Body: []byte(`"a"`), Status: "available"},
	}

	query, args, err := insertMessages("jobs", rows).ToSql()
	require.NoError(t, err)

	assert.Contains(t, query, "INSERT INTO queue_messages")
	assert.Contains(t, query, "$16")
	require.Len(t, args, 16)
	assert.Equal(t, "m2", args[8])
	assert.Equal(t, "jobs", args[9])
	assert.Equal(t, "m1", args[12])
}

func TestMessageRow(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	reservedOn := created.Add(time.Minute)
	timesOutOn := created.Add(2 * time.Minute)

	t.Run("reserved row", func(t *testing.T) {
		t.Parallel()

		msg, err := messageRow{
			ID:         "m1",
			CreatedOn:  created,
			Body:       []byte(`{"job":42}`),
			Status:     "reserved",
			ReservedOn: &reservedOn,
			TimesOutOn: &timesOutOn,
		}.message()
		require.NoError(t, err)

		assert.Equal(t, time.UTC, msg.CreatedOn.Location())
		assert.Equal(t, map[string]any{"job": float64(42)}, msg.Body)
		assert.Equal(t, queue.Reserved{ReservedOn: reservedOn.UTC(), TimesOutOn: timesOutOn.UTC()}, msg.State)
	})

	t.Run("deleted row", func(t *testing.T) {
		t.Parallel()

		msg, err := messageRow{ID: "m1", Status: "deleted", DeletedOn: &reservedOn}.message()
		require.NoError(t, err)
		assert.Equal(t, queue.Deleted{DeletedOn: reservedOn.UTC()}, msg.State)
		assert.Nil(t, msg.Body)
	})

	t.Run("invalid body", func(t *testing.T) {
		t.Parallel()

		_, err := messageRow{ID: "m1", Body: []byte("{")}.message()
		assert.Error(t, err)
	})

	t.Run("round trip through a row", func(t *testing.T) {
		t.Parallel()

		row, err := toRow(&queue.Message{ID: "m1", MessageID: "m0", SubscriberID: "web", Body: []string{"x"}})
		require.NoError(t, err)
		assert.Equal(t, "available", row.Status)

		msg, err := row.message()
		require.NoError(t, err)
		assert.Equal(t, "m0", msg.MessageID)
		assert.Equal(t, "web", msg.SubscriberID)
		assert.Equal(t, []any{"x"}, msg.Body)
		assert.Equal(t, queue.StatusAvailable, msg.Status())
	})

	t.Run("unencodable body", func(t *testing.T) {
		t.Parallel()

		_, err := toRow(&queue.Message{ID: "m1", Body: make(chan int)})
		assert.Error(t, err)
	})
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{})
	assert.ErrorIs(t, err, queue.ErrInvalidConfig)

	_, err = New(nil, Config{ID: "jobs"})
	var cfgErr *queue.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "db", cfgErr.Field)
}
