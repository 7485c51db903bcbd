package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type constantBackoff time.Duration

func (c constantBackoff) Backoff(_ int) time.Duration {
	return time.Duration(c)
}

func TestBase_BeforePut(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		listeners []BeforePutListener
		want      bool
	}{
		{
			name: "no listeners",
			want: true,
		},
		{
			name: "all listeners agree",
			listeners: []BeforePutListener{
				func(context.Context, *BeforePutEvent) bool { return true },
				func(context.Context, *BeforePutEvent) bool { return true },
			},
			want: true,
		},
		{
			name: "one veto vetoes the put",
			listeners: []BeforePutListener{
				func(context.Context, *BeforePutEvent) bool { return true },
				func(context.Context, *BeforePutEvent) bool { return false },
				func(context.Context, *BeforePutEvent) bool { return true },
			},
			want: false,
		},
		{
			name: "clearing the valid flag vetoes the put",
			listeners: []BeforePutListener{
				func(_ context.Context, e *BeforePutEvent) bool {
					e.IsValid = false

					return true
				},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			base := NewBase("a", "test")
			for _, l := range tt.listeners {
				base.OnBeforePut(l)
			}

			assert.Equal(t, tt.want, base.BeforePut(context.Background(), &Message{}))
		})
	}
}

func TestBase_ListenersRunInRegistrationOrder(t *testing.T) {
	t.Parallel()

	base := NewBase("a", "test")
	msg := &Message{ID: "m"}

	var calls []string
	base.OnBeforePut(func(_ context.Context, e *BeforePutEvent) bool {
		calls = append(calls, "before-1:"+e.Message.ID)

		return false
	})
	base.OnBeforePut(func(_ context.Context, e *BeforePutEvent) bool {
		calls = append(calls, "before-2:"+e.Message.ID)

		return true
	})
	base.OnAfterPut(func(_ context.Context, e AfterPutEvent) {
		calls = append(calls, "after-1:"+e.Message.ID)
	})
	base.OnAfterPut(func(_ context.Context, e AfterPutEvent) {
		calls = append(calls, "after-2:"+e.Message.ID)
	})

	assert.False(t, base.BeforePut(context.Background(), msg))
	base.AfterPut(context.Background(), msg)

	assert.Equal(t, []string{"before-1:m", "before-2:m", "after-1:m", "after-2:m"}, calls)
}

func TestBase_CreateMessage(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))

	t.Run("stamps id, UTC time and sender", func(t *testing.T) {
		t.Parallel()

		base := NewBase("a", "test",
			WithClock(func() time.Time { return fixed }),
			WithIDGenerator(func() string { return "id-1" }),
			WithPrincipal(func(context.Context) (string, bool) { return "alice", true }),
		)

		msg := base.CreateMessage(context.Background(), "body")

		assert.Equal(t, "id-1", msg.ID)
		assert.Equal(t, fixed.UTC(), msg.CreatedOn)
		assert.Equal(t, time.UTC, msg.CreatedOn.Location())
		assert.Equal(t, "alice", msg.SenderID)
		assert.Equal(t, "body", msg.Body)
		assert.Equal(t, StatusAvailable, msg.Status())
	})

	t.Run("missing principal leaves sender empty", func(t *testing.T) {
		t.Parallel()

		base := NewBase("a", "test", WithPrincipal(func(context.Context) (string, bool) { return "", false }))
		msg := base.CreateMessage(context.Background(), "body")

		assert.Empty(t, msg.SenderID)
		assert.NotEmpty(t, msg.ID)
	})

	t.Run("sender from the put context", func(t *testing.T) {
		t.Parallel()

		base := NewBase("a", "test", WithPrincipal(SenderPrincipal("queuectl")))

		msg := base.CreateMessage(ContextWithSender(context.Background(), "billing"), "body")
		assert.Equal(t, "billing", msg.SenderID)

		msg = base.CreateMessage(context.Background(), "body")
		assert.Equal(t, "queuectl", msg.SenderID)

		msg = NewBase("a", "test", WithPrincipal(SenderPrincipal(""))).CreateMessage(context.Background(), "body")
		assert.Empty(t, msg.SenderID)
	})

	t.Run("formatter transforms the message", func(t *testing.T) {
		t.Parallel()

		base := NewBase("a", "test", WithFormatter(func(m *Message) *Message {
			m.Body = map[string]any{"wrapped": m.Body}

			return m
		}))

		msg := base.CreateMessage(context.Background(), "body")

		assert.Equal(t, map[string]any{"wrapped": "body"}, msg.Body)
	})
}

func TestBase_Identity(t *testing.T) {
	t.Parallel()

	base := NewBase("q", "label")

	assert.Equal(t, "q", base.ID())
	assert.Equal(t, "label", base.Label())
	assert.IsType(t, NopLogger{}, base.Logger())
	assert.NotNil(t, base.Backoff())
}

func TestResolveReadOptions(t *testing.T) {
	t.Parallel()

	defaults := ResolveReadOptions()
	assert.Equal(t, Unbounded, defaults.Limit)
	assert.Equal(t, StatusAvailable, defaults.Status)
	assert.False(t, defaults.Blocking)
	assert.Nil(t, defaults.Reservation)
	assert.False(t, defaults.Reached(1000))

	opts := ResolveReadOptions(
		WithLimit(2),
		WithStatus(StatusReserved),
		WithBlocking(true),
		WithSubscriber("sub"),
		WithReservation(5*time.Second),
	)
	assert.Equal(t, 2, opts.Limit)
	assert.Equal(t, StatusReserved, opts.Status)
	assert.True(t, opts.Blocking)
	assert.Equal(t, "sub", opts.SubscriberID)
	require.NotNil(t, opts.Reservation)
	assert.Equal(t, 5*time.Second, *opts.Reservation)
	assert.False(t, opts.Reached(1))
	assert.True(t, opts.Reached(2))

	assert.Equal(t, "cat", ResolvePutOptions(WithCategory("cat")).Category)
}

func TestPoll(t *testing.T) {
	t.Parallel()

	t.Run("non blocking polls once", func(t *testing.T) {
		t.Parallel()

		calls := 0
		msgs, err := Poll(context.Background(), constantBackoff(time.Millisecond), false, func(context.Context) ([]*Message, error) {
			calls++

			return nil, nil
		})

		require.NoError(t, err)
		assert.Empty(t, msgs)
		assert.Equal(t, 1, calls)
	})

	t.Run("blocking polls until messages arrive", func(t *testing.T) {
		t.Parallel()

		calls := 0
		msgs, err := Poll(context.Background(), constantBackoff(time.Millisecond), true, func(context.Context) ([]*Message, error) {
			calls++
			if calls < 3 {
				return nil, nil
			}

			return []*Message{{ID: "x"}}, nil
		})

		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, 3, calls)
	})

	t.Run("blocking stops on context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		msgs, err := Poll(ctx, constantBackoff(5*time.Millisecond), true, func(context.Context) ([]*Message, error) {
			return nil, nil
		})

		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Nil(t, msgs)
	})

	t.Run("fetch errors are returned", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		_, err := Poll(context.Background(), constantBackoff(time.Millisecond), true, func(context.Context) ([]*Message, error) {
			return nil, boom
		})

		assert.ErrorIs(t, err, boom)
	})
}

func TestErrors(t *testing.T) {
	t.Parallel()

	err := Unsupported("sysv", "peek", "use Pull instead")
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.EqualError(t, err, "sysv: peek is not supported, use Pull instead")

	var unsupported *UnsupportedOperationError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "peek", unsupported.Operation)

	cfgErr := NewConfigError("id", "must be exactly one character")
	assert.ErrorIs(t, cfgErr, ErrInvalidConfig)
	assert.EqualError(t, cfgErr, "invalid id: must be exactly one character")
}

func TestBase_CopyFor(t *testing.T) {
	t.Parallel()

	base := NewBase("a", "test", WithIDGenerator(func() string { return "copy-1" }))
	original := &Message{
		ID:        "orig",
		CreatedOn: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		SenderID:  "alice",
		Body:      "payload",
		State:     Reserved{},
	}

	cp := base.CopyFor(original, "sub-1")

	assert.Equal(t, "copy-1", cp.ID)
	assert.Equal(t, "orig", cp.MessageID)
	assert.Equal(t, "sub-1", cp.SubscriberID)
	assert.Equal(t, original.CreatedOn, cp.CreatedOn)
	assert.Equal(t, "alice", cp.SenderID)
	assert.Equal(t, "payload", cp.Body)
	assert.Equal(t, StatusAvailable, cp.Status())
}
