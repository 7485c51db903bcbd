package queuectl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/architeacher/svc-msg-queue/internal/config"
	"github.com/architeacher/svc-msg-queue/pkg/queue"
	"github.com/architeacher/svc-msg-queue/pkg/queue/redisqueue"
)

type fakeSession struct {
	q      queue.Queue
	swept  map[string][]string
	closed bool
}

func (s *fakeSession) Queue() queue.Queue { return s.q }

func (s *fakeSession) Sweep(_ context.Context) map[string][]string { return s.swept }

func (s *fakeSession) Close(_ context.Context) { s.closed = true }

func newRedisSession(t *testing.T) *fakeSession {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	q, err := redisqueue.New(client, redisqueue.Config{ID: "jobs", Label: "test"})
	require.NoError(t, err)

	return &fakeSession{q: q}
}

func connectTo(session *fakeSession, cfg *config.ServiceConfig) Connector {
	return func(_ context.Context, _ io.Writer, overrides func(cfg *config.ServiceConfig)) (Session, error) {
		if overrides != nil && cfg != nil {
			overrides(cfg)
		}

		return session, nil
	}
}

func execute(t *testing.T, connect Connector, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	cmd := NewRootCommand(connect)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())

	return stdout.String(), err
}

func decodeMessages(t *testing.T, out string) []map[string]any {
	t.Helper()

	var msgs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &msgs))

	return msgs
}

func TestMessageCommands(t *testing.T) {
	t.Parallel()

	session := newRedisSession(t)
	connect := connectTo(session, nil)

	out, err := execute(t, connect, "put", `{"order":42}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"accepted":true}`, out)
	assert.True(t, session.closed)

	_, err = execute(t, connect, "put", "plain text")
	require.NoError(t, err)

	out, err = execute(t, connect, "peek", "--limit", "1")
	require.NoError(t, err)

	peeked := decodeMessages(t, out)
	require.Len(t, peeked, 1)
	assert.Equal(t, map[string]any{"order": float64(42)}, peeked[0]["body"])
	assert.Equal(t, "available", peeked[0]["status"])

	out, err = execute(t, connect, "pull", "--reservation", "1m")
	require.NoError(t, err)

	pulled := decodeMessages(t, out)
	require.Len(t, pulled, 2)
	assert.Equal(t, "reserved", pulled[0]["status"])
	assert.Equal(t, "plain text", pulled[1]["body"])

	first, second := pulled[0]["id"].(string), pulled[1]["id"].(string)

	out, err = execute(t, connect, "peek", "--status", "reserved")
	require.NoError(t, err)
	assert.Len(t, decodeMessages(t, out), 2)

	out, err = execute(t, connect, "delete", first, "unknown")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ids":["`+first+`"]}`, out)

	out, err = execute(t, connect, "release", second)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ids":["`+second+`"]}`, out)

	out, err = execute(t, connect, "pull")
	require.NoError(t, err)

	remaining := decodeMessages(t, out)
	require.Len(t, remaining, 1)
	assert.Equal(t, second, remaining[0]["id"])

	out, err = execute(t, connect, "pull")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)
}

func TestSubscriptionCommands(t *testing.T) {
	t.Parallel()

	session := newRedisSession(t)
	connect := connectTo(session, nil)

	out, err := execute(t, connect, "subscribe", "billing", "--label", "Billing", "--category", "orders.*,refunds")
	require.NoError(t, err)

	var subs []queue.Subscription
	require.NoError(t, json.Unmarshal([]byte(out), &subs))
	require.Len(t, subs, 1)
	assert.Equal(t, "billing", subs[0].SubscriberID)
	assert.Equal(t, "Billing", subs[0].Label)
	assert.ElementsMatch(t, []string{"orders.*", "refunds"}, subs[0].Categories)

	_, err = execute(t, connect, "put", `{"total":10}`, "--category", "orders.created")
	require.NoError(t, err)

	out, err = execute(t, connect, "peek", "--subscriber", "billing")
	require.NoError(t, err)

	copies := decodeMessages(t, out)
	require.Len(t, copies, 1)
	assert.Equal(t, "billing", copies[0]["subscriber_id"])

	out, err = execute(t, connect, "unsubscribe", "billing", "--category", "refunds")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &subs))
	require.Len(t, subs, 1)
	assert.Equal(t, []string{"orders.*"}, subs[0].Categories)

	_, err = execute(t, connect, "unsubscribe", "billing")
	require.NoError(t, err)

	out, err = execute(t, connect, "subscriptions")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)
}

func TestSweepCommand(t *testing.T) {
	t.Parallel()

	session := &fakeSession{swept: map[string][]string{"jobs": {"m-1"}}}

	out, err := execute(t, connectTo(session, nil), "sweep")
	require.NoError(t, err)
	assert.JSONEq(t, `{"jobs":["m-1"]}`, out)
}

func TestGlobalFlags(t *testing.T) {
	t.Parallel()

	session := newRedisSession(t)
	cfg := &config.ServiceConfig{Queue: config.QueueConfig{Backend: config.BackendSysV, ID: "a", Label: "default"}}

	_, err := execute(t, connectTo(session, cfg), "subscriptions", "--backend", "redis", "--queue", "b", "--sender", "ops")
	require.NoError(t, err)

	assert.Equal(t, config.BackendRedis, cfg.Queue.Backend)
	assert.Equal(t, "b", cfg.Queue.ID)
	assert.Equal(t, "default", cfg.Queue.Label)
	assert.Equal(t, "ops", cfg.Queue.SenderID)
}

func TestCommandErrors(t *testing.T) {
	t.Parallel()

	session := newRedisSession(t)
	connect := connectTo(session, nil)

	tests := []struct {
		name    string
		connect Connector
		args    []string
		wantErr string
	}{
		{
			name:    "put without body",
			args:    []string{"put"},
			wantErr: "accepts 1 arg(s)",
		},
		{
			name:    "unknown status",
			args:    []string{"peek", "--status", "lost"},
			wantErr: `unknown message status "lost"`,
		},
		{
			name:    "invalid limit",
			args:    []string{"pull", "--limit", "-5"},
			wantErr: "invalid --limit -5",
		},
		{
			name:    "negative reservation",
			args:    []string{"pull", "--reservation", "-1s"},
			wantErr: "must not be negative",
		},
		{
			name:    "delete without ids",
			args:    []string{"delete"},
			wantErr: "requires at least 1 arg(s)",
		},
		{
			name:    "missing subscriber",
			args:    []string{"subscribe", ""},
			wantErr: queue.ErrMissingSubscriber.Error(),
		},
		{
			name: "connection failure",
			connect: func(context.Context, io.Writer, func(*config.ServiceConfig)) (Session, error) {
				return nil, errors.New("unknown queue backend")
			},
			args:    []string{"subscriptions"},
			wantErr: "unknown queue backend",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c := connect
			if tc.connect != nil {
				c = tc.connect
			}

			_, err := execute(t, c, tc.args...)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestParseBody(t *testing.T) {
	t.Parallel()

	assert.Equal(t, map[string]any{"a": float64(1)}, parseBody(`{"a":1}`))
	assert.Equal(t, float64(7), parseBody("7"))
	assert.Equal(t, "hello", parseBody("hello"))
}
