package redisqueue

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/architeacher/svc-msg-queue/pkg/queue"
)

type constantBackoff time.Duration

func (c constantBackoff) Backoff(_ int) time.Duration {
	return time.Duration(c)
}

// fakeClock is advanced by the tests; every call of now moves it one microsecond so that
// consecutive messages get distinct creation times.
type fakeClock struct {
	mutex sync.Mutex
	now   time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.now = c.now.Add(time.Microsecond)

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.now = c.now.Add(d)
}

type RedisQueueTestSuite struct {
	suite.Suite

	server *miniredis.Miniredis
	client *redis.Client
	clock  *fakeClock
	queue  *Queue
	ids    int
}

func TestRedisQueueTestSuite(t *testing.T) {
	t.Parallel()

	suite.Run(t, new(RedisQueueTestSuite))
}

func (s *RedisQueueTestSuite) SetupTest() {
	s.server = miniredis.RunT(s.T())
	s.client = redis.NewClient(&redis.Options{Addr: s.server.Addr()})
	s.clock = &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	s.ids = 0

	s.queue = s.newQueue("jobs")
}

func (s *RedisQueueTestSuite) TearDownTest() {
	s.Require().NoError(s.client.Close())
}

func (s *RedisQueueTestSuite) newQueue(id string) *Queue {
	q, err := New(s.client, Config{ID: id, Label: "test"},
		queue.WithClock(s.clock.Now),
		queue.WithBackoff(constantBackoff(time.Millisecond)),
		queue.WithIDGenerator(func() string {
			s.ids++

			return "m" + strconv.Itoa(s.ids)
		}),
	)
	s.Require().NoError(err)

	return q
}

func (s *RedisQueueTestSuite) put(bodies ...any) {
	for _, body := range bodies {
		ok, err := s.queue.Put(s.T().Context(), body)
		s.Require().NoError(err)
		s.Require().True(ok)
	}
}

func ids(msgs []*queue.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}

	return out
}

func (s *RedisQueueTestSuite) TestCapabilities() {
	s.Equal(queue.Capabilities{Peek: true, Reservation: true, Subscriptions: true}, s.queue.Capabilities())
}

func (s *RedisQueueTestSuite) TestPutAndPeek() {
	s.put("first", "second", "third")

	msgs, err := s.queue.Peek(s.T().Context())
	s.Require().NoError(err)
	s.Equal([]string{"m1", "m2", "m3"}, ids(msgs))
	s.Equal("first", msgs[0].Body)
	s.Equal(queue.StatusAvailable, msgs[0].Status())

	limited, err := s.queue.Peek(s.T().Context(), queue.WithLimit(2))
	s.Require().NoError(err)
	s.Equal([]string{"m1", "m2"}, ids(limited))

	again, err := s.queue.Peek(s.T().Context())
	s.Require().NoError(err)
	s.Len(again, 3, "peek must not remove messages")
}

func (s *RedisQueueTestSuite) TestPullRemovesMessages() {
	s.put("first", "second", "third")

	msgs, err := s.queue.Pull(s.T().Context(), queue.WithLimit(2))
	s.Require().NoError(err)
	s.Equal([]string{"m1", "m2"}, ids(msgs))
	s.Equal(queue.StatusDeleted, msgs[0].Status())

	rest, err := s.queue.Pull(s.T().Context())
	s.Require().NoError(err)
	s.Equal([]string{"m3"}, ids(rest))

	empty, err := s.queue.Pull(s.T().Context())
	s.Require().NoError(err)
	s.Empty(empty)
	s.False(s.server.Exists("queue:jobs:msg:m1"))
}

func (s *RedisQueueTestSuite) TestPullWithZeroLimit() {
	s.put("first")

	msgs, err := s.queue.Pull(s.T().Context(), queue.WithLimit(0))
	s.Require().NoError(err)
	s.Empty(msgs)
}

func (s *RedisQueueTestSuite) TestReservationLifecycle() {
	s.put("first", "second", "third")

	reserved, err := s.queue.Pull(s.T().Context(), queue.WithReservation(time.Minute), queue.WithLimit(2))
	s.Require().NoError(err)
	s.Require().Equal([]string{"m1", "m2"}, ids(reserved))

	state, ok := reserved[0].State.(queue.Reserved)
	s.Require().True(ok)
	s.Equal(time.Minute, state.TimesOutOn.Sub(state.ReservedOn))

	peekedReserved, err := s.queue.Peek(s.T().Context(), queue.WithStatus(queue.StatusReserved))
	s.Require().NoError(err)
	s.Equal([]string{"m1", "m2"}, ids(peekedReserved))
	s.Equal(queue.StatusReserved, peekedReserved[0].Status())

	available, err := s.queue.Peek(s.T().Context())
	s.Require().NoError(err)
	s.Equal([]string{"m3"}, ids(available))

	deleted, err := s.queue.Delete(s.T().Context(), "m1", "m3", "unknown")
	s.Require().NoError(err)
	s.Equal([]string{"m1"}, deleted, "only reserved messages are deleted")

	released, err := s.queue.Release(s.T().Context(), "m1", "m2")
	s.Require().NoError(err)
	s.Equal([]string{"m2"}, released)

	available, err = s.queue.Peek(s.T().Context())
	s.Require().NoError(err)
	s.Equal([]string{"m2", "m3"}, ids(available), "released messages keep their creation order")
	s.Equal(queue.StatusAvailable, available[0].Status())
}

func (s *RedisQueueTestSuite) TestReleaseTimedout() {
	s.put("first", "second")

	_, err := s.queue.Pull(s.T().Context(), queue.WithReservation(time.Second), queue.WithLimit(1))
	s.Require().NoError(err)
	_, err = s.queue.Pull(s.T().Context(), queue.WithReservation(time.Hour), queue.WithLimit(1))
	s.Require().NoError(err)

	released, err := s.queue.ReleaseTimedout(s.T().Context())
	s.Require().NoError(err)
	s.Empty(released)

	s.clock.Advance(time.Minute)

	released, err = s.queue.ReleaseTimedout(s.T().Context())
	s.Require().NoError(err)
	s.Equal([]string{"m1"}, released)

	available, err := s.queue.Peek(s.T().Context())
	s.Require().NoError(err)
	s.Equal([]string{"m1"}, ids(available))
}

func (s *RedisQueueTestSuite) TestDeleteAndReleaseWithoutIDs() {
	deleted, err := s.queue.Delete(s.T().Context())
	s.Require().NoError(err)
	s.Empty(deleted)

	released, err := s.queue.Release(s.T().Context())
	s.Require().NoError(err)
	s.Empty(released)
}

func (s *RedisQueueTestSuite) TestPutVetoed() {
	var after bool
	s.queue.OnBeforePut(func(context.Context, *queue.BeforePutEvent) bool { return false })
	s.queue.OnAfterPut(func(context.Context, queue.AfterPutEvent) { after = true })

	ok, err := s.queue.Put(s.T().Context(), "body")
	s.Require().NoError(err)
	s.False(ok)
	s.False(after)

	msgs, err := s.queue.Peek(s.T().Context())
	s.Require().NoError(err)
	s.Empty(msgs)
}

func (s *RedisQueueTestSuite) TestPutEncodingFailure() {
	ok, err := s.queue.Put(s.T().Context(), make(chan int))
	s.Error(err)
	s.False(ok)
}

func (s *RedisQueueTestSuite) TestPutFailsWhenRedisIsDown() {
	s.server.SetError("ERR server unavailable")

	ok, err := s.queue.Put(s.T().Context(), "body")
	s.NoError(err)
	s.False(ok)
}

func (s *RedisQueueTestSuite) TestSubscriptions() {
	ctx := s.T().Context()

	s.Require().NoError(s.queue.Subscribe(ctx, "web", "web logs", []string{"system.web.*"}, nil))
	s.Require().NoError(s.queue.Subscribe(ctx, "all", "", nil, []string{"system.db"}))
	s.Require().NoError(s.queue.Subscribe(ctx, "web", "", []string{"app"}, nil))

	subs, err := s.queue.Subscriptions(ctx, "")
	s.Require().NoError(err)
	s.Require().Len(subs, 2)
	s.Equal("all", subs[0].SubscriberID)
	s.Equal("web", subs[1].SubscriberID)
	s.Equal("web logs", subs[1].Label)
	s.Equal([]string{"system.web.*", "app"}, subs[1].Categories)

	one, err := s.queue.Subscriptions(ctx, "web")
	s.Require().NoError(err)
	s.Len(one, 1)

	missing, err := s.queue.Subscriptions(ctx, "nobody")
	s.Require().NoError(err)
	s.Empty(missing)

	s.Require().NoError(s.queue.Unsubscribe(ctx, "web", []string{"app"}))
	one, err = s.queue.Subscriptions(ctx, "web")
	s.Require().NoError(err)
	s.Equal([]string{"system.web.*"}, one[0].Categories)

	s.Require().NoError(s.queue.Unsubscribe(ctx, "web", []string{"system.web.*"}))
	one, err = s.queue.Subscriptions(ctx, "web")
	s.Require().NoError(err)
	s.Empty(one, "removing the last category drops the subscription")

	s.Require().NoError(s.queue.Unsubscribe(ctx, "all", nil))
	subs, err = s.queue.Subscriptions(ctx, "")
	s.Require().NoError(err)
	s.Empty(subs)

	s.ErrorIs(s.queue.Subscribe(ctx, "", "", nil, nil), queue.ErrMissingSubscriber)
	s.ErrorIs(s.queue.Unsubscribe(ctx, "", nil), queue.ErrMissingSubscriber)
}

func (s *RedisQueueTestSuite) TestPutFansOutToMatchingSubscribers() {
	ctx := s.T().Context()

	s.Require().NoError(s.queue.Subscribe(ctx, "web", "", []string{"system.web.*"}, nil))
	s.Require().NoError(s.queue.Subscribe(ctx, "db", "", []string{"system.db"}, nil))

	ok, err := s.queue.Put(ctx, "request", queue.WithCategory("system.web.request"))
	s.Require().NoError(err)
	s.Require().True(ok)

	webCopies, err := s.queue.Pull(ctx, queue.WithSubscriber("web"))
	s.Require().NoError(err)
	s.Require().Len(webCopies, 1)
	s.Equal("m1", webCopies[0].MessageID)
	s.Equal("web", webCopies[0].SubscriberID)
	s.Equal("request", webCopies[0].Body)

	dbCopies, err := s.queue.Pull(ctx, queue.WithSubscriber("db"))
	s.Require().NoError(err)
	s.Empty(dbCopies)

	original, err := s.queue.Pull(ctx)
	s.Require().NoError(err)
	s.Equal([]string{"m1"}, ids(original))
}

func (s *RedisQueueTestSuite) TestSubscriberReservationsAreSeparate() {
	ctx := s.T().Context()

	s.Require().NoError(s.queue.Subscribe(ctx, "web", "", []string{"*"}, nil))
	ok, err := s.queue.Put(ctx, "x", queue.WithCategory("any"))
	s.Require().NoError(err)
	s.Require().True(ok)

	copies, err := s.queue.Pull(ctx, queue.WithSubscriber("web"), queue.WithReservation(time.Minute))
	s.Require().NoError(err)
	s.Require().Len(copies, 1)

	mainReserved, err := s.queue.Peek(ctx, queue.WithStatus(queue.StatusReserved))
	s.Require().NoError(err)
	s.Empty(mainReserved)

	subReserved, err := s.queue.Peek(ctx, queue.WithStatus(queue.StatusReserved), queue.WithSubscriber("web"))
	s.Require().NoError(err)
	s.Equal(ids(copies), ids(subReserved))

	released, err := s.queue.Release(ctx, copies[0].ID)
	s.Require().NoError(err)
	s.Equal([]string{copies[0].ID}, released)

	back, err := s.queue.Peek(ctx, queue.WithSubscriber("web"))
	s.Require().NoError(err)
	s.Equal(ids(copies), ids(back))
}

func (s *RedisQueueTestSuite) TestPeekDeletedReturnsNothing() {
	s.put("first")

	_, err := s.queue.Pull(s.T().Context())
	s.Require().NoError(err)

	msgs, err := s.queue.Peek(s.T().Context(), queue.WithStatus(queue.StatusDeleted))
	s.Require().NoError(err)
	s.Empty(msgs)
}

func (s *RedisQueueTestSuite) TestBlockingPull() {
	go func() {
		time.Sleep(20 * time.Millisecond)
		ok, err := s.queue.Put(context.Background(), "late")
		s.NoError(err)
		s.True(ok)
	}()

	ctx, cancel := context.WithTimeout(s.T().Context(), 5*time.Second)
	defer cancel()

	msgs, err := s.queue.Pull(ctx, queue.WithBlocking(true))
	s.Require().NoError(err)
	s.Require().Len(msgs, 1)
	s.Equal("late", msgs[0].Body)
}

func (s *RedisQueueTestSuite) TestBlockingPullCancelled() {
	ctx, cancel := context.WithTimeout(s.T().Context(), 20*time.Millisecond)
	defer cancel()

	msgs, err := s.queue.Pull(ctx, queue.WithBlocking(true))
	s.ErrorIs(err, context.DeadlineExceeded)
	s.Empty(msgs)
}

func (s *RedisQueueTestSuite) TestQueuesAreIsolated() {
	other := s.newQueue("other")

	s.put("mine")

	msgs, err := other.Pull(s.T().Context())
	s.Require().NoError(err)
	s.Empty(msgs)
}

func (s *RedisQueueTestSuite) TestUndecodableMessagesAreSkipped() {
	s.put("good")
	s.server.HSet("queue:jobs:msg:bad", "data", "{not json")
	_, err := s.server.ZAdd("queue:jobs:available", 0, "bad")
	s.Require().NoError(err)

	msgs, err := s.queue.Pull(s.T().Context())
	s.Require().NoError(err)
	s.Equal([]string{"m1"}, ids(msgs))
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	t.Cleanup(func() { _ = client.Close() })

	tests := []struct {
		name   string
		client redis.UniversalClient
		cfg    Config
		field  string
	}{
		{name: "empty id", client: client, cfg: Config{}, field: "id"},
		{name: "id with separator", client: client, cfg: Config{ID: "a:b"}, field: "id"},
		{name: "nil client", client: nil, cfg: Config{ID: "a"}, field: "client"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := New(tt.client, tt.cfg)
			require.ErrorIs(t, err, queue.ErrInvalidConfig)

			var cfgErr *queue.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestKeys(t *testing.T) {
	t.Parallel()

	k := newKeys(Config{ID: "jobs"}.withDefaults())

	assert.Equal(t, "queue:jobs:msg:m1", k.message("m1"))
	assert.Equal(t, "queue:jobs:available", k.available(""))
	assert.Equal(t, "queue:jobs:sub:web:available", k.available("web"))
	assert.Equal(t, "queue:jobs:reserved", k.reserved())
	assert.Equal(t, "queue:jobs:subscriptions", k.subscriptions())
}
