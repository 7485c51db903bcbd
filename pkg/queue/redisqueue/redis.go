package redisqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/architeacher/svc-msg-queue/pkg/queue"
)

const (
	backendName = "redis"

	maxTxRetries = 3
)

// Ensure Queue implements the queue.Queue interface
var _ queue.Queue = (*Queue)(nil)

// Queue is a queue.Queue stored in Redis. Multi-key state changes run as Lua scripts, so
// concurrent consumers never receive the same message twice.
type Queue struct {
	*queue.Base

	client redis.UniversalClient
	keys   keys
}

// New creates a queue on top of client. The client is owned by the caller.
func New(client redis.UniversalClient, cfg Config, opts ...queue.Option) (*Queue, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, queue.NewConfigError("client", "must not be nil")
	}

	return &Queue{
		Base:   queue.NewBase(cfg.ID, cfg.Label, opts...),
		client: client,
		keys:   newKeys(cfg),
	}, nil
}

func (q *Queue) Capabilities() queue.Capabilities {
	return queue.Capabilities{
		Peek:          true,
		Reservation:   true,
		Subscriptions: true,
	}
}

// Put stores the message and, when a category is given, one copy per matching subscription,
// all in one transaction.
func (q *Queue) Put(ctx context.Context, body any, opts ...queue.PutOption) (bool, error) {
	o := queue.ResolvePutOptions(opts...)
	msg := q.CreateMessage(ctx, body)

	if !q.BeforePut(ctx, msg) {
		q.Logger().Info().Str("queue_id", q.ID()).Str("message_id", msg.ID).Msg("not putting message, vetoed by listener")

		return false, nil
	}

	data, err := msg.Encode()
	if err != nil {
		return false, err
	}

	var copies []*queue.Message
	if o.Category != "" {
		subs, err := q.Subscriptions(ctx, "")
		if err != nil {
			q.PutFailed(ctx, msg, err)

			return false, nil
		}

		for _, sub := range queue.Matching(subs, o.Category) {
			copies = append(copies, q.CopyFor(msg, sub.SubscriberID))
		}
	}

	encoded := make([][]byte, len(copies))
	for i, cp := range copies {
		if encoded[i], err = cp.Encode(); err != nil {
			return false, err
		}
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		q.enqueue(ctx, pipe, msg, data)
		for i, cp := range copies {
			q.enqueue(ctx, pipe, cp, encoded[i])
		}

		return nil
	})
	if err != nil {
		q.PutFailed(ctx, msg, err)

		return false, nil
	}

	q.AfterPut(ctx, msg)

	q.Logger().Info().
		Str("queue_id", q.ID()).
		Str("message_id", msg.ID).
		Int("copies", len(copies)).
		Msg("message put")

	return true, nil
}

func (q *Queue) enqueue(ctx context.Context, pipe redis.Pipeliner, msg *queue.Message, data []byte) {
	home := q.keys.available(msg.SubscriberID)
	score := msg.CreatedOn.UnixMicro()

	pipe.HSet(ctx, q.keys.message(msg.ID),
		fieldData, data,
		fieldStatus, string(queue.StatusAvailable),
		fieldHome, home,
		fieldScore, score,
	)
	pipe.ZAdd(ctx, home, redis.Z{Score: float64(score), Member: msg.ID})
}

// Peek returns messages without changing them. Deleted messages are not retained, so peeking
// at them returns nothing.
func (q *Queue) Peek(ctx context.Context, opts ...queue.ReadOption) ([]*queue.Message, error) {
	o := queue.ResolveReadOptions(opts...)
	if o.Reached(0) {
		return nil, nil
	}

	return q.Poll(ctx, o.Blocking, func(ctx context.Context) ([]*queue.Message, error) {
		return q.peek(ctx, o)
	})
}

func (q *Queue) peek(ctx context.Context, o queue.ReadOptions) ([]*queue.Message, error) {
	switch o.Status {
	case queue.StatusAvailable:
		ids, err := q.client.ZRange(ctx, q.keys.available(o.SubscriberID), 0, stopIndex(o)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to peek messages: %w", err)
		}

		entries, err := q.load(ctx, ids)
		if err != nil {
			return nil, err
		}

		return messages(entries), nil

	case queue.StatusReserved:
		ids, err := q.client.ZRange(ctx, q.keys.reserved(), 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to peek messages: %w", err)
		}

		entries, err := q.load(ctx, ids)
		if err != nil {
			return nil, err
		}

		home := q.keys.available(o.SubscriberID)
		entries = slices.DeleteFunc(entries, func(e entry) bool {
			return e.home != home
		})

		msgs := messages(entries)
		sort.SliceStable(msgs, func(i, j int) bool {
			return msgs[i].CreatedOn.Before(msgs[j].CreatedOn)
		})

		if o.Limit >= 0 && len(msgs) > o.Limit {
			msgs = msgs[:o.Limit]
		}

		return msgs, nil

	default:
		return nil, nil
	}
}

type entry struct {
	msg  *queue.Message
	home string
}

func messages(entries []entry) []*queue.Message {
	msgs := make([]*queue.Message, 0, len(entries))
	for _, e := range entries {
		msgs = append(msgs, e.msg)
	}

	return msgs
}

// load reads the hashes of ids, skipping ids whose hash is gone.
func (q *Queue) load(ctx context.Context, ids []string) ([]entry, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.SliceCmd, len(ids))
	_, err := q.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HMGet(ctx, q.keys.message(id), fieldData, fieldStatus, fieldReservedOn, fieldTimesOutOn, fieldHome)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	entries := make([]entry, 0, len(ids))
	for _, cmd := range cmds {
		vals := cmd.Val()

		data, ok := vals[0].(string)
		if !ok {
			continue
		}

		msg, err := q.decode(data)
		if err != nil {
			continue
		}

		if status, _ := vals[1].(string); status == string(queue.StatusReserved) {
			msg.State = queue.Reserved{
				ReservedOn: parseMillis(vals[2]),
				TimesOutOn: parseMillis(vals[3]),
			}
		}

		home, _ := vals[4].(string)
		entries = append(entries, entry{msg: msg, home: home})
	}

	return entries, nil
}

// Pull removes messages or, with a reservation, reserves them. Removed messages come back as
// deleted.
func (q *Queue) Pull(ctx context.Context, opts ...queue.ReadOption) ([]*queue.Message, error) {
	o := queue.ResolveReadOptions(opts...)
	if o.Reached(0) {
		return nil, nil
	}

	return q.Poll(ctx, o.Blocking, func(ctx context.Context) ([]*queue.Message, error) {
		if o.Reservation != nil {
			return q.reserve(ctx, o)
		}

		return q.pull(ctx, o)
	})
}

func (q *Queue) pull(ctx context.Context, o queue.ReadOptions) ([]*queue.Message, error) {
	data, err := pullScript.Run(ctx, q.client,
		[]string{q.keys.available(o.SubscriberID)},
		q.keys.messagePrefix(), stopIndex(o),
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to pull messages: %w", err)
	}

	deletedOn := q.Now()

	return q.decodeAll(data, queue.Deleted{DeletedOn: deletedOn}), nil
}

func (q *Queue) reserve(ctx context.Context, o queue.ReadOptions) ([]*queue.Message, error) {
	reservedOn := q.Now().Truncate(time.Millisecond)
	timesOutOn := reservedOn.Add(*o.Reservation).Truncate(time.Millisecond)

	data, err := reserveScript.Run(ctx, q.client,
		[]string{q.keys.available(o.SubscriberID), q.keys.reserved()},
		q.keys.messagePrefix(), stopIndex(o), reservedOn.UnixMilli(), timesOutOn.UnixMilli(),
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to reserve messages: %w", err)
	}

	return q.decodeAll(data, queue.Reserved{ReservedOn: reservedOn, TimesOutOn: timesOutOn}), nil
}

func (q *Queue) decodeAll(data []string, state queue.State) []*queue.Message {
	msgs := make([]*queue.Message, 0, len(data))
	for _, d := range data {
		msg, err := q.decode(d)
		if err != nil {
			continue
		}

		msg.State = state
		msgs = append(msgs, msg)
	}

	return msgs
}

func (q *Queue) decode(data string) (*queue.Message, error) {
	msg, err := queue.Decode([]byte(data))
	if err != nil {
		q.Logger().Error().Err(err).Str("queue_id", q.ID()).Msg("discarding undecodable message")

		return nil, err
	}

	return msg, nil
}

// Delete removes reserved messages.
func (q *Queue) Delete(ctx context.Context, ids ...string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	deleted, err := deleteScript.Run(ctx, q.client, []string{q.keys.reserved()}, idArgs(q.keys.messagePrefix(), ids)...).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to delete messages: %w", err)
	}

	return deleted, nil
}

// Release makes reserved messages available again at their original position.
func (q *Queue) Release(ctx context.Context, ids ...string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	released, err := releaseScript.Run(ctx, q.client, []string{q.keys.reserved()}, idArgs(q.keys.messagePrefix(), ids)...).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to release messages: %w", err)
	}

	return released, nil
}

func (q *Queue) ReleaseTimedout(ctx context.Context) ([]string, error) {
	released, err := releaseTimedoutScript.Run(ctx, q.client,
		[]string{q.keys.reserved()},
		q.keys.messagePrefix(), q.Now().UnixMilli(),
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to release timed out messages: %w", err)
	}

	return released, nil
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
	key := q.keys.subscriptions()

	if subscriberID != "" {
		sub, err := loadSubscription(ctx, q.client, key, subscriberID)
		if err != nil || sub == nil {
			return nil, err
		}

		return []queue.Subscription{*sub}, nil
	}

	all, err := q.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	subs := make([]queue.Subscription, 0, len(all))
	for _, data := range all {
		var sub queue.Subscription
		if err := json.Unmarshal([]byte(data), &sub); err != nil {
			return nil, fmt.Errorf("could not unmarshal subscription: %w", err)
		}

		subs = append(subs, sub)
	}

	sort.Slice(subs, func(i, j int) bool {
		return subs[i].SubscriberID < subs[j].SubscriberID
	})

	return subs, nil
}

// updateSubscription applies update to the stored subscription under optimistic locking.
// A nil result removes the subscription.
func (q *Queue) updateSubscription(
	ctx context.Context,
	subscriberID string,
	update func(current *queue.Subscription) *queue.Subscription,
) error {
	key := q.keys.subscriptions()

	txf := func(tx *redis.Tx) error {
		current, err := loadSubscription(ctx, tx, key, subscriberID)
		if err != nil {
			return err
		}

		next := update(current)

		var data []byte
		if next != nil {
			if data, err = json.Marshal(next); err != nil {
				return fmt.Errorf("could not marshal subscription: %w", err)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == nil {
				pipe.HDel(ctx, key, subscriberID)

				return nil
			}

			pipe.HSet(ctx, key, subscriberID, data)

			return nil
		})

		return err
	}

	var err error
	for range maxTxRetries {
		err = q.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("failed to update subscription %q: %w", subscriberID, err)
	}

	return nil
}

type hashGetter interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
}

func loadSubscription(ctx context.Context, c hashGetter, key, subscriberID string) (*queue.Subscription, error) {
	data, err := c.HGet(ctx, key, subscriberID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read subscription %q: %w", subscriberID, err)
	}

	var sub queue.Subscription
	if err := json.Unmarshal([]byte(data), &sub); err != nil {
		return nil, fmt.Errorf("could not unmarshal subscription: %w", err)
	}

	return &sub, nil
}

// stopIndex converts the limit into an inclusive ZRANGE stop index.
func stopIndex(o queue.ReadOptions) int64 {
	if o.Limit < 0 {
		return -1
	}

	return int64(o.Limit - 1)
}

func idArgs(prefix string, ids []string) []any {
	args := make([]any, 0, len(ids)+1)
	args = append(args, prefix)
	for _, id := range ids {
		args = append(args, id)
	}

	return args
}

func parseMillis(v any) time.Time {
	s, _ := v.(string)

	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}

	return time.UnixMilli(ms).UTC()
}
