package adapters

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/architeacher/svc-msg-queue/pkg/queue"
)

type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) ID() string {
	return "jobs"
}

func (m *MockQueue) Label() string {
	return "test"
}

func (m *MockQueue) Capabilities() queue.Capabilities {
	return queue.Capabilities{Peek: true, Reservation: true, Subscriptions: true}
}

func (m *MockQueue) OnBeforePut(queue.BeforePutListener) {}

func (m *MockQueue) OnAfterPut(queue.AfterPutListener) {}

func (m *MockQueue) Put(ctx context.Context, body any, opts ...queue.PutOption) (bool, error) {
	args := m.Called(ctx, body, queue.ResolvePutOptions(opts...).Category)

	return args.Bool(0), args.Error(1)
}

func (m *MockQueue) Peek(ctx context.Context, opts ...queue.ReadOption) ([]*queue.Message, error) {
	args := m.Called(ctx, queue.ResolveReadOptions(opts...))

	return messagesArg(args, 0), args.Error(1)
}

func (m *MockQueue) Pull(ctx context.Context, opts ...queue.ReadOption) ([]*queue.Message, error) {
	args := m.Called(ctx, queue.ResolveReadOptions(opts...))

	return messagesArg(args, 0), args.Error(1)
}

func (m *MockQueue) Delete(ctx context.Context, ids ...string) ([]string, error) {
	args := m.Called(ctx, ids)

	return stringsArg(args, 0), args.Error(1)
}

func (m *MockQueue) Release(ctx context.Context, ids ...string) ([]string, error) {
	args := m.Called(ctx, ids)

	return stringsArg(args, 0), args.Error(1)
}

func (m *MockQueue) ReleaseTimedout(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)

	return stringsArg(args, 0), args.Error(1)
}

func (m *MockQueue) Subscribe(ctx context.Context, subscriberID, label string, categories, exceptions []string) error {
	return m.Called(ctx, subscriberID, label, categories, exceptions).Error(0)
}

func (m *MockQueue) Unsubscribe(ctx context.Context, subscriberID string, categories []string) error {
	return m.Called(ctx, subscriberID, categories).Error(0)
}

func (m *MockQueue) Subscriptions(ctx context.Context, subscriberID string) ([]queue.Subscription, error) {
	args := m.Called(ctx, subscriberID)

	subs, _ := args.Get(0).([]queue.Subscription)

	return subs, args.Error(1)
}

func messagesArg(args mock.Arguments, i int) []*queue.Message {
	msgs, _ := args.Get(i).([]*queue.Message)

	return msgs
}

func stringsArg(args mock.Arguments, i int) []string {
	ids, _ := args.Get(i).([]string)

	return ids
}
