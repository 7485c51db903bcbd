package queue

import "context"

type (
	// BeforePutEvent is dispatched before a message is enqueued. Listeners may veto the put by
	// returning false or by clearing IsValid.
	BeforePutEvent struct {
		Message *Message
		IsValid bool
	}

	// AfterPutEvent is dispatched once a message has been enqueued.
	AfterPutEvent struct {
		Message *Message
	}

	// BeforePutListener answers whether the put may proceed.
	BeforePutListener func(ctx context.Context, event *BeforePutEvent) bool

	// AfterPutListener observes a successful put.
	AfterPutListener func(ctx context.Context, event AfterPutEvent)
)
