package queue

import (
	"context"
	"sync"
)

type putOutcomeKey struct{}

// PutOutcome receives the cause of a refused put.
//
// Put reports a backend refusal as false without an error, the same way as a listener veto.
// Decorators that must tell the two apart attach an outcome to the context with WithPutOutcome
// and inspect it once Put returns.
type PutOutcome struct {
	mutex sync.Mutex
	err   error
}

// WithPutOutcome returns a context carrying a fresh PutOutcome.
func WithPutOutcome(ctx context.Context) (context.Context, *PutOutcome) {
	outcome := &PutOutcome{}

	return context.WithValue(ctx, putOutcomeKey{}, outcome), outcome
}

// Err returns the refusal cause recorded by the backend, nil when the put was accepted or vetoed.
func (o *PutOutcome) Err() error {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	return o.err
}

func (o *PutOutcome) record(err error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.err = err
}

// PutFailed logs a put the backend could not complete and records err on the PutOutcome of ctx,
// if any. Backends call it right before returning false.
func (b *Base) PutFailed(ctx context.Context, msg *Message, err error) {
	b.logger.Error().
		Err(err).
		Str("queue_id", b.id).
		Str("message_id", msg.ID).
		Msg("failed to put message")

	if outcome, ok := ctx.Value(putOutcomeKey{}).(*PutOutcome); ok {
		outcome.record(err)
	}
}
