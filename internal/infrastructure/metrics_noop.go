package infrastructure

import (
	"context"
	"net/http"
	"time"
)

type NoOpMetrics struct{}

func (n *NoOpMetrics) RecordHTTPRequest(_ context.Context, _, _ string, _ int, _ time.Duration) {
}

func (n *NoOpMetrics) RecordQueueOperation(_ context.Context, _, _ string, _ time.Duration, _ error) {
}

func (n *NoOpMetrics) RecordMessages(_ context.Context, _, _ string, _ int) {
}

func (n *NoOpMetrics) RecordPutRejected(_ context.Context, _, _ string) {
}

func (n *NoOpMetrics) RecordSweep(_ context.Context, _ string, _ int, _ error) {
}

func (n *NoOpMetrics) Handler() http.Handler {
	return http.NotFoundHandler()
}

func (n *NoOpMetrics) Shutdown(_ context.Context) error {
	return nil
}
