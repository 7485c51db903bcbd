//go:generate go tool github.com/maxbrunsfeld/counterfeiter/v6 -generate

package infrastructure

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/architeacher/svc-msg-queue/internal/config"
)

const (
	metricsNamespace = "msg_queue"
)

type (
	//counterfeiter:generate -o ../mocks/metrics.go . Metrics

	Metrics interface {
		RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration)
		RecordQueueOperation(ctx context.Context, backend, operation string, duration time.Duration, err error)
		RecordMessages(ctx context.Context, backend, operation string, count int)
		RecordPutRejected(ctx context.Context, backend, reason string)
		RecordSweep(ctx context.Context, queueID string, released int, err error)
		Handler() http.Handler
		Shutdown(ctx context.Context) error
	}

	OTELMetrics struct {
		meterProvider *sdkmetric.MeterProvider
		meter         metric.Meter
		logger        Logger

		httpRequestTotal       metric.Int64Counter
		httpRequestDuration    metric.Float64Histogram
		queueOperationTotal    metric.Int64Counter
		queueOperationDuration metric.Float64Histogram
		queueErrorTotal        metric.Int64Counter
		messagesTotal          metric.Int64Counter
		putRejectedTotal       metric.Int64Counter
		sweepReleasedTotal     metric.Int64Counter
		sweepErrorTotal        metric.Int64Counter
	}
)

func NewMetrics(ctx context.Context, cfg config.ServiceConfig, logger Logger) (Metrics, error) {
	if !cfg.Telemetry.Metrics.Enabled {
		logger.Info().Msg("metrics disabled, using NoOp implementation")

		return &NoOpMetrics{}, nil
	}

	return NewOTELMetrics(ctx, cfg, logger)
}

func NewOTELMetrics(ctx context.Context, cfg config.ServiceConfig, logger Logger) (*OTELMetrics, error) {
	endpoint := fmt.Sprintf("%s:%s", cfg.Telemetry.OtelGRPCHost, cfg.Telemetry.OtelGRPCPort)

	conn, err := grpc.NewClient(
		endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to OTEL collector: %w", err)
	}

	exporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	res, err := newResource(ctx, cfg.AppConfig)
	if err != nil {
		return nil, err
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(meterProvider)

	logger = logger.Component("metrics")

	provider, err := newOTELMetrics(meterProvider, cfg.AppConfig.ServiceVersion, logger)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("otel_endpoint", endpoint).
		Msg("OTEL metrics provider initialized successfully")

	return provider, nil
}

func newOTELMetrics(meterProvider *sdkmetric.MeterProvider, version string, logger Logger) (*OTELMetrics, error) {
	provider := &OTELMetrics{
		meterProvider: meterProvider,
		meter: meterProvider.Meter(
			metricsNamespace,
			metric.WithInstrumentationVersion(version),
		),
		logger: logger,
	}

	if err := provider.initializeMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return provider, nil
}

func newResource(ctx context.Context, app config.AppConfig) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(app.ServiceName),
			semconv.ServiceVersionKey.String(app.ServiceVersion),
			semconv.ServiceInstanceIDKey.String(app.CommitSHA),
			semconv.DeploymentEnvironmentKey.String(app.Env),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	return res, nil
}

func (om *OTELMetrics) initializeMetrics() error {
	var err error

	om.httpRequestTotal, err = om.meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	om.httpRequestDuration, err = om.meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	om.queueOperationTotal, err = om.meter.Int64Counter(
		"queue_operations_total",
		metric.WithDescription("Total number of queue operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create queue_operations_total counter: %w", err)
	}

	om.queueOperationDuration, err = om.meter.Float64Histogram(
		"queue_operation_duration_seconds",
		metric.WithDescription("Queue operation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create queue_operation_duration_seconds histogram: %w", err)
	}

	om.queueErrorTotal, err = om.meter.Int64Counter(
		"queue_errors_total",
		metric.WithDescription("Total number of failed queue operations"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create queue_errors_total counter: %w", err)
	}

	om.messagesTotal, err = om.meter.Int64Counter(
		"queue_messages_total",
		metric.WithDescription("Total number of messages moved by queue operations"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create queue_messages_total counter: %w", err)
	}

	om.putRejectedTotal, err = om.meter.Int64Counter(
		"queue_put_rejected_total",
		metric.WithDescription("Total number of puts that did not enqueue a message"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create queue_put_rejected_total counter: %w", err)
	}

	om.sweepReleasedTotal, err = om.meter.Int64Counter(
		"sweeper_released_total",
		metric.WithDescription("Total number of timed out reservations released by the sweeper"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create sweeper_released_total counter: %w", err)
	}

	om.sweepErrorTotal, err = om.meter.Int64Counter(
		"sweeper_errors_total",
		metric.WithDescription("Total number of failed sweeps"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create sweeper_errors_total counter: %w", err)
	}

	return nil
}

func (om *OTELMetrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	attrs := metric.WithAttributes(
		HTTPMethodAttr(method),
		HTTPPathAttr(path),
		HTTPStatusCodeAttr(statusCode),
	)

	om.httpRequestTotal.Add(ctx, 1, attrs)
	om.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

func (om *OTELMetrics) RecordQueueOperation(ctx context.Context, backend, operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	om.queueOperationTotal.Add(ctx, 1,
		metric.WithAttributes(
			BackendAttr(backend),
			OperationAttr(operation),
			StatusAttr(status),
		),
	)

	om.queueOperationDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			BackendAttr(backend),
			OperationAttr(operation),
		),
	)

	if err != nil {
		om.queueErrorTotal.Add(ctx, 1,
			metric.WithAttributes(
				BackendAttr(backend),
				OperationAttr(operation),
				ErrorTypeAttr(ErrorType(err)),
			),
		)
	}
}

func (om *OTELMetrics) RecordMessages(ctx context.Context, backend, operation string, count int) {
	if count <= 0 {
		return
	}

	om.messagesTotal.Add(ctx, int64(count),
		metric.WithAttributes(
			BackendAttr(backend),
			OperationAttr(operation),
		),
	)
}

func (om *OTELMetrics) RecordPutRejected(ctx context.Context, backend, reason string) {
	om.putRejectedTotal.Add(ctx, 1,
		metric.WithAttributes(
			BackendAttr(backend),
			ReasonAttr(reason),
		),
	)
}

func (om *OTELMetrics) RecordSweep(ctx context.Context, queueID string, released int, err error) {
	if err != nil {
		om.sweepErrorTotal.Add(ctx, 1,
			metric.WithAttributes(
				QueueIDAttr(queueID),
				ErrorTypeAttr(ErrorType(err)),
			),
		)

		return
	}

	om.sweepReleasedTotal.Add(ctx, int64(released),
		metric.WithAttributes(
			QueueIDAttr(queueID),
		),
	)
}

func (om *OTELMetrics) Handler() http.Handler {
	return promhttp.Handler()
}

func (om *OTELMetrics) Shutdown(ctx context.Context) error {
	if err := om.meterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}

	return nil
}
