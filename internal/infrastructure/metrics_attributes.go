package infrastructure

import (
	"context"
	"errors"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"github.com/architeacher/svc-msg-queue/pkg/queue"
)

const (
	httpMethodKey     = "http.method"
	httpPathKey       = "http.path"
	httpStatusCodeKey = "http.status_code"
	statusKey         = "status"
	errorTypeKey      = "error.type"
	backendKey        = "queue.backend"
	operationKey      = "queue.operation"
	queueIDKey        = "queue.id"
	reasonKey         = "reason"
)

func HTTPMethodAttr(method string) attribute.KeyValue {
	return attribute.String(httpMethodKey, method)
}

func HTTPPathAttr(path string) attribute.KeyValue {
	return attribute.String(httpPathKey, path)
}

func HTTPStatusCodeAttr(code int) attribute.KeyValue {
	return attribute.String(httpStatusCodeKey, strconv.Itoa(code))
}

func StatusAttr(status string) attribute.KeyValue {
	return attribute.String(statusKey, status)
}

func ErrorTypeAttr(errorType string) attribute.KeyValue {
	return attribute.String(errorTypeKey, errorType)
}

func BackendAttr(backend string) attribute.KeyValue {
	return attribute.String(backendKey, backend)
}

func OperationAttr(operation string) attribute.KeyValue {
	return attribute.String(operationKey, operation)
}

func QueueIDAttr(id string) attribute.KeyValue {
	return attribute.String(queueIDKey, id)
}

func ReasonAttr(reason string) attribute.KeyValue {
	return attribute.String(reasonKey, reason)
}

// ErrorType classifies an error into a low-cardinality attribute value.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, queue.ErrUnsupported):
		return "unsupported"
	case errors.Is(err, queue.ErrInvalidConfig):
		return "invalid_config"
	case errors.Is(err, queue.ErrQueueFull):
		return "queue_full"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}
