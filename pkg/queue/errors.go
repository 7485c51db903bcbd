package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported is the sentinel wrapped by every UnsupportedOperationError.
	ErrUnsupported = errors.New("operation not supported")

	// ErrInvalidConfig is the sentinel wrapped by every ConfigError.
	ErrInvalidConfig = errors.New("invalid queue configuration")

	// ErrQueueFull describes that the backend refused a message because it has no room left.
	ErrQueueFull = errors.New("queue is full")

	// ErrMessageTooLarge describes that an encoded message exceeds what the backend can deliver.
	ErrMessageTooLarge = errors.New("message too large")

	// ErrEmpty describes that a non-blocking read found nothing to return.
	ErrEmpty = errors.New("queue is empty")

	// ErrMissingSubscriber is returned by subscription operations called without a subscriber id.
	ErrMissingSubscriber = errors.New("subscriber id must not be empty")
)

type (
	// UnsupportedOperationError is returned by a backend for any operation it cannot honor.
	UnsupportedOperationError struct {
		Backend   string
		Operation string
		Hint      string
	}

	// ConfigError is returned at construction time when a backend is misconfigured.
	ConfigError struct {
		Field  string
		Reason string
	}
)

func (e *UnsupportedOperationError) Error() string {
	msg := fmt.Sprintf("%s: %s is not supported", e.Backend, e.Operation)
	if e.Hint != "" {
		msg += ", " + e.Hint
	}

	return msg
}

func (e *UnsupportedOperationError) Unwrap() error {
	return ErrUnsupported
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// Unsupported builds an UnsupportedOperationError.
func Unsupported(backend, operation, hint string) error {
	return &UnsupportedOperationError{
		Backend:   backend,
		Operation: operation,
		Hint:      hint,
	}
}

// NewConfigError builds a ConfigError.
func NewConfigError(field, reason string) error {
	return &ConfigError{
		Field:  field,
		Reason: reason,
	}
}
