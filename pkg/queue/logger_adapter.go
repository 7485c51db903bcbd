package queue

import "github.com/rs/zerolog"

// LoggerAdapter adapts a zerolog logger to the queue logger interface
type LoggerAdapter struct {
	logger zerolog.Logger
}

// NewLoggerAdapter creates a new logger adapter
func NewLoggerAdapter(logger zerolog.Logger) *LoggerAdapter {
	return &LoggerAdapter{logger: logger}
}

// Info returns an info log event
func (l *LoggerAdapter) Info() LogEvent {
	return &LogEventAdapter{event: l.logger.Info()}
}

// Error returns an error log event
func (l *LoggerAdapter) Error() LogEvent {
	return &LogEventAdapter{event: l.logger.Error()}
}

// Debug returns a debug log event
func (l *LoggerAdapter) Debug() LogEvent {
	return &LogEventAdapter{event: l.logger.Debug()}
}

// LogEventAdapter adapts a zerolog event to the queue log event interface.
// A nil event (level disabled) is safe to use.
type LogEventAdapter struct {
	event *zerolog.Event
}

// Msg logs a message
func (l *LogEventAdapter) Msg(msg string) {
	l.event.Msg(msg)
}

// Err adds an error to the log event
func (l *LogEventAdapter) Err(err error) LogEvent {
	l.event = l.event.Err(err)

	return l
}

// Str adds a string field to the log event
func (l *LogEventAdapter) Str(key, value string) LogEvent {
	l.event = l.event.Str(key, value)

	return l
}

// Int adds an integer field to the log event
func (l *LogEventAdapter) Int(key string, value int) LogEvent {
	l.event = l.event.Int(key, value)

	return l
}
