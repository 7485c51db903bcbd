package infrastructure

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/architeacher/svc-msg-queue/internal/config"
	"github.com/architeacher/svc-msg-queue/pkg/queue"
)

// Logger is the application logger.
type Logger struct {
	zerolog.Logger
}

// New builds the application logger from the logging settings. Unknown levels fall back to info.
func New(cfg config.LoggingConfig) Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter is New writing to out.
func NewWithWriter(cfg config.LoggingConfig, out io.Writer) Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	writer := out
	if strings.EqualFold(cfg.Format, "console") {
		writer = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return Logger{
		Logger: zerolog.New(writer).
			Level(level).
			With().
			Timestamp().
			Logger(),
	}
}

// NewTestLogger returns a logger discarding everything.
func NewTestLogger() Logger {
	return Logger{Logger: zerolog.Nop()}
}

// Component returns a child logger tagged with the component name.
func (l Logger) Component(name string) Logger {
	return Logger{Logger: l.With().Str("component", name).Logger()}
}

// QueueLogger adapts the logger to the queue package logging interface.
func (l Logger) QueueLogger() queue.Logger {
	return queue.NewLoggerAdapter(l.Logger)
}
