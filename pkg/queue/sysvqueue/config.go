package sysvqueue

import (
	"os"
	"unicode/utf8"

	"github.com/architeacher/svc-msg-queue/pkg/queue"
)

const (
	// DefaultKeyPath is the path token the kernel key is derived from.
	DefaultKeyPath = "/tmp"
	// DefaultPermissions are the permission bits of a newly created kernel queue.
	DefaultPermissions os.FileMode = 0o666
	// DefaultMaxMessageSize is the largest envelope, in bytes, a receive accepts.
	DefaultMaxMessageSize = 8192
)

// Config is used to open a System V message queue.
type Config struct {
	// ID names the queue and must be exactly one ASCII character.
	ID             string
	Label          string
	KeyPath        string
	Permissions    os.FileMode
	MaxMessageSize int
}

func (c Config) withDefaults() Config {
	if c.KeyPath == "" {
		c.KeyPath = DefaultKeyPath
	}
	if c.Permissions == 0 {
		c.Permissions = DefaultPermissions
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}

	return c
}

func (c Config) validate() error {
	if len(c.ID) != 1 || !utf8.ValidString(c.ID) {
		return queue.NewConfigError("id", "must be exactly one character")
	}
	if c.Permissions&^os.ModePerm != 0 {
		return queue.NewConfigError("permissions", "only permission bits are allowed")
	}

	return nil
}
