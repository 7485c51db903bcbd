package backoff

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/architeacher/svc-msg-queue/internal/config"
)

type (
	// Strategy defines the wait between two polls of an empty queue.
	Strategy interface {
		// Backoff returns the amount of time to wait before the next poll given
		// the number of consecutive empty polls.
		Backoff(emptyPolls int) time.Duration
	}

	// Exponential grows the poll interval of a blocking read geometrically from BaseDelay.
	Exponential struct {
		config config.BackoffConfig
	}
)

func NewExponentialStrategy(cfg config.BackoffConfig) Exponential {
	return Exponential{
		config: cfg,
	}
}

// Backoff returns the wait after emptyPolls consecutive empty polls.
//
// Jitter spreads consumers that block on the same queue apart so they do not poll the backend
// in lockstep. The result is capped at MaxDelay after jitter is applied: MaxDelay is the
// longest a blocking pull may take to notice a new message.
func (bc Exponential) Backoff(emptyPolls int) time.Duration {
	if emptyPolls <= 0 {
		return bc.config.BaseDelay
	}

	maxDelay := float64(bc.config.MaxDelay)
	wait := math.Min(float64(bc.config.BaseDelay)*math.Pow(bc.config.Multiplier, float64(emptyPolls)), maxDelay)

	wait *= 1 + bc.config.Jitter*(rand.Float64()*2-1)

	return time.Duration(math.Max(0, math.Min(wait, maxDelay)))
}
