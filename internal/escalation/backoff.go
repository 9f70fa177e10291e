package escalation

import (
	"math"
	"math/rand"
	"time"
)

// Backoff computes the exponential, jittered delay between retry attempts:
// 100ms * 2^attempt, jittered +/-20%, capped at MaxDelay.
type Backoff struct {
	Base         time.Duration
	MaxDelay     time.Duration
	JitterFactor float64
}

// DefaultBackoff returns the backoff schedule from spec's retry rule:
// 100ms base, doubling per attempt, +/-20% jitter, capped at 30s.
func DefaultBackoff() Backoff {
	return Backoff{Base: 100 * time.Millisecond, MaxDelay: 30 * time.Second, JitterFactor: 0.2}
}

// Delay returns the jittered delay for the given 1-based attempt number.
func (b Backoff) Delay(attempt int) time.Duration {
	base := b.Base
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	maxDelay := b.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	d := float64(base) * math.Pow(2, float64(attempt))
	if d > float64(maxDelay) {
		d = float64(maxDelay)
	}
	if b.JitterFactor > 0 {
		d = jitter(d, b.JitterFactor)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// DelayNoJitter returns the unjittered delay, for deterministic tests.
func (b Backoff) DelayNoJitter(attempt int) time.Duration {
	base := b.Base
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	maxDelay := b.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	d := float64(base) * math.Pow(2, float64(attempt))
	if d > float64(maxDelay) {
		d = float64(maxDelay)
	}
	return time.Duration(d)
}

func jitter(delay, factor float64) float64 {
	span := delay * factor
	return delay + (rand.Float64()*2-1)*span
}
