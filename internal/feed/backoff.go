package feed

import (
	"math"
	"math/rand"
	"time"
)

// Backoff shapes reconnect delays: exponential growth between Min and
// Max with optional jitter.
type Backoff struct {
	Min    time.Duration
	Max    time.Duration
	Factor float64
	Jitter float64
}

// DefaultBackoff provides conservative reconnect defaults.
func DefaultBackoff() Backoff {
	return Backoff{
		Min:    250 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2.0,
		Jitter: 0.2,
	}
}

// Next returns the delay before the given reconnect attempt (1-based).
// A zero-value Backoff still yields sane delays.
func (b Backoff) Next(attempt int) time.Duration {
	floor, ceil, factor := b.Min, b.Max, b.Factor
	if floor <= 0 {
		floor = 100 * time.Millisecond
	}
	if ceil <= 0 {
		ceil = 5 * time.Second
	}
	if factor <= 1 {
		factor = 2.0
	}
	if attempt < 1 {
		attempt = 1
	}

	wait := math.Min(
		float64(floor)*math.Pow(factor, float64(attempt-1)),
		float64(ceil),
	)
	if jitter := math.Min(b.Jitter, 1); jitter > 0 {
		spread := wait * jitter
		wait += rand.Float64()*2*spread - spread
	}
	return time.Duration(wait)
}
