// -----------------------------------------------------------------------
// Backoff Policy - poll-tick pacing for in-flight jobs
// -----------------------------------------------------------------------

package jobs

import (
	"math/rand"
	"time"
)

// Clock abstracts wall time so the poll loop can be driven
// deterministically in tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// systemClock delegates to the time package.
type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock returns the real wall clock.
func SystemClock() Clock {
	return systemClock{}
}

// BackoffPolicy controls the pacing and budget of the status-poll loop.
// The remote backend reports progress on its own schedule, so the delay
// is a fixed interval rather than an exponential ramp; jitter spreads
// ticks out when many jobs poll concurrently.
type BackoffPolicy struct {
	Interval    time.Duration
	Jitter      time.Duration
	MaxAttempts int
}

// Delay returns the wait before the next status query. The attempt number
// is accepted for future shaping but does not change the fixed interval.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	d := p.Interval
	if p.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(p.Jitter)))
	}
	return d
}

// Exhausted reports whether the attempt budget is spent.
func (p BackoffPolicy) Exhausted(attempts int) bool {
	return p.MaxAttempts > 0 && attempts >= p.MaxAttempts
}
