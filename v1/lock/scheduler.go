package lock

import (
	"context"
	"runtime"
	"time"
)

// Delay tags the two pauses the protocol takes between store operations.
type Delay int

const (
	// DelayReschedule precedes a fresh attempt after Y was found set or a
	// contention was lost.
	DelayReschedule Delay = iota
	// DelaySettle follows a detected contention and gives the competitor
	// time to finish its own attempt before Y is checked again.
	DelaySettle
)

func (d Delay) String() string {
	switch d {
	case DelayReschedule:
		return "reschedule"
	case DelaySettle:
		return "settle"
	default:
		return "unknown"
	}
}

const (
	defaultRescheduleDelay = time.Millisecond
	defaultSettleDelay     = 50 * time.Millisecond
)

// Backoff maps each Delay to a duration. A non-positive Reschedule yields
// the goroutine instead of arming a timer. Settle must exceed the time a
// competitor needs to write X, read Y and write Y, otherwise two clients
// can both resolve a contention in their favour.
type Backoff struct {
	Reschedule time.Duration
	Settle     time.Duration
}

// DefaultBackoff returns the delays used when none are configured.
func DefaultBackoff() Backoff {
	return Backoff{Reschedule: defaultRescheduleDelay, Settle: defaultSettleDelay}
}

// Duration returns the pause for d.
func (b Backoff) Duration(d Delay) time.Duration {
	if d == DelaySettle {
		return b.Settle
	}
	return b.Reschedule
}

// Clock supplies time to the protocol. Tests swap it for a fake one.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// scheduler performs the single-shot waits between attempts.
type scheduler struct {
	backoff Backoff
	clock   Clock
}

// wait pauses for the duration tagged by d, or until ctx is done.
func (s scheduler) wait(ctx context.Context, d Delay) error {
	dur := s.backoff.Duration(d)
	if dur <= 0 {
		runtime.Gosched()
		return ctx.Err()
	}
	select {
	case <-s.clock.After(dur):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
