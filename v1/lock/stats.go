package lock

import "time"

// Stats accumulates what happened during one attempt chain, that is every
// retry belonging to a single Lock call, and how long the lock was then held.
// Zero times mean "not set".
type Stats struct {
	RestartCount    int
	LocksLost       int
	ContentionCount int

	AcquireStart    time.Time
	AcquireEnd      time.Time
	AcquireDuration time.Duration

	LockStart    time.Time
	LockEnd      time.Time
	LockDuration time.Duration
}

// acquired stamps the end of a successful chain and returns the snapshot
// handed to the caller. The accumulator keeps no start time afterwards.
func (s *Stats) acquired(now time.Time) Stats {
	s.AcquireEnd = now
	s.AcquireDuration = now.Sub(s.AcquireStart)
	s.LockStart = now
	snap := *s
	s.AcquireStart = time.Time{}
	return snap
}

// failed closes a chain that did not get the lock.
func (s *Stats) failed(now time.Time) Stats {
	s.AcquireEnd = now
	s.AcquireDuration = now.Sub(s.AcquireStart)
	s.AcquireStart = time.Time{}
	return *s
}

// released closes the hold period started by acquired.
func (s *Stats) released(now time.Time) Stats {
	s.LockEnd = now
	if !s.LockStart.IsZero() {
		s.LockDuration = now.Sub(s.LockStart)
	}
	s.AcquireStart = time.Time{}
	return *s
}
