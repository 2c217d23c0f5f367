package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/mirkobrombin/go-fastmutex/v1/adapter"
	"github.com/mirkobrombin/go-fastmutex/v1/metrics"
)

const tracerName = "github.com/mirkobrombin/go-fastmutex/v1/lock"

// FastMutex is one client of the protocol. Several FastMutex values, in the
// same process or not, coordinate through the store they share.
//
// A FastMutex is safe for concurrent use on different keys. Calling Lock for
// a key that the same FastMutex is already acquiring or holding fails with
// ErrLockInProgress or ErrAlreadyHeld.
type FastMutex struct {
	id      string
	xPrefix string
	yPrefix string
	timeout time.Duration
	backoff Backoff
	clock   Clock
	codec   Codec
	logger  *slog.Logger
	tracer  trace.Tracer

	store *storage
	sched scheduler

	mu       sync.Mutex
	inflight map[string]struct{}
	held     map[string]*Stats
}

// NewFastMutex returns a client that locks keys on store.
func NewFastMutex(store adapter.Store, opts ...Option) *FastMutex {
	m := &FastMutex{
		id:       uuid.NewString(),
		xPrefix:  DefaultXPrefix,
		yPrefix:  DefaultYPrefix,
		timeout:  DefaultTimeout,
		backoff:  DefaultBackoff(),
		clock:    realClock{},
		codec:    JSONCodec{},
		logger:   slog.Default(),
		inflight: make(map[string]struct{}),
		held:     make(map[string]*Stats),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.store = &storage{
		backend: store,
		codec:   m.codec,
		clock:   m.clock,
		ttl:     m.timeout,
		logger:  m.logger,
	}
	m.sched = scheduler{backoff: m.backoff, clock: m.clock}
	return m
}

// ID returns the client id written into the lock records.
func (m *FastMutex) ID() string { return m.id }

// Timeout returns the acquisition budget.
func (m *FastMutex) Timeout() time.Duration { return m.timeout }

type outcome int

const (
	outcomeRestart outcome = iota
	outcomeAcquired
)

// Lock acquires the lock on key, retrying until it succeeds, the timeout
// elapses, ctx is done or the store fails. On timeout the error is a
// *TimeoutError. The returned Stats describe the whole attempt chain in
// every case.
//
// Cancelling ctx can leave this client's Y record behind. It expires on its
// own, or the caller can Release the key.
func (m *FastMutex) Lock(ctx context.Context, key string) (Stats, error) {
	if err := validateKey(key); err != nil {
		return Stats{}, err
	}
	if err := m.begin(key); err != nil {
		return Stats{}, err
	}
	defer m.finish(key)

	ctx, span := m.startSpan(ctx, "FastMutex.Lock", key)
	defer span.End()

	m.logger.Debug("fastmutex: attempting to acquire lock", "key", key, "client", m.id)
	st := &Stats{AcquireStart: m.clock.Now()}
	if err := m.acquire(ctx, key, st); err != nil {
		snap := st.failed(m.clock.Now())
		var te *TimeoutError
		if errors.As(err, &te) {
			te.Stats = snap
			metrics.TimeoutCounter.Inc()
			m.logger.Warn("fastmutex: lock could not be acquired", "key", key, "client", m.id, "timeout", m.timeout, "restarts", snap.RestartCount)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return snap, err
	}

	snap := st.acquired(m.clock.Now())
	m.mu.Lock()
	m.held[key] = st
	m.mu.Unlock()

	metrics.AcquireCounter.Inc()
	metrics.HeldGauge.Inc()
	metrics.AcquireDuration.Observe(snap.AcquireDuration.Seconds())
	span.SetAttributes(
		attribute.Int("fastmutex.restarts", snap.RestartCount),
		attribute.Int("fastmutex.contentions", snap.ContentionCount),
		attribute.Int("fastmutex.locks_lost", snap.LocksLost),
		attribute.Int64("fastmutex.acquire_ms", snap.AcquireDuration.Milliseconds()),
	)
	return snap, nil
}

// acquire runs attempts until one wins. Each attempt starts with the timeout
// check so a long chain can never outlive its budget.
func (m *FastMutex) acquire(ctx context.Context, key string, st *Stats) error {
	x, y := m.xPrefix+key, m.yPrefix+key
	for attempt := 1; ; attempt++ {
		if elapsed := m.clock.Now().Sub(st.AcquireStart); elapsed >= m.timeout {
			return &TimeoutError{Key: key, Timeout: m.timeout}
		}
		res, err := m.attempt(ctx, key, x, y, st)
		if err != nil {
			return err
		}
		if res == outcomeAcquired {
			return nil
		}
		m.logger.Debug("fastmutex: restarting", "key", key, "client", m.id, "attempt", attempt)
		if err := m.sched.wait(ctx, DelayReschedule); err != nil {
			return err
		}
	}
}

func (m *FastMutex) attempt(ctx context.Context, key, x, y string, st *Stats) (outcome, error) {
	if err := m.store.set(ctx, x, m.id); err != nil {
		return outcomeRestart, fmt.Errorf("fastmutex: set %q: %w", x, err)
	}

	// Y set means another client holds or is taking the lock.
	holder, ok, err := m.store.get(ctx, y)
	if err != nil {
		return outcomeRestart, fmt.Errorf("fastmutex: get %q: %w", y, err)
	}
	if ok {
		m.logger.Debug("fastmutex: lock exists on Y", "key", key, "client", m.id, "holder", holder)
		st.RestartCount++
		metrics.RestartCounter.Inc()
		return outcomeRestart, nil
	}

	if err := m.store.set(ctx, y, m.id); err != nil {
		return outcomeRestart, fmt.Errorf("fastmutex: set %q: %w", y, err)
	}

	last, _, err := m.store.get(ctx, x)
	if err != nil {
		return outcomeRestart, fmt.Errorf("fastmutex: get %q: %w", x, err)
	}
	if last == m.id {
		m.logger.Debug("fastmutex: acquired lock with no contention", "key", key, "client", m.id)
		return outcomeAcquired, nil
	}

	// Someone wrote X after us: let the race settle, then whoever is left
	// on Y owns the lock.
	st.ContentionCount++
	metrics.ContentionCounter.Inc()
	m.logger.Debug("fastmutex: lock contention detected", "key", key, "client", m.id, "x", last)
	if err := m.sched.wait(ctx, DelaySettle); err != nil {
		return outcomeRestart, err
	}
	holder, ok, err = m.store.get(ctx, y)
	if err != nil {
		return outcomeRestart, fmt.Errorf("fastmutex: get %q: %w", y, err)
	}
	if ok && holder == m.id {
		m.logger.Debug("fastmutex: won the lock contention", "key", key, "client", m.id)
		return outcomeAcquired, nil
	}
	st.RestartCount++
	st.LocksLost++
	metrics.RestartCounter.Inc()
	metrics.LocksLostCounter.Inc()
	m.logger.Debug("fastmutex: lost the lock contention", "key", key, "client", m.id, "holder", holder)
	return outcomeRestart, nil
}

// Release frees the lock on key by removing its Y record. Releasing a key
// that is not held is not an error; only a store failure is returned. The
// returned Stats close the hold period started by the matching Lock.
func (m *FastMutex) Release(ctx context.Context, key string) (Stats, error) {
	if err := validateKey(key); err != nil {
		return Stats{}, err
	}
	ctx, span := m.startSpan(ctx, "FastMutex.Release", key)
	defer span.End()

	m.logger.Debug("fastmutex: releasing lock", "key", key, "client", m.id)
	y := m.yPrefix + key
	if err := m.store.remove(ctx, y); err != nil {
		err = fmt.Errorf("fastmutex: remove %q: %w", y, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Stats{}, err
	}

	now := m.clock.Now()
	m.mu.Lock()
	st, ok := m.held[key]
	delete(m.held, key)
	m.mu.Unlock()

	metrics.ReleaseCounter.Inc()
	if !ok {
		st = &Stats{}
	} else {
		metrics.HeldGauge.Dec()
	}
	snap := st.released(now)
	if ok {
		metrics.HoldDuration.Observe(snap.LockDuration.Seconds())
	}
	return snap, nil
}

// Stats returns the stats of a lock currently held by this client.
func (m *FastMutex) Stats(key string) (Stats, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.held[key]
	if !ok {
		return Stats{}, false
	}
	return *st, true
}

func (m *FastMutex) begin(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[key]; ok {
		return ErrAlreadyHeld
	}
	if _, ok := m.inflight[key]; ok {
		return ErrLockInProgress
	}
	m.inflight[key] = struct{}{}
	return nil
}

func (m *FastMutex) finish(key string) {
	m.mu.Lock()
	delete(m.inflight, key)
	m.mu.Unlock()
}

func (m *FastMutex) startSpan(ctx context.Context, name, key string) (context.Context, trace.Span) {
	if m.tracer == nil {
		return ctx, noop.Span{}
	}
	return m.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("fastmutex.key", key),
		attribute.String("fastmutex.client", m.id),
	))
}
