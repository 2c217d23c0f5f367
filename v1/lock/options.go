package lock

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultXPrefix namespaces the intent records.
	DefaultXPrefix = "_MUTEX_LOCK_X_"
	// DefaultYPrefix namespaces the ownership records.
	DefaultYPrefix = "_MUTEX_LOCK_Y_"
	// DefaultTimeout bounds a whole acquisition and is also the record TTL.
	DefaultTimeout = 5 * time.Second
)

// Option configures a FastMutex.
type Option func(*FastMutex)

// WithClientID sets the identity written into X and Y. It must be unique
// among all clients sharing the store. Empty ids are ignored and a random
// one is used.
func WithClientID(id string) Option {
	return func(m *FastMutex) {
		if id != "" {
			m.id = id
		}
	}
}

// WithPrefixes sets the key prefixes of the X and Y records. Clients using
// different prefixes never see each other's records, so unrelated users can
// share one physical store. Empty prefixes keep the defaults.
func WithPrefixes(x, y string) Option {
	return func(m *FastMutex) {
		if x != "" {
			m.xPrefix = x
		}
		if y != "" {
			m.yPrefix = y
		}
	}
}

// WithTimeout sets the acquisition budget of a Lock call. The same value is
// used as TTL for every record written. Records carry millisecond expiry
// stamps, so values below one millisecond are ignored.
func WithTimeout(d time.Duration) Option {
	return func(m *FastMutex) {
		if d >= time.Millisecond {
			m.timeout = d
		}
	}
}

// WithSettleDelay sets the pause taken after a contention is detected.
func WithSettleDelay(d time.Duration) Option {
	return func(m *FastMutex) {
		if d > 0 {
			m.backoff.Settle = d
		}
	}
}

// WithBackoff replaces both delays at once. A non-positive Settle keeps the
// current settle delay, since contention resolution depends on it.
func WithBackoff(b Backoff) Option {
	return func(m *FastMutex) {
		if b.Settle <= 0 {
			b.Settle = m.backoff.Settle
		}
		m.backoff = b
	}
}

// WithClock sets the time source. Mainly useful in tests.
func WithClock(c Clock) Option {
	return func(m *FastMutex) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithCodec sets the record codec. JSONCodec is the default.
func WithCodec(c Codec) Option {
	return func(m *FastMutex) {
		if c != nil {
			m.codec = c
		}
	}
}

// WithLogger sets the logger used for protocol transitions. Defaults to
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *FastMutex) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithTracing enables OpenTelemetry spans for Lock and Release using the
// global tracer provider.
func WithTracing() Option {
	return func(m *FastMutex) {
		m.tracer = otel.Tracer(tracerName)
	}
}

// WithTracerProvider enables spans using tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *FastMutex) {
		if tp != nil {
			m.tracer = tp.Tracer(tracerName)
		}
	}
}
