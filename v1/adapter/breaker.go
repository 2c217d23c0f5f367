package adapter

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/sony/gobreaker/v2"

	fmerrors "github.com/mirkobrombin/go-fastmutex/v1/errors"
)

// BreakerStore decorates a Store with circuit breaker logic. Once the
// backend fails threshold times in a row every call fails fast with
// ErrStoreUnavailable until timeout has passed and a probe succeeds.
//
// The breaker never retries: a failed call is still a failed call for the
// lock attempt that issued it.
type BreakerStore struct {
	inner Store
	cb    *gobreaker.CircuitBreaker[lookup]
}

// NewBreakerStore returns a new BreakerStore around inner.
func NewBreakerStore(inner Store, threshold int, timeout time.Duration) *BreakerStore {
	if threshold <= 0 {
		threshold = 5
	}
	st := gobreaker.Settings{
		Name:        "fastmutex-store",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(threshold)
		},
		// caller cancellation says nothing about backend health
		IsSuccessful: func(err error) bool {
			return err == nil || stdErrors.Is(err, context.Canceled)
		},
	}
	return &BreakerStore{inner: inner, cb: gobreaker.NewCircuitBreaker[lookup](st)}
}

// IsHealthy returns true unless the circuit is open.
func (b *BreakerStore) IsHealthy() bool {
	return b.cb.State() != gobreaker.StateOpen
}

// Inner returns the wrapped store.
func (b *BreakerStore) Inner() Store { return b.inner }

type lookup struct {
	value string
	found bool
}

// Get implements Store.Get.
func (b *BreakerStore) Get(ctx context.Context, key string) (string, bool, error) {
	res, err := b.cb.Execute(func() (lookup, error) {
		v, ok, err := b.inner.Get(ctx, key)
		return lookup{value: v, found: ok}, err
	})
	if err != nil {
		return "", false, mapBreakerErr(err)
	}
	return res.value, res.found, nil
}

// Set implements Store.Set.
func (b *BreakerStore) Set(ctx context.Context, key, value string) error {
	_, err := b.cb.Execute(func() (lookup, error) {
		return lookup{}, b.inner.Set(ctx, key, value)
	})
	return mapBreakerErr(err)
}

// Remove implements Store.Remove.
func (b *BreakerStore) Remove(ctx context.Context, key string) error {
	_, err := b.cb.Execute(func() (lookup, error) {
		return lookup{}, b.inner.Remove(ctx, key)
	})
	return mapBreakerErr(err)
}

func mapBreakerErr(err error) error {
	if stdErrors.Is(err, gobreaker.ErrOpenState) || stdErrors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmerrors.ErrStoreUnavailable
	}
	return err
}
