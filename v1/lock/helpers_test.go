package lock

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/mirkobrombin/go-fastmutex/v1/adapter"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeClock fires every timer immediately and moves time forward by the
// requested duration, so protocol runs are deterministic.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.waits = append(c.waits, d)
	now := c.now
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.waits...)
}

// hookStore lets a test play the other contenders: hooks run after the
// wrapped call and act on the inner store directly.
type hookStore struct {
	*adapter.InMemoryStore
	mu       sync.Mutex
	afterSet func(key, value string)
	afterGet func(key, value string, ok bool)
	failSet  error
}

func newHookStore() *hookStore {
	return &hookStore{InMemoryStore: adapter.NewInMemoryStore()}
}

func (h *hookStore) Set(ctx context.Context, key, value string) error {
	h.mu.Lock()
	fail, hook := h.failSet, h.afterSet
	h.mu.Unlock()
	if fail != nil {
		return fail
	}
	if err := h.InMemoryStore.Set(ctx, key, value); err != nil {
		return err
	}
	if hook != nil {
		hook(key, value)
	}
	return nil
}

func (h *hookStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := h.InMemoryStore.Get(ctx, key)
	h.mu.Lock()
	hook := h.afterGet
	h.mu.Unlock()
	if err == nil && hook != nil {
		hook(key, v, ok)
	}
	return v, ok, err
}

func (h *hookStore) setFailure(err error) {
	h.mu.Lock()
	h.failSet = err
	h.mu.Unlock()
}

// competitor writes records the way another client would.
func competitor(backend adapter.Store, clock Clock, ttl time.Duration) *storage {
	return &storage{backend: backend, codec: JSONCodec{}, clock: clock, ttl: ttl, logger: discard}
}

func decodeValue(t *testing.T, raw string) string {
	t.Helper()
	var rec Record
	if err := (JSONCodec{}).Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatalf("decode %q: %v", raw, err)
	}
	return rec.Value
}

func newTestMutex(store adapter.Store, clock Clock, opts ...Option) *FastMutex {
	base := []Option{WithClock(clock), WithLogger(discard)}
	return NewFastMutex(store, append(base, opts...)...)
}
