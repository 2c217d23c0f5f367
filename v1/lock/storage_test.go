package lock

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mirkobrombin/go-fastmutex/v1/adapter"
)

func TestStorageWritesEnvelope(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	backend := adapter.NewInMemoryStore()
	s := competitor(backend, clock, 5*time.Second)

	if err := s.set(ctx, "k", "client-1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	raw, ok, _ := backend.Get(ctx, "k")
	if !ok {
		t.Fatal("record not written")
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		t.Fatalf("record is not JSON: %v", err)
	}
	if fields["value"] != "client-1" {
		t.Fatalf("unexpected value in %s", raw)
	}
	want := float64(clock.Now().Add(5 * time.Second).UnixMilli())
	if fields["expiresAt"] != want {
		t.Fatalf("expected expiresAt %v, got %v", want, fields["expiresAt"])
	}
}

func TestStorageExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	backend := adapter.NewInMemoryStore()
	ttl := time.Second
	s := competitor(backend, clock, ttl)

	if err := s.set(ctx, "k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	// a record stays readable until ttl has passed after its expiry stamp
	clock.Advance(2*ttl - time.Millisecond)
	if v, ok, err := s.get(ctx, "k"); err != nil || !ok || v != "v" {
		t.Fatalf("expected live record, got %q %v %v", v, ok, err)
	}
	clock.Advance(time.Millisecond)
	if _, ok, err := s.get(ctx, "k"); err != nil || ok {
		t.Fatalf("expected expired record, got ok %v err %v", ok, err)
	}
	if _, ok, _ := backend.Get(ctx, "k"); ok {
		t.Fatal("expired record not removed from backend")
	}
}

func TestStorageMalformedRecord(t *testing.T) {
	ctx := context.Background()
	backend := adapter.NewInMemoryStore()
	_ = backend.Set(ctx, "k", "not-json")
	s := competitor(backend, newFakeClock(), time.Second)

	v, ok, err := s.get(ctx, "k")
	if err != nil || ok || v != "" {
		t.Fatalf("malformed record should read as absent, got %q %v %v", v, ok, err)
	}
	if _, ok, _ := backend.Get(ctx, "k"); !ok {
		t.Fatal("malformed record should be left in place")
	}
}

func TestStorageGobCodec(t *testing.T) {
	ctx := context.Background()
	backend := adapter.NewInMemoryStore()
	s := &storage{backend: backend, codec: GobCodec{}, clock: newFakeClock(), ttl: time.Second, logger: discard}

	if err := s.set(ctx, "k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, ok, err := s.get(ctx, "k"); err != nil || !ok || v != "v" {
		t.Fatalf("get: %q %v %v", v, ok, err)
	}
}

func TestLockWithGobCodec(t *testing.T) {
	ctx := context.Background()
	store := adapter.NewInMemoryStore()
	m := newTestMutex(store, newFakeClock(), WithCodec(GobCodec{}))
	if _, err := m.Lock(ctx, "job"); err != nil {
		t.Fatalf("lock: %v", err)
	}
	other := newTestMutex(store, newFakeClock(), WithCodec(GobCodec{}), WithTimeout(10*time.Millisecond))
	if _, err := other.Lock(ctx, "job"); !errors.Is(err, ErrAcquireTimeout) {
		t.Fatalf("gob clients should see each other, got %v", err)
	}
}

type errStore struct {
	*adapter.InMemoryStore
	err error
}

func (s errStore) Get(context.Context, string) (string, bool, error) { return "", false, s.err }

func TestStorageGetPropagatesBackendError(t *testing.T) {
	boom := errors.New("boom")
	s := competitor(errStore{adapter.NewInMemoryStore(), boom}, newFakeClock(), time.Second)
	if _, _, err := s.get(context.Background(), "k"); !errors.Is(err, boom) {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestStorageSubMillisecondTTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	backend := adapter.NewInMemoryStore()
	s := competitor(backend, clock, 500*time.Microsecond)

	if err := s.set(ctx, "k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, ok, err := s.get(ctx, "k"); err != nil || !ok || v != "v" {
		t.Fatalf("fresh record should be readable, got %q %v %v", v, ok, err)
	}
	clock.Advance(time.Millisecond)
	if _, ok, _ := s.get(ctx, "k"); ok {
		t.Fatal("record should expire once ttl has passed after its stamp")
	}
}
