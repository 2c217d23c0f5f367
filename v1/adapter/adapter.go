// Package adapter provides the key-value backends the lock protocol runs on.
// A backend only needs get, set and remove on string keys: no compare-and-swap,
// no expiry and no notifications are expected from it.
package adapter

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Store abstracts the shared key-value medium.
type Store interface {
	// Get retrieves the value for a key. The boolean return indicates whether
	// the key was found.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores the value for a key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error
	// Remove deletes a key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// Lister is implemented by stores that can enumerate their keys. It is used
// by tooling to inspect leftover lock records, never by the protocol.
type Lister interface {
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// InMemoryStore is a simple Store implementation backed by a map. It is safe
// for concurrent use, so several clients in one process can share it.
type InMemoryStore struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewInMemoryStore returns a new InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{items: make(map[string]string)}
}

// Get implements Store.Get.
func (s *InMemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	v, ok := s.items[key]
	s.mu.RUnlock()
	return v, ok, nil
}

// Set implements Store.Set.
func (s *InMemoryStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.items[key] = value
	s.mu.Unlock()
	return nil
}

// Remove implements Store.Remove.
func (s *InMemoryStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// Keys implements Lister.Keys. Keys are returned sorted.
func (s *InMemoryStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of stored keys.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
