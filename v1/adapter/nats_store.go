package adapter

import (
	"context"
	stdErrors "errors"

	nats "github.com/nats-io/nats.go"

	fmerrors "github.com/mirkobrombin/go-fastmutex/v1/errors"
)

// DefaultNATSBucket is the JetStream key-value bucket used when none is given.
const DefaultNATSBucket = "fastmutex"

// NATSStore implements Store on top of a NATS JetStream key-value bucket.
// Only plain Get/Put/Delete are used; bucket TTLs and revision checks are
// left alone so the bucket behaves like any other dumb store.
//
// NATS restricts keys to letters, digits and "-_=./", so lock keys and
// prefixes must stay within that set.
type NATSStore struct {
	kv nats.KeyValue
}

// NewNATSStore returns a NATSStore using an existing key-value bucket.
func NewNATSStore(kv nats.KeyValue) *NATSStore {
	return &NATSStore{kv: kv}
}

// OpenNATSStore binds to bucket on conn, creating it when it does not exist.
func OpenNATSStore(conn *nats.Conn, bucket string) (*NATSStore, error) {
	if bucket == "" {
		bucket = DefaultNATSBucket
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, err
	}
	kv, err := js.KeyValue(bucket)
	if stdErrors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{Bucket: bucket, History: 1})
	}
	if err != nil {
		return nil, mapNATSErr(err)
	}
	return &NATSStore{kv: kv}, nil
}

// Get implements Store.Get.
func (s *NATSStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, mapNATSErr(err)
	}
	entry, err := s.kv.Get(key)
	if stdErrors.Is(err, nats.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, mapNATSErr(err)
	}
	return string(entry.Value()), true, nil
}

// Set implements Store.Set.
func (s *NATSStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return mapNATSErr(err)
	}
	if _, err := s.kv.PutString(key, value); err != nil {
		return mapNATSErr(err)
	}
	return nil
}

// Remove implements Store.Remove.
func (s *NATSStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return mapNATSErr(err)
	}
	if err := s.kv.Delete(key); err != nil && !stdErrors.Is(err, nats.ErrKeyNotFound) {
		return mapNATSErr(err)
	}
	return nil
}

// Keys implements Lister.Keys.
func (s *NATSStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, mapNATSErr(err)
	}
	all, err := s.kv.Keys()
	if stdErrors.Is(err, nats.ErrNoKeysFound) {
		return nil, nil
	}
	if err != nil {
		return nil, mapNATSErr(err)
	}
	keys := all[:0]
	for _, k := range all {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func mapNATSErr(err error) error {
	switch {
	case stdErrors.Is(err, context.DeadlineExceeded), stdErrors.Is(err, nats.ErrTimeout):
		return fmerrors.ErrTimeout
	case stdErrors.Is(err, nats.ErrConnectionClosed):
		return fmerrors.ErrConnectionClosed
	default:
		return err
	}
}
