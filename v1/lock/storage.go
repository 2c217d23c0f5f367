package lock

import (
	"context"
	"log/slog"
	"time"

	"github.com/mirkobrombin/go-fastmutex/v1/adapter"
)

// storage wraps a backend with the expiry envelope. Every write is stamped
// with now+ttl; reads drop and delete records whose expiry lies ttl or more
// in the past. There is no background sweep.
type storage struct {
	backend adapter.Store
	codec   Codec
	clock   Clock
	ttl     time.Duration
	logger  *slog.Logger
}

func (s *storage) set(ctx context.Context, key, value string) error {
	rec := Record{
		ExpiresAt: s.clock.Now().Add(s.ttl).UnixMilli(),
		Value:     value,
	}
	data, err := s.codec.Marshal(rec)
	if err != nil {
		return err
	}
	return s.backend.Set(ctx, key, string(data))
}

// get returns the live value stored under key. Malformed records read as
// absent. Expired records read as absent and are removed.
func (s *storage) get(ctx context.Context, key string) (string, bool, error) {
	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}
	var rec Record
	if err := s.codec.Unmarshal([]byte(raw), &rec); err != nil {
		s.logger.Debug("fastmutex: ignoring malformed record", "key", key, "error", err)
		return "", false, nil
	}
	if s.clock.Now().Sub(time.UnixMilli(rec.ExpiresAt)) >= s.ttl {
		s.logger.Debug("fastmutex: removing expired record", "key", key, "value", rec.Value)
		if err := s.backend.Remove(ctx, key); err != nil {
			return "", false, err
		}
		return "", false, nil
	}
	return rec.Value, true, nil
}

func (s *storage) remove(ctx context.Context, key string) error {
	return s.backend.Remove(ctx, key)
}
