package main

import (
	"fmt"

	nats "github.com/nats-io/nats.go"
	redis "github.com/redis/go-redis/v9"

	"github.com/mirkobrombin/go-fastmutex/v1/adapter"
)

// openStore connects the configured backend. The returned close func
// releases the connection and is never nil.
func openStore(c config) (adapter.Store, func(), error) {
	var (
		store   adapter.Store
		closeFn = func() {}
	)
	switch c.Backend {
	case "memory":
		store = adapter.NewInMemoryStore()
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
		store = adapter.NewRedisStore(client)
		closeFn = func() { _ = client.Close() }
	case "nats":
		nc, err := nats.Connect(c.NATSURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect nats: %w", err)
		}
		s, err := adapter.OpenNATSStore(nc, c.NATSBucket)
		if err != nil {
			nc.Close()
			return nil, nil, fmt.Errorf("open bucket %q: %w", c.NATSBucket, err)
		}
		store = s
		closeFn = nc.Close
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Breaker > 0 {
		store = adapter.NewBreakerStore(store, c.Breaker, c.Timeout)
	}
	return store, closeFn, nil
}

// unwrapLister finds a Lister behind the optional breaker.
func unwrapLister(s adapter.Store) (adapter.Lister, bool) {
	if b, ok := s.(*adapter.BreakerStore); ok {
		s = b.Inner()
	}
	l, ok := s.(adapter.Lister)
	return l, ok
}
