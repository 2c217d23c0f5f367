package presets

import (
	"time"

	nats "github.com/nats-io/nats.go"
	redis "github.com/redis/go-redis/v9"

	"github.com/mirkobrombin/go-fastmutex/v1/adapter"
	"github.com/mirkobrombin/go-fastmutex/v1/lock"
)

// RedisOptions configures the connection to Redis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int

	// OpTimeout bounds every single store call. Zero keeps the adapter default.
	OpTimeout time.Duration
	// BreakerThreshold, when positive, wraps the store in a circuit breaker
	// that opens after that many consecutive failures for BreakerTimeout.
	BreakerThreshold int
	BreakerTimeout   time.Duration
}

// NewRedis creates a FastMutex that keeps its records in Redis. The returned
// client is owned by the caller and must be closed once the mutex is no
// longer used.
func NewRedis(opts RedisOptions, lockOpts ...lock.Option) (*lock.FastMutex, *redis.Client) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	var storeOpts []adapter.RedisOption
	if opts.OpTimeout > 0 {
		storeOpts = append(storeOpts, adapter.WithTimeout(opts.OpTimeout))
	}
	var store adapter.Store = adapter.NewRedisStore(client, storeOpts...)
	if opts.BreakerThreshold > 0 {
		store = adapter.NewBreakerStore(store, opts.BreakerThreshold, opts.BreakerTimeout)
	}
	return lock.NewFastMutex(store, lockOpts...), client
}

// NewNATS creates a FastMutex backed by a JetStream key-value bucket on conn.
// The bucket is created if missing; an empty name selects
// adapter.DefaultNATSBucket.
func NewNATS(conn *nats.Conn, bucket string, lockOpts ...lock.Option) (*lock.FastMutex, error) {
	store, err := adapter.OpenNATSStore(conn, bucket)
	if err != nil {
		return nil, err
	}
	return lock.NewFastMutex(store, lockOpts...), nil
}

// NewInMemoryStandalone creates a FastMutex on a private in-process store,
// together with the store so that more clients can be attached to it.
// Useful for local development and tests.
func NewInMemoryStandalone(lockOpts ...lock.Option) (*lock.FastMutex, *adapter.InMemoryStore) {
	store := adapter.NewInMemoryStore()
	return lock.NewFastMutex(store, lockOpts...), store
}
