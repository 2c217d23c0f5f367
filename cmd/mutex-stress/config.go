package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mirkobrombin/go-fastmutex/v1/adapter"
	"github.com/mirkobrombin/go-fastmutex/v1/lock"
)

type config struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	NATSURL       string
	NATSBucket    string

	Clients    int
	Keys       int
	Rounds     int
	Hold       time.Duration
	Timeout    time.Duration
	Settle     time.Duration
	Reschedule time.Duration
	Procs      int
	Codec      string
	Breaker    int

	MetricsAddr string
	Trace       bool
	LogLevel    string
	LogFormat   string
}

var cfg config

func setupFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("backend", "memory", "store backend (memory, redis, nats)")
	f.String("redis-addr", "localhost:6379", "redis address")
	f.String("redis-password", "", "redis password")
	f.Int("redis-db", 0, "redis database")
	f.String("nats-url", "nats://127.0.0.1:4222", "nats server url")
	f.String("nats-bucket", adapter.DefaultNATSBucket, "jetstream key-value bucket")

	f.Int("clients", 4, "number of competing clients")
	f.Int("keys", 3, "number of distinct lock keys")
	f.Int("rounds", 10, "lock/release rounds per client and key")
	f.Duration("hold", 2*time.Millisecond, "time spent inside each critical section")
	f.Duration("timeout", lock.DefaultTimeout, "acquisition budget and record ttl")
	f.Duration("settle", lock.DefaultBackoff().Settle, "pause after a detected contention")
	f.Duration("reschedule", lock.DefaultBackoff().Reschedule, "pause before a retry, 0 yields")
	f.Int("procs", 0, "GOMAXPROCS for the run, 0 keeps the current value")
	f.String("codec", "json", "record codec (json, gob)")
	f.Int("breaker", 0, "open a circuit breaker after this many consecutive store failures, 0 disables")

	f.String("metrics-addr", "", "serve prometheus metrics on this address while running")
	f.Bool("trace", false, "print OpenTelemetry spans to stderr")
	f.String("log-level", "info", "log level (debug, info, warn, error)")
	f.String("log-format", "text", "log format (text, json)")
}

// initConfig loads .env files and environment variables.
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("fastmutex")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func processConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	c, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	cfg = c
	return nil
}

func loadConfig(v *viper.Viper) (config, error) {
	c := config{
		Backend:       strings.ToLower(v.GetString("backend")),
		RedisAddr:     v.GetString("redis-addr"),
		RedisPassword: v.GetString("redis-password"),
		RedisDB:       v.GetInt("redis-db"),
		NATSURL:       v.GetString("nats-url"),
		NATSBucket:    v.GetString("nats-bucket"),
		Clients:       v.GetInt("clients"),
		Keys:          v.GetInt("keys"),
		Rounds:        v.GetInt("rounds"),
		Hold:          v.GetDuration("hold"),
		Timeout:       v.GetDuration("timeout"),
		Settle:        v.GetDuration("settle"),
		Reschedule:    v.GetDuration("reschedule"),
		Procs:         v.GetInt("procs"),
		Codec:         strings.ToLower(v.GetString("codec")),
		Breaker:       v.GetInt("breaker"),
		MetricsAddr:   v.GetString("metrics-addr"),
		Trace:         v.GetBool("trace"),
		LogLevel:      v.GetString("log-level"),
		LogFormat:     strings.ToLower(v.GetString("log-format")),
	}

	switch c.Backend {
	case "memory", "redis", "nats":
	default:
		return c, fmt.Errorf("invalid backend %q (expected memory, redis or nats)", c.Backend)
	}
	switch c.Codec {
	case "json", "gob":
	default:
		return c, fmt.Errorf("invalid codec %q (expected json or gob)", c.Codec)
	}
	if c.Clients < 1 || c.Keys < 1 || c.Rounds < 1 {
		return c, fmt.Errorf("clients, keys and rounds must be positive")
	}
	if c.Timeout < time.Millisecond {
		return c, fmt.Errorf("timeout must be at least 1ms, got %s", c.Timeout)
	}
	if c.Settle <= 0 {
		return c, fmt.Errorf("settle must be positive, got %s", c.Settle)
	}
	return c, nil
}

func (c config) lockOptions() []lock.Option {
	opts := []lock.Option{
		lock.WithTimeout(c.Timeout),
		lock.WithBackoff(lock.Backoff{Reschedule: c.Reschedule, Settle: c.Settle}),
	}
	if c.Codec == "gob" {
		opts = append(opts, lock.WithCodec(lock.GobCodec{}))
	}
	return opts
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (expected text or json)", format)
	}
}
