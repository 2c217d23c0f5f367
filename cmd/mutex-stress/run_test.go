package main

import (
	"bytes"
	"context"
	"io"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/viper"

	"github.com/mirkobrombin/go-fastmutex/v1/adapter"
	"github.com/mirkobrombin/go-fastmutex/v1/lock"
)

func testConfig() config {
	return config{
		Backend:    "memory",
		Clients:    3,
		Keys:       2,
		Rounds:     3,
		Hold:       time.Millisecond,
		Timeout:    5 * time.Second,
		Settle:     5 * time.Millisecond,
		Reschedule: time.Millisecond,
		Codec:      "json",
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	v := viper.New()
	if err := v.BindPFlags(rootCmd.Flags()); err != nil {
		t.Fatalf("bind: %v", err)
	}
	c, err := loadConfig(v)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Backend != "memory" || c.Clients != 4 || c.Timeout != lock.DefaultTimeout {
		t.Fatalf("unexpected defaults %+v", c)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]any{
		"backend": {"backend": "etcd"},
		"codec":   {"codec": "xml"},
		"clients": {"clients": 0},
		"timeout": {"timeout": "0s"},
		"settle":  {"settle": "0s"},
	}
	for name, overrides := range cases {
		t.Run(name, func(t *testing.T) {
			v := viper.New()
			v.Set("backend", "memory")
			v.Set("codec", "json")
			v.Set("clients", 1)
			v.Set("keys", 1)
			v.Set("rounds", 1)
			v.Set("timeout", "1s")
			v.Set("settle", "50ms")
			for k, val := range overrides {
				v.Set(k, val)
			}
			if _, err := loadConfig(v); err == nil {
				t.Fatalf("expected error for %v", overrides)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger(&buf, "warn", "json")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	l.Info("hidden")
	l.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), `"msg":"shown"`) {
		t.Fatalf("unexpected output %q", buf.String())
	}
	if _, err := newLogger(io.Discard, "loud", "text"); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if _, err := newLogger(io.Discard, "info", "xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestRunStressMemory(t *testing.T) {
	defer runtime.GOMAXPROCS(runtime.GOMAXPROCS(1))
	logger, _ := newLogger(io.Discard, "error", "text")
	c := testConfig()
	store := adapter.NewInMemoryStore()

	rep, err := runStress(context.Background(), store, c, logger, c.lockOptions()...)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Violations != 0 {
		t.Fatalf("unexpected violations: %d", rep.Violations)
	}
	if rep.Acquired+rep.Timeouts != c.Clients*c.Keys*c.Rounds {
		t.Fatalf("expected %d lock calls, got %d", c.Clients*c.Keys*c.Rounds, rep.Acquired+rep.Timeouts)
	}
	if len(rep.Leftover) != 0 {
		t.Fatalf("expected no leftover Y records, got %v", rep.Leftover)
	}

	var out bytes.Buffer
	rep.print(&out)
	if !strings.Contains(out.String(), "violations:    0") {
		t.Fatalf("unexpected report %q", out.String())
	}
}

func TestOpenStoreRedisWithBreaker(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	defer mr.Close()

	c := testConfig()
	c.Backend = "redis"
	c.RedisAddr = mr.Addr()
	c.Breaker = 3
	store, closeStore, err := openStore(c)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer closeStore()

	if _, ok := store.(*adapter.BreakerStore); !ok {
		t.Fatalf("expected breaker wrapper, got %T", store)
	}
	l, ok := unwrapLister(store)
	if !ok {
		t.Fatal("redis store should list keys")
	}
	m := lock.NewFastMutex(store)
	if _, err := m.Lock(context.Background(), "job"); err != nil {
		t.Fatalf("lock: %v", err)
	}
	keys, err := l.Keys(context.Background(), lock.DefaultYPrefix)
	if err != nil || len(keys) != 1 {
		t.Fatalf("expected one Y record, got %v %v", keys, err)
	}
}

func TestOpenStoreUnknownBackend(t *testing.T) {
	c := testConfig()
	c.Backend = "zookeeper"
	if _, _, err := openStore(c); err == nil {
		t.Fatal("expected error")
	}
}
