package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mirkobrombin/go-fastmutex/v1/adapter"
	"github.com/mirkobrombin/go-fastmutex/v1/lock"
)

// report aggregates the stats of every lock call of a run.
type report struct {
	Acquired    int
	Timeouts    int
	Restarts    int
	Contentions int
	LocksLost   int
	Violations  int

	TotalAcquire time.Duration
	MaxAcquire   time.Duration
	TotalHold    time.Duration
	Elapsed      time.Duration

	Leftover []string
}

func (r *report) add(st lock.Stats) {
	r.Restarts += st.RestartCount
	r.Contentions += st.ContentionCount
	r.LocksLost += st.LocksLost
	r.TotalAcquire += st.AcquireDuration
	if st.AcquireDuration > r.MaxAcquire {
		r.MaxAcquire = st.AcquireDuration
	}
}

func (r *report) print(w io.Writer) {
	fmt.Fprintf(w, "acquired:      %d\n", r.Acquired)
	fmt.Fprintf(w, "timeouts:      %d\n", r.Timeouts)
	fmt.Fprintf(w, "restarts:      %d\n", r.Restarts)
	fmt.Fprintf(w, "contentions:   %d\n", r.Contentions)
	fmt.Fprintf(w, "locks lost:    %d\n", r.LocksLost)
	fmt.Fprintf(w, "violations:    %d\n", r.Violations)
	if r.Acquired > 0 {
		fmt.Fprintf(w, "avg acquire:   %s\n", r.TotalAcquire/time.Duration(r.Acquired))
		fmt.Fprintf(w, "avg hold:      %s\n", r.TotalHold/time.Duration(r.Acquired))
	}
	fmt.Fprintf(w, "max acquire:   %s\n", r.MaxAcquire)
	fmt.Fprintf(w, "elapsed:       %s\n", r.Elapsed)
	fmt.Fprintf(w, "leftover Y:    %d\n", len(r.Leftover))
	for _, k := range r.Leftover {
		fmt.Fprintf(w, "  %s\n", k)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if cfg.Procs > 0 {
		defer runtime.GOMAXPROCS(runtime.GOMAXPROCS(cfg.Procs))
	}
	if cfg.MetricsAddr != "" {
		stop := serveMetrics(cfg.MetricsAddr, logger)
		defer stop()
	}
	opts := append(cfg.lockOptions(), lock.WithLogger(logger))
	if cfg.Trace {
		tp, err := newTracerProvider(os.Stderr)
		if err != nil {
			return err
		}
		defer func() { _ = tp.Shutdown(context.Background()) }()
		opts = append(opts, lock.WithTracerProvider(tp))
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	logger.Info("starting stress run",
		"backend", cfg.Backend,
		"clients", cfg.Clients,
		"keys", cfg.Keys,
		"rounds", cfg.Rounds,
		"timeout", cfg.Timeout,
	)
	rep, err := runStress(ctx, store, cfg, logger, opts...)
	if err != nil {
		return err
	}
	rep.print(cmd.OutOrStdout())
	logMemStats(logger)

	if rep.Violations > 0 {
		return fmt.Errorf("mutual exclusion violated %d times", rep.Violations)
	}
	return nil
}

// runStress lets c.Clients clients lock every key c.Rounds times on store.
// Timeouts are counted, any other error aborts the run.
func runStress(ctx context.Context, store adapter.Store, c config, logger *slog.Logger, opts ...lock.Option) (*report, error) {
	rep := &report{}
	var mu sync.Mutex
	occupancy := make([]atomic.Int32, c.Keys)

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < c.Clients; i++ {
		m := lock.NewFastMutex(store, append(opts, lock.WithClientID(fmt.Sprintf("stress-%d", i)))...)
		g.Go(func() error {
			for r := 0; r < c.Rounds; r++ {
				for k := 0; k < c.Keys; k++ {
					key := fmt.Sprintf("stress-key-%d", k)
					st, err := m.Lock(gctx, key)
					if errors.Is(err, lock.ErrAcquireTimeout) {
						mu.Lock()
						rep.Timeouts++
						rep.add(st)
						mu.Unlock()
						continue
					}
					if err != nil {
						return fmt.Errorf("%s: lock %s: %w", m.ID(), key, err)
					}

					overlap := occupancy[k].Add(1) != 1
					if overlap {
						logger.Error("critical sections overlap", "key", key, "client", m.ID())
					}
					sleep(gctx, c.Hold)
					occupancy[k].Add(-1)

					rel, err := m.Release(gctx, key)
					if err != nil {
						return fmt.Errorf("%s: release %s: %w", m.ID(), key, err)
					}
					mu.Lock()
					rep.Acquired++
					rep.add(st)
					rep.TotalHold += rel.LockDuration
					if overlap {
						rep.Violations++
					}
					mu.Unlock()
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	rep.Elapsed = time.Since(start)

	if l, ok := unwrapLister(store); ok {
		prefix := lock.DefaultYPrefix
		keys, err := l.Keys(ctx, prefix)
		if err != nil {
			logger.Warn("could not list leftover records", "error", err)
		}
		rep.Leftover = keys
	}
	return rep, nil
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func logMemStats(logger *slog.Logger) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	logger.Info("memory",
		"alloc_mib", m.Alloc/1024/1024,
		"total_alloc_mib", m.TotalAlloc/1024/1024,
		"sys_mib", m.Sys/1024/1024,
		"num_gc", m.NumGC,
	)
}
