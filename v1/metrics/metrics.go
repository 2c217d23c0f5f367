package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// AcquireCounter tracks the number of locks acquired.
	AcquireCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fastmutex_acquire_total",
		Help: "Total number of locks acquired",
	})
	// TimeoutCounter tracks acquisitions that ran out of time.
	TimeoutCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fastmutex_acquire_timeout_total",
		Help: "Total number of lock acquisitions that timed out",
	})
	// ContentionCounter tracks detected races on the X record.
	ContentionCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fastmutex_contention_total",
		Help: "Total number of contentions detected while acquiring",
	})
	// RestartCounter tracks attempts that had to start over.
	RestartCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fastmutex_restart_total",
		Help: "Total number of acquisition attempts restarted",
	})
	// LocksLostCounter tracks contentions resolved in favour of another client.
	LocksLostCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fastmutex_locks_lost_total",
		Help: "Total number of contentions lost to another client",
	})
	// ReleaseCounter tracks the number of releases.
	ReleaseCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fastmutex_release_total",
		Help: "Total number of lock releases",
	})
	// HeldGauge reports the number of locks currently held by this process.
	HeldGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fastmutex_locks_held",
		Help: "Current number of locks held",
	})
	// AcquireDuration observes how long successful acquisitions took.
	AcquireDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fastmutex_acquire_duration_seconds",
		Help:    "Time spent acquiring locks",
		Buckets: prometheus.DefBuckets,
	})
	// HoldDuration observes how long locks were held before release.
	HoldDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fastmutex_hold_duration_seconds",
		Help:    "Time locks were held before release",
		Buckets: prometheus.DefBuckets,
	})
)

// NewRegistry creates a new Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// RegisterLockMetrics registers the lock collectors on the provided registry.
// Registering twice on the same registry panics.
func RegisterLockMetrics(reg prometheus.Registerer) {
	reg.MustRegister(
		AcquireCounter,
		TimeoutCounter,
		ContentionCounter,
		RestartCounter,
		LocksLostCounter,
		ReleaseCounter,
		HeldGauge,
		AcquireDuration,
		HoldDuration,
	)
}
