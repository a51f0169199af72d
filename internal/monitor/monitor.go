package monitor

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/kindredgroup/scylla/internal/manager"
	logpkg "github.com/kindredgroup/scylla/pkg/log"
)

// Defaults for the maintenance intervals.
const (
	DefaultResetInterval  = 5 * time.Second
	DefaultDeleteInterval = 60 * time.Second
	DefaultRetention      = 24 * time.Hour
)

// Monitor periodically resets expired leases and deletes retired tasks.
type Monitor struct {
	mgr    *manager.Manager
	logger logpkg.Logger

	resetInterval  time.Duration
	deleteInterval time.Duration
	retention      time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger replaces the monitor logger.
func WithLogger(logger logpkg.Logger) Option {
	return func(m *Monitor) { m.logger = logger.WithComponent("monitor") }
}

// WithResetInterval sets the cadence of the expired-lease sweep.
func WithResetInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.resetInterval = d
		}
	}
}

// WithDeleteInterval sets the cadence of the retired-task sweep.
func WithDeleteInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.deleteInterval = d
		}
	}
}

// WithRetention sets how long terminal tasks are kept before deletion.
func WithRetention(d time.Duration) Option {
	return func(m *Monitor) {
		if d >= 0 {
			m.retention = d
		}
	}
}

// New creates a Monitor over the given manager.
func New(mgr *manager.Manager, opts ...Option) *Monitor {
	m := &Monitor{
		mgr:            mgr,
		logger:         logpkg.NewLogger().WithComponent("monitor"),
		resetInterval:  DefaultResetInterval,
		deleteInterval: DefaultDeleteInterval,
		retention:      DefaultRetention,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the sweep loops. It is a no-op when already running.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.logger.Info("monitor started",
		logpkg.F("reset_interval", m.resetInterval.String()),
		logpkg.F("delete_interval", m.deleteInterval.String()),
		logpkg.F("retention", m.retention.String()))

	m.wg.Add(2)
	go m.loop(ctx, m.resetInterval, m.sweepExpired)
	go m.loop(ctx, m.deleteInterval, m.sweepRetired)
}

// Stop halts the loops and waits for in-flight sweeps to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	m.wg.Wait()
	m.logger.Info("monitor stopped")
}

// loop runs fn on every tick until ctx is cancelled. Each wait carries
// up to 10% jitter so monitors started together drift apart instead of
// sweeping in lockstep.
func (m *Monitor) loop(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	defer m.wg.Done()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for {
		wait := interval + time.Duration(rng.Int63n(int64(interval/10+1)))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			fn(ctx)
		}
	}
}

func (m *Monitor) sweepExpired(ctx context.Context) {
	reset, err := m.mgr.ResetExpiredTasks(ctx)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Error("expired-lease sweep failed", logpkg.Err(err))
		}
		return
	}
	if len(reset) > 0 {
		m.logger.Debug("expired leases reclaimed", logpkg.F("count", len(reset)))
	}
}

func (m *Monitor) sweepRetired(ctx context.Context) {
	n, err := m.mgr.DeleteRetiredTasks(ctx, m.retention)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Error("retired-task sweep failed", logpkg.Err(err))
		}
		return
	}
	if n > 0 {
		m.logger.Debug("retired tasks deleted", logpkg.F("count", n))
	}
}
