package manager

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kindredgroup/scylla/internal/store"
	"github.com/kindredgroup/scylla/internal/task"
	logpkg "github.com/kindredgroup/scylla/pkg/log"
)

// Manager coordinates task lifecycle operations against a store engine.
type Manager struct {
	store  store.Store
	logger logpkg.Logger

	// Defaults
	defaultLease time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger replaces the manager logger.
func WithLogger(logger logpkg.Logger) Option {
	return func(m *Manager) { m.logger = logger.WithComponent("manager") }
}

// WithDefaultLease sets the lease duration used when a caller passes
// zero.
func WithDefaultLease(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.defaultLease = d
		}
	}
}

// New creates a Manager over the given store.
func New(s store.Store, opts ...Option) *Manager {
	m := &Manager{
		store:        s,
		logger:       logpkg.NewLogger().WithComponent("manager"),
		defaultLease: task.DefaultLeaseDuration,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddTask registers a new task in Ready state. The rn must be unique
// across the store, live and retired tasks alike.
func (m *Manager) AddTask(ctx context.Context, rn string, spec json.RawMessage, queue string, priority int) (task.Task, error) {
	t, err := m.store.Insert(ctx, task.New(rn, spec, queue, priority))
	if err != nil {
		return task.Task{}, err
	}
	m.logger.Info("task added",
		logpkg.F("rn", t.RN), logpkg.F("queue", t.Queue), logpkg.F("priority", t.Priority))
	return t, nil
}

// GetTask returns the task with the given rn.
func (m *Manager) GetTask(ctx context.Context, rn string) (task.Task, error) {
	return m.store.QueryByRN(ctx, rn)
}

// GetTasks returns tasks matching the filter, highest priority first
// and oldest first within a priority.
func (m *Manager) GetTasks(ctx context.Context, f task.Filter) ([]task.Task, error) {
	return m.store.Query(ctx, f)
}

// LeaseTask claims a specific Ready task for worker.
func (m *Manager) LeaseTask(ctx context.Context, rn, worker string, leaseDuration time.Duration) (task.Task, error) {
	return m.update(ctx, task.UpdateRequest{
		RN:            rn,
		Operation:     task.OpLease,
		Worker:        worker,
		LeaseDuration: m.leaseOrDefault(leaseDuration),
	})
}

// LeaseTasks claims up to limit Ready tasks from queue for worker in a
// single atomic step. An empty queue matches every queue.
func (m *Manager) LeaseTasks(ctx context.Context, queue string, limit int, worker string, leaseDuration time.Duration) ([]task.Task, error) {
	tasks, err := m.store.LeaseBatch(ctx, queue, limit, worker, m.leaseOrDefault(leaseDuration))
	if err != nil {
		return nil, err
	}
	if len(tasks) > 0 {
		m.logger.Info("tasks leased",
			logpkg.F("worker", worker), logpkg.F("queue", queue), logpkg.F("count", len(tasks)))
	}
	return tasks, nil
}

// HeartbeatTask extends the lease on a Running task and optionally
// records progress. When worker is non-empty it must match the owner.
func (m *Manager) HeartbeatTask(ctx context.Context, rn, worker string, progress *float64, leaseDuration time.Duration) (task.Task, error) {
	return m.update(ctx, task.UpdateRequest{
		RN:            rn,
		Operation:     task.OpHeartBeat,
		Worker:        worker,
		Progress:      progress,
		LeaseDuration: m.leaseOrDefault(leaseDuration),
	})
}

// YieldTask marks a Running task for immediate reclaim by the monitor.
func (m *Manager) YieldTask(ctx context.Context, rn string) (task.Task, error) {
	return m.update(ctx, task.UpdateRequest{RN: rn, Operation: task.OpYield})
}

// CompleteTask moves a Running task to the Completed terminal state.
func (m *Manager) CompleteTask(ctx context.Context, rn string) (task.Task, error) {
	return m.update(ctx, task.UpdateRequest{RN: rn, Operation: task.OpStatus, Status: task.StatusCompleted})
}

// CancelTask moves a Ready or Running task to the Cancelled terminal
// state.
func (m *Manager) CancelTask(ctx context.Context, rn string) (task.Task, error) {
	return m.update(ctx, task.UpdateRequest{RN: rn, Operation: task.OpStatus, Status: task.StatusCancelled})
}

// AbortTask moves a Running task to the Aborted terminal state,
// recording the error that caused the abort.
func (m *Manager) AbortTask(ctx context.Context, rn string, taskErr task.Error) (task.Task, error) {
	return m.update(ctx, task.UpdateRequest{
		RN:        rn,
		Operation: task.OpStatus,
		Status:    task.StatusAborted,
		Error:     &taskErr,
	})
}

// ResetTask returns a single Running task to Ready, clearing its lease.
func (m *Manager) ResetTask(ctx context.Context, rn string) (task.Task, error) {
	return m.update(ctx, task.UpdateRequest{RN: rn, Operation: task.OpReset})
}

// ResetExpiredTasks returns every task whose lease deadline has passed
// to Ready. The whole sweep is one atomic statement, so each expired
// lease is reclaimed exactly once across concurrent monitors.
func (m *Manager) ResetExpiredTasks(ctx context.Context) ([]task.Task, error) {
	tasks, err := m.store.ResetExpiredBatch(ctx)
	if err != nil {
		return nil, err
	}
	if len(tasks) > 0 {
		m.logger.Info("expired tasks reset", logpkg.F("count", len(tasks)))
	}
	return tasks, nil
}

// DeleteRetiredTasks removes terminal tasks not updated within the
// retention window and reports how many were deleted.
func (m *Manager) DeleteRetiredTasks(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := m.store.DeleteRetiredBatch(ctx, retention)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.logger.Info("retired tasks deleted", logpkg.F("count", n))
	}
	return n, nil
}

// update is the single-task read-modify-write path. The fetch and the
// write are separate statements; the store's conditional update keyed
// on rn keeps the write from resurrecting a concurrently deleted task,
// and the state machine keeps stale writes from producing an invalid
// document.
func (m *Manager) update(ctx context.Context, req task.UpdateRequest) (task.Task, error) {
	current, err := m.store.QueryByRN(ctx, req.RN)
	if err != nil {
		return task.Task{}, err
	}
	next, err := task.ApplyUpdate(current, req)
	if err != nil {
		return task.Task{}, err
	}
	updated, err := m.store.Update(ctx, next)
	if err != nil {
		return task.Task{}, err
	}
	m.logger.Debug("task updated",
		logpkg.F("rn", updated.RN), logpkg.F("operation", string(req.Operation)),
		logpkg.F("status", string(updated.Status)))
	return updated, nil
}

func (m *Manager) leaseOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return m.defaultLease
	}
	return d
}
