package store

import (
	"context"
	"fmt"
	"time"

	"github.com/kindredgroup/scylla/internal/task"
)

// Store is the capability surface the task manager composes with the
// state machine. Implementations are safe for concurrent use; all
// task-state synchronization lives in the backing store, never in
// process memory.
//
// Single-task methods are not atomic against concurrent mutation of
// the same rn: between a caller's fetch and its Update another caller
// may have changed or deleted the row. Multi-worker fleets claim work
// through LeaseBatch, which is atomic.
type Store interface {
	// Insert stores a new task document. Returns DuplicateTaskError
	// when a task with the same rn already exists.
	Insert(ctx context.Context, t task.Task) (task.Task, error)

	// Update replaces the stored document for t.RN. Returns
	// NoTaskFoundError when the row no longer exists.
	Update(ctx context.Context, t task.Task) (task.Task, error)

	// Query returns tasks matching f, ordered by priority descending
	// then creation time ascending, bounded by f.Limit
	// (task.DefaultQueryLimit when unset).
	Query(ctx context.Context, f task.Filter) ([]task.Task, error)

	// QueryByRN returns the task with the given rn, or NoTaskFoundError.
	QueryByRN(ctx context.Context, rn string) (task.Task, error)

	// LeaseBatch atomically claims up to limit Ready tasks in queue,
	// highest priority first and oldest first within a priority. Each
	// claimed task transitions to Running with owner, deadline, and an
	// Assignment history entry. Two concurrent callers never claim the
	// same task.
	LeaseBatch(ctx context.Context, queue string, limit int, worker string, leaseDuration time.Duration) ([]task.Task, error)

	// ResetExpiredBatch atomically returns every Running task with a
	// passed deadline to Ready, appending a Timeout history entry
	// unless the last entry is a Yield. Returns the reset tasks.
	ResetExpiredBatch(ctx context.Context) ([]task.Task, error)

	// DeleteRetiredBatch deletes terminal tasks whose updated
	// timestamp is older than retention. Returns the number deleted.
	DeleteRetiredBatch(ctx context.Context, retention time.Duration) (int64, error)

	// Close releases the underlying connections.
	Close() error
}

// DuplicateTaskError reports an Insert against an existing rn.
type DuplicateTaskError struct {
	RN string
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("task already exists for %s", e.RN)
}

// NoTaskFoundError reports a lookup or update against a missing rn.
type NoTaskFoundError struct {
	RN string
}

func (e *NoTaskFoundError) Error() string {
	return fmt.Sprintf("no task found for %s", e.RN)
}
