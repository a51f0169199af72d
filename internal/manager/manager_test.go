package manager

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/kindredgroup/scylla/internal/store"
	"github.com/kindredgroup/scylla/internal/store/sqlite"
	"github.com/kindredgroup/scylla/internal/task"
	logpkg "github.com/kindredgroup/scylla/pkg/log"
)

func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	e, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "tasks.db"),
		sqlite.WithLogger(logpkg.Discard()))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return New(e, append([]Option{WithLogger(logpkg.Discard())}, opts...)...)
}

func TestAddAndGetTask(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	added, err := m.AddTask(ctx, "task/one", json.RawMessage(`{"kind":"export"}`), "exports", 3)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if added.Status != task.StatusReady || added.Queue != "exports" || added.Priority != 3 {
		t.Fatalf("added = %+v", added)
	}

	got, err := m.GetTask(ctx, "task/one")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RN != "task/one" || string(got.Spec) != `{"kind":"export"}` {
		t.Fatalf("got = %+v", got)
	}

	if _, err := m.AddTask(ctx, "task/one", nil, "exports", 0); err == nil {
		t.Fatal("duplicate add should fail")
	}

	_, err = m.GetTask(ctx, "task/none")
	var missing *store.NoTaskFoundError
	if !errors.As(err, &missing) {
		t.Fatalf("err = %v, want NoTaskFound", err)
	}
}

func TestGetTasksFilter(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	for _, rn := range []string{"task/a", "task/b"} {
		if _, err := m.AddTask(ctx, rn, nil, "q1", 0); err != nil {
			t.Fatalf("add %s: %v", rn, err)
		}
	}
	if _, err := m.AddTask(ctx, "task/c", nil, "q2", 0); err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := m.GetTasks(ctx, task.Filter{Queue: "q1"})
	if err != nil || len(got) != 2 {
		t.Fatalf("queue filter = %d tasks, %v", len(got), err)
	}
	all, err := m.GetTasks(ctx, task.Filter{})
	if err != nil || len(all) != 3 {
		t.Fatalf("unfiltered = %d tasks, %v", len(all), err)
	}
}

func TestLeaseHeartbeatCompleteFlow(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.AddTask(ctx, "task/flow", nil, "q", 0); err != nil {
		t.Fatalf("add: %v", err)
	}

	leased, err := m.LeaseTask(ctx, "task/flow", "w1", 0)
	if err != nil {
		t.Fatalf("lease: %v", err)
	}
	if leased.Status != task.StatusRunning || leased.Owner == nil || *leased.Owner != "w1" {
		t.Fatalf("leased = %+v", leased)
	}
	if leased.Deadline == nil {
		t.Fatal("lease set no deadline")
	}
	if n := len(leased.History); n != 1 || leased.History[0].Type != task.HistoryAssignment {
		t.Fatalf("history = %+v", leased.History)
	}

	// a second lease on the same task is rejected
	if _, err := m.LeaseTask(ctx, "task/flow", "w2", 0); err == nil {
		t.Fatal("double lease should fail")
	}

	progress := 0.5
	beat, err := m.HeartbeatTask(ctx, "task/flow", "w1", &progress, time.Minute)
	if err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if beat.Progress != 0.5 {
		t.Fatalf("progress = %v, want 0.5", beat.Progress)
	}
	if !beat.Deadline.After(leased.Deadline.Time) {
		t.Fatalf("heartbeat did not extend deadline: %v -> %v", leased.Deadline, beat.Deadline)
	}

	// a non-owner heartbeat is rejected
	if _, err := m.HeartbeatTask(ctx, "task/flow", "w2", nil, 0); err == nil {
		t.Fatal("foreign heartbeat should fail")
	}

	done, err := m.CompleteTask(ctx, "task/flow")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != task.StatusCompleted {
		t.Fatalf("status = %s, want completed", done.Status)
	}
	if _, err := m.CompleteTask(ctx, "task/flow"); err == nil {
		t.Fatal("completing a terminal task should fail")
	}
}

func TestLeaseTasksBatch(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.AddTask(ctx, "task/low", nil, "q", 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := m.AddTask(ctx, "task/high", nil, "q", 9); err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := m.LeaseTasks(ctx, "q", 1, "w1", 0)
	if err != nil {
		t.Fatalf("lease batch: %v", err)
	}
	if len(got) != 1 || got[0].RN != "task/high" {
		t.Fatalf("claimed %+v, want the high-priority task", got)
	}
	if got[0].Status != task.StatusRunning {
		t.Fatalf("status = %s, want running", got[0].Status)
	}
}

func TestCancelFromReadyAndRunning(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.AddTask(ctx, "task/r", nil, "q", 0); err != nil {
		t.Fatalf("add: %v", err)
	}
	cancelled, err := m.CancelTask(ctx, "task/r")
	if err != nil || cancelled.Status != task.StatusCancelled {
		t.Fatalf("cancel ready = %+v, %v", cancelled, err)
	}

	if _, err := m.AddTask(ctx, "task/run", nil, "q", 0); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := m.LeaseTask(ctx, "task/run", "w1", 0); err != nil {
		t.Fatalf("lease: %v", err)
	}
	cancelled, err = m.CancelTask(ctx, "task/run")
	if err != nil || cancelled.Status != task.StatusCancelled {
		t.Fatalf("cancel running = %+v, %v", cancelled, err)
	}
}

func TestAbortRecordsError(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.AddTask(ctx, "task/bad", nil, "q", 0); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := m.LeaseTask(ctx, "task/bad", "w1", 0); err != nil {
		t.Fatalf("lease: %v", err)
	}
	aborted, err := m.AbortTask(ctx, "task/bad", task.Error{
		Code:        "DOWNLOAD_FAILED",
		Args:        json.RawMessage(`{"url":"s3://bucket/key"}`),
		Description: "object not found",
	})
	if err != nil {
		t.Fatalf("abort: %v", err)
	}
	if aborted.Status != task.StatusAborted {
		t.Fatalf("status = %s, want aborted", aborted.Status)
	}
	if len(aborted.Errors) != 1 || aborted.Errors[0].Code != "DOWNLOAD_FAILED" {
		t.Fatalf("errors = %+v", aborted.Errors)
	}
}

func TestYieldThenSweepReturnsTask(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.AddTask(ctx, "task/y", nil, "q", 0); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := m.LeaseTask(ctx, "task/y", "w1", time.Minute); err != nil {
		t.Fatalf("lease: %v", err)
	}
	yielded, err := m.YieldTask(ctx, "task/y")
	if err != nil {
		t.Fatalf("yield: %v", err)
	}
	if yielded.Status != task.StatusRunning || !yielded.Expired(time.Now()) {
		t.Fatalf("yielded = %+v, want running with past deadline", yielded)
	}

	reset, err := m.ResetExpiredTasks(ctx)
	if err != nil || len(reset) != 1 {
		t.Fatalf("sweep = %v, %v; want one task", reset, err)
	}
	got := reset[0]
	if got.Status != task.StatusReady || got.Owner != nil {
		t.Fatalf("swept = %+v, want cleared ready task", got)
	}
	// a yield already logged the hand-back, so no timeout entry follows
	if n := len(got.History); n != 2 || got.History[n-1].Type != task.HistoryYield {
		t.Fatalf("history = %+v", got.History)
	}
}

func TestResetTaskSingle(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.AddTask(ctx, "task/exp", nil, "q", 0); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := m.LeaseTask(ctx, "task/exp", "w1", 10*time.Millisecond); err != nil {
		t.Fatalf("lease: %v", err)
	}

	// the lease is still live, so reset is refused
	if _, err := m.ResetTask(ctx, "task/exp"); err == nil {
		t.Fatal("reset before expiry should fail")
	}
	time.Sleep(50 * time.Millisecond)

	reset, err := m.ResetTask(ctx, "task/exp")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if reset.Status != task.StatusReady || reset.Owner != nil || reset.Deadline != nil {
		t.Fatalf("reset = %+v", reset)
	}
	if n := len(reset.History); n != 2 || reset.History[n-1].Type != task.HistoryTimeout {
		t.Fatalf("history = %+v", reset.History)
	}
}

func TestDeleteRetiredTasks(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.AddTask(ctx, "task/done", nil, "q", 0); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := m.AddTask(ctx, "task/live", nil, "q", 0); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := m.LeaseTask(ctx, "task/done", "w1", 0); err != nil {
		t.Fatalf("lease: %v", err)
	}
	if _, err := m.CompleteTask(ctx, "task/done"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	n, err := m.DeleteRetiredTasks(ctx, 0)
	if err != nil || n != 1 {
		t.Fatalf("delete = %d, %v; want 1", n, err)
	}
	if _, err := m.GetTask(ctx, "task/live"); err != nil {
		t.Fatalf("live task deleted: %v", err)
	}
}

func TestDefaultLeaseOption(t *testing.T) {
	m := newTestManager(t, WithDefaultLease(time.Hour))
	ctx := context.Background()

	if _, err := m.AddTask(ctx, "task/d", nil, "q", 0); err != nil {
		t.Fatalf("add: %v", err)
	}
	leased, err := m.LeaseTask(ctx, "task/d", "w1", 0)
	if err != nil {
		t.Fatalf("lease: %v", err)
	}
	if leased.Deadline == nil || !leased.Deadline.After(time.Now().Add(30*time.Minute)) {
		t.Fatalf("deadline = %v, want roughly an hour out", leased.Deadline)
	}
}
