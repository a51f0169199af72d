package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kindredgroup/scylla/internal/store"
	"github.com/kindredgroup/scylla/internal/task"
	logpkg "github.com/kindredgroup/scylla/pkg/log"
)

const (
	defaultMaxTries = 10
	baseRetryDelay  = 10 * time.Millisecond
	busyTimeout     = 5 * time.Second
)

// Engine implements store.Store over an embedded SQLite database.
type Engine struct {
	db       *sql.DB
	logger   logpkg.Logger
	maxTries int
	sleep    func(context.Context, time.Duration)
}

var _ store.Store = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger replaces the engine logger.
func WithLogger(logger logpkg.Logger) Option {
	return func(e *Engine) { e.logger = logger.WithComponent("sqlite") }
}

// WithMaxTries bounds the busy-writer retry loop.
func WithMaxTries(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxTries = n
		}
	}
}

// WithSleep replaces the backoff sleeper.
func WithSleep(sleep func(context.Context, time.Duration)) Option {
	return func(e *Engine) { e.sleep = sleep }
}

// Open opens (creating if necessary) the database at path and applies
// the task schema.
func Open(ctx context.Context, path string, opts ...Option) (*Engine, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		url.PathEscape(path), busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	e := &Engine{
		db:       db,
		logger:   logpkg.NewLogger().WithComponent("sqlite"),
		maxTries: defaultMaxTries,
		sleep:    waitFor,
	}
	for _, opt := range opts {
		opt(e)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply task schema: %w", err)
	}
	return e, nil
}

// Close releases the database handle.
func (e *Engine) Close() error {
	return e.db.Close()
}

// Insert stores a new task document.
func (e *Engine) Insert(ctx context.Context, t task.Task) (task.Task, error) {
	rows, err := e.execute(ctx, insertTaskSQL, mustEncode(t))
	if err != nil {
		return task.Task{}, err
	}
	return store.SingleFromInsert(rows, t.RN)
}

// Update replaces the stored document for t.RN.
func (e *Engine) Update(ctx context.Context, t task.Task) (task.Task, error) {
	rows, err := e.execute(ctx, updateTaskSQL, mustEncode(t), t.RN)
	if err != nil {
		return task.Task{}, err
	}
	return store.SingleFromUpdate(rows, t.RN)
}

// Query returns tasks matching f.
func (e *Engine) Query(ctx context.Context, f task.Filter) ([]task.Task, error) {
	p := store.PrepareQuery(f)
	return e.execute(ctx, queryTasksSQL, p.Status, p.Queue, p.Worker, p.Worker, p.Limit)
}

// QueryByRN returns the task with the given rn.
func (e *Engine) QueryByRN(ctx context.Context, rn string) (task.Task, error) {
	rows, err := e.execute(ctx, queryByRNSQL, rn)
	if err != nil {
		return task.Task{}, err
	}
	return store.SingleFromQuery(rows, rn)
}

// LeaseBatch atomically claims up to limit Ready tasks in queue. The
// whole claim is one UPDATE statement, which SQLite executes under the
// single writer lock, so concurrent callers partition disjoint sets.
func (e *Engine) LeaseBatch(ctx context.Context, queue string, limit int, worker string, leaseDuration time.Duration) ([]task.Task, error) {
	if limit <= 0 {
		limit = 1
	}
	if leaseDuration <= 0 {
		leaseDuration = task.DefaultLeaseDuration
	}
	pattern := queue
	if pattern == "" {
		pattern = store.MatchAny
	}
	now := task.Now()
	deadline := task.At(now.Add(leaseDuration))
	zero := 0.0
	entry := task.History{Type: task.HistoryAssignment, Worker: worker, Progress: &zero, Time: now}
	return e.execute(ctx, leaseBatchSQL,
		worker, deadline.String(), now.String(), mustEncode(entry), pattern, limit)
}

// ResetExpiredBatch returns every expired lease to Ready in one
// statement.
func (e *Engine) ResetExpiredBatch(ctx context.Context) ([]task.Task, error) {
	now := task.Now().String()
	return e.execute(ctx, resetExpiredSQL, now, now, now)
}

// DeleteRetiredBatch removes terminal tasks older than retention.
func (e *Engine) DeleteRetiredBatch(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := task.At(time.Now().Add(-retention)).String()
	for try := 1; ; try++ {
		res, err := e.db.ExecContext(ctx, deleteRetiredSQL, cutoff)
		if err == nil {
			return res.RowsAffected()
		}
		if try >= e.maxTries || !isBusy(err) {
			return 0, err
		}
		e.sleep(ctx, retryDelay(try))
		if err := ctx.Err(); err != nil {
			return 0, err
		}
	}
}

// execute runs one statement and decodes the returned documents,
// retrying with jittered backoff while the writer lock is contended.
func (e *Engine) execute(ctx context.Context, query string, args ...any) ([]task.Task, error) {
	for try := 1; ; try++ {
		rows, err := e.executeOnce(ctx, query, args...)
		if err == nil {
			return rows, nil
		}
		if try >= e.maxTries || !isBusy(err) {
			return nil, err
		}
		delay := retryDelay(try)
		e.logger.Debug("database busy, retrying",
			logpkg.F("attempt", try), logpkg.F("delay", delay.String()))
		e.sleep(ctx, delay)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

func (e *Engine) executeOnce(ctx context.Context, query string, args ...any) ([]task.Task, error) {
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tasks []task.Task
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		tasks = append(tasks, decodeTask(doc))
	}
	return tasks, rows.Err()
}

// decodeTask panics on a malformed document: only this engine writes
// them, so a decode failure is a programming error.
func decodeTask(doc string) task.Task {
	var t task.Task
	if err := json.Unmarshal([]byte(doc), &t); err != nil {
		panic(fmt.Sprintf("sqlite: malformed task document in store: %v", err))
	}
	return t
}

func mustEncode(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("sqlite: encode task document: %v", err))
	}
	return string(b)
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryDelay(try int) time.Duration {
	lo := (try - 1) * 10 * (try - 1)
	hi := try * 10 * try
	return baseRetryDelay + time.Duration(lo+rand.Intn(hi-lo))*time.Millisecond
}

func waitFor(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
