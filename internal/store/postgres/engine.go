package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kindredgroup/scylla/internal/store"
	"github.com/kindredgroup/scylla/internal/task"
	logpkg "github.com/kindredgroup/scylla/pkg/log"
)

const (
	// sqlstate for a repeatable-read serialization conflict; the only
	// transaction error worth retrying.
	serializationFailure = "40001"

	defaultMaxTries = 10
	baseRetryDelay  = 10 * time.Millisecond
)

// Engine implements store.Store over a pgx connection pool.
type Engine struct {
	pool     *pgxpool.Pool
	logger   logpkg.Logger
	maxTries int
	sleep    func(context.Context, time.Duration)
}

var _ store.Store = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger replaces the engine logger.
func WithLogger(logger logpkg.Logger) Option {
	return func(e *Engine) { e.logger = logger.WithComponent("postgres") }
}

// WithMaxTries bounds the serialization-conflict retry loop.
func WithMaxTries(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxTries = n
		}
	}
}

// WithSleep replaces the backoff sleeper; tests use it to avoid real
// delays.
func WithSleep(sleep func(context.Context, time.Duration)) Option {
	return func(e *Engine) { e.sleep = sleep }
}

// NewEngine wraps an existing pool. The pool is shared, injected
// state; the engine never opens connections of its own.
func NewEngine(pool *pgxpool.Pool, opts ...Option) *Engine {
	e := &Engine{
		pool:     pool,
		logger:   logpkg.NewLogger().WithComponent("postgres"),
		maxTries: defaultMaxTries,
		sleep:    waitFor,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open builds the pool from cfg and returns an engine over it.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Engine, error) {
	pool, err := OpenPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewEngine(pool, opts...), nil
}

// Close releases the pool.
func (e *Engine) Close() error {
	e.pool.Close()
	return nil
}

// Insert stores a new task document.
func (e *Engine) Insert(ctx context.Context, t task.Task) (task.Task, error) {
	rows, err := e.execute(ctx, insertTaskSQL, pgx.RepeatableRead, mustEncode(t))
	if err != nil {
		return task.Task{}, err
	}
	return store.SingleFromInsert(rows, t.RN)
}

// Update replaces the stored document for t.RN.
func (e *Engine) Update(ctx context.Context, t task.Task) (task.Task, error) {
	rows, err := e.execute(ctx, updateTaskSQL, pgx.RepeatableRead, mustEncode(t), t.RN)
	if err != nil {
		return task.Task{}, err
	}
	return store.SingleFromUpdate(rows, t.RN)
}

// Query returns tasks matching f.
func (e *Engine) Query(ctx context.Context, f task.Filter) ([]task.Task, error) {
	p := store.PrepareQuery(f)
	return e.execute(ctx, queryTasksSQL, pgx.RepeatableRead, p.Status, p.Queue, p.Worker, p.Limit)
}

// QueryByRN returns the task with the given rn.
func (e *Engine) QueryByRN(ctx context.Context, rn string) (task.Task, error) {
	rows, err := e.execute(ctx, queryByRNSQL, pgx.RepeatableRead, rn)
	if err != nil {
		return task.Task{}, err
	}
	return store.SingleFromQuery(rows, rn)
}

// LeaseBatch atomically claims up to limit Ready tasks in queue.
// SKIP LOCKED partitions rows between concurrent claimers, so the
// statement runs at read committed without the retry loop.
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
	return e.execute(ctx, leaseBatchSQL, pgx.ReadCommitted,
		pattern, limit, worker, deadline.String(), now.String(), mustEncode(entry))
}

// ResetExpiredBatch returns every expired lease to Ready in one
// statement.
func (e *Engine) ResetExpiredBatch(ctx context.Context) ([]task.Task, error) {
	now := task.Now().String()
	return e.execute(ctx, resetExpiredSQL, pgx.RepeatableRead, now, now)
}

// DeleteRetiredBatch removes terminal tasks older than retention.
func (e *Engine) DeleteRetiredBatch(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := task.At(time.Now().Add(-retention)).String()
	return e.executeCount(ctx, deleteRetiredSQL, pgx.RepeatableRead, cutoff)
}

// execute runs one statement in its own transaction and decodes the
// returned documents. Serialization conflicts roll back and retry with
// jittered backoff up to maxTries; every other error surfaces as is.
func (e *Engine) execute(ctx context.Context, sql string, iso pgx.TxIsoLevel, args ...any) ([]task.Task, error) {
	for try := 1; ; try++ {
		rows, err := e.executeOnce(ctx, sql, iso, args...)
		if err == nil {
			return rows, nil
		}
		if try >= e.maxTries || !isSerializationFailure(err) {
			return nil, err
		}
		delay := retryDelay(try)
		e.logger.Debug("serialization conflict, retrying",
			logpkg.F("attempt", try), logpkg.F("delay", delay.String()))
		e.sleep(ctx, delay)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

func (e *Engine) executeOnce(ctx context.Context, sql string, iso pgx.TxIsoLevel, args ...any) ([]task.Task, error) {
	tx, err := e.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: iso})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	docs, err := collectDocs(rows)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return decodeTasks(docs), nil
}

func (e *Engine) executeCount(ctx context.Context, sql string, iso pgx.TxIsoLevel, args ...any) (int64, error) {
	tx, err := e.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: iso})
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func collectDocs(rows pgx.Rows) ([][]byte, error) {
	defer rows.Close()
	var docs [][]byte
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		docs = append(docs, append([]byte(nil), doc...))
	}
	return docs, rows.Err()
}

// decodeTasks panics on a malformed document: only this engine writes
// them, so a decode failure is a programming error, not a runtime
// condition callers can handle.
func decodeTasks(docs [][]byte) []task.Task {
	tasks := make([]task.Task, 0, len(docs))
	for _, doc := range docs {
		var t task.Task
		if err := json.Unmarshal(doc, &t); err != nil {
			panic(fmt.Sprintf("postgres: malformed task document in store: %v", err))
		}
		tasks = append(tasks, t)
	}
	return tasks
}

func mustEncode(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("postgres: encode task document: %v", err))
	}
	return string(b)
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == serializationFailure
}

// retryDelay widens quadratically with the attempt count and carries a
// random jitter so colliding transactions drift apart.
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
