package store

import "github.com/kindredgroup/scylla/internal/task"

// The engines return mutated rows from every statement; these helpers
// turn row counts into contract results. More than one row for a
// keyed statement means the unique rn index is gone, which no caller
// can recover from.

// SingleFromInsert interprets the rows returned by an insert.
func SingleFromInsert(rows []task.Task, rn string) (task.Task, error) {
	switch len(rows) {
	case 0:
		return task.Task{}, &DuplicateTaskError{RN: rn}
	case 1:
		return rows[0], nil
	default:
		panic("store: insert returned more than one row for rn " + rn)
	}
}

// SingleFromUpdate interprets the rows returned by a keyed update.
func SingleFromUpdate(rows []task.Task, rn string) (task.Task, error) {
	switch len(rows) {
	case 0:
		return task.Task{}, &NoTaskFoundError{RN: rn}
	case 1:
		return rows[0], nil
	default:
		panic("store: update returned more than one row for rn " + rn)
	}
}

// SingleFromQuery interprets the rows returned by a lookup by rn.
func SingleFromQuery(rows []task.Task, rn string) (task.Task, error) {
	switch len(rows) {
	case 0:
		return task.Task{}, &NoTaskFoundError{RN: rn}
	case 1:
		return rows[0], nil
	default:
		panic("store: query by rn returned more than one row for rn " + rn)
	}
}

// MatchAny is the pattern for unset filter fields.
const MatchAny = "%"

// QueryParams normalizes a task.Filter into the positional pattern
// parameters shared by the engines.
type QueryParams struct {
	Status string
	Queue  string
	Worker string
	Limit  int
}

// PrepareQuery maps unset filter fields to MatchAny and applies the
// default limit.
func PrepareQuery(f task.Filter) QueryParams {
	p := QueryParams{Status: MatchAny, Queue: MatchAny, Worker: MatchAny, Limit: task.DefaultQueryLimit}
	if f.Status != "" {
		p.Status = string(f.Status)
	}
	if f.Queue != "" {
		p.Queue = f.Queue
	}
	if f.Worker != "" {
		p.Worker = f.Worker
	}
	if f.Limit > 0 {
		p.Limit = f.Limit
	}
	return p
}
