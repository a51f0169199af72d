package task

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusReady     Status = "ready"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusAborted   Status = "aborted"
	StatusCancelled Status = "cancelled"
)

// NonTerminalStatuses are the statuses from which further transitions exist.
var NonTerminalStatuses = []Status{StatusReady, StatusRunning}

// AllowedTransitions returns the statuses reachable from s through a
// Status operation. Ready→Running is reachable only through Lease and is
// therefore not listed.
func (s Status) AllowedTransitions() []Status {
	switch s {
	case StatusReady:
		return []Status{StatusCancelled}
	case StatusRunning:
		return []Status{StatusCompleted, StatusCancelled, StatusAborted}
	default:
		return nil
	}
}

// Terminal reports whether no further transitions are permitted from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusAborted, StatusCancelled:
		return true
	}
	return false
}

// Operation names an update against a task.
type Operation string

const (
	OpLease     Operation = "Lease"
	OpHeartBeat Operation = "HeartBeat"
	OpYield     Operation = "Yield"
	OpStatus    Operation = "Status"
	OpReset     Operation = "Reset"
)

// HistoryType tags a lifecycle history entry.
type HistoryType string

const (
	HistoryAssignment HistoryType = "TaskAssignment"
	HistoryTimeout    HistoryType = "TaskTimeout"
	HistoryYield      HistoryType = "TaskYield"
)

// History is an append-only lifecycle event on a task.
type History struct {
	Type     HistoryType `json:"typ"`
	Worker   string      `json:"worker"`
	Progress *float64    `json:"progress"`
	Time     Time        `json:"time"`
}

// Error is a structured failure record appended when a task is aborted.
type Error struct {
	Code        string          `json:"code"`
	Args        json.RawMessage `json:"args"`
	Description string          `json:"description"`
}

// Task is the unit of work. It is stored as a single JSON document
// keyed by RN; field names below are the external wire format.
type Task struct {
	RN       string          `json:"rn"`
	Spec     json.RawMessage `json:"spec"`
	Status   Status          `json:"status"`
	Queue    string          `json:"queue"`
	Progress float64         `json:"progress"`
	Priority int             `json:"priority"`
	Created  Time            `json:"created"`
	Updated  Time            `json:"updated"`
	Deadline *Time           `json:"deadline"`
	Owner    *string         `json:"owner"`
	Errors   []Error         `json:"errors"`
	History  []History       `json:"history"`
}

// New builds a fresh Ready task for insertion. Spec defaults to an
// empty object when nil.
func New(rn string, spec json.RawMessage, queue string, priority int) Task {
	if spec == nil {
		spec = json.RawMessage(`{}`)
	}
	now := Now()
	return Task{
		RN:       rn,
		Spec:     spec,
		Status:   StatusReady,
		Queue:    queue,
		Priority: priority,
		Created:  now,
		Updated:  now,
		Errors:   []Error{},
		History:  []History{},
	}
}

// Clone returns a deep copy. ApplyUpdate operates on a clone so the
// caller's value is never mutated.
func (t Task) Clone() Task {
	out := t
	out.Spec = append(json.RawMessage(nil), t.Spec...)
	out.Errors = append([]Error(nil), t.Errors...)
	out.History = append([]History(nil), t.History...)
	if t.Deadline != nil {
		d := *t.Deadline
		out.Deadline = &d
	}
	if t.Owner != nil {
		o := *t.Owner
		out.Owner = &o
	}
	return out
}

// Expired reports whether the task holds a lease whose deadline passed.
func (t Task) Expired(now time.Time) bool {
	return t.Status == StatusRunning && t.Deadline != nil && t.Deadline.Before(now)
}

// UpdateRequest is the ephemeral command handed to ApplyUpdate. Zero
// values mean "not supplied" for the optional fields.
type UpdateRequest struct {
	RN            string
	Operation     Operation
	Status        Status
	Worker        string
	Progress      *float64
	Error         *Error
	LeaseDuration time.Duration
}

// Filter selects tasks in Query. Unset fields match everything.
type Filter struct {
	Status Status
	Queue  string
	Worker string
	Limit  int
}

// DefaultQueryLimit bounds Query results when Filter.Limit is unset.
const DefaultQueryLimit = 100
