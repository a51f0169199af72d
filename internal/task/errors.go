package task

import "fmt"

// The validation taxonomy is closed: every rejection from ApplyUpdate
// is one of the types below. They are recoverable by fixing the
// request and are never retried by the storage layer.

// InvalidStatusTransitionError rejects a Status operation whose target
// is outside the allowed set for the current status.
type InvalidStatusTransitionError struct {
	Current Status
	Allowed []Status
}

func (e *InvalidStatusTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition: current status is %s, allowed transitions are %v", e.Current, e.Allowed)
}

// TerminalTaskStatusError rejects any Status operation on a task whose
// status permits no further transitions.
type TerminalTaskStatusError struct {
	Current     Status
	NonTerminal []Status
}

func (e *TerminalTaskStatusError) Error() string {
	return fmt.Sprintf("task is in terminal status %s, expected one of %v", e.Current, e.NonTerminal)
}

// MandatoryFieldMissingError rejects a request lacking a field the
// operation requires.
type MandatoryFieldMissingError struct {
	Field     string
	Operation Operation
}

func (e *MandatoryFieldMissingError) Error() string {
	return fmt.Sprintf("mandatory field %q missing for operation %s", e.Field, e.Operation)
}

// InvalidOperationError rejects an operation applied to a task that is
// not in the status the operation requires.
type InvalidOperationError struct {
	Operation Operation
	Required  Status
	Actual    Status
}

func (e *InvalidOperationError) Error() string {
	return fmt.Sprintf("invalid operation %s: task must be %s, current status is %s", e.Operation, e.Required, e.Actual)
}

// ValidationError rejects a request that is structurally valid but
// semantically wrong (wrong worker, deadline not yet passed).
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}
