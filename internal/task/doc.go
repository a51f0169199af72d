// Package task defines the task entity, its lifecycle state machine,
// and the validation error taxonomy shared by every storage engine.
package task
