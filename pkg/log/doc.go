// Package log provides the structured, field-based logging used by
// every scylla component. It is a thin layer over log/slog: components
// receive a Logger, tag themselves with WithComponent, and attach
// context as F(key, value) fields.
package log
