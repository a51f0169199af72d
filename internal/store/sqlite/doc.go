// Package sqlite implements the store contract over an embedded
// SQLite database. It serves single-process deployments and hermetic
// tests.
//
// The document format and statement shapes match the postgres engine.
// SQLite admits one writer at a time, so every batch statement is
// atomic by construction and no row locking is needed; writer
// contention surfaces as SQLITE_BUSY and is absorbed by a bounded
// retry loop.
package sqlite
