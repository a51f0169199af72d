// Package postgres implements the store contract against PostgreSQL.
//
// One row per task in a single JSONB table. Single-task statements run
// at repeatable read inside a bounded retry loop that absorbs
// serialization conflicts; batch claims use FOR UPDATE SKIP LOCKED at
// read committed so concurrent workers partition disjoint row sets
// without blocking; batch maintenance runs as single atomic
// statements.
package postgres
