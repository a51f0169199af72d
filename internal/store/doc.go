// Package store defines the persistence contract consumed by the task
// manager and implemented by the storage engines.
package store
