// Package monitor runs the background maintenance loops: reclaiming
// expired leases back to Ready and deleting retired tasks past the
// retention window. Several monitors may run against the same database;
// the store's atomic batch statements make the sweeps safe to overlap.
package monitor
