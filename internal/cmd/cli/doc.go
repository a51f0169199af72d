// Package cli contains the Cobra commands of the scylla binary: task
// lifecycle operations, the background monitor, and schema migration.
package cli
