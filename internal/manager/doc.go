// Package manager is the application-facing API of the task store. It
// composes the pure lifecycle rules from the task package with a store
// engine: every single-task operation fetches the current document,
// applies the transition, and writes the result back, while the batch
// operations delegate to the engine's atomic statements.
package manager
