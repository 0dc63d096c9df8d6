// Package engine sequences the planning pipeline and exposes the control
// surface: Start to begin a run, Status for non-blocking snapshot reads, and
// Decide to resolve the human-review gate. The engine is the sole writer of a
// run's state; external readers only ever see whole-stage snapshots through
// the StatusStore.
package engine
