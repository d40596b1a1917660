// Package store provides durable storage for the composite service:
// the namespaced key-value arena shared by all modules, the persisted
// operation registry, the pending-cut journal, and the ownership record.
//
// Uses SQLite with WAL mode. All multi-row mutations that must be atomic
// (cut application in particular) run inside a single transaction via
// WithTx; callers never mutate registry rows entry-by-entry outside one.
package store
