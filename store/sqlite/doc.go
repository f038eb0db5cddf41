// Package sqlite implements store.Store on top of mattn/go-sqlite3,
// grounded in the teacher's store/sqlite checkpoint backend, adapted from a
// single checkpoints table to the two-table executions/execution_events
// schema (SPEC_FULL §6.5).
package sqlite
