// Package postgres implements store.Store on jackc/pgx/v5, grounded in the
// teacher's store/postgres checkpoint backend (including its DBPool seam
// for mock-based testing with pashagolub/pgxmock), adapted to the
// executions/execution_events schema (SPEC_FULL §6.5).
package postgres
