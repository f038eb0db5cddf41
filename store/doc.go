// Package store defines the execution persistence contract (spec §4.6,
// §6.5): the durable record of executions and their append-only event
// logs, backing resumable subscriptions and the execution-tree view. Four
// interchangeable backends live in subpackages: memory, sqlite, postgres,
// and redis — mirroring the teacher's checkpoint-store backends, adapted
// to the two-table executions/execution_events schema.
package store
