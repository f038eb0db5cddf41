package store

import (
	"context"
	"encoding/json"
	"time"
)

// ExecutionRow is the durable row for one execution (spec §6.5).
type ExecutionRow struct {
	ID                string
	FlowID            string
	FlowVersion       int64
	OwnerID           string
	ParentExecutionID string
	ExecutionDepth    int
	Status            string
	CreatedAt         time.Time
	StartedAt         *time.Time
	CompletedAt       *time.Time
	UpdatedAt         time.Time
	ErrorMessage      string
	ErrorNodeID       string
	Metadata          json.RawMessage
}

// EventRecord is one durable execution-event log entry (spec §6.5). Index
// is unique per ExecutionID and assigned by the engine's single per-execution
// producer lock, never by the store.
type EventRecord struct {
	ExecutionID string
	Index       int64
	EventType   string
	Timestamp   time.Time
	Data        json.RawMessage
}

// Filters narrows ListRootsFor by status and/or flow.
type Filters struct {
	Status string
	FlowID string
}

// Pagination bounds a listing.
type Pagination struct {
	Limit  int
	Offset int
}

// Store is the execution persistence contract every backend implements
// (spec §4.6, §6.5). AppendEvent and AppendEvents must be idempotent on the
// (executionID, index) pair so a retried write after a crash never produces
// a duplicate or gap in a subscriber's replay.
type Store interface {
	CreateExecution(ctx context.Context, row ExecutionRow) error
	UpdateStatus(ctx context.Context, executionID, status string, startedAt, completedAt *time.Time, errMessage, errNodeID string) error
	GetExecution(ctx context.Context, executionID string) (ExecutionRow, error)

	// AppendEvent durably records a single event immediately. The engine
	// does not call it: every event it persists goes through AppendEvents
	// from the write-behind batcher.
	AppendEvent(ctx context.Context, rec EventRecord) error
	// AppendEvents durably records a batch, amortizing round trips for the
	// write-behind flush path (SPEC_FULL §6.5: "batches appends in groups
	// of up to 64 events or every 100ms, whichever comes first").
	AppendEvents(ctx context.Context, recs []EventRecord) error

	// ListEventsSince returns events with Index > lastIndex, in order, for
	// resumable subscription replay (spec §6.2).
	ListEventsSince(ctx context.Context, executionID string, lastIndex int64) ([]EventRecord, error)

	// ListRootsFor lists top-level (no parent) executions owned by owner.
	ListRootsFor(ctx context.Context, owner string, filters Filters, pagination Pagination) ([]ExecutionRow, error)
	// ListChildrenOf lists the direct child executions of executionID.
	ListChildrenOf(ctx context.Context, executionID string) ([]ExecutionRow, error)
}

// ErrNotFound is returned by GetExecution when no row matches.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "store: execution not found" }
