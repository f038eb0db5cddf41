package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaingraph-labs/engine/store"
)

func TestMemoryStoreExecutionLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.CreateExecution(ctx, store.ExecutionRow{
		ID: "e1", FlowID: "f1", OwnerID: "alice", Status: "created", CreatedAt: now, UpdatedAt: now,
	}))

	row, err := s.GetExecution(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "created", row.Status)

	require.NoError(t, s.UpdateStatus(ctx, "e1", "running", &now, nil, "", ""))
	row, err = s.GetExecution(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "running", row.Status)
	assert.NotNil(t, row.StartedAt)

	_, err = s.GetExecution(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemoryStoreEventAppendIsIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	rec := store.EventRecord{ExecutionID: "e1", Index: 1, EventType: "NODE_STARTED", Timestamp: time.Now()}
	require.NoError(t, s.AppendEvent(ctx, rec))
	require.NoError(t, s.AppendEvent(ctx, rec)) // retried append, same index

	events, err := s.ListEventsSince(ctx, "e1", 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestMemoryStoreListEventsSinceOrdering(t *testing.T) {
	s := New()
	ctx := context.Background()

	for i := int64(3); i >= 1; i-- {
		require.NoError(t, s.AppendEvent(ctx, store.EventRecord{ExecutionID: "e1", Index: i, EventType: "X", Timestamp: time.Now()}))
	}
	events, err := s.ListEventsSince(ctx, "e1", 1)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(2), events[0].Index)
	assert.Equal(t, int64(3), events[1].Index)
}

func TestMemoryStoreRootsAndChildren(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.CreateExecution(ctx, store.ExecutionRow{ID: "root", OwnerID: "alice", Status: "completed", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, s.CreateExecution(ctx, store.ExecutionRow{ID: "child", OwnerID: "alice", ParentExecutionID: "root", Status: "completed", CreatedAt: now, UpdatedAt: now}))

	roots, err := s.ListRootsFor(ctx, "alice", store.Filters{}, store.Pagination{})
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, "root", roots[0].ID)

	children, err := s.ListChildrenOf(ctx, "root")
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "child", children[0].ID)
}
