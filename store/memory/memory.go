package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/chaingraph-labs/engine/store"
)

// Store is an in-memory store.Store implementation. Safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	executions  map[string]store.ExecutionRow
	events      map[string][]store.EventRecord // executionID -> ordered by index
	childrenOf  map[string][]string             // parentID -> child execution ids, insertion order
	rootsByUser map[string][]string             // owner -> root execution ids, insertion order
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{
		executions:  make(map[string]store.ExecutionRow),
		events:      make(map[string][]store.EventRecord),
		childrenOf:  make(map[string][]string),
		rootsByUser: make(map[string][]string),
	}
}

func (s *Store) CreateExecution(ctx context.Context, row store.ExecutionRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions[row.ID] = row
	if row.ParentExecutionID != "" {
		s.childrenOf[row.ParentExecutionID] = append(s.childrenOf[row.ParentExecutionID], row.ID)
	} else {
		s.rootsByUser[row.OwnerID] = append(s.rootsByUser[row.OwnerID], row.ID)
	}
	return nil
}

func (s *Store) UpdateStatus(ctx context.Context, executionID, status string, startedAt, completedAt *time.Time, errMessage, errNodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.executions[executionID]
	if !ok {
		return store.ErrNotFound
	}
	row.Status = status
	if startedAt != nil {
		row.StartedAt = startedAt
	}
	if completedAt != nil {
		row.CompletedAt = completedAt
	}
	row.ErrorMessage = errMessage
	row.ErrorNodeID = errNodeID
	s.executions[executionID] = row
	return nil
}

func (s *Store) GetExecution(ctx context.Context, executionID string) (store.ExecutionRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.executions[executionID]
	if !ok {
		return store.ExecutionRow{}, store.ErrNotFound
	}
	return row, nil
}

func (s *Store) AppendEvent(ctx context.Context, rec store.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(rec)
}

func (s *Store) AppendEvents(ctx context.Context, recs []store.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range recs {
		if err := s.appendLocked(rec); err != nil {
			return err
		}
	}
	return nil
}

// appendLocked is idempotent on (ExecutionID, Index): a retried append of an
// already-recorded index is a no-op rather than a duplicate.
func (s *Store) appendLocked(rec store.EventRecord) error {
	log := s.events[rec.ExecutionID]
	for _, existing := range log {
		if existing.Index == rec.Index {
			return nil
		}
	}
	log = append(log, rec)
	sort.Slice(log, func(i, j int) bool { return log[i].Index < log[j].Index })
	s.events[rec.ExecutionID] = log
	return nil
}

func (s *Store) ListEventsSince(ctx context.Context, executionID string, lastIndex int64) ([]store.EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.EventRecord
	for _, rec := range s.events[executionID] {
		if rec.Index > lastIndex {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *Store) ListRootsFor(ctx context.Context, owner string, filters store.Filters, pagination store.Pagination) ([]store.ExecutionRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.ExecutionRow
	for _, id := range s.rootsByUser[owner] {
		row := s.executions[id]
		if filters.Status != "" && row.Status != filters.Status {
			continue
		}
		if filters.FlowID != "" && row.FlowID != filters.FlowID {
			continue
		}
		out = append(out, row)
	}
	return paginate(out, pagination), nil
}

func (s *Store) ListChildrenOf(ctx context.Context, executionID string) ([]store.ExecutionRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.ExecutionRow
	for _, id := range s.childrenOf[executionID] {
		out = append(out, s.executions[id])
	}
	return out, nil
}

func paginate(rows []store.ExecutionRow, p store.Pagination) []store.ExecutionRow {
	if p.Offset >= len(rows) {
		return nil
	}
	rows = rows[p.Offset:]
	if p.Limit > 0 && p.Limit < len(rows) {
		rows = rows[:p.Limit]
	}
	return rows
}
