package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chaingraph-labs/engine/store"
)

// DBPool is the subset of *pgxpool.Pool this store needs, seamed out so
// tests can substitute pgxmock.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Store implements store.Store using PostgreSQL.
type Store struct {
	pool            DBPool
	executionsTable string
	eventsTable     string
}

// Options configures the Postgres connection.
type Options struct {
	ConnString      string
	ExecutionsTable string // Default "executions"
	EventsTable     string // Default "execution_events"
}

// New opens a pool and initializes the schema.
func New(ctx context.Context, opts Options) (*Store, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	s := NewWithPool(pool, opts.ExecutionsTable, opts.EventsTable)
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool constructs a Store over an existing pool, useful for testing
// with a mock DBPool.
func NewWithPool(pool DBPool, executionsTable, eventsTable string) *Store {
	if executionsTable == "" {
		executionsTable = "executions"
	}
	if eventsTable == "" {
		eventsTable = "execution_events"
	}
	return &Store{pool: pool, executionsTable: executionsTable, eventsTable: eventsTable}
}

func (s *Store) initSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			flow_id TEXT NOT NULL,
			flow_version BIGINT NOT NULL,
			owner_id TEXT NOT NULL,
			parent_execution_id TEXT,
			execution_depth INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL,
			error_message TEXT,
			error_node_id TEXT,
			metadata JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_%s_owner ON %s (owner_id, parent_execution_id);
		CREATE INDEX IF NOT EXISTS idx_%s_parent ON %s (parent_execution_id);

		CREATE TABLE IF NOT EXISTS %s (
			execution_id TEXT NOT NULL,
			idx BIGINT NOT NULL,
			event_type TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			data JSONB,
			PRIMARY KEY (execution_id, idx)
		);
	`, s.executionsTable, s.executionsTable, s.executionsTable, s.executionsTable, s.executionsTable, s.eventsTable)
	_, err := s.pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) CreateExecution(ctx context.Context, row store.ExecutionRow) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, flow_id, flow_version, owner_id, parent_execution_id, execution_depth, status, created_at, started_at, completed_at, updated_at, error_message, error_node_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, s.executionsTable)
	_, err := s.pool.Exec(ctx, query,
		row.ID, row.FlowID, row.FlowVersion, row.OwnerID, nullableString(row.ParentExecutionID), row.ExecutionDepth,
		row.Status, row.CreatedAt, row.StartedAt, row.CompletedAt, row.UpdatedAt,
		row.ErrorMessage, row.ErrorNodeID, row.Metadata)
	if err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}
	return nil
}

func (s *Store) UpdateStatus(ctx context.Context, executionID, status string, startedAt, completedAt *time.Time, errMessage, errNodeID string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET status = $1, started_at = COALESCE($2, started_at), completed_at = COALESCE($3, completed_at),
			error_message = $4, error_node_id = $5, updated_at = $6
		WHERE id = $7
	`, s.executionsTable)
	_, err := s.pool.Exec(ctx, query, status, startedAt, completedAt, errMessage, errNodeID, time.Now(), executionID)
	if err != nil {
		return fmt.Errorf("failed to update execution status: %w", err)
	}
	return nil
}

func (s *Store) GetExecution(ctx context.Context, executionID string) (store.ExecutionRow, error) {
	query := fmt.Sprintf(`
		SELECT id, flow_id, flow_version, owner_id, parent_execution_id, execution_depth, status, created_at, started_at, completed_at, updated_at, error_message, error_node_id, metadata
		FROM %s WHERE id = $1
	`, s.executionsTable)
	var row store.ExecutionRow
	var parentID *string
	err := s.pool.QueryRow(ctx, query, executionID).Scan(
		&row.ID, &row.FlowID, &row.FlowVersion, &row.OwnerID, &parentID, &row.ExecutionDepth, &row.Status,
		&row.CreatedAt, &row.StartedAt, &row.CompletedAt, &row.UpdatedAt, &row.ErrorMessage, &row.ErrorNodeID, &row.Metadata)
	if err != nil {
		if err == pgx.ErrNoRows {
			return store.ExecutionRow{}, store.ErrNotFound
		}
		return store.ExecutionRow{}, fmt.Errorf("failed to get execution: %w", err)
	}
	if parentID != nil {
		row.ParentExecutionID = *parentID
	}
	return row, nil
}

func (s *Store) AppendEvent(ctx context.Context, rec store.EventRecord) error {
	return s.insertEvent(ctx, s.pool, rec)
}

func (s *Store) AppendEvents(ctx context.Context, recs []store.EventRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin batch append: %w", err)
	}
	for _, rec := range recs {
		if err := s.insertEvent(ctx, tx, rec); err != nil {
			tx.Rollback(ctx)
			return err
		}
	}
	return tx.Commit(ctx)
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func (s *Store) insertEvent(ctx context.Context, x execer, rec store.EventRecord) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (execution_id, idx, event_type, timestamp, data)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (execution_id, idx) DO NOTHING
	`, s.eventsTable)
	_, err := x.Exec(ctx, query, rec.ExecutionID, rec.Index, rec.EventType, rec.Timestamp, rec.Data)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (s *Store) ListEventsSince(ctx context.Context, executionID string, lastIndex int64) ([]store.EventRecord, error) {
	query := fmt.Sprintf(`
		SELECT execution_id, idx, event_type, timestamp, data FROM %s
		WHERE execution_id = $1 AND idx > $2
		ORDER BY idx ASC
	`, s.eventsTable)
	rows, err := s.pool.Query(ctx, query, executionID, lastIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var out []store.EventRecord
	for rows.Next() {
		var rec store.EventRecord
		if err := rows.Scan(&rec.ExecutionID, &rec.Index, &rec.EventType, &rec.Timestamp, &rec.Data); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) ListRootsFor(ctx context.Context, owner string, filters store.Filters, pagination store.Pagination) ([]store.ExecutionRow, error) {
	query := fmt.Sprintf(`
		SELECT id, flow_id, flow_version, owner_id, parent_execution_id, execution_depth, status, created_at, started_at, completed_at, updated_at, error_message, error_node_id, metadata
		FROM %s WHERE owner_id = $1 AND parent_execution_id IS NULL
	`, s.executionsTable)
	args := []any{owner}
	n := 1
	if filters.Status != "" {
		n++
		query += fmt.Sprintf(" AND status = $%d", n)
		args = append(args, filters.Status)
	}
	if filters.FlowID != "" {
		n++
		query += fmt.Sprintf(" AND flow_id = $%d", n)
		args = append(args, filters.FlowID)
	}
	query += " ORDER BY created_at ASC"
	if pagination.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", n+1, n+2)
		args = append(args, pagination.Limit, pagination.Offset)
	}
	return s.queryRows(ctx, query, args...)
}

func (s *Store) ListChildrenOf(ctx context.Context, executionID string) ([]store.ExecutionRow, error) {
	query := fmt.Sprintf(`
		SELECT id, flow_id, flow_version, owner_id, parent_execution_id, execution_depth, status, created_at, started_at, completed_at, updated_at, error_message, error_node_id, metadata
		FROM %s WHERE parent_execution_id = $1 ORDER BY created_at ASC
	`, s.executionsTable)
	return s.queryRows(ctx, query, executionID)
}

func (s *Store) queryRows(ctx context.Context, query string, args ...any) ([]store.ExecutionRow, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	var out []store.ExecutionRow
	for rows.Next() {
		var row store.ExecutionRow
		var parentID *string
		if err := rows.Scan(&row.ID, &row.FlowID, &row.FlowVersion, &row.OwnerID, &parentID, &row.ExecutionDepth, &row.Status,
			&row.CreatedAt, &row.StartedAt, &row.CompletedAt, &row.UpdatedAt, &row.ErrorMessage, &row.ErrorNodeID, &row.Metadata); err != nil {
			return nil, fmt.Errorf("failed to scan execution row: %w", err)
		}
		if parentID != nil {
			row.ParentExecutionID = *parentID
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
