package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/chaingraph-labs/engine/store"
)

// Store implements store.Store using SQLite.
type Store struct {
	db              *sql.DB
	executionsTable string
	eventsTable     string
}

// Options configures the SQLite connection.
type Options struct {
	Path            string
	ExecutionsTable string // Default "executions"
	EventsTable     string // Default "execution_events"
}

// New opens (and creates, if necessary) a SQLite-backed store.
func New(opts Options) (*Store, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	executionsTable := opts.ExecutionsTable
	if executionsTable == "" {
		executionsTable = "executions"
	}
	eventsTable := opts.EventsTable
	if eventsTable == "" {
		eventsTable = "execution_events"
	}

	s := &Store{db: db, executionsTable: executionsTable, eventsTable: eventsTable}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			flow_id TEXT NOT NULL,
			flow_version INTEGER NOT NULL,
			owner_id TEXT NOT NULL,
			parent_execution_id TEXT,
			execution_depth INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			started_at DATETIME,
			completed_at DATETIME,
			updated_at DATETIME NOT NULL,
			error_message TEXT,
			error_node_id TEXT,
			metadata TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_%s_owner ON %s (owner_id, parent_execution_id);
		CREATE INDEX IF NOT EXISTS idx_%s_parent ON %s (parent_execution_id);

		CREATE TABLE IF NOT EXISTS %s (
			execution_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			event_type TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			data TEXT,
			PRIMARY KEY (execution_id, idx)
		);
	`, s.executionsTable, s.executionsTable, s.executionsTable, s.executionsTable, s.executionsTable, s.eventsTable)

	_, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateExecution(ctx context.Context, row store.ExecutionRow) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, flow_id, flow_version, owner_id, parent_execution_id, execution_depth, status, created_at, started_at, completed_at, updated_at, error_message, error_node_id, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.executionsTable)
	_, err := s.db.ExecContext(ctx, query,
		row.ID, row.FlowID, row.FlowVersion, row.OwnerID, nullableString(row.ParentExecutionID), row.ExecutionDepth,
		row.Status, row.CreatedAt, row.StartedAt, row.CompletedAt, row.UpdatedAt,
		row.ErrorMessage, row.ErrorNodeID, string(row.Metadata))
	if err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}
	return nil
}

func (s *Store) UpdateStatus(ctx context.Context, executionID, status string, startedAt, completedAt *time.Time, errMessage, errNodeID string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET status = ?, started_at = COALESCE(?, started_at), completed_at = COALESCE(?, completed_at),
			error_message = ?, error_node_id = ?, updated_at = ?
		WHERE id = ?
	`, s.executionsTable)
	_, err := s.db.ExecContext(ctx, query, status, startedAt, completedAt, errMessage, errNodeID, time.Now(), executionID)
	if err != nil {
		return fmt.Errorf("failed to update execution status: %w", err)
	}
	return nil
}

func (s *Store) GetExecution(ctx context.Context, executionID string) (store.ExecutionRow, error) {
	query := fmt.Sprintf(`
		SELECT id, flow_id, flow_version, owner_id, parent_execution_id, execution_depth, status, created_at, started_at, completed_at, updated_at, error_message, error_node_id, metadata
		FROM %s WHERE id = ?
	`, s.executionsTable)
	var row store.ExecutionRow
	var parentID sql.NullString
	var metadata sql.NullString
	err := s.db.QueryRowContext(ctx, query, executionID).Scan(
		&row.ID, &row.FlowID, &row.FlowVersion, &row.OwnerID, &parentID, &row.ExecutionDepth, &row.Status,
		&row.CreatedAt, &row.StartedAt, &row.CompletedAt, &row.UpdatedAt, &row.ErrorMessage, &row.ErrorNodeID, &metadata)
	if err != nil {
		if err == sql.ErrNoRows {
			return store.ExecutionRow{}, store.ErrNotFound
		}
		return store.ExecutionRow{}, fmt.Errorf("failed to get execution: %w", err)
	}
	row.ParentExecutionID = parentID.String
	row.Metadata = []byte(metadata.String)
	return row, nil
}

func (s *Store) AppendEvent(ctx context.Context, rec store.EventRecord) error {
	return s.appendEvents(ctx, s.db, []store.EventRecord{rec})
}

func (s *Store) AppendEvents(ctx context.Context, recs []store.EventRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch append: %w", err)
	}
	if err := s.appendEvents(ctx, tx, recs); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) appendEvents(ctx context.Context, x execer, recs []store.EventRecord) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (execution_id, idx, event_type, timestamp, data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(execution_id, idx) DO NOTHING
	`, s.eventsTable)
	for _, rec := range recs {
		if _, err := x.ExecContext(ctx, query, rec.ExecutionID, rec.Index, rec.EventType, rec.Timestamp, string(rec.Data)); err != nil {
			return fmt.Errorf("failed to append event: %w", err)
		}
	}
	return nil
}

func (s *Store) ListEventsSince(ctx context.Context, executionID string, lastIndex int64) ([]store.EventRecord, error) {
	query := fmt.Sprintf(`
		SELECT execution_id, idx, event_type, timestamp, data FROM %s
		WHERE execution_id = ? AND idx > ?
		ORDER BY idx ASC
	`, s.eventsTable)
	rows, err := s.db.QueryContext(ctx, query, executionID, lastIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var out []store.EventRecord
	for rows.Next() {
		var rec store.EventRecord
		var data string
		if err := rows.Scan(&rec.ExecutionID, &rec.Index, &rec.EventType, &rec.Timestamp, &data); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		rec.Data = []byte(data)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) ListRootsFor(ctx context.Context, owner string, filters store.Filters, pagination store.Pagination) ([]store.ExecutionRow, error) {
	query := fmt.Sprintf(`
		SELECT id, flow_id, flow_version, owner_id, parent_execution_id, execution_depth, status, created_at, started_at, completed_at, updated_at, error_message, error_node_id, metadata
		FROM %s WHERE owner_id = ? AND parent_execution_id IS NULL
	`, s.executionsTable)
	args := []any{owner}
	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, filters.Status)
	}
	if filters.FlowID != "" {
		query += " AND flow_id = ?"
		args = append(args, filters.FlowID)
	}
	query += " ORDER BY created_at ASC"
	if pagination.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, pagination.Limit, pagination.Offset)
	}
	return s.queryRows(ctx, query, args...)
}

func (s *Store) ListChildrenOf(ctx context.Context, executionID string) ([]store.ExecutionRow, error) {
	query := fmt.Sprintf(`
		SELECT id, flow_id, flow_version, owner_id, parent_execution_id, execution_depth, status, created_at, started_at, completed_at, updated_at, error_message, error_node_id, metadata
		FROM %s WHERE parent_execution_id = ? ORDER BY created_at ASC
	`, s.executionsTable)
	return s.queryRows(ctx, query, executionID)
}

func (s *Store) queryRows(ctx context.Context, query string, args ...any) ([]store.ExecutionRow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	var out []store.ExecutionRow
	for rows.Next() {
		var row store.ExecutionRow
		var parentID sql.NullString
		var metadata sql.NullString
		if err := rows.Scan(&row.ID, &row.FlowID, &row.FlowVersion, &row.OwnerID, &parentID, &row.ExecutionDepth, &row.Status,
			&row.CreatedAt, &row.StartedAt, &row.CompletedAt, &row.UpdatedAt, &row.ErrorMessage, &row.ErrorNodeID, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan execution row: %w", err)
		}
		row.ParentExecutionID = parentID.String
		row.Metadata = []byte(metadata.String)
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
