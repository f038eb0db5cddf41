package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chaingraph-labs/engine/store"
)

// Store implements store.Store using Redis.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // Key prefix, default "chaingraph:"
	TTL      time.Duration // Expiration for execution/event keys, default 0 (no expiration)
}

// New constructs a Redis-backed store.
func New(opts Options) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "chaingraph:"
	}

	return &Store{client: client, prefix: prefix, ttl: opts.TTL}
}

func (s *Store) executionKey(id string) string {
	return fmt.Sprintf("%sexecution:%s", s.prefix, id)
}

func (s *Store) eventsKey(id string) string {
	return fmt.Sprintf("%sexecution:%s:events", s.prefix, id)
}

func (s *Store) rootsKey(owner string) string {
	return fmt.Sprintf("%sroots:%s", s.prefix, owner)
}

func (s *Store) childrenKey(id string) string {
	return fmt.Sprintf("%schildren:%s", s.prefix, id)
}

func (s *Store) CreateExecution(ctx context.Context, row store.ExecutionRow) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal execution: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.executionKey(row.ID), data, s.ttl)
	if row.ParentExecutionID != "" {
		pipe.RPush(ctx, s.childrenKey(row.ParentExecutionID), row.ID)
	} else {
		pipe.RPush(ctx, s.rootsKey(row.OwnerID), row.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create execution in redis: %w", err)
	}
	return nil
}

func (s *Store) UpdateStatus(ctx context.Context, executionID, status string, startedAt, completedAt *time.Time, errMessage, errNodeID string) error {
	row, err := s.GetExecution(ctx, executionID)
	if err != nil {
		return err
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
	row.UpdatedAt = time.Now()

	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal execution: %w", err)
	}
	if err := s.client.Set(ctx, s.executionKey(executionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to update execution status in redis: %w", err)
	}
	return nil
}

func (s *Store) GetExecution(ctx context.Context, executionID string) (store.ExecutionRow, error) {
	data, err := s.client.Get(ctx, s.executionKey(executionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return store.ExecutionRow{}, store.ErrNotFound
		}
		return store.ExecutionRow{}, fmt.Errorf("failed to load execution from redis: %w", err)
	}
	var row store.ExecutionRow
	if err := json.Unmarshal(data, &row); err != nil {
		return store.ExecutionRow{}, fmt.Errorf("failed to unmarshal execution: %w", err)
	}
	return row, nil
}

// events are stored in a hash keyed by execution, field = decimal index, so
// HSETNX gives idempotent appends on (executionID, index) without a round
// trip to check existence first.
func (s *Store) AppendEvent(ctx context.Context, rec store.EventRecord) error {
	return s.appendEvents(ctx, []store.EventRecord{rec})
}

func (s *Store) AppendEvents(ctx context.Context, recs []store.EventRecord) error {
	return s.appendEvents(ctx, recs)
}

func (s *Store) appendEvents(ctx context.Context, recs []store.EventRecord) error {
	if len(recs) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for _, rec := range recs {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		field := strconv.FormatInt(rec.Index, 10)
		pipe.HSetNX(ctx, s.eventsKey(rec.ExecutionID), field, data)
		if s.ttl > 0 {
			pipe.Expire(ctx, s.eventsKey(rec.ExecutionID), s.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append events to redis: %w", err)
	}
	return nil
}

func (s *Store) ListEventsSince(ctx context.Context, executionID string, lastIndex int64) ([]store.EventRecord, error) {
	all, err := s.client.HGetAll(ctx, s.eventsKey(executionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list events from redis: %w", err)
	}
	var out []store.EventRecord
	for _, raw := range all {
		var rec store.EventRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		if rec.Index > lastIndex {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (s *Store) ListRootsFor(ctx context.Context, owner string, filters store.Filters, pagination store.Pagination) ([]store.ExecutionRow, error) {
	ids, err := s.client.LRange(ctx, s.rootsKey(owner), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list roots from redis: %w", err)
	}
	rows, err := s.fetchAndFilter(ctx, ids, filters)
	if err != nil {
		return nil, err
	}
	return paginate(rows, pagination), nil
}

func (s *Store) ListChildrenOf(ctx context.Context, executionID string) ([]store.ExecutionRow, error) {
	ids, err := s.client.LRange(ctx, s.childrenKey(executionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list children from redis: %w", err)
	}
	return s.fetchAndFilter(ctx, ids, store.Filters{})
}

func (s *Store) fetchAndFilter(ctx context.Context, ids []string, filters store.Filters) ([]store.ExecutionRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.executionKey(id)
	}
	results, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch executions from redis: %w", err)
	}
	var out []store.ExecutionRow
	for _, result := range results {
		if result == nil {
			continue
		}
		raw, ok := result.(string)
		if !ok {
			continue
		}
		var row store.ExecutionRow
		if err := json.Unmarshal([]byte(raw), &row); err != nil {
			continue
		}
		if filters.Status != "" && row.Status != filters.Status {
			continue
		}
		if filters.FlowID != "" && row.FlowID != filters.FlowID {
			continue
		}
		out = append(out, row)
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
