package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
)

// DefaultTTL applies to records without an explicit expiry.
const DefaultTTL = 24 * time.Hour

// Store implements ports.RunStore using Redis.
// Records are JSON strings with native key expiry; per-app runs and per-run
// events are indexed by sorted sets.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Store)

// WithTTL sets the expiration for records without ExpiresAt.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "exec:",
		ttl:    DefaultTTL,
		now:    func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *Store) runKey(id string) string         { return s.prefix + "run:" + id }
func (s *Store) eventKey(id string) string       { return s.prefix + "event:" + id }
func (s *Store) runsByAppKey(app string) string  { return s.prefix + "app:runs:" + app }
func (s *Store) eventsByRunKey(id string) string { return s.prefix + "run:events:" + id }

// ttlFor converts an absolute expiry into a key TTL of at least one second.
func (s *Store) ttlFor(expiresAt *time.Time) time.Duration {
	if expiresAt == nil {
		return s.ttl
	}
	return max(expiresAt.Sub(s.now()), time.Second)
}

// CreateRun stores the record and indexes it under its app.
func (s *Store) CreateRun(ctx context.Context, run *domain.RunRecord) error {
	rec := *run
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	data, err := json.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	ttl := s.ttlFor(rec.ExpiresAt)

	// 1. Save JSON with TTL, refusing to overwrite
	ok, err := s.client.SetNX(ctx, s.runKey(rec.ID), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to save run to redis: %w", err)
	}
	if !ok {
		return fmt.Errorf("run %s already exists", rec.ID)
	}

	// 2. Add to the app index (ZSET scored by creation time)
	pipe := s.client.Pipeline()
	appKey := s.runsByAppKey(rec.AppID)
	pipe.ZAdd(ctx, appKey, backend.Z{Score: float64(rec.CreatedAt.UnixMilli()), Member: rec.ID})
	pipe.Expire(ctx, appKey, max(ttl, s.ttl))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to index run: %w", err)
	}
	return nil
}

// GetRun loads a run record.
func (s *Store) GetRun(ctx context.Context, runID string) (*domain.RunRecord, error) {
	val, err := s.client.Get(ctx, s.runKey(runID)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("failed to get run from redis: %w", err)
	}

	var rec domain.RunRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &rec, nil
}

// GetRunForApp loads a run record owned by appID.
func (s *Store) GetRunForApp(ctx context.Context, runID, appID string) (*domain.RunRecord, error) {
	rec, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if rec.AppID != appID {
		return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
	}
	return rec, nil
}

// UpdateRun reads, patches and rewrites the record.
// Concurrent writers to one run must be serialized by the caller.
func (s *Store) UpdateRun(ctx context.Context, runID string, update domain.RunUpdate) (*domain.RunRecord, error) {
	rec, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	update.Apply(rec, s.now())

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run: %w", err)
	}
	if err := s.client.Set(ctx, s.runKey(runID), data, s.ttlFor(rec.ExpiresAt)).Err(); err != nil {
		return nil, fmt.Errorf("failed to save run to redis: %w", err)
	}
	return rec, nil
}

// ListRunsForApp pages through the app index, newest first. Runs whose
// record already expired are skipped.
func (s *Store) ListRunsForApp(ctx context.Context, appID string, limit int, cursor string) ([]*domain.RunRecord, error) {
	appKey := s.runsByAppKey(appID)

	var ids []string
	if cursor != "" {
		score, err := s.client.ZScore(ctx, appKey, cursor).Result()
		if errors.Is(err, backend.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read cursor: %w", err)
		}
		ids, err = s.client.ZRevRangeByScore(ctx, appKey, &backend.ZRangeBy{
			Max:   "(" + strconv.FormatFloat(score, 'f', -1, 64),
			Min:   "-inf",
			Count: int64(limit),
		}).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to list runs: %w", err)
		}
	} else {
		stop := int64(-1)
		if limit > 0 {
			stop = int64(limit) - 1
		}
		var err error
		ids, err = s.client.ZRevRange(ctx, appKey, 0, stop).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to list runs: %w", err)
		}
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.runKey(id)
	}
	var runs []*domain.RunRecord
	err := s.mget(ctx, keys, func(raw string) error {
		var rec domain.RunRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return fmt.Errorf("failed to unmarshal run: %w", err)
		}
		runs = append(runs, &rec)
		return nil
	})
	return runs, err
}

// PushEvents stores the events and indexes them by sequence.
func (s *Store) PushEvents(ctx context.Context, events []*domain.EventRecord) error {
	if len(events) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, e := range events {
		rec := *e
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = s.now()
		}
		data, err := json.Marshal(&rec)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}

		var expires *time.Time
		if !rec.ExpiresAt.IsZero() {
			expires = &rec.ExpiresAt
		}
		ttl := s.ttlFor(expires)
		runEventsKey := s.eventsByRunKey(rec.RunID)

		pipe.Set(ctx, s.eventKey(rec.ID), data, ttl)
		pipe.ZAdd(ctx, runEventsKey, backend.Z{Score: float64(rec.Sequence), Member: rec.ID})
		pipe.Expire(ctx, runEventsKey, max(ttl, s.ttl))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push events: %w", err)
	}
	return nil
}

// GetEvents reads events of a run in sequence order.
func (s *Store) GetEvents(ctx context.Context, query domain.EventQuery) ([]*domain.EventRecord, error) {
	rng := &backend.ZRangeBy{
		Min: "(" + strconv.FormatInt(query.AfterSequence, 10),
		Max: "+inf",
	}
	// Undelivered filtering happens after the read, so the limit is applied last.
	if query.Limit > 0 && !query.OnlyUndelivered {
		rng.Count = int64(query.Limit)
	}
	ids, err := s.client.ZRangeByScore(ctx, s.eventsByRunKey(query.RunID), rng).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.eventKey(id)
	}
	var events []*domain.EventRecord
	err = s.mget(ctx, keys, func(raw string) error {
		var rec domain.EventRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return fmt.Errorf("failed to unmarshal event: %w", err)
		}
		if query.OnlyUndelivered && rec.Delivered {
			return nil
		}
		if query.Limit > 0 && len(events) == query.Limit {
			return nil
		}
		events = append(events, &rec)
		return nil
	})
	return events, err
}

// GetMaxSequence returns the top score of the run's event index.
func (s *Store) GetMaxSequence(ctx context.Context, runID string) (int64, error) {
	top, err := s.client.ZRevRangeWithScores(ctx, s.eventsByRunKey(runID), 0, 0).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read max sequence: %w", err)
	}
	if len(top) == 0 {
		return 0, nil
	}
	return int64(top[0].Score), nil
}

// MarkEventsDelivered rewrites each event keeping its remaining TTL.
func (s *Store) MarkEventsDelivered(ctx context.Context, eventIDs []string) error {
	for _, id := range eventIDs {
		key := s.eventKey(id)
		val, err := s.client.Get(ctx, key).Result()
		if errors.Is(err, backend.Nil) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to get event: %w", err)
		}

		var rec domain.EventRecord
		if err := json.Unmarshal([]byte(val), &rec); err != nil {
			return fmt.Errorf("failed to unmarshal event: %w", err)
		}
		rec.Delivered = true
		data, err := json.Marshal(&rec)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		if err := s.client.Set(ctx, key, data, backend.KeepTTL).Err(); err != nil {
			return fmt.Errorf("failed to save event: %w", err)
		}
	}
	return nil
}

// DeleteExpiredRuns is a no-op: Redis expires run keys natively.
func (s *Store) DeleteExpiredRuns(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// DeleteExpiredEvents is a no-op: Redis expires event keys natively.
func (s *Store) DeleteExpiredEvents(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

// mget loads keys in one round trip and calls fn for every key still present.
func (s *Store) mget(ctx context.Context, keys []string, fn func(raw string) error) error {
	if len(keys) == 0 {
		return nil
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return fmt.Errorf("failed to read from redis: %w", err)
	}
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		if err := fn(raw); err != nil {
			return err
		}
	}
	return nil
}
