package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
)

// PushEvents inserts events in a single batch. Re-pushing an id replaces it.
func (s *PGStore) PushEvents(ctx context.Context, events []*domain.EventRecord) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range events {
		created := e.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		var payload []byte
		if len(e.Payload) > 0 {
			payload = e.Payload
		}
		batch.Queue(
			`INSERT INTO flowlike_run_events (id, run_id, sequence, event_type, payload, delivered, expires_at, created_at)
			 VALUES ($1, $2, $3, $4, COALESCE($5::jsonb, 'null'::jsonb), $6, $7, $8)
			 ON CONFLICT (id) DO UPDATE SET
				sequence   = EXCLUDED.sequence,
				event_type = EXCLUDED.event_type,
				payload    = EXCLUDED.payload,
				expires_at = EXCLUDED.expires_at`,
			e.ID, e.RunID, e.Sequence, e.EventType, payload, e.Delivered, nullTime(e.ExpiresAt), created,
		)
	}

	if err := s.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("events: insert events: %w", err)
	}
	return nil
}

// GetEvents returns events of a run ordered by sequence.
func (s *PGStore) GetEvents(ctx context.Context, q domain.EventQuery) ([]*domain.EventRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, run_id, sequence, event_type, payload, delivered, expires_at, created_at
		 FROM flowlike_run_events
		 WHERE run_id = $1 AND sequence > $2 AND (NOT $3 OR NOT delivered)
		 ORDER BY sequence
		 LIMIT NULLIF($4, 0)`,
		q.RunID, q.AfterSequence, q.OnlyUndelivered, int64(max(q.Limit, 0)))
	if err != nil {
		return nil, fmt.Errorf("events: list events: %w", err)
	}
	defer rows.Close()

	events := []*domain.EventRecord{}
	for rows.Next() {
		var (
			e       domain.EventRecord
			payload []byte
			expires *time.Time
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Sequence, &e.EventType, &payload, &e.Delivered, &expires, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("events: scan event: %w", err)
		}
		e.Payload = payload
		if expires != nil {
			e.ExpiresAt = *expires
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// GetMaxSequence returns the highest sequence of a run, or 0.
func (s *PGStore) GetMaxSequence(ctx context.Context, runID string) (int64, error) {
	var seq int64
	err := s.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(sequence), 0) FROM flowlike_run_events WHERE run_id = $1`, runID,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("events: max sequence: %w", err)
	}
	return seq, nil
}

// MarkEventsDelivered flags the given events.
func (s *PGStore) MarkEventsDelivered(ctx context.Context, eventIDs []string) error {
	if len(eventIDs) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx,
		`UPDATE flowlike_run_events SET delivered = TRUE WHERE id = ANY($1)`, eventIDs)
	if err != nil {
		return fmt.Errorf("events: mark delivered: %w", err)
	}
	return nil
}

// DeleteExpiredEvents removes events whose expiry passed.
func (s *PGStore) DeleteExpiredEvents(ctx context.Context, now time.Time) (int64, error) {
	ct, err := s.db.Exec(ctx,
		`DELETE FROM flowlike_run_events WHERE expires_at IS NOT NULL AND expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("events: delete expired: %w", err)
	}
	return ct.RowsAffected(), nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
