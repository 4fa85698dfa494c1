package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
)

const runColumns = `id, app_id, board_id, version, event_id, node_id, status, mode,
	input_payload_len, output_payload_len, error_message, progress, current_step, user_id,
	started_at, completed_at, expires_at, created_at, updated_at`

// CreateRun inserts a run record.
func (s *PGStore) CreateRun(ctx context.Context, run *domain.RunRecord) error {
	created := run.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	updated := run.UpdatedAt
	if updated.IsZero() {
		updated = created
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO flowlike_runs (`+runColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		run.ID, run.AppID, run.BoardID, run.Version, run.EventID, run.NodeID, string(run.Status), string(run.Mode),
		run.InputPayloadLen, run.OutputPayloadLen, run.ErrorMessage, run.Progress, run.CurrentStep, run.UserID,
		run.StartedAt, run.CompletedAt, run.ExpiresAt, created, updated,
	)
	if err != nil {
		return fmt.Errorf("runs: insert run: %w", err)
	}
	return nil
}

// GetRun fetches a run by ID.
// Returns domain.ErrRunNotFound if not found.
func (s *PGStore) GetRun(ctx context.Context, runID string) (*domain.RunRecord, error) {
	rec, err := scanRun(s.db.QueryRow(ctx,
		`SELECT `+runColumns+` FROM flowlike_runs WHERE id = $1`, runID))
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("runs: get run: %w", err)
	}
	return rec, nil
}

// GetRunForApp fetches a run owned by appID.
func (s *PGStore) GetRunForApp(ctx context.Context, runID, appID string) (*domain.RunRecord, error) {
	rec, err := scanRun(s.db.QueryRow(ctx,
		`SELECT `+runColumns+` FROM flowlike_runs WHERE id = $1 AND app_id = $2`, runID, appID))
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("runs: get run: %w", err)
	}
	return rec, nil
}

// UpdateRun applies the set fields of update in one statement.
func (s *PGStore) UpdateRun(ctx context.Context, runID string, update domain.RunUpdate) (*domain.RunRecord, error) {
	var status *string
	if update.Status != nil {
		v := string(*update.Status)
		status = &v
	}

	rec, err := scanRun(s.db.QueryRow(ctx,
		`UPDATE flowlike_runs SET
			status             = COALESCE($2, status),
			progress           = COALESCE($3, progress),
			current_step       = COALESCE($4, current_step),
			output_payload_len = COALESCE($5, output_payload_len),
			error_message      = COALESCE($6, error_message),
			started_at         = COALESCE($7, started_at),
			completed_at       = COALESCE($8, completed_at),
			updated_at         = NOW()
		 WHERE id = $1
		 RETURNING `+runColumns,
		runID, status, update.Progress, update.CurrentStep, update.OutputPayloadLen,
		update.ErrorMessage, update.StartedAt, update.CompletedAt,
	))
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("runs: update run: %w", err)
	}
	return rec, nil
}

// ListRunsForApp returns runs of an app, newest first, starting after cursor.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListRunsForApp(ctx context.Context, appID string, limit int, cursor string) ([]*domain.RunRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+runColumns+` FROM flowlike_runs
		 WHERE app_id = $1
		   AND ($2 = '' OR (created_at, id) < (SELECT created_at, id FROM flowlike_runs WHERE id = $2))
		 ORDER BY created_at DESC, id DESC
		 LIMIT NULLIF($3, 0)`,
		appID, cursor, int64(max(limit, 0)))
	if err != nil {
		return nil, fmt.Errorf("runs: list runs: %w", err)
	}
	defer rows.Close()

	runs := []*domain.RunRecord{}
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("runs: scan run: %w", err)
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

// DeleteExpiredRuns removes runs whose expiry passed.
func (s *PGStore) DeleteExpiredRuns(ctx context.Context, now time.Time) (int64, error) {
	ct, err := s.db.Exec(ctx,
		`DELETE FROM flowlike_runs WHERE expires_at IS NOT NULL AND expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("runs: delete expired: %w", err)
	}
	return ct.RowsAffected(), nil
}

func scanRun(row pgx.Row) (*domain.RunRecord, error) {
	var (
		r            domain.RunRecord
		status, mode string
	)
	err := row.Scan(
		&r.ID, &r.AppID, &r.BoardID, &r.Version, &r.EventID, &r.NodeID, &status, &mode,
		&r.InputPayloadLen, &r.OutputPayloadLen, &r.ErrorMessage, &r.Progress, &r.CurrentStep, &r.UserID,
		&r.StartedAt, &r.CompletedAt, &r.ExpiresAt, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Status = domain.ExecutionStatus(status)
	r.Mode = domain.RunMode(mode)
	return &r, nil
}
