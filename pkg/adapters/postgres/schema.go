package postgres

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS flowlike_runs (
    id                 TEXT PRIMARY KEY,
    app_id             TEXT NOT NULL,
    board_id           TEXT NOT NULL,
    version            TEXT NOT NULL DEFAULT '',
    event_id           TEXT NOT NULL DEFAULT '',
    node_id            TEXT NOT NULL DEFAULT '',
    status             TEXT NOT NULL,
    mode               TEXT NOT NULL DEFAULT 'Local',
    input_payload_len  BIGINT NOT NULL DEFAULT 0,
    output_payload_len BIGINT NOT NULL DEFAULT 0,
    error_message      TEXT NOT NULL DEFAULT '',
    progress           INTEGER NOT NULL DEFAULT 0,
    current_step       TEXT NOT NULL DEFAULT '',
    user_id            TEXT NOT NULL DEFAULT '',
    started_at         TIMESTAMPTZ,
    completed_at       TIMESTAMPTZ,
    expires_at         TIMESTAMPTZ,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS flowlike_run_events (
    id         TEXT PRIMARY KEY,
    run_id     TEXT NOT NULL,
    sequence   BIGINT NOT NULL,
    event_type TEXT NOT NULL,
    payload    JSONB NOT NULL DEFAULT 'null',
    delivered  BOOLEAN NOT NULL DEFAULT FALSE,
    expires_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_flowlike_runs_app     ON flowlike_runs(app_id, created_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_flowlike_runs_expires ON flowlike_runs(expires_at);
CREATE INDEX IF NOT EXISTS idx_flowlike_events_run   ON flowlike_run_events(run_id, sequence);
CREATE INDEX IF NOT EXISTS idx_flowlike_events_exp   ON flowlike_run_events(expires_at);
`

// CreateSchema creates the run and event tables if they don't exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops the run and event tables.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS flowlike_run_events, flowlike_runs CASCADE;`)
	return err
}
