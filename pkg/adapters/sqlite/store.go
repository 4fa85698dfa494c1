// Package sqlite persists run summaries and node logs in a SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/ports"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema
// 1 - Added level index on log_lines
const currentSchemaVersion = 1

// LogStore implements ports.LogStore on SQLite.
// Uses WAL mode so readers never block the run writer.
type LogStore struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
func Open(path string) (*LogStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &LogStore{db: db}, nil
}

// Close closes the database connection.
func (s *LogStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < 1 {
		if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_log_lines_level ON log_lines(run_id, level)`); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// WriteRun replaces the run's summary and log lines in one transaction.
func (s *LogStore) WriteRun(ctx context.Context, meta *domain.LogMeta, traces []*domain.Trace) error {
	nodes, err := json.Marshal(meta.Nodes)
	if err != nil {
		return fmt.Errorf("failed to marshal nodes: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{`DELETE FROM log_lines WHERE run_id = ?`, `DELETE FROM run_logs WHERE run_id = ?`} {
		if _, err := tx.ExecContext(ctx, q, meta.RunID); err != nil {
			return fmt.Errorf("failed to replace run: %w", err)
		}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO run_logs (run_id, app_id, board_id, version, start_ns, end_ns, log_level, logs,
			nodes, node_id, event_id, payload, status, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.RunID, meta.AppID, meta.BoardID, meta.Version, meta.Start.UnixNano(), meta.End.UnixNano(),
		int(meta.LogLevel), meta.Logs, string(nodes), meta.NodeID, meta.EventID, meta.Payload,
		string(meta.Status), meta.ErrorMessage)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO log_lines (run_id, seq, trace_id, node_id, level, message, start_ns, end_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare log insert: %w", err)
	}
	defer stmt.Close()

	seq := 0
	for _, t := range traces {
		for _, l := range t.Logs {
			node := l.NodeID
			if node == "" {
				node = t.NodeID
			}
			if _, err := stmt.ExecContext(ctx, meta.RunID, seq, t.ID, node, int(l.Level), l.Message,
				l.Start.UnixNano(), l.End.UnixNano()); err != nil {
				return fmt.Errorf("failed to insert log line: %w", err)
			}
			seq++
		}
	}

	return tx.Commit()
}

const metaColumns = `run_id, app_id, board_id, version, start_ns, end_ns, log_level, logs,
	nodes, node_id, event_id, payload, status, error_message`

// GetRunMeta loads a run summary.
func (s *LogStore) GetRunMeta(ctx context.Context, runID string) (*domain.LogMeta, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+metaColumns+` FROM run_logs WHERE run_id = ?`, runID)
	meta, err := scanMeta(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
	}
	return meta, err
}

// ListRuns returns summaries of a board, newest first. An empty boardID lists every board.
func (s *LogStore) ListRuns(ctx context.Context, boardID string, limit int) ([]*domain.LogMeta, error) {
	query := `SELECT ` + metaColumns + ` FROM run_logs WHERE (? = '' OR board_id = ?) ORDER BY start_ns DESC`
	args := []any{boardID, boardID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var metas []*domain.LogMeta
	for rows.Next() {
		m, err := scanMeta(rows)
		if err != nil {
			return nil, err
		}
		metas = append(metas, m)
	}
	return metas, rows.Err()
}

// QueryLogs returns the log lines of a run in emission order.
func (s *LogStore) QueryLogs(ctx context.Context, q ports.LogQuery) ([]domain.LogMessage, error) {
	var (
		where = []string{"run_id = ?", "level >= ?"}
		args  = []any{q.RunID, int(q.MinLevel)}
	)
	if q.NodeID != "" {
		where = append(where, "node_id = ?")
		args = append(args, q.NodeID)
	}
	query := `SELECT node_id, level, message, start_ns, end_ns FROM log_lines WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY seq`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	defer rows.Close()

	var lines []domain.LogMessage
	for rows.Next() {
		var (
			l          domain.LogMessage
			level      int
			start, end int64
		)
		if err := rows.Scan(&l.NodeID, &level, &l.Message, &start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan log line: %w", err)
		}
		l.Level = domain.LogLevel(level)
		l.Start = time.Unix(0, start).UTC()
		l.End = time.Unix(0, end).UTC()
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMeta(row scanner) (*domain.LogMeta, error) {
	var (
		m             domain.LogMeta
		start, end    int64
		level         int
		nodes, status string
	)
	if err := row.Scan(&m.RunID, &m.AppID, &m.BoardID, &m.Version, &start, &end, &level, &m.Logs,
		&nodes, &m.NodeID, &m.EventID, &m.Payload, &status, &m.ErrorMessage); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(nodes), &m.Nodes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal nodes: %w", err)
	}
	m.Start = time.Unix(0, start).UTC()
	m.End = time.Unix(0, end).UTC()
	m.LogLevel = domain.LogLevel(level)
	m.Status = domain.RunStatus(status)
	return &m, nil
}
