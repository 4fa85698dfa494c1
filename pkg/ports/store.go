package ports

import (
	"context"
	"time"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
)

// RunStore defines the interface for persisting execution state of runs
// and the events they stream to callers.
type RunStore interface {
	// CreateRun stores a new run record.
	CreateRun(ctx context.Context, run *domain.RunRecord) error

	// GetRun retrieves a run by ID.
	// Returns domain.ErrRunNotFound if the run does not exist.
	GetRun(ctx context.Context, runID string) (*domain.RunRecord, error)

	// GetRunForApp retrieves a run only if it belongs to appID.
	// Returns domain.ErrRunNotFound otherwise.
	GetRunForApp(ctx context.Context, runID, appID string) (*domain.RunRecord, error)

	// UpdateRun applies a partial update and returns the stored result.
	UpdateRun(ctx context.Context, runID string, update domain.RunUpdate) (*domain.RunRecord, error)

	// ListRunsForApp returns runs of an application, newest first.
	// cursor is the ID of the last run of the previous page, or empty.
	ListRunsForApp(ctx context.Context, appID string, limit int, cursor string) ([]*domain.RunRecord, error)

	// PushEvents stores events for their runs.
	PushEvents(ctx context.Context, events []*domain.EventRecord) error

	// GetEvents returns events of a run ordered by sequence.
	GetEvents(ctx context.Context, query domain.EventQuery) ([]*domain.EventRecord, error)

	// GetMaxSequence returns the highest stored sequence of a run, or 0.
	GetMaxSequence(ctx context.Context, runID string) (int64, error)

	// MarkEventsDelivered flags events as delivered.
	MarkEventsDelivered(ctx context.Context, eventIDs []string) error

	// DeleteExpiredRuns removes runs whose ExpiresAt is before now.
	DeleteExpiredRuns(ctx context.Context, now time.Time) (int64, error)

	// DeleteExpiredEvents removes events whose ExpiresAt is before now.
	DeleteExpiredEvents(ctx context.Context, now time.Time) (int64, error)
}

// LogQuery selects the traces of a run.
type LogQuery struct {
	RunID    string
	MinLevel domain.LogLevel
	NodeID   string
	Limit    int
}

// LogStore defines the interface for persisting finished run summaries
// and the traces their nodes produced.
type LogStore interface {
	// WriteRun persists the summary and traces of a finished run.
	WriteRun(ctx context.Context, meta *domain.LogMeta, traces []*domain.Trace) error

	// GetRunMeta retrieves a run summary.
	// Returns domain.ErrRunNotFound if the run was never written.
	GetRunMeta(ctx context.Context, runID string) (*domain.LogMeta, error)

	// ListRuns returns the summaries of a board, newest first.
	ListRuns(ctx context.Context, boardID string, limit int) ([]*domain.LogMeta, error)

	// QueryLogs returns the log lines of a run in emission order.
	QueryLogs(ctx context.Context, query LogQuery) ([]domain.LogMessage, error)
}
