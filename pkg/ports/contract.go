package ports

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
)

// RunStoreContract runs a suite of tests to verify that a RunStore implementation
// adheres to the defined interface contract.
func RunStoreContract(t *testing.T, store RunStore) {
	ctx := context.Background()
	suffix := time.Now().Format("20060102150405.000000")
	appID := "contract-app-" + suffix

	newRun := func(id string, createdAt time.Time) *domain.RunRecord {
		return &domain.RunRecord{
			ID:              id,
			AppID:           appID,
			BoardID:         "board-1",
			Version:         "v1-0-0",
			Status:          domain.ExecutionPending,
			Mode:            domain.RunModeLocal,
			InputPayloadLen: 12,
			CreatedAt:       createdAt,
			UpdatedAt:       createdAt,
		}
	}

	t.Run("Create and Get", func(t *testing.T) {
		runID := "run-get-" + suffix
		require.NoError(t, store.CreateRun(ctx, newRun(runID, time.Now().UTC())))

		loaded, err := store.GetRun(ctx, runID)
		require.NoError(t, err)
		assert.Equal(t, runID, loaded.ID)
		assert.Equal(t, appID, loaded.AppID)
		assert.Equal(t, "board-1", loaded.BoardID)
		assert.Equal(t, domain.ExecutionPending, loaded.Status)
		assert.Equal(t, domain.RunModeLocal, loaded.Mode)
		assert.Equal(t, int64(12), loaded.InputPayloadLen)

		_, err = store.GetRunForApp(ctx, runID, appID)
		require.NoError(t, err)
		_, err = store.GetRunForApp(ctx, runID, "someone-else")
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.GetRun(ctx, "non-existent-"+suffix)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("Update", func(t *testing.T) {
		runID := "run-update-" + suffix
		require.NoError(t, store.CreateRun(ctx, newRun(runID, time.Now().UTC())))

		status := domain.ExecutionFailed
		progress := int32(50)
		step := "node-7"
		msg := "boom"
		done := time.Now().UTC()
		updated, err := store.UpdateRun(ctx, runID, domain.RunUpdate{
			Status:       &status,
			Progress:     &progress,
			CurrentStep:  &step,
			ErrorMessage: &msg,
			CompletedAt:  &done,
		})
		require.NoError(t, err)
		assert.Equal(t, status, updated.Status)

		loaded, err := store.GetRun(ctx, runID)
		require.NoError(t, err)
		assert.Equal(t, domain.ExecutionFailed, loaded.Status)
		assert.Equal(t, int32(50), loaded.Progress)
		assert.Equal(t, "node-7", loaded.CurrentStep)
		assert.Equal(t, "boom", loaded.ErrorMessage)
		require.NotNil(t, loaded.CompletedAt)
		assert.WithinDuration(t, done, *loaded.CompletedAt, time.Second)
		assert.Nil(t, loaded.StartedAt, "unset fields are left alone")

		_, err = store.UpdateRun(ctx, "non-existent-"+suffix, domain.RunUpdate{Status: &status})
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("List Newest First", func(t *testing.T) {
		listApp := appID + "-list"
		base := time.Now().UTC().Add(-time.Hour)
		for i := range 3 {
			r := newRun(fmt.Sprintf("run-list-%d-%s", i, suffix), base.Add(time.Duration(i)*time.Second))
			r.AppID = listApp
			require.NoError(t, store.CreateRun(ctx, r))
		}

		page, err := store.ListRunsForApp(ctx, listApp, 2, "")
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "run-list-2-"+suffix, page[0].ID)
		assert.Equal(t, "run-list-1-"+suffix, page[1].ID)

		next, err := store.ListRunsForApp(ctx, listApp, 2, page[1].ID)
		require.NoError(t, err)
		require.Len(t, next, 1)
		assert.Equal(t, "run-list-0-"+suffix, next[0].ID)

		empty, err := store.ListRunsForApp(ctx, "no-such-app-"+suffix, 10, "")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("Events", func(t *testing.T) {
		runID := "run-events-" + suffix
		require.NoError(t, store.CreateRun(ctx, newRun(runID, time.Now().UTC())))

		expires := time.Now().UTC().Add(time.Hour)
		var events []*domain.EventRecord
		for seq := int64(1); seq <= 3; seq++ {
			events = append(events, &domain.EventRecord{
				ID:        fmt.Sprintf("evt-%d-%s", seq, suffix),
				RunID:     runID,
				Sequence:  seq,
				EventType: "log",
				Payload:   json.RawMessage(fmt.Sprintf(`{"n":%d}`, seq)),
				ExpiresAt: expires,
				CreatedAt: time.Now().UTC(),
			})
		}
		require.NoError(t, store.PushEvents(ctx, events))
		require.NoError(t, store.PushEvents(ctx, nil))

		maxSeq, err := store.GetMaxSequence(ctx, runID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), maxSeq)

		none, err := store.GetMaxSequence(ctx, "non-existent-"+suffix)
		require.NoError(t, err)
		assert.Zero(t, none)

		after, err := store.GetEvents(ctx, domain.EventQuery{RunID: runID, AfterSequence: 1})
		require.NoError(t, err)
		require.Len(t, after, 2)
		assert.Equal(t, int64(2), after[0].Sequence)
		assert.Equal(t, int64(3), after[1].Sequence)
		assert.JSONEq(t, `{"n":2}`, string(after[0].Payload))

		limited, err := store.GetEvents(ctx, domain.EventQuery{RunID: runID, Limit: 1})
		require.NoError(t, err)
		require.Len(t, limited, 1)
		assert.Equal(t, int64(1), limited[0].Sequence)

		require.NoError(t, store.MarkEventsDelivered(ctx, []string{events[0].ID, events[1].ID}))
		require.NoError(t, store.MarkEventsDelivered(ctx, nil))

		pending, err := store.GetEvents(ctx, domain.EventQuery{RunID: runID, OnlyUndelivered: true})
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, events[2].ID, pending[0].ID)
		assert.False(t, pending[0].Delivered)
	})

	t.Run("Delete Expired Keeps Live Runs", func(t *testing.T) {
		runID := "run-live-" + suffix
		live := newRun(runID, time.Now().UTC())
		future := time.Now().UTC().Add(time.Hour)
		live.ExpiresAt = &future
		require.NoError(t, store.CreateRun(ctx, live))

		n, err := store.DeleteExpiredRuns(ctx, time.Now().UTC())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(0))

		_, err = store.DeleteExpiredEvents(ctx, time.Now().UTC())
		require.NoError(t, err)

		_, err = store.GetRun(ctx, runID)
		assert.NoError(t, err)
	})
}

// LogStoreContract runs a suite of tests to verify that a LogStore implementation
// adheres to the defined interface contract.
func LogStoreContract(t *testing.T, store LogStore) {
	ctx := context.Background()
	suffix := time.Now().Format("20060102150405.000000")
	boardID := "contract-board-" + suffix
	start := time.Now().UTC().Add(-time.Minute).Truncate(time.Millisecond)

	meta := func(runID string, at time.Time) *domain.LogMeta {
		return &domain.LogMeta{
			AppID:    "app",
			RunID:    runID,
			BoardID:  boardID,
			Version:  "v0-0-1",
			Start:    at,
			End:      at.Add(time.Second),
			LogLevel: domain.LogLevelError,
			Logs:     3,
			Nodes:    []string{"a", "b"},
			NodeID:   "a",
			Status:   domain.RunStatusFailed,
		}
	}
	line := func(node, msg string, lvl domain.LogLevel, offset int) domain.LogMessage {
		at := start.Add(time.Duration(offset) * time.Millisecond)
		return domain.LogMessage{Message: msg, Level: lvl, NodeID: node, Start: at, End: at}
	}
	traces := []*domain.Trace{
		{ID: "t1", NodeID: "a", Start: start, End: start, Logs: []domain.LogMessage{
			line("a", "debugging", domain.LogLevelDebug, 1),
			line("a", "started", domain.LogLevelInfo, 2),
		}},
		{ID: "t2", NodeID: "b", Start: start, End: start, Logs: []domain.LogMessage{
			line("b", "exploded", domain.LogLevelError, 3),
		}},
	}

	t.Run("Write and Get", func(t *testing.T) {
		runID := "run-meta-" + suffix
		require.NoError(t, store.WriteRun(ctx, meta(runID, start), traces))

		loaded, err := store.GetRunMeta(ctx, runID)
		require.NoError(t, err)
		assert.Equal(t, runID, loaded.RunID)
		assert.Equal(t, boardID, loaded.BoardID)
		assert.Equal(t, domain.RunStatusFailed, loaded.Status)
		assert.Equal(t, domain.LogLevelError, loaded.LogLevel)
		assert.Equal(t, []string{"a", "b"}, loaded.Nodes)
		assert.Equal(t, time.Second, loaded.Duration())
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.GetRunMeta(ctx, "non-existent-"+suffix)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("List Newest First", func(t *testing.T) {
		require.NoError(t, store.WriteRun(ctx, meta("run-older-"+suffix, start.Add(-time.Hour)), nil))
		require.NoError(t, store.WriteRun(ctx, meta("run-newer-"+suffix, start.Add(time.Hour)), nil))

		runs, err := store.ListRuns(ctx, boardID, 2)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "run-newer-"+suffix, runs[0].RunID)
		assert.Equal(t, "run-meta-"+suffix, runs[1].RunID)
	})

	t.Run("Query Logs", func(t *testing.T) {
		runID := "run-logs-" + suffix
		require.NoError(t, store.WriteRun(ctx, meta(runID, start), traces))

		all, err := store.QueryLogs(ctx, LogQuery{RunID: runID})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "debugging", all[0].Message)

		info, err := store.QueryLogs(ctx, LogQuery{RunID: runID, MinLevel: domain.LogLevelInfo})
		require.NoError(t, err)
		require.Len(t, info, 2)
		assert.Equal(t, "started", info[0].Message)
		assert.Equal(t, "exploded", info[1].Message)
		assert.Equal(t, domain.LogLevelError, info[1].Level)

		byNode, err := store.QueryLogs(ctx, LogQuery{RunID: runID, NodeID: "b"})
		require.NoError(t, err)
		require.Len(t, byNode, 1)
		assert.Equal(t, "b", byNode[0].NodeID)

		limited, err := store.QueryLogs(ctx, LogQuery{RunID: runID, Limit: 1})
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})
}

// BoardLoaderContract verifies that a BoardLoader serves exactly the given board IDs.
func BoardLoaderContract(t *testing.T, loader BoardLoader, ids []string) {
	t.Helper()
	ctx := context.Background()

	t.Run("GetBoard", func(t *testing.T) {
		for _, id := range ids {
			board, err := loader.GetBoard(ctx, id)
			require.NoError(t, err, id)
			assert.Equal(t, id, board.ID)
		}
	})

	t.Run("GetBoard NotFound", func(t *testing.T) {
		_, err := loader.GetBoard(ctx, "non-existent-board")
		assert.ErrorIs(t, err, domain.ErrBoardNotFound)
	})

	t.Run("ListBoards", func(t *testing.T) {
		listed, err := loader.ListBoards(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, ids, listed)
	})
}
