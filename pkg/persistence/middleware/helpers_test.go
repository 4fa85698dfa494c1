package middleware_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/TM9657/flow-like-sub010/pkg/adapters/memory"
	"github.com/TM9657/flow-like-sub010/pkg/domain"
)

func event(runID string, seq int64, payload string) *domain.EventRecord {
	return &domain.EventRecord{
		ID:        fmt.Sprintf("%s-%d", runID, seq),
		RunID:     runID,
		Sequence:  seq,
		EventType: "log",
		Payload:   json.RawMessage(payload),
	}
}

// rawEvents reads events straight from the underlying store.
func rawEvents(t *testing.T, store *memory.Store, runID string) []*domain.EventRecord {
	t.Helper()
	events, err := store.GetEvents(context.Background(), domain.EventQuery{RunID: runID})
	if err != nil {
		t.Fatalf("Underlying GetEvents failed: %v", err)
	}
	return events
}
