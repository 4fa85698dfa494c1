package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/ports"
)

// LogStore implements ports.LogStore in memory.
type LogStore struct {
	mu    sync.RWMutex
	metas map[string]*domain.LogMeta
	lines map[string][]domain.LogMessage
}

// NewLogStore creates an empty log store.
func NewLogStore() *LogStore {
	return &LogStore{
		metas: make(map[string]*domain.LogMeta),
		lines: make(map[string][]domain.LogMessage),
	}
}

// WriteRun replaces the summary and log lines of the run.
func (s *LogStore) WriteRun(_ context.Context, meta *domain.LogMeta, traces []*domain.Trace) error {
	cp := *meta
	cp.Nodes = slices.Clone(meta.Nodes)
	cp.Payload = slices.Clone(meta.Payload)

	var lines []domain.LogMessage
	for _, t := range traces {
		for _, l := range t.Logs {
			if l.NodeID == "" {
				l.NodeID = t.NodeID
			}
			lines = append(lines, l)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.metas[meta.RunID] = &cp
	s.lines[meta.RunID] = lines
	return nil
}

// GetRunMeta returns a copy of the run summary.
func (s *LogStore) GetRunMeta(_ context.Context, runID string) (*domain.LogMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.metas[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
	}
	cp := *m
	return &cp, nil
}

// ListRuns returns the board's run summaries, newest first.
func (s *LogStore) ListRuns(_ context.Context, boardID string, limit int) ([]*domain.LogMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.LogMeta
	for _, m := range s.metas {
		if boardID == "" || m.BoardID == boardID {
			cp := *m
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *domain.LogMeta) int { return b.Start.Compare(a.Start) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// QueryLogs filters the stored lines of a run.
func (s *LogStore) QueryLogs(_ context.Context, q ports.LogQuery) ([]domain.LogMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.LogMessage
	for _, l := range s.lines[q.RunID] {
		if l.Level < q.MinLevel || (q.NodeID != "" && l.NodeID != q.NodeID) {
			continue
		}
		out = append(out, l)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}
