package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
)

// Store implements ports.RunStore in memory.
// Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	runs   map[string]*domain.RunRecord
	events map[string]*domain.EventRecord
	byRun  map[string][]string
	now    func() time.Time
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		runs:   make(map[string]*domain.RunRecord),
		events: make(map[string]*domain.EventRecord),
		byRun:  make(map[string][]string),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateRun stores a copy of the record.
func (s *Store) CreateRun(_ context.Context, run *domain.RunRecord) error {
	rec := cloneRun(run)
	now := s.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[rec.ID]; exists {
		return fmt.Errorf("run %s already exists", rec.ID)
	}
	s.runs[rec.ID] = rec
	return nil
}

// GetRun returns a copy of the record.
func (s *Store) GetRun(_ context.Context, runID string) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
	}
	return cloneRun(rec), nil
}

// GetRunForApp returns the record only when it belongs to appID.
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

// UpdateRun applies the update in place.
func (s *Store) UpdateRun(_ context.Context, runID string, update domain.RunUpdate) (*domain.RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
	}
	update.Apply(rec, s.now())
	return cloneRun(rec), nil
}

// ListRunsForApp pages through the runs of an app, newest first.
func (s *Store) ListRunsForApp(_ context.Context, appID string, limit int, cursor string) ([]*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []*domain.RunRecord
	for _, r := range s.runs {
		if r.AppID == appID {
			runs = append(runs, r)
		}
	}
	slices.SortFunc(runs, newestFirst)

	if cursor != "" {
		idx := slices.IndexFunc(runs, func(r *domain.RunRecord) bool { return r.ID == cursor })
		if idx < 0 {
			return nil, nil
		}
		runs = runs[idx+1:]
	}
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}

	out := make([]*domain.RunRecord, len(runs))
	for i, r := range runs {
		out[i] = cloneRun(r)
	}
	return out, nil
}

// PushEvents stores copies of the events.
func (s *Store) PushEvents(_ context.Context, events []*domain.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		cp := *e
		cp.Payload = slices.Clone(e.Payload)
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = s.now()
		}
		if _, exists := s.events[cp.ID]; !exists {
			s.byRun[cp.RunID] = append(s.byRun[cp.RunID], cp.ID)
		}
		s.events[cp.ID] = &cp
	}
	return nil
}

// GetEvents returns the matching events ordered by sequence.
func (s *Store) GetEvents(_ context.Context, query domain.EventQuery) ([]*domain.EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.EventRecord
	for _, id := range s.byRun[query.RunID] {
		e := s.events[id]
		if e.Sequence <= query.AfterSequence {
			continue
		}
		if query.OnlyUndelivered && e.Delivered {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *domain.EventRecord) int {
		return cmp.Compare(a.Sequence, b.Sequence)
	})
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

// GetMaxSequence returns the highest sequence pushed for the run.
func (s *Store) GetMaxSequence(_ context.Context, runID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var maxSeq int64
	for _, id := range s.byRun[runID] {
		maxSeq = max(maxSeq, s.events[id].Sequence)
	}
	return maxSeq, nil
}

// MarkEventsDelivered flags the events. Unknown ids are ignored.
func (s *Store) MarkEventsDelivered(_ context.Context, eventIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range eventIDs {
		if e, ok := s.events[id]; ok {
			e.Delivered = true
		}
	}
	return nil
}

// DeleteExpiredRuns removes runs that expired before now.
func (s *Store) DeleteExpiredRuns(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, r := range s.runs {
		if r.ExpiresAt != nil && r.ExpiresAt.Before(now) {
			delete(s.runs, id)
			n++
		}
	}
	return n, nil
}

// DeleteExpiredEvents removes events that expired before now.
func (s *Store) DeleteExpiredEvents(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, e := range s.events {
		if e.ExpiresAt.IsZero() || !e.ExpiresAt.Before(now) {
			continue
		}
		delete(s.events, id)
		s.byRun[e.RunID] = slices.DeleteFunc(s.byRun[e.RunID], func(other string) bool { return other == id })
		if len(s.byRun[e.RunID]) == 0 {
			delete(s.byRun, e.RunID)
		}
		n++
	}
	return n, nil
}

func newestFirst(a, b *domain.RunRecord) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	switch {
	case a.ID > b.ID:
		return -1
	case a.ID < b.ID:
		return 1
	}
	return 0
}

func cloneRun(r *domain.RunRecord) *domain.RunRecord {
	cp := *r
	cp.StartedAt = cloneTime(r.StartedAt)
	cp.CompletedAt = cloneTime(r.CompletedAt)
	cp.ExpiresAt = cloneTime(r.ExpiresAt)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
