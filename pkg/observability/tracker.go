package observability

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
)

// Snapshot is the live state of one run.
type Snapshot struct {
	RunID       string    `json:"run_id"`
	BoardID     string    `json:"board_id"`
	ActiveNodes []string  `json:"active_nodes"`
	Executed    int       `json:"executed"`
	Failed      int       `json:"failed"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type runView struct {
	boardID  string
	active   map[string]int
	executed int
	failed   int
	updated  time.Time
}

// Tracker keeps a live view of in-flight runs. Finished runs are dropped.
type Tracker struct {
	mu   sync.Mutex
	runs map[string]*runView
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{runs: make(map[string]*runView)}
}

// Hooks returns lifecycle hooks that feed the tracker.
func (t *Tracker) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeStart: func(_ context.Context, e *domain.NodeEvent) {
			t.mu.Lock()
			defer t.mu.Unlock()
			v := t.view(e)
			v.active[e.NodeID]++
			v.updated = e.Timestamp
		},
		OnNodeEnd: func(_ context.Context, e *domain.NodeEvent) {
			t.mu.Lock()
			defer t.mu.Unlock()
			v := t.view(e)
			if v.active[e.NodeID]--; v.active[e.NodeID] <= 0 {
				delete(v.active, e.NodeID)
			}
			v.executed++
			if e.Err != nil {
				v.failed++
			}
			v.updated = e.Timestamp
		},
		OnRunEnd: func(_ context.Context, meta *domain.LogMeta) {
			t.mu.Lock()
			defer t.mu.Unlock()
			delete(t.runs, meta.RunID)
		},
	}
}

// view must be called with t.mu held.
func (t *Tracker) view(e *domain.NodeEvent) *runView {
	v, ok := t.runs[e.RunID]
	if !ok {
		v = &runView{boardID: e.BoardID, active: make(map[string]int)}
		t.runs[e.RunID] = v
	}
	return v
}

// Snapshot returns the live state of a run, if it is in flight.
func (t *Tracker) Snapshot(runID string) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.runs[runID]
	if !ok {
		return Snapshot{}, false
	}
	return v.snapshot(runID), true
}

// Snapshots returns every in-flight run ordered by run id.
func (t *Tracker) Snapshots() []Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Snapshot, 0, len(t.runs))
	for _, id := range slices.Sorted(maps.Keys(t.runs)) {
		out = append(out, t.runs[id].snapshot(id))
	}
	return out
}

func (v *runView) snapshot(runID string) Snapshot {
	return Snapshot{
		RunID:       runID,
		BoardID:     v.boardID,
		ActiveNodes: slices.Sorted(maps.Keys(v.active)),
		Executed:    v.executed,
		Failed:      v.failed,
		UpdatedAt:   v.updated,
	}
}
