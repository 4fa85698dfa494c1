package domain

import (
	"context"
	"time"
)

// NodeEvent describes a node invocation for observability hooks.
type NodeEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	RunID     string        `json:"run_id"`
	BoardID   string        `json:"board_id"`
	NodeID    string        `json:"node_id"`
	NodeName  string        `json:"node_name"`
	State     NodeState     `json:"state"`
	Duration  time.Duration `json:"duration,omitempty"`
	Err       error         `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
// Any field may be nil.
type LifecycleHooks struct {
	OnNodeStart func(context.Context, *NodeEvent)
	OnNodeEnd   func(context.Context, *NodeEvent)
	OnRunEnd    func(context.Context, *LogMeta)
	OnStream    func(context.Context, string)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnNodeStart: chain(h.OnNodeStart, other.OnNodeStart),
		OnNodeEnd:   chain(h.OnNodeEnd, other.OnNodeEnd),
		OnRunEnd:    chain(h.OnRunEnd, other.OnRunEnd),
		OnStream:    chain(h.OnStream, other.OnStream),
	}
}

func chain[T any](a, b func(context.Context, T)) func(context.Context, T) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, v T) {
		a(ctx, v)
		b(ctx, v)
	}
}
