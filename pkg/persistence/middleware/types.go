// Package middleware wraps a ports.RunStore to transform the event payloads
// it persists.
package middleware

import (
	"encoding/json"
	"fmt"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/ports"
)

// Middleware allows wrapping a RunStore to add behavior.
type Middleware func(ports.RunStore) ports.RunStore

// Chain wraps store with mws. The first middleware is the outermost, so it
// sees written events first and read events last.
func Chain(store ports.RunStore, mws ...Middleware) ports.RunStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}

// transformEvents returns copies of events with fn applied to each payload.
// The input slice and its records are left untouched.
func transformEvents(events []*domain.EventRecord, fn func(json.RawMessage) (json.RawMessage, error)) ([]*domain.EventRecord, error) {
	out := make([]*domain.EventRecord, len(events))
	for i, ev := range events {
		payload, err := fn(ev.Payload)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", ev.ID, err)
		}
		cp := *ev
		cp.Payload = payload
		out[i] = &cp
	}
	return out, nil
}
