package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/ports"
)

// Mask replaces redacted values.
const Mask = "***"

type piiMiddleware struct {
	ports.RunStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks values of event payload
// keys matching the patterns, at any depth. Masking happens on write, so the
// original values are never persisted.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redact pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.RunStore) ports.RunStore {
		return &piiMiddleware{RunStore: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) PushEvents(ctx context.Context, events []*domain.EventRecord) error {
	masked, err := transformEvents(events, m.mask)
	if err != nil {
		return fmt.Errorf("failed to mask events: %w", err)
	}
	return m.RunStore.PushEvents(ctx, masked)
}

func (m *piiMiddleware) mask(payload json.RawMessage) (json.RawMessage, error) {
	if len(payload) == 0 {
		return payload, nil
	}
	// 1. Decode into a fresh tree so the caller's bytes stay intact.
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, err
	}

	// 2. Mask PII
	if !m.maskValue(v) {
		return payload, nil
	}
	return json.Marshal(v)
}

// maskValue masks matching keys in place and reports whether anything changed.
func (m *piiMiddleware) maskValue(v any) bool {
	changed := false
	switch t := v.(type) {
	case map[string]any:
		for k, sub := range t {
			if m.matches(k) {
				t[k] = Mask
				changed = true
				continue
			}
			if m.maskValue(sub) {
				changed = true
			}
		}
	case []any:
		for _, sub := range t {
			if m.maskValue(sub) {
				changed = true
			}
		}
	}
	return changed
}

func (m *piiMiddleware) matches(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
