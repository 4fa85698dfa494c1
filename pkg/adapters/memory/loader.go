package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
)

// Loader implements ports.BoardLoader using an in-memory map.
// Boards are kept serialized so every GetBoard returns an independent copy.
type Loader struct {
	mu     sync.RWMutex
	boards map[string][]byte
}

// NewLoader creates a new Loader with the provided raw board documents (JSON).
func NewLoader(data map[string]string) *Loader {
	boards := make(map[string][]byte, len(data))
	for k, v := range data {
		boards[k] = []byte(v)
	}
	return &Loader{boards: boards}
}

// NewFromBoards creates a new Loader from domain objects.
// This handles serialization automatically, improving DX for tests.
func NewFromBoards(boards ...*domain.Board) (*Loader, error) {
	l := &Loader{boards: make(map[string][]byte, len(boards))}
	for _, b := range boards {
		if err := l.Put(b); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Put stores or replaces a board.
func (l *Loader) Put(b *domain.Board) error {
	if b.ID == "" {
		return fmt.Errorf("board missing ID")
	}
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal board %s: %w", b.ID, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.boards[b.ID] = data
	return nil
}

// GetBoard decodes a fresh copy of the board.
func (l *Loader) GetBoard(_ context.Context, id string) (*domain.Board, error) {
	l.mu.RLock()
	data, ok := l.boards[id]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrBoardNotFound, id)
	}

	var board domain.Board
	if err := json.Unmarshal(data, &board); err != nil {
		return nil, fmt.Errorf("failed to decode board %s: %w", id, err)
	}
	if board.ID == "" {
		board.ID = id
	}
	return &board, nil
}

// ListBoards returns all available board IDs.
func (l *Loader) ListBoards(_ context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	keys := make([]string, 0, len(l.boards))
	for k := range l.boards {
		keys = append(keys, k)
	}
	sort.Strings(keys) // Deterministic order
	return keys, nil
}
