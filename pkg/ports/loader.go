package ports

import (
	"context"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
)

// BoardLoader defines how hosts retrieve board definitions.
// This allows the storage layer (files, memory, databases) to be decoupled.
type BoardLoader interface {
	// GetBoard retrieves a board by ID.
	// Returns domain.ErrBoardNotFound if the board does not exist.
	GetBoard(ctx context.Context, id string) (*domain.Board, error)

	// ListBoards returns the IDs of all boards available, sorted.
	ListBoards(ctx context.Context) ([]string, error)
}
