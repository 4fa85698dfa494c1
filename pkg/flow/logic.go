package flow

import (
	"context"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
)

// NodeLogic is the behavior of a node kind.
//
// GetNode describes the node's pins and capabilities and must be free of side
// effects; it is called repeatedly for catalog listings. Run performs the
// node's effect: it reads inputs with EvaluatePin, writes outputs with
// SetPinValue and drives control flow with ActivateExecPin and
// DeactivateExecPin.
type NodeLogic interface {
	GetNode() *domain.Node
	Run(ctx context.Context, ec *ExecutionContext) error
}

// Updater is implemented by nodes that re-type their own pins after graph
// edits. It is editor-time only and never called during a run.
type Updater interface {
	OnUpdate(node *domain.Node, board *domain.Board)
}

// Dropper is implemented by nodes that release resources when a run ends.
type Dropper interface {
	OnDrop(ctx context.Context)
}

// Instantiator creates the logic for a node placed on a board.
type Instantiator interface {
	Instantiate(node *domain.Node) (NodeLogic, error)
}

// UpdateBoard calls OnUpdate on every node whose logic implements Updater.
func UpdateBoard(board *domain.Board, inst Instantiator) error {
	for _, n := range board.Nodes {
		logic, err := inst.Instantiate(n)
		if err != nil {
			return err
		}
		if u, ok := logic.(Updater); ok {
			u.OnUpdate(n, board)
		}
	}
	return nil
}
