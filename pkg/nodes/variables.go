package nodes

import (
	"context"
	"errors"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/flow"
)

// GetVariable reads a board variable by id or name.
type GetVariable struct{}

func (n *GetVariable) GetNode() *domain.Node {
	node := domain.NewNode("variable_get", "Get Variable", "Reads a board variable", CategoryVariable)
	node.AddInputPin("variable", "Variable", "Variable id or name", domain.VariableTypeString)
	node.AddOutputPin("value", "Value", "", domain.VariableTypeGeneric)
	return node
}

func (n *GetVariable) Run(_ context.Context, ec *flow.ExecutionContext) error {
	v, err := lookupVariable(ec)
	if err != nil {
		return err
	}
	return ec.SetPinValue("value", v.Value())
}

func (n *GetVariable) OnUpdate(node *domain.Node, board *domain.Board) {
	retypeFromVariable(node, board, "value")
}

// SetVariable writes a board variable for the rest of the run.
type SetVariable struct{}

func (n *SetVariable) GetNode() *domain.Node {
	node := domain.NewNode("variable_set", "Set Variable", "Writes a board variable", CategoryVariable)
	addExecIn(node)
	node.AddInputPin("variable", "Variable", "Variable id or name", domain.VariableTypeString)
	node.AddInputPin("value", "Value", "", domain.VariableTypeGeneric)
	addExecOut(node)
	node.AddOutputPin("new_value", "New Value", "", domain.VariableTypeGeneric)
	return node
}

func (n *SetVariable) Run(_ context.Context, ec *flow.ExecutionContext) error {
	if err := ec.DeactivateExecPin(PinExecOut); err != nil {
		return err
	}
	v, err := lookupVariable(ec)
	if err != nil {
		return err
	}
	value, err := ec.EvaluatePin("value")
	if err != nil {
		return err
	}
	v.Set(value)
	if err := ec.SetPinValue("new_value", value); err != nil {
		return err
	}
	return ec.ActivateExecPin(PinExecOut)
}

func (n *SetVariable) OnUpdate(node *domain.Node, board *domain.Board) {
	retypeFromVariable(node, board, "value", "new_value")
}

// retypeFromVariable gives the named pins the data type of the board variable
// selected by the node's variable pin default. Unresolved references reset
// them to Generic.
func retypeFromVariable(node *domain.Node, board *domain.Board, pins ...string) {
	dt := domain.VariableTypeGeneric
	if v, ok := referencedVariable(node, board); ok {
		dt = v.DataType
	}
	for _, name := range pins {
		if p, ok := node.PinByName(name); ok {
			p.DataType = dt
		}
	}
}

func referencedVariable(node *domain.Node, board *domain.Board) (*domain.Variable, bool) {
	pin, ok := node.PinByName("variable")
	if !ok {
		return nil, false
	}
	raw, ok, err := pin.Default()
	if err != nil || !ok {
		return nil, false
	}
	ref, ok := raw.(string)
	if !ok {
		return nil, false
	}
	if v, ok := board.Variables[ref]; ok {
		return v, true
	}
	return board.VariableByName(ref)
}

func lookupVariable(ec *flow.ExecutionContext) (*flow.RunVariable, error) {
	ref, err := flow.EvaluatePinAs[string](ec, "variable")
	if err != nil {
		return nil, err
	}
	v, err := ec.Variable(ref)
	if errors.Is(err, domain.ErrVariableNotFound) {
		return ec.VariableByName(ref)
	}
	return v, err
}
