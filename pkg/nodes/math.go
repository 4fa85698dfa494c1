package nodes

import (
	"context"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/flow"
)

// AddInt adds two integers. It is pure and runs whenever its sum is read.
type AddInt struct{}

func (n *AddInt) GetNode() *domain.Node {
	node := domain.NewNode("math_add_int", "Add", "Adds two integers", CategoryMath)
	node.AddInputPin("a", "A", "", domain.VariableTypeInteger).WithDefault(0)
	node.AddInputPin("b", "B", "", domain.VariableTypeInteger).WithDefault(0)
	node.AddOutputPin("sum", "Sum", "", domain.VariableTypeInteger)
	return node
}

func (n *AddInt) Run(_ context.Context, ec *flow.ExecutionContext) error {
	a, err := flow.EvaluatePinAs[int64](ec, "a")
	if err != nil {
		return err
	}
	b, err := flow.EvaluatePinAs[int64](ec, "b")
	if err != nil {
		return err
	}
	return ec.SetPinValue("sum", a+b)
}
