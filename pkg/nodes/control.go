package nodes

import (
	"context"
	"fmt"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/flow"
)

// Branch fires true or false depending on its condition.
type Branch struct{}

func (n *Branch) GetNode() *domain.Node {
	node := domain.NewNode("control_branch", "Branch", "Routes execution depending on a condition", CategoryControl)
	addExecIn(node)
	node.AddInputPin("condition", "Condition", "Which path to take", domain.VariableTypeBoolean).WithDefault(true)
	node.AddOutputPin("true", "True", "Taken when the condition holds", domain.VariableTypeExecution)
	node.AddOutputPin("false", "False", "Taken otherwise", domain.VariableTypeExecution)
	return node
}

func (n *Branch) Run(_ context.Context, ec *flow.ExecutionContext) error {
	if err := ec.DeactivateExecPin("true"); err != nil {
		return err
	}
	if err := ec.DeactivateExecPin("false"); err != nil {
		return err
	}
	cond, err := flow.EvaluatePinAs[bool](ec, "condition")
	if err != nil {
		return err
	}
	if cond {
		return ec.ActivateExecPin("true")
	}
	return ec.ActivateExecPin("false")
}

// Sequence runs each output branch to completion, in pin order.
type Sequence struct{}

func (n *Sequence) GetNode() *domain.Node {
	node := domain.NewNode("control_sequence", "Sequence", "Executes each output one after another", CategoryControl)
	addExecIn(node)
	node.AddOutputPin("exec_out_0", "Output", "First branch", domain.VariableTypeExecution)
	node.AddOutputPin("exec_out_1", "Output", "Second branch", domain.VariableTypeExecution)
	return node
}

func (n *Sequence) Run(ctx context.Context, ec *flow.ExecutionContext) error {
	for _, pin := range ec.Node().ExecOutputs() {
		if pin.Name() == flow.ErrorHandlerPin {
			continue
		}
		if err := ec.ActivateExecPinRef(pin); err != nil {
			return err
		}
		if err := ec.ExecuteConnected(ctx, pin); err != nil {
			return fmt.Errorf("branch %s: %w", pin.Name(), err)
		}
		if err := ec.DeactivateExecPinRef(pin); err != nil {
			return err
		}
	}
	return nil
}

// AddSequenceOutput appends another exec_out_N pin to a placed sequence node.
func AddSequenceOutput(node *domain.Node) *domain.Pin {
	count := 0
	for _, p := range node.Pins {
		if p.IsOutput() && p.IsExec() {
			count++
		}
	}
	name := fmt.Sprintf("exec_out_%d", count)
	pin := node.AddOutputPin(name, "Output", "", domain.VariableTypeExecution)
	if node.ID != node.Name {
		delete(node.Pins, pin.ID)
		pin.ID = node.ID + "/" + name
		node.Pins[pin.ID] = pin
	}
	return pin
}

// DoOnce lets execution through the first time only, until reset.
type DoOnce struct{}

func (n *DoOnce) GetNode() *domain.Node {
	node := domain.NewNode("control_do_once", "Do Once", "Fires then only once until reset", CategoryControl)
	addExecIn(node)
	node.AddInputPin("reset", "Reset", "Allows then to fire again", domain.VariableTypeExecution)
	node.AddInputPin("start_closed", "Start Closed", "Start as if already fired", domain.VariableTypeBoolean).WithDefault(false)
	node.AddOutputPin("then", "Then", "Fires on the first activation", domain.VariableTypeExecution)
	node.AddOutputPin("has_fired", "Has Fired", "Whether then already fired", domain.VariableTypeBoolean)
	return node
}

func (n *DoOnce) Run(_ context.Context, ec *flow.ExecutionContext) error {
	if err := ec.DeactivateExecPin("then"); err != nil {
		return err
	}

	if ec.StartedByName("reset") {
		if err := ec.SetPinValue("has_fired", false); err != nil {
			return err
		}
	}
	if !ec.StartedByName(PinExecIn) {
		return nil
	}

	fired, ok := storedBool(ec, "has_fired")
	if !ok {
		closed, err := flow.EvaluatePinAs[bool](ec, "start_closed")
		if err != nil {
			return err
		}
		fired = closed
	}
	if fired {
		return nil
	}

	if err := ec.SetPinValue("has_fired", true); err != nil {
		return err
	}
	return ec.ActivateExecPin("then")
}

// FlipFlop alternates between its a and b outputs.
type FlipFlop struct{}

func (n *FlipFlop) GetNode() *domain.Node {
	node := domain.NewNode("control_flip_flop", "Flip Flop", "Alternates between A and B", CategoryControl)
	addExecIn(node)
	node.AddInputPin("start_on_a", "Start On A", "Whether the first activation fires A", domain.VariableTypeBoolean).WithDefault(true)
	node.AddOutputPin("a", "A", "", domain.VariableTypeExecution)
	node.AddOutputPin("b", "B", "", domain.VariableTypeExecution)
	node.AddOutputPin("is_a", "Is A", "Whether A fired last", domain.VariableTypeBoolean)
	node.AddOutputPin("tick", "Tick", "Number of activations", domain.VariableTypeInteger)
	return node
}

func (n *FlipFlop) Run(_ context.Context, ec *flow.ExecutionContext) error {
	if err := ec.DeactivateExecPin("a"); err != nil {
		return err
	}
	if err := ec.DeactivateExecPin("b"); err != nil {
		return err
	}

	tick := storedInt(ec, "tick")
	var nextA bool
	if tick == 0 {
		startOnA, err := flow.EvaluatePinAs[bool](ec, "start_on_a")
		if err != nil {
			return err
		}
		nextA = startOnA
	} else {
		wasA, _ := storedBool(ec, "is_a")
		nextA = !wasA
	}

	if err := ec.SetPinValue("is_a", nextA); err != nil {
		return err
	}
	if err := ec.SetPinValue("tick", tick+1); err != nil {
		return err
	}
	if nextA {
		return ec.ActivateExecPin("a")
	}
	return ec.ActivateExecPin("b")
}

// Gate passes execution while open. open, close and toggle change its state.
type Gate struct{}

func (n *Gate) GetNode() *domain.Node {
	node := domain.NewNode("control_gate", "Gate", "Lets execution through while open", CategoryControl)
	addExecIn(node)
	node.AddInputPin("open", "Open", "", domain.VariableTypeExecution)
	node.AddInputPin("close", "Close", "", domain.VariableTypeExecution)
	node.AddInputPin("toggle", "Toggle", "", domain.VariableTypeExecution)
	node.AddInputPin("start_closed", "Start Closed", "", domain.VariableTypeBoolean).WithDefault(false)
	addExecOut(node)
	node.AddOutputPin("is_open", "Is Open", "", domain.VariableTypeBoolean)
	return node
}

func (n *Gate) Run(_ context.Context, ec *flow.ExecutionContext) error {
	if err := ec.DeactivateExecPin(PinExecOut); err != nil {
		return err
	}

	open, ok := storedBool(ec, "is_open")
	if !ok {
		closed, err := flow.EvaluatePinAs[bool](ec, "start_closed")
		if err != nil {
			return err
		}
		open = !closed
	}

	switch {
	case ec.StartedByName("toggle"):
		open = !open
	case ec.StartedByName("close"):
		open = false
	case ec.StartedByName("open"):
		open = true
	}
	if err := ec.SetPinValue("is_open", open); err != nil {
		return err
	}

	if open && ec.StartedByName(PinExecIn) {
		return ec.ActivateExecPin(PinExecOut)
	}
	return nil
}
