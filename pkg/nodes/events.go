package nodes

import (
	"context"
	"errors"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/flow"
)

// SimpleEvent is the entry point of a board. It forwards the trigger payload,
// or only the activation when another node delegates to it.
type SimpleEvent struct{}

func (n *SimpleEvent) GetNode() *domain.Node {
	node := domain.NewNode("events_simple", "Simple Event", "A simple event without input or output", CategoryEvents)
	node.Start = true
	node.Icon = "/flow/icons/event.svg"
	addExecOut(node)
	node.AddOutputPin("payload", "Payload", "The trigger payload, if any", domain.VariableTypeGeneric)
	return node
}

func (n *SimpleEvent) Run(_ context.Context, ec *flow.ExecutionContext) error {
	if ec.Delegated() {
		return ec.ActivateExecPin(PinExecOut)
	}
	payload, err := ec.Payload()
	if err != nil && !errors.Is(err, domain.ErrPayloadNotFound) {
		return err
	}
	if err := ec.SetPinValue("payload", payload); err != nil {
		return err
	}
	return ec.ActivateExecPin(PinExecOut)
}
