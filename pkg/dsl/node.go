package dsl

import (
	"fmt"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/flow"
)

const (
	execIn  = "exec_in"
	execOut = "exec_out"
)

// NodeBuilder provides a fluent API for configuring a placed node.
type NodeBuilder struct {
	id      string
	node    *domain.Node
	builder *Builder
}

// Set stores a default value on an input pin.
func (n *NodeBuilder) Set(pin string, value any) *NodeBuilder {
	if n.node == nil {
		return n
	}
	p, ok := n.node.PinByName(pin)
	if !ok {
		n.fail(fmt.Errorf("%w: %s on node %s", domain.ErrPinNotFound, pin, n.id))
		return n
	}
	defer func() {
		if r := recover(); r != nil {
			n.fail(fmt.Errorf("node %s: %v", n.id, r))
		}
	}()
	p.WithDefault(value)
	return n
}

// Go connects exec_out to the target's exec_in.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	return n.Exec(execOut, target)
}

// Exec connects a named output execution pin to the target's exec_in.
func (n *NodeBuilder) Exec(outPin, target string) *NodeBuilder {
	return n.ExecTo(outPin, target, execIn)
}

// ExecTo connects a named output execution pin to a named input pin of the target.
func (n *NodeBuilder) ExecTo(outPin, target, inPin string) *NodeBuilder {
	n.builder.edges = append(n.builder.edges, edge{fromNode: n.id, fromPin: outPin, toNode: target, toPin: inPin})
	return n
}

// Pipe connects a data output to a data input of the target.
func (n *NodeBuilder) Pipe(outPin, target, inPin string) *NodeBuilder {
	return n.ExecTo(outPin, target, inPin)
}

// ExecOutput appends an extra output execution pin, such as exec_out_2 on a sequence.
func (n *NodeBuilder) ExecOutput(name string) *NodeBuilder {
	n.addPin(name, domain.PinTypeOutput, domain.VariableTypeExecution)
	return n
}

// OnError adds the error handler pins if needed and routes failures to the
// target's exec_in. The error message is piped to messagePin when given.
func (n *NodeBuilder) OnError(target string, messagePin ...string) *NodeBuilder {
	n.addPin(flow.ErrorHandlerPin, domain.PinTypeOutput, domain.VariableTypeExecution)
	n.addPin(flow.ErrorHandlerStringPin, domain.PinTypeOutput, domain.VariableTypeString)
	n.Exec(flow.ErrorHandlerPin, target)
	for _, pin := range messagePin {
		n.Pipe(flow.ErrorHandlerStringPin, target, pin)
	}
	return n
}

// At positions the node on the canvas.
func (n *NodeBuilder) At(x, y float64) *NodeBuilder {
	if n.node != nil {
		n.node.Coordinates = &domain.Coordinates{X: x, Y: y}
	}
	return n
}

// Comment attaches a comment to the node.
func (n *NodeBuilder) Comment(text string) *NodeBuilder {
	if n.node != nil {
		n.node.Comment = text
	}
	return n
}

// Build returns the placed domain.Node.
func (n *NodeBuilder) Build() *domain.Node {
	return n.node
}

func (n *NodeBuilder) addPin(name string, pt domain.PinType, dt domain.VariableType) {
	if n.node == nil {
		return
	}
	if _, exists := n.node.PinByName(name); exists {
		return
	}
	var p *domain.Pin
	if pt == domain.PinTypeOutput {
		p = n.node.AddOutputPin(name, name, "", dt)
	} else {
		p = n.node.AddInputPin(name, name, "", dt)
	}
	delete(n.node.Pins, p.ID)
	p.ID = n.id + "/" + name
	n.node.Pins[p.ID] = p
}

func (n *NodeBuilder) fail(err error) {
	n.builder.errs = append(n.builder.errs, err)
}
