package flow

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
)

// Handler pin names used by the automatic error handling chain.
const (
	ErrorHandlerPin       = "auto_handle_error"
	ErrorHandlerStringPin = "auto_handle_error_string"
)

// Node is the runtime form of a board node.
type Node struct {
	def       *domain.Node
	logic     NodeLogic
	pins      []*Pin // ordered by index
	byID      map[string]*Pin
	execCalls atomic.Uint64
}

// ExecutionTarget is a node scheduled to run together with the input
// execution pins that activated it.
type ExecutionTarget struct {
	Node        *Node
	ThroughPins []*Pin
}

// ID returns the node id.
func (n *Node) ID() string { return n.def.ID }

// Name returns the catalog name of the node.
func (n *Node) Name() string { return n.def.Name }

// Definition returns the stored node definition.
func (n *Node) Definition() *domain.Node { return n.def }

// Logic returns the node's behavior.
func (n *Node) Logic() NodeLogic { return n.logic }

// Pins returns the pins ordered by index.
func (n *Node) Pins() []*Pin { return n.pins }

// ExecCalls returns how often the node ran in the current run.
func (n *Node) ExecCalls() uint64 { return n.execCalls.Load() }

// PinByName returns the lowest-index pin with the given name.
func (n *Node) PinByName(name string) (*Pin, error) {
	for _, p := range n.pins {
		if p.name == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s on node %s", domain.ErrPinNotFound, name, n.def.ID)
}

// PinsByName returns every pin with the given name in index order.
func (n *Node) PinsByName(name string) []*Pin {
	var out []*Pin
	for _, p := range n.pins {
		if p.name == name {
			out = append(out, p)
		}
	}
	return out
}

// PinByID returns the node's pin with the given id.
func (n *Node) PinByID(id string) (*Pin, error) {
	if p, ok := n.byID[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s on node %s", domain.ErrPinNotFound, id, n.def.ID)
}

// ExecOutputs returns the output execution pins in index order.
func (n *Node) ExecOutputs() []*Pin {
	var out []*Pin
	for _, p := range n.pins {
		if p.IsOutput() && p.IsExec() {
			out = append(out, p)
		}
	}
	return out
}

// IsPure reports whether the node has no execution pins.
func (n *Node) IsPure() bool {
	for _, p := range n.pins {
		if p.IsExec() {
			return false
		}
	}
	return true
}

// ConnectedExec returns the nodes fed by this node's active output execution
// pins, grouped by node with the input pins that activated them.
func (n *Node) ConnectedExec(overrides map[string]any) ([]ExecutionTarget, error) {
	var pins []*Pin
	for _, p := range n.ExecOutputs() {
		v, err := Evaluate(p, overrides)
		if err != nil {
			if errors.Is(err, ErrNoValue) {
				continue
			}
			return nil, err
		}
		if active, _ := v.(bool); active {
			pins = append(pins, p)
		}
	}
	return targetsThrough(pins...), nil
}

// ErrorHandlers returns the nodes fed by an active error handler pin.
func (n *Node) ErrorHandlers(overrides map[string]any) []ExecutionTarget {
	var active []*Pin
	for _, p := range n.PinsByName(ErrorHandlerPin) {
		if !p.IsOutput() || !p.IsExec() {
			continue
		}
		if v, err := Evaluate(p, overrides); err == nil {
			if on, _ := v.(bool); on {
				active = append(active, p)
			}
		}
	}
	return targetsThrough(active...)
}

// PureParents returns the pure nodes feeding this node's data inputs,
// looking through layer relay pins.
func (n *Node) PureParents() []*Node {
	var parents []*Node
	seen := map[string]bool{n.def.ID: true}
	for _, p := range n.pins {
		if !p.IsInput() || p.IsExec() {
			continue
		}
		for _, src := range upstreamNodePins(p) {
			parent := src.node
			if seen[parent.ID()] || !parent.IsPure() {
				continue
			}
			seen[parent.ID()] = true
			parents = append(parents, parent)
		}
	}
	return parents
}

// targetsThrough follows ConnectedTo edges from the given pins, looking through
// layer relay pins, and groups the reached node pins by node in first-seen order.
func targetsThrough(pins ...*Pin) []ExecutionTarget {
	var targets []ExecutionTarget
	index := make(map[string]int)
	for _, p := range pins {
		for _, dst := range downstreamNodePins(p) {
			i, ok := index[dst.node.ID()]
			if !ok {
				index[dst.node.ID()] = len(targets)
				targets = append(targets, ExecutionTarget{Node: dst.node, ThroughPins: []*Pin{dst}})
				continue
			}
			if !containsPin(targets[i].ThroughPins, dst) {
				targets[i].ThroughPins = append(targets[i].ThroughPins, dst)
			}
		}
	}
	return targets
}

func downstreamNodePins(p *Pin) []*Pin {
	return walkRelays(p, (*Pin).ConnectedTo)
}

func upstreamNodePins(p *Pin) []*Pin {
	return walkRelays(p, (*Pin).DependsOn)
}

func walkRelays(start *Pin, next func(*Pin) []*Pin) []*Pin {
	var out []*Pin
	visited := map[string]bool{start.id: true}
	var walk func(p *Pin)
	walk = func(p *Pin) {
		for _, q := range next(p) {
			if visited[q.id] {
				continue
			}
			visited[q.id] = true
			if q.IsLayerPin() {
				walk(q)
				continue
			}
			out = append(out, q)
		}
	}
	walk(start)
	return out
}

func containsPin(pins []*Pin, p *Pin) bool {
	for _, q := range pins {
		if q.id == p.id {
			return true
		}
	}
	return false
}
