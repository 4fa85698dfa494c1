package domain

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// Version is a semantic board version (major, minor, patch).
type Version [3]uint32

// Tag renders the version as used in log metadata, e.g. "v1-2-0".
func (v Version) Tag() string {
	return fmt.Sprintf("v%d-%d-%d", v[0], v[1], v[2])
}

// Connection is a directed edge between an output pin and an input pin.
type Connection struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Board is the graph container: nodes, layers, variables and comments.
// Edges are not stored separately; they are derived from pin links.
type Board struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	Description   string               `json:"description"`
	Nodes         map[string]*Node     `json:"nodes"`
	Variables     map[string]*Variable `json:"variables"`
	Comments      map[string]*Comment  `json:"comments"`
	Layers        map[string]*Layer    `json:"layers"`
	Viewport      [3]float64           `json:"viewport"`
	Version       Version              `json:"version"`
	Stage         ExecutionStage       `json:"stage"`
	LogLevel      LogLevel             `json:"log_level"`
	ExecutionMode ExecutionMode        `json:"execution_mode"`
	Refs          map[string]string    `json:"refs,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// NewBoard creates an empty development board.
func NewBoard(id, name string) *Board {
	now := time.Now().UTC()
	return &Board{
		ID:            id,
		Name:          name,
		Nodes:         make(map[string]*Node),
		Variables:     make(map[string]*Variable),
		Comments:      make(map[string]*Comment),
		Layers:        make(map[string]*Layer),
		Version:       Version{0, 0, 1},
		Stage:         StageDev,
		LogLevel:      LogLevelDebug,
		ExecutionMode: ExecutionModeHybrid,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// AddNode places a node on the board.
func (b *Board) AddNode(n *Node) error {
	if b.Nodes == nil {
		b.Nodes = make(map[string]*Node)
	}
	if _, exists := b.Nodes[n.ID]; exists {
		return fmt.Errorf("node %s already exists", n.ID)
	}
	b.Nodes[n.ID] = n
	b.touch()
	return nil
}

// RemoveNode deletes a node and severs every edge referencing its pins.
func (b *Board) RemoveNode(id string) error {
	node, ok := b.Nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	delete(b.Nodes, id)
	for pinID := range node.Pins {
		b.eachPin(func(p *Pin, _ *Node) {
			p.DependsOn = removeID(p.DependsOn, pinID)
			p.ConnectedTo = removeID(p.ConnectedTo, pinID)
		})
	}
	b.touch()
	return nil
}

// StartNode returns the id of the first start node, in id order.
func (b *Board) StartNode() (string, error) {
	for _, id := range slices.Sorted(maps.Keys(b.Nodes)) {
		if b.Nodes[id].Start {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoStartNode, b.ID)
}

// AddVariable registers a board variable, replacing one with the same id.
func (b *Board) AddVariable(v *Variable) {
	if b.Variables == nil {
		b.Variables = make(map[string]*Variable)
	}
	b.Variables[v.ID] = v
	b.touch()
}

// VariableByName returns the first variable with the given name.
func (b *Board) VariableByName(name string) (*Variable, bool) {
	for _, id := range slices.Sorted(maps.Keys(b.Variables)) {
		if v := b.Variables[id]; v.Name == name {
			return v, true
		}
	}
	return nil, false
}

// PinByID finds a pin on a node or a layer. The node is nil for layer relay pins.
func (b *Board) PinByID(id string) (*Pin, *Node, bool) {
	for _, n := range b.Nodes {
		if p, ok := n.Pins[id]; ok {
			return p, n, true
		}
	}
	for _, l := range b.Layers {
		if p, ok := l.Pins[id]; ok {
			return p, nil, true
		}
	}
	return nil, nil, false
}

// NodeForPin returns the node owning a pin id.
func (b *Board) NodeForPin(pinID string) (*Node, bool) {
	_, n, ok := b.PinByID(pinID)
	if !ok || n == nil {
		return nil, false
	}
	return n, true
}

// Connect links an output pin to an input pin. Edges touching layer relay pins
// skip the direction check but are still type-checked.
func (b *Board) Connect(fromPinID, toPinID string) error {
	from, fromNode, ok := b.PinByID(fromPinID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPinNotFound, fromPinID)
	}
	to, toNode, ok := b.PinByID(toPinID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPinNotFound, toPinID)
	}
	if fromNode != nil && toNode != nil {
		if !from.IsOutput() || !to.IsInput() {
			return fmt.Errorf("%w: %s -> %s must connect an output to an input", ErrInvalidConnection, fromPinID, toPinID)
		}
		if fromNode.ID == toNode.ID {
			return fmt.Errorf("%w: %s -> %s connects a node to itself", ErrInvalidConnection, fromPinID, toPinID)
		}
	}
	if !Compatible(from, to) {
		return fmt.Errorf("%w: %s (%s) -> %s (%s) type mismatch",
			ErrInvalidConnection, fromPinID, from.DataType, toPinID, to.DataType)
	}
	from.addConnectedTo(toPinID)
	to.addDependsOn(fromPinID)
	b.touch()
	return nil
}

// Disconnect removes the edge between two pins if it exists.
func (b *Board) Disconnect(fromPinID, toPinID string) error {
	from, _, ok := b.PinByID(fromPinID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPinNotFound, fromPinID)
	}
	to, _, ok := b.PinByID(toPinID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPinNotFound, toPinID)
	}
	from.ConnectedTo = removeID(from.ConnectedTo, toPinID)
	to.DependsOn = removeID(to.DependsOn, fromPinID)
	b.touch()
	return nil
}

// Connections derives the edge list from the pins' ConnectedTo links,
// sorted by source then target pin id.
func (b *Board) Connections() []Connection {
	var conns []Connection
	b.eachPin(func(p *Pin, _ *Node) {
		for _, to := range p.ConnectedTo {
			conns = append(conns, Connection{From: p.ID, To: to})
		}
	})
	slices.SortFunc(conns, func(a, c Connection) int {
		if a.From != c.From {
			if a.From < c.From {
				return -1
			}
			return 1
		}
		if a.To < c.To {
			return -1
		}
		if a.To > c.To {
			return 1
		}
		return 0
	})
	return conns
}

// FixPins re-derives pin links after structural edits: ids that no longer
// resolve are dropped, and each ConnectedTo edge gets its matching DependsOn
// entry (and vice versa).
func (b *Board) FixPins() {
	exists := make(map[string]*Pin)
	b.eachPin(func(p *Pin, _ *Node) { exists[p.ID] = p })

	b.eachPin(func(p *Pin, _ *Node) {
		p.DependsOn = slices.DeleteFunc(p.DependsOn, func(id string) bool { return exists[id] == nil })
		p.ConnectedTo = slices.DeleteFunc(p.ConnectedTo, func(id string) bool { return exists[id] == nil })
	})
	b.eachPin(func(p *Pin, _ *Node) {
		for _, id := range p.ConnectedTo {
			exists[id].addDependsOn(p.ID)
		}
		for _, id := range p.DependsOn {
			exists[id].addConnectedTo(p.ID)
		}
	})
	b.touch()
}

// eachPin visits node pins then layer pins in deterministic order.
func (b *Board) eachPin(fn func(p *Pin, owner *Node)) {
	for _, id := range slices.Sorted(maps.Keys(b.Nodes)) {
		n := b.Nodes[id]
		for _, p := range n.SortedPins() {
			fn(p, n)
		}
	}
	for _, id := range slices.Sorted(maps.Keys(b.Layers)) {
		l := b.Layers[id]
		for _, pid := range slices.Sorted(maps.Keys(l.Pins)) {
			fn(l.Pins[pid], nil)
		}
	}
}

func (b *Board) touch() {
	b.UpdatedAt = time.Now().UTC()
}
