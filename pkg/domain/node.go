package domain

import (
	"maps"
	"slices"
	"sort"
)

// Coordinates is a position on the board canvas.
type Coordinates struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// NodeScores rates a node for catalog search (0-10 each).
type NodeScores struct {
	Privacy     uint8 `json:"privacy"`
	Security    uint8 `json:"security"`
	Performance uint8 `json:"performance"`
	Governance  uint8 `json:"governance"`
	Reliability uint8 `json:"reliability"`
	Cost        uint8 `json:"cost"`
}

// Node is the stored definition of a graph vertex.
// Name identifies the node kind in the catalog; ID identifies the instance on a board.
type Node struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	FriendlyName   string          `json:"friendly_name"`
	Description    string          `json:"description"`
	Category       string          `json:"category"`
	Icon           string          `json:"icon,omitempty"`
	Scores         *NodeScores     `json:"scores,omitempty"`
	Coordinates    *Coordinates    `json:"coordinates,omitempty"`
	Layer          string          `json:"layer,omitempty"`
	Comment        string          `json:"comment,omitempty"`
	Error          string          `json:"error,omitempty"`
	Pins           map[string]*Pin `json:"pins"`
	Start          bool            `json:"start,omitempty"`
	LongRunning    bool            `json:"long_running,omitempty"`
	EventCallback  bool            `json:"event_callback,omitempty"`
	OAuthProviders []string        `json:"oauth_providers,omitempty"`
}

// NewNode creates an empty node template for the catalog.
func NewNode(name, friendlyName, description, category string) *Node {
	return &Node{
		ID:           name,
		Name:         name,
		FriendlyName: friendlyName,
		Description:  description,
		Category:     category,
		Pins:         make(map[string]*Pin),
	}
}

// AddInputPin appends an input pin. Template pin ids equal the pin name until
// the node is instanced onto a board.
func (n *Node) AddInputPin(name, friendlyName, description string, dataType VariableType) *Pin {
	return n.addPin(name, friendlyName, description, PinTypeInput, dataType)
}

// AddOutputPin appends an output pin.
func (n *Node) AddOutputPin(name, friendlyName, description string, dataType VariableType) *Pin {
	return n.addPin(name, friendlyName, description, PinTypeOutput, dataType)
}

func (n *Node) addPin(name, friendlyName, description string, pinType PinType, dataType VariableType) *Pin {
	if n.Pins == nil {
		n.Pins = make(map[string]*Pin)
	}
	p := &Pin{
		ID:           name,
		Name:         name,
		FriendlyName: friendlyName,
		Description:  description,
		PinType:      pinType,
		DataType:     dataType,
		ValueType:    ValueTypeNormal,
		Index:        uint16(len(n.Pins)),
	}
	n.Pins[p.ID] = p
	return p
}

// SortedPins returns the pins ordered by index, then id.
func (n *Node) SortedPins() []*Pin {
	pins := slices.Collect(maps.Values(n.Pins))
	sort.Slice(pins, func(i, j int) bool {
		if pins[i].Index != pins[j].Index {
			return pins[i].Index < pins[j].Index
		}
		return pins[i].ID < pins[j].ID
	})
	return pins
}

// PinByName returns the lowest-index pin with the given name.
func (n *Node) PinByName(name string) (*Pin, bool) {
	for _, p := range n.SortedPins() {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// IsPure reports whether the node has no execution pins. Pure nodes are
// evaluated on demand when a downstream node reads their outputs.
func (n *Node) IsPure() bool {
	for _, p := range n.Pins {
		if p.IsExec() {
			return false
		}
	}
	return true
}

// Copy returns a deep copy of the node.
func (n *Node) Copy() *Node {
	cp := *n
	if n.Scores != nil {
		s := *n.Scores
		cp.Scores = &s
	}
	if n.Coordinates != nil {
		c := *n.Coordinates
		cp.Coordinates = &c
	}
	cp.OAuthProviders = slices.Clone(n.OAuthProviders)
	cp.Pins = make(map[string]*Pin, len(n.Pins))
	for id, p := range n.Pins {
		cp.Pins[id] = p.Copy()
	}
	return &cp
}

// Instance copies a template onto a board under the given node id.
// Pin ids become "<nodeID>/<pin name>" and all edges are dropped.
func (n *Node) Instance(id string) *Node {
	cp := n.Copy()
	cp.ID = id
	cp.Pins = make(map[string]*Pin, len(n.Pins))
	for _, p := range n.Pins {
		pin := p.Copy()
		pin.ID = id + "/" + p.Name
		pin.DependsOn = nil
		pin.ConnectedTo = nil
		cp.Pins[pin.ID] = pin
	}
	return cp
}
