package flow

import (
	"fmt"
	"slices"
	"sync"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
)

// arena indexes every pin of a run by id. It is immutable once the run is
// built; edges are stored as ids and resolved through it.
type arena struct {
	pins map[string]*Pin
}

// upgrade resolves an edge id. A missing id means the edge was severed.
func (a *arena) upgrade(id string) (*Pin, bool) {
	p, ok := a.pins[id]
	return p, ok
}

// Pin is the runtime form of a pin: immutable metadata, id edges into the
// arena and a mutex-guarded value cell.
type Pin struct {
	id         string
	name       string
	pinType    domain.PinType
	dataType   domain.VariableType
	index      uint16
	def        any
	hasDefault bool
	node       *Node // nil for layer relay pins

	dependsOn   []string
	connectedTo []string
	arena       *arena

	mu       sync.RWMutex
	value    any
	hasValue bool
}

func newPin(def *domain.Pin, node *Node, a *arena) (*Pin, error) {
	v, ok, err := def.Default()
	if err != nil {
		return nil, err
	}
	return &Pin{
		id:          def.ID,
		name:        def.Name,
		pinType:     def.PinType,
		dataType:    def.DataType,
		index:       def.Index,
		def:         v,
		hasDefault:  ok,
		node:        node,
		dependsOn:   slices.Clone(def.DependsOn),
		connectedTo: slices.Clone(def.ConnectedTo),
		arena:       a,
	}, nil
}

// ID returns the pin id.
func (p *Pin) ID() string { return p.id }

// Name returns the pin name.
func (p *Pin) Name() string { return p.name }

// PinType returns the pin direction.
func (p *Pin) PinType() domain.PinType { return p.pinType }

// DataType returns the declared data type.
func (p *Pin) DataType() domain.VariableType { return p.dataType }

// Index returns the pin's position on its node.
func (p *Pin) Index() uint16 { return p.index }

// IsExec reports whether the pin carries control flow.
func (p *Pin) IsExec() bool { return p.dataType == domain.VariableTypeExecution }

// IsInput reports whether the pin is an input.
func (p *Pin) IsInput() bool { return p.pinType == domain.PinTypeInput }

// IsOutput reports whether the pin is an output.
func (p *Pin) IsOutput() bool { return p.pinType == domain.PinTypeOutput }

// IsLayerPin reports whether the pin is a relay pin owned by a layer.
func (p *Pin) IsLayerPin() bool { return p.node == nil }

// Node returns the owning node, or nil for layer relay pins.
func (p *Pin) Node() *Node { return p.node }

// Default returns the decoded default value.
func (p *Pin) Default() (any, bool) { return p.def, p.hasDefault }

// DependsOn returns the live upstream pins in registration order.
func (p *Pin) DependsOn() []*Pin { return p.resolve(p.dependsOn) }

// ConnectedTo returns the live downstream pins in registration order.
func (p *Pin) ConnectedTo() []*Pin { return p.resolve(p.connectedTo) }

func (p *Pin) resolve(ids []string) []*Pin {
	out := make([]*Pin, 0, len(ids))
	for _, id := range ids {
		if dep, ok := p.arena.upgrade(id); ok {
			out = append(out, dep)
		}
	}
	return out
}

// firstDependency returns the first live upstream pin. Later edges into the
// same pin are not merged.
func (p *Pin) firstDependency() (*Pin, bool) {
	for _, id := range p.dependsOn {
		if dep, ok := p.arena.upgrade(id); ok {
			return dep, true
		}
	}
	return nil, false
}

// SetValue stores a value in the cell.
func (p *Pin) SetValue(v any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value = v
	p.hasValue = true
}

// Value returns the stored value, if any.
func (p *Pin) Value() (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value, p.hasValue
}

// Reset clears the stored value.
func (p *Pin) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value = nil
	p.hasValue = false
}

// Active reports whether an execution pin currently holds true.
func (p *Pin) Active() bool {
	v, ok := p.Value()
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

func (p *Pin) String() string {
	return fmt.Sprintf("%s [%s]", p.name, p.id)
}
