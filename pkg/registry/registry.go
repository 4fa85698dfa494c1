package registry

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/flow"
)

// ErrUnknownNode is returned when a board references a node kind that was never registered.
var ErrUnknownNode = errors.New("unknown node")

// Factory creates a fresh logic instance for one node on a board.
type Factory func() flow.NodeLogic

// Registry manages the available node kinds. It is constructed explicitly and
// passed to runs; there is no package-level catalog.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a node kind under the name its template reports.
// If a kind with the same name exists, it is overwritten.
func (r *Registry) Register(fn Factory) {
	name := fn().GetNode().Name
	r.RegisterAs(name, fn)
}

// RegisterAs adds a node kind under an explicit name.
func (r *Registry) RegisterAs(name string, fn Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = fn
}

// Instantiate looks up a node's kind by name and creates its logic.
// It implements flow.Instantiator.
func (r *Registry) Instantiate(node *domain.Node) (flow.NodeLogic, error) {
	r.mu.RLock()
	fn, ok := r.factories[node.Name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, node.Name)
	}
	return fn(), nil
}

// Template returns a fresh template node for a kind, ready to be instanced onto a board.
func (r *Registry) Template(name string) (*domain.Node, error) {
	r.mu.RLock()
	fn, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, name)
	}
	return fn().GetNode(), nil
}

// Has reports whether a kind is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names returns the registered kinds in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.factories))
}

// Catalog returns one template per registered kind, ordered by name.
func (r *Registry) Catalog() []*domain.Node {
	names := r.Names()
	out := make([]*domain.Node, 0, len(names))
	for _, name := range names {
		if tmpl, err := r.Template(name); err == nil {
			out = append(out, tmpl)
		}
	}
	return out
}
