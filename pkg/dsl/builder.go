package dsl

import (
	"errors"
	"fmt"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/flow"
)

// TemplateSource resolves node kinds to templates. *registry.Registry satisfies it.
// A source that also implements flow.Instantiator gets flow.UpdateBoard run
// over the finished board.
type TemplateSource interface {
	Template(name string) (*domain.Node, error)
}

type edge struct {
	fromNode, fromPin string
	toNode, toPin     string
}

// Builder manages the board construction. Errors are collected and reported by Build.
type Builder struct {
	board   *domain.Board
	source  TemplateSource
	nodes   map[string]*NodeBuilder
	order   []string
	edges   []edge
	errs    []error
	startID string
}

// New creates a new board builder drawing node templates from source.
func New(id, name string, source TemplateSource) *Builder {
	return &Builder{
		board:  domain.NewBoard(id, name),
		source: source,
		nodes:  make(map[string]*NodeBuilder),
	}
}

// Add places a node of the given kind on the board.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id, kind string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{id: id, builder: b}
	tmpl, err := b.source.Template(kind)
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("node %s: %w", id, err))
	} else {
		nb.node = tmpl.Instance(id)
		if nb.node.Start && b.startID == "" {
			b.startID = id
		}
	}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

// Node returns the builder of an already placed node.
func (b *Builder) Node(id string) (*NodeBuilder, bool) {
	nb, ok := b.nodes[id]
	return nb, ok
}

// Variable declares a board variable.
func (b *Builder) Variable(v *domain.Variable) *Builder {
	b.board.AddVariable(v)
	return b
}

// Describe sets the board description.
func (b *Builder) Describe(description string) *Builder {
	b.board.Description = description
	return b
}

// LogLevel sets the board's log level.
func (b *Builder) LogLevel(l domain.LogLevel) *Builder {
	b.board.LogLevel = l
	return b
}

// Version sets the board version.
func (b *Builder) Version(major, minor, patch uint32) *Builder {
	b.board.Version = domain.Version{major, minor, patch}
	return b
}

// StartID returns the first placed start node, if any.
func (b *Builder) StartID() string { return b.startID }

// Build places every node and wires every recorded connection.
func (b *Builder) Build() (*domain.Board, error) {
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("failed to build board %s: %w", b.board.ID, errors.Join(b.errs...))
	}

	var errs []error
	for _, id := range b.order {
		if err := b.board.AddNode(b.nodes[id].node); err != nil {
			errs = append(errs, err)
		}
	}
	for _, e := range b.edges {
		from, err := b.pinID(e.fromNode, e.fromPin)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		to, err := b.pinID(e.toNode, e.toPin)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := b.board.Connect(from, to); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to build board %s: %w", b.board.ID, errors.Join(errs...))
	}
	if inst, ok := b.source.(flow.Instantiator); ok {
		if err := flow.UpdateBoard(b.board, inst); err != nil {
			return nil, fmt.Errorf("failed to update board %s: %w", b.board.ID, err)
		}
	}
	return b.board, nil
}

func (b *Builder) pinID(nodeID, pinName string) (string, error) {
	nb, ok := b.nodes[nodeID]
	if !ok || nb.node == nil {
		return "", fmt.Errorf("%w: %s", domain.ErrNodeNotFound, nodeID)
	}
	pin, ok := nb.node.PinByName(pinName)
	if !ok {
		return "", fmt.Errorf("%w: %s on node %s", domain.ErrPinNotFound, pinName, nodeID)
	}
	return pin.ID, nil
}
