package validator

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
)

// Severity ranks an issue. Only errors fail validation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// LogLevel maps the severity onto the board log levels.
func (s Severity) LogLevel() domain.LogLevel {
	if s == SeverityError {
		return domain.LogLevelError
	}
	return domain.LogLevelWarn
}

// Kind classifies an issue.
type Kind string

const (
	KindDanglingPin    Kind = "dangling_pin"
	KindAsymmetricEdge Kind = "asymmetric_edge"
	KindDirection      Kind = "direction"
	KindTypeMismatch   Kind = "type_mismatch"
	KindDataCycle      Kind = "data_cycle"
	KindUnreachable    Kind = "unreachable"
	KindNoStart        Kind = "no_start"
	KindUnknownNode    Kind = "unknown_node"
	KindSchema         Kind = "schema"
)

// Issue is one finding on a board.
type Issue struct {
	Severity Severity `json:"severity"`
	Kind     Kind     `json:"kind"`
	NodeID   string   `json:"node_id,omitempty"`
	PinID    string   `json:"pin_id,omitempty"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s] %s", i.Kind, i.Message)
}

// Report holds every issue found on a board, in check order.
type Report struct {
	BoardID string  `json:"board_id"`
	Issues  []Issue `json:"issues"`
}

// Errors returns the issues with error severity.
func (r *Report) Errors() []Issue {
	return r.filter(SeverityError)
}

// Warnings returns the issues with warning severity.
func (r *Report) Warnings() []Issue {
	return r.filter(SeverityWarning)
}

func (r *Report) filter(s Severity) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == s {
			out = append(out, i)
		}
	}
	return out
}

// Err returns an *Error when the report holds errors, nil otherwise.
func (r *Report) Err() error {
	errs := r.Errors()
	if len(errs) == 0 {
		return nil
	}
	return &Error{BoardID: r.BoardID, Issues: errs}
}

// Error aggregates the failed checks of a board.
type Error struct {
	BoardID string
	Issues  []Issue
}

func (e *Error) Error() string {
	lines := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		lines[i] = issue.String()
	}
	return fmt.Sprintf("board %s: found %d errors:\n- %s", e.BoardID, len(e.Issues), strings.Join(lines, "\n- "))
}

// Catalog resolves node kinds. *registry.Registry satisfies it.
type Catalog interface {
	Template(name string) (*domain.Node, error)
}

// Option configures validation.
type Option func(*checker)

// WithCatalog reports nodes whose kind the catalog does not know.
func WithCatalog(c Catalog) Option {
	return func(ch *checker) {
		ch.catalog = c
	}
}

// ValidateBoard checks a board and returns an aggregated *Error, or nil.
func ValidateBoard(board *domain.Board, opts ...Option) error {
	return Validate(board, opts...).Err()
}

// Validate checks a board for broken or asymmetric links, type-incompatible
// edges, data dependency cycles, unreachable nodes and default values that
// violate their JSON schema.
func Validate(board *domain.Board, opts ...Option) *Report {
	ch := &checker{board: board, report: &Report{BoardID: board.ID}, pins: make(map[string]pinRef)}
	for _, opt := range opts {
		opt(ch)
	}

	// 1. Index pins
	for _, nid := range slices.Sorted(maps.Keys(board.Nodes)) {
		n := board.Nodes[nid]
		for _, p := range n.SortedPins() {
			ch.pins[p.ID] = pinRef{pin: p, node: n}
		}
	}
	for _, lid := range slices.Sorted(maps.Keys(board.Layers)) {
		l := board.Layers[lid]
		for _, pid := range slices.Sorted(maps.Keys(l.Pins)) {
			if _, ok := ch.pins[pid]; !ok {
				ch.pins[pid] = pinRef{pin: l.Pins[pid]}
			}
		}
	}

	// 2. Checks
	ch.checkCatalog()
	ch.checkLinks()
	ch.checkCycles()
	ch.checkReachability()
	ch.checkSchemas()
	return ch.report
}

type pinRef struct {
	pin  *domain.Pin
	node *domain.Node
}

type checker struct {
	board   *domain.Board
	catalog Catalog
	report  *Report
	pins    map[string]pinRef
}

func (c *checker) add(sev Severity, kind Kind, nodeID, pinID, format string, args ...any) {
	c.report.Issues = append(c.report.Issues, Issue{
		Severity: sev,
		Kind:     kind,
		NodeID:   nodeID,
		PinID:    pinID,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (c *checker) sortedPinIDs() []string {
	return slices.Sorted(maps.Keys(c.pins))
}

func nodeID(r pinRef) string {
	if r.node == nil {
		return ""
	}
	return r.node.ID
}

func (c *checker) checkCatalog() {
	if c.catalog == nil {
		return
	}
	for _, id := range slices.Sorted(maps.Keys(c.board.Nodes)) {
		n := c.board.Nodes[id]
		if _, err := c.catalog.Template(n.Name); err != nil {
			c.add(SeverityError, KindUnknownNode, id, "", "node %s has unknown kind %q", id, n.Name)
		}
	}
}

func (c *checker) checkLinks() {
	for _, id := range c.sortedPinIDs() {
		ref := c.pins[id]
		p := ref.pin

		for _, to := range p.ConnectedTo {
			target, ok := c.pins[to]
			if !ok {
				c.add(SeverityError, KindDanglingPin, nodeID(ref), id, "pin %s connects to missing pin %s", id, to)
				continue
			}
			if !slices.Contains(target.pin.DependsOn, id) {
				c.add(SeverityError, KindAsymmetricEdge, nodeID(ref), id, "pin %s connects to %s, which does not depend on it", id, to)
			}
			if ref.node != nil && target.node != nil && (!p.IsOutput() || !target.pin.IsInput()) {
				c.add(SeverityError, KindDirection, nodeID(ref), id, "edge %s -> %s must connect an output to an input", id, to)
			}
			if !domain.Compatible(p, target.pin) {
				c.add(SeverityError, KindTypeMismatch, nodeID(ref), id, "edge %s (%s) -> %s (%s) has incompatible types",
					id, p.DataType, to, target.pin.DataType)
			}
		}

		for _, from := range p.DependsOn {
			source, ok := c.pins[from]
			if !ok {
				c.add(SeverityError, KindDanglingPin, nodeID(ref), id, "pin %s depends on missing pin %s", id, from)
				continue
			}
			if !slices.Contains(source.pin.ConnectedTo, id) {
				c.add(SeverityError, KindAsymmetricEdge, nodeID(ref), id, "pin %s depends on %s, which does not connect to it", id, from)
			}
		}
	}
}

// dataDeps returns the pins a data pin pulls its value from: an input reads
// its upstream pins, an output of a pure node reads the node's data inputs.
func (c *checker) dataDeps(id string) []string {
	ref := c.pins[id]
	p := ref.pin
	if p.IsExec() {
		return nil
	}
	var deps []string
	if p.IsInput() || ref.node == nil {
		for _, from := range p.DependsOn {
			if src, ok := c.pins[from]; ok && !src.pin.IsExec() {
				deps = append(deps, from)
			}
		}
		return deps
	}
	if ref.node.IsPure() {
		for _, in := range ref.node.SortedPins() {
			if in.IsInput() && !in.IsExec() {
				deps = append(deps, in.ID)
			}
		}
	}
	return deps
}

func (c *checker) checkCycles() {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(c.pins))
	var path []string
	reported := make(map[string]bool)

	var visit func(id string)
	visit = func(id string) {
		state[id] = visiting
		path = append(path, id)
		for _, dep := range c.dataDeps(id) {
			switch state[dep] {
			case unvisited:
				visit(dep)
			case visiting:
				start := slices.Index(path, dep)
				cycle := slices.Clone(path[start:])
				key := slices.Min(cycle)
				if !reported[key] {
					reported[key] = true
					c.add(SeverityError, KindDataCycle, nodeID(c.pins[dep]), dep,
						"data dependency cycle: %s -> %s", strings.Join(cycle, " -> "), dep)
				}
			}
		}
		path = path[:len(path)-1]
		state[id] = done
	}

	for _, id := range c.sortedPinIDs() {
		if state[id] == unvisited {
			visit(id)
		}
	}
}

func (c *checker) checkReachability() {
	var starts []string
	for _, id := range slices.Sorted(maps.Keys(c.board.Nodes)) {
		if c.board.Nodes[id].Start {
			starts = append(starts, id)
		}
	}
	if len(starts) == 0 {
		if len(c.board.Nodes) > 0 {
			c.add(SeverityWarning, KindNoStart, "", "", "board has no start node")
		}
		return
	}

	reached := make(map[string]bool)
	queue := slices.Clone(starts)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if reached[id] {
			continue
		}
		reached[id] = true
		n := c.board.Nodes[id]

		for _, p := range n.SortedPins() {
			switch {
			case p.IsOutput() && p.IsExec():
				queue = append(queue, c.followExec(p.ConnectedTo)...)
			case p.IsInput() && !p.IsExec():
				queue = append(queue, c.upstreamNodes(p.DependsOn)...)
			}
		}
	}

	for _, id := range slices.Sorted(maps.Keys(c.board.Nodes)) {
		if !reached[id] {
			c.add(SeverityWarning, KindUnreachable, id, "", "node %s (%s) is not reachable from a start node", id, c.board.Nodes[id].Name)
		}
	}
}

// followExec resolves exec targets to node ids, passing through layer relay pins.
func (c *checker) followExec(targets []string) []string {
	var out []string
	seen := make(map[string]bool)
	for len(targets) > 0 {
		id := targets[0]
		targets = targets[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		ref, ok := c.pins[id]
		if !ok {
			continue
		}
		if ref.node == nil {
			targets = append(targets, ref.pin.ConnectedTo...)
			continue
		}
		out = append(out, ref.node.ID)
	}
	return out
}

// upstreamNodes resolves data sources to node ids, passing through layer relay pins.
func (c *checker) upstreamNodes(sources []string) []string {
	var out []string
	seen := make(map[string]bool)
	for len(sources) > 0 {
		id := sources[0]
		sources = sources[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		ref, ok := c.pins[id]
		if !ok {
			continue
		}
		if ref.node == nil {
			sources = append(sources, ref.pin.DependsOn...)
			continue
		}
		out = append(out, ref.node.ID)
	}
	return out
}

func (c *checker) checkSchemas() {
	for _, id := range c.sortedPinIDs() {
		ref := c.pins[id]
		p := ref.pin
		if p.Schema == "" || len(p.DefaultValue) == 0 {
			continue
		}
		if msg := validateJSON(p.Schema, p.DefaultValue); msg != "" {
			c.add(SeverityError, KindSchema, nodeID(ref), id, "default of pin %s: %s", id, msg)
		}
	}
	for _, id := range slices.Sorted(maps.Keys(c.board.Variables)) {
		v := c.board.Variables[id]
		if v.Schema == "" || len(v.DefaultValue) == 0 {
			continue
		}
		if msg := validateJSON(v.Schema, v.DefaultValue); msg != "" {
			c.add(SeverityError, KindSchema, "", "", "default of variable %s (%s): %s", v.Name, id, msg)
		}
	}
}

// validateJSON returns a description of the violations, or "" when doc is valid.
func validateJSON(schemaSource string, doc []byte) string {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaSource))
	if err != nil {
		return fmt.Sprintf("invalid JSON schema: %v", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Sprintf("validation error: %v", err)
	}
	if result.Valid() {
		return ""
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return strings.Join(msgs, "; ")
}
