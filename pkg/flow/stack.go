package flow

import "github.com/cespare/xxhash/v2"

// RunStack holds the targets of the next driver step, de-duplicated by node.
// Its hash is the XOR of the node id hashes, so it only depends on which
// nodes are pending.
type RunStack struct {
	targets []ExecutionTarget
	index   map[string]int
	hash    uint64
}

// NewRunStack creates an empty stack.
func NewRunStack() *RunStack {
	return &RunStack{index: make(map[string]int)}
}

// Push adds a target. A node already on the stack gets the new through pins merged in.
func (s *RunStack) Push(t ExecutionTarget) {
	id := t.Node.ID()
	if i, ok := s.index[id]; ok {
		for _, p := range t.ThroughPins {
			if !containsPin(s.targets[i].ThroughPins, p) {
				s.targets[i].ThroughPins = append(s.targets[i].ThroughPins, p)
			}
		}
		return
	}
	s.index[id] = len(s.targets)
	s.targets = append(s.targets, t)
	s.hash ^= xxhash.Sum64String(id)
}

// PushAll adds every target in order.
func (s *RunStack) PushAll(targets []ExecutionTarget) {
	for _, t := range targets {
		s.Push(t)
	}
}

// Len returns the number of pending nodes.
func (s *RunStack) Len() int { return len(s.targets) }

// Hash returns the order-independent hash of the pending node ids.
func (s *RunStack) Hash() uint64 { return s.hash }

// Targets returns the pending targets in push order.
func (s *RunStack) Targets() []ExecutionTarget { return s.targets }
