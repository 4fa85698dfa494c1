// Package flow executes boards.
//
// A Run turns a stored domain.Board into runtime nodes and pins, then drives
// execution from the start node: each step triggers the pending nodes, and the
// nodes fed by their active output execution pins become the next step.
// Independent branches of a step run concurrently.
//
// Data flows lazily. Reading an input pin walks its dependency chain through
// Evaluate, and pure nodes (nodes without execution pins) feeding an input
// are run on demand right before the node that reads them.
//
// Node behavior is supplied through NodeLogic; nodes talk to the run only via
// their ExecutionContext.
package flow
