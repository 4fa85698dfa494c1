package flow

import (
	"errors"
	"fmt"
)

var (
	// ErrNoValue is returned when a pin chain ends without a value or default.
	ErrNoValue = errors.New("pin has no value")
	// ErrCircularDependency is returned when a pin chain revisits a pin.
	ErrCircularDependency = errors.New("circular dependency")
	// ErrDependencyCycle is returned when pure nodes depend on each other in a loop.
	ErrDependencyCycle = errors.New("circular node dependency")
	// ErrExecLimit is returned when a node is invoked more often than allowed in one run.
	ErrExecLimit = errors.New("execution limit reached")
	// ErrStackStalled is returned when a run step leaves the execution stack unchanged.
	ErrStackStalled = errors.New("stack did not change")
	// ErrRunInProgress is returned by Fork while the run still has pending targets.
	ErrRunInProgress = errors.New("run is still executing")
	// ErrNotExecOutput is returned when activating a pin that is not an output execution pin.
	ErrNotExecOutput = errors.New("pin is not an output execution pin")
)

// EvalError is an evaluation failure attributed to a pin.
type EvalError struct {
	Kind    error // ErrNoValue or ErrCircularDependency
	PinID   string
	PinName string
	// AtPinID is the pin where the chain stopped, when it differs from PinID.
	AtPinID string
}

func (e *EvalError) Error() string {
	if e.AtPinID != "" && e.AtPinID != e.PinID {
		return fmt.Sprintf("%v: pin %s [%s] (at %s)", e.Kind, e.PinName, e.PinID, e.AtPinID)
	}
	return fmt.Sprintf("%v: pin %s [%s]", e.Kind, e.PinName, e.PinID)
}

func (e *EvalError) Unwrap() error { return e.Kind }

// NodeError is a failure surfaced from a node's logic.
type NodeError struct {
	NodeID   string
	NodeName string
	Err      error
	// Handled is true when an error handler chain consumed the failure.
	Handled bool
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s [%s]: %v", e.NodeName, e.NodeID, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }
