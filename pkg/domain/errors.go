package domain

import "errors"

// ErrNodeNotFound is returned when a node id is not on the board.
var ErrNodeNotFound = errors.New("node not found")

// ErrPinNotFound is returned when a pin id or name does not resolve.
var ErrPinNotFound = errors.New("pin not found")

// ErrVariableNotFound is returned when a variable id is not defined for the run.
var ErrVariableNotFound = errors.New("variable not found")

// ErrPayloadNotFound is returned when a node other than the start node asks for the trigger payload.
var ErrPayloadNotFound = errors.New("payload not found")

// ErrInvalidConnection is returned when two pins cannot be connected.
var ErrInvalidConnection = errors.New("invalid connection")

// ErrBoardNotFound is returned when a board id cannot be loaded.
var ErrBoardNotFound = errors.New("board not found")

// ErrRunNotFound is returned when a run id cannot be found in the store.
var ErrRunNotFound = errors.New("run not found")

// ErrNoStartNode is returned when a board has no node flagged as a start node.
var ErrNoStartNode = errors.New("board has no start node")
