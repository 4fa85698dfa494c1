package nodes

import (
	"context"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/flow"
)

// EventLog is the stream event type emitted by Print.
const EventLog = "log"

// LogEvent is the payload of a streamed log line.
type LogEvent struct {
	NodeID  string          `json:"node_id"`
	Message string          `json:"message"`
	Level   domain.LogLevel `json:"log_level"`
}

// Print logs a message into the node trace and streams it to the caller.
type Print struct{}

func (n *Print) GetNode() *domain.Node {
	node := domain.NewNode("log_print", "Print", "Logs a message", CategoryLogging)
	addExecIn(node)
	node.AddInputPin("message", "Message", "", domain.VariableTypeString).WithDefault("Hello World!")
	node.AddInputPin("level", "Level", "debug, info, warn, error or fatal", domain.VariableTypeString).WithDefault("info")
	addExecOut(node)
	return node
}

func (n *Print) Run(ctx context.Context, ec *flow.ExecutionContext) error {
	if err := ec.DeactivateExecPin(PinExecOut); err != nil {
		return err
	}
	message, err := flow.EvaluatePinAs[string](ec, "message")
	if err != nil {
		return err
	}
	levelName, err := flow.EvaluatePinAs[string](ec, "level")
	if err != nil {
		return err
	}
	level, err := domain.ParseLogLevel(levelName)
	if err != nil {
		return err
	}

	ec.LogMessage(message, level)
	if err := ec.StreamResponse(ctx, EventLog, LogEvent{NodeID: ec.NodeID(), Message: message, Level: level}); err != nil {
		ec.Logger().Warn("Failed to stream log line", "err", err)
	}
	return ec.ActivateExecPin(PinExecOut)
}
