package nodes

import (
	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/flow"
	"github.com/TM9657/flow-like-sub010/pkg/registry"
)

// Catalog categories.
const (
	CategoryEvents   = "Events"
	CategoryControl  = "Control"
	CategoryVariable = "Variable"
	CategoryLogging  = "Logging"
	CategoryMath     = "Math"
	CategoryJSON     = "Utils/JSON"
	CategoryScript   = "Scripting"
)

// Common pin names.
const (
	PinExecIn  = "exec_in"
	PinExecOut = "exec_out"
)

// RegisterAll adds every reference node to the registry.
func RegisterAll(reg *registry.Registry) {
	for _, fn := range []registry.Factory{
		func() flow.NodeLogic { return &SimpleEvent{} },
		func() flow.NodeLogic { return &Branch{} },
		func() flow.NodeLogic { return &Sequence{} },
		func() flow.NodeLogic { return &DoOnce{} },
		func() flow.NodeLogic { return &FlipFlop{} },
		func() flow.NodeLogic { return &Gate{} },
		func() flow.NodeLogic { return &GetVariable{} },
		func() flow.NodeLogic { return &SetVariable{} },
		func() flow.NodeLogic { return &Print{} },
		func() flow.NodeLogic { return &AddInt{} },
		func() flow.NodeLogic { return &JSONPath{} },
		func() flow.NodeLogic { return &JSONValidate{} },
		func() flow.NodeLogic { return &LuaScript{} },
	} {
		reg.Register(fn)
	}
}

// NewRegistry returns a registry holding the reference catalog.
func NewRegistry() *registry.Registry {
	reg := registry.NewRegistry()
	RegisterAll(reg)
	return reg
}

func addExecIn(n *domain.Node) {
	n.AddInputPin(PinExecIn, "Input", "Trigger", domain.VariableTypeExecution)
}

func addExecOut(n *domain.Node) {
	n.AddOutputPin(PinExecOut, "Output", "Done", domain.VariableTypeExecution)
}

// storedBool reads the stored value of one of the node's own pins.
func storedBool(ec *flow.ExecutionContext, name string) (value, ok bool) {
	pin, err := ec.Node().PinByName(name)
	if err != nil {
		return false, false
	}
	v, has := pin.Value()
	if !has {
		return false, false
	}
	b, isBool := v.(bool)
	return b, isBool
}

func storedInt(ec *flow.ExecutionContext, name string) int64 {
	pin, err := ec.Node().PinByName(name)
	if err != nil {
		return 0
	}
	v, has := pin.Value()
	if !has {
		return 0
	}
	var out int64
	if err := flow.Decode(v, &out); err != nil {
		return 0
	}
	return out
}
