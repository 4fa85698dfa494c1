package flow

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/TM9657/flow-like-sub010/internal/logging"
	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/intercom"
)

// CompletionFunc runs once after the run loop ends, before nodes are dropped.
type CompletionFunc func(ctx context.Context) error

// runState is shared by pointer between every ExecutionContext of one run.
type runState struct {
	runID       string
	boardID     string
	appID       string
	startNodeID string

	cache       *Cache
	variables   *variableSet
	credentials *domain.Credentials
	profile     *domain.Profile
	payload     *domain.RunPayload
	sender      intercom.Sender
	logLevel    domain.LogLevel
	streamState bool
	logger      *slog.Logger

	mu         sync.Mutex
	completion []CompletionFunc
	result     any
	hasResult  bool
}

// ExecutionContext is what a node sees while it runs. Each invocation gets its
// own context; the cache, variables, credentials and payload behind it are
// shared by the whole run.
type ExecutionContext struct {
	state     *runState
	run       *Run
	node      *Node
	logger    *slog.Logger
	startedBy []*Pin
	delegated bool

	mu        sync.Mutex
	overrides map[string]any
	trace     *domain.Trace
	nodeState domain.NodeState
}

func newExecutionContext(r *Run, node *Node, startedBy []*Pin, overrides map[string]any) *ExecutionContext {
	ec := &ExecutionContext{
		state:     r.state,
		run:       r,
		node:      node,
		startedBy: startedBy,
		trace: &domain.Trace{
			ID:     uuid.NewString(),
			NodeID: node.ID(),
			Start:  time.Now().UTC(),
		},
	}
	// A non-nil map, even an empty one, marks an override context.
	ec.overrides = maps.Clone(overrides)
	ec.logger = r.state.logger.With("node_id", node.ID(), "node", node.Name())
	return ec
}

// Node returns the node being executed.
func (ec *ExecutionContext) Node() *Node { return ec.node }

// NodeID returns the id of the node being executed.
func (ec *ExecutionContext) NodeID() string { return ec.node.ID() }

// RunID returns the run id.
func (ec *ExecutionContext) RunID() string { return ec.state.runID }

// BoardID returns the board id.
func (ec *ExecutionContext) BoardID() string { return ec.state.boardID }

// AppID returns the application the board belongs to.
func (ec *ExecutionContext) AppID() string { return ec.state.appID }

// Logger returns a structured logger tagged with run and node ids.
func (ec *ExecutionContext) Logger() *slog.Logger { return ec.logger }

// StartedBy returns the input execution pins that scheduled this invocation.
// It is empty for start nodes and pure dependencies.
func (ec *ExecutionContext) StartedBy() []*Pin { return ec.startedBy }

// StartedByName reports whether an input execution pin with the given name
// scheduled this invocation.
func (ec *ExecutionContext) StartedByName(name string) bool {
	for _, p := range ec.startedBy {
		if p.name == name {
			return true
		}
	}
	return false
}

// Delegated reports whether another node triggered this one on behalf of an
// external event. Delegated start nodes skip payload extraction and only
// forward activation.
func (ec *ExecutionContext) Delegated() bool { return ec.delegated }

// SubContext creates a context for another node of the same run, carrying
// over this context's overrides.
func (ec *ExecutionContext) SubContext(node *Node) *ExecutionContext {
	return newExecutionContext(ec.run, node, nil, ec.Overrides())
}

// Cache returns the run cache.
func (ec *ExecutionContext) Cache() *Cache { return ec.state.cache }

// GetCache returns the cache entry under key.
func (ec *ExecutionContext) GetCache(key string) (Cacheable, bool) { return ec.state.cache.Get(key) }

// HasCache reports whether key is cached.
func (ec *ExecutionContext) HasCache(key string) bool { return ec.state.cache.Has(key) }

// SetCache stores v under key, replacing any previous entry.
func (ec *ExecutionContext) SetCache(key string, v Cacheable) { ec.state.cache.Set(key, v) }

// EvaluatePin resolves the value of this node's pin with the given name.
func (ec *ExecutionContext) EvaluatePin(name string) (any, error) {
	pin, err := ec.node.PinByName(name)
	if err != nil {
		return nil, err
	}
	return ec.EvaluatePinRef(pin)
}

// EvaluatePinRef resolves the value of any pin under this context's overrides.
func (ec *ExecutionContext) EvaluatePinRef(pin *Pin) (any, error) {
	return Evaluate(pin, ec.Overrides())
}

// EvaluatePinAs resolves a pin and decodes it into T. JSON-like values are
// converted weakly, so a float64 read into an int field is accepted.
func EvaluatePinAs[T any](ec *ExecutionContext, name string) (T, error) {
	var out T
	v, err := ec.EvaluatePin(name)
	if err != nil {
		return out, err
	}
	if typed, ok := v.(T); ok {
		return typed, nil
	}
	if err := decode(v, &out); err != nil {
		return out, fmt.Errorf("pin %s: %w", name, err)
	}
	return out, nil
}

// Decode converts a JSON-like value into out.
func Decode(v any, out any) error {
	return decode(v, out)
}

func decode(v any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode value: %w", err)
	}
	return nil
}

// SetPinValue writes a value to this node's pin. A pin that is overridden in
// this context only has its override updated. Other pins are written to
// stored state, and in an override context are recorded as overrides too.
func (ec *ExecutionContext) SetPinValue(name string, v any) error {
	pin, err := ec.node.PinByName(name)
	if err != nil {
		return err
	}
	ec.SetPinRefValue(pin, v)
	return nil
}

// SetPinRefValue writes a value to the given pin.
func (ec *ExecutionContext) SetPinRefValue(pin *Pin, v any) {
	ec.mu.Lock()
	if ec.overrides != nil {
		_, overridden := ec.overrides[pin.id]
		ec.overrides[pin.id] = v
		if overridden {
			ec.mu.Unlock()
			return
		}
	}
	ec.mu.Unlock()
	pin.SetValue(v)
}

// ActivateExecPin marks an output execution pin as firing.
func (ec *ExecutionContext) ActivateExecPin(name string) error {
	pin, err := ec.node.PinByName(name)
	if err != nil {
		return err
	}
	return ec.ActivateExecPinRef(pin)
}

// DeactivateExecPin clears an output execution pin.
func (ec *ExecutionContext) DeactivateExecPin(name string) error {
	pin, err := ec.node.PinByName(name)
	if err != nil {
		return err
	}
	return ec.DeactivateExecPinRef(pin)
}

// ActivateExecPinRef marks the given output execution pin as firing.
func (ec *ExecutionContext) ActivateExecPinRef(pin *Pin) error {
	if !pin.IsOutput() || !pin.IsExec() {
		return fmt.Errorf("%w: %s", ErrNotExecOutput, pin)
	}
	ec.SetPinRefValue(pin, true)
	return nil
}

// DeactivateExecPinRef clears the given output execution pin.
func (ec *ExecutionContext) DeactivateExecPinRef(pin *Pin) error {
	if !pin.IsOutput() || !pin.IsExec() {
		return fmt.Errorf("%w: %s", ErrNotExecOutput, pin)
	}
	ec.SetPinRefValue(pin, false)
	return nil
}

// ExecuteConnected runs the nodes fed by an output execution pin right away,
// depth first, instead of leaving them to the next driver step.
func (ec *ExecutionContext) ExecuteConnected(ctx context.Context, pin *Pin) error {
	if !pin.IsOutput() || !pin.IsExec() {
		return fmt.Errorf("%w: %s", ErrNotExecOutput, pin)
	}
	return ec.run.runChain(ctx, ec, targetsThrough(pin), false)
}

// ExecuteConnectedDelegated is ExecuteConnected for nodes that relay an
// external event, such as an inbound message. The directly connected nodes run
// delegated; their successors run normally.
func (ec *ExecutionContext) ExecuteConnectedDelegated(ctx context.Context, pin *Pin) error {
	if !pin.IsOutput() || !pin.IsExec() {
		return fmt.Errorf("%w: %s", ErrNotExecOutput, pin)
	}
	return ec.run.runChain(ctx, ec, targetsThrough(pin), true)
}

// ExecuteDelegated runs another node of the run, typically a start node used
// as a callable function, followed by its execution successors. The caller
// sets the node's output pins beforehand.
func (ec *ExecutionContext) ExecuteDelegated(ctx context.Context, node *Node) error {
	return ec.run.runChain(ctx, ec, []ExecutionTarget{{Node: node}}, true)
}

// LookupNode finds another node of the run by id.
func (ec *ExecutionContext) LookupNode(id string) (*Node, bool) { return ec.run.Node(id) }

// OverridePinValue substitutes a value for a pin id in this context and its
// sub contexts without mutating stored state.
func (ec *ExecutionContext) OverridePinValue(pinID string, v any) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if ec.overrides == nil {
		ec.overrides = make(map[string]any)
	}
	ec.overrides[pinID] = v
}

// ClearPinOverride removes one override.
func (ec *ExecutionContext) ClearPinOverride(pinID string) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	delete(ec.overrides, pinID)
}

// ClearAllPinOverrides removes every override. The context stays an
// override context.
func (ec *ExecutionContext) ClearAllPinOverrides() {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	clear(ec.overrides)
}

// Overrides returns a copy of the current overrides, or nil outside an
// override context.
func (ec *ExecutionContext) Overrides() map[string]any {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return maps.Clone(ec.overrides)
}

// State returns the node state of this invocation.
func (ec *ExecutionContext) State() domain.NodeState {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.nodeState
}

// SetState records the node state and, when state streaming is on, tells
// listeners that the node started (Running) or stopped (anything else).
func (ec *ExecutionContext) SetState(ctx context.Context, s domain.NodeState) {
	ec.mu.Lock()
	ec.nodeState = s
	ec.mu.Unlock()

	if !ec.state.streamState {
		return
	}
	method := domain.RunUpdateRemove
	if s == domain.NodeStateRunning {
		method = domain.RunUpdateAdd
	}
	update := domain.RunUpdateEvent{
		RunID:   ec.state.runID,
		NodeIDs: []string{ec.node.ID()},
		Method:  method,
	}
	if err := ec.StreamResponse(ctx, domain.RunUpdateTopic(ec.state.runID), update); err != nil {
		ec.logger.Warn("Failed to stream node state", "state", s.String(), "err", err)
	}
}

// Log appends a message to the node trace if it passes the run log level.
func (ec *ExecutionContext) Log(msg domain.LogMessage) {
	if msg.Level < ec.state.logLevel {
		return
	}
	if msg.NodeID == "" {
		msg.NodeID = ec.node.ID()
	}
	ec.mu.Lock()
	ec.trace.Logs = append(ec.trace.Logs, msg)
	ec.mu.Unlock()
	ec.logger.Log(context.Background(), logging.FromDomain(msg.Level), msg.Message)
}

// LogMessage logs a plain message at the given level.
func (ec *ExecutionContext) LogMessage(message string, level domain.LogLevel) {
	now := time.Now().UTC()
	ec.Log(domain.LogMessage{Message: message, Level: level, Start: now, End: now})
}

// endTrace closes and returns the trace of this invocation.
func (ec *ExecutionContext) endTrace() *domain.Trace {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.trace.End = time.Now().UTC()
	return ec.trace
}

// Payload returns the trigger payload. Only the start node may read it.
func (ec *ExecutionContext) Payload() (any, error) {
	p := ec.state.payload
	if p == nil || ec.node.ID() != ec.state.startNodeID || p.Payload == nil {
		return nil, domain.ErrPayloadNotFound
	}
	return p.Payload, nil
}

// RunPayload returns the full trigger input of the run.
func (ec *ExecutionContext) RunPayload() *domain.RunPayload { return ec.state.payload }

// DecodePayload decodes the trigger payload into out.
func (ec *ExecutionContext) DecodePayload(out any) error {
	p, err := ec.Payload()
	if err != nil {
		return err
	}
	return decode(p, out)
}

// Variable returns the run variable with the given id.
func (ec *ExecutionContext) Variable(id string) (*RunVariable, error) {
	return ec.state.variables.get(id)
}

// VariableByName returns the first run variable with the given name.
func (ec *ExecutionContext) VariableByName(name string) (*RunVariable, error) {
	return ec.state.variables.byName(name)
}

// SetVariable adds or replaces a run variable.
func (ec *ExecutionContext) SetVariable(def *domain.Variable, value any) {
	ec.state.variables.put(def.Copy(), value)
}

// SetVariableValue updates the value of an existing run variable.
func (ec *ExecutionContext) SetVariableValue(id string, value any) error {
	v, err := ec.state.variables.get(id)
	if err != nil {
		return err
	}
	v.Set(value)
	return nil
}

// Credentials returns the run credentials, if any.
func (ec *ExecutionContext) Credentials() *domain.Credentials { return ec.state.credentials }

// Profile returns the run profile, if any.
func (ec *ExecutionContext) Profile() *domain.Profile { return ec.state.profile }

// StreamResponse emits an event to the caller. It is a no-op without a sender.
func (ec *ExecutionContext) StreamResponse(ctx context.Context, eventType string, payload any) error {
	if ec.state.sender == nil {
		return nil
	}
	if ec.run.hooks.OnStream != nil {
		ec.run.hooks.OnStream(ctx, eventType)
	}
	return ec.state.sender.Send(ctx, intercom.NewEvent(eventType, payload))
}

// HookCompletion registers a callback to run once the run loop has ended.
func (ec *ExecutionContext) HookCompletion(cb CompletionFunc) {
	ec.state.mu.Lock()
	defer ec.state.mu.Unlock()
	ec.state.completion = append(ec.state.completion, cb)
}

// SetResult stores the run's result value, replacing any earlier one.
func (ec *ExecutionContext) SetResult(v any) {
	ec.state.mu.Lock()
	defer ec.state.mu.Unlock()
	ec.state.result = v
	ec.state.hasResult = true
}
