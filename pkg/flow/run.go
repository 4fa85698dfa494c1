package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/intercom"
)

// Run is one execution of a board from its start node to completion.
type Run struct {
	board     *domain.Board
	state     *runState
	nodes     map[string]*Node
	order     []*Node
	arena     *arena
	start     []ExecutionTarget
	event     *domain.TriggerEvent
	logger    *slog.Logger
	hooks     domain.LifecycleHooks
	execLimit uint64
	limit     int

	mu        sync.Mutex
	stack     *RunStack
	traces    []*domain.Trace
	visited   map[string]struct{}
	errs      []*NodeError
	fatal     error
	status    domain.RunStatus
	startTime time.Time
	endTime   time.Time
	meta      *domain.LogMeta
}

// NewRun builds a run for a board. Pins are created first, then wired by id
// (unknown ids are dropped), then every node's logic is instantiated. The node
// named by payload.ID becomes the start target.
func NewRun(board *domain.Board, inst Instantiator, payload *domain.RunPayload, opts ...RunOption) (*Run, error) {
	cfg := newRunConfig(opts)
	if cfg.runID == "" {
		cfg.runID = uuid.NewString()
	}

	r := &Run{
		board:     board,
		nodes:     make(map[string]*Node, len(board.Nodes)),
		arena:     &arena{pins: make(map[string]*Pin)},
		event:     cfg.event,
		hooks:     cfg.hooks,
		execLimit: cfg.execLimit,
		limit:     cfg.concurrency,
		visited:   make(map[string]struct{}),
		status:    domain.RunStatusRunning,
	}
	r.logger = cfg.logger.With("run_id", cfg.runID, "board_id", board.ID)

	// 1. Node pins, then layer relay pins
	for _, id := range slices.Sorted(maps.Keys(board.Nodes)) {
		def := board.Nodes[id]
		n := &Node{def: def, byID: make(map[string]*Pin, len(def.Pins))}
		for _, pd := range def.SortedPins() {
			p, err := newPin(pd, n, r.arena)
			if err != nil {
				return nil, err
			}
			r.arena.pins[p.id] = p
			n.byID[p.id] = p
			n.pins = append(n.pins, p)
		}
		r.nodes[id] = n
		r.order = append(r.order, n)
	}
	for _, lid := range slices.Sorted(maps.Keys(board.Layers)) {
		layer := board.Layers[lid]
		for _, pid := range slices.Sorted(maps.Keys(layer.Pins)) {
			if _, exists := r.arena.pins[pid]; exists {
				// Older boards mirror node pins on their layer.
				continue
			}
			p, err := newPin(layer.Pins[pid], nil, r.arena)
			if err != nil {
				return nil, err
			}
			r.arena.pins[p.id] = p
		}
	}

	// 2. Drop edges to pins that no longer exist
	for _, p := range r.arena.pins {
		p.dependsOn = slices.DeleteFunc(p.dependsOn, func(id string) bool { return r.arena.pins[id] == nil })
		p.connectedTo = slices.DeleteFunc(p.connectedTo, func(id string) bool { return r.arena.pins[id] == nil })
	}

	// 3. Logic
	for _, n := range r.order {
		logic, err := inst.Instantiate(n.def)
		if err != nil {
			return nil, fmt.Errorf("failed to instantiate node %s [%s]: %w", n.def.Name, n.def.ID, err)
		}
		n.logic = logic
	}

	var startID string
	if payload != nil && payload.ID != "" {
		n, ok := r.nodes[payload.ID]
		if !ok {
			return nil, fmt.Errorf("start node %s: %w", payload.ID, domain.ErrNodeNotFound)
		}
		startID = n.ID()
		r.start = []ExecutionTarget{{Node: n}}
	}

	vars, err := resolveVariables(board, payload, cfg.event)
	if err != nil {
		return nil, err
	}

	logLevel := board.LogLevel
	if cfg.logLevel != nil {
		logLevel = *cfg.logLevel
	}

	r.state = &runState{
		runID:       cfg.runID,
		boardID:     board.ID,
		appID:       cfg.appID,
		startNodeID: startID,
		cache:       NewCache(),
		variables:   vars,
		credentials: cfg.credentials,
		profile:     cfg.profile,
		payload:     payload,
		sender:      cfg.sender,
		logLevel:    logLevel,
		streamState: cfg.streamState,
		logger:      r.logger,
	}
	return r, nil
}

// ID returns the run id.
func (r *Run) ID() string { return r.state.runID }

// Board returns the board being executed.
func (r *Run) Board() *domain.Board { return r.board }

// Node returns the runtime node with the given id.
func (r *Run) Node(id string) (*Node, bool) {
	n, ok := r.nodes[id]
	return n, ok
}

// Nodes returns all runtime nodes ordered by id.
func (r *Run) Nodes() []*Node { return r.order }

// Cache returns the run cache.
func (r *Run) Cache() *Cache { return r.state.cache }

// Variables returns the current variable values by id.
func (r *Run) Variables() map[string]any { return r.state.variables.snapshot() }

// Result returns the value stored with SetResult.
func (r *Run) Result() (any, bool) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	return r.state.result, r.state.hasResult
}

// Status returns the current run status.
func (r *Run) Status() domain.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Traces returns the collected node traces.
func (r *Run) Traces() []*domain.Trace {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.traces)
}

// Errors returns every node error of the run, handled or not.
func (r *Run) Errors() []*NodeError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.errs)
}

// UnhandledErrors returns the node failures no error handler consumed.
func (r *Run) UnhandledErrors() []*NodeError {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*NodeError
	for _, e := range r.errs {
		if !e.Handled {
			out = append(out, e)
		}
	}
	return out
}

// Duration returns how long the run took, or has taken so far.
func (r *Run) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startTime.IsZero() {
		return 0
	}
	if r.endTime.IsZero() {
		return time.Since(r.startTime)
	}
	return r.endTime.Sub(r.startTime)
}

// Meta returns the log metadata of a finished run, or nil.
func (r *Run) Meta() *domain.LogMeta {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.meta
}

// Execute drives the run until no execution pin fires any more, the context
// is cancelled, or the run stalls. A failed node only stops its own branch;
// the returned error joins every unhandled node failure.
func (r *Run) Execute(ctx context.Context) (*domain.LogMeta, error) {
	r.mu.Lock()
	if r.stack != nil {
		r.mu.Unlock()
		return nil, ErrRunInProgress
	}
	r.startTime = time.Now().UTC()
	r.endTime = time.Time{}
	r.status = domain.RunStatusRunning
	stack := NewRunStack()
	stack.PushAll(r.start)
	r.stack = stack
	r.mu.Unlock()

	r.logger.Info("Run started", "start_nodes", len(r.start))

	cancelled := false
	for stack.Len() > 0 {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		before := stack.Hash()
		next, err := r.step(ctx, stack)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				cancelled = true
			} else {
				r.setFatal(err)
			}
			break
		}
		if next.Len() > 0 && next.Hash() == before {
			r.setFatal(ErrStackStalled)
			break
		}

		stack = next
		r.mu.Lock()
		r.stack = stack
		r.mu.Unlock()
	}
	// A node that returned ctx.Err() ends its branch like any failure, so the
	// stack may drain before the loop sees the cancellation.
	if ctx.Err() != nil {
		cancelled = true
	}

	if cancelled {
		now := time.Now().UTC()
		r.pushTrace(&domain.Trace{
			ID:    uuid.NewString(),
			Logs:  []domain.LogMessage{{Message: "Run cancelled", Level: domain.LogLevelFatal, Start: now, End: now}},
			Start: now,
			End:   now,
		})
	}

	return r.finish(context.WithoutCancel(ctx), cancelled)
}

// step runs every pending target and collects their successors. One target
// runs inline; several run concurrently, bounded by the concurrency limit.
func (r *Run) step(ctx context.Context, stack *RunStack) (*RunStack, error) {
	targets := stack.Targets()
	next := NewRunStack()

	if len(targets) == 1 {
		succ, err := r.stepCore(ctx, targets[0])
		if err != nil {
			return nil, err
		}
		next.PushAll(succ)
		return next, nil
	}

	results := make([][]ExecutionTarget, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.limit)
	for i, t := range targets {
		g.Go(func() error {
			succ, err := r.stepCore(gctx, t)
			results[i] = succ
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, succ := range results {
		next.PushAll(succ)
	}
	return next, nil
}

// stepCore triggers one target and returns what it activated.
func (r *Run) stepCore(ctx context.Context, target ExecutionTarget) ([]ExecutionTarget, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := target.Node
	if calls := n.execCalls.Add(1); calls > r.execLimit {
		return nil, fmt.Errorf("%w: node %s [%s] ran %d times", ErrExecLimit, n.Name(), n.ID(), r.execLimit)
	}

	ec := newExecutionContext(r, n, target.ThroughPins, nil)
	if err := r.trigger(ctx, ec, newGuard()); err != nil {
		r.addError(err)
	}
	r.markVisited(n.ID())

	if ec.State() != domain.NodeStateSuccess {
		return nil, nil
	}
	succ, err := n.ConnectedExec(ec.Overrides())
	if err != nil {
		r.addError(&NodeError{NodeID: n.ID(), NodeName: n.Name(), Err: err})
		return nil, nil
	}
	return succ, nil
}

// guard tracks which nodes already ran within one trigger, so a node reached
// twice (as a dependency and as the target) runs once.
type guard struct {
	mu  sync.Mutex
	ran map[string]struct{}
}

func newGuard() *guard {
	return &guard{ran: make(map[string]struct{})}
}

func (g *guard) enter(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.ran[id]; ok {
		return false
	}
	g.ran[id] = struct{}{}
	return true
}

func (g *guard) has(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.ran[id]
	return ok
}

// trigger runs a node's missing pure dependencies, then the node itself, and
// routes a failure through the error handling chain. It returns a non-nil
// *NodeError only for unhandled failures.
func (r *Run) trigger(ctx context.Context, ec *ExecutionContext, g *guard) error {
	if err := r.triggerMissingDependencies(ctx, ec, g); err != nil {
		ec.LogMessage(fmt.Sprintf("Failed to resolve dependencies: %v", err), domain.LogLevelError)
		ec.SetState(ctx, domain.NodeStateError)
		r.pushTrace(ec.endTrace())
		return r.handleError(ctx, ec, err)
	}
	if err := r.runLogicOnly(ctx, ec, g); err != nil {
		return r.handleError(ctx, ec, err)
	}
	return nil
}

// triggerMissingDependencies runs the pure nodes feeding ec's node in
// post-order, skipping any that already ran in this trigger.
func (r *Run) triggerMissingDependencies(ctx context.Context, ec *ExecutionContext, g *guard) error {
	order, err := pureDependencyOrder(ec.node, g)
	if err != nil {
		return err
	}
	for _, dep := range order {
		if err := r.runLogicOnly(ctx, ec.SubContext(dep), g); err != nil {
			return fmt.Errorf("dependency %s [%s]: %w", dep.Name(), dep.ID(), err)
		}
	}
	return nil
}

func pureDependencyOrder(root *Node, g *guard) ([]*Node, error) {
	var order []*Node
	visiting := map[string]bool{root.ID(): true}
	done := make(map[string]bool)

	var visit func(n *Node) error
	visit = func(n *Node) error {
		for _, parent := range n.PureParents() {
			id := parent.ID()
			if done[id] || g.has(id) {
				continue
			}
			if visiting[id] {
				return fmt.Errorf("%w: %s [%s] -> %s [%s]", ErrDependencyCycle, n.Name(), n.ID(), parent.Name(), id)
			}
			visiting[id] = true
			if err := visit(parent); err != nil {
				return err
			}
			delete(visiting, id)
			done[id] = true
			order = append(order, parent)
		}
		return nil
	}

	if err := visit(root); err != nil {
		return nil, err
	}
	return order, nil
}

// runLogicOnly invokes the node's logic once per guard and records its trace.
func (r *Run) runLogicOnly(ctx context.Context, ec *ExecutionContext, g *guard) error {
	n := ec.node
	if !g.enter(n.ID()) {
		return nil
	}

	if p, err := n.PinByName(ErrorHandlerPin); err == nil && p.IsOutput() && p.IsExec() {
		p.SetValue(false)
	}

	started := time.Now()
	ec.SetState(ctx, domain.NodeStateRunning)
	r.nodeHook(ctx, r.hooks.OnNodeStart, ec, 0, nil)
	ec.LogMessage(fmt.Sprintf("Starting Node Execution: %s [%s]", n.Name(), n.ID()), domain.LogLevelDebug)

	err := safeRun(ctx, n.logic, ec)
	if err != nil {
		ec.LogMessage(fmt.Sprintf("Failed to execute node: %v", err), domain.LogLevelError)
		ec.SetState(ctx, domain.NodeStateError)
	} else {
		ec.SetState(ctx, domain.NodeStateSuccess)
	}

	r.pushTrace(ec.endTrace())
	r.nodeHook(ctx, r.hooks.OnNodeEnd, ec, time.Since(started), err)
	return err
}

func safeRun(ctx context.Context, logic NodeLogic, ec *ExecutionContext) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("node panicked: %v", rec)
		}
	}()
	return logic.Run(ctx, ec)
}

// handleError activates the node's error handler pin and runs the handler
// chain. Without connected handlers the failure stays unhandled.
func (r *Run) handleError(ctx context.Context, ec *ExecutionContext, cause error) error {
	n := ec.node
	nodeErr := &NodeError{NodeID: n.ID(), NodeName: n.Name(), Err: cause}

	pin, err := n.PinByName(ErrorHandlerPin)
	if err != nil || !pin.IsOutput() || !pin.IsExec() {
		ec.SetState(ctx, domain.NodeStateError)
		return nodeErr
	}

	_ = ec.ActivateExecPinRef(pin)
	_ = ec.SetPinValue(ErrorHandlerStringPin, cause.Error())

	handlers := n.ErrorHandlers(ec.Overrides())
	if len(handlers) == 0 {
		ec.LogMessage("No error handling nodes found", domain.LogLevelError)
		ec.SetState(ctx, domain.NodeStateError)
		return nodeErr
	}

	if err := r.runChain(ctx, ec, handlers, false); err != nil {
		r.logger.Warn("Error handler chain aborted", "node_id", n.ID(), "err", err)
	}
	ec.SetState(ctx, domain.NodeStateError)

	nodeErr.Handled = true
	r.mu.Lock()
	r.errs = append(r.errs, nodeErr)
	r.mu.Unlock()
	return nil
}

// runChain runs targets depth first: each node with its pure dependencies,
// then the nodes its active execution outputs feed. Every node runs at most
// once per chain.
func (r *Run) runChain(ctx context.Context, parent *ExecutionContext, targets []ExecutionTarget, delegated bool) error {
	seen := make(map[string]bool)

	var walk func(t ExecutionTarget, delegated bool) error
	walk = func(t ExecutionTarget, delegated bool) error {
		n := t.Node
		if seen[n.ID()] {
			return nil
		}
		seen[n.ID()] = true
		if err := ctx.Err(); err != nil {
			return err
		}
		if calls := n.execCalls.Add(1); calls > r.execLimit {
			return fmt.Errorf("%w: node %s [%s] ran %d times", ErrExecLimit, n.Name(), n.ID(), r.execLimit)
		}

		ec := newExecutionContext(r, n, t.ThroughPins, parent.Overrides())
		ec.delegated = delegated
		if err := r.trigger(ctx, ec, newGuard()); err != nil {
			r.addError(err)
		}
		r.markVisited(n.ID())
		if ec.State() != domain.NodeStateSuccess {
			return nil
		}

		succ, err := n.ConnectedExec(ec.Overrides())
		if err != nil {
			r.addError(&NodeError{NodeID: n.ID(), NodeName: n.Name(), Err: err})
			return nil
		}
		for _, s := range succ {
			if err := walk(s, false); err != nil {
				return err
			}
		}
		return nil
	}

	for _, t := range targets {
		if err := walk(t, delegated); err != nil {
			return err
		}
	}
	return nil
}

func (r *Run) nodeHook(ctx context.Context, hook func(context.Context, *domain.NodeEvent), ec *ExecutionContext, d time.Duration, err error) {
	if hook == nil {
		return
	}
	hook(ctx, &domain.NodeEvent{
		Timestamp: time.Now().UTC(),
		RunID:     r.state.runID,
		BoardID:   r.board.ID,
		NodeID:    ec.node.ID(),
		NodeName:  ec.node.Name(),
		State:     ec.State(),
		Duration:  d,
		Err:       err,
	})
}

// finish runs completion callbacks, drops node resources, settles the status
// and flushes the sender.
func (r *Run) finish(ctx context.Context, cancelled bool) (*domain.LogMeta, error) {
	r.state.mu.Lock()
	callbacks := slices.Clone(r.state.completion)
	r.state.mu.Unlock()
	for _, cb := range callbacks {
		if err := cb(ctx); err != nil {
			r.logger.Warn("Completion callback failed", "err", err)
		}
	}

	for _, n := range r.order {
		if d, ok := n.logic.(Dropper); ok {
			d.OnDrop(ctx)
		}
	}

	r.mu.Lock()
	r.endTime = time.Now().UTC()
	var failures []error
	for _, e := range r.errs {
		if !e.Handled {
			failures = append(failures, e)
		}
	}
	if r.fatal != nil {
		failures = append(failures, r.fatal)
	}
	switch {
	case cancelled:
		r.status = domain.RunStatusStopped
		failures = append(failures, context.Canceled)
	case len(failures) > 0:
		r.status = domain.RunStatusFailed
	default:
		r.status = domain.RunStatusSuccess
	}
	runErr := errors.Join(failures...)
	r.meta = r.buildMeta(runErr)
	meta := r.meta
	r.stack = nil
	r.mu.Unlock()

	if f, ok := r.state.sender.(intercom.Flusher); ok {
		if err := f.Flush(ctx); err != nil {
			r.logger.Warn("Failed to flush stream", "err", err)
		}
	}

	r.logger.Info("Run finished",
		"status", meta.Status,
		"duration", meta.Duration(),
		"nodes", len(meta.Nodes),
	)
	if r.hooks.OnRunEnd != nil {
		r.hooks.OnRunEnd(ctx, meta)
	}
	return meta, runErr
}

// buildMeta must be called with r.mu held.
func (r *Run) buildMeta(runErr error) *domain.LogMeta {
	logs := 0
	level := domain.LogLevelDebug
	for _, t := range r.traces {
		logs += len(t.Logs)
		if l := t.MaxLevel(); l > level {
			level = l
		}
	}
	nodes := slices.Collect(maps.Keys(r.visited))
	sort.Strings(nodes)

	meta := &domain.LogMeta{
		AppID:    r.state.appID,
		RunID:    r.state.runID,
		BoardID:  r.board.ID,
		Version:  r.board.Version.Tag(),
		Start:    r.startTime,
		End:      r.endTime,
		LogLevel: level,
		Logs:     logs,
		Nodes:    nodes,
		NodeID:   r.state.startNodeID,
		Status:   r.status,
	}
	if r.event != nil {
		meta.EventID = r.event.ID
	}
	if p := r.state.payload; p != nil && p.Payload != nil {
		if data, err := json.Marshal(p.Payload); err == nil {
			meta.Payload = data
		}
	}
	if runErr != nil {
		meta.ErrorMessage = runErr.Error()
	}
	return meta
}

// Fork resets a finished run so it can execute again with the same board and
// inputs. Cache entries, pin values, counters and traces are cleared and
// variables return to their starting values.
func (r *Run) Fork() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stack != nil {
		return ErrRunInProgress
	}

	r.state.cache.Clear()
	for _, p := range r.arena.pins {
		p.Reset()
	}
	for _, n := range r.order {
		n.execCalls.Store(0)
	}
	r.state.variables.reset()
	r.state.mu.Lock()
	r.state.completion = nil
	r.state.result = nil
	r.state.hasResult = false
	r.state.mu.Unlock()

	r.traces = nil
	r.errs = nil
	r.fatal = nil
	r.visited = make(map[string]struct{})
	r.meta = nil
	r.status = domain.RunStatusRunning
	r.startTime = time.Time{}
	r.endTime = time.Time{}
	return nil
}

func (r *Run) pushTrace(t *domain.Trace) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traces = append(r.traces, t)
}

func (r *Run) markVisited(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visited[id] = struct{}{}
}

func (r *Run) addError(err error) {
	var nodeErr *NodeError
	if !errors.As(err, &nodeErr) {
		nodeErr = &NodeError{Err: err}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, nodeErr)
}

func (r *Run) setFatal(err error) {
	r.logger.Error("Run aborted", "err", err)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fatal = err
}
