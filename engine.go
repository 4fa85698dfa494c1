package flowlike

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/TM9657/flow-like-sub010/internal/logging"
	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/flow"
	"github.com/TM9657/flow-like-sub010/pkg/intercom"
	"github.com/TM9657/flow-like-sub010/pkg/nodes"
	"github.com/TM9657/flow-like-sub010/pkg/registry"
)

// Engine is the high-level entry point for running boards in-process.
// It owns the node catalog and the defaults applied to every run.
type Engine struct {
	registry       *registry.Registry
	logger         *slog.Logger
	hooks          domain.LifecycleHooks
	events         intercom.Callback
	streamCapacity int
	streamInterval time.Duration
	execLimit      uint64
	concurrency    int
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRegistry replaces the built-in node catalog.
func WithRegistry(reg *registry.Registry) Option {
	return func(e *Engine) {
		e.registry = reg
	}
}

// WithHooks registers observability hooks for every run. Repeated calls merge.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithEventHandler receives the events streamed by nodes, in batches.
func WithEventHandler(cb intercom.Callback) Option {
	return func(e *Engine) {
		e.events = cb
	}
}

// WithStreamCapacity sets how many events are buffered before a flush.
func WithStreamCapacity(n int) Option {
	return func(e *Engine) {
		e.streamCapacity = n
	}
}

// WithStreamInterval sets the maximum delay before buffered events are flushed.
func WithStreamInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.streamInterval = d
	}
}

// WithExecLimit caps how often a single node may execute within one run.
func WithExecLimit(n uint64) Option {
	return func(e *Engine) {
		e.execLimit = n
	}
}

// WithConcurrency bounds how many branches run at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		e.concurrency = n
	}
}

// New creates an Engine backed by the built-in node catalog.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:         logging.NewNop(),
		streamCapacity: intercom.DefaultCapacity,
		streamInterval: intercom.DefaultInterval,
		execLimit:      flow.DefaultExecLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = nodes.NewRegistry()
	}
	return e
}

// Registry exposes the node catalog, e.g. to register custom nodes or build boards.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Execute runs a board to completion from the start node named by payload.ID.
// A nil payload (or an empty ID) starts from the board's first start node.
//
// The returned Run holds the result, traces and errors. Failing nodes only stop
// their own branch: the run and its meta are still returned alongside an error
// joining every unhandled failure.
func (e *Engine) Execute(ctx context.Context, board *domain.Board, payload *domain.RunPayload, opts ...flow.RunOption) (*flow.Run, *domain.LogMeta, error) {
	p := domain.RunPayload{}
	if payload != nil {
		p = *payload
	}
	if p.ID == "" {
		id, err := board.StartNode()
		if err != nil {
			return nil, nil, err
		}
		p.ID = id
	}

	// 1. Engine defaults, then caller overrides
	runOpts := []flow.RunOption{
		flow.WithLogger(e.logger),
		flow.WithHooks(e.hooks),
		flow.WithExecLimit(e.execLimit),
		flow.WithConcurrency(e.concurrency),
	}

	// 2. Event stream
	var sender *intercom.BufferedHandler
	if e.events != nil {
		sender = intercom.NewBufferedHandler(e.events,
			intercom.WithCapacity(e.streamCapacity),
			intercom.WithInterval(e.streamInterval),
			intercom.WithLogger(e.logger),
		)
		runOpts = append(runOpts, flow.WithSender(sender))
	}
	runOpts = append(runOpts, opts...)

	run, err := flow.NewRun(board, e.registry, &p, runOpts...)
	if err != nil {
		if sender != nil {
			_ = sender.Close(ctx)
		}
		return nil, nil, fmt.Errorf("failed to prepare run: %w", err)
	}

	meta, err := run.Execute(ctx)
	if sender != nil {
		// Flush with a fresh deadline so a cancelled run still delivers its tail.
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if cerr := sender.Close(flushCtx); cerr != nil {
			e.logger.Warn("Failed to flush run events", "run_id", run.ID(), "err", cerr)
		}
		cancel()
	}
	return run, meta, err
}
