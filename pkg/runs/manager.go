package runs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TM9657/flow-like-sub010/internal/logging"
	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/flow"
	"github.com/TM9657/flow-like-sub010/pkg/intercom"
	"github.com/TM9657/flow-like-sub010/pkg/ports"
)

const (
	defaultTTL     = 24 * time.Hour
	defaultLockTTL = 30 * time.Second
)

// Request describes a run to start.
type Request struct {
	AppID   string
	BoardID string
	UserID  string
	Mode    domain.RunMode
	// Payload selects the start node and carries the trigger input.
	// An empty Payload.ID picks the board's first start node.
	Payload     *domain.RunPayload
	Event       *domain.TriggerEvent
	LogLevel    *domain.LogLevel
	StreamState bool
}

// Result is the outcome of a finished run.
type Result struct {
	Record *domain.RunRecord
	Meta   *domain.LogMeta
	Output any
	Err    error
}

// Manager orchestrates board runs, their persisted records and their event streams.
type Manager struct {
	loader ports.BoardLoader
	store  ports.RunStore
	logs   ports.LogStore
	inst   flow.Instantiator

	locks   *keyedLocks
	locker  ports.DistributedLocker
	lockTTL time.Duration

	broker *broker
	logger *slog.Logger

	hooks          domain.LifecycleHooks
	runOpts        []flow.RunOption
	ttl            time.Duration
	timeout        time.Duration
	streamCapacity int
	streamInterval time.Duration

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets how long a distributed run lock is held before it expires.
func WithLockTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.lockTTL = d
		}
	}
}

// WithLogStore persists summaries and traces of finished runs.
func WithLogStore(logs ports.LogStore) Option {
	return func(m *Manager) {
		m.logs = logs
	}
}

// WithLogger configures a logger for the Manager and its runs.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithHooks registers lifecycle hooks on every run.
func WithHooks(h domain.LifecycleHooks) Option {
	return func(m *Manager) {
		m.hooks = m.hooks.Merge(h)
	}
}

// WithRunOptions appends engine options applied to every run.
func WithRunOptions(opts ...flow.RunOption) Option {
	return func(m *Manager) {
		m.runOpts = append(m.runOpts, opts...)
	}
}

// WithTTL sets how long run records and events are kept.
func WithTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

// WithTimeout bounds each run. Runs that exceed it end with status Timeout.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.timeout = d
	}
}

// WithStream tunes event batching into the store.
func WithStream(capacity int, interval time.Duration) Option {
	return func(m *Manager) {
		m.streamCapacity = capacity
		m.streamInterval = interval
	}
}

// NewManager creates a Manager that loads boards from loader, instantiates
// nodes with inst and records runs in store.
func NewManager(loader ports.BoardLoader, store ports.RunStore, inst flow.Instantiator, opts ...Option) *Manager {
	m := &Manager{
		loader:         loader,
		store:          store,
		inst:           inst,
		locks:          newKeyedLocks(),
		lockTTL:        defaultLockTTL,
		broker:         newBroker(),
		logger:         logging.NewNop(),
		ttl:            defaultTTL,
		streamCapacity: intercom.DefaultCapacity,
		streamInterval: intercom.DefaultInterval,
		cancels:        make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run executes a board synchronously and returns once the run finished.
// A failing board is reported in Result.Err; the returned error covers
// failures to load, record or start the run.
func (m *Manager) Run(ctx context.Context, req Request) (*Result, error) {
	prepared, err := m.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return m.execute(ctx, prepared), nil
}

// Start records the run and executes it in the background.
// The returned record is in status Pending.
func (m *Manager) Start(ctx context.Context, req Request) (*domain.RunRecord, error) {
	prepared, err := m.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.mu.Lock()
	m.cancels[prepared.record.ID] = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			m.mu.Lock()
			delete(m.cancels, prepared.record.ID)
			m.mu.Unlock()
			cancel()
		}()
		m.execute(runCtx, prepared)
	}()

	rec := *prepared.record
	return &rec, nil
}

// Cancel stops a background run started by this Manager.
func (m *Manager) Cancel(runID string) bool {
	m.mu.Lock()
	cancel, ok := m.cancels[runID]
	m.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Wait blocks until every background run finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Get loads a run record.
func (m *Manager) Get(ctx context.Context, runID string) (*domain.RunRecord, error) {
	return m.store.GetRun(ctx, runID)
}

// List pages through the runs of an app, newest first.
func (m *Manager) List(ctx context.Context, appID string, limit int, cursor string) ([]*domain.RunRecord, error) {
	return m.store.ListRunsForApp(ctx, appID, limit, cursor)
}

// Events returns stored events of a run after the given sequence.
func (m *Manager) Events(ctx context.Context, runID string, after int64) ([]*domain.EventRecord, error) {
	return m.store.GetEvents(ctx, domain.EventQuery{RunID: runID, AfterSequence: after})
}

// Subscribe streams events of a run as they are stored. The channel is
// closed when the run finishes or cancel is called.
func (m *Manager) Subscribe(runID string) (<-chan *domain.EventRecord, func()) {
	return m.broker.subscribe(runID)
}

// Boards lists the boards available to run.
func (m *Manager) Boards(ctx context.Context) ([]string, error) {
	return m.loader.ListBoards(ctx)
}

// Board loads a board definition.
func (m *Manager) Board(ctx context.Context, id string) (*domain.Board, error) {
	return m.loader.GetBoard(ctx, id)
}

// Logs returns the configured log store, or nil.
func (m *Manager) Logs() ports.LogStore {
	return m.logs
}

// Store returns the underlying run store.
func (m *Manager) Store() ports.RunStore {
	return m.store
}

// Sweep deletes expired runs and events from the store.
func (m *Manager) Sweep(ctx context.Context) (runs, events int64, err error) {
	now := time.Now().UTC()
	if runs, err = m.store.DeleteExpiredRuns(ctx, now); err != nil {
		return 0, 0, err
	}
	if events, err = m.store.DeleteExpiredEvents(ctx, now); err != nil {
		return runs, 0, err
	}
	return runs, events, nil
}

type prepared struct {
	record *domain.RunRecord
	run    *flow.Run
	sender *intercom.BufferedHandler
	logger *slog.Logger
}

// prepare loads the board, builds the run and records it as Pending.
func (m *Manager) prepare(ctx context.Context, req Request) (*prepared, error) {
	board, err := m.loader.GetBoard(ctx, req.BoardID)
	if err != nil {
		return nil, err
	}

	payload := &domain.RunPayload{}
	if req.Payload != nil {
		cp := *req.Payload
		payload = &cp
	}
	if payload.ID == "" {
		if payload.ID, err = board.StartNode(); err != nil {
			return nil, err
		}
	}
	var inputLen int64
	if payload.Payload != nil {
		if data, err := json.Marshal(payload.Payload); err == nil {
			inputLen = int64(len(data))
		}
	}

	now := time.Now().UTC()
	expires := now.Add(m.ttl)
	mode := req.Mode
	if mode == "" {
		mode = domain.RunModeLocal
	}
	rec := &domain.RunRecord{
		ID:              uuid.NewString(),
		AppID:           req.AppID,
		BoardID:         board.ID,
		Version:         board.Version.Tag(),
		NodeID:          payload.ID,
		Status:          domain.ExecutionPending,
		Mode:            mode,
		InputPayloadLen: inputLen,
		UserID:          req.UserID,
		ExpiresAt:       &expires,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.Event != nil {
		rec.EventID = req.Event.ID
	}
	logger := m.logger.With("run_id", rec.ID, "board_id", board.ID)

	sender := intercom.NewBufferedHandler(m.persistEvents(rec.ID),
		intercom.WithCapacity(m.streamCapacity),
		intercom.WithInterval(m.streamInterval),
		intercom.WithLogger(logger),
	)

	opts := append(slices.Clone(m.runOpts),
		flow.WithRunID(rec.ID),
		flow.WithAppID(req.AppID),
		flow.WithLogger(m.logger),
		flow.WithSender(sender),
		flow.WithHooks(m.hooks),
		flow.WithStreamState(req.StreamState),
	)
	if req.Event != nil {
		opts = append(opts, flow.WithTriggerEvent(req.Event))
	}
	if req.LogLevel != nil {
		opts = append(opts, flow.WithLogLevel(*req.LogLevel))
	}

	run, err := flow.NewRun(board, m.inst, payload, opts...)
	if err != nil {
		_ = sender.Close(ctx)
		return nil, err
	}

	if err := m.store.CreateRun(ctx, rec); err != nil {
		_ = sender.Close(ctx)
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	logger.Debug("Run recorded", "start_node", payload.ID)
	return &prepared{record: rec, run: run, sender: sender, logger: logger}, nil
}

// execute drives a prepared run and settles its record.
func (m *Manager) execute(ctx context.Context, p *prepared) *Result {
	runID := p.record.ID
	defer m.broker.close(runID)

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	started := time.Now().UTC()
	running := domain.ExecutionRunning
	if err := m.update(ctx, runID, domain.RunUpdate{Status: &running, StartedAt: &started}); err != nil {
		p.logger.Warn("Failed to mark run as running", "err", err)
	}

	meta, runErr := p.run.Execute(ctx)
	settle := context.WithoutCancel(ctx)
	if err := p.sender.Close(settle); err != nil {
		p.logger.Warn("Failed to flush run events", "err", err)
	}

	status := domain.ExecutionStatusFor(meta.Status)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		status = domain.ExecutionTimeout
	}
	completed := meta.End
	progress := int32(100)
	update := domain.RunUpdate{Status: &status, CompletedAt: &completed, Progress: &progress}
	if meta.ErrorMessage != "" {
		update.ErrorMessage = &meta.ErrorMessage
	}
	output, hasOutput := p.run.Result()
	if hasOutput {
		if data, err := json.Marshal(output); err == nil {
			n := int64(len(data))
			update.OutputPayloadLen = &n
		}
	}
	if err := m.update(settle, runID, update); err != nil {
		p.logger.Warn("Failed to settle run record", "err", err)
	}

	if m.logs != nil {
		if err := m.logs.WriteRun(settle, meta, p.run.Traces()); err != nil {
			p.logger.Warn("Failed to write run logs", "err", err)
		}
	}

	rec, err := m.store.GetRun(settle, runID)
	if err != nil {
		rec = p.record
	}
	return &Result{Record: rec, Meta: meta, Output: output, Err: runErr}
}

func (m *Manager) update(ctx context.Context, runID string, u domain.RunUpdate) error {
	return m.WithLock(ctx, runID, func(ctx context.Context) error {
		_, err := m.store.UpdateRun(ctx, runID, u)
		return err
	})
}

// persistEvents returns the intercom callback of one run. Batches arrive
// serialized, so the sequence counter needs no further locking.
func (m *Manager) persistEvents(runID string) intercom.Callback {
	var next int64
	return func(ctx context.Context, events []intercom.Event) error {
		if next == 0 {
			last, err := m.store.GetMaxSequence(ctx, runID)
			if err != nil {
				return err
			}
			next = last + 1
		}

		expires := time.Now().UTC().Add(m.ttl)
		records := make([]*domain.EventRecord, 0, len(events))
		for i, e := range events {
			payload, err := json.Marshal(e.Payload)
			if err != nil {
				payload, _ = json.Marshal(fmt.Sprint(e.Payload))
			}
			records = append(records, &domain.EventRecord{
				ID:        e.ID,
				RunID:     runID,
				Sequence:  next + int64(i),
				EventType: e.Type,
				Payload:   payload,
				ExpiresAt: expires,
				CreatedAt: e.Timestamp,
			})
		}
		if err := m.store.PushEvents(ctx, records); err != nil {
			return err
		}
		next += int64(len(records))

		if m.broker.publish(runID, records) {
			ids := make([]string, len(records))
			for i, r := range records {
				ids[i] = r.ID
			}
			if err := m.store.MarkEventsDelivered(ctx, ids); err != nil {
				m.logger.Warn("Failed to mark events delivered", "run_id", runID, "err", err)
			}
		}
		return nil
	}
}
