package intercom

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/TM9657/flow-like-sub010/internal/logging"
)

const (
	DefaultCapacity = 50
	DefaultInterval = 100 * time.Millisecond
)

// BufferedHandler batches events and hands them to a Callback when the
// buffer reaches capacity, on a timer, or on an explicit Flush.
//
// Delivery is ordered and at-least-once: a batch whose callback fails is put
// back in front of the buffer and retried on the next flush.
type BufferedHandler struct {
	callback Callback
	capacity int
	interval time.Duration
	timed    bool
	logger   *slog.Logger

	mu     sync.Mutex // guards buffer
	buffer []Event

	flushMu sync.Mutex // serializes callback invocations

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a BufferedHandler.
type Option func(*BufferedHandler)

// WithCapacity sets the number of buffered events that triggers a flush.
func WithCapacity(n int) Option {
	return func(h *BufferedHandler) {
		if n > 0 {
			h.capacity = n
		}
	}
}

// WithInterval sets the period of the timed flush.
func WithInterval(d time.Duration) Option {
	return func(h *BufferedHandler) {
		if d > 0 {
			h.interval = d
		}
	}
}

// WithTimed enables or disables the background flush timer.
func WithTimed(timed bool) Option {
	return func(h *BufferedHandler) {
		h.timed = timed
	}
}

// WithLogger configures a logger for failed background flushes.
func WithLogger(logger *slog.Logger) Option {
	return func(h *BufferedHandler) {
		h.logger = logger
	}
}

// NewBufferedHandler creates a handler that delivers batches to cb.
// Defaults: capacity 50, interval 100ms, timed.
func NewBufferedHandler(cb Callback, opts ...Option) *BufferedHandler {
	h := &BufferedHandler{
		callback: cb,
		capacity: DefaultCapacity,
		interval: DefaultInterval,
		timed:    true,
		logger:   logging.NewNop(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.timed {
		go h.loop()
	} else {
		close(h.done)
	}
	return h
}

// Send buffers the event, flushing synchronously once capacity is reached.
func (h *BufferedHandler) Send(ctx context.Context, event Event) error {
	h.mu.Lock()
	h.buffer = append(h.buffer, event)
	full := len(h.buffer) >= h.capacity
	h.mu.Unlock()

	if full {
		return h.Flush(ctx)
	}
	return nil
}

// Len returns the number of buffered events.
func (h *BufferedHandler) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.buffer)
}

// Flush delivers all buffered events as one batch.
func (h *BufferedHandler) Flush(ctx context.Context) error {
	h.flushMu.Lock()
	defer h.flushMu.Unlock()

	h.mu.Lock()
	batch := h.buffer
	h.buffer = nil
	h.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	if err := h.callback(ctx, batch); err != nil {
		// Re-queue ahead of anything sent meanwhile to keep ordering.
		h.mu.Lock()
		h.buffer = append(batch, h.buffer...)
		h.mu.Unlock()
		return fmt.Errorf("failed to flush %d events: %w", len(batch), err)
	}
	return nil
}

// Close stops the timer and flushes what is left.
func (h *BufferedHandler) Close(ctx context.Context) error {
	h.closeOnce.Do(func() {
		close(h.stop)
	})
	<-h.done
	return h.Flush(ctx)
}

func (h *BufferedHandler) loop() {
	defer close(h.done)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			if err := h.Flush(context.Background()); err != nil {
				h.logger.Warn("Timed flush failed, events re-queued", "err", err)
			}
		}
	}
}
