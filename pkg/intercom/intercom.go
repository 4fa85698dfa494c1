package intercom

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a caller-visible message emitted during a run: a log line,
// a progress update, a partial chunk or a node state change.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"event_type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent stamps a new event with a fresh id and the current time.
func NewEvent(eventType string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// Sender delivers events to the embedding host.
type Sender interface {
	Send(ctx context.Context, event Event) error
}

// Flusher is implemented by senders that buffer events.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Callback receives a batch of events in emission order.
type Callback func(ctx context.Context, events []Event) error

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, event Event) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Recorder is an unbuffered Sender that keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Send appends the event.
func (r *Recorder) Send(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the recorded events with the given type.
func (r *Recorder) OfType(eventType string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
