package intercom_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/TM9657/flow-like-sub010/pkg/intercom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type batchSink struct {
	mu      sync.Mutex
	batches [][]intercom.Event
	fail    int
}

func (s *batchSink) callback(_ context.Context, events []intercom.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail > 0 {
		s.fail--
		return errors.New("transport down")
	}
	s.batches = append(s.batches, events)
	return nil
}

func (s *batchSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, b := range s.batches {
		for _, e := range b {
			out = append(out, e.Type)
		}
	}
	return out
}

func (s *batchSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func TestBufferedHandler_FlushOnCapacity(t *testing.T) {
	sink := &batchSink{}
	h := intercom.NewBufferedHandler(sink.callback, intercom.WithCapacity(3), intercom.WithTimed(false))
	ctx := context.Background()

	require.NoError(t, h.Send(ctx, intercom.NewEvent("a", nil)))
	require.NoError(t, h.Send(ctx, intercom.NewEvent("b", nil)))
	assert.Equal(t, 0, sink.count(), "Should not flush below capacity")
	assert.Equal(t, 2, h.Len())

	require.NoError(t, h.Send(ctx, intercom.NewEvent("c", nil)))
	assert.Equal(t, 1, sink.count())
	assert.Equal(t, []string{"a", "b", "c"}, sink.types())
	assert.Equal(t, 0, h.Len())
}

func TestBufferedHandler_TimedFlush(t *testing.T) {
	sink := &batchSink{}
	h := intercom.NewBufferedHandler(sink.callback, intercom.WithInterval(10*time.Millisecond))
	defer h.Close(context.Background())

	require.NoError(t, h.Send(context.Background(), intercom.NewEvent("tick", nil)))

	assert.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestBufferedHandler_RequeueKeepsOrder(t *testing.T) {
	sink := &batchSink{fail: 1}
	h := intercom.NewBufferedHandler(sink.callback, intercom.WithCapacity(100), intercom.WithTimed(false))
	ctx := context.Background()

	require.NoError(t, h.Send(ctx, intercom.NewEvent("first", nil)))
	err := h.Flush(ctx)
	require.Error(t, err, "First flush hits the failing transport")
	assert.Equal(t, 1, h.Len(), "Failed batch must be re-queued")

	require.NoError(t, h.Send(ctx, intercom.NewEvent("second", nil)))
	require.NoError(t, h.Close(ctx))

	assert.Equal(t, []string{"first", "second"}, sink.types())
}

func TestRecorder_OfType(t *testing.T) {
	rec := &intercom.Recorder{}
	ctx := context.Background()
	_ = rec.Send(ctx, intercom.NewEvent("log", "x"))
	_ = rec.Send(ctx, intercom.NewEvent("chunk", "y"))
	_ = rec.Send(ctx, intercom.NewEvent("log", "z"))

	logs := rec.OfType("log")
	require.Len(t, logs, 2)
	assert.Equal(t, "z", logs[1].Payload)
	assert.NotEmpty(t, logs[0].ID)
}
