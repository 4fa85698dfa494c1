package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TM9657/flow-like-sub010/pkg/adapters/memory"
	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/dsl"
	"github.com/TM9657/flow-like-sub010/pkg/nodes"
	"github.com/TM9657/flow-like-sub010/pkg/observability"
	"github.com/TM9657/flow-like-sub010/pkg/runs"
)

func newTestHandler(t *testing.T) (http.Handler, *runs.Manager) {
	t.Helper()
	reg := nodes.NewRegistry()

	b := dsl.New("greet", "Greet", reg)
	b.Add("start", "events_simple").Go("print")
	b.Add("print", "log_print").Set("message", "hello")
	board, err := b.Build()
	require.NoError(t, err)

	loader, err := memory.NewFromBoards(board)
	require.NoError(t, err)

	promReg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(promReg)
	mgr := runs.NewManager(loader, memory.NewStore(), reg, runs.WithHooks(metrics.Hooks()))
	return NewHandler(mgr, WithMetrics(promReg), WithVersion("1.2.3")), mgr
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthAndInfo(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/info", nil)
	assert.JSONEq(t, `{"app":"flowlike-http","version":"1.2.3"}`, w.Body.String())
}

func TestBoards(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(t, h, http.MethodGet, "/boards", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"boards":["greet"]}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/boards/greet", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var board domain.Board
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &board))
	assert.Len(t, board.Nodes, 2)

	w = do(t, h, http.MethodGet, "/boards/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStartRun_Wait(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(t, h, http.MethodPost, "/boards/greet/runs", StartRunRequest{AppID: "app", Wait: true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res RunResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, domain.ExecutionCompleted, res.Run.Status)
	assert.Equal(t, domain.RunModeHTTP, res.Run.Mode)
	assert.Empty(t, res.Error)

	w = do(t, h, http.MethodGet, "/runs?app_id=app&limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), res.Run.ID)

	w = do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `flowlike_runs_total{status="Success"} 1`)
}

func TestStartRun_Errors(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(t, h, http.MethodPost, "/boards/missing/runs", StartRunRequest{})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodPost, "/boards/greet/runs", StartRunRequest{NodeID: "print-nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/boards/greet/runs", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	w = do(t, h, http.MethodGet, "/runs/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodDelete, "/runs/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodGet, "/runs?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartRun_Async(t *testing.T) {
	h, mgr := newTestHandler(t)

	w := do(t, h, http.MethodPost, "/boards/greet/runs", StartRunRequest{AppID: "app"})
	require.Equal(t, http.StatusAccepted, w.Code)
	var rec domain.RunRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "/runs/"+rec.ID, w.Header().Get("Location"))
	mgr.Wait()

	w = do(t, h, http.MethodGet, "/runs/"+rec.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view RunView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, domain.ExecutionCompleted, view.Status)
	assert.Nil(t, view.Live)
}

func TestSubscribeEvents_ReplaysFinishedRun(t *testing.T) {
	h, mgr := newTestHandler(t)

	res, err := mgr.Run(context.Background(), runs.Request{AppID: "app", BoardID: "greet"})
	require.NoError(t, err)

	w := do(t, h, http.MethodGet, "/runs/"+res.Record.ID+"/events", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, "event: ping")
	assert.Contains(t, body, "id: 1\nevent: log\ndata: {")
	assert.Contains(t, body, `"message":"hello"`)
	assert.Contains(t, body, "event: done")
	assert.Contains(t, body, `"status":"Completed"`)

	w = do(t, h, http.MethodGet, "/runs/"+res.Record.ID+"/events?after=1", nil)
	assert.NotContains(t, w.Body.String(), "event: log")
	assert.Contains(t, w.Body.String(), "event: done")

	req := httptest.NewRequest(http.MethodGet, "/runs/"+res.Record.ID+"/events", nil)
	req.Header.Set("Last-Event-ID", "1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotContains(t, rec.Body.String(), "event: log")
	assert.Contains(t, rec.Body.String(), "event: done")

	w = do(t, h, http.MethodGet, "/runs/"+res.Record.ID+"/events?after=x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "after")
}

func TestOpenAPISpec(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(t, h, http.MethodGet, "/openapi.yaml", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/yaml", w.Header().Get("Content-Type"))

	doc, err := openapi3.NewLoader().LoadFromData(w.Body.Bytes())
	require.NoError(t, err)
	require.NoError(t, doc.Validate(context.Background()))
	assert.Equal(t, "Flow-Like Run Host API", doc.Info.Title)

	ops := map[string]string{
		"/boards":                "ListBoards",
		"/boards/{boardId}/runs": "StartRun",
		"/runs/{runId}/events":   "SubscribeEvents",
	}
	for path, id := range ops {
		item := doc.Paths.Find(path)
		require.NotNil(t, item, path)
		op := item.Get
		if op == nil {
			op = item.Post
		}
		require.NotNil(t, op, path)
		assert.Equal(t, id, op.OperationID)
	}

	w = do(t, h, http.MethodGet, "/swagger", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/openapi.yaml")
}

// idleRunner reports one run that stays Running until finish is called.
type idleRunner struct {
	*runs.Manager
	mu     sync.Mutex
	status domain.ExecutionStatus
	live   chan *domain.EventRecord
}

func (r *idleRunner) Get(_ context.Context, id string) (*domain.RunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &domain.RunRecord{ID: id, BoardID: "greet", Status: r.status}, nil
}

func (r *idleRunner) Events(context.Context, string, int64) ([]*domain.EventRecord, error) {
	return nil, nil
}

func (r *idleRunner) Subscribe(string) (<-chan *domain.EventRecord, func()) {
	return r.live, func() {}
}

func (r *idleRunner) finish() {
	r.mu.Lock()
	r.status = domain.ExecutionCompleted
	r.mu.Unlock()
	close(r.live)
}

func TestSubscribeEvents_PingsIdleStream(t *testing.T) {
	_, mgr := newTestHandler(t)
	runner := &idleRunner{Manager: mgr, status: domain.ExecutionRunning, live: make(chan *domain.EventRecord)}
	srv := httptest.NewServer(NewHandler(runner, WithPingInterval(10*time.Millisecond)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/runs/r1/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	scanner := bufio.NewScanner(resp.Body)
	pings := 0
	for pings < 2 && scanner.Scan() {
		if scanner.Text() == "data: keepalive" {
			pings++
		}
	}
	require.Equal(t, 2, pings)

	runner.finish()
	var rest strings.Builder
	for scanner.Scan() {
		rest.WriteString(scanner.Text() + "\n")
	}
	assert.Contains(t, rest.String(), "event: done")
	assert.Contains(t, rest.String(), `"status":"Completed"`)
}
