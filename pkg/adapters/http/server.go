package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"

	"github.com/TM9657/flow-like-sub010/internal/logging"
	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/observability"
	"github.com/TM9657/flow-like-sub010/pkg/runs"
)

//go:generate go tool oapi-codegen -package http -generate types,chi-server,spec -o api.gen.go ../../../api/openapi.yaml

// Runner is the run host behind the API. *runs.Manager satisfies it.
type Runner interface {
	Boards(ctx context.Context) ([]string, error)
	Board(ctx context.Context, id string) (*domain.Board, error)
	Run(ctx context.Context, req runs.Request) (*runs.Result, error)
	Start(ctx context.Context, req runs.Request) (*domain.RunRecord, error)
	Get(ctx context.Context, runID string) (*domain.RunRecord, error)
	List(ctx context.Context, appID string, limit int, cursor string) ([]*domain.RunRecord, error)
	Events(ctx context.Context, runID string, after int64) ([]*domain.EventRecord, error)
	Subscribe(runID string) (<-chan *domain.EventRecord, func())
	Cancel(runID string) bool
}

// Server implements the generated ServerInterface.
type Server struct {
	runner   Runner
	tracker  *observability.Tracker
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	version  string
	ping     time.Duration
}

var _ ServerInterface = (*Server)(nil)

// DefaultPingInterval is how often an idle event stream sends a keepalive.
const DefaultPingInterval = 15 * time.Second

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithTracker adds the live view of in-flight runs to run responses.
func WithTracker(t *observability.Tracker) Option {
	return func(s *Server) {
		s.tracker = t
	}
}

// WithMetrics serves the gatherer on /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithPingInterval sets how often live event streams send a keepalive ping.
func WithPingInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.ping = d
		}
	}
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// NewHandler creates a new HTTP handler for the run host.
func NewHandler(runner Runner, opts ...Option) http.Handler {
	s := &Server{runner: runner, logger: logging.NewNop(), version: "dev", ping: DefaultPingInterval}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/openapi.yaml", s.GetSpec)
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	handler := HandlerWithOptions(s, ChiServerOptions{
		BaseRouter:       r,
		ErrorHandlerFunc: s.invalidParam,
	})
	return enableCORS(handler)
}

// invalidParam answers requests whose parameters fail to bind.
func (s *Server) invalidParam(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Warn("Invalid request parameter", "path", r.URL.Path, "err", err)
	s.writeJSON(w, http.StatusBadRequest, Error{Error: err.Error()})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Last-Event-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Flow-Like API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// GetSpec handles the GET /openapi.yaml request. The embedded document is
// loaded through kin-openapi and re-encoded as YAML.
func (s *Server) GetSpec(w http.ResponseWriter, r *http.Request) {
	swagger, err := GetSwagger()
	if err != nil {
		s.logger.Error("Failed to load OpenAPI spec", "err", err)
		s.writeJSON(w, http.StatusInternalServerError, Error{Error: "failed to load spec"})
		return
	}
	data, err := swagger.MarshalJSON()
	if err != nil {
		s.logger.Error("Failed to encode OpenAPI spec", "err", err)
		s.writeJSON(w, http.StatusInternalServerError, Error{Error: "failed to encode spec"})
		return
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		s.writeError(w, err)
		return
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/yaml")
	w.Write(out)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "flowlike-http",
		"version": s.version,
	})
}

// ListBoards handles the GET /boards request.
func (s *Server) ListBoards(w http.ResponseWriter, r *http.Request) {
	ids, err := s.runner.Boards(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"boards": ids})
}

// GetBoard handles the GET /boards/{boardID} request.
func (s *Server) GetBoard(w http.ResponseWriter, r *http.Request, boardID BoardId) {
	board, err := s.runner.Board(r.Context(), boardID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, board)
}

// RunResult is the response of a synchronous run.
type RunResult struct {
	Run    *domain.RunRecord `json:"run"`
	Output any               `json:"output,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// StartRun handles the POST /boards/{boardID}/runs request.
func (s *Server) StartRun(w http.ResponseWriter, r *http.Request, boardID BoardId) {
	var body StartRunJSONRequestBody
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.logger.Warn("StartRun: Invalid request body", "err", err)
			s.writeJSON(w, http.StatusBadRequest, Error{Error: "invalid request body"})
			return
		}
	}

	req := runs.Request{
		AppID:   body.AppID,
		BoardID: boardID,
		UserID:  body.UserID,
		Mode:    domain.RunModeHTTP,
		Payload: &domain.RunPayload{
			ID:               body.NodeID,
			Payload:          body.Payload,
			RuntimeVariables: body.RuntimeVariables,
		},
		LogLevel:    body.LogLevel,
		StreamState: body.StreamState,
	}

	if body.Wait {
		res, err := s.runner.Run(r.Context(), req)
		if err != nil {
			s.writeError(w, err)
			return
		}
		out := RunResult{Run: res.Record, Output: res.Output}
		if res.Err != nil {
			out.Error = res.Err.Error()
		}
		s.writeJSON(w, http.StatusOK, out)
		return
	}

	rec, err := s.runner.Start(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Location", "/runs/"+rec.ID)
	s.writeJSON(w, http.StatusAccepted, rec)
}

// RunView is a run record plus its live state while it executes.
type RunView struct {
	*domain.RunRecord
	Live *observability.Snapshot `json:"live,omitempty"`
}

// GetRun handles the GET /runs/{runID} request.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request, runID RunId) {
	rec, err := s.runner.Get(r.Context(), runID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	view := RunView{RunRecord: rec}
	if s.tracker != nil {
		if snap, ok := s.tracker.Snapshot(rec.ID); ok {
			view.Live = &snap
		}
	}
	s.writeJSON(w, http.StatusOK, view)
}

// ListRuns handles the GET /runs?app_id=&limit=&cursor= request.
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request, params ListRunsParams) {
	limit := 0
	if params.Limit != nil {
		if *params.Limit < 0 {
			s.writeJSON(w, http.StatusBadRequest, Error{Error: "invalid limit"})
			return
		}
		limit = *params.Limit
	}
	list, err := s.runner.List(r.Context(), deref(params.AppId), limit, deref(params.Cursor))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"runs": list})
}

// CancelRun handles the DELETE /runs/{runID} request.
func (s *Server) CancelRun(w http.ResponseWriter, r *http.Request, id RunId) {
	if !s.runner.Cancel(id) {
		s.writeError(w, fmt.Errorf("%w: %s is not running here", domain.ErrRunNotFound, id))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// SubscribeEvents handles the GET /runs/{runID}/events request (SSE).
// Stored events after the `after` query parameter (or Last-Event-ID) are
// replayed first; live events follow until the run finishes.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request, runID RunId, params SubscribeEventsParams) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Error("SubscribeEvents: Streaming not supported")
		s.writeJSON(w, http.StatusInternalServerError, Error{Error: "streaming not supported"})
		return
	}

	after, err := afterSequence(params)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, Error{Error: err.Error()})
		return
	}

	// 1. Subscribe before reading the store so nothing falls in between
	live, cancel := s.runner.Subscribe(runID)
	defer cancel()

	rec, err := s.runner.Get(r.Context(), runID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	stored, err := s.runner.Events(r.Context(), runID, after)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")

	// 2. Replay
	last := after
	for _, e := range stored {
		writeEvent(w, e)
		last = e.Sequence
	}
	flusher.Flush()

	// 3. Live, unless the run already finished
	if !rec.Status.Terminal() {
		s.logger.Debug("SSE: Subscribing to run", "run_id", runID, "after", last)
		ticker := time.NewTicker(s.ping)
		defer ticker.Stop()
	stream:
		for {
			select {
			case <-r.Context().Done():
				s.logger.Debug("SSE: Client disconnected", "run_id", runID)
				return
			case <-ticker.C:
				fmt.Fprintf(w, "event: ping\ndata: keepalive\n\n")
				flusher.Flush()
			case e, ok := <-live:
				if !ok {
					break stream
				}
				if e.Sequence <= last {
					continue
				}
				writeEvent(w, e)
				last = e.Sequence
				flusher.Flush()
			}
		}

		// Slow subscribers may have lost events; the store has them all.
		rest, err := s.runner.Events(context.WithoutCancel(r.Context()), runID, last)
		if err == nil {
			for _, e := range rest {
				writeEvent(w, e)
			}
		}
		if rec, err = s.runner.Get(context.WithoutCancel(r.Context()), runID); err != nil {
			s.logger.Warn("SSE: Failed to load finished run", "run_id", runID, "err", err)
			return
		}
	}

	data, _ := json.Marshal(rec)
	fmt.Fprintf(w, "event: done\ndata: %s\n\n", data)
	flusher.Flush()
}

func afterSequence(params SubscribeEventsParams) (int64, error) {
	after := params.After
	if after == nil {
		after = params.LastEventID
	}
	if after == nil {
		return 0, nil
	}
	if *after < 0 {
		return 0, fmt.Errorf("invalid event sequence %d", *after)
	}
	return *after, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func writeEvent(w http.ResponseWriter, e *domain.EventRecord) {
	payload := e.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", e.Sequence, e.EventType, payload)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrBoardNotFound), errors.Is(err, domain.ErrRunNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNodeNotFound), errors.Is(err, domain.ErrNoStartNode):
		status = http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", "err", err)
	}
	s.writeJSON(w, status, Error{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}

// Serve runs the handler on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		logger.Info("HTTP server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
