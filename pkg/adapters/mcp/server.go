package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/TM9657/flow-like-sub010/internal/logging"
	flowhttp "github.com/TM9657/flow-like-sub010/pkg/adapters/http"
	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/runs"
)

const boardURIPrefix = "flowlike://boards/"

// Runner is the run host behind the tools. *runs.Manager satisfies it.
type Runner interface {
	Boards(ctx context.Context) ([]string, error)
	Board(ctx context.Context, id string) (*domain.Board, error)
	Run(ctx context.Context, req runs.Request) (*runs.Result, error)
	Get(ctx context.Context, runID string) (*domain.RunRecord, error)
	Events(ctx context.Context, runID string, after int64) ([]*domain.EventRecord, error)
}

// RunResponse is the structured result of run_board and get_run.
type RunResponse struct {
	Run    *domain.RunRecord     `json:"run" jsonschema_description:"The persisted run record"`
	Output any                   `json:"output,omitempty" jsonschema_description:"The board's result value, if any"`
	Error  string                `json:"error,omitempty" jsonschema_description:"Unhandled node failures"`
	Events []*domain.EventRecord `json:"events,omitempty" jsonschema_description:"Events streamed by the run, in sequence"`
}

// BoardsResponse is the structured result of list_boards.
type BoardsResponse struct {
	Boards []string `json:"boards" jsonschema_description:"Ids of the boards that can be run"`
}

type runBoardArgs struct {
	BoardID string `json:"board_id"`
	AppID   string `json:"app_id,omitempty"`
	NodeID  string `json:"node_id,omitempty"`
	Payload string `json:"payload,omitempty"`
}

type getRunArgs struct {
	RunID  string `json:"run_id"`
	Events bool   `json:"events,omitempty"`
}

// Server exposes boards and runs as an MCP server.
type Server struct {
	runner    Runner
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(runner Runner, version string, opts ...Option) *Server {
	s := &Server{
		runner:    runner,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("flowlike-mcp", version),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server, for custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the MCP server over Server-Sent Events until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(fmt.Sprintf("http://localhost:%d", port)))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	return flowhttp.Serve(ctx, fmt.Sprintf(":%d", port), mux, s.logger)
}

func (s *Server) registerTools() {
	// TOOL: list_boards
	s.mcpServer.AddTool(mcp.NewTool("list_boards",
		mcp.WithDescription("List the ids of the boards that can be run."),
		mcp.WithOutputSchema[BoardsResponse](),
	), mcp.NewStructuredToolHandler(s.handleListBoards))

	// TOOL: run_board
	s.mcpServer.AddTool(mcp.NewTool("run_board",
		mcp.WithDescription("Run a board to completion and return its run record, result and streamed events."),
		mcp.WithString("board_id", mcp.Required(), mcp.Description("The board to run")),
		mcp.WithString("app_id", mcp.Description("The app the run belongs to (optional)")),
		mcp.WithString("node_id", mcp.Description("The start node (optional, defaults to the board's first start node)")),
		mcp.WithString("payload", mcp.Description("JSON value passed to the start node (optional)")),
		mcp.WithOutputSchema[RunResponse](),
	), mcp.NewStructuredToolHandler(s.handleRunBoard))

	// TOOL: get_run
	s.mcpServer.AddTool(mcp.NewTool("get_run",
		mcp.WithDescription("Get the persisted record of a run."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("The run id")),
		mcp.WithBoolean("events", mcp.Description("Include the run's stored events")),
		mcp.WithOutputSchema[RunResponse](),
	), mcp.NewStructuredToolHandler(s.handleGetRun))
}

func (s *Server) handleListBoards(ctx context.Context, _ mcp.CallToolRequest, _ map[string]any) (BoardsResponse, error) {
	ids, err := s.runner.Boards(ctx)
	if err != nil {
		return BoardsResponse{}, fmt.Errorf("list boards failed: %w", err)
	}
	return BoardsResponse{Boards: ids}, nil
}

func (s *Server) handleRunBoard(ctx context.Context, _ mcp.CallToolRequest, args runBoardArgs) (RunResponse, error) {
	if args.BoardID == "" {
		return RunResponse{}, errors.New("board_id is required")
	}
	payload := &domain.RunPayload{ID: args.NodeID}
	if args.Payload != "" {
		if err := json.Unmarshal([]byte(args.Payload), &payload.Payload); err != nil {
			return RunResponse{}, fmt.Errorf("payload is not valid JSON: %w", err)
		}
	}

	res, err := s.runner.Run(ctx, runs.Request{
		AppID:   args.AppID,
		BoardID: args.BoardID,
		Mode:    domain.RunModeLocal,
		Payload: payload,
	})
	if err != nil {
		return RunResponse{}, fmt.Errorf("run failed: %w", err)
	}

	out := RunResponse{Run: res.Record, Output: res.Output}
	if res.Err != nil {
		out.Error = res.Err.Error()
		s.logger.Warn("MCP run_board: Run failed", "run_id", res.Record.ID, "err", res.Err)
	}
	if out.Events, err = s.runner.Events(ctx, res.Record.ID, 0); err != nil {
		s.logger.Warn("MCP run_board: Failed to load events", "run_id", res.Record.ID, "err", err)
	}
	return out, nil
}

func (s *Server) handleGetRun(ctx context.Context, _ mcp.CallToolRequest, args getRunArgs) (RunResponse, error) {
	rec, err := s.runner.Get(ctx, args.RunID)
	if err != nil {
		return RunResponse{}, fmt.Errorf("get run failed: %w", err)
	}
	out := RunResponse{Run: rec}
	if args.Events {
		if out.Events, err = s.runner.Events(ctx, rec.ID, 0); err != nil {
			return RunResponse{}, fmt.Errorf("get events failed: %w", err)
		}
	}
	return out, nil
}

func (s *Server) registerResources() {
	// EXPOSE: flowlike://boards/{id}
	s.mcpServer.AddResourceTemplate(mcp.NewResourceTemplate(boardURIPrefix+"{id}", "Board Definition",
		mcp.WithTemplateMIMEType("application/json"),
		mcp.WithTemplateDescription("The JSON definition of a board"),
	), s.readBoard)
}

func (s *Server) readBoard(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := request.Params.URI
	id, ok := strings.CutPrefix(uri, boardURIPrefix)
	if !ok || id == "" {
		return nil, fmt.Errorf("unknown resource %s", uri)
	}
	board, err := s.runner.Board(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load board: %w", err)
	}
	data, err := json.Marshal(board)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
