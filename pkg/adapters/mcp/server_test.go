package mcp

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TM9657/flow-like-sub010/pkg/adapters/memory"
	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/dsl"
	"github.com/TM9657/flow-like-sub010/pkg/nodes"
	"github.com/TM9657/flow-like-sub010/pkg/runs"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	reg := nodes.NewRegistry()

	b := dsl.New("echo", "Echo", reg)
	b.Add("start", "events_simple").Go("print")
	b.Add("print", "log_print").Set("message", "echo")
	board, err := b.Build()
	require.NoError(t, err)

	loader, err := memory.NewFromBoards(board)
	require.NoError(t, err)
	return NewServer(runs.NewManager(loader, memory.NewStore(), reg), "test")
}

func TestListBoards(t *testing.T) {
	s := newTestServer(t)

	res, err := s.handleListBoards(context.Background(), mcp.CallToolRequest{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"echo"}, res.Boards)
}

func TestRunBoardAndGetRun(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleRunBoard(ctx, mcp.CallToolRequest{}, runBoardArgs{BoardID: "echo", AppID: "app", Payload: `{"n": 1}`})
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionCompleted, res.Run.Status)
	assert.Empty(t, res.Error)
	require.Len(t, res.Events, 1)
	assert.Equal(t, nodes.EventLog, res.Events[0].EventType)

	got, err := s.handleGetRun(ctx, mcp.CallToolRequest{}, getRunArgs{RunID: res.Run.ID})
	require.NoError(t, err)
	assert.Equal(t, res.Run.ID, got.Run.ID)
	assert.Empty(t, got.Events)

	got, err = s.handleGetRun(ctx, mcp.CallToolRequest{}, getRunArgs{RunID: res.Run.ID, Events: true})
	require.NoError(t, err)
	assert.Len(t, got.Events, 1)
}

func TestRunBoard_Errors(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleRunBoard(ctx, mcp.CallToolRequest{}, runBoardArgs{})
	require.EqualError(t, err, "board_id is required")

	_, err = s.handleRunBoard(ctx, mcp.CallToolRequest{}, runBoardArgs{BoardID: "echo", Payload: "{"})
	require.ErrorContains(t, err, "payload is not valid JSON")

	_, err = s.handleRunBoard(ctx, mcp.CallToolRequest{}, runBoardArgs{BoardID: "nope"})
	require.ErrorIs(t, err, domain.ErrBoardNotFound)

	_, err = s.handleGetRun(ctx, mcp.CallToolRequest{}, getRunArgs{RunID: "nope"})
	require.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestReadBoardResource(t *testing.T) {
	s := newTestServer(t)

	req := mcp.ReadResourceRequest{}
	req.Params.URI = "flowlike://boards/echo"
	contents, err := s.readBoard(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, "application/json", text.MIMEType)
	assert.Contains(t, text.Text, `"echo"`)

	req.Params.URI = "flowlike://other/echo"
	_, err = s.readBoard(context.Background(), req)
	assert.Error(t, err)
}
