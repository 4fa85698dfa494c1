package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TM9657/flow-like-sub010/pkg/adapters/file"
	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/ports"
)

func TestLoader_Contract(t *testing.T) {
	ports.BoardLoaderContract(t, file.New("testdata"), []string{"empty", "hello"})
}

func TestLoadFile_YAML(t *testing.T) {
	board, err := file.LoadFile(filepath.Join("testdata", "hello.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "hello", board.ID)
	assert.Equal(t, domain.LogLevelInfo, board.LogLevel)
	assert.Equal(t, domain.Version{1, 0, 0}, board.Version)
	require.Len(t, board.Nodes, 2)
	assert.True(t, board.Nodes["start"].Start)

	in, _, ok := board.PinByID("greet/exec_in")
	require.True(t, ok)
	assert.Equal(t, []string{"start/exec_out"}, in.DependsOn, "links are mirrored on load")

	msg, _, ok := board.PinByID("greet/message")
	require.True(t, ok)
	v, has, err := msg.Default()
	require.NoError(t, err)
	assert.True(t, has)
	assert.Equal(t, "Hello from YAML", v)
}

func TestLoadFile_DefaultsIDToFileName(t *testing.T) {
	board, err := file.LoadFile(filepath.Join("testdata", "empty.json"))
	require.NoError(t, err)
	assert.Equal(t, "empty", board.ID)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := file.LoadFile(filepath.Join("testdata", "missing.yaml"))
	assert.ErrorIs(t, err, domain.ErrBoardNotFound)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("nodes: [unclosed"), 0o600))
	_, err = file.LoadFile(bad)
	assert.ErrorContains(t, err, "failed to parse bad.yaml")
}

func TestLoader_SaveRoundTrip(t *testing.T) {
	ctx := context.Background()
	src, err := file.LoadFile(filepath.Join("testdata", "hello.yaml"))
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.yaml"), []byte("id: stale"), 0o600))

	loader := file.New(dir)
	require.NoError(t, loader.Save(ctx, src))

	ids, err := loader.ListBoards(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, ids)

	loaded, err := loader.GetBoard(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, src.Connections(), loaded.Connections())
	assert.Equal(t, src.Name, loaded.Name)
}

func TestLoader_RejectsPathIDs(t *testing.T) {
	_, err := file.New("testdata").GetBoard(context.Background(), "../hello")
	assert.ErrorIs(t, err, domain.ErrBoardNotFound)
}
