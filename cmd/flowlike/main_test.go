package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TM9657/flow-like-sub010/pkg/adapters/file"
	"github.com/TM9657/flow-like-sub010/pkg/dsl"
	"github.com/TM9657/flow-like-sub010/pkg/nodes"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app = nil
	t.Cleanup(func() {
		if app != nil {
			assert.NoError(t, app.Close())
			app = nil
		}
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func boardsDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	b := dsl.New("greet", "Greet", nodes.NewRegistry())
	b.Add("start", "events_simple").Go("print")
	b.Add("print", "log_print").Set("message", "hello")
	board, err := b.Build()
	require.NoError(t, err)
	require.NoError(t, file.New(dir).Save(context.Background(), board))
	return dir
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "flowlike version ")
}

func TestBoardCommands(t *testing.T) {
	dir := boardsDir(t)

	out, err := execute(t, "graph", "greet", "--boards", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "graph TD")

	out, err = execute(t, "validate", "greet", "--boards", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")

	out, err = execute(t, "run", "greet", "--boards", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "[INFO] print hello")

	_, err = execute(t, "run", "missing", "--boards", dir)
	assert.Error(t, err)

	_, err = execute(t, "run")
	assert.Error(t, err, "a board argument is required")
}
