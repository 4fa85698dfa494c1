package tui

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
)

func TestRunReport(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	meta := &domain.LogMeta{
		RunID:        "run-1",
		BoardID:      "greet",
		Version:      "v1-2-0",
		Start:        start,
		End:          start.Add(1500 * time.Millisecond),
		Logs:         2,
		Nodes:        []string{"start", "print"},
		Status:       domain.RunStatusFailed,
		ErrorMessage: "node print failed\nboom",
	}
	traces := []*domain.Trace{
		{NodeID: "print", Logs: []domain.LogMessage{
			{Message: "hello", Level: domain.LogLevelInfo},
			{Message: "boom", Level: domain.LogLevelError},
		}},
	}

	report := RunReport(meta, traces, map[string]int{"sum": 3})
	assert.Contains(t, report, "# Run `run-1`")
	assert.Contains(t, report, "| greet | v1-2-0 | Failed | 1.5s | 2 | 2 |")
	assert.Contains(t, report, "> node print failed\n> boom")
	assert.Contains(t, report, "\"sum\": 3")
	assert.Contains(t, report, "- **Info** `print` hello")
	assert.Contains(t, report, "- **Error** `print` boom")

	quiet := RunReport(&domain.LogMeta{RunID: "r2", Status: domain.RunStatusSuccess}, nil, nil)
	assert.NotContains(t, quiet, "## Output")
	assert.NotContains(t, quiet, "## Logs")
	assert.NotContains(t, quiet, "## Error")
}

func TestNewRenderer_Plain(t *testing.T) {
	render := NewRenderer(true)
	out, err := render("# Title\n\nsome **bold** text")
	require.NoError(t, err)
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "bold")
	assert.NotContains(t, out, "\x1b[")
}

func TestStyler_NoTTY(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()

	s := NewStyler(f)
	assert.False(t, s.Colored(), "files are not terminals")
	assert.Equal(t, "[WARN]", s.Level(domain.LogLevelWarn))
	assert.Equal(t, "[ERROR] print boom", s.LogLine("print", domain.LogLevelError, "boom"))
	assert.False(t, NewStyler(nil).Colored())

	var buf bytes.Buffer
	NewPlainStyler().PrintBanner(&buf, "1.0.0")
	assert.Contains(t, buf.String(), "1.0.0")
	assert.NotContains(t, buf.String(), "\x1b[")
}
