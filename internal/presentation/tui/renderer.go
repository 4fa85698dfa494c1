package tui

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
)

// NewRenderer returns a function that renders markdown using glamour.
// Plain renderers emit no escape sequences, for pipes and log files.
func NewRenderer(plain bool) func(string) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(100)}
	if plain {
		opts = append(opts, glamour.WithStandardStyle(styles.NoTTYStyle))
	} else {
		opts = append(opts, glamour.WithAutoStyle())
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return func(markdown string) (string, error) {
			return "", fmt.Errorf("markdown renderer unavailable: %w", err)
		}
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// RunReport builds the markdown summary of a finished run: a header table,
// the board result and every log line grouped by node trace.
func RunReport(meta *domain.LogMeta, traces []*domain.Trace, output any) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Run `%s`\n\n", meta.RunID)
	sb.WriteString("| Board | Version | Status | Duration | Nodes | Logs |\n")
	sb.WriteString("|---|---|---|---|---|---|\n")
	fmt.Fprintf(&sb, "| %s | %s | %s | %s | %d | %d |\n\n",
		meta.BoardID, meta.Version, meta.Status,
		meta.Duration().Round(time.Millisecond), len(meta.Nodes), meta.Logs)

	if meta.ErrorMessage != "" {
		fmt.Fprintf(&sb, "## Error\n\n> %s\n\n", strings.ReplaceAll(meta.ErrorMessage, "\n", "\n> "))
	}

	if output != nil {
		sb.WriteString("## Output\n\n```json\n")
		if data, err := json.MarshalIndent(output, "", "  "); err == nil {
			sb.Write(data)
		} else {
			fmt.Fprintf(&sb, "%v", output)
		}
		sb.WriteString("\n```\n\n")
	}

	var lines []string
	for _, t := range traces {
		for _, l := range t.Logs {
			lines = append(lines, fmt.Sprintf("- **%s** `%s` %s", l.Level, t.NodeID, l.Message))
		}
	}
	if len(lines) > 0 {
		sb.WriteString("## Logs\n\n")
		sb.WriteString(strings.Join(lines, "\n"))
		sb.WriteString("\n")
	}

	return sb.String()
}
