package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/TM9657/flow-like-sub010/internal/presentation/graph"
	"github.com/TM9657/flow-like-sub010/internal/presentation/tui"
	"github.com/TM9657/flow-like-sub010/internal/validator"
)

// Validate checks a board and prints every issue. Only errors fail it.
func Validate(ctx context.Context, app *App, ref string, out io.Writer, styler *tui.Styler) error {
	board, err := resolveBoard(ctx, app, ref)
	if err != nil {
		return err
	}

	report := validator.Validate(board, validator.WithCatalog(app.Registry))
	for _, issue := range report.Issues {
		level := styler.Level(issue.Severity.LogLevel())
		fmt.Fprintf(out, "%s %s: %s\n", level, issue.Kind, issue.Message)
	}
	if err := report.Err(); err != nil {
		return err
	}
	printSystemMessage(out, "Board %s is valid (%d warnings)", board.ID, len(report.Warnings()))
	return nil
}

// Graph prints the Mermaid flowchart of a board.
func Graph(ctx context.Context, app *App, ref string, out io.Writer) error {
	board, err := resolveBoard(ctx, app, ref)
	if err != nil {
		return err
	}
	fmt.Fprint(out, graph.GenerateMermaid(board, nil))
	return nil
}

// ListRuns prints the run records of an app, newest first.
func ListRuns(ctx context.Context, app *App, appID string, limit int, out io.Writer) error {
	records, err := app.Store.ListRunsForApp(ctx, appID, limit, "")
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tBOARD\tSTATUS\tMODE\tCREATED")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.BoardID, r.Status, r.Mode, r.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

// History prints the persisted run summaries of a board, newest first.
func History(ctx context.Context, app *App, boardID string, limit int, out io.Writer) error {
	metas, err := app.Logs.ListRuns(ctx, boardID, limit)
	if err != nil {
		return fmt.Errorf("failed to list run logs: %w", err)
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tVERSION\tSTATUS\tDURATION\tNODES\tLOGS")
	for _, m := range metas {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\n", m.RunID, m.Version, m.Status, m.Duration().Round(time.Millisecond), len(m.Nodes), m.Logs)
	}
	return w.Flush()
}
