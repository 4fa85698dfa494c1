package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	flowlike "github.com/TM9657/flow-like-sub010"
	"github.com/TM9657/flow-like-sub010/internal/presentation/graph"
	"github.com/TM9657/flow-like-sub010/internal/presentation/tui"
	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/flow"
	"github.com/TM9657/flow-like-sub010/pkg/intercom"
	"github.com/TM9657/flow-like-sub010/pkg/nodes"
)

// RunOptions configures a single in-process board run.
type RunOptions struct {
	Board     string
	StartNode string
	Payload   string
	Report    bool
	Graph     bool
	Quiet     bool
}

// RunBoard executes a board in-process, printing its log lines as they stream.
// The finished run is written to the app's log store.
func RunBoard(ctx context.Context, app *App, opts RunOptions, out io.Writer, styler *tui.Styler) error {
	// 1. Inputs
	board, err := resolveBoard(ctx, app, opts.Board)
	if err != nil {
		return err
	}
	payload := &domain.RunPayload{ID: opts.StartNode}
	if opts.Payload != "" {
		if err := json.Unmarshal([]byte(opts.Payload), &payload.Payload); err != nil {
			return fmt.Errorf("payload is not valid JSON: %w", err)
		}
	}

	// 2. Engine
	cfg := app.Config
	engineOpts := []flowlike.Option{
		flowlike.WithLogger(app.Logger),
		flowlike.WithRegistry(app.Registry),
		flowlike.WithStreamCapacity(cfg.Stream.Capacity),
		flowlike.WithStreamInterval(cfg.Stream.Interval),
		flowlike.WithExecLimit(cfg.Engine.ExecLimit),
		flowlike.WithConcurrency(cfg.Engine.Concurrency),
	}
	if app.Logger.Enabled(ctx, slog.LevelDebug) {
		engineOpts = append(engineOpts, flowlike.WithHooks(createDebugHooks(app.Logger)))
	}
	if !opts.Quiet {
		engineOpts = append(engineOpts, flowlike.WithEventHandler(printEvents(out, styler)))
	}
	eng := flowlike.New(engineOpts...)

	if cfg.Engine.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Engine.Timeout)
		defer cancel()
	}

	// 3. Execute
	run, meta, runErr := eng.Execute(ctx, board, payload, flow.WithAppID(cfg.AppID))
	if meta == nil {
		return runErr
	}
	if err := app.Logs.WriteRun(context.WithoutCancel(ctx), meta, run.Traces()); err != nil {
		app.Logger.Warn("Failed to persist run logs", "run_id", meta.RunID, "err", err)
	}

	// 4. Presentation
	if opts.Report {
		result, _ := run.Result()
		rendered, err := tui.NewRenderer(!styler.Colored())(tui.RunReport(meta, run.Traces(), result))
		if err != nil {
			return err
		}
		fmt.Fprint(out, rendered)
	} else if !opts.Quiet {
		printSystemMessage(out, "Run %s finished: %s in %s", meta.RunID, meta.Status, meta.Duration())
	}
	if opts.Graph {
		fmt.Fprint(out, graph.GenerateMermaid(board, graph.OverlayFromRun(meta, run.Traces())))
	}

	if runErr != nil {
		return fmt.Errorf("run %s: %w", meta.Status, runErr)
	}
	return nil
}

// printEvents renders streamed log events, one line each.
func printEvents(out io.Writer, styler *tui.Styler) intercom.Callback {
	return func(_ context.Context, events []intercom.Event) error {
		for _, ev := range events {
			if line, ok := ev.Payload.(nodes.LogEvent); ok {
				fmt.Fprintln(out, styler.LogLine(line.NodeID, line.Level, line.Message))
			}
		}
		return nil
	}
}
