package cli

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	flowlike "github.com/TM9657/flow-like-sub010"
	flowhttp "github.com/TM9657/flow-like-sub010/pkg/adapters/http"
	"github.com/TM9657/flow-like-sub010/pkg/adapters/mcp"
	"github.com/TM9657/flow-like-sub010/pkg/observability"
	"github.com/TM9657/flow-like-sub010/pkg/runs"
)

// DefaultSweepInterval is how often expired runs and events are purged.
const DefaultSweepInterval = time.Minute

// Serve runs the HTTP API until ctx is done, purging expired runs in the background.
// In-flight runs are awaited before returning.
func Serve(ctx context.Context, app *App) error {
	// 1. Observability
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(reg)
	tracker := observability.NewTracker()

	// 2. Run host
	mgr := app.Manager(runs.WithHooks(metrics.Hooks()), runs.WithHooks(tracker.Hooks()))
	defer mgr.Wait()

	handler := flowhttp.NewHandler(mgr,
		flowhttp.WithLogger(app.Logger),
		flowhttp.WithTracker(tracker),
		flowhttp.WithMetrics(reg),
		flowhttp.WithVersion(flowlike.Version),
	)

	// 3. Serve and sweep
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return flowhttp.Serve(gctx, app.Config.HTTP.Addr, handler, app.Logger)
	})
	g.Go(func() error {
		sweepLoop(gctx, app, mgr, DefaultSweepInterval)
		return nil
	})
	return g.Wait()
}

func sweepLoop(ctx context.Context, app *App, mgr *runs.Manager, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, events, err := mgr.Sweep(ctx)
			if err != nil {
				app.Logger.Warn("Sweep failed", "err", err)
				continue
			}
			if n > 0 || events > 0 {
				app.Logger.Info("Swept expired runs", "runs", n, "events", events)
			}
		}
	}
}

// ServeMCP exposes the boards as MCP tools over stdio, or over SSE when port > 0.
func ServeMCP(ctx context.Context, app *App, port int) error {
	mgr := app.Manager()
	defer mgr.Wait()

	srv := mcp.NewServer(mgr, flowlike.Version, mcp.WithLogger(app.Logger))
	if port > 0 {
		app.Logger.Info("Starting MCP Server (SSE)", "port", port)
		return srv.ServeSSE(ctx, port)
	}
	app.Logger.Info("Starting MCP Server (Stdio)")
	return srv.ServeStdio()
}
