/*
Package observability exposes run and node activity of the engine.

Metrics publishes Prometheus collectors fed by lifecycle hooks. Tracker keeps a
live view of the nodes currently executing in each run. Both plug into a run
through their Hooks method:

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	tracker := observability.NewTracker()
	hooks := metrics.Hooks().Merge(tracker.Hooks())
*/
package observability
