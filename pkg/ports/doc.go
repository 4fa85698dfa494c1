/*
Package ports defines the driven ports (interfaces) for hosting the board engine.

These interfaces decouple run orchestration from external implementations, allowing
boards to be loaded, runs to be tracked and logs to be kept in various backends.

# Key Interfaces

  - BoardLoader: Responsible for loading Board definitions (e.g., from a directory or Memory).
  - RunStore: Responsible for persisting run records and their streamed events.
  - LogStore: Responsible for persisting run summaries and node traces.
  - DistributedLocker: Provides distributed locking for handling concurrent run access.
*/
package ports
