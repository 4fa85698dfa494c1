/*
Package runs hosts board executions on top of the storage ports.

A Manager loads a board, records the run in a ports.RunStore, streams the
run's intercom events into the store with per-run sequence numbers, fans
them out to live subscribers and finally writes the run summary and node
traces to a ports.LogStore.

Operations on one run are serialized with reference-counted local mutexes
and, when configured, a ports.DistributedLocker shared across replicas.
*/
package runs
