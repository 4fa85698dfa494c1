/*
Package intercom carries streamed run output (logs, progress, partial chunks,
node state changes) from the engine to the embedding host.

Nodes emit events through a Sender. Hosts usually wrap their transport in a
BufferedHandler, which trades update granularity for I/O efficiency by
flushing batches on a size or time threshold.
*/
package intercom
