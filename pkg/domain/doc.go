/*
Package domain contains the stored model of a board and the records exchanged
with execution hosts.

It is kept free of I/O and of the runtime engine so that loaders, stores and
editors can share it, following Hexagonal Architecture principles.

# Key Entities

  - Board: the graph container (nodes, layers, variables, comments). Editing
    operations (Connect, Disconnect, RemoveNode, FixPins) keep pin links symmetric.
  - Node and Pin: vertex and slot definitions. Edges live on the pins as ordered
    id lists (DependsOn upstream, ConnectedTo downstream).
  - Variable: board-scoped typed values with exposure and secrecy flags.
  - RunPayload, TriggerEvent: inputs that start a run.
  - Trace, LogMessage, LogMeta: what a run reports back.
  - RunRecord, EventRecord: what execution hosts persist about a run.
*/
package domain
