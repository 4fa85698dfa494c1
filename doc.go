/*
Package flowlike is a visual-workflow execution engine: boards of nodes wired by
typed pins, run from a start node until no execution pin fires any more.

It separates the stored graph (Board, Node, Pin) from a run's live state and from
the host that embeds it. Boards are loaded, executed and observed through ports,
so the same engine runs inside a CLI, an HTTP server or an MCP tool call.

# Concept

A board holds nodes and the links between their pins. Execution pins carry control
flow; data pins carry values. Nodes without execution pins are pure: they run on
demand whenever a downstream node reads one of their outputs.

# Key Features

  - Concurrent branches: independent execution chains run in parallel, bounded by WithConcurrency.
  - Error routing: a failing node with error-handler pins redirects execution instead of failing the run.
  - Streaming: nodes emit events (log lines, progress) that are buffered and flushed to the host.
  - Guard rails: a per-node execution limit and stall detection keep runaway boards in check.

# Usage

Create an Engine, build or load a board, then execute it.

	package main

	import (
		"context"
		"log"

		flowlike "github.com/TM9657/flow-like-sub010"
		"github.com/TM9657/flow-like-sub010/pkg/dsl"
	)

	func main() {
		eng := flowlike.New()

		b := dsl.New("hello", "Hello", eng.Registry())
		b.Add("start", "events_simple").Go("print")
		b.Add("print", "log_print").Set("message", "Hello World!")
		board, err := b.Build()
		if err != nil {
			log.Fatal(err)
		}

		_, meta, err := eng.Execute(context.Background(), board, nil)
		if err != nil {
			log.Fatal(err)
		}
		log.Println("Finished:", meta.Status)
	}

For hosted execution with persisted run records, event replay and distributed
locking, see package runs and the adapters under pkg/adapters.
*/
package flowlike
