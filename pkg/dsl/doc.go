/*
Package dsl provides a Go DSL for programmatically constructing boards.

Nodes are placed from a template source (usually a registry), configured
with pin defaults, and wired by pin name. Connections are resolved when
Build is called, so nodes can be referenced before they are added.

Example usage:

	package main

	import (
		"github.com/TM9657/flow-like-sub010/pkg/dsl"
		"github.com/TM9657/flow-like-sub010/pkg/nodes"
	)

	func main() {
		b := dsl.New("hello", "Hello", nodes.NewRegistry())

		b.Add("start", "events_simple").Go("greet")

		b.Add("greet", "log_print").
			Set("message", "Hello from a board!").
			OnError("report", "message")

		b.Add("report", "log_print").Set("level", "error")

		board, err := b.Build()
		// ... pass board to flowlike.Engine.Execute
	}
*/
package dsl
