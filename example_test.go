package flowlike_test

import (
	"context"
	"fmt"
	"log"

	flowlike "github.com/TM9657/flow-like-sub010"
	"github.com/TM9657/flow-like-sub010/pkg/dsl"
	"github.com/TM9657/flow-like-sub010/pkg/intercom"
	"github.com/TM9657/flow-like-sub010/pkg/nodes"
)

// ExampleEngine_Execute demonstrates building a board with the DSL and
// receiving the log lines it streams.
func ExampleEngine_Execute() {
	eng := flowlike.New(flowlike.WithEventHandler(func(_ context.Context, events []intercom.Event) error {
		for _, ev := range events {
			if line, ok := ev.Payload.(nodes.LogEvent); ok {
				fmt.Println(line.Message)
			}
		}
		return nil
	}))

	b := dsl.New("hello", "Hello", eng.Registry())
	b.Add("start", "events_simple").Go("greet")
	b.Add("greet", "log_print").Set("message", "Hello").Go("bye")
	b.Add("bye", "log_print").Set("message", "Goodbye")
	board, err := b.Build()
	if err != nil {
		log.Fatal(err)
	}

	_, meta, err := eng.Execute(context.Background(), board, nil)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(meta.Status, meta.Nodes)

	// Output:
	// Hello
	// Goodbye
	// Success [bye greet start]
}
