package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/avi3tal/flowgraph/pkg/checkpoints"
	"github.com/avi3tal/flowgraph/pkg/graph"
	"github.com/avi3tal/flowgraph/pkg/state"
)

// Human-in-the-loop: the publish node pauses the run with an interrupt,
// the program inspects the pending payload, and a second invocation on
// the same thread answers it with a resume value.
func main() {
	store := checkpoints.NewMemoryStore()

	g := graph.New("publisher").
		AddNode("draft", func(_ context.Context, _ state.State) (*graph.NodeResult, error) {
			return &graph.NodeResult{Update: state.State{
				"article": "Graphs All the Way Down",
			}}, nil
		}).
		AddNode("publish", func(ctx context.Context, s state.State) (*graph.NodeResult, error) {
			answer, ok := graph.ResumeValue(ctx)
			if !ok {
				return nil, graph.Interrupt(fmt.Sprintf("publish %q?", s["article"]))
			}
			if approved, _ := answer.(bool); !approved {
				return &graph.NodeResult{Update: state.State{"status": "rejected"}}, nil
			}
			return &graph.NodeResult{Update: state.State{"status": "published"}}, nil
		}).
		AddEdge("draft", "publish").
		AddEdge("publish", graph.END).
		SetEntryPoint("draft")

	compiled, err := g.Compile(graph.WithCheckpointer(store))
	if err != nil {
		log.Fatalf("compile: %v", err)
	}

	ctx := context.Background()
	const thread = "article-42"

	_, err = compiled.Invoke(ctx, nil, graph.WithThreadID(thread))
	var pending *graph.InterruptError
	if !errors.As(err, &pending) {
		log.Fatalf("expected an interrupt, got: %v", err)
	}
	fmt.Printf("paused at %q: %v\n", pending.Node, pending.Payload)

	// A human said yes. Resume the thread with the answer.
	final, err := compiled.Invoke(ctx, nil,
		graph.WithThreadID(thread), graph.WithResumeValue(true))
	if err != nil {
		log.Fatalf("resume: %v", err)
	}
	fmt.Printf("article %q is %v\n", final["article"], final["status"])
}
