package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/avi3tal/flowgraph/pkg/graph"
	"github.com/avi3tal/flowgraph/pkg/state"
)

// A two-node pipeline: fetch produces a greeting, shout uppercases it.
func main() {
	g := graph.New("greeter").
		AddNode("fetch", func(_ context.Context, _ state.State) (*graph.NodeResult, error) {
			return &graph.NodeResult{Update: state.State{"greeting": "hello, world"}}, nil
		}).
		AddNode("shout", func(_ context.Context, s state.State) (*graph.NodeResult, error) {
			greeting, _ := s["greeting"].(string)
			return &graph.NodeResult{Update: state.State{"greeting": strings.ToUpper(greeting)}}, nil
		}).
		AddEdge("fetch", "shout").
		AddEdge("shout", graph.END).
		SetEntryPoint("fetch")

	compiled, err := g.Compile()
	if err != nil {
		log.Fatalf("compile: %v", err)
	}

	final, err := compiled.Invoke(context.Background(), nil)
	if err != nil {
		log.Fatalf("invoke: %v", err)
	}

	fmt.Println(final["greeting"])
}
