package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/rs/zerolog"

	"github.com/avi3tal/flowgraph/pkg/graph"
	"github.com/avi3tal/flowgraph/pkg/state"
)

// A refine-until-good-enough loop driven by a conditional edge, consumed
// through the streaming API so every super-step is visible as it happens.
func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(zerolog.InfoLevel).
		With().Timestamp().Logger()

	schema := state.NewSchema().
		AddField("quality", state.Field{Default: func() any { return 0 }}).
		AddField("drafts", state.Field{
			Reducer: state.Append,
			Default: func() any { return []string{} },
		})

	g := graph.New("refiner", graph.WithSchema(schema)).
		AddNode("draft", func(ctx context.Context, s state.State) (*graph.NodeResult, error) {
			quality, _ := s["quality"].(int)
			quality++
			graph.EmitMessage(ctx, fmt.Sprintf("drafting at quality %d", quality))
			return &graph.NodeResult{Update: state.State{
				"quality": quality,
				"drafts":  []string{fmt.Sprintf("draft v%d", quality)},
			}}, nil
		}).
		AddConditionalEdge("draft", []string{"draft", graph.END},
			func(_ context.Context, s state.State) []string {
				if quality, _ := s["quality"].(int); quality < 3 {
					return []string{"draft"}
				}
				return []string{graph.END}
			}).
		SetEntryPoint("draft")

	compiled, err := g.Compile(graph.WithLogger(logger), graph.WithMaxSteps(10))
	if err != nil {
		log.Fatalf("compile: %v", err)
	}

	stream := compiled.Stream(context.Background(), nil,
		graph.WithStreamModes(graph.StreamValues, graph.StreamMessages))
	defer stream.Close()

	for ev := range stream.Events() {
		switch {
		case ev.Err != nil:
			log.Fatalf("run failed: %v", ev.Err)
		case ev.Mode == graph.StreamMessages:
			fmt.Printf("[token] %s\n", ev.Message.Content)
		case ev.Mode == graph.StreamValues:
			fmt.Printf("[step %d] quality=%v\n", ev.Step, ev.State["quality"])
		}
	}
}
