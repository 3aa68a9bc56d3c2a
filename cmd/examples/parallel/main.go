package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/avi3tal/flowgraph/pkg/graph"
	"github.com/avi3tal/flowgraph/pkg/state"
)

// Fan-out/fan-in: three lookups run in the same super-step and their
// results merge through an Append reducer before the report node runs.
func main() {
	schema := state.NewSchema().
		AddField("findings", state.Field{
			Reducer: state.Append,
			Default: func() any { return []string{} },
		})

	lookup := func(source string, latency time.Duration) graph.NodeFunc {
		return func(ctx context.Context, _ state.State) (*graph.NodeResult, error) {
			select {
			case <-time.After(latency):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return &graph.NodeResult{Update: state.State{
				"findings": []string{"result from " + source},
			}}, nil
		}
	}

	g := graph.New("fanout", graph.WithSchema(schema)).
		AddNode("dispatch", func(_ context.Context, _ state.State) (*graph.NodeResult, error) {
			return &graph.NodeResult{}, nil
		}).
		AddNode("web", lookup("web", 30*time.Millisecond)).
		AddNode("wiki", lookup("wiki", 10*time.Millisecond)).
		AddNode("news", lookup("news", 20*time.Millisecond)).
		AddNode("report", func(_ context.Context, s state.State) (*graph.NodeResult, error) {
			findings, _ := s["findings"].([]string)
			return &graph.NodeResult{Update: state.State{
				"summary": fmt.Sprintf("%d findings collected", len(findings)),
			}}, nil
		}).
		AddEdge("dispatch", "web").
		AddEdge("dispatch", "wiki").
		AddEdge("dispatch", "news").
		AddEdge("web", "report").
		AddEdge("wiki", "report").
		AddEdge("news", "report").
		AddEdge("report", graph.END).
		SetEntryPoint("dispatch")

	compiled, err := g.Compile()
	if err != nil {
		log.Fatalf("compile: %v", err)
	}

	final, err := compiled.Invoke(context.Background(), nil)
	if err != nil {
		log.Fatalf("invoke: %v", err)
	}

	// The findings order is deterministic: node registration order, not
	// completion order.
	for _, f := range final["findings"].([]string) {
		fmt.Println(f)
	}
	fmt.Println(final["summary"])
}
