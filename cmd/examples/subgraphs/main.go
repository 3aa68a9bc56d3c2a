package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/avi3tal/flowgraph/pkg/checkpoints"
	"github.com/avi3tal/flowgraph/pkg/checkpoints/redisstore"
	"github.com/avi3tal/flowgraph/pkg/graph"
	"github.com/avi3tal/flowgraph/pkg/state"
)

// A research pipeline where the summarize stage is itself a compiled
// graph, embedded as a node. Set REDIS_ADDR (directly or via .env) to
// persist checkpoints in Redis; otherwise an in-memory store is used.
func main() {
	_ = godotenv.Load()

	var store checkpoints.Store = checkpoints.NewMemoryStore()
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		defer client.Close()
		store = redisstore.New(client, redisstore.WithKeyPrefix("research"))
	}

	child := buildSummarizer()

	parent := graph.New("research").
		AddNode("collect", func(_ context.Context, _ state.State) (*graph.NodeResult, error) {
			return &graph.NodeResult{Update: state.State{
				"documents": []string{
					"graphs compose when state shapes are translated at the boundary",
					"each nested run owns a derived checkpoint lineage",
				},
			}}, nil
		}).
		AddSubgraph("summarize", child,
			func(parent state.State) (state.State, error) {
				docs, _ := parent["documents"].([]string)
				return state.State{"text": strings.Join(docs, ". ")}, nil
			},
			func(child state.State) (state.State, error) {
				return state.State{"summary": child["short"]}, nil
			}).
		AddEdge("collect", "summarize").
		AddEdge("summarize", graph.END).
		SetEntryPoint("collect")

	compiled, err := parent.Compile(graph.WithCheckpointer(store))
	if err != nil {
		log.Fatalf("compile: %v", err)
	}

	ctx := context.Background()
	final, err := compiled.Invoke(ctx, nil, graph.WithThreadID("session-1"))
	if err != nil {
		log.Fatalf("invoke: %v", err)
	}
	fmt.Printf("summary: %v\n", final["summary"])

	// The nested run persisted under a thread id derived from the
	// parent's.
	childHistory, err := store.List(ctx, "session-1/summarize")
	if err != nil {
		log.Fatalf("child history: %v", err)
	}
	fmt.Printf("nested graph recorded %d steps\n", len(childHistory))
}

func buildSummarizer() *graph.CompiledGraph {
	g := graph.New("summarizer").
		AddNode("shorten", func(_ context.Context, s state.State) (*graph.NodeResult, error) {
			text, _ := s["text"].(string)
			if len(text) > 60 {
				text = text[:60] + "..."
			}
			return &graph.NodeResult{Update: state.State{"short": text}}, nil
		}).
		AddEdge("shorten", graph.END).
		SetEntryPoint("shorten")

	compiled, err := g.Compile()
	if err != nil {
		log.Fatalf("compile summarizer: %v", err)
	}
	return compiled
}
