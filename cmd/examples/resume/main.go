package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3"

	"github.com/avi3tal/flowgraph/pkg/checkpoints/sqlitestore"
	"github.com/avi3tal/flowgraph/pkg/graph"
	"github.com/avi3tal/flowgraph/pkg/state"
)

// Durable execution against SQLite: the first run is interrupted by a
// step limit, a second run resumes the same thread from its latest
// snapshot, and a third replays history from an earlier step.
func main() {
	db, err := sql.Open("sqlite3", "file:flowgraph.db?cache=shared")
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	store, err := sqlitestore.New(db)
	if err != nil {
		log.Fatalf("init store: %v", err)
	}

	schema := state.NewSchema().
		AddField("progress", state.Field{Default: func() any { return 0 }})

	// Restored state comes back from JSON, where numbers are float64.
	progressOf := func(s state.State) int {
		switch v := s["progress"].(type) {
		case int:
			return v
		case float64:
			return int(v)
		}
		return 0
	}

	build := func(maxSteps int) *graph.CompiledGraph {
		g := graph.New("job", graph.WithSchema(schema)).
			AddNode("work", func(_ context.Context, s state.State) (*graph.NodeResult, error) {
				return &graph.NodeResult{Update: state.State{"progress": progressOf(s) + 10}}, nil
			}).
			AddConditionalEdge("work", []string{"work", graph.END},
				func(_ context.Context, s state.State) []string {
					if progressOf(s) < 100 {
						return []string{"work"}
					}
					return []string{graph.END}
				}).
			SetEntryPoint("work")

		compiled, err := g.Compile(
			graph.WithCheckpointer(store),
			graph.WithMaxSteps(maxSteps),
		)
		if err != nil {
			log.Fatalf("compile: %v", err)
		}
		return compiled
	}

	ctx := context.Background()
	const thread = "import-batch-7"

	// First attempt: the step budget expires mid-run, but every
	// completed step is already durable.
	if _, err := build(4).Invoke(ctx, nil, graph.WithThreadID(thread)); err != nil {
		if !errors.Is(err, graph.ErrMaxSteps) {
			log.Fatalf("first run: %v", err)
		}
		fmt.Println("first run interrupted, progress persisted")
	}

	// Second attempt resumes from the latest snapshot and finishes.
	compiled := build(25)
	final, err := compiled.Invoke(ctx, nil, graph.WithThreadID(thread))
	if err != nil {
		log.Fatalf("resume: %v", err)
	}
	fmt.Printf("resumed run finished with progress=%v\n", final["progress"])

	history, err := compiled.StateHistory(ctx, thread)
	if err != nil {
		log.Fatalf("history: %v", err)
	}
	for _, snap := range history {
		fmt.Printf("  step %d: progress=%v frontier=%v\n", snap.Step, snap.State["progress"], snap.Frontier)
	}

	// Time travel: replay from step 2, overwriting the later steps.
	replayed, err := compiled.Invoke(ctx, nil,
		graph.WithThreadID(thread), graph.WithResumeFromStep(2))
	if err != nil {
		log.Fatalf("replay: %v", err)
	}
	fmt.Printf("replay from step 2 finished with progress=%v\n", replayed["progress"])
}
