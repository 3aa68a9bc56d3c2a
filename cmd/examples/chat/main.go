package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/avi3tal/flowgraph/pkg/graph"
	"github.com/avi3tal/flowgraph/pkg/state"
)

// A chat-shaped graph on the conversational state schema: the history
// lives under the "messages" field and grows by appending, so every node
// contributes turns without clobbering the transcript.
func main() {
	g := graph.New("chat", graph.WithSchema(state.MessagesSchema())).
		AddNode("respond", func(ctx context.Context, s state.State) (*graph.NodeResult, error) {
			last := lastHumanMessage(state.Messages(s))
			reply := "you said: " + last
			for _, word := range strings.Fields(reply) {
				graph.EmitMessage(ctx, word+" ")
			}
			return &graph.NodeResult{Update: state.AppendMessages(
				llms.TextParts(llms.ChatMessageTypeAI, reply),
			)}, nil
		}).
		AddEdge("respond", graph.END).
		SetEntryPoint("respond")

	compiled, err := g.Compile()
	if err != nil {
		log.Fatalf("compile: %v", err)
	}

	input := state.WithMessages(llms.TextParts(llms.ChatMessageTypeHuman, "hello graph"))

	stream := compiled.Stream(context.Background(), input,
		graph.WithStreamModes(graph.StreamMessages, graph.StreamValues))
	defer stream.Close()

	var transcript []llms.MessageContent
	for ev := range stream.Events() {
		switch {
		case ev.Err != nil:
			log.Fatalf("run failed: %v", ev.Err)
		case ev.Mode == graph.StreamMessages:
			fmt.Print(ev.Message.Content)
		case ev.Mode == graph.StreamValues:
			transcript = state.Messages(ev.State)
		}
	}
	fmt.Println()

	for _, msg := range transcript {
		fmt.Printf("%s: %s\n", msg.Role, textOf(msg))
	}
}

func lastHumanMessage(msgs []llms.MessageContent) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == llms.ChatMessageTypeHuman {
			return textOf(msgs[i])
		}
	}
	return ""
}

func textOf(msg llms.MessageContent) string {
	var b strings.Builder
	for _, part := range msg.Parts {
		if text, ok := part.(llms.TextContent); ok {
			b.WriteString(text.Text)
		}
	}
	return b.String()
}
