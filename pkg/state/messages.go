package state

import (
	"github.com/tmc/langchaingo/llms"
)

// MessagesKey is the conventional field name for conversation history.
const MessagesKey = "messages"

// MessagesSchema returns the most common state shape for LLM workflows:
// a single "messages" field holding []llms.MessageContent that grows by
// appending, so parallel nodes can each contribute messages in one step.
func MessagesSchema() *Schema {
	return NewSchema().AddField(MessagesKey, Field{
		Reducer: Append,
		Default: func() any { return []llms.MessageContent{} },
	})
}

// WithMessages builds an input state carrying the given messages.
func WithMessages(msgs ...llms.MessageContent) State {
	return State{MessagesKey: msgs}
}

// AppendMessages builds a partial update that appends messages to the
// conversation when merged through MessagesSchema.
func AppendMessages(msgs ...llms.MessageContent) State {
	return State{MessagesKey: msgs}
}

// Messages extracts the conversation history from a state. Returns nil
// when the field is absent or holds a different type.
func Messages(s State) []llms.MessageContent {
	msgs, _ := s[MessagesKey].([]llms.MessageContent)
	return msgs
}
