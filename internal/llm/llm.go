// Package llm defines the chat-completion capability shared by the answer
// generator, the query translator and the summarizer.
package llm

import "context"

// Role of a chat message as understood by completion APIs.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is a single completion request. System is sent as the first
// message when non-empty.
type Request struct {
	System   string
	Messages []Message
}

// All returns the request as a flat message list.
func (r Request) All() []Message {
	out := make([]Message, 0, len(r.Messages)+1)
	if r.System != "" {
		out = append(out, Message{Role: RoleSystem, Content: r.System})
	}
	return append(out, r.Messages...)
}

// Generator produces completions. Stream calls onDelta for every text
// increment in generation order and stops at the first onDelta error, which
// it returns unchanged. Neither method retries.
type Generator interface {
	Complete(ctx context.Context, req Request) (string, error)
	Stream(ctx context.Context, req Request, onDelta func(string) error) error
}
