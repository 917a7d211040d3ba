// Package llm provides the text-completion collaborator: a minimal client
// for OpenAI-compatible chat-completion APIs such as Groq.
package llm

import "context"

// Completer produces a reply for a single prompt. Implementations must be
// safe for concurrent use.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Message is one turn of a chat-completion conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
