package port

import "context"

// ChatRequest is a single system+user exchange with the model.
type ChatRequest struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// LLM represents a language model for text generation.
type LLM interface {
	// Chat returns the model's reply to the request.
	Chat(ctx context.Context, req ChatRequest) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}
