package llm

import (
	"context"

	"github.com/quorumhq/quorum/types"
)

// GenerateRequest carries one prompt to a model.
type GenerateRequest struct {
	Model        string          `json:"model"`
	SystemPrompt string          `json:"system_prompt,omitempty"`
	Prompt       string          `json:"prompt"`
	History      []types.Message `json:"history,omitempty"`
	Temperature  float32         `json:"temperature,omitempty"`
	MaxTokens    int             `json:"max_tokens,omitempty"`
}

// GenerateResult is the model's reply plus an audit trail of tool calls the
// provider made on the model's behalf (e.g. web search).
type GenerateResult struct {
	Text       string          `json:"text"`
	ToolsUsed  []types.ToolUse `json:"tools_used,omitempty"`
	TokensUsed int             `json:"tokens_used,omitempty"`
}

// Client is the raw model-call primitive. Implementations may fail; callers
// are expected to contain failures per-turn rather than propagate them.
type Client interface {
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, req *GenerateRequest) (*GenerateResult, error)

// Generate implements Client.
func (f ClientFunc) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	return f(ctx, req)
}
