// Package llm provides the chat-completion client interface and message types
// shared by all provider implementations.
package llm

import (
	"context"

	"mlforge/pkg/tools"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// DefaultMaxTokens bounds completion length when a request does not set one.
const DefaultMaxTokens = 4096

// Message is one turn in a completion request. Assistant messages may carry
// the tool calls they issued; tool messages carry the result for one call.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolCall is a structured tool invocation produced by the model.
type ToolCall struct {
	Parameters map[string]any `json:"parameters"`
	ID         string         `json:"id"`
	Name       string         `json:"name"`
}

// CompletionRequest is a request to generate one completion.
type CompletionRequest struct {
	System      string
	Messages    []Message
	Tools       []tools.ToolDefinition
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// Usage reports token consumption for one completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// CompletionResponse is the model's answer: either final text or tool calls
// the caller must execute and feed back.
type CompletionResponse struct {
	ToolCalls []ToolCall
	Content   string
	Usage     Usage
}

// Client is the provider-independent chat-completion interface.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	GetModelName() string
}

// NewSystemRequest builds a single-turn request against a system prompt,
// used for the cosmetic title/response generations.
func NewSystemRequest(system, input string, temperature, topP float64) CompletionRequest {
	return CompletionRequest{
		System:      system,
		Messages:    []Message{{Role: RoleUser, Content: input}},
		MaxTokens:   DefaultMaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}
}
