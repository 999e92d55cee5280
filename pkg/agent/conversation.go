package agent

import (
	"strings"

	"mlforge/pkg/llm"
	"mlforge/pkg/state"
)

// Conversation is the message transcript shared by every agent in a run.
// Agents differ only in the system prompt and tools they bring to a turn.
type Conversation struct {
	messages []llm.Message
}

// NewConversation seeds a conversation with stored history followed by the
// current task prompt.
func NewConversation(history []state.HistoryMessage, prompt string) *Conversation {
	conv := &Conversation{}
	for _, h := range history {
		role := llm.RoleUser
		if strings.EqualFold(h.Role, "assistant") {
			role = llm.RoleAssistant
		}
		conv.messages = append(conv.messages, llm.Message{Role: role, Content: h.Content})
	}
	conv.messages = append(conv.messages, llm.Message{Role: llm.RoleUser, Content: prompt})
	return conv
}

// Messages returns the transcript for a completion request.
func (c *Conversation) Messages() []llm.Message {
	return c.messages
}

// AddAssistant appends an assistant response, with any tool calls it made.
func (c *Conversation) AddAssistant(content string, toolCalls []llm.ToolCall) {
	c.messages = append(c.messages, llm.Message{
		Role:      llm.RoleAssistant,
		Content:   content,
		ToolCalls: toolCalls,
	})
}

// AddToolResult appends the result of one tool call.
func (c *Conversation) AddToolResult(toolCallID, content string) {
	c.messages = append(c.messages, llm.Message{
		Role:       llm.RoleTool,
		Content:    content,
		ToolCallID: toolCallID,
	})
}

// LastAssistantText returns the text of the most recent assistant message.
func (c *Conversation) LastAssistantText() string {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == llm.RoleAssistant && c.messages[i].Content != "" {
			return c.messages[i].Content
		}
	}
	return ""
}
