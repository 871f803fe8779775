package conversation

import (
	"fmt"

	"github.com/openai/openai-go"
)

// Conversation is an append-only message sequence that always starts with a
// single user message. It is not safe for concurrent use.
type Conversation struct {
	messages []Message
}

// New starts a conversation with the given prompt.
func New(prompt string) *Conversation {
	return &Conversation{messages: []Message{UserMessage{Content: prompt}}}
}

// AppendAssistant records one model turn.
func (c *Conversation) AppendAssistant(m AssistantMessage) {
	m.ToolCalls = append([]ToolCall(nil), m.ToolCalls...)
	c.messages = append(c.messages, m)
}

// AppendToolResult records the result of a tool call. id must name a call of
// the latest assistant message that has not been answered yet.
func (c *Conversation) AppendToolResult(id, content string) error {
	answered := map[string]bool{}
	for i := len(c.messages) - 1; i >= 0; i-- {
		switch m := c.messages[i].(type) {
		case ToolMessage:
			answered[m.ToolCallID] = true
		case AssistantMessage:
			for _, call := range m.ToolCalls {
				if call.ID != id {
					continue
				}
				if answered[id] {
					return fmt.Errorf("tool call %q already has a result", id)
				}
				c.messages = append(c.messages, ToolMessage{ToolCallID: id, Content: content})
				return nil
			}
			return fmt.Errorf("tool call %q not found in preceding assistant message", id)
		default:
			return fmt.Errorf("tool call %q has no preceding assistant message", id)
		}
	}
	return fmt.Errorf("tool call %q has no preceding assistant message", id)
}

// Len returns the number of messages.
func (c *Conversation) Len() int { return len(c.messages) }

// Messages returns a copy of the history.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// LastAssistant returns the most recent assistant message.
func (c *Conversation) LastAssistant() (AssistantMessage, bool) {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if m, ok := c.messages[i].(AssistantMessage); ok {
			return m, true
		}
	}
	return AssistantMessage{}, false
}

// Params converts the history into request messages.
func (c *Conversation) Params() []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(c.messages))
	for _, m := range c.messages {
		out = append(out, m.toParam())
	}
	return out
}
