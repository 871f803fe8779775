// Package conversation holds the ordered, append-only message history that is
// resent on every completion request.
package conversation

import "github.com/openai/openai-go"

// Role is the role for a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// FinishReasonStop marks a natural completion.
const FinishReasonStop = "stop"

// Message is one of UserMessage, AssistantMessage or ToolMessage.
type Message interface {
	Role() Role
	toParam() openai.ChatCompletionMessageParamUnion
}

// ToolCall is a model request to run a named tool with JSON arguments.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// UserMessage carries the prompt.
type UserMessage struct {
	Content string
}

// AssistantMessage is one model turn. Content is empty when the model only
// requested tools.
type AssistantMessage struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
}

// ToolMessage carries the result of a single tool call.
type ToolMessage struct {
	ToolCallID string
	Content    string
}

func (UserMessage) Role() Role      { return RoleUser }
func (AssistantMessage) Role() Role { return RoleAssistant }
func (ToolMessage) Role() Role      { return RoleTool }

// HasToolCalls reports whether the model asked for tools in this turn.
func (m AssistantMessage) HasToolCalls() bool { return len(m.ToolCalls) > 0 }

// Stopped reports whether the turn ended with finish_reason "stop".
func (m AssistantMessage) Stopped() bool { return m.FinishReason == FinishReasonStop }

func (m UserMessage) toParam() openai.ChatCompletionMessageParamUnion {
	return openai.UserMessage(m.Content)
}

func (m AssistantMessage) toParam() openai.ChatCompletionMessageParamUnion {
	p := openai.ChatCompletionAssistantMessageParam{}
	// Tool-call turns usually have null content; omit it instead of sending "".
	if m.Content != "" || len(m.ToolCalls) == 0 {
		p.Content = openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(m.Content)}
	}
	for _, call := range m.ToolCalls {
		p.ToolCalls = append(p.ToolCalls, openai.ChatCompletionMessageToolCallParam{
			ID: call.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      call.Name,
				Arguments: call.Arguments,
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &p}
}

func (m ToolMessage) toParam() openai.ChatCompletionMessageParamUnion {
	return openai.ToolMessage(m.Content, m.ToolCallID)
}

// FromCompletion converts the first choice of a completion into an
// AssistantMessage.
func FromCompletion(choice openai.ChatCompletionChoice) AssistantMessage {
	msg := AssistantMessage{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
	}
	for _, call := range choice.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return msg
}
