// Package agent drives the request / tool-execution cycle until the model
// finishes.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	configpkg "github.com/minhyannv/agent-loop-go/pkg/config"
	"github.com/minhyannv/agent-loop-go/pkg/conversation"
	loggerpkg "github.com/minhyannv/agent-loop-go/pkg/logger"
	"github.com/minhyannv/agent-loop-go/pkg/tools"
	"github.com/minhyannv/agent-loop-go/pkg/transport"
	"github.com/openai/openai-go"
)

// ErrMaxTurns is returned when the model keeps going past Config.MaxTurns.
var ErrMaxTurns = errors.New("max turns reached before the model finished")

// Completer sends one chat-completion request. *transport.Client implements it.
type Completer interface {
	Send(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// State is a step of the loop's state machine.
type State int

const (
	StateAwaitingResponse State = iota
	StateHandlingTools
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAwaitingResponse:
		return "AWAITING_RESPONSE"
	case StateHandlingTools:
		return "HANDLING_TOOLS"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Result describes a finished run.
type Result struct {
	// Content is the content of the final assistant message.
	Content  string
	Messages []conversation.Message
	// Turns counts completion requests sent.
	Turns int
	RunID string
}

// AgentLoop holds agent runtime dependencies. Each Run starts from a fresh
// conversation, so runs do not share state.
type AgentLoop struct {
	config   configpkg.Config
	client   Completer
	tools    *tools.Registry
	newRunID func() string

	ctx     context.Context
	logger  loggerpkg.Logger
	verbose bool
}

// New initializes an AgentLoop with the provided context, config, and dependencies.
func New(ctx context.Context, cfg configpkg.Config, opts ...AgentOption) (*AgentLoop, error) {
	cfg = configpkg.Normalize(cfg)
	deps := agentDeps{logger: loggerpkg.NopLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&deps)
		}
	}
	if deps.logger == nil {
		deps.logger = loggerpkg.NopLogger{}
	}
	if deps.newRunID == nil {
		deps.newRunID = func() string { return uuid.New().String() }
	}
	if ctx == nil {
		ctx = context.Background()
	}

	loggerpkg.Debug(cfg.Verbose, deps.logger, "agent_loop init", cfg.LogFields())
	if err := configpkg.Validate(cfg); err != nil {
		return nil, err
	}

	client := deps.completer
	if client == nil {
		tc, err := transport.New(transport.Options{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			HTTPClient: deps.httpClient,
			Logger:     deps.logger,
			Verbose:    cfg.Verbose,
		})
		if err != nil {
			return nil, fmt.Errorf("create transport: %w", err)
		}
		client = tc
	}

	registry := tools.New(tools.Context{
		Verbose: cfg.Verbose,
		Ctx:     ctx,
		Logger:  deps.logger,
	})
	loggerpkg.Debug(cfg.Verbose, deps.logger, "tools registered", map[string]any{
		"tools": registry.Names(),
	})

	return &AgentLoop{
		config:   cfg,
		client:   client,
		tools:    registry,
		newRunID: deps.newRunID,

		ctx:     ctx,
		logger:  deps.logger,
		verbose: cfg.Verbose,
	}, nil
}

// Run sends prompt to the model, executes requested tools and feeds their
// results back until the model stops. On failure the returned Result still
// carries the conversation so far, but no Content.
func (a *AgentLoop) Run(prompt string) (Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return Result{}, configpkg.ErrEmptyPrompt
	}

	runID := a.newRunID()
	log := loggerpkg.With(a.logger, loggerpkg.Fields{"run_id": runID})
	conv := conversation.New(prompt)

	var (
		state   = StateAwaitingResponse
		turns   int
		current conversation.AssistantMessage
		runErr  error
	)
	for {
		loggerpkg.Debug(a.verbose, log, "state", map[string]any{"state": state.String(), "turn": turns})

		switch state {
		case StateAwaitingResponse:
			if turns >= a.config.MaxTurns {
				runErr = fmt.Errorf("%w (%d)", ErrMaxTurns, a.config.MaxTurns)
				state = StateFailed
				continue
			}
			turns++
			msg, err := a.runOnce(conv)
			if err != nil {
				runErr = err
				state = StateFailed
				continue
			}
			conv.AppendAssistant(msg)
			current = msg
			state = nextState(msg)

		case StateHandlingTools:
			if err := a.appendToolResponses(conv, current.ToolCalls, log); err != nil {
				runErr = err
				state = StateFailed
				continue
			}
			// A tool batch that arrived with "stop" ends the run without another turn.
			if current.Stopped() {
				state = StateDone
			} else {
				state = StateAwaitingResponse
			}

		case StateDone:
			final, _ := conv.LastAssistant()
			loggerpkg.Info(log, "run finished", map[string]any{
				"turns":    turns,
				"messages": conv.Len(),
			})
			return Result{
				Content:  final.Content,
				Messages: conv.Messages(),
				Turns:    turns,
				RunID:    runID,
			}, nil

		case StateFailed:
			loggerpkg.Error(log, "run failed", map[string]any{
				"turns": turns,
				"error": runErr.Error(),
			})
			return Result{
				Messages: conv.Messages(),
				Turns:    turns,
				RunID:    runID,
			}, runErr
		}
	}
}

// nextState picks the transition out of AWAITING_RESPONSE for a freshly
// appended assistant message.
func nextState(msg conversation.AssistantMessage) State {
	switch {
	case msg.HasToolCalls():
		return StateHandlingTools
	case msg.Stopped():
		return StateDone
	default:
		return StateAwaitingResponse
	}
}

// runOnce performs one model completion request.
func (a *AgentLoop) runOnce(conv *conversation.Conversation) (conversation.AssistantMessage, error) {
	completion, err := a.client.Send(a.ctx, a.newChatParams(conv))
	if err != nil {
		return conversation.AssistantMessage{}, err
	}
	if completion == nil || len(completion.Choices) == 0 {
		return conversation.AssistantMessage{}, transport.ErrNoChoices
	}
	return conversation.FromCompletion(completion.Choices[0]), nil
}

func (a *AgentLoop) newChatParams(conv *conversation.Conversation) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(a.config.Model),
		Messages: conv.Params(),
		Tools:    a.tools.Definitions(),
	}
}

func (a *AgentLoop) appendToolResponses(
	conv *conversation.Conversation,
	calls []conversation.ToolCall,
	log loggerpkg.Logger,
) error {
	for _, call := range calls {
		output := a.tools.Execute(call.Name, call.Arguments)
		loggerpkg.Debug(a.verbose, log, "tool executed", map[string]any{
			"tool":         call.Name,
			"tool_call_id": call.ID,
			"failed":       strings.HasPrefix(output, tools.ErrorPrefix),
			"bytes":        len(output),
		})
		if err := conv.AppendToolResult(call.ID, output); err != nil {
			return &transport.ProtocolError{Err: err}
		}
	}
	return nil
}
