// Package tools is the fixed table of local capabilities the model may call.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	loggerpkg "github.com/minhyannv/agent-loop-go/pkg/logger"
	"github.com/openai/openai-go"
)

// ErrorPrefix starts every failed tool result.
const ErrorPrefix = "Error: "

type tool interface {
	definition() openai.ChatCompletionToolParam
	execute(args json.RawMessage) (string, error)
	name() string
}

// Context carries per-registry dependencies shared by every tool.
type Context struct {
	Verbose bool
	Ctx     context.Context
	Logger  loggerpkg.Logger
}

func (c Context) debug(msg string, obj any) {
	loggerpkg.Debug(c.Verbose, c.Logger, msg, obj)
}

// Registry maps tool names to their schema and executor.
type Registry struct {
	registry map[string]tool
	order    []string
	ctx      Context
	params   []openai.ChatCompletionToolParam
}

// New builds a registry with the built-in tools.
func New(ctx Context) *Registry {
	if ctx.Logger == nil {
		ctx.Logger = loggerpkg.NopLogger{}
	}
	t := &Registry{
		registry: make(map[string]tool),
		ctx:      ctx,
	}

	t.register(&readTool{ctx: ctx})
	return t
}

func (t *Registry) register(toolImpl tool) {
	name := toolImpl.name()
	if _, exists := t.registry[name]; exists {
		panic(fmt.Sprintf("tools: duplicate registration of %q", name))
	}
	t.registry[name] = toolImpl
	t.order = append(t.order, name)
	t.params = append(t.params, toolImpl.definition())
	t.ctx.debug("tool registered", map[string]any{"tool": name})
}

// Definitions returns the tool specs sent with every request, in
// registration order.
func (t *Registry) Definitions() []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, len(t.params))
	copy(out, t.params)
	return out
}

// Names returns the registered tool names in registration order.
func (t *Registry) Names() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Execute runs the named tool. It never fails: unknown names, malformed
// arguments and tool errors all come back as a non-empty "Error: ..." string.
func (t *Registry) Execute(name, argumentsJSON string) string {
	if t.ctx.Ctx != nil {
		if err := t.ctx.Ctx.Err(); err != nil {
			return errorResult(err)
		}
	}

	toolImpl, ok := t.registry[name]
	if !ok {
		t.ctx.debug("unknown tool requested", map[string]any{"tool": name})
		return errorResult(fmt.Errorf("unknown tool: %s", name))
	}

	args, err := checkArguments(argumentsJSON, requiredFields(toolImpl.definition()))
	if err != nil {
		t.ctx.debug("tool arguments rejected", map[string]any{"tool": name, "error": err.Error()})
		return errorResult(fmt.Errorf("invalid arguments for %s: %w", name, err))
	}

	out, err := toolImpl.execute(args)
	if err != nil {
		return errorResult(err)
	}
	return out
}

func errorResult(err error) string {
	msg := err.Error()
	if strings.TrimSpace(msg) == "" {
		msg = "tool failed"
	}
	return ErrorPrefix + msg
}

// checkArguments parses argumentsJSON as an object and verifies the required
// keys are present. An empty string is treated as "{}".
func checkArguments(argumentsJSON string, required []string) (json.RawMessage, error) {
	argumentsJSON = strings.TrimSpace(argumentsJSON)
	if argumentsJSON == "" {
		argumentsJSON = "{}"
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(argumentsJSON), &fields); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	if fields == nil {
		return nil, errors.New("arguments must be a JSON object")
	}
	for _, key := range required {
		v, ok := fields[key]
		if !ok || string(v) == "null" {
			return nil, fmt.Errorf("missing required field %q", key)
		}
	}
	return json.RawMessage(argumentsJSON), nil
}

func requiredFields(def openai.ChatCompletionToolParam) []string {
	required, _ := def.Function.Parameters["required"].([]string)
	return required
}
