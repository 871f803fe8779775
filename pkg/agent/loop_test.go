package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"sync"
	"testing"

	configpkg "github.com/minhyannv/agent-loop-go/pkg/config"
	"github.com/minhyannv/agent-loop-go/pkg/conversation"
	"github.com/minhyannv/agent-loop-go/pkg/tools"
	"github.com/minhyannv/agent-loop-go/pkg/transport"
	"github.com/openai/openai-go"
)

// scriptedCompleter replays canned completion bodies in order.
type scriptedCompleter struct {
	t         *testing.T
	responses []string
	requests  []openai.ChatCompletionNewParams
}

func (s *scriptedCompleter) Send(_ context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	s.requests = append(s.requests, params)
	if len(s.requests) > len(s.responses) {
		s.t.Fatalf("unexpected request #%d", len(s.requests))
	}
	var completion openai.ChatCompletion
	if err := json.Unmarshal([]byte(s.responses[len(s.requests)-1]), &completion); err != nil {
		s.t.Fatalf("bad canned response: %v", err)
	}
	return &completion, nil
}

func stopResponse(content string) string {
	return fmt.Sprintf(`{"choices":[{"index":0,"message":{"role":"assistant","content":%s},"finish_reason":"stop"}]}`, strconv.Quote(content))
}

func toolCallResponse(finishReason string, calls ...[2]string) string {
	var parts []string
	for _, c := range calls {
		args, _ := json.Marshal(map[string]string{"file_path": c[1]})
		parts = append(parts, fmt.Sprintf(`{"id":%q,"type":"function","function":{"name":"Read","arguments":%s}}`, c[0], strconv.Quote(string(args))))
	}
	joined := ""
	for i, p := range parts {
		if i > 0 {
			joined += ","
		}
		joined += p
	}
	return fmt.Sprintf(`{"choices":[{"index":0,"message":{"role":"assistant","content":null,"tool_calls":[%s]},"finish_reason":%q}]}`, joined, finishReason)
}

func testConfig() configpkg.Config {
	cfg := configpkg.DefaultConfig()
	cfg.APIKey = "test-key"
	return cfg
}

func newTestLoop(t *testing.T, c Completer) *AgentLoop {
	t.Helper()
	loop, err := New(context.Background(), testConfig(),
		WithCompleter(c),
		WithRunIDGenerator(func() string { return "run-1" }),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return loop
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.txt")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func roles(msgs []conversation.Message) []conversation.Role {
	out := make([]conversation.Role, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Role())
	}
	return out
}

func TestRunStopWithoutToolsIsSingleRequest(t *testing.T) {
	fake := &scriptedCompleter{t: t, responses: []string{stopResponse("  Hello, world!\n")}}

	result, err := newTestLoop(t, fake).Run("say hi")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(fake.requests) != 1 || result.Turns != 1 {
		t.Fatalf("expected one request, got %d (turns=%d)", len(fake.requests), result.Turns)
	}
	if result.Content != "  Hello, world!\n" {
		t.Fatalf("content must be verbatim, got %q", result.Content)
	}
	if got := roles(result.Messages); !reflect.DeepEqual(got, []conversation.Role{"user", "assistant"}) {
		t.Fatalf("unexpected roles: %v", got)
	}
	if len(fake.requests[0].Tools) != 1 || fake.requests[0].Tools[0].Function.Name != tools.ReadToolName {
		t.Fatalf("expected Read tool in request, got %#v", fake.requests[0].Tools)
	}
	if fake.requests[0].Model != openai.ChatModel(configpkg.DefaultModel) {
		t.Fatalf("unexpected model: %q", fake.requests[0].Model)
	}
}

func TestRunToolCallThenStop(t *testing.T) {
	path := writeTempFile(t, "file body")
	fake := &scriptedCompleter{t: t, responses: []string{
		toolCallResponse("tool_calls", [2]string{"call_1", path}),
		stopResponse("The file says: file body"),
	}}

	result, err := newTestLoop(t, fake).Run("what is in the file?")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(fake.requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(fake.requests))
	}
	want := []conversation.Message{
		conversation.UserMessage{Content: "what is in the file?"},
		conversation.AssistantMessage{
			ToolCalls:    []conversation.ToolCall{{ID: "call_1", Name: "Read", Arguments: `{"file_path":"` + path + `"}`}},
			FinishReason: "tool_calls",
		},
		conversation.ToolMessage{ToolCallID: "call_1", Content: "file body"},
		conversation.AssistantMessage{Content: "The file says: file body", FinishReason: "stop"},
	}
	if !reflect.DeepEqual(result.Messages, want) {
		t.Fatalf("unexpected conversation:\n got %#v\nwant %#v", result.Messages, want)
	}
	if result.Content != "The file says: file body" {
		t.Fatalf("unexpected content: %q", result.Content)
	}
	if n := len(fake.requests[1].Messages); n != 3 {
		t.Fatalf("second request should resend 3 messages, got %d", n)
	}
}

func TestRunMissingFileKeepsLooping(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.txt")
	fake := &scriptedCompleter{t: t, responses: []string{
		toolCallResponse("tool_calls", [2]string{"call_1", missing}),
		stopResponse("could not read it"),
	}}

	result, err := newTestLoop(t, fake).Run("read nope")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	toolMsg, ok := result.Messages[2].(conversation.ToolMessage)
	if !ok {
		t.Fatalf("expected tool message, got %#v", result.Messages[2])
	}
	if toolMsg.Content != "Error: Could not open file "+missing {
		t.Fatalf("unexpected tool result: %q", toolMsg.Content)
	}
	if result.Content != "could not read it" {
		t.Fatalf("unexpected content: %q", result.Content)
	}
}

func TestRunToolBatchPreservesOrder(t *testing.T) {
	a := writeTempFile(t, "A")
	b := writeTempFile(t, "B")
	missing := filepath.Join(t.TempDir(), "missing")
	fake := &scriptedCompleter{t: t, responses: []string{
		toolCallResponse("tool_calls",
			[2]string{"call_b", b},
			[2]string{"call_x", missing},
			[2]string{"call_a", a},
		),
		stopResponse("done"),
	}}

	result, err := newTestLoop(t, fake).Run("read all")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	wantIDs := []string{"call_b", "call_x", "call_a"}
	wantContent := []string{"B", "Error: Could not open file " + missing, "A"}
	for i := range wantIDs {
		msg, ok := result.Messages[2+i].(conversation.ToolMessage)
		if !ok {
			t.Fatalf("message %d is not a tool message: %#v", 2+i, result.Messages[2+i])
		}
		if msg.ToolCallID != wantIDs[i] || msg.Content != wantContent[i] {
			t.Fatalf("tool message %d = %#v, want id=%s content=%q", i, msg, wantIDs[i], wantContent[i])
		}
	}
	if len(result.Messages) != 6 {
		t.Fatalf("expected 6 messages, got %d", len(result.Messages))
	}
}

func TestRunToolCallsWithStopEndsWithoutAnotherTurn(t *testing.T) {
	path := writeTempFile(t, "x")
	fake := &scriptedCompleter{t: t, responses: []string{
		toolCallResponse("stop", [2]string{"call_1", path}),
	}}

	result, err := newTestLoop(t, fake).Run("p")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(fake.requests) != 1 {
		t.Fatalf("expected one request, got %d", len(fake.requests))
	}
	if got := roles(result.Messages); !reflect.DeepEqual(got, []conversation.Role{"user", "assistant", "tool"}) {
		t.Fatalf("unexpected roles: %v", got)
	}
	if result.Content != "" {
		t.Fatalf("expected the null content of the final assistant message, got %q", result.Content)
	}
}

func TestRunContinuesWhenNotStopped(t *testing.T) {
	fake := &scriptedCompleter{t: t, responses: []string{
		`{"choices":[{"index":0,"message":{"role":"assistant","content":"partial"},"finish_reason":"length"}]}`,
		stopResponse("complete"),
	}}

	result, err := newTestLoop(t, fake).Run("p")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Turns != 2 || result.Content != "complete" {
		t.Fatalf("unexpected result: turns=%d content=%q", result.Turns, result.Content)
	}
	if got := roles(result.Messages); !reflect.DeepEqual(got, []conversation.Role{"user", "assistant", "assistant"}) {
		t.Fatalf("unexpected roles: %v", got)
	}
}

func TestRunMaxTurnsGuard(t *testing.T) {
	never := `{"choices":[{"index":0,"message":{"role":"assistant","content":"..."},"finish_reason":"length"}]}`
	fake := &scriptedCompleter{t: t, responses: []string{never, never, never}}
	cfg := testConfig()
	cfg.MaxTurns = 3

	loop, err := New(context.Background(), cfg, WithCompleter(fake))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := loop.Run("p")
	if !errors.Is(err, ErrMaxTurns) {
		t.Fatalf("expected ErrMaxTurns, got %v", err)
	}
	if len(fake.requests) != 3 || result.Content != "" {
		t.Fatalf("unexpected result: requests=%d content=%q", len(fake.requests), result.Content)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	path := writeTempFile(t, "same")
	responses := []string{
		toolCallResponse("tool_calls", [2]string{"call_1", path}),
		stopResponse("ok"),
	}

	loop := newTestLoop(t, &scriptedCompleter{t: t, responses: responses})
	first, err := loop.Run("p")
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}

	loop.client = &scriptedCompleter{t: t, responses: responses}
	second, err := loop.Run("p")
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("runs differ:\n first %#v\nsecond %#v", first, second)
	}
}

func TestRunRejectsEmptyPrompt(t *testing.T) {
	fake := &scriptedCompleter{t: t}
	_, err := newTestLoop(t, fake).Run("   ")
	if !errors.Is(err, configpkg.ErrEmptyPrompt) {
		t.Fatalf("expected ErrEmptyPrompt, got %v", err)
	}
	if len(fake.requests) != 0 {
		t.Fatal("no request may be sent for an empty prompt")
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(context.Background(), configpkg.DefaultConfig())
	if !errors.Is(err, configpkg.ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestNextState(t *testing.T) {
	tests := []struct {
		name string
		msg  conversation.AssistantMessage
		want State
	}{
		{name: "tool calls", msg: conversation.AssistantMessage{ToolCalls: []conversation.ToolCall{{ID: "1"}}, FinishReason: "tool_calls"}, want: StateHandlingTools},
		{name: "tool calls with stop", msg: conversation.AssistantMessage{ToolCalls: []conversation.ToolCall{{ID: "1"}}, FinishReason: "stop"}, want: StateHandlingTools},
		{name: "stop", msg: conversation.AssistantMessage{Content: "hi", FinishReason: "stop"}, want: StateDone},
		{name: "length", msg: conversation.AssistantMessage{Content: "hi", FinishReason: "length"}, want: StateAwaitingResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextState(tt.msg); got != tt.want {
				t.Fatalf("nextState() = %v, want %v", got, tt.want)
			}
		})
	}
}

// httpScript serves canned bodies and records decoded request bodies.
type httpScript struct {
	mu       sync.Mutex
	status   []int
	bodies   []string
	requests []map[string]any
}

func (h *httpScript) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	raw, _ := io.ReadAll(r.Body)
	var req map[string]any
	_ = json.Unmarshal(raw, &req)
	h.requests = append(h.requests, req)

	i := len(h.requests) - 1
	if r.URL.Path != transport.CompletionsPath || i >= len(h.bodies) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if i < len(h.status) && h.status[i] != 0 {
		w.WriteHeader(h.status[i])
	}
	_, _ = io.WriteString(w, h.bodies[i])
}

func newHTTPLoop(t *testing.T, srv *httptest.Server) *AgentLoop {
	t.Helper()
	cfg := testConfig()
	cfg.BaseURL = srv.URL
	loop, err := New(context.Background(), cfg, WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return loop
}

func TestRunOverHTTPRoundTripsToolResult(t *testing.T) {
	path := writeTempFile(t, "over the wire")
	script := &httpScript{bodies: []string{
		toolCallResponse("tool_calls", [2]string{"call_7", path}),
		stopResponse("final answer"),
	}}
	srv := httptest.NewServer(script)
	defer srv.Close()

	result, err := newHTTPLoop(t, srv).Run("read it")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Content != "final answer" {
		t.Fatalf("unexpected content: %q", result.Content)
	}
	if len(script.requests) != 2 {
		t.Fatalf("expected 2 HTTP requests, got %d", len(script.requests))
	}

	msgs, ok := script.requests[1]["messages"].([]any)
	if !ok || len(msgs) != 3 {
		t.Fatalf("unexpected messages in second request: %#v", script.requests[1]["messages"])
	}
	toolMsg := msgs[2].(map[string]any)
	if toolMsg["role"] != "tool" || toolMsg["tool_call_id"] != "call_7" || toolMsg["content"] != "over the wire" {
		t.Fatalf("unexpected tool message on the wire: %#v", toolMsg)
	}
	toolsList, ok := script.requests[0]["tools"].([]any)
	if !ok || len(toolsList) != 1 {
		t.Fatalf("expected tools in request: %#v", script.requests[0]["tools"])
	}
}

func TestRunOverHTTPNon200Aborts(t *testing.T) {
	script := &httpScript{
		status: []int{http.StatusUnauthorized},
		bodies: []string{`{"error":{"message":"bad key"}}`, stopResponse("never")},
	}
	srv := httptest.NewServer(script)
	defer srv.Close()

	result, err := newHTTPLoop(t, srv).Run("p")
	var statusErr *transport.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 StatusError, got %v", err)
	}
	if len(script.requests) != 1 {
		t.Fatalf("expected loop to abort after 1 request, got %d", len(script.requests))
	}
	if result.Content != "" {
		t.Fatalf("expected no assistant output, got %q", result.Content)
	}
}

func TestRunOverHTTPNoChoices(t *testing.T) {
	script := &httpScript{bodies: []string{`{"choices":[]}`}}
	srv := httptest.NewServer(script)
	defer srv.Close()

	_, err := newHTTPLoop(t, srv).Run("p")
	if !errors.Is(err, transport.ErrNoChoices) {
		t.Fatalf("expected ErrNoChoices, got %v", err)
	}
}
