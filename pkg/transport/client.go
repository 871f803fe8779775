// Package transport sends chat-completion requests to an OpenAI-compatible
// endpoint and classifies the ways a request can fail.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	loggerpkg "github.com/minhyannv/agent-loop-go/pkg/logger"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// CompletionsPath is appended to the base URL for every request.
const CompletionsPath = "/chat/completions"

// Options configures a Client.
type Options struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Logger     loggerpkg.Logger
	Verbose    bool
}

// Client issues one POST per Send. It never retries.
type Client struct {
	client  openai.Client
	baseURL string
	logger  loggerpkg.Logger
	verbose bool
}

// New builds a Client. BaseURL and APIKey must be non-empty.
func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	apiKey := strings.TrimSpace(opts.APIKey)
	if baseURL == "" {
		return nil, ErrMissingBaseURL
	}
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if opts.Logger == nil {
		opts.Logger = loggerpkg.NopLogger{}
	}

	reqOpts := []option.RequestOption{
		// The SDK joins paths relative to the base, so it needs the trailing slash.
		option.WithBaseURL(baseURL + "/"),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}

	return &Client{
		client:  openai.NewClient(reqOpts...),
		baseURL: baseURL,
		logger:  opts.Logger,
		verbose: opts.Verbose,
	}, nil
}

// URL returns the full completions endpoint.
func (c *Client) URL() string {
	return c.baseURL + CompletionsPath
}

// Send posts params and returns the decoded completion. Non-200 statuses
// surface as *StatusError, undecodable bodies as *ProtocolError, and a
// response without choices as ErrNoChoices.
func (c *Client) Send(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	loggerpkg.Debug(c.verbose, c.logger, "transport: sending request", map[string]any{
		"url":      c.URL(),
		"model":    params.Model,
		"messages": len(params.Messages),
		"tools":    len(params.Tools),
	})

	var raw *http.Response
	completion, err := c.client.Chat.Completions.New(ctx, params, option.WithResponseInto(&raw))
	if err != nil {
		var apiErr *openai.Error
		switch {
		case errors.As(err, &apiErr):
			return nil, &StatusError{StatusCode: apiErr.StatusCode, Detail: strings.TrimSpace(apiErr.Message)}
		case raw != nil && raw.StatusCode != http.StatusOK:
			return nil, &StatusError{StatusCode: raw.StatusCode}
		case raw != nil || isDecodeError(err):
			return nil, &ProtocolError{Err: err}
		default:
			return nil, fmt.Errorf("post %s: %w", c.URL(), err)
		}
	}
	if raw != nil && raw.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: raw.StatusCode}
	}
	if completion == nil || len(completion.Choices) == 0 {
		return nil, ErrNoChoices
	}

	loggerpkg.Debug(c.verbose, c.logger, "transport: response received", map[string]any{
		"status":        http.StatusOK,
		"finish_reason": completion.Choices[0].FinishReason,
		"tool_calls":    len(completion.Choices[0].Message.ToolCalls),
	})
	return completion, nil
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF)
}
