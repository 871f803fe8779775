package agent

import (
	"net/http"

	loggerpkg "github.com/minhyannv/agent-loop-go/pkg/logger"
)

// AgentOption configures optional runtime dependencies for AgentLoop.
type AgentOption func(*agentDeps)

type agentDeps struct {
	logger     loggerpkg.Logger
	completer  Completer
	httpClient *http.Client
	newRunID   func() string
}

// WithLogger injects a logger dependency.
func WithLogger(l loggerpkg.Logger) AgentOption {
	return func(d *agentDeps) {
		d.logger = l
	}
}

// WithCompleter replaces the HTTP transport entirely.
func WithCompleter(c Completer) AgentOption {
	return func(d *agentDeps) {
		d.completer = c
	}
}

// WithHTTPClient sets the HTTP client used by the default transport.
func WithHTTPClient(c *http.Client) AgentOption {
	return func(d *agentDeps) {
		d.httpClient = c
	}
}

// WithRunIDGenerator overrides how run IDs are minted.
func WithRunIDGenerator(fn func() string) AgentOption {
	return func(d *agentDeps) {
		d.newRunID = fn
	}
}
