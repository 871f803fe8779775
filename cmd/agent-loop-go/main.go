// Package main runs a single prompt through the agent loop and prints the
// model's final answer.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/minhyannv/agent-loop-go/pkg/agent"
	loggerpkg "github.com/minhyannv/agent-loop-go/pkg/logger"
)

// main is the program entry point.
func main() {
	os.Exit(run(os.Args[1:], dotenvLookup(), os.Stdout, os.Stderr, nil))
}

// run returns the process exit code: 0 on success, 1 on any configuration,
// transport or protocol error.
func run(args []string, lookup envLookup, stdout, stderr io.Writer, httpClient *http.Client) int {
	cli, err := parseCLIConfig(args, lookup, stderr)
	if err != nil {
		if isUsageRequest(err) {
			return 0
		}
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	level := loggerpkg.LevelInfo
	if cli.Config.Verbose {
		level = loggerpkg.LevelDebug
	}
	appLogger := loggerpkg.NewWriterLogger(stderr, loggerpkg.WithMinLevel(level))

	opts := []agent.AgentOption{agent.WithLogger(appLogger)}
	if httpClient != nil {
		opts = append(opts, agent.WithHTTPClient(httpClient))
	}
	loop, err := agent.New(context.Background(), cli.Config, opts...)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	result, err := loop.Run(cli.Prompt)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	_, _ = fmt.Fprint(stdout, result.Content)
	return 0
}
