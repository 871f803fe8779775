package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	configpkg "github.com/minhyannv/agent-loop-go/pkg/config"
)

const (
	envAPIKey  = "OPENROUTER_API_KEY"
	envBaseURL = "OPENROUTER_BASE_URL"
	envModel   = "OPENROUTER_MODEL"
)

// cliConfig is everything the process boundary hands to the agent loop.
type cliConfig struct {
	Prompt string
	Config configpkg.Config
}

// envLookup resolves an environment variable.
type envLookup func(key string) (string, bool)

// dotenvLookup prefers the real environment and falls back to values read
// from .env without exporting them into the process.
func dotenvLookup(filenames ...string) envLookup {
	fromFile, err := godotenv.Read(filenames...)
	if err != nil {
		fromFile = nil
	}
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fromFile[key]
		return v, ok
	}
}

// parseCLIConfig loads flags, the optional YAML file and env into runtime
// config. Precedence is defaults < file < env < flags.
func parseCLIConfig(args []string, lookup envLookup, usage io.Writer) (cliConfig, error) {
	fs := flag.NewFlagSet("agent-loop-go", flag.ContinueOnError)
	if usage != nil {
		fs.SetOutput(usage)
	}
	prompt := fs.String("p", "", "Prompt to send to the model")
	configPath := fs.String("config", "", "Optional YAML config file (base_url, model, max_turns, verbose)")
	maxTurns := fs.Int("max_turns", 0, "Max model turns before giving up (0 = config default)")
	verbose := fs.Bool("verbose", false, "Verbose debug logging to stderr")
	if err := fs.Parse(args); err != nil {
		return cliConfig{}, err
	}

	cfg := configpkg.DefaultConfig()
	if path := strings.TrimSpace(*configPath); path != "" {
		loaded, err := configpkg.LoadFile(path, cfg)
		if err != nil {
			return cliConfig{}, err
		}
		cfg = loaded
	}

	if v, ok := lookup(envAPIKey); ok {
		cfg.APIKey = strings.TrimSpace(v)
	}
	if v, ok := lookup(envBaseURL); ok && strings.TrimSpace(v) != "" {
		cfg.BaseURL = v
	}
	if v, ok := lookup(envModel); ok && strings.TrimSpace(v) != "" {
		cfg.Model = v
	}

	if *maxTurns < 0 {
		return cliConfig{}, fmt.Errorf("-max_turns must not be negative, got %d", *maxTurns)
	}
	if *maxTurns > 0 {
		cfg.MaxTurns = *maxTurns
	}
	if *verbose {
		cfg.Verbose = true
	}

	if strings.TrimSpace(*prompt) == "" {
		return cliConfig{}, configpkg.ErrEmptyPrompt
	}
	cfg = configpkg.Normalize(cfg)
	if err := configpkg.Validate(cfg); err != nil {
		return cliConfig{}, err
	}
	return cliConfig{Prompt: *prompt, Config: cfg}, nil
}

// isUsageRequest reports whether parsing stopped because of -h.
func isUsageRequest(err error) bool {
	return errors.Is(err, flag.ErrHelp)
}
