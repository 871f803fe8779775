package tools

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/openai/openai-go"
)

// ReadToolName is the name the model uses to request a file read.
const ReadToolName = "Read"

// readTool returns a file's contents verbatim. The path is used as given,
// with no sandboxing; whatever the model asks for is opened.
type readTool struct {
	ctx Context
}

func (t *readTool) name() string {
	return ReadToolName
}

func (t *readTool) definition() openai.ChatCompletionToolParam {
	return openai.ChatCompletionToolParam{
		Function: openai.FunctionDefinitionParam{
			Name:        ReadToolName,
			Description: openai.String("Read and return the contents of a file"),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"file_path": map[string]any{
						"type":        "string",
						"description": "The path to the file to read",
					},
				},
				"required": []string{"file_path"},
			},
		},
	}
}

func (t *readTool) execute(args json.RawMessage) (string, error) {
	var in struct {
		FilePath string `json:"file_path"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("invalid arguments for %s: %w", ReadToolName, err)
	}
	t.ctx.debug("read: opening file", map[string]any{"file_path": in.FilePath})

	data, err := os.ReadFile(in.FilePath)
	if err != nil {
		t.ctx.debug("read: failed", map[string]any{"file_path": in.FilePath, "error": err.Error()})
		return "", fmt.Errorf("Could not open file %s", in.FilePath)
	}
	t.ctx.debug("read: success", map[string]any{"file_path": in.FilePath, "bytes": len(data)})
	return string(data), nil
}
