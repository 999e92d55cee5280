package tools

import (
	"context"
	"fmt"
	"strings"

	"mlforge/pkg/sandbox"
)

const defaultOutputsDir = "outputs"

// ListOutputsTool lists files under the sandbox outputs directory so the
// reporter can see what the run produced.
type ListOutputsTool struct {
	sandbox   sandbox.Client
	sandboxID string
}

// NewListOutputsTool creates a new listOutputs tool.
func NewListOutputsTool(sb sandbox.Client, sandboxID string) *ListOutputsTool {
	return &ListOutputsTool{
		sandbox:   sb,
		sandboxID: sandboxID,
	}
}

// Name returns the tool name.
func (t *ListOutputsTool) Name() string {
	return ToolListOutputs
}

// PromptDocumentation returns formatted tool documentation for prompts.
func (t *ListOutputsTool) PromptDocumentation() string {
	return `- **listOutputs** - List generated files in the outputs directory
  - Parameters:
    - directory (string, optional): directory to list (default: outputs)
  - Returns the sorted file listing, or "No outputs found" when empty`
}

// Definition returns the tool definition for the LLM.
func (t *ListOutputsTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolListOutputs,
		Description: "List generated files in the sandbox outputs directory.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"directory": {
					Type:        "string",
					Description: "Directory to list. Defaults to outputs.",
				},
			},
		},
	}
}

// Exec lists files under the directory. Missing directories are not an
// error; the listing comes back empty.
func (t *ListOutputsTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	dir := defaultOutputsDir
	if v, ok := args["directory"].(string); ok && v != "" {
		dir = v
	}

	command := fmt.Sprintf(`find %s -type f 2>/dev/null | sort || echo "Empty"`, dir)
	result, err := t.sandbox.Run(ctx, t.sandboxID, command, nil)
	if err != nil {
		return &ExecResult{Content: fmt.Sprintf("Error listing outputs: %v", err)}, nil
	}

	listing := strings.TrimSpace(result.Stdout)
	if listing == "" {
		return &ExecResult{Content: "No outputs found"}, nil
	}
	return &ExecResult{Content: result.Stdout}, nil
}
