package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"mlforge/pkg/sandbox"
	"mlforge/pkg/state"
)

// CreateOrUpdateFilesTool writes files into the sandbox and records them in
// run state for artifact classification.
type CreateOrUpdateFilesTool struct {
	sandbox   sandbox.Client
	sandboxID string
	state     *state.SharedState
}

// NewCreateOrUpdateFilesTool creates a new createOrUpdateFiles tool.
func NewCreateOrUpdateFilesTool(sb sandbox.Client, sandboxID string, st *state.SharedState) *CreateOrUpdateFilesTool {
	return &CreateOrUpdateFilesTool{
		sandbox:   sb,
		sandboxID: sandboxID,
		state:     st,
	}
}

// Name returns the tool name.
func (t *CreateOrUpdateFilesTool) Name() string {
	return ToolCreateOrUpdateFiles
}

// PromptDocumentation returns formatted tool documentation for prompts.
func (t *CreateOrUpdateFilesTool) PromptDocumentation() string {
	return `- **createOrUpdateFiles** - Create or update files in the sandbox
  - Parameters:
    - files (array, REQUIRED): list of { path, content } objects
  - Writing the same path again replaces the previous content
  - Save models under outputs/model/, plots under outputs/plots/,
    data under outputs/data/ and reports under outputs/reports/`
}

// Definition returns the tool definition for the LLM.
func (t *CreateOrUpdateFilesTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolCreateOrUpdateFiles,
		Description: "Create or update files in the sandbox.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"files": {
					Type:        "array",
					Description: "Files to write",
					Items: &Property{
						Type: "object",
						Properties: map[string]Property{
							"path":    {Type: "string", Description: "File path relative to the work directory"},
							"content": {Type: "string", Description: "Full file content"},
						},
						Required: []string{"path", "content"},
					},
				},
			},
			Required: []string{"files"},
		},
	}
}

// Exec writes each requested file. A write failure is reported as text so
// the agent can retry; files written before the failure stay recorded.
func (t *CreateOrUpdateFilesTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	rawFiles, ok := args["files"].([]any)
	if !ok || len(rawFiles) == 0 {
		return nil, fmt.Errorf("files is required and must be a non-empty array")
	}

	paths := make([]string, 0, len(rawFiles))
	for _, raw := range rawFiles {
		entry, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("each file must be an object with path and content")
		}
		path, _ := entry["path"].(string)
		content, _ := entry["content"].(string)
		if path == "" {
			return nil, fmt.Errorf("each file must have a non-empty path")
		}

		if err := t.sandbox.WriteFile(ctx, t.sandboxID, path, content); err != nil {
			return &ExecResult{Content: fmt.Sprintf("Error: %v", err)}, nil
		}
		if t.state != nil {
			t.state.SetFile(path, content)
		}
		paths = append(paths, path)
	}

	return &ExecResult{Content: "Files created or updated: " + strings.Join(paths, ", ")}, nil
}

// ReadFilesTool reads files back out of the sandbox.
type ReadFilesTool struct {
	sandbox   sandbox.Client
	sandboxID string
}

// NewReadFilesTool creates a new readFiles tool.
func NewReadFilesTool(sb sandbox.Client, sandboxID string) *ReadFilesTool {
	return &ReadFilesTool{
		sandbox:   sb,
		sandboxID: sandboxID,
	}
}

// Name returns the tool name.
func (t *ReadFilesTool) Name() string {
	return ToolReadFiles
}

// PromptDocumentation returns formatted tool documentation for prompts.
func (t *ReadFilesTool) PromptDocumentation() string {
	return `- **readFiles** - Read files from the sandbox
  - Parameters:
    - files (array of strings, REQUIRED): paths to read
  - Returns a JSON array of { path, content } objects`
}

// Definition returns the tool definition for the LLM.
func (t *ReadFilesTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolReadFiles,
		Description: "Read files from the sandbox.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"files": {
					Type:        "array",
					Description: "File paths to read",
					Items:       &Property{Type: "string"},
				},
			},
			Required: []string{"files"},
		},
	}
}

// Exec reads the requested files and returns them as a JSON array.
func (t *ReadFilesTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	rawFiles, ok := args["files"].([]any)
	if !ok || len(rawFiles) == 0 {
		return nil, fmt.Errorf("files is required and must be a non-empty array")
	}

	type fileContent struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}

	contents := make([]fileContent, 0, len(rawFiles))
	for _, raw := range rawFiles {
		path, ok := raw.(string)
		if !ok || path == "" {
			return nil, fmt.Errorf("each entry must be a non-empty path string")
		}
		content, err := t.sandbox.ReadFile(ctx, t.sandboxID, path)
		if err != nil {
			return &ExecResult{Content: fmt.Sprintf("Error reading files: %v", err)}, nil
		}
		contents = append(contents, fileContent{Path: path, Content: content})
	}

	payload, err := json.Marshal(contents)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal file contents: %w", err)
	}
	return &ExecResult{Content: string(payload)}, nil
}
