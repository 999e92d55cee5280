package tools

import (
	"context"
	"fmt"

	"mlforge/pkg/contextmgr"
	"mlforge/pkg/sandbox"
	"mlforge/pkg/state"
)

// terminalOutputTokenLimit caps how much command output is fed back into
// model context. Training loops can emit megabytes of progress lines; the
// full output is still recorded in shared state.
const terminalOutputTokenLimit = 4000

// TerminalTool runs shell commands inside the run's sandbox. Command
// failures are reported back to the LLM as text so the agent can react;
// they never abort the run.
type TerminalTool struct {
	sandbox   sandbox.Client
	sandboxID string
	state     *state.SharedState
}

// NewTerminalTool creates a new terminal tool.
func NewTerminalTool(sb sandbox.Client, sandboxID string, st *state.SharedState) *TerminalTool {
	return &TerminalTool{
		sandbox:   sb,
		sandboxID: sandboxID,
		state:     st,
	}
}

// Name returns the tool name.
func (t *TerminalTool) Name() string {
	return ToolTerminal
}

// PromptDocumentation returns formatted tool documentation for prompts.
func (t *TerminalTool) PromptDocumentation() string {
	return `- **terminal** - Run a shell command in the sandbox
  - Parameters:
    - command (string, REQUIRED): the shell command to execute
  - Returns combined STDOUT and STDERR output
  - Failed commands return the error text instead of aborting
  - Print a line "METRICS_JSON: {...}" to record evaluation metrics`
}

// Definition returns the tool definition for the LLM.
func (t *TerminalTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolTerminal,
		Description: "Run shell commands in the sandbox and return their output.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"command": {
					Type:        "string",
					Description: "The shell command to execute",
				},
			},
			Required: []string{"command"},
		},
	}
}

// Exec runs the command and returns its output.
func (t *TerminalTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	command, ok := args["command"].(string)
	if !ok || command == "" {
		return nil, fmt.Errorf("command is required and must be a string")
	}

	var stdoutBuf, stderrBuf string
	sinks := &sandbox.OutputSinks{
		OnStdout: func(data string) { stdoutBuf += data },
		OnStderr: func(data string) { stderrBuf += data },
	}

	result, err := t.sandbox.Run(ctx, t.sandboxID, command, sinks)
	if err != nil {
		output := fmt.Sprintf("Command failed: %v\nSTDOUT: %s\nSTDERR: %s", err, stdoutBuf, stderrBuf)
		t.record(output)
		return &ExecResult{Content: contextmgr.Default().Truncate(output, terminalOutputTokenLimit)}, nil
	}

	output := ""
	if stdoutBuf != "" {
		output += fmt.Sprintf("STDOUT:\n%s\n", stdoutBuf)
	}
	if stderrBuf != "" {
		output += fmt.Sprintf("STDERR:\n%s\n", stderrBuf)
	}
	if output == "" {
		if result.Stdout != "" {
			output = result.Stdout
		} else {
			output = "Command completed with no output"
		}
	}

	t.record(output)
	return &ExecResult{Content: contextmgr.Default().Truncate(output, terminalOutputTokenLimit)}, nil
}

// record accumulates terminal output and harvests any metrics marker from
// it. Metrics must be scanned from the combined output: training scripts
// that log through the logging module emit METRICS_JSON on stderr.
func (t *TerminalTool) record(output string) {
	if t.state == nil {
		return
	}
	t.state.AppendTerminalOutput(output)
	if metrics := state.ExtractMetrics(output); metrics != nil {
		t.state.MergeMetrics(metrics)
	}
}
