package agent

import (
	"context"
	"fmt"
	"time"

	"mlforge/pkg/llm"
	"mlforge/pkg/logx"
	"mlforge/pkg/metrics"
	"mlforge/pkg/state"
	"mlforge/pkg/tools"
)

// Runner executes agent turns: the LLM call / tool execution loop. One
// Runner serves all agents of a run; the Agent passed to Turn supplies the
// prompt, sampling, and tool subset.
type Runner struct {
	client   llm.Client
	provider *tools.ToolProvider
	recorder *metrics.Recorder
	logger   *logx.Logger
}

// NewRunner creates a runner over the given client and tool provider.
func NewRunner(client llm.Client, provider *tools.ToolProvider, recorder *metrics.Recorder) *Runner {
	return &Runner{
		client:   client,
		provider: provider,
		recorder: recorder,
		logger:   logx.NewLogger("agent"),
	}
}

// Turn runs one agent until it answers without tool calls or the shared
// budget runs out. Every assistant text triggers the agent's OnResponse
// callback; every tool call gets a result appended, even on failure.
func (r *Runner) Turn(ctx context.Context, ag *Agent, conv *Conversation, st *state.SharedState, budget *Budget) (string, error) {
	defs := r.toolDefinitions(ag)

	for {
		if !budget.Take() {
			r.logger.Warn("⚠️  iteration budget exhausted during %s turn", ag.Name)
			return "", ErrBudgetExhausted
		}

		req := llm.CompletionRequest{
			System:      ag.SystemPrompt,
			Messages:    conv.Messages(),
			Tools:       defs,
			MaxTokens:   llm.DefaultMaxTokens,
			Temperature: ag.Temperature,
			TopP:        ag.TopP,
		}

		r.logger.Info("🔄 Starting LLM call for %s: model '%s', %d messages, %d tools, %d iterations left",
			ag.Name, r.client.GetModelName(), len(req.Messages), len(defs), budget.Remaining())

		start := time.Now()
		resp, err := r.client.Complete(ctx, req)
		duration := time.Since(start)

		if r.recorder != nil {
			r.recorder.ObserveLLMRequest(ag.Name, r.client.GetModelName(),
				resp.Usage.PromptTokens, resp.Usage.CompletionTokens, err == nil, duration)
		}
		if err != nil {
			r.logger.Error("❌ LLM call for %s failed after %.3gs: %v", ag.Name, duration.Seconds(), err)
			return "", fmt.Errorf("LLM completion failed: %w", err)
		}

		r.logger.Info("✅ LLM call for %s completed in %.3gs, response length: %d chars, tool calls: %d",
			ag.Name, duration.Seconds(), len(resp.Content), len(resp.ToolCalls))

		conv.AddAssistant(resp.Content, resp.ToolCalls)
		if ag.OnResponse != nil && resp.Content != "" {
			ag.OnResponse(resp.Content, st)
		}

		if len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}

		// Every tool_use needs a tool_result, including failures.
		for i := range resp.ToolCalls {
			call := &resp.ToolCalls[i]
			conv.AddToolResult(call.ID, r.executeTool(ctx, call))
		}
	}
}

func (r *Runner) executeTool(ctx context.Context, call *llm.ToolCall) string {
	r.logger.Info("Executing tool: %s", call.Name)

	tool, err := r.provider.Get(call.Name)
	if err != nil {
		r.logger.Error("Failed to get tool %s: %v", call.Name, err)
		if r.recorder != nil {
			r.recorder.ObserveTool(call.Name, false, 0)
		}
		return fmt.Sprintf("Tool failed: %v", err)
	}

	start := time.Now()
	result, err := tool.Exec(ctx, call.Parameters)
	duration := time.Since(start)

	if r.recorder != nil {
		r.recorder.ObserveTool(call.Name, err == nil, duration)
	}
	if err != nil {
		r.logger.Error("Tool %s failed after %.3fs: %v", call.Name, duration.Seconds(), err)
		return fmt.Sprintf("Tool failed: %v", err)
	}

	r.logger.Info("Tool %s completed in %.3fs", call.Name, duration.Seconds())
	return result.Content
}

func (r *Runner) toolDefinitions(ag *Agent) []tools.ToolDefinition {
	if len(ag.Tools) == 0 {
		return nil
	}
	allowed := make(map[string]struct{}, len(ag.Tools))
	for _, name := range ag.Tools {
		allowed[name] = struct{}{}
	}

	all := r.provider.Definitions()
	defs := make([]tools.ToolDefinition, 0, len(ag.Tools))
	for i := range all {
		if _, ok := allowed[all[i].Name]; ok {
			defs = append(defs, all[i])
		}
	}
	return defs
}
