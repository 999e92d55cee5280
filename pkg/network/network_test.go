package network

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlforge/pkg/agent"
	"mlforge/pkg/llm"
	"mlforge/pkg/sandbox"
	"mlforge/pkg/state"
	"mlforge/pkg/tools"
)

type scriptedClient struct {
	responses []llm.CompletionResponse
	calls     int
}

func (s *scriptedClient) Complete(_ context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
	if s.calls >= len(s.responses) {
		return llm.CompletionResponse{}, fmt.Errorf("no scripted response left")
	}
	resp := s.responses[s.calls]
	s.calls++
	return resp, nil
}

func (s *scriptedClient) GetModelName() string { return "scripted-model" }

type nullSandbox struct{}

func (nullSandbox) Create(context.Context, string) (string, error) { return "sbx", nil }
func (nullSandbox) Run(_ context.Context, _ string, _ string, sinks *sandbox.OutputSinks) (sandbox.CommandResult, error) {
	if sinks != nil && sinks.OnStdout != nil {
		sinks.OnStdout("ok\n")
	}
	return sandbox.CommandResult{Stdout: "ok\n"}, nil
}
func (nullSandbox) WriteFile(context.Context, string, string, string) error { return nil }
func (nullSandbox) ReadFile(context.Context, string, string) (string, error) {
	return "file contents", nil
}
func (nullSandbox) PublicURL(context.Context, string, int) (string, error) { return "", nil }

func newTestRunner(client llm.Client, st *state.SharedState) *agent.Runner {
	provider := tools.NewProvider(tools.AgentContext{
		Sandbox:   nullSandbox{},
		SandboxID: "sbx",
		State:     st,
		WorkDir:   "/home/user",
	}, []string{tools.ToolTerminal, tools.ToolCreateOrUpdateFiles, tools.ToolReadFiles, tools.ToolListOutputs})
	return agent.NewRunner(client, provider, nil)
}

const planResponse = `Understood.
<ml_plan>
TASK_TYPE: classification
DATA_SOURCE: synthetic
TARGET: species
METRIC: accuracy
</ml_plan>`

func TestMLPipelineFullRun(t *testing.T) {
	client := &scriptedClient{responses: []llm.CompletionResponse{
		// Orchestrator plans.
		{Content: planResponse},
		// Engineer writes a file, then finishes with a summary.
		{ToolCalls: []llm.ToolCall{{
			ID:   "c1",
			Name: tools.ToolCreateOrUpdateFiles,
			Parameters: map[string]any{"files": []any{
				map[string]any{"path": "outputs/model/model.pkl", "content": "binary"},
			}},
		}}},
		{Content: "<task_summary>Trained an iris classifier, 0.95 accuracy.</task_summary>"},
		// Reporter writes the report.
		{Content: "# Iris Classifier Report"},
	}}
	st := state.New("run")

	pipeline := MLPipeline(newTestRunner(client, st), 25)
	require.NoError(t, pipeline.Run(context.Background(), agent.NewConversation(nil, "classify iris"), st))

	assert.Equal(t, state.PhaseDone, st.Phase())
	assert.Equal(t, []state.Phase{
		state.PhaseOrchestrating, state.PhaseEngineering, state.PhaseReporting, state.PhaseDone,
	}, st.PhaseHistory())
	assert.Contains(t, st.Plan(), "TASK_TYPE: classification")
	assert.Contains(t, st.Summary(), "<task_summary>")
	assert.False(t, st.NeedsClarification())
	assert.Equal(t, "outputs/model/model.pkl", st.ArtifactsSnapshot().ModelPath)
	assert.Equal(t, 4, client.calls)
}

func TestMLPipelineClarificationStopsRun(t *testing.T) {
	client := &scriptedClient{responses: []llm.CompletionResponse{
		{Content: "What is the target variable in your dataset?"},
	}}
	st := state.New("run")

	pipeline := MLPipeline(newTestRunner(client, st), 25)
	require.NoError(t, pipeline.Run(context.Background(), agent.NewConversation(nil, "analyze my data"), st))

	assert.True(t, st.NeedsClarification())
	assert.Equal(t, state.PhaseDone, st.Phase())
	assert.Equal(t, "What is the target variable in your dataset?", st.Summary())
	assert.Empty(t, st.Plan())
	assert.Equal(t, 1, client.calls, "engineer must not run on clarification")
}

func TestMLPipelineBudgetExhaustionStopsCleanly(t *testing.T) {
	// Engineer keeps calling tools and never produces a summary.
	looping := llm.CompletionResponse{ToolCalls: []llm.ToolCall{{
		ID: "c", Name: tools.ToolTerminal, Parameters: map[string]any{"command": "ls"},
	}}}
	client := &scriptedClient{responses: []llm.CompletionResponse{
		{Content: planResponse}, looping, looping, looping, looping,
	}}
	st := state.New("run")

	pipeline := MLPipeline(newTestRunner(client, st), 3)
	require.NoError(t, pipeline.Run(context.Background(), agent.NewConversation(nil, "classify iris"), st))

	assert.Equal(t, state.PhaseEngineering, st.Phase())
	assert.Empty(t, st.Summary())
	assert.False(t, st.IsSuccess())
}

func TestRouterFallsBackToFirstStage(t *testing.T) {
	st := state.New("run")
	st.SetPhase(state.PhaseReporting)

	n := New("test", nil, 1, []Stage{
		{Phase: state.PhaseOrchestrating, Agent: &agent.Agent{Name: "first"}},
		{Phase: state.PhaseEngineering, Agent: &agent.Agent{Name: "second"}},
	})
	stage := n.route(st)
	require.NotNil(t, stage)
	assert.Equal(t, "first", stage.Agent.Name)
}

func TestCodegenPipelineRun(t *testing.T) {
	client := &scriptedClient{responses: []llm.CompletionResponse{
		{ToolCalls: []llm.ToolCall{{
			ID:   "c1",
			Name: tools.ToolCreateOrUpdateFiles,
			Parameters: map[string]any{"files": []any{
				map[string]any{"path": "app.py", "content": "import gradio"},
			}},
		}}},
		{Content: "<task_summary>Built a Gradio app.</task_summary>"},
	}}
	st := state.NewAt("run", state.PhaseEngineering)

	pipeline := CodegenPipeline(newTestRunner(client, st), 25)
	require.NoError(t, pipeline.Run(context.Background(), agent.NewConversation(nil, "build an app"), st))

	assert.Equal(t, state.PhaseDone, st.Phase())
	assert.True(t, st.IsSuccess())
	assert.Equal(t, "app.py", st.ArtifactsSnapshot().AppPath)
}
