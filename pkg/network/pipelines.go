package network

import (
	"mlforge/pkg/agent"
	"mlforge/pkg/prompts"
	"mlforge/pkg/state"
	"mlforge/pkg/tools"
)

// Sampling parameters per agent role.
const (
	orchestratorTemperature = 0.5
	engineerTemperature     = 0.7
	reporterTemperature     = 0.4
	defaultTopP             = 0.9
)

// NewOrchestratorAgent builds the planning agent. A response with a plan
// block advances the run to engineering; a response without one is a
// clarifying question and stops the run.
func NewOrchestratorAgent() *agent.Agent {
	return &agent.Agent{
		Name:         "orchestrator",
		SystemPrompt: prompts.OrchestratorPrompt,
		Temperature:  orchestratorTemperature,
		TopP:         defaultTopP,
		OnResponse: func(text string, st *state.SharedState) {
			if plan := state.ExtractPlan(text); plan != "" {
				st.SetPlan(plan)
				st.SetPhase(state.PhaseEngineering)
				return
			}
			// No plan means the model asked a clarifying question.
			st.SetNeedsClarification(true)
			st.SetSummary(text)
			st.SetPhase(state.PhaseDone)
		},
	}
}

// NewEngineerAgent builds the execution agent. The task summary marker
// records the full response as the run summary and advances to reporting.
func NewEngineerAgent() *agent.Agent {
	return &agent.Agent{
		Name:         "engineer",
		SystemPrompt: prompts.EngineerPrompt,
		Temperature:  engineerTemperature,
		TopP:         defaultTopP,
		Tools: []string{
			tools.ToolTerminal,
			tools.ToolCreateOrUpdateFiles,
			tools.ToolReadFiles,
			tools.ToolListOutputs,
		},
		OnResponse: func(text string, st *state.SharedState) {
			if state.HasTaskSummary(text) {
				st.SetSummary(text)
				st.SetPhase(state.PhaseReporting)
			}
		},
	}
}

// NewReporterAgent builds the report-writing agent. Any response text
// finishes the run.
func NewReporterAgent() *agent.Agent {
	return &agent.Agent{
		Name:         "reporter",
		SystemPrompt: prompts.ReporterPrompt,
		Temperature:  reporterTemperature,
		TopP:         defaultTopP,
		Tools: []string{
			tools.ToolCreateOrUpdateFiles,
			tools.ToolReadFiles,
			tools.ToolListOutputs,
		},
		OnResponse: func(_ string, st *state.SharedState) {
			st.SetPhase(state.PhaseDone)
		},
	}
}

// NewCodegenAgent builds the single-agent variant used by the
// code-generation pipeline.
func NewCodegenAgent() *agent.Agent {
	return &agent.Agent{
		Name:         "codegen",
		SystemPrompt: prompts.CodegenPrompt,
		Temperature:  engineerTemperature,
		TopP:         defaultTopP,
		Tools: []string{
			tools.ToolTerminal,
			tools.ToolCreateOrUpdateFiles,
			tools.ToolReadFiles,
		},
		OnResponse: func(text string, st *state.SharedState) {
			if state.HasTaskSummary(text) {
				st.SetSummary(text)
				st.SetPhase(state.PhaseDone)
			}
		},
	}
}

// MLPipeline is the three-stage orchestrator, engineer, reporter network.
func MLPipeline(runner *agent.Runner, maxIterations int) *Network {
	return New("ml", runner, maxIterations, []Stage{
		{Phase: state.PhaseOrchestrating, Agent: NewOrchestratorAgent()},
		{Phase: state.PhaseEngineering, Agent: NewEngineerAgent()},
		{Phase: state.PhaseReporting, Agent: NewReporterAgent()},
	})
}

// CodegenPipeline is the single-agent network. Runs start directly in the
// engineering phase.
func CodegenPipeline(runner *agent.Runner, maxIterations int) *Network {
	return New("codegen", runner, maxIterations, []Stage{
		{Phase: state.PhaseEngineering, Agent: NewCodegenAgent()},
	})
}
