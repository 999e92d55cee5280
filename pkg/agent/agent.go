// Package agent provides the LLM agent model and its tool-calling turn loop.
package agent

import (
	"mlforge/pkg/state"
)

// Agent is a declarative description of one pipeline participant: its
// system prompt, sampling parameters, and the tools it may call.
// OnResponse fires for every assistant text the agent produces, letting the
// pipeline harvest markers into shared state.
//
//nolint:govet // fieldalignment: Logical grouping preferred over memory optimization
type Agent struct {
	Name         string
	SystemPrompt string
	Temperature  float64
	TopP         float64
	Tools        []string
	OnResponse   func(text string, st *state.SharedState)
}
