// Package network routes a run through its agent pipeline until the run
// reaches a terminal state.
package network

import (
	"context"
	"errors"

	"mlforge/pkg/agent"
	"mlforge/pkg/logx"
	"mlforge/pkg/state"
)

// Stage binds an agent to the phase it serves.
type Stage struct {
	Phase state.Phase
	Agent *agent.Agent
}

// Network is an agent pipeline with data-driven routing: after every turn
// the router picks the stage matching the current phase.
type Network struct {
	name          string
	stages        []Stage
	runner        *agent.Runner
	maxIterations int
	logger        *logx.Logger
}

// New creates a network over the given stages.
func New(name string, runner *agent.Runner, maxIterations int, stages []Stage) *Network {
	return &Network{
		name:          name,
		stages:        stages,
		runner:        runner,
		maxIterations: maxIterations,
		logger:        logx.NewLogger("network:" + name),
	}
}

// Name returns the pipeline name.
func (n *Network) Name() string {
	return n.name
}

// Run drives the pipeline until a terminal state: the done phase, a
// clarification request, or budget exhaustion. Budget exhaustion is a stop,
// not an error; the driver judges the outcome from run state.
func (n *Network) Run(ctx context.Context, conv *agent.Conversation, st *state.SharedState) error {
	budget := agent.NewBudget(n.maxIterations)

	for {
		stage := n.route(st)
		if stage == nil {
			n.logger.Info("pipeline finished in phase %s", st.Phase())
			return nil
		}

		n.logger.Info("routing to %s (phase %s)", stage.Agent.Name, stage.Phase)
		_, err := n.runner.Turn(ctx, stage.Agent, conv, st, budget)
		if errors.Is(err, agent.ErrBudgetExhausted) {
			n.logger.Warn("⚠️  pipeline stopped: iteration budget exhausted in phase %s", st.Phase())
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// route picks the next stage. A clarification request and the done phase
// both stop the pipeline; an unmatched phase falls back to the first stage.
func (n *Network) route(st *state.SharedState) *Stage {
	if st.NeedsClarification() {
		return nil
	}
	phase := st.Phase()
	if phase == state.PhaseDone {
		return nil
	}
	for i := range n.stages {
		if n.stages[i].Phase == phase {
			return &n.stages[i]
		}
	}
	return &n.stages[0]
}
