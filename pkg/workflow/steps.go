package workflow

import (
	"context"
	"encoding/json"
	"fmt"
)

// StepStore persists step results keyed by (run, step) so that re-delivered
// run events replay completed steps instead of re-executing their side
// effects.
type StepStore interface {
	GetStepResult(runID, stepID string) (string, bool, error)
	PutStepResult(runID, stepID, result string) error
}

// Do runs fn at most once per (runID, stepID). The first successful result is
// serialized into the step store; later invocations return the stored value
// without calling fn. Failed invocations are not recorded, so a retried run
// resumes at the first step that has no stored result.
func Do[T any](ctx context.Context, store StepStore, runID, stepID string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	cached, found, err := store.GetStepResult(runID, stepID)
	if err != nil {
		return zero, fmt.Errorf("step %s: load result: %w", stepID, err)
	}
	if found {
		var out T
		if err := json.Unmarshal([]byte(cached), &out); err != nil {
			return zero, fmt.Errorf("step %s: decode stored result: %w", stepID, err)
		}
		return out, nil
	}

	out, err := fn(ctx)
	if err != nil {
		return zero, err
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return zero, fmt.Errorf("step %s: encode result: %w", stepID, err)
	}
	if err := store.PutStepResult(runID, stepID, string(raw)); err != nil {
		return zero, fmt.Errorf("step %s: store result: %w", stepID, err)
	}
	return out, nil
}
