package executor

import (
	"context"
	"fmt"

	"github.com/flowctl/flowctl/pkg/model"
)

// dispatch routes a single step to its kind-specific handler and returns
// the next step id ("" = fall through to the following step in this flow,
// "exit"/"repeat" are the two sentinel transitions spec.md §4.6 names).
func (w *walker) dispatch(ctx context.Context, flowID string, step model.Step) (string, error) {
	if w.ectx.LogWriter != nil {
		_ = w.ectx.LogWriter.EmitStepStart(flowID, step.ID, step.Type)
	}
	var next string
	var err error
	switch {
	case step.Type == string(model.StepPrompt):
		next, err = w.dispatchPrompt(ctx, flowID, step)
	case step.Type == string(model.StepCommand):
		next, err = w.dispatchCommand(ctx, flowID, step)
	case step.Type == string(model.StepMessage):
		next, err = w.dispatchMessage(ctx, flowID, step)
	case step.Type == string(model.StepBranch):
		next, err = w.dispatchBranch(ctx, flowID, step)
	case step.Type == string(model.StepGroup):
		next, err = w.dispatchGroup(ctx, flowID, step)
	case step.Type == string(model.StepIterate):
		next, err = w.dispatchIterate(ctx, flowID, step)
	case step.Type == string(model.StepCompute):
		next, err = w.dispatchCompute(ctx, flowID, step)
	case step.Type == string(model.StepGitGuard):
		next, err = w.dispatchGitGuard(ctx, flowID, step)
	default:
		next, err = w.dispatchPlugin(ctx, flowID, step)
	}
	if w.ectx.LogWriter != nil {
		_ = w.ectx.LogWriter.EmitStepComplete(flowID, step.ID, err == nil)
	}
	if err != nil {
		return "", fmt.Errorf("step %q (%s): %w", step.ID, step.Type, err)
	}
	return next, nil
}
