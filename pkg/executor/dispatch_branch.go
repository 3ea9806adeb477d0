package executor

import (
	"context"
	"fmt"

	"github.com/flowctl/flowctl/pkg/errs"
	"github.com/flowctl/flowctl/pkg/model"
	"github.com/flowctl/flowctl/pkg/template"
)

// dispatchBranch evaluates each condition in order (first match wins) and
// falls back to defaultNext. Neither matching nor a defaultNext being
// configured is a config error (spec.md §8 boundary behaviour), since a
// branch step that can dead-end would silently strand a run.
func (w *walker) dispatchBranch(ctx context.Context, flowID string, step model.Step) (string, error) {
	scope := w.scope()
	for _, cond := range step.Conditions {
		ok, err := template.EvalBranch(cond.Expression, scope)
		if err != nil {
			return "", fmt.Errorf("branch %q: condition %q: %w", step.ID, cond.Expression, err)
		}
		if ok {
			if w.ectx.LogWriter != nil {
				_ = w.ectx.LogWriter.EmitBranchDecision(flowID, step.ID, cond.Target)
			}
			return cond.Target, nil
		}
	}
	if step.DefaultNext == "" {
		return "", errs.New(errs.KindConfig, fmt.Sprintf("branch %q: no condition matched and no defaultNext configured", step.ID))
	}
	if w.ectx.LogWriter != nil {
		_ = w.ectx.LogWriter.EmitBranchDecision(flowID, step.ID, step.DefaultNext)
	}
	return step.DefaultNext, nil
}
