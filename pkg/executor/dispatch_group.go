package executor

import (
	"context"
	"fmt"

	"github.com/flowctl/flowctl/pkg/model"
)

// dispatchGroup runs a nested flow to completion inline, then falls through
// (or follows an explicit `next`) to continue the parent flow.
func (w *walker) dispatchGroup(ctx context.Context, flowID string, step model.Step) (string, error) {
	if err := w.runFlow(ctx, step.FlowID); err != nil {
		return "", fmt.Errorf("group %q: nested flow %q: %w", step.ID, step.FlowID, err)
	}
	return step.Next, nil
}
