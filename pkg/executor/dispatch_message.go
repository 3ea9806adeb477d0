package executor

import (
	"context"
	"fmt"

	"github.com/flowctl/flowctl/pkg/model"
)

// dispatchMessage renders a message step's text and writes it to Stdout
// (level-tagged), then follows its explicit `next` if any.
func (w *walker) dispatchMessage(ctx context.Context, flowID string, step model.Step) (string, error) {
	text, err := w.render(step.Text)
	if err != nil {
		return "", fmt.Errorf("message %q: %w", step.ID, err)
	}
	if !w.ectx.Quiet && w.ectx.Stdout != nil {
		level := step.Level
		if level == "" {
			level = "info"
		}
		fmt.Fprintf(w.ectx.Stdout, "[%s] %s\n", level, text)
	}
	return step.Next, nil
}
