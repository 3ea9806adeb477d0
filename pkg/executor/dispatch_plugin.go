package executor

import (
	"context"
	"fmt"

	"github.com/flowctl/flowctl/pkg/errs"
	"github.com/flowctl/flowctl/pkg/model"
	"github.com/flowctl/flowctl/pkg/state"
)

// dispatchPlugin routes a non-builtin step type to the plugin registry
// (spec.md §4.1 kind 9). During the collect phase it calls the handler's
// side-effect-free Plan; during execute it calls Run.
func (w *walker) dispatchPlugin(ctx context.Context, flowID string, step model.Step) (string, error) {
	if w.ectx.Plugins == nil {
		return "", errs.New(errs.KindConfig, fmt.Sprintf("step %q: no plugin registry configured for type %q", step.ID, step.Type))
	}
	handler, ok := w.ectx.Plugins.Lookup(step.Type)
	if !ok {
		return "", errs.New(errs.KindConfig, fmt.Sprintf("step %q: no plugin registered for type %q", step.ID, step.Type))
	}

	helpers := Helpers{
		Render: w.render,
		Log: func(level, message string) {
			if !w.ectx.Quiet && w.ectx.Stdout != nil {
				fmt.Fprintf(w.ectx.Stdout, "[%s] %s\n", level, message)
			}
		},
	}

	var (
		result PluginResult
		err    error
	)
	if w.ectx.Phase == PhaseCollect {
		result, err = handler.Plan(ctx, step, helpers)
	} else {
		result, err = handler.Run(ctx, step, helpers)
	}
	if err != nil {
		return "", fmt.Errorf("plugin step %q (%s): %w", step.ID, step.Type, err)
	}

	if result.Output != nil {
		if step.StoreAs != "" {
			state.StoreAnswer(w.st.Answers, step.StoreAs, result.Output, nil)
		} else {
			for k, v := range result.Output {
				w.st.Answers[k] = v
			}
		}
	}
	if result.Next != "" {
		return result.Next, nil
	}
	return step.Next, nil
}
