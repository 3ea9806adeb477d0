package executor

import (
	"context"
	"fmt"
	"regexp"

	"github.com/flowctl/flowctl/pkg/errs"
	"github.com/flowctl/flowctl/pkg/model"
	"github.com/flowctl/flowctl/pkg/options"
	"github.com/flowctl/flowctl/pkg/state"
)

// dispatchPrompt resolves one prompt step's value — override, then
// persisted answer, then dynamic/static options via the interactive
// driver — validates it, and stores it into state.answers (spec.md §4.6).
func (w *walker) dispatchPrompt(ctx context.Context, flowID string, step model.Step) (string, error) {
	key := step.StoreAs
	if key == "" {
		key = step.ID
	}

	if ov, ok := w.ectx.Overrides[key]; ok {
		value := model.CoerceOverride(step.Mode, ov.Value)
		if err := validatePrompt(step, value); err != nil {
			return "", err
		}
		w.storePromptAnswer(flowID, step.ID, key, value)
		return step.Next, nil
	}

	if step.Persistence != nil && w.ectx.PersistedAnswers != nil {
		if value, hit := w.ectx.PersistedAnswers.Get(step.Persistence.Scope, step.Persistence.Key); hit {
			if w.ectx.LogWriter != nil {
				_ = w.ectx.LogWriter.EmitPromptPersistence(flowID, step.ID, "hit", true)
			}
			if err := validatePrompt(step, value); err != nil {
				return "", err
			}
			w.storePromptAnswer(flowID, step.ID, key, value)
			return step.Next, nil
		}
	}

	opts := resolvedOptionsFromStatic(step.Options)
	if step.DynamicSource != nil {
		dyn, err := options.Resolve(ctx, w.ectx.OptionSession, step.DynamicSource)
		if err != nil {
			return "", fmt.Errorf("prompt %q: dynamic options: %w", step.ID, err)
		}
		opts = dyn
	}

	value, err := w.askPrompt(ctx, step, opts)
	if err != nil {
		return "", err
	}

	if err := validatePrompt(step, value); err != nil {
		return "", err
	}
	w.storePromptAnswer(flowID, step.ID, key, value)

	if step.Persistence != nil && w.ectx.PersistedAnswers != nil {
		applied := w.ectx.PersistedAnswers.Put(step.Persistence.Scope, step.Persistence.Key, value) == nil
		if w.ectx.LogWriter != nil {
			_ = w.ectx.LogWriter.EmitPromptPersistence(flowID, step.ID, "miss", applied)
		}
	}
	return step.Next, nil
}

// askPrompt invokes the interactive driver for step's mode, or fails with
// NonInteractiveError when none is available (spec.md §4.6/§7).
func (w *walker) askPrompt(ctx context.Context, step model.Step, opts []model.ResolvedOption) (any, error) {
	if w.ectx.NonInteractive || w.ectx.PromptDriver == nil {
		return nil, errs.New(errs.KindNonInteractive, fmt.Sprintf("prompt %q requires interactive input but no driver is available", step.ID))
	}
	if step.Mode == model.PromptConfirm {
		v, err := w.ectx.PromptDriver.Confirm(ctx, step)
		if err != nil {
			return nil, errs.Wrap(errs.KindPromptCancelled, fmt.Sprintf("prompt %q cancelled", step.ID), err)
		}
		return v, nil
	}
	v, err := w.ectx.PromptDriver.Ask(ctx, step, opts)
	if err != nil {
		return nil, errs.Wrap(errs.KindPromptCancelled, fmt.Sprintf("prompt %q cancelled", step.ID), err)
	}
	return v, nil
}

func (w *walker) storePromptAnswer(flowID, stepID, key string, value any) {
	state.StoreAnswer(w.st.Answers, key, value, nil)
	if w.ectx.LogWriter != nil {
		_ = w.ectx.LogWriter.EmitPromptAnswer(flowID, stepID, key, value)
	}
}

// validatePrompt applies regex/min/max length rules (spec.md §4.1/§7); it
// only inspects string values, matching the teacher's validation scope.
func validatePrompt(step model.Step, value any) error {
	if step.Validation == nil {
		return nil
	}
	s, ok := value.(string)
	if !ok {
		return nil
	}
	v := step.Validation
	if v.Pattern != "" {
		re, err := regexp.Compile(v.Pattern)
		if err != nil {
			return errs.Wrap(errs.KindConfig, fmt.Sprintf("prompt %q: invalid validation pattern", step.ID), err)
		}
		if !re.MatchString(s) {
			return errs.New(errs.KindValidation, validationMessage(v, fmt.Sprintf("%q does not match required pattern", s)))
		}
	}
	if v.Min > 0 && len(s) < v.Min {
		return errs.New(errs.KindValidation, validationMessage(v, fmt.Sprintf("value must be at least %d characters", v.Min)))
	}
	if v.Max > 0 && len(s) > v.Max {
		return errs.New(errs.KindValidation, validationMessage(v, fmt.Sprintf("value must be at most %d characters", v.Max)))
	}
	return nil
}

func validationMessage(v *model.PromptValidation, fallback string) string {
	if v.Message != "" {
		return v.Message
	}
	return fallback
}

func resolvedOptionsFromStatic(opts []model.PromptOption) []model.ResolvedOption {
	if len(opts) == 0 {
		return nil
	}
	out := make([]model.ResolvedOption, len(opts))
	for i, o := range opts {
		out[i] = model.ResolvedOption{Value: o.Value, Label: o.Label}
	}
	return out
}
