// Package promptui implements the interactive PromptDriver boundary
// (spec.md §4.6 Context.promptDriver): an input/confirm/select/multiselect
// form driver built on Bubble Tea, plus a readline-based line-editing
// fallback for --no-tui. Grounded on
// gert's pkg/ecosystem/tui + cmd/gert-tui/main.go (Bubble Tea app
// structure) and pkg/tui/choice.go's list-overlay conventions, retargeted
// from gert's runbook-step overlay to the four spec'd prompt modes.
package promptui

import (
	"context"
	"fmt"

	"github.com/flowctl/flowctl/pkg/model"
)

// Option mirrors model.ResolvedOption for driver-internal use without
// importing the executor package (avoids an import cycle: executor
// depends on this package's Driver implementations via the
// executor.PromptDriver interface, not the reverse).
type Option = model.ResolvedOption

// errAborted is returned by a driver implementation when the user
// cancels a prompt (Ctrl-C, Esc); dispatch_prompt.go wraps it as
// errs.KindPromptCancelled.
type errAborted struct{}

func (errAborted) Error() string { return "prompt aborted" }

// ErrAborted is the sentinel a driver returns on user cancellation.
var ErrAborted error = errAborted{}

// promptCopy renders the text shown above a prompt's input area,
// preferring Step.Prompt and falling back to the step's label/id so a
// driver never shows a blank header.
func promptCopy(step model.Step) string {
	if step.Prompt != "" {
		return step.Prompt
	}
	if step.Label != "" {
		return step.Label
	}
	return fmt.Sprintf("(%s)", step.ID)
}

// context is accepted by every Driver method for cancellation (spec.md
// §5: "cancellation during a prompt aborts the prompt with a cancelled
// error kind") even though the concrete implementations below are
// synchronous; a future async terminal backend can honor it directly.
var _ = context.Background
