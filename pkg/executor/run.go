package executor

import (
	"context"
	"fmt"

	"github.com/flowctl/flowctl/pkg/errs"
	"github.com/flowctl/flowctl/pkg/model"
	"github.com/flowctl/flowctl/pkg/state"
	"github.com/flowctl/flowctl/pkg/telemetry"
)

// RunOpts seeds ExecuteScenario, optionally resuming from a prior run.
type RunOpts struct {
	InitialState *state.State
	RunID        string
}

const (
	transitionExit   = "exit"
	transitionRepeat = "repeat"
)

// ExecuteScenario is the live walker (spec.md §4.6). It constructs (or
// resumes) State, traverses the scenario's entry flow, chained flows, and
// matching post-run hooks, checkpointing along the way.
func ExecuteScenario(ctx context.Context, ectx *Context, opts RunOpts) (*state.State, error) {
	scenario, err := ectx.Config.LookupScenario(ectx.ScenarioID)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfig, "lookup scenario", err)
	}

	var st *state.State
	if opts.InitialState != nil {
		st = opts.InitialState
	} else {
		runID := opts.RunID
		if ectx.CheckpointMgr != nil {
			runID = ectx.CheckpointMgr.RunID()
		}
		st = state.New(state.ScenarioRef{ID: scenario.ID, Label: scenario.Label}, runID)
	}
	if ectx.Phase == PhaseCollect {
		st.Phase = state.PhaseCollect
	} else {
		st.Phase = state.PhaseExecute
	}

	w := &walker{ectx: ectx, st: st}

	if ectx.LogWriter != nil {
		_ = ectx.LogWriter.EmitScenarioStart(scenario.ID, ectx.DryRun)
	}

	runErr := w.runScenario(ctx, scenario)

	exitedEarly := runErr != nil
	st.Finalize(exitedEarly)

	status := state.StatusCompleted
	if exitedEarly {
		status = state.StatusFailed
	}
	if ectx.CheckpointMgr != nil {
		if cpErr := ectx.CheckpointMgr.Finalize(st, status); cpErr != nil && runErr == nil {
			runErr = cpErr
		}
	}
	if ectx.LogWriter != nil {
		_ = ectx.LogWriter.EmitScenarioComplete(scenario.ID, string(status))
	}
	return st, runErr
}

// walker carries the mutable run-scoped collaborators through the
// recursive flow/step dispatch; it is not exported because its fields are
// an implementation seam, not part of the public executor API.
type walker struct {
	ectx *Context
	st   *state.State
}

func (w *walker) runScenario(ctx context.Context, scenario *model.Scenario) error {
	if err := w.runFlow(ctx, scenario.EntryFlow); err != nil {
		return err
	}
	for _, flowID := range scenario.ChainedFlows {
		if err := w.runFlow(ctx, flowID); err != nil {
			return err
		}
	}
	outcome := "on-success"
	if w.st.FailedSteps > 0 {
		outcome = "on-failure"
	}
	for _, hook := range scenario.PostRunHooks {
		if hook.Trigger != model.TriggerAlways && string(hook.Trigger) != outcome {
			continue
		}
		// Hook success/failure never retroactively changes scenario
		// success status (spec.md §4.6), so its error is swallowed into
		// telemetry rather than propagated.
		if err := w.runFlow(ctx, hook.FlowID); err != nil && w.ectx.LogWriter != nil {
			_ = w.ectx.LogWriter.Write(telemetry.Event{
				Type: telemetry.EventShortcutTrigger,
				Data: map[string]any{"postRunHook": hook.FlowID, "error": err.Error()},
			})
		}
	}
	return nil
}

// runFlow traverses one flow from its first step, following explicit
// `next` transitions until the flow falls off its end or "exit" is hit.
func (w *walker) runFlow(ctx context.Context, flowID string) error {
	steps, err := w.ectx.Config.LookupFlow(flowID)
	if err != nil {
		return errs.Wrap(errs.KindConfig, "lookup flow", err)
	}
	if len(steps) == 0 {
		return nil
	}
	flowIdx := w.st.StartFlow(flowID)
	exitedEarly := false
	defer func() { w.st.FinishFlow(flowIdx, exitedEarly) }()

	currentID := steps[0].ID
	for currentID != "" {
		idx, step := model.FindStep(steps, currentID)
		if step == nil {
			exitedEarly = true
			return errs.New(errs.KindConfig, fmt.Sprintf("flow %q: unknown step id %q", flowID, currentID))
		}
		w.st.Cursors.FlowCursor = flowID
		w.st.Cursors.StepCursor = step.ID

		next, err := w.dispatch(ctx, flowID, *step)
		if err != nil {
			exitedEarly = true
			return err
		}
		if w.ectx.CheckpointMgr != nil {
			_ = w.ectx.CheckpointMgr.Record(w.st)
		}

		switch next {
		case transitionExit:
			return nil
		case transitionRepeat:
			continue
		case "":
			if idx+1 < len(steps) {
				currentID = steps[idx+1].ID
			} else {
				currentID = ""
			}
		default:
			currentID = next
		}
	}
	return nil
}

