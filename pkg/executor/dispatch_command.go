package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/flowctl/flowctl/pkg/command"
	"github.com/flowctl/flowctl/pkg/errroute"
	"github.com/flowctl/flowctl/pkg/errs"
	"github.com/flowctl/flowctl/pkg/model"
	"github.com/flowctl/flowctl/pkg/policy"
	"github.com/flowctl/flowctl/pkg/state"
)

// dispatchCommand runs every descriptor in a command step in order,
// stopping early on the first error-routed transition (spec.md §4.6).
func (w *walker) dispatchCommand(ctx context.Context, flowID string, step model.Step) (string, error) {
	for _, raw := range step.Commands {
		next, err := w.runOneCommand(ctx, flowID, step, raw)
		if err != nil {
			return "", err
		}
		if next != "" {
			return next, nil
		}
	}
	return step.OnSuccess, nil
}

// runOneCommand renders, layers, policy-gates, and runs one command
// descriptor, looping on auto-retry and otherwise returning the error
// router's transition target (or "" to continue with the step's next
// descriptor / OnSuccess).
func (w *walker) runOneCommand(ctx context.Context, flowID string, step model.Step, raw model.CommandDescriptor) (string, error) {
	preset := w.lookupCommandPreset(raw, step)
	layered := model.LayerCommand(preset, step.Defaults, &raw)

	autoKey := flowID + "/" + step.ID

	for {
		rendered, err := w.renderCommand(layered)
		if err != nil {
			return "", fmt.Errorf("command %q: %w", step.ID, err)
		}

		if w.ectx.PolicyEngine != nil {
			decisions := w.ectx.PolicyEngine.Evaluate(policy.MatchContext{
				FlowID: flowID, StepID: step.ID, Preset: layered.Preset,
				Command: rendered.Run, Reads: layered.Reads, Writes: layered.Writes,
			})
			for _, d := range decisions {
				w.st.AppendPolicyDecision(state.PolicyDecision{
					RuleID: d.RuleID, RuleLevel: string(d.RuleLevel), EnforcedLevel: string(d.EnforcedLevel),
					Acknowledged: d.Acknowledged, FlowID: flowID, StepID: step.ID, Command: rendered.Run, Note: d.Note,
				})
				if w.ectx.LogWriter != nil {
					_ = w.ectx.LogWriter.EmitPolicyDecision(d.RuleID, string(d.RuleLevel), string(d.EnforcedLevel), d.Acknowledged)
				}
			}
			if best, ok := policy.MostRestrictive(decisions); ok && best.EnforcedLevel == model.PolicyBlock {
				return "", errs.New(errs.KindPolicyBlocked, fmt.Sprintf("command %q blocked by policy rule %q", step.ID, best.RuleID))
			}
		}

		if w.ectx.Phase == PhaseCollect && !step.CollectSafe && layered.DryRunStrategy != "execute" {
			return "", errs.New(errs.KindCollectMode, fmt.Sprintf("command %q cannot run during collect phase", step.ID))
		}

		if w.ectx.Verbose && w.ectx.Stderr != nil {
			fmt.Fprintf(w.ectx.Stderr, "$ %s\n", rendered.Run)
			envKeys := make([]string, 0, len(rendered.Env))
			for k := range rendered.Env {
				envKeys = append(envKeys, k)
			}
			sort.Strings(envKeys)
			for _, k := range envKeys {
				fmt.Fprintf(w.ectx.Stderr, "  %s=%s\n", k, rendered.Env[k])
			}
		}

		skipExecution := w.ectx.DryRun && layered.DryRunStrategy != "execute"

		var res *command.Result
		startedAt := time.Now().UTC()
		if skipExecution {
			res = &command.Result{Success: true}
		} else {
			res, err = w.ectx.Runner.Run(ctx, command.Invocation{
				Run: rendered.Run, Cwd: rendered.Cwd, Env: rendered.Env,
				Shell: rendered.Shell != nil && *rendered.Shell, TimeoutMs: rendered.TimeoutMs,
				WarnAfterMs: rendered.WarnAfterMs, CaptureStdout: rendered.CaptureStdout,
				Stdout: w.ectx.Stdout, Stderr: w.ectx.Stderr,
			})
			if err != nil {
				return "", fmt.Errorf("command %q: %w", step.ID, err)
			}
		}
		endedAt := time.Now().UTC()

		w.recordCommandHistory(flowID, step, rendered, res, startedAt, endedAt, skipExecution)
		if w.ectx.LogWriter != nil {
			_ = w.ectx.LogWriter.EmitCommandResult(flowID, step.ID, rendered.Run, res.Success, res.ExitCode, res.Stdout, res.Stderr)
		}
		for _, t := range res.Timings {
			w.st.AppendIntegrationTiming(state.IntegrationTiming{FlowID: flowID, StepID: step.ID, Data: t.Data})
		}

		if res.Success {
			if err := w.captureCommandOutput(layered, res, true); err != nil {
				return "", fmt.Errorf("command %q: %w", step.ID, err)
			}
			return "", nil
		}

		_ = w.captureCommandOutput(layered, res, false)

		decision, rerr := errroute.Route(w.st, step.OnError, flowID, step.ID, autoKey, step.ContinueOnErr, w.routeLookup(), w.routePrompt(ctx))
		if rerr != nil {
			return "", rerr
		}
		switch decision.Action {
		case errroute.ActionRetry:
			continue
		case errroute.ActionTransition:
			return decision.Next, nil
		case errroute.ActionContinue:
			return "", nil
		default:
			return "", errs.New(errs.KindCommandExecution, fmt.Sprintf("command %q failed: %s", step.ID, decision.Reason))
		}
	}
}

func (w *walker) lookupCommandPreset(raw model.CommandDescriptor, step model.Step) *model.CommandPreset {
	name := raw.Preset
	if name == "" && step.Defaults != nil {
		name = step.Defaults.Preset
	}
	if name == "" || w.ectx.Config == nil {
		return nil
	}
	preset, _ := w.ectx.Config.LookupPreset(name)
	return preset
}

// renderCommand interpolates Run/Cwd/Env against the current scope.
func (w *walker) renderCommand(c model.CommandDescriptor) (model.CommandDescriptor, error) {
	out := c
	var err error
	if out.Run, err = w.render(c.Run); err != nil {
		return out, fmt.Errorf("render run: %w", err)
	}
	if out.Cwd, err = w.render(c.Cwd); err != nil {
		return out, fmt.Errorf("render cwd: %w", err)
	}
	if len(c.Env) > 0 {
		env := make(map[string]string, len(c.Env))
		for k, v := range c.Env {
			rv, err := w.render(v)
			if err != nil {
				return out, fmt.Errorf("render env[%s]: %w", k, err)
			}
			env[k] = rv
		}
		out.Env = env
	}
	return out, nil
}

func (w *walker) recordCommandHistory(flowID string, step model.Step, c model.CommandDescriptor, res *command.Result, startedAt, endedAt time.Time, dryRun bool) {
	warnAfterMs := 0
	if c.WarnAfterMs != nil {
		warnAfterMs = *c.WarnAfterMs
	}
	w.st.AppendHistory(state.CommandRecord{
		FlowID: flowID, StepID: step.ID, StepLabel: step.Label, Command: c.Run,
		StartedAt: startedAt, EndedAt: endedAt, Success: res.Success, ExitCode: res.ExitCode,
		DurationMs: res.DurationMs, Stdout: res.Stdout, Stderr: res.Stderr,
		WarnAfterMs: warnAfterMs, LongRunning: res.LongRunning, TimedOut: res.TimedOut, DryRun: dryRun,
	})
}

// captureCommandOutput implements storeStdoutAs semantics: storeWhen
// gating, text/JSON parsing, and redaction before insertion (spec.md §4.6,
// invariant 4).
func (w *walker) captureCommandOutput(c model.CommandDescriptor, res *command.Result, success bool) error {
	if c.StoreStdoutAs == "" {
		return nil
	}
	storeWhen := c.StoreWhen
	if storeWhen == "" {
		storeWhen = "success"
	}
	switch storeWhen {
	case "always":
	case "success":
		if !success {
			return nil
		}
	case "failure":
		if success {
			return nil
		}
	default:
		return nil
	}

	pj := c.NormalizedParseJSON()
	var value any = res.Stdout
	if pj.Enabled {
		var parsed any
		if err := json.Unmarshal([]byte(res.Stdout), &parsed); err != nil {
			if pj.OnError == "warn" {
				if w.ectx.Stderr != nil {
					fmt.Fprintf(w.ectx.Stderr, "warning: command %q: failed to parse stdout as JSON, storing raw text\n", c.Run)
				}
			} else {
				return fmt.Errorf("storeStdoutAs %q: parseJson: %w", c.StoreStdoutAs, err)
			}
		} else {
			value = parsed
		}
	}
	state.StoreAnswer(w.st.Answers, c.StoreStdoutAs, value, c.RedactKeys)
	return nil
}

// routeLookup resolves the dotted state keys errroute.PolicyRoute supports.
func (w *walker) routeLookup() errroute.StateLookup {
	return func(key string) (any, bool) {
		switch key {
		case "lastCommand.exitCode":
			if w.st.LastCommand == nil {
				return nil, false
			}
			return w.st.LastCommand.ExitCode, true
		case "lastCommand.success":
			if w.st.LastCommand == nil {
				return nil, false
			}
			return w.st.LastCommand.Success, true
		case "lastCommand.stdout":
			if w.st.LastCommand == nil {
				return nil, false
			}
			return w.st.LastCommand.Stdout, true
		case "lastCommand.stderr":
			if w.st.LastCommand == nil {
				return nil, false
			}
			return w.st.LastCommand.Stderr, true
		default:
			if v, ok := w.st.Answers[key]; ok {
				return v, true
			}
			return nil, false
		}
	}
}

func (w *walker) routePrompt(ctx context.Context) errroute.PromptFunc {
	if w.ectx.PromptDriver == nil {
		return nil
	}
	return func(actions []model.ErrorAction) (string, error) {
		return w.ectx.PromptDriver.ChooseAction(ctx, actions)
	}
}
