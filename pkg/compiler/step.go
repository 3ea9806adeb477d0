package compiler

import (
	"context"

	"github.com/flowctl/flowctl/pkg/model"
	"github.com/flowctl/flowctl/pkg/template"
)

// planStep dispatches one step to its kind-specific planner, mirroring
// pkg/executor's dispatch switch (same step kinds, same `next` sentinels)
// without ever spawning a command or asking a live prompt.
func (p *planner) planStep(ctx context.Context, flowID string, step model.Step) (StepPlan, string, error) {
	switch {
	case step.Type == string(model.StepPrompt):
		return p.planPrompt(step)
	case step.Type == string(model.StepCommand):
		return p.planCommand(step)
	case step.Type == string(model.StepMessage):
		return p.planMessage(step)
	case step.Type == string(model.StepBranch):
		return p.planBranch(step)
	case step.Type == string(model.StepGroup):
		return p.planGroup(ctx, flowID, step)
	case step.Type == string(model.StepIterate):
		return p.planIterate(ctx, flowID, step)
	case step.Type == string(model.StepCompute):
		return p.planCompute(step)
	case step.Type == string(model.StepGitGuard):
		return p.planGitGuard(step)
	default:
		return p.planPlugin(step)
	}
}

func (p *planner) planPrompt(step model.Step) (StepPlan, string, error) {
	key := step.StoreAs
	if key == "" {
		key = step.ID
	}
	sp := StepPlan{ID: step.ID, Type: step.Type, Label: step.Label, Next: step.Next}
	if _, ok := p.answers[key]; ok {
		sp.Reason = "resolved from override"
		return sp, step.Next, nil
	}
	if step.Default != nil {
		p.answers[key] = step.Default
		sp.Reason = "resolved from default"
		return sp, step.Next, nil
	}
	p.plan.PendingPromptCount++
	sp.Pending = true
	sp.Reason = "requires interactive input at runtime"
	return sp, step.Next, nil
}

func (p *planner) planMessage(step model.Step) (StepPlan, string, error) {
	return StepPlan{ID: step.ID, Type: step.Type, Label: p.render(step.Text), Next: step.Next}, step.Next, nil
}

func (p *planner) planBranch(step model.Step) (StepPlan, string, error) {
	sp := StepPlan{ID: step.ID, Type: step.Type, Label: step.Label}
	for _, cond := range step.Conditions {
		ok, err := template.EvalBranch(cond.Expression, p.scope())
		if err != nil {
			return sp, "", err
		}
		if ok {
			sp.BranchTarget = cond.Target
			sp.Next = cond.Target
			return sp, cond.Target, nil
		}
	}
	if step.DefaultNext == "" {
		sp.Pending = true
		sp.Reason = "no condition resolved against known overrides and no defaultNext configured"
		return sp, "exit", nil
	}
	sp.BranchTarget = step.DefaultNext
	sp.Next = step.DefaultNext
	return sp, step.DefaultNext, nil
}

func (p *planner) planGroup(ctx context.Context, flowID string, step model.Step) (StepPlan, string, error) {
	nested, err := p.walkFlow(ctx, step.FlowID)
	if err != nil {
		return StepPlan{}, "", err
	}
	sp := StepPlan{ID: step.ID, Type: step.Type, Label: step.Label, Next: step.Next}
	p.plan.Flows = append(p.plan.Flows, *nested)
	return sp, step.Next, nil
}

func (p *planner) planCompute(step model.Step) (StepPlan, string, error) {
	sp := StepPlan{ID: step.ID, Type: step.Type, Label: step.Label, Next: step.Next}
	switch {
	case step.Handler != "":
		sp.Pending = true
		sp.Reason = "computed by handler " + step.Handler + " at run time"
	case step.Values != nil:
		rendered, err := template.RenderMap(step.Values, p.scope())
		if err != nil {
			return sp, "", err
		}
		if step.StoreAs != "" {
			p.answers[step.StoreAs] = rendered
		} else {
			for k, v := range rendered {
				p.answers[k] = v
			}
		}
	}
	return sp, step.Next, nil
}

func (p *planner) planGitGuard(step model.Step) (StepPlan, string, error) {
	sp := StepPlan{ID: step.ID, Type: step.Type, Label: step.Label, Next: step.Next}
	if step.GitGuard != nil && len(step.GitGuard.Strategies) > 0 {
		sp.Pending = true
		sp.Reason = "working tree dirtiness is only known at run time"
	}
	return sp, step.Next, nil
}

func (p *planner) planPlugin(step model.Step) (StepPlan, string, error) {
	sp := StepPlan{ID: step.ID, Type: step.Type, Label: step.Label, Next: step.Next}
	sp.Pending = true
	sp.Reason = "plugin step " + step.Type + " has no side-effect-free plan projection wired"
	return sp, step.Next, nil
}

// planIterate reports the iteration count when it is statically knowable
// (an inline or answers-key source; JSON-file and dynamic sources are
// reported as pending), and plans the nested flow once as a
// template of what each iteration runs.
func (p *planner) planIterate(ctx context.Context, flowID string, step model.Step) (StepPlan, string, error) {
	sp := StepPlan{ID: step.ID, Type: step.Type, Label: step.Label, Next: step.Next}
	if step.Source != nil {
		switch step.Source.Kind {
		case model.IterateInline:
			n := len(step.Source.Items)
			sp.IterationCount = &n
		case model.IterateAnswers:
			if v, ok := p.answers[step.Source.Key]; ok {
				n := len(toAnySlice(v))
				sp.IterationCount = &n
			} else {
				sp.Pending = true
				sp.Reason = "iteration source answer not yet resolved"
			}
		default:
			sp.Pending = true
			sp.Reason = "iteration item count only known at run time"
		}
	}
	nested, err := p.walkFlow(ctx, step.NestedFlow)
	if err != nil {
		return sp, "", err
	}
	p.plan.Flows = append(p.plan.Flows, *nested)
	return sp, step.Next, nil
}

func toAnySlice(v any) []any {
	switch x := v.(type) {
	case []any:
		return x
	case nil:
		return nil
	default:
		return []any{x}
	}
}

// planCommand layers every descriptor in a command step and renders it
// against known answers, without spawning the process.
func (p *planner) planCommand(step model.Step) (StepPlan, string, error) {
	sp := StepPlan{ID: step.ID, Type: step.Type, Label: step.Label, Next: step.OnSuccess}
	for _, raw := range step.Commands {
		preset := p.lookupPreset(raw, step)
		layered := model.LayerCommand(preset, step.Defaults, &raw)

		run := p.render(layered.Run)
		cwd := p.render(layered.Cwd)
		cp := CommandPlan{Run: run, Cwd: cwd, EnvDiff: envDiff(preset, step.Defaults, &raw)}
		sp.Commands = append(sp.Commands, cp)

		if layered.StoreStdoutAs != "" {
			sp.Pending = true
			if sp.Reason == "" {
				sp.Reason = "stored output only known once the command actually runs"
			}
		}
	}
	return sp, step.OnSuccess, nil
}

func (p *planner) lookupPreset(raw model.CommandDescriptor, step model.Step) *model.CommandPreset {
	name := raw.Preset
	if name == "" && step.Defaults != nil {
		name = step.Defaults.Preset
	}
	if name == "" || p.opts.Config == nil {
		return nil
	}
	preset, _ := p.opts.Config.LookupPreset(name)
	return preset
}

// envDiff replays LayerCommand's precedence (preset, then defaults, then
// command; later wins) but keeps per-key provenance and the previous value
// a later layer overwrote, for the Plan's envDiff listing (spec.md §4.6).
func envDiff(preset *model.CommandPreset, defaults, command *model.CommandDescriptor) []EnvDiffEntry {
	order := []string{}
	seen := map[string]*EnvDiffEntry{}

	apply := func(source string, env map[string]string) {
		for _, k := range sortedKeys(env) {
			v := env[k]
			if prev, ok := seen[k]; ok {
				previous := prev.Value
				entry := &EnvDiffEntry{Key: k, Value: v, Source: source, Previous: &previous}
				seen[k] = entry
			} else {
				seen[k] = &EnvDiffEntry{Key: k, Value: v, Source: source}
				order = append(order, k)
			}
		}
	}
	if preset != nil {
		apply("preset", preset.Env)
	}
	if defaults != nil {
		apply("defaults", defaults.Env)
	}
	if command != nil {
		apply("command", command.Env)
	}

	out := make([]EnvDiffEntry, 0, len(order))
	for _, k := range order {
		out = append(out, *seen[k])
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
