package configio

import (
	"fmt"
	"regexp"

	"github.com/flowctl/flowctl/pkg/model"
	"github.com/flowctl/flowctl/pkg/template"
)

// validateDomain runs the hand-coded cross-reference checks spec.md §7
// assigns to ConfigError: unknown flow/step/preset references, duplicate
// scenario ids, and unresolvable branch expressions. Grounded on gert's
// validate/domain.go (structural graph-reference checking), generalized
// from runbook steps/branches/tools to flows/steps/presets/policies.
func validateDomain(cfg *model.Configuration) []*ValidationError {
	var out []*ValidationError

	out = append(out, validateScenarios(cfg)...)
	out = append(out, validatePresetRefs(cfg)...)
	out = append(out, validatePolicyRefs(cfg)...)
	for flowID, steps := range cfg.Flows {
		out = append(out, validateFlowSteps(cfg, flowID, steps)...)
	}
	return out
}

func validateScenarios(cfg *model.Configuration) []*ValidationError {
	var out []*ValidationError
	seen := map[string]bool{}
	for i, sc := range cfg.Scenarios {
		path := fmt.Sprintf("scenarios[%d]", i)
		if sc.ID == "" {
			out = append(out, errorf("domain", path+".id", "scenario id is required"))
		} else if seen[sc.ID] {
			out = append(out, errorf("domain", path+".id", "duplicate scenario id %q", sc.ID))
		}
		seen[sc.ID] = true

		if _, err := cfg.LookupFlow(sc.EntryFlow); err != nil {
			out = append(out, errorf("domain", path+".entryFlow", "scenario %q references unknown flow %q", sc.ID, sc.EntryFlow))
		}
		for j, flowID := range sc.ChainedFlows {
			if _, err := cfg.LookupFlow(flowID); err != nil {
				out = append(out, errorf("domain", fmt.Sprintf("%s.chainedFlows[%d]", path, j), "scenario %q references unknown chained flow %q", sc.ID, flowID))
			}
		}
		for j, hook := range sc.PostRunHooks {
			if _, err := cfg.LookupFlow(hook.FlowID); err != nil {
				out = append(out, errorf("domain", fmt.Sprintf("%s.postRunHooks[%d].flowId", path, j), "scenario %q references unknown post-run hook flow %q", sc.ID, hook.FlowID))
			}
			switch hook.Trigger {
			case model.TriggerAlways, model.TriggerOnSuccess, model.TriggerOnFailure:
			default:
				out = append(out, errorf("domain", fmt.Sprintf("%s.postRunHooks[%d].trigger", path, j), "invalid trigger %q", hook.Trigger))
			}
		}
	}
	return out
}

func validatePresetRefs(cfg *model.Configuration) []*ValidationError {
	var out []*ValidationError
	check := func(path, preset string) {
		if preset == "" {
			return
		}
		if _, ok := cfg.LookupPreset(preset); !ok {
			out = append(out, errorf("domain", path, "references unknown command preset %q", preset))
		}
	}
	for flowID, steps := range cfg.Flows {
		for i, step := range steps {
			if step.Type != string(model.StepCommand) {
				continue
			}
			base := fmt.Sprintf("flows.%s[%d]", flowID, i)
			if step.Defaults != nil {
				check(base+".defaults.preset", step.Defaults.Preset)
			}
			for j, c := range step.Commands {
				check(fmt.Sprintf("%s.commands[%d].preset", base, j), c.Preset)
			}
		}
	}
	return out
}

func validatePolicyRefs(cfg *model.Configuration) []*ValidationError {
	var out []*ValidationError
	seen := map[string]bool{}
	for i, rule := range cfg.Policies {
		path := fmt.Sprintf("policies[%d]", i)
		if rule.ID == "" {
			out = append(out, errorf("domain", path+".id", "policy rule id is required"))
		} else if seen[rule.ID] {
			out = append(out, warningf("domain", path+".id", "duplicate policy rule id %q (later rule is unreachable if an earlier one already matches)", rule.ID))
		}
		seen[rule.ID] = true
		switch rule.Level {
		case model.PolicyAllow, model.PolicyWarn, model.PolicyBlock:
		default:
			out = append(out, errorf("domain", path+".level", "invalid policy level %q", rule.Level))
		}
		for j, pattern := range rule.Matcher.Patterns {
			if _, err := regexp.Compile(pattern); err != nil {
				out = append(out, errorf("domain", fmt.Sprintf("%s.matcher.patterns[%d]", path, j), "invalid regex %q: %s", pattern, err))
			}
		}
	}
	return out
}

// validateFlowSteps checks one flow's internal step-id references: branch
// targets/defaultNext, message/command `next`, group/iterate nested flow
// ids, and branch expression syntax.
func validateFlowSteps(cfg *model.Configuration, flowID string, steps []model.Step) []*ValidationError {
	var out []*ValidationError
	ids := map[string]bool{}
	for _, s := range steps {
		if s.ID != "" {
			ids[s.ID] = true
		}
	}
	resolves := func(target string) bool {
		switch target {
		case "", "exit", "repeat":
			return true
		default:
			return ids[target]
		}
	}

	for i, step := range steps {
		base := fmt.Sprintf("flows.%s[%d]", flowID, i)
		if step.ID == "" {
			out = append(out, errorf("domain", base+".id", "step id is required"))
		}
		if !model.IsBuiltin(step.Type) && step.Type == "" {
			out = append(out, errorf("domain", base+".type", "step type is required"))
		}

		switch model.StepKind(step.Type) {
		case model.StepMessage:
			if step.Next != "" && !resolves(step.Next) {
				out = append(out, errorf("domain", base+".next", "step %q: unknown next target %q", step.ID, step.Next))
			}
		case model.StepBranch:
			if len(step.Conditions) == 0 && step.DefaultNext == "" {
				out = append(out, errorf("domain", base, "branch step %q has no conditions and no defaultNext — a non-matching run would have nowhere to go", step.ID))
			}
			for j, cond := range step.Conditions {
				cp := fmt.Sprintf("%s.conditions[%d]", base, j)
				if _, err := template.EvalBranch(cond.Expression, template.MapScope{}); err != nil {
					out = append(out, errorf("domain", cp+".expression", "step %q: invalid branch expression %q: %s", step.ID, cond.Expression, err))
				}
				if !resolves(cond.Target) {
					out = append(out, errorf("domain", cp+".target", "step %q: unknown branch target %q", step.ID, cond.Target))
				}
			}
			if step.DefaultNext != "" && !resolves(step.DefaultNext) {
				out = append(out, errorf("domain", base+".defaultNext", "step %q: unknown defaultNext target %q", step.ID, step.DefaultNext))
			}
		case model.StepGroup:
			if _, err := cfg.LookupFlow(step.FlowID); err != nil {
				out = append(out, errorf("domain", base+".flowId", "group step %q references unknown flow %q", step.ID, step.FlowID))
			}
		case model.StepIterate:
			if step.NestedFlow != "" {
				if _, err := cfg.LookupFlow(step.NestedFlow); err != nil {
					out = append(out, errorf("domain", base+".nestedFlow", "iterate step %q references unknown flow %q", step.ID, step.NestedFlow))
				}
			}
			if step.Source == nil {
				out = append(out, errorf("domain", base+".source", "iterate step %q has no item source", step.ID))
			}
		case model.StepCommand:
			if len(step.Commands) == 0 {
				out = append(out, errorf("domain", base+".commands", "command step %q has no commands", step.ID))
			}
			if !resolves(step.OnSuccess) {
				out = append(out, errorf("domain", base+".onSuccess", "step %q: unknown onSuccess target %q", step.ID, step.OnSuccess))
			}
			if step.OnError != nil && step.OnError.Target != "" && !resolves(step.OnError.Target) {
				out = append(out, errorf("domain", base+".onError.target", "step %q: unknown onError target %q", step.ID, step.OnError.Target))
			}
			if step.OnError != nil {
				for j, action := range step.OnError.Actions {
					if !resolves(action.Next) {
						out = append(out, errorf("domain", fmt.Sprintf("%s.onError.actions[%d].next", base, j), "step %q: unknown error action target %q", step.ID, action.Next))
					}
				}
			}
		}
	}
	return out
}
