// Package compiler builds the side-effect-free Plan artefact: the same
// flow-graph walk pkg/executor drives live, but resolving prompts only from
// overrides and prompt defaults (persisted answers are not consulted),
// never spawning commands (spec.md
// §4.6). Grounded on pkg/kernel/engine.go's dry-run branches inside
// executeTool/executeManual, generalized into its own non-executing walker.
package compiler

import (
	"context"
	"fmt"

	"github.com/flowctl/flowctl/pkg/model"
	"github.com/flowctl/flowctl/pkg/options"
	"github.com/flowctl/flowctl/pkg/template"
)

// Plan is the structured preview of a scenario run under a given set of
// overrides (spec.md §4.6 "Plan artefact").
type Plan struct {
	ScenarioID         string          `json:"scenarioId"`
	Mode               string          `json:"mode"` // dry-run|live
	Overrides          []OverrideEntry `json:"overrides"`
	Warnings           []string        `json:"warnings,omitempty"`
	PendingPromptCount int             `json:"pendingPromptCount"`
	Flows              []FlowPlan      `json:"flows"`
}

// OverrideEntry records one override value and where it came from.
type OverrideEntry struct {
	Key    string `json:"key"`
	Value  any    `json:"value"`
	Source string `json:"source"`
}

// FlowPlan is one flow's planned step sequence.
type FlowPlan struct {
	FlowID string     `json:"flowId"`
	Steps  []StepPlan `json:"steps"`
}

// StepPlan is one step's planned shape.
type StepPlan struct {
	ID             string        `json:"id"`
	Type           string        `json:"type"`
	Label          string        `json:"label,omitempty"`
	Commands       []CommandPlan `json:"commands,omitempty"`
	BranchTarget   string        `json:"branchTarget,omitempty"`
	IterationCount *int          `json:"iterationCount,omitempty"`
	Pending        bool          `json:"pending,omitempty"`
	Reason         string        `json:"reason,omitempty"`
	Next           string        `json:"next,omitempty"`
}

// CommandPlan is one layered, rendered command descriptor's planned shape.
type CommandPlan struct {
	Run     string         `json:"run"`
	Cwd     string         `json:"cwd,omitempty"`
	EnvDiff []EnvDiffEntry `json:"envDiff,omitempty"`
}

// EnvDiffEntry is one env var's layered resolution (spec.md §4.6).
type EnvDiffEntry struct {
	Key      string  `json:"key"`
	Value    string  `json:"value"`
	Source   string  `json:"source"` // preset|defaults|command
	Previous *string `json:"previous,omitempty"`
}

// Options seeds BuildScenarioPlan.
type Options struct {
	Config        *model.Configuration
	ScenarioID    string
	Overrides     map[string]OverrideEntry
	Env           map[string]string
	RepoRoot      string
	OptionSession options.Context
}

// planner carries the mutable, plan-scoped state through the recursive
// flow walk; mirrors pkg/executor's walker but never executes anything.
type planner struct {
	opts     Options
	answers  map[string]any
	plan     *Plan
	visiting map[string]bool
}

// BuildScenarioPlan walks scenario's entry flow, chained flows, and
// post-run hooks exactly the way ExecuteScenario does, but prompts resolve
// only from overrides or prompt defaults (never interactively) and commands are rendered and
// layered without being spawned.
func BuildScenarioPlan(ctx context.Context, opts Options) (*Plan, error) {
	scenario, err := opts.Config.LookupScenario(opts.ScenarioID)
	if err != nil {
		return nil, fmt.Errorf("lookup scenario: %w", err)
	}

	p := &planner{
		opts:     opts,
		answers:  map[string]any{},
		visiting: map[string]bool{},
	}
	for k, ov := range opts.Overrides {
		p.answers[k] = ov.Value
	}

	plan := &Plan{ScenarioID: scenario.ID, Mode: "dry-run"}
	for k, ov := range opts.Overrides {
		plan.Overrides = append(plan.Overrides, OverrideEntry{Key: k, Value: ov.Value, Source: ov.Source})
	}
	p.plan = plan

	flowPlan, err := p.walkFlow(ctx, scenario.EntryFlow)
	if err != nil {
		return nil, err
	}
	plan.Flows = append(plan.Flows, *flowPlan)

	for _, flowID := range scenario.ChainedFlows {
		fp, err := p.walkFlow(ctx, flowID)
		if err != nil {
			return nil, err
		}
		plan.Flows = append(plan.Flows, *fp)
	}
	for _, hook := range scenario.PostRunHooks {
		fp, err := p.walkFlow(ctx, hook.FlowID)
		if err != nil {
			return nil, err
		}
		plan.Flows = append(plan.Flows, *fp)
	}

	return plan, nil
}

// walkFlow plans one flow from its first step, following static `next`
// transitions. A flow already on the call stack (group/iterate recursion)
// is planned as a single pending marker rather than recursed into again,
// since an unconditional self-reference would otherwise loop forever.
func (p *planner) walkFlow(ctx context.Context, flowID string) (*FlowPlan, error) {
	if p.visiting[flowID] {
		return &FlowPlan{FlowID: flowID, Steps: []StepPlan{{ID: "(recursive)", Type: "flow-reference", Pending: true, Reason: "flow already being planned higher up the call stack"}}}, nil
	}
	p.visiting[flowID] = true
	defer delete(p.visiting, flowID)

	steps, err := p.opts.Config.LookupFlow(flowID)
	if err != nil {
		return nil, fmt.Errorf("lookup flow %q: %w", flowID, err)
	}
	fp := &FlowPlan{FlowID: flowID}
	if len(steps) == 0 {
		return fp, nil
	}

	currentID := steps[0].ID
	seen := map[string]bool{}
	for currentID != "" {
		if seen[currentID] {
			fp.Steps = append(fp.Steps, StepPlan{ID: currentID, Type: "cycle", Pending: true, Reason: "step already planned in this flow; stopping to avoid an infinite static walk"})
			break
		}
		seen[currentID] = true

		idx, step := model.FindStep(steps, currentID)
		if step == nil {
			return nil, fmt.Errorf("flow %q: unknown step id %q", flowID, currentID)
		}

		sp, next, err := p.planStep(ctx, flowID, *step)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", step.ID, err)
		}
		fp.Steps = append(fp.Steps, sp)

		switch next {
		case "exit":
			currentID = ""
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
	return fp, nil
}

func (p *planner) scope() template.Scope {
	return template.MapScope(map[string]any{"state": map[string]any{
		"answers": p.answers,
		"env":     p.opts.Env,
	}})
}

func (p *planner) render(s string) string {
	out, err := template.Render(s, p.scope())
	if err != nil {
		return s
	}
	return out
}
