package executor

import (
	"context"
	"testing"

	"github.com/flowctl/flowctl/pkg/command"
	"github.com/flowctl/flowctl/pkg/errs"
	"github.com/flowctl/flowctl/pkg/model"
	"github.com/flowctl/flowctl/pkg/policy"
)

func boolPtr(b bool) *bool { return &b }

func baseCtx(cfg *model.Configuration) *Context {
	return &Context{
		Config:     cfg,
		ScenarioID: "s1",
		Phase:      PhaseExecute,
		Runner:     command.NewRunner(),
	}
}

// S1 — Override bypass: the prompt is never invoked, and the rendered
// command reflects the coerced override value.
func TestScenarioOverrideBypass(t *testing.T) {
	cfg := &model.Configuration{
		Scenarios: []model.Scenario{{ID: "s1", EntryFlow: "main"}},
		Flows: map[string][]model.Step{
			"main": {
				{ID: "name_prompt", Type: string(model.StepPrompt), Mode: model.PromptInput, StoreAs: "name"},
				{ID: "echo_step", Type: string(model.StepCommand), Commands: []model.CommandDescriptor{
					{Run: "echo {{state.answers.name}}", CaptureStdout: true},
				}},
			},
		},
	}
	ectx := baseCtx(cfg)
	ectx.DryRun = true
	ectx.Overrides = map[string]OverrideValue{"name": {Value: "OverrideName", Source: "override"}}

	st, err := ExecuteScenario(context.Background(), ectx, RunOpts{RunID: "test-s1"})
	if err != nil {
		t.Fatalf("ExecuteScenario: %v", err)
	}
	if st.Answers["name"] != "OverrideName" {
		t.Fatalf("answers[name] = %v, want OverrideName", st.Answers["name"])
	}
	if len(st.History) != 1 {
		t.Fatalf("got %d history records, want 1", len(st.History))
	}
	rec := st.History[0]
	if rec.Command != "echo OverrideName" {
		t.Fatalf("command = %q, want %q", rec.Command, "echo OverrideName")
	}
	if !rec.Success || !rec.DryRun {
		t.Fatalf("record = %+v, want success+dryRun", rec)
	}
}

// S2 — Policy block: without acknowledgement the scenario fails with
// PolicyBlockedError; with acknowledgement it completes and the decision
// is downgraded to warn.
func TestScenarioPolicyBlock(t *testing.T) {
	cfg := &model.Configuration{
		Scenarios: []model.Scenario{{ID: "s1", EntryFlow: "main"}},
		Flows: map[string][]model.Step{
			"main": {
				{ID: "deploy_step", Type: string(model.StepCommand), Commands: []model.CommandDescriptor{
					{Run: "echo deploy --channel prod", Shell: boolPtr(true)},
				}},
			},
		},
	}
	rule := model.PolicyRule{ID: "block-prod", Level: model.PolicyBlock, Matcher: model.PolicyMatcher{Patterns: []string{`deploy\s+--channel\s+prod`}}}

	engine := policy.NewEngine([]model.PolicyRule{rule})
	ectx := baseCtx(cfg)
	ectx.PolicyEngine = engine

	st, err := ExecuteScenario(context.Background(), ectx, RunOpts{RunID: "test-s2a"})
	if err == nil {
		t.Fatalf("expected PolicyBlockedError, got nil")
	}
	if kind, _ := errs.KindOf(err); kind != errs.KindPolicyBlocked {
		t.Fatalf("kind = %v, want %v", kind, errs.KindPolicyBlocked)
	}
	if len(st.PolicyDecisions) != 1 || st.PolicyDecisions[0].EnforcedLevel != string(model.PolicyBlock) || st.PolicyDecisions[0].Acknowledged {
		t.Fatalf("policyDecisions = %+v, want one block/unacknowledged", st.PolicyDecisions)
	}

	engine2 := policy.NewEngine([]model.PolicyRule{rule})
	engine2.Acknowledge("block-prod")
	ectx2 := baseCtx(cfg)
	ectx2.PolicyEngine = engine2

	st2, err := ExecuteScenario(context.Background(), ectx2, RunOpts{RunID: "test-s2b"})
	if err != nil {
		t.Fatalf("ExecuteScenario (acknowledged): %v", err)
	}
	if len(st2.PolicyDecisions) != 1 || st2.PolicyDecisions[0].EnforcedLevel != string(model.PolicyWarn) || !st2.PolicyDecisions[0].Acknowledged {
		t.Fatalf("policyDecisions = %+v, want one warn/acknowledged", st2.PolicyDecisions)
	}
}

// S3 — JSON capture with redaction: captured stdout is parsed as JSON and
// redactKeys are applied before insertion into state.answers.
func TestScenarioJSONCaptureRedaction(t *testing.T) {
	cfg := &model.Configuration{
		Scenarios: []model.Scenario{{ID: "s1", EntryFlow: "main"}},
		Flows: map[string][]model.Step{
			"main": {
				{ID: "fetch_data", Type: string(model.StepCommand), Commands: []model.CommandDescriptor{{
					Run: `printf '{"token":"abc","count":2}'`, Shell: boolPtr(true),
					CaptureStdout: true, StoreStdoutAs: "payload", ParseJSON: true,
					RedactKeys: []string{"token"},
				}}},
			},
		},
	}
	ectx := baseCtx(cfg)

	st, err := ExecuteScenario(context.Background(), ectx, RunOpts{RunID: "test-s3"})
	if err != nil {
		t.Fatalf("ExecuteScenario: %v", err)
	}
	payload, ok := st.Answers["payload"].(map[string]any)
	if !ok {
		t.Fatalf("answers[payload] = %v (%T), want map", st.Answers["payload"], st.Answers["payload"])
	}
	if payload["token"] != "[REDACTED]" {
		t.Fatalf("token = %v, want [REDACTED]", payload["token"])
	}
	if payload["count"] != float64(2) {
		t.Fatalf("count = %v, want 2", payload["count"])
	}
}

// S4 — Auto-retry then abort: a command that always fails retries up to
// the configured limit, then the scenario fails.
func TestScenarioAutoRetryThenAbort(t *testing.T) {
	limit := 2
	cfg := &model.Configuration{
		Scenarios: []model.Scenario{{ID: "s1", EntryFlow: "main"}},
		Flows: map[string][]model.Step{
			"main": {
				{ID: "always_fails", Type: string(model.StepCommand), Commands: []model.CommandDescriptor{{Run: "false"}},
					OnError: &model.ErrorRouting{Auto: &model.AutoRoute{Strategy: "retry", Limit: limit}}},
			},
		},
	}
	ectx := baseCtx(cfg)

	st, err := ExecuteScenario(context.Background(), ectx, RunOpts{RunID: "test-s4"})
	if err == nil {
		t.Fatalf("expected scenario failure")
	}
	if len(st.Retries) != limit {
		t.Fatalf("retries = %d, want %d", len(st.Retries), limit)
	}
	if len(st.History) != limit+1 {
		t.Fatalf("history = %d entries, want %d (initial + %d retries)", len(st.History), limit+1, limit)
	}
	if !st.ExitedEarly {
		t.Fatalf("exitedEarly = false, want true")
	}
}

// S5 — Iterate with per-item answers: items are visited in order, the
// nested flow's rendered command reflects each item, and the transient
// binding is cleared afterwards.
func TestScenarioIteratePerItem(t *testing.T) {
	cfg := &model.Configuration{
		Scenarios: []model.Scenario{{ID: "s1", EntryFlow: "main"}},
		Flows: map[string][]model.Step{
			"main": {
				{ID: "for_each_pkg", Type: string(model.StepIterate),
					Source:      &model.IterateSource{Kind: model.IterateInline, Items: []any{"pkg-alpha", "pkg-beta"}},
					StoreEachAs: "package", NestedFlow: "iter_flow"},
			},
			"iter_flow": {
				{ID: "echo_pkg", Type: string(model.StepCommand), Commands: []model.CommandDescriptor{
					{Run: `echo "{{state.answers.package}}"`},
				}},
			},
		},
	}
	ectx := baseCtx(cfg)

	st, err := ExecuteScenario(context.Background(), ectx, RunOpts{RunID: "test-s5"})
	if err != nil {
		t.Fatalf("ExecuteScenario: %v", err)
	}
	if len(st.History) != 2 {
		t.Fatalf("history = %d entries, want 2", len(st.History))
	}
	if st.History[0].Command != `echo "pkg-alpha"` || st.History[1].Command != `echo "pkg-beta"` {
		t.Fatalf("history commands = %q, %q", st.History[0].Command, st.History[1].Command)
	}
	if _, ok := st.Answers["package"]; ok {
		t.Fatalf("answers[package] should be cleared after iterate, got %v", st.Answers["package"])
	}
}

// Boundary behaviour: an iterate over an empty list adds zero history
// entries and advances normally.
func TestScenarioIterateEmptyList(t *testing.T) {
	cfg := &model.Configuration{
		Scenarios: []model.Scenario{{ID: "s1", EntryFlow: "main"}},
		Flows: map[string][]model.Step{
			"main": {
				{ID: "for_each_pkg", Type: string(model.StepIterate),
					Source:      &model.IterateSource{Kind: model.IterateInline, Items: []any{}},
					StoreEachAs: "package", NestedFlow: "iter_flow"},
			},
			"iter_flow": {
				{ID: "echo_pkg", Type: string(model.StepCommand), Commands: []model.CommandDescriptor{{Run: "echo noop"}}},
			},
		},
	}
	ectx := baseCtx(cfg)

	st, err := ExecuteScenario(context.Background(), ectx, RunOpts{RunID: "test-empty-iterate"})
	if err != nil {
		t.Fatalf("ExecuteScenario: %v", err)
	}
	if len(st.History) != 0 {
		t.Fatalf("history = %d entries, want 0", len(st.History))
	}
	if st.ExitedEarly {
		t.Fatalf("exitedEarly = true, want false")
	}
}

// S6 — Resume from checkpoint: a scenario that fails partway through is
// re-invoked with the returned State as InitialState. The prior failed
// attempt stays in history; the resumed run appends its own outcome on top
// rather than replaying from a blank slate.
func TestScenarioResumeFromCheckpoint(t *testing.T) {
	flowFor := func(run string) map[string][]model.Step {
		return map[string][]model.Step{
			"main": {
				{ID: "maybe_fails", Type: string(model.StepCommand), Commands: []model.CommandDescriptor{{Run: run}}},
			},
		}
	}

	cfg1 := &model.Configuration{
		Scenarios: []model.Scenario{{ID: "s1", EntryFlow: "main"}},
		Flows:     flowFor("false"),
	}
	ectx1 := baseCtx(cfg1)

	st, err := ExecuteScenario(context.Background(), ectx1, RunOpts{RunID: "test-s6"})
	if err == nil {
		t.Fatalf("expected first run to fail")
	}
	if len(st.History) != 1 || st.History[0].Success {
		t.Fatalf("history after first run = %+v, want one failed record", st.History)
	}
	if !st.ExitedEarly {
		t.Fatalf("exitedEarly = false after first run, want true")
	}

	cfg2 := &model.Configuration{
		Scenarios: []model.Scenario{{ID: "s1", EntryFlow: "main"}},
		Flows:     flowFor("true"),
	}
	ectx2 := baseCtx(cfg2)

	st2, err := ExecuteScenario(context.Background(), ectx2, RunOpts{InitialState: st})
	if err != nil {
		t.Fatalf("ExecuteScenario (resume): %v", err)
	}
	if st2 != st {
		t.Fatalf("resumed run should reuse the supplied InitialState pointer")
	}
	if len(st2.History) != 2 {
		t.Fatalf("history after resume = %d entries, want 2", len(st2.History))
	}
	if st2.History[0].Success {
		t.Fatalf("history[0] = %+v, want the original failed attempt preserved", st2.History[0])
	}
	if !st2.History[1].Success {
		t.Fatalf("history[1] = %+v, want the resumed attempt to succeed", st2.History[1])
	}
	if st2.ExitedEarly {
		t.Fatalf("exitedEarly = true after resume, want false")
	}
}

// Boundary behaviour: a branch with no matching condition and no
// defaultNext is a fatal config error.
func TestScenarioBranchNoMatchNoDefault(t *testing.T) {
	cfg := &model.Configuration{
		Scenarios: []model.Scenario{{ID: "s1", EntryFlow: "main"}},
		Flows: map[string][]model.Step{
			"main": {
				{ID: "branch_step", Type: string(model.StepBranch), Conditions: []model.BranchCondition{
					{Expression: "state.answers.missing", Target: "unreachable"},
				}},
			},
		},
	}
	ectx := baseCtx(cfg)

	_, err := ExecuteScenario(context.Background(), ectx, RunOpts{RunID: "test-branch-deadend"})
	if err == nil {
		t.Fatalf("expected fatal config error")
	}
	if kind, _ := errs.KindOf(err); kind != errs.KindConfig {
		t.Fatalf("kind = %v, want %v", kind, errs.KindConfig)
	}
}
