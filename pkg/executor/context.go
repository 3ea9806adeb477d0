// Package executor implements the live scenario walker (spec.md §4.6):
// ExecuteScenario dispatches all nine step kinds, runs the scenario in the
// collect or execute phase and finalises it as completed or failed, and
// runs iterate steps with bounded concurrency. There are no separate
// initializing or completing phases. Grounded directly on
// gert's pkg/kernel/engine/engine.go.
package executor

import (
	"context"
	"io"

	"github.com/flowctl/flowctl/pkg/checkpoint"
	"github.com/flowctl/flowctl/pkg/command"
	"github.com/flowctl/flowctl/pkg/model"
	"github.com/flowctl/flowctl/pkg/options"
	"github.com/flowctl/flowctl/pkg/policy"
	"github.com/flowctl/flowctl/pkg/telemetry"
)

// Phase mirrors state.Phase for the executor's own dispatch gating.
type Phase string

const (
	PhaseCollect Phase = "collect"
	PhaseExecute Phase = "execute"
)

// PromptDriver is the interactive prompt boundary (pkg/promptui
// implements this); Context.PromptDriver is nil in non-interactive mode.
type PromptDriver interface {
	Ask(ctx context.Context, step model.Step, opts []model.ResolvedOption) (any, error)
	Confirm(ctx context.Context, step model.Step) (bool, error)
	ChooseAction(ctx context.Context, actions []model.ErrorAction) (string, error)
	AckPrompt(ctx context.Context, ruleID, note string) (bool, error)
}

// PersistedAnswers resolves a prompt's previously-persisted answer by
// scope/key (external boundary; spec.md leaves the store unspecified).
type PersistedAnswers interface {
	Get(scope, key string) (any, bool)
	Put(scope, key string, value any) error
}

// PluginRegistry resolves a handler for a non-builtin step type
// (pkg/plugin implements this).
type PluginRegistry interface {
	Lookup(stepType string) (PluginHandler, bool)
}

// PluginHandler is the plan/run contract a plugin step dispatches to.
type PluginHandler interface {
	Plan(ctx context.Context, step model.Step, helpers Helpers) (PluginResult, error)
	Run(ctx context.Context, step model.Step, helpers Helpers) (PluginResult, error)
}

// PluginResult is a plugin handler's return: an optional transition and
// status line.
type PluginResult struct {
	Next   string
	Status string
	Output map[string]any
}

// Helpers is the helper pack passed to plugin handlers: template
// rendering and a log adapter. The live state is not part of the pack.
type Helpers struct {
	Render func(s string) (string, error)
	Log    func(level, message string)
}

// GitGuard is the git-worktree-guard contract (pkg/gitguard implements
// this).
type GitGuard interface {
	IsDirty(ctx context.Context, repoRoot string) (bool, error)
	Apply(ctx context.Context, repoRoot string, strategy model.GitStrategy) (map[string]any, error)
}

// Context is everything ExecuteScenario needs (spec.md §4.6).
type Context struct {
	Config     *model.Configuration
	ScenarioID string
	RepoRoot   string
	Stdout     io.Writer
	Stderr     io.Writer

	DryRun         bool
	Quiet          bool
	Verbose        bool
	Phase          Phase
	NonInteractive bool

	PromptDriver     PromptDriver
	Overrides        map[string]OverrideValue
	LogWriter        *telemetry.Writer
	PersistedAnswers PersistedAnswers

	CheckpointMgr *checkpoint.Manager
	PolicyEngine  *policy.Engine
	Plugins       PluginRegistry
	GitGuard      GitGuard

	Runner        *command.Runner
	OptionSession options.Context

	// Env is the process environment snapshot exposed to templates as
	// state.env; captured once at Context construction so a run's env view
	// is stable. Command processes inherit the live process environment
	// through pkg/command, not this snapshot.
	Env map[string]string
}

// OverrideValue is one `--var key=value` / programmatic override, carrying
// its source for Plan rendering (`{key, value, source}`).
type OverrideValue struct {
	Value  any
	Source string
}

// routeLookupKey builds the dotted-state lookup key errroute.StateLookup
// needs, e.g. "lastCommand.exitCode".
func routeLookupKey(parts ...string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += "." + p
	}
	return out
}
