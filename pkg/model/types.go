// Package model defines the scenario engine's configuration and step data
// model: the tagged-union Step variants, command descriptors, presets, and
// policy rules a Configuration carries.
package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// Configuration is the validated, immutable-during-a-run input document.
// Discovery and merging from multiple files is an external concern; this
// type is the shape the compiler/executor consume once that's done.
type Configuration struct {
	Meta          Meta                      `yaml:"meta" json:"meta"`
	Scenarios     []Scenario                `yaml:"scenarios" json:"scenarios"`
	Flows         map[string][]Step         `yaml:"flows" json:"flows"`
	CommandPresets map[string]CommandPreset `yaml:"commandPresets,omitempty" json:"commandPresets,omitempty"`
	Policies      []PolicyRule              `yaml:"policies,omitempty" json:"policies,omitempty"`
	Plugins       []PluginRef               `yaml:"plugins,omitempty" json:"plugins,omitempty"`
}

// Meta carries document-level identification.
type Meta struct {
	Name          string `yaml:"name" json:"name"`
	Version       string `yaml:"version,omitempty" json:"version,omitempty"`
	SchemaVersion string `yaml:"schemaVersion,omitempty" json:"schemaVersion,omitempty"`
}

// Scenario is a named traversal over one or more flows, plus post-run hooks.
type Scenario struct {
	ID            string     `yaml:"id" json:"id"`
	Label         string     `yaml:"label,omitempty" json:"label,omitempty"`
	EntryFlow     string     `yaml:"entryFlow" json:"entryFlow"`
	ChainedFlows  []string   `yaml:"chainedFlows,omitempty" json:"chainedFlows,omitempty"`
	PostRunHooks  []PostHook `yaml:"postRunHooks,omitempty" json:"postRunHooks,omitempty"`
}

// HookTrigger is when a post-run hook fires relative to scenario outcome.
type HookTrigger string

const (
	TriggerAlways    HookTrigger = "always"
	TriggerOnSuccess HookTrigger = "on-success"
	TriggerOnFailure HookTrigger = "on-failure"
)

// PostHook is a flow run after the scenario's main traversal completes.
type PostHook struct {
	FlowID  string      `yaml:"flowId" json:"flowId"`
	Trigger HookTrigger `yaml:"trigger" json:"trigger"`
}

// CommandPreset is a reusable bundle of command defaults referenced by name.
type CommandPreset struct {
	Cwd     string            `yaml:"cwd,omitempty" json:"cwd,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Shell   *bool             `yaml:"shell,omitempty" json:"shell,omitempty"`
	Timeout int               `yaml:"timeout,omitempty" json:"timeout,omitempty"` // ms
}

// PolicyLevel is the enforcement level of a policy rule.
type PolicyLevel string

const (
	PolicyAllow PolicyLevel = "allow"
	PolicyWarn  PolicyLevel = "warn"
	PolicyBlock PolicyLevel = "block"
)

// PolicyRule matches a command by string/regex/preset/flow/step.
type PolicyRule struct {
	ID      string      `yaml:"id" json:"id"`
	Level   PolicyLevel `yaml:"level" json:"level"`
	Matcher PolicyMatcher `yaml:"matcher" json:"matcher"`
	Note    string      `yaml:"note,omitempty" json:"note,omitempty"`
}

// PolicyMatcher is the predicate set a policy rule matches against; every
// non-empty predicate must hold for the rule to match.
type PolicyMatcher struct {
	Flow     string   `yaml:"flow,omitempty" json:"flow,omitempty"`
	Step     string   `yaml:"step,omitempty" json:"step,omitempty"`
	Preset   string   `yaml:"preset,omitempty" json:"preset,omitempty"`
	Commands []string `yaml:"commands,omitempty" json:"commands,omitempty"`
	Patterns []string `yaml:"patterns,omitempty" json:"patterns,omitempty"` // regex source
	// Writes/Reads are an additive contract-hint extension (SPEC_FULL.md §D):
	// a rule may additionally match on a command step's declared
	// reads/writes tags, as gert's governance engine does.
	Writes []string `yaml:"writes,omitempty" json:"writes,omitempty"`
	Reads  []string `yaml:"reads,omitempty" json:"reads,omitempty"`
}

// PluginRef is a reference to an external step-type handler. Resolution is
// the plugin loader's job (out of scope); this is just the declaration.
type PluginRef struct {
	Type      string            `yaml:"type" json:"type"`
	Transport string            `yaml:"transport,omitempty" json:"transport,omitempty"` // e.g. "mcp"
	Config    map[string]string `yaml:"config,omitempty" json:"config,omitempty"`
}

// ---------------------------------------------------------------------------
// Step
// ---------------------------------------------------------------------------

// StepKind enumerates the nine step kinds. Any kind not in this closed set
// is routed to the plugin registry by its raw Type string.
type StepKind string

const (
	StepPrompt     StepKind = "prompt"
	StepCommand    StepKind = "command"
	StepMessage    StepKind = "message"
	StepBranch     StepKind = "branch"
	StepGroup      StepKind = "group"
	StepIterate    StepKind = "iterate"
	StepCompute    StepKind = "compute"
	StepGitGuard   StepKind = "git-worktree-guard"
)

// builtinKinds is used to detect plugin (non-builtin) step types.
var builtinKinds = map[string]bool{
	string(StepPrompt): true, string(StepCommand): true, string(StepMessage): true,
	string(StepBranch): true, string(StepGroup): true, string(StepIterate): true,
	string(StepCompute): true, string(StepGitGuard): true,
}

// IsBuiltin reports whether a raw `type` string names one of the eight
// built-in step kinds (a ninth, "plugin", is the catch-all for anything
// else — see Step.IsPlugin).
func IsBuiltin(rawType string) bool { return builtinKinds[rawType] }

// Step is the universal step structure; fields are populated per Type,
// following gert's Step-as-tagged-union-struct convention.
type Step struct {
	ID       string         `yaml:"id,omitempty" json:"id,omitempty"`
	Type     string         `yaml:"type" json:"type"`
	Label    string         `yaml:"label,omitempty" json:"label,omitempty"`
	Metadata map[string]any `yaml:"metadata,omitempty" json:"metadata,omitempty"`

	// prompt
	Mode          PromptMode        `yaml:"mode,omitempty" json:"mode,omitempty"`
	Prompt        string            `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	Options       []PromptOption    `yaml:"options,omitempty" json:"options,omitempty"`
	DynamicSource *DynamicSource    `yaml:"dynamicSource,omitempty" json:"dynamicSource,omitempty"`
	Default       any               `yaml:"default,omitempty" json:"default,omitempty"`
	StoreAs       string            `yaml:"storeAs,omitempty" json:"storeAs,omitempty"`
	Validation    *PromptValidation `yaml:"validation,omitempty" json:"validation,omitempty"`
	Persistence   *PromptPersist    `yaml:"persistence,omitempty" json:"persistence,omitempty"`
	ShowOrder     bool              `yaml:"showSelectionOrder,omitempty" json:"showSelectionOrder,omitempty"`

	// command
	Commands       []CommandDescriptor `yaml:"commands,omitempty" json:"commands,omitempty"`
	Defaults       *CommandDescriptor  `yaml:"defaults,omitempty" json:"defaults,omitempty"`
	CollectSafe    bool                `yaml:"collectSafe,omitempty" json:"collectSafe,omitempty"`
	ContinueOnErr  bool                `yaml:"continueOnError,omitempty" json:"continueOnError,omitempty"`
	OnSuccess      string              `yaml:"onSuccess,omitempty" json:"onSuccess,omitempty"`
	OnError        *ErrorRouting       `yaml:"onError,omitempty" json:"onError,omitempty"`

	// message
	Level string `yaml:"level,omitempty" json:"level,omitempty"` // info, success, warning, error
	Text  string `yaml:"text,omitempty" json:"text,omitempty"`
	Next  string `yaml:"next,omitempty" json:"next,omitempty"`

	// branch
	Conditions  []BranchCondition `yaml:"conditions,omitempty" json:"conditions,omitempty"`
	DefaultNext string            `yaml:"defaultNext,omitempty" json:"defaultNext,omitempty"`

	// group
	FlowID string `yaml:"flowId,omitempty" json:"flowId,omitempty"`

	// iterate
	Source       *IterateSource `yaml:"source,omitempty" json:"source,omitempty"`
	StoreEachAs  string         `yaml:"storeEachAs,omitempty" json:"storeEachAs,omitempty"`
	NestedFlow   string         `yaml:"nestedFlow,omitempty" json:"nestedFlow,omitempty"`
	Concurrency  int            `yaml:"concurrency,omitempty" json:"concurrency,omitempty"`

	// compute
	Values  map[string]any `yaml:"values,omitempty" json:"values,omitempty"`
	Handler string         `yaml:"handler,omitempty" json:"handler,omitempty"`
	Params  map[string]any `yaml:"params,omitempty" json:"params,omitempty"`

	// git-worktree-guard
	GitGuard *GitGuardSpec `yaml:"gitGuard,omitempty" json:"gitGuard,omitempty"`

	// plugin (opaque body; carried verbatim for handler consumption)
	Body map[string]any `yaml:"-" json:"-"`
}

// IsPlugin reports whether this step routes to the plugin registry.
func (s Step) IsPlugin() bool { return !IsBuiltin(s.Type) }

// stepYAMLFields lists every yaml key the Step struct itself claims, so
// UnmarshalYAML can tell a plugin step's opaque fields apart from the
// built-in ones.
var stepYAMLFields = map[string]bool{
	"id": true, "type": true, "label": true, "metadata": true,
	"mode": true, "prompt": true, "options": true, "dynamicSource": true,
	"default": true, "storeAs": true, "validation": true, "persistence": true,
	"showSelectionOrder": true,
	"commands": true, "defaults": true, "collectSafe": true,
	"continueOnError": true, "onSuccess": true, "onError": true,
	"level": true, "text": true, "next": true,
	"conditions": true, "defaultNext": true,
	"flowId": true,
	"source": true, "storeEachAs": true, "nestedFlow": true, "concurrency": true,
	"values": true, "handler": true, "params": true,
	"gitGuard": true,
}

// UnmarshalYAML decodes a Step's built-in fields normally, then stashes
// any fields it doesn't recognize into Body when the step's type isn't
// one of the closed set of built-ins (step variant 9, "plugin" — body is
// opaque to the core, spec.md §3). Without this, a plugin step's own
// fields would either fail configio's KnownFields(true) structural decode
// or be silently dropped on the floor.
func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	type stepAlias Step
	var alias stepAlias
	if err := value.Decode(&alias); err != nil {
		return err
	}
	*s = Step(alias)

	if IsBuiltin(s.Type) {
		return nil
	}

	var raw map[string]any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	body := make(map[string]any, len(raw))
	for k, v := range raw {
		if stepYAMLFields[k] {
			continue
		}
		body[k] = v
	}
	if len(body) > 0 {
		s.Body = body
	}
	return nil
}

// ---------------------------------------------------------------------------
// Prompt
// ---------------------------------------------------------------------------

// PromptMode enumerates the four prompt interaction modes.
type PromptMode string

const (
	PromptInput       PromptMode = "input"
	PromptConfirm     PromptMode = "confirm"
	PromptSelect      PromptMode = "select"
	PromptMultiSelect PromptMode = "multiselect"
)

// PromptOption is one static choice for select/multiselect prompts.
type PromptOption struct {
	Value any    `yaml:"value" json:"value"`
	Label string `yaml:"label,omitempty" json:"label,omitempty"`
}

// PromptValidation is the regex/length validation rule for input prompts.
type PromptValidation struct {
	Pattern string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Min     int    `yaml:"min,omitempty" json:"min,omitempty"`
	Max     int    `yaml:"max,omitempty" json:"max,omitempty"`
	Message string `yaml:"message,omitempty" json:"message,omitempty"`
}

// PromptPersist is the persistence scope/key for a prompt answer.
type PromptPersist struct {
	Scope string `yaml:"scope" json:"scope"` // e.g. "project", "global"
	Key   string `yaml:"key" json:"key"`
}

// ---------------------------------------------------------------------------
// Dynamic option sources
// ---------------------------------------------------------------------------

// DynamicSourceKind enumerates the dynamic option resolver's sources.
type DynamicSourceKind string

const (
	SourceCommand           DynamicSourceKind = "command"
	SourceGlob              DynamicSourceKind = "glob"
	SourceJSON              DynamicSourceKind = "json"
	SourceWorkspaceProjects DynamicSourceKind = "workspace-projects"
	SourceProjectTsconfigs  DynamicSourceKind = "project-tsconfigs"
)

// CacheMode describes how a dynamic source's results are cached.
type CacheMode struct {
	Mode  string `yaml:"mode,omitempty" json:"mode,omitempty"` // "session" | "always" | "ttl"
	TTLMs int    `yaml:"ttlMs,omitempty" json:"ttlMs,omitempty"`
}

// DynamicSource is a prompt's dynamic option source descriptor.
type DynamicSource struct {
	Kind DynamicSourceKind `yaml:"kind" json:"kind"`

	// command
	Run string `yaml:"run,omitempty" json:"run,omitempty"`

	// glob
	Patterns []string `yaml:"patterns,omitempty" json:"patterns,omitempty"`
	Cwd      string   `yaml:"cwd,omitempty" json:"cwd,omitempty"`
	Ignore   []string `yaml:"ignore,omitempty" json:"ignore,omitempty"`

	// json
	File    string `yaml:"file,omitempty" json:"file,omitempty"`
	Pointer string `yaml:"pointer,omitempty" json:"pointer,omitempty"`

	// workspace-projects
	IncludeRoot bool `yaml:"includeRoot,omitempty" json:"includeRoot,omitempty"`
	MaxDepth    int  `yaml:"maxDepth,omitempty" json:"maxDepth,omitempty"`
	Limit       int  `yaml:"limit,omitempty" json:"limit,omitempty"`

	// project-tsconfigs
	ProjectDir       string `yaml:"projectDir,omitempty" json:"projectDir,omitempty"`
	AppendCustomPath bool   `yaml:"appendCustomPath,omitempty" json:"appendCustomPath,omitempty"`

	Map   *FieldMap  `yaml:"map,omitempty" json:"map,omitempty"`
	Cache *CacheMode `yaml:"cache,omitempty" json:"cache,omitempty"`
}

// FieldMap re-projects option fields using dotted or JSON-pointer paths.
type FieldMap struct {
	Value       string `yaml:"value,omitempty" json:"value,omitempty"`
	Label       string `yaml:"label,omitempty" json:"label,omitempty"`
	Hint        string `yaml:"hint,omitempty" json:"hint,omitempty"`
	DisableWhen string `yaml:"disableWhen,omitempty" json:"disableWhen,omitempty"`
}

// ResolvedOption is one option produced by the Dynamic Option Resolver.
type ResolvedOption struct {
	Value    any    `json:"value"`
	Label    string `json:"label"`
	Hint     string `json:"hint,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
}

// ---------------------------------------------------------------------------
// Command descriptor
// ---------------------------------------------------------------------------

// ParseJSONMode describes how parseJson is configured: off, on (fail on
// error), or on-with-explicit-error-handling.
type ParseJSONMode struct {
	Enabled bool
	OnError string // "fail" | "warn"
}

// CommandDescriptor is one shell/process invocation within a command step.
type CommandDescriptor struct {
	Run             string            `yaml:"run,omitempty" json:"run,omitempty"`
	Cwd             string            `yaml:"cwd,omitempty" json:"cwd,omitempty"`
	Env             map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Shell           *bool             `yaml:"shell,omitempty" json:"shell,omitempty"`
	Preset          string            `yaml:"preset,omitempty" json:"preset,omitempty"`
	TimeoutMs       int               `yaml:"timeoutMs,omitempty" json:"timeoutMs,omitempty"`
	CaptureStdout   bool              `yaml:"captureStdout,omitempty" json:"captureStdout,omitempty"`
	StoreStdoutAs   string            `yaml:"storeStdoutAs,omitempty" json:"storeStdoutAs,omitempty"`
	ParseJSON       any               `yaml:"parseJson,omitempty" json:"parseJson,omitempty"` // bool or {onError}
	StoreWhen       string            `yaml:"storeWhen,omitempty" json:"storeWhen,omitempty"` // success|failure|always
	RedactKeys      []string          `yaml:"redactKeys,omitempty" json:"redactKeys,omitempty"`
	// WarnAfterMs is a pointer so an explicit 0 (warn immediately) is
	// distinguishable from "not configured" (nil).
	WarnAfterMs     *int              `yaml:"warnAfterMs,omitempty" json:"warnAfterMs,omitempty"`
	DryRunStrategy  string            `yaml:"dryRunStrategy,omitempty" json:"dryRunStrategy,omitempty"` // skip|execute
	ContinueOnFail  bool              `yaml:"continueOnFail,omitempty" json:"continueOnFail,omitempty"`

	// Reads/Writes are an additive contract hint (SPEC_FULL.md §D) enabling
	// governance rules to match declared reads/writes, as gert's
	// contract-based governance does.
	Reads  []string `yaml:"reads,omitempty" json:"reads,omitempty"`
	Writes []string `yaml:"writes,omitempty" json:"writes,omitempty"`
}

// NormalizedParseJSON returns the effective parse-json mode.
func (c CommandDescriptor) NormalizedParseJSON() ParseJSONMode {
	switch v := c.ParseJSON.(type) {
	case bool:
		return ParseJSONMode{Enabled: v, OnError: "fail"}
	case map[string]any:
		onErr, _ := v["onError"].(string)
		if onErr == "" {
			onErr = "fail"
		}
		return ParseJSONMode{Enabled: true, OnError: onErr}
	default:
		return ParseJSONMode{Enabled: false}
	}
}

// LayerCommand computes the final command descriptor after inheritance:
// preset → step defaults → per-command overrides (lowest to highest
// precedence). Env maps merge with later wins; scalar fields use
// last-write-wins in the same order. Descriptive fields never flow through
// (there are none on CommandDescriptor by construction).
func LayerCommand(preset *CommandPreset, defaults, command *CommandDescriptor) CommandDescriptor {
	var out CommandDescriptor
	env := map[string]string{}

	if preset != nil {
		out.Cwd = preset.Cwd
		out.Shell = preset.Shell
		out.TimeoutMs = preset.Timeout
		for k, v := range preset.Env {
			env[k] = v
		}
	}
	if defaults != nil {
		layerScalars(&out, defaults)
		for k, v := range defaults.Env {
			env[k] = v
		}
	}
	if command != nil {
		layerScalars(&out, command)
		for k, v := range command.Env {
			env[k] = v
		}
		out.Run = command.Run
		out.StoreStdoutAs = command.StoreStdoutAs
		out.ParseJSON = command.ParseJSON
		out.StoreWhen = command.StoreWhen
		out.RedactKeys = command.RedactKeys
		out.ContinueOnFail = command.ContinueOnFail
		out.Preset = command.Preset
		out.Reads = append(out.Reads, command.Reads...)
		out.Writes = append(out.Writes, command.Writes...)
	}
	if len(env) > 0 {
		out.Env = env
	}
	return out
}

// layerScalars applies non-env scalar fields from src onto dst with
// last-write-wins, skipping zero values so an earlier layer's explicit
// setting survives when a later layer doesn't override it.
func layerScalars(dst *CommandDescriptor, src *CommandDescriptor) {
	if src.Cwd != "" {
		dst.Cwd = src.Cwd
	}
	if src.Shell != nil {
		dst.Shell = src.Shell
	}
	if src.TimeoutMs != 0 {
		dst.TimeoutMs = src.TimeoutMs
	}
	if src.CaptureStdout {
		dst.CaptureStdout = true
	}
	if src.WarnAfterMs != nil {
		dst.WarnAfterMs = src.WarnAfterMs
	}
	if src.DryRunStrategy != "" {
		dst.DryRunStrategy = src.DryRunStrategy
	}
}

// ---------------------------------------------------------------------------
// Error routing
// ---------------------------------------------------------------------------

// ErrorRouting describes a command step's failure-handling configuration.
type ErrorRouting struct {
	Auto    *AutoRoute     `yaml:"auto,omitempty" json:"auto,omitempty"`
	Policy  *PolicyRoute   `yaml:"policy,omitempty" json:"policy,omitempty"`
	Actions []ErrorAction  `yaml:"actions,omitempty" json:"actions,omitempty"`
	Target  string         `yaml:"target,omitempty" json:"target,omitempty"`
	DefaultNext string     `yaml:"defaultNext,omitempty" json:"defaultNext,omitempty"`
}

// AutoRoute is the automatic retry/transition/exit strategy.
type AutoRoute struct {
	Strategy string `yaml:"strategy" json:"strategy"` // retry|default|transition|exit
	Limit    int    `yaml:"limit,omitempty" json:"limit,omitempty"`
	Target   string `yaml:"target,omitempty" json:"target,omitempty"` // step id, for strategy: transition
}

// PolicyRoute resolves the routing target from a dotted state key via a map.
type PolicyRoute struct {
	Key      string            `yaml:"key" json:"key"`
	Map      map[string]string `yaml:"map" json:"map"`
	Required bool              `yaml:"required,omitempty" json:"required,omitempty"`
	Default  string            `yaml:"default,omitempty" json:"default,omitempty"`
}

// ErrorAction is one interactively-selectable recovery action.
type ErrorAction struct {
	Label string `yaml:"label" json:"label"`
	Next  string `yaml:"next" json:"next"`
}

// ---------------------------------------------------------------------------
// Branch
// ---------------------------------------------------------------------------

// BranchCondition is one ordered arm of a branch step.
type BranchCondition struct {
	Expression  string `yaml:"expression" json:"expression"`
	Target      string `yaml:"target" json:"target"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// ---------------------------------------------------------------------------
// Iterate
// ---------------------------------------------------------------------------

// IterateSourceKind enumerates how an iterate step's items are produced.
type IterateSourceKind string

const (
	IterateInline   IterateSourceKind = "inline"
	IterateAnswers  IterateSourceKind = "answers"
	IterateDynamic  IterateSourceKind = "dynamic"
	IterateJSONFile IterateSourceKind = "jsonFile"
)

// IterateSource is an iterate step's enumerable item source.
type IterateSource struct {
	Kind    IterateSourceKind `yaml:"kind" json:"kind"`
	Items   []any             `yaml:"items,omitempty" json:"items,omitempty"`
	Key     string            `yaml:"key,omitempty" json:"key,omitempty"`
	Dynamic *DynamicSource    `yaml:"dynamic,omitempty" json:"dynamic,omitempty"`
	File    string            `yaml:"file,omitempty" json:"file,omitempty"`
	Pointer string            `yaml:"pointer,omitempty" json:"pointer,omitempty"`
}

// ---------------------------------------------------------------------------
// git-worktree-guard
// ---------------------------------------------------------------------------

// GitStrategy enumerates the dirty-tree handling strategies.
type GitStrategy string

const (
	StrategyCommit  GitStrategy = "commit"
	StrategyStash   GitStrategy = "stash"
	StrategyBranch  GitStrategy = "branch"
	StrategyProceed GitStrategy = "proceed"
)

// GitGuardSpec configures a git-worktree-guard step.
type GitGuardSpec struct {
	Strategies []GitStrategy     `yaml:"strategies" json:"strategies"`
	AnswerKeys map[string]string `yaml:"answerKeys,omitempty" json:"answerKeys,omitempty"` // strategy -> state key
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// LookupFlow returns a flow's steps, or an error if the id is unknown.
func (c *Configuration) LookupFlow(id string) ([]Step, error) {
	steps, ok := c.Flows[id]
	if !ok {
		return nil, fmt.Errorf("unknown flow %q", id)
	}
	return steps, nil
}

// LookupScenario finds a scenario by id.
func (c *Configuration) LookupScenario(id string) (*Scenario, error) {
	for i := range c.Scenarios {
		if c.Scenarios[i].ID == id {
			return &c.Scenarios[i], nil
		}
	}
	return nil, fmt.Errorf("unknown scenario %q", id)
}

// LookupPreset finds a command preset by name.
func (c *Configuration) LookupPreset(name string) (*CommandPreset, bool) {
	if name == "" {
		return nil, false
	}
	p, ok := c.CommandPresets[name]
	if !ok {
		return nil, false
	}
	return &p, true
}

// FindStep locates a step by id within a flow's step list.
func FindStep(steps []Step, id string) (int, *Step) {
	for i := range steps {
		if steps[i].ID == id {
			return i, &steps[i]
		}
	}
	return -1, nil
}
