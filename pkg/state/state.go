// Package state implements the in-memory, serialisable record of a
// scenario run (spec.md §3), grounded on gert's pkg/runtime.RunState and
// pkg/kernel/trace event shapes.
package state

import (
	"time"
)

// Phase enumerates the per-scenario-run state machine phases.
type Phase string

const (
	PhaseCollect Phase = "collect"
	PhaseExecute Phase = "execute"
	PhaseComplete Phase = "complete"
)

// Status is the terminal/in-flight status recorded in checkpoint metadata.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ScenarioRef is the snapshot of the scenario descriptor a run started
// against, frozen at construction time so later Configuration edits don't
// retroactively change a resumed run's identity.
type ScenarioRef struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

// CommandRecord is one entry in State.History.
type CommandRecord struct {
	FlowID      string    `json:"flowId"`
	StepID      string    `json:"stepId"`
	StepLabel   string    `json:"stepLabel,omitempty"`
	Command     string    `json:"command"`
	StartedAt   time.Time `json:"startedAt"`
	EndedAt     time.Time `json:"endedAt"`
	Success     bool      `json:"success"`
	ExitCode    int       `json:"exitCode"`
	DurationMs  int64     `json:"durationMs"`
	Stdout      string    `json:"stdout,omitempty"`
	Stderr      string    `json:"stderr,omitempty"`
	WarnAfterMs int       `json:"warnAfterMs,omitempty"`
	LongRunning bool      `json:"longRunning,omitempty"`
	TimedOut    bool      `json:"timedOut,omitempty"`
	DryRun      bool      `json:"dryRun,omitempty"`
}

// Retry records one auto-retry attempt.
type Retry struct {
	FlowID string `json:"flowId"`
	StepID string `json:"stepId"`
	Attempt int   `json:"attempt"`
	Reason string `json:"reason"`
}

// Skip records one skipped step.
type Skip struct {
	FlowID string `json:"flowId"`
	StepID string `json:"stepId"`
	Reason string `json:"reason"`
	Target string `json:"target,omitempty"`
}

// PolicyDecision records one policy rule evaluation against a command.
type PolicyDecision struct {
	RuleID        string `json:"ruleId"`
	RuleLevel     string `json:"ruleLevel"`
	EnforcedLevel string `json:"enforcedLevel"`
	Acknowledged  bool   `json:"acknowledged"`
	FlowID        string `json:"flowId"`
	StepID        string `json:"stepId"`
	Command       string `json:"command"`
	Note          string `json:"note,omitempty"`
}

// IntegrationTiming is one `[integration][timing]<json>` marker captured
// from a command's stdout (spec.md §4.6 / Glossary).
type IntegrationTiming struct {
	FlowID string         `json:"flowId"`
	StepID string         `json:"stepId"`
	Data   map[string]any `json:"data"`
}

// FlowRun records one traversal of a flow (including nested group/iterate
// traversals) from entry to exit.
type FlowRun struct {
	FlowID      string    `json:"flowId"`
	StartedAt   time.Time `json:"startedAt"`
	EndedAt     time.Time `json:"endedAt"`
	DurationMs  int64     `json:"durationMs"`
	ExitedEarly bool      `json:"exitedEarly"`
}

// Cursors locate where a resumed run should continue.
type Cursors struct {
	FlowCursor    string `json:"flowCursor,omitempty"`
	StepCursor    string `json:"stepCursor,omitempty"`
	PostRunCursor string `json:"postRunCursor,omitempty"`
}

// State is the mutated-during-a-run record (spec.md §3).
type State struct {
	Scenario ScenarioRef `json:"scenario"`

	Answers map[string]any `json:"answers"`

	History     []CommandRecord `json:"history"`
	LastCommand *CommandRecord  `json:"lastCommand,omitempty"`

	CompletedSteps int `json:"completedSteps"`
	FailedSteps    int `json:"failedSteps"`

	Retries      []Retry          `json:"retries"`
	SkippedSteps []Skip           `json:"skippedSteps"`
	PolicyDecisions []PolicyDecision `json:"policyDecisions"`
	IntegrationTimings []IntegrationTiming `json:"integrationTimings"`
	FlowRuns     []FlowRun        `json:"flowRuns"`

	StartedAt   time.Time `json:"startedAt"`
	EndedAt     time.Time `json:"endedAt,omitempty"`
	ExitedEarly bool      `json:"exitedEarly"`
	RunID       string    `json:"runId"`
	Phase       Phase     `json:"phase"`
	Cursors     Cursors   `json:"cursors"`

	AutoActionCounts map[string]int `json:"autoActionCounts"`

	// Iteration is the transient `.iteration` binding set by an in-flight
	// iterate step; never persisted (its `json:"-"` tag keeps it out of
	// state.json).
	Iteration any `json:"-"`

	// TerminalOutcome is an additive, optional structured completion
	// record (SPEC_FULL.md §D), populated when a message/branch step
	// carries an `outcome` metadata block.
	TerminalOutcome *TerminalOutcome `json:"terminalOutcome,omitempty"`
}

// TerminalOutcome is the supplemented structured-completion extension.
type TerminalOutcome struct {
	Category string         `json:"category"`
	Code     string         `json:"code,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// New constructs a fresh State for a scenario run.
func New(scenario ScenarioRef, runID string) *State {
	return &State{
		Scenario:         scenario,
		Answers:          map[string]any{},
		History:          []CommandRecord{},
		Retries:          []Retry{},
		SkippedSteps:     []Skip{},
		PolicyDecisions:  []PolicyDecision{},
		IntegrationTimings: []IntegrationTiming{},
		FlowRuns:         []FlowRun{},
		StartedAt:        time.Now().UTC(),
		RunID:            runID,
		Phase:            PhaseExecute,
		AutoActionCounts: map[string]int{},
	}
}

// AppendHistory appends a command record, maintaining LastCommand and the
// completed/failed counters (invariant 1 in spec.md §8).
func (s *State) AppendHistory(rec CommandRecord) {
	s.History = append(s.History, rec)
	last := rec
	s.LastCommand = &last
	if rec.Success {
		s.CompletedSteps++
	} else {
		s.FailedSteps++
	}
}

// AppendSkip records a skipped step.
func (s *State) AppendSkip(sk Skip) {
	s.SkippedSteps = append(s.SkippedSteps, sk)
}

// AppendRetry records an auto-retry attempt.
func (s *State) AppendRetry(r Retry) {
	s.Retries = append(s.Retries, r)
}

// AppendPolicyDecision records a policy rule evaluation, whether or not its
// enforcement was downgraded by acknowledgement (invariant 3 in §3).
func (s *State) AppendPolicyDecision(d PolicyDecision) {
	s.PolicyDecisions = append(s.PolicyDecisions, d)
}

// AppendIntegrationTiming records one parsed timing marker.
func (s *State) AppendIntegrationTiming(t IntegrationTiming) {
	s.IntegrationTimings = append(s.IntegrationTimings, t)
}

// StartFlow begins a FlowRun record and returns its index for FinishFlow.
func (s *State) StartFlow(flowID string) int {
	s.FlowRuns = append(s.FlowRuns, FlowRun{FlowID: flowID, StartedAt: time.Now().UTC()})
	return len(s.FlowRuns) - 1
}

// FinishFlow completes the FlowRun started at idx.
func (s *State) FinishFlow(idx int, exitedEarly bool) {
	if idx < 0 || idx >= len(s.FlowRuns) {
		return
	}
	fr := &s.FlowRuns[idx]
	fr.EndedAt = time.Now().UTC()
	fr.DurationMs = fr.EndedAt.Sub(fr.StartedAt).Milliseconds()
	fr.ExitedEarly = exitedEarly
}

// Finalize marks the run's terminal timestamps.
func (s *State) Finalize(exitedEarly bool) {
	s.EndedAt = time.Now().UTC()
	s.ExitedEarly = exitedEarly
	s.Phase = PhaseComplete
}

// TotalDispatched is completedSteps + failedSteps + len(skippedSteps), the
// left-hand side of invariant 1.
func (s *State) TotalDispatched() int {
	return s.CompletedSteps + s.FailedSteps + len(s.SkippedSteps)
}

// Scope adapts Answers (plus process env and an optional repoRoot/iteration)
// into a template.Scope-compatible map, used by the template engine and
// branch evaluator. Kept here (rather than in pkg/template) because the
// precedence of state vs env vs iteration is a State-Store concern.
func (s *State) Scope(env map[string]string, repoRoot string) map[string]any {
	envMap := make(map[string]any, len(env))
	for k, v := range env {
		envMap[k] = v
	}
	root := map[string]any{
		"answers":  s.Answers,
		"env":      envMap,
		"repoRoot": repoRoot,
		"runId":    s.RunID,
	}
	if s.Iteration != nil {
		root["iteration"] = s.Iteration
	}
	if s.LastCommand != nil {
		root["lastCommand"] = map[string]any{
			"success":  s.LastCommand.Success,
			"exitCode": s.LastCommand.ExitCode,
			"stdout":   s.LastCommand.Stdout,
			"stderr":   s.LastCommand.Stderr,
		}
	}
	return map[string]any{"state": root}
}
