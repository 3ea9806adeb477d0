// Package policy implements the Policy Engine (spec.md §4.4): ordered rule
// matching against a command, with per-run acknowledgement downgrading a
// blocked rule to a warning. Grounded on gert's pkg/kernel/governance,
// generalized from contract-based matching to the spec'd command/regex/
// preset/flow/step matcher (with contract-effect matching kept as an
// additive hint, SPEC_FULL.md §D).
package policy

import (
	"regexp"
	"sync"

	"github.com/flowctl/flowctl/pkg/model"
)

// Decision is the result of evaluating one rule against one command.
type Decision struct {
	RuleID        string
	RuleLevel     model.PolicyLevel
	EnforcedLevel model.PolicyLevel
	Acknowledged  bool
	Note          string
}

// MatchContext is everything a rule's matcher is evaluated against.
type MatchContext struct {
	FlowID  string
	StepID  string
	Preset  string
	Command string
	Reads   []string
	Writes  []string
}

// Engine evaluates a Configuration's policy rules against commands as the
// executor dispatches them. The acknowledged set is per-run and never
// shared across runs (spec.md §5).
type Engine struct {
	rules []model.PolicyRule

	mu           sync.Mutex
	acknowledged map[string]bool
	compiled     map[string][]*regexp.Regexp
}

// NewEngine builds an Engine over an ordered rule list.
func NewEngine(rules []model.PolicyRule) *Engine {
	return &Engine{
		rules:        rules,
		acknowledged: map[string]bool{},
		compiled:     map[string][]*regexp.Regexp{},
	}
}

// Evaluate runs every rule against ctx in order and returns a Decision for
// each match (spec.md invariant 3: every matched rule evaluation is
// recorded, even when enforcement was downgraded).
func (e *Engine) Evaluate(ctx MatchContext) []Decision {
	var decisions []Decision
	for _, rule := range e.rules {
		if !e.matches(rule, ctx) {
			continue
		}
		decisions = append(decisions, e.decide(rule))
	}
	return decisions
}

// MostRestrictive picks the decision with the highest enforced severity
// from a set, following gert's governance.MostRestrictive.
func MostRestrictive(decisions []Decision) (Decision, bool) {
	if len(decisions) == 0 {
		return Decision{}, false
	}
	best := decisions[0]
	for _, d := range decisions[1:] {
		if severity(d.EnforcedLevel) > severity(best.EnforcedLevel) {
			best = d
		}
	}
	return best, true
}

func severity(l model.PolicyLevel) int {
	switch l {
	case model.PolicyBlock:
		return 2
	case model.PolicyWarn:
		return 1
	default:
		return 0
	}
}

// Acknowledge records current-run consent for rule id, downgrading its
// enforced level to warn on subsequent evaluations (spec.md invariant 6).
func (e *Engine) Acknowledge(ruleID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.acknowledged[ruleID] = true
}

func (e *Engine) isAcknowledged(ruleID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acknowledged[ruleID]
}

func (e *Engine) decide(rule model.PolicyRule) Decision {
	enforced := rule.Level
	acked := false
	if rule.Level == model.PolicyBlock && e.isAcknowledged(rule.ID) {
		enforced = model.PolicyWarn
		acked = true
	}
	return Decision{
		RuleID:        rule.ID,
		RuleLevel:     rule.Level,
		EnforcedLevel: enforced,
		Acknowledged:  acked,
		Note:          rule.Note,
	}
}

func (e *Engine) matches(rule model.PolicyRule, ctx MatchContext) bool {
	m := rule.Matcher
	if m.Flow != "" && m.Flow != ctx.FlowID {
		return false
	}
	if m.Step != "" && m.Step != ctx.StepID {
		return false
	}
	if m.Preset != "" && m.Preset != ctx.Preset {
		return false
	}
	if len(m.Commands) > 0 && !containsExact(m.Commands, ctx.Command) {
		return false
	}
	if len(m.Patterns) > 0 && !e.matchesAnyPattern(rule.ID, m.Patterns, ctx.Command) {
		return false
	}
	if len(m.Writes) > 0 && !overlaps(m.Writes, ctx.Writes) {
		return false
	}
	if len(m.Reads) > 0 && !overlaps(m.Reads, ctx.Reads) {
		return false
	}
	// A matcher with zero predicates matches nothing — an empty rule is
	// almost certainly a config mistake, not a catch-all.
	if m.Flow == "" && m.Step == "" && m.Preset == "" && len(m.Commands) == 0 &&
		len(m.Patterns) == 0 && len(m.Writes) == 0 && len(m.Reads) == 0 {
		return false
	}
	return true
}

func (e *Engine) matchesAnyPattern(ruleID string, patterns []string, command string) bool {
	e.mu.Lock()
	compiled, ok := e.compiled[ruleID]
	e.mu.Unlock()
	if !ok {
		compiled = make([]*regexp.Regexp, 0, len(patterns))
		for _, p := range patterns {
			if re, err := regexp.Compile(p); err == nil {
				compiled = append(compiled, re)
			}
		}
		e.mu.Lock()
		e.compiled[ruleID] = compiled
		e.mu.Unlock()
	}
	for _, re := range compiled {
		if re.MatchString(command) {
			return true
		}
	}
	return false
}

func containsExact(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func overlaps(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, x := range a {
		set[x] = true
	}
	for _, x := range b {
		if set[x] {
			return true
		}
	}
	return false
}
