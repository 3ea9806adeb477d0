// Package errroute implements the Error Router (spec.md §4.6/§7): on
// command failure, selects among retry, policy-directed transition,
// user-chosen action, or abort. Auto-first precedence is Open Question (c)
// in spec.md §9, decided in DESIGN.md.
package errroute

import (
	"fmt"

	"github.com/flowctl/flowctl/pkg/errs"
	"github.com/flowctl/flowctl/pkg/model"
	"github.com/flowctl/flowctl/pkg/state"
)

// ActionKind is what the router decided to do.
type ActionKind string

const (
	ActionRetry      ActionKind = "retry"
	ActionTransition ActionKind = "transition"
	ActionContinue   ActionKind = "continue"
	ActionFail       ActionKind = "fail"
)

// Decision is the router's resolved response to one command failure.
type Decision struct {
	Action ActionKind
	Next   string // target step id, when Action is transition
	Reason string
}

// PromptFunc asks the interactive driver to choose among actions; returns
// the chosen action's Next value.
type PromptFunc func(actions []model.ErrorAction) (string, error)

// StateLookup resolves a dotted state key for policy routing (e.g.
// "lastCommand.exitCode").
type StateLookup func(key string) (any, bool)

// Route decides what to do after a command step fails. autoCountKey
// identifies this step for State.AutoActionCounts bookkeeping (typically
// "<flowID>/<stepID>").
func Route(st *state.State, route *model.ErrorRouting, flowID, stepID, autoCountKey string, continueOnErr bool, lookup StateLookup, prompt PromptFunc) (Decision, error) {
	if route == nil {
		if continueOnErr {
			return Decision{Action: ActionContinue, Reason: "continueOnError"}, nil
		}
		return Decision{Action: ActionFail, Reason: "no error routing configured"}, nil
	}

	// auto-first (Open Question (c)): automatic routing takes precedence
	// over policy-mapped and interactive routing when configured.
	if route.Auto != nil {
		if d, handled := routeAuto(st, route.Auto, autoCountKey); handled {
			return d, nil
		}
	}

	if route.Policy != nil {
		d, err := routePolicy(route.Policy, lookup)
		if err != nil {
			return Decision{}, err
		}
		if d != nil {
			return *d, nil
		}
	}

	if len(route.Actions) > 0 {
		if prompt == nil {
			return Decision{}, errs.New(errs.KindNonInteractive, "error routing requires an interactive action but no driver is available")
		}
		next, err := prompt(route.Actions)
		if err != nil {
			return Decision{}, errs.Wrap(errs.KindPromptCancelled, "error action selection cancelled", err)
		}
		return Decision{Action: ActionTransition, Next: next, Reason: "interactive action"}, nil
	}

	if continueOnErr {
		return Decision{Action: ActionContinue, Reason: "continueOnError"}, nil
	}
	if route.DefaultNext != "" {
		return Decision{Action: ActionTransition, Next: route.DefaultNext, Reason: "defaultNext"}, nil
	}
	return Decision{Action: ActionFail, Reason: "no route matched"}, nil
}

// routeAuto applies the automatic strategy. handled=false means the auto
// route deferred (e.g. retry limit exhausted and no further auto fallback),
// letting the caller fall through to policy/interactive/fail.
func routeAuto(st *state.State, auto *model.AutoRoute, key string) (Decision, bool) {
	switch auto.Strategy {
	case "retry":
		count := st.AutoActionCounts[key]
		if count < auto.Limit {
			st.AutoActionCounts[key] = count + 1
			st.AppendRetry(state.Retry{Attempt: count + 1, Reason: "auto retry"})
			return Decision{Action: ActionRetry, Reason: "auto retry"}, true
		}
		return Decision{}, false
	case "default":
		return Decision{Action: ActionFail, Reason: "auto default (no recovery)"}, true
	case "transition":
		return Decision{Action: ActionTransition, Next: auto.Target, Reason: "auto transition"}, true
	case "exit":
		return Decision{Action: ActionFail, Reason: "auto exit"}, true
	default:
		return Decision{}, false
	}
}

func routePolicy(p *model.PolicyRoute, lookup StateLookup) (*Decision, error) {
	if lookup == nil {
		return nil, nil
	}
	val, ok := lookup(p.Key)
	if !ok {
		val = ""
	}
	key := fmt.Sprint(val)
	next, ok := p.Map[key]
	if !ok {
		if p.Default != "" {
			return &Decision{Action: ActionTransition, Next: p.Default, Reason: "policy default"}, nil
		}
		if p.Required {
			return nil, errs.New(errs.KindPolicyMissing, fmt.Sprintf("onError.policy has no mapping for %q", key))
		}
		return nil, nil
	}
	return &Decision{Action: ActionTransition, Next: next, Reason: "policy mapped"}, nil
}
