package errroute

import (
	"testing"

	"github.com/flowctl/flowctl/pkg/model"
	"github.com/flowctl/flowctl/pkg/state"
)

func TestAutoRetryThenFail(t *testing.T) {
	st := state.New(state.ScenarioRef{ID: "s"}, "r1")
	route := &model.ErrorRouting{Auto: &model.AutoRoute{Strategy: "retry", Limit: 2}}

	var decisions []Decision
	for i := 0; i < 3; i++ {
		d, err := Route(st, route, "main", "deploy", "main/deploy", false, nil, nil)
		if err != nil {
			t.Fatalf("Route: %v", err)
		}
		decisions = append(decisions, d)
	}
	if decisions[0].Action != ActionRetry || decisions[1].Action != ActionRetry {
		t.Fatalf("expected first two attempts to retry, got %+v", decisions)
	}
	if decisions[2].Action != ActionFail {
		t.Fatalf("expected third attempt to fail after limit exhausted, got %+v", decisions[2])
	}
	if len(st.Retries) != 2 {
		t.Fatalf("got %d retries recorded, want 2", len(st.Retries))
	}
}

func TestPolicyRouteRequiredMissingMapping(t *testing.T) {
	st := state.New(state.ScenarioRef{ID: "s"}, "r1")
	route := &model.ErrorRouting{
		Policy: &model.PolicyRoute{Key: "lastCommand.exitCode", Map: map[string]string{"1": "retry-step"}, Required: true},
	}
	lookup := func(key string) (any, bool) { return 42, true }
	_, err := Route(st, route, "main", "deploy", "main/deploy", false, lookup, nil)
	if err == nil {
		t.Fatalf("expected PolicyMissingError")
	}
}

func TestPolicyRouteMapped(t *testing.T) {
	st := state.New(state.ScenarioRef{ID: "s"}, "r1")
	route := &model.ErrorRouting{
		Policy: &model.PolicyRoute{Key: "lastCommand.exitCode", Map: map[string]string{"1": "cleanup"}},
	}
	lookup := func(key string) (any, bool) { return 1, true }
	d, err := Route(st, route, "main", "deploy", "main/deploy", false, lookup, nil)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if d.Action != ActionTransition || d.Next != "cleanup" {
		t.Fatalf("got %+v, want transition to cleanup", d)
	}
}

func TestContinueOnErrorFallthrough(t *testing.T) {
	st := state.New(state.ScenarioRef{ID: "s"}, "r1")
	d, err := Route(st, nil, "main", "deploy", "main/deploy", true, nil, nil)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if d.Action != ActionContinue {
		t.Fatalf("got %+v, want continue", d)
	}
}
