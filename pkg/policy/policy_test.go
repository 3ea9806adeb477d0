package policy

import (
	"testing"

	"github.com/flowctl/flowctl/pkg/model"
)

func blockProdRule() model.PolicyRule {
	return model.PolicyRule{
		ID:    "block-prod",
		Level: model.PolicyBlock,
		Matcher: model.PolicyMatcher{
			Patterns: []string{`deploy\s+--channel\s+prod`},
		},
	}
}

func TestEvaluateBlocksWithoutAcknowledgement(t *testing.T) {
	e := NewEngine([]model.PolicyRule{blockProdRule()})
	decisions := e.Evaluate(MatchContext{Command: "deploy --channel prod"})
	if len(decisions) != 1 {
		t.Fatalf("got %d decisions, want 1", len(decisions))
	}
	d := decisions[0]
	if d.EnforcedLevel != model.PolicyBlock || d.Acknowledged {
		t.Fatalf("got %+v, want block/unacknowledged", d)
	}
}

func TestAcknowledgeDowngradesToWarn(t *testing.T) {
	e := NewEngine([]model.PolicyRule{blockProdRule()})
	e.Acknowledge("block-prod")
	decisions := e.Evaluate(MatchContext{Command: "deploy --channel prod"})
	d := decisions[0]
	if d.EnforcedLevel != model.PolicyWarn || !d.Acknowledged {
		t.Fatalf("got %+v, want warn/acknowledged", d)
	}
}

func TestNonMatchingCommandProducesNoDecision(t *testing.T) {
	e := NewEngine([]model.PolicyRule{blockProdRule()})
	decisions := e.Evaluate(MatchContext{Command: "deploy --channel staging"})
	if len(decisions) != 0 {
		t.Fatalf("got %d decisions, want 0", len(decisions))
	}
}

func TestMostRestrictivePicksHighestSeverity(t *testing.T) {
	decisions := []Decision{
		{RuleID: "a", EnforcedLevel: model.PolicyWarn},
		{RuleID: "b", EnforcedLevel: model.PolicyBlock},
	}
	best, ok := MostRestrictive(decisions)
	if !ok || best.RuleID != "b" {
		t.Fatalf("got %+v, want rule b", best)
	}
}
