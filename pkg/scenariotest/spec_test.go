package scenariotest

import "testing"

func TestParseTestSpec(t *testing.T) {
	doc := `
description: "happy path"
expected_outcome: resolved
expected_status: completed
must_reach:
  - check
  - apply
must_not_reach:
  - rollback
expected_outputs:
  result: "ok"
overrides:
  environment: staging
`
	spec, err := ParseTestSpec([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if spec.ExpectedOutcome != "resolved" {
		t.Errorf("outcome = %q", spec.ExpectedOutcome)
	}
	if len(spec.MustReach) != 2 || len(spec.MustNotReach) != 1 {
		t.Errorf("must_reach/must_not_reach = %d/%d", len(spec.MustReach), len(spec.MustNotReach))
	}
	if spec.Overrides["environment"] != "staging" {
		t.Errorf("overrides.environment = %q", spec.Overrides["environment"])
	}
}

func TestEvaluateAllPass(t *testing.T) {
	spec := &TestSpec{
		ExpectedStatus:  "completed",
		ExpectedOutcome: "resolved",
		MustReach:       []string{"check", "apply"},
		MustNotReach:    []string{"rollback"},
		ExpectedOutputs: map[string]string{"result": "ok"},
	}
	run := &RunResult{
		Status:          "completed",
		OutcomeCategory: "resolved",
		VisitedSteps:    []string{"check", "apply"},
		Outputs:         map[string]any{"result": "ok"},
	}
	results := Evaluate(spec, run)
	if HasFailures(results) {
		for _, r := range results {
			if !r.Passed {
				t.Errorf("unexpected failure: %s: %s", r.Type, r.Message)
			}
		}
	}
	if len(results) != 6 {
		t.Errorf("expected 6 assertions, got %d", len(results))
	}
}

func TestEvaluateMustNotReachFails(t *testing.T) {
	spec := &TestSpec{MustNotReach: []string{"rollback"}}
	run := &RunResult{VisitedSteps: []string{"check", "rollback"}}
	results := Evaluate(spec, run)
	if !HasFailures(results) {
		t.Fatal("expected must_not_reach failure")
	}
}

func TestCompareValueRegex(t *testing.T) {
	if !compareValue("/^ok.*/", "okish") {
		t.Error("expected regex match")
	}
	if compareValue("/^ok.*/", "nope") {
		t.Error("expected regex mismatch")
	}
	if !compareValue("exact", "exact") {
		t.Error("expected exact match")
	}
}
