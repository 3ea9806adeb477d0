package state

import (
	"encoding/json"
	"testing"
)

func TestAppendHistoryUpdatesCounters(t *testing.T) {
	s := New(ScenarioRef{ID: "deploy"}, "20260101-000000-deploy")
	s.AppendHistory(CommandRecord{StepID: "a", Success: true})
	s.AppendHistory(CommandRecord{StepID: "b", Success: false})
	s.AppendSkip(Skip{StepID: "c", Reason: "branch"})

	if s.CompletedSteps != 1 || s.FailedSteps != 1 {
		t.Fatalf("got completed=%d failed=%d, want 1,1", s.CompletedSteps, s.FailedSteps)
	}
	if s.TotalDispatched() != 3 {
		t.Fatalf("TotalDispatched() = %d, want 3", s.TotalDispatched())
	}
	if s.LastCommand == nil || s.LastCommand.StepID != "b" {
		t.Fatalf("LastCommand not updated to most recent record")
	}
}

func TestRedactBeforeInsertion(t *testing.T) {
	answers := map[string]any{}
	captured := map[string]any{
		"token": "abc",
		"count": 2.0,
		"nested": map[string]any{
			"token": "xyz",
		},
	}
	StoreAnswer(answers, "payload", captured, []string{"token"})

	payload := answers["payload"].(map[string]any)
	if payload["token"] != Redacted {
		t.Fatalf("token = %v, want %q", payload["token"], Redacted)
	}
	if payload["count"] != 2.0 {
		t.Fatalf("count = %v, want 2.0", payload["count"])
	}
	nested := payload["nested"].(map[string]any)
	if nested["token"] != Redacted {
		t.Fatalf("nested.token = %v, want %q", nested["token"], Redacted)
	}
}

func TestSerializeHydrateRoundTrip(t *testing.T) {
	s := New(ScenarioRef{ID: "deploy", Label: "Deploy"}, "20260101-000000-deploy")
	s.AppendHistory(CommandRecord{FlowID: "main", StepID: "echo", Command: "echo hi", Success: true, ExitCode: 0})
	s.AppendPolicyDecision(PolicyDecision{RuleID: "block-prod", RuleLevel: "block", EnforcedLevel: "warn", Acknowledged: true})
	s.Finalize(false)

	data, err := Serialize(s)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	got, err := Hydrate(data)
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}

	wantJSON, _ := json.Marshal(s)
	gotJSON, _ := json.Marshal(got)
	if string(wantJSON) != string(gotJSON) {
		t.Fatalf("round-trip mismatch:\nwant %s\ngot  %s", wantJSON, gotJSON)
	}
}

func TestTotalDispatchedInvariant(t *testing.T) {
	s := New(ScenarioRef{ID: "x"}, "r1")
	for i := 0; i < 5; i++ {
		s.AppendHistory(CommandRecord{StepID: "s", Success: i%2 == 0})
	}
	s.AppendSkip(Skip{StepID: "skip-1"})
	if got := s.TotalDispatched(); got != 6 {
		t.Fatalf("TotalDispatched() = %d, want 6", got)
	}
}
