// Package scenariotest is the scenario-replay test harness (spec.md §7
// "Testable Properties", exposed externally by `flowctl diff`). Grounded
// directly on gert's pkg/kernel/testing package: TestSpec keeps the same
// field names and YAML tags (must_reach, must_not_reach, expected_outcome,
// expected_outputs, ...) since those are a stable fixture-file format, not
// an implementation detail worth renaming.
package scenariotest

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// TestSpec declares what to assert about one scenario replay. All fields
// are optional; an omitted field makes no assertion.
type TestSpec struct {
	Description     string            `yaml:"description,omitempty" json:"description,omitempty"`
	ExpectedOutcome string            `yaml:"expected_outcome,omitempty" json:"expected_outcome,omitempty"`
	ExpectedCode    string            `yaml:"expected_code,omitempty" json:"expected_code,omitempty"`
	ExpectedStatus  string            `yaml:"expected_status,omitempty" json:"expected_status,omitempty"`
	MustReach       []string          `yaml:"must_reach,omitempty" json:"must_reach,omitempty"`
	MustNotReach    []string          `yaml:"must_not_reach,omitempty" json:"must_not_reach,omitempty"`
	ExpectedOutputs map[string]string `yaml:"expected_outputs,omitempty" json:"expected_outputs,omitempty"`
	Overrides       map[string]string `yaml:"overrides,omitempty" json:"overrides,omitempty"`
	Tags            []string          `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// LoadTestSpec reads and parses a test.yaml fixture.
func LoadTestSpec(path string) (*TestSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read test spec: %w", err)
	}
	return ParseTestSpec(data)
}

// ParseTestSpec parses test spec YAML.
func ParseTestSpec(data []byte) (*TestSpec, error) {
	var s TestSpec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse test spec: %w", err)
	}
	return &s, nil
}

// RunResult is the replay data assertions are evaluated against.
type RunResult struct {
	OutcomeCategory string
	OutcomeCode     string
	Status          string
	VisitedSteps    []string
	Outputs         map[string]any
	Error           error
}

// AssertionResult is the outcome of one assertion.
type AssertionResult struct {
	Type     string `json:"type"`
	Key      string `json:"key,omitempty"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message,omitempty"`
}

// Evaluate runs every assertion a TestSpec declares against a RunResult.
func Evaluate(spec *TestSpec, run *RunResult) []AssertionResult {
	var results []AssertionResult

	if spec.ExpectedStatus != "" {
		results = append(results, AssertionResult{
			Type:     "expected_status",
			Expected: spec.ExpectedStatus,
			Actual:   run.Status,
			Passed:   run.Status == spec.ExpectedStatus,
			Message:  fmt.Sprintf("status: expected %q, got %q", spec.ExpectedStatus, run.Status),
		})
	}
	if spec.ExpectedOutcome != "" {
		results = append(results, AssertionResult{
			Type:     "expected_outcome",
			Expected: spec.ExpectedOutcome,
			Actual:   run.OutcomeCategory,
			Passed:   run.OutcomeCategory == spec.ExpectedOutcome,
			Message:  fmt.Sprintf("outcome: expected %q, got %q", spec.ExpectedOutcome, run.OutcomeCategory),
		})
	}
	if spec.ExpectedCode != "" {
		results = append(results, AssertionResult{
			Type:     "expected_code",
			Expected: spec.ExpectedCode,
			Actual:   run.OutcomeCode,
			Passed:   run.OutcomeCode == spec.ExpectedCode,
			Message:  fmt.Sprintf("code: expected %q, got %q", spec.ExpectedCode, run.OutcomeCode),
		})
	}

	visited := make(map[string]bool, len(run.VisitedSteps))
	for _, s := range run.VisitedSteps {
		visited[s] = true
	}
	for _, stepID := range spec.MustReach {
		passed := visited[stepID]
		results = append(results, AssertionResult{
			Type: "must_reach", Key: stepID, Expected: "visited", Actual: visitedWord(passed), Passed: passed,
			Message: fmt.Sprintf("must_reach %q: %s", stepID, visitedWord(passed)),
		})
	}
	for _, stepID := range spec.MustNotReach {
		v := visited[stepID]
		results = append(results, AssertionResult{
			Type: "must_not_reach", Key: stepID, Expected: "not visited", Actual: visitedWord(v), Passed: !v,
			Message: fmt.Sprintf("must_not_reach %q: %s", stepID, visitedWord(v)),
		})
	}
	for key, expected := range spec.ExpectedOutputs {
		actual := ""
		if v, ok := run.Outputs[key]; ok {
			actual = fmt.Sprint(v)
		}
		passed := compareValue(expected, actual)
		results = append(results, AssertionResult{
			Type: "expected_output", Key: key, Expected: expected, Actual: actual, Passed: passed,
			Message: fmt.Sprintf("output %q: expected %q, got %q", key, expected, actual),
		})
	}
	return results
}

// HasFailures reports whether any assertion failed.
func HasFailures(results []AssertionResult) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}

// compareValue supports /regex/ matching in addition to exact equality.
func compareValue(expected, actual string) bool {
	if strings.HasPrefix(expected, "/") && strings.HasSuffix(expected, "/") && len(expected) > 2 {
		re, err := regexp.Compile(expected[1 : len(expected)-1])
		if err != nil {
			return false
		}
		return re.MatchString(actual)
	}
	return expected == actual
}

func visitedWord(b bool) string {
	if b {
		return "visited"
	}
	return "not visited"
}
