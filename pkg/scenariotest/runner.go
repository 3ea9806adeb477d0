package scenariotest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flowctl/flowctl/pkg/configio"
	"github.com/flowctl/flowctl/pkg/executor"
	"github.com/flowctl/flowctl/pkg/model"
	"github.com/flowctl/flowctl/pkg/state"
)

// Result is one scenario's replay outcome, grounded on
// gert's kernel/testing.TestResult shape.
type Result struct {
	ConfigFile   string            `json:"configFile"`
	ScenarioID   string            `json:"scenarioId"`
	Status       string            `json:"status"` // passed, failed, skipped, error
	DurationMs   int64             `json:"durationMs"`
	Assertions   []AssertionResult `json:"assertions,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// Summary tallies Result.Status across a config's scenarios.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// Output is the top-level report a `flowctl diff` run produces.
type Output struct {
	ConfigFile string   `json:"configFile"`
	Scenarios  []Result `json:"scenarios"`
	Summary    Summary  `json:"summary"`
}

// Runner replays scenario fixtures against a configuration file.
type Runner struct {
	Timeout  time.Duration
	RepoRoot string
}

// FixtureInfo is one discovered scenario fixture directory.
type FixtureInfo struct {
	ScenarioID string
	Dir        string
}

// DiscoverFixtures finds scenario fixture directories for a configuration
// file. Convention: fixtures live in a sibling `scenarios/<config-base>/`
// directory, one subdirectory per scenario id, each containing a
// `test.yaml` (mirrors gert's `scenarios/<runbook-base>/<scenario>/` test
// layout, retargeted from external scenario dirs to fixtures keyed by a
// Configuration's own scenario ids).
func DiscoverFixtures(configPath string) ([]FixtureInfo, error) {
	dir := filepath.Dir(configPath)
	base := strings.TrimSuffix(filepath.Base(configPath), filepath.Ext(configPath))
	fixturesDir := filepath.Join(dir, "scenarios", base)

	entries, err := os.ReadDir(fixturesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read fixtures dir: %w", err)
	}

	var fixtures []FixtureInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		testFile := filepath.Join(fixturesDir, entry.Name(), "test.yaml")
		if _, err := os.Stat(testFile); err == nil {
			fixtures = append(fixtures, FixtureInfo{ScenarioID: entry.Name(), Dir: filepath.Join(fixturesDir, entry.Name())})
		}
	}
	return fixtures, nil
}

// RunAll discovers and replays every fixture found for configPath.
func (r *Runner) RunAll(configPath string) (*Output, error) {
	fixtures, err := DiscoverFixtures(configPath)
	if err != nil {
		return nil, err
	}
	cfg, valErrs := configio.ValidateFile(configPath)
	if configio.HasErrors(valErrs) {
		return nil, fmt.Errorf("configuration validation failed")
	}

	out := &Output{ConfigFile: configPath}
	for _, fx := range fixtures {
		res := r.runFixture(cfg, configPath, fx)
		out.Scenarios = append(out.Scenarios, res)
		switch res.Status {
		case "passed":
			out.Summary.Passed++
		case "failed":
			out.Summary.Failed++
		case "skipped":
			out.Summary.Skipped++
		case "error":
			out.Summary.Errors++
		}
		out.Summary.Total++
	}
	return out, nil
}

func (r *Runner) runFixture(cfg *model.Configuration, configPath string, fx FixtureInfo) Result {
	start := time.Now()
	testFile := filepath.Join(fx.Dir, "test.yaml")
	spec, err := LoadTestSpec(testFile)
	if err != nil {
		return Result{ConfigFile: configPath, ScenarioID: fx.ScenarioID, Status: "error", DurationMs: time.Since(start).Milliseconds(), Error: err.Error()}
	}

	run, err := r.Replay(cfg, fx.ScenarioID, spec.Overrides)
	if err != nil {
		return Result{ConfigFile: configPath, ScenarioID: fx.ScenarioID, Status: "error", DurationMs: time.Since(start).Milliseconds(), Error: err.Error()}
	}

	assertions := Evaluate(spec, run)
	status := "passed"
	if HasFailures(assertions) {
		status = "failed"
	}
	return Result{
		ConfigFile: configPath,
		ScenarioID: fx.ScenarioID,
		Status:     status,
		DurationMs: time.Since(start).Milliseconds(),
		Assertions: assertions,
	}
}

// Replay runs one scenario to completion (or timeout) with the given
// override map standing in for interactive answers, and reduces the
// resulting state.State into assertion-ready RunResult data.
func (r *Runner) Replay(cfg *model.Configuration, scenarioID string, overrides map[string]string) (*RunResult, error) {
	ov := make(map[string]executor.OverrideValue, len(overrides))
	for k, v := range overrides {
		ov[k] = executor.OverrideValue{Value: v, Source: "test-fixture"}
	}

	ectx := &executor.Context{
		Config:         cfg,
		ScenarioID:     scenarioID,
		RepoRoot:       r.RepoRoot,
		Stdout:         io.Discard,
		Stderr:         io.Discard,
		NonInteractive: true,
		Phase:          executor.PhaseExecute,
		Overrides:      ov,
		Env:            map[string]string{},
	}

	ctx := context.Background()
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	st, runErr := executor.ExecuteScenario(ctx, ectx, executor.RunOpts{RunID: "test-" + uuid.NewString()})

	run := reduceState(st, runErr)
	return run, nil
}

// reduceState projects a finished state.State into the flat RunResult
// shape scenariotest.Evaluate operates on. Visited-step coverage is
// limited to what state.State durably records per step kind (command
// history and skip records carry a stepId; message/branch/compute steps
// don't append a discrete record, matching state.go's own design —
// must_reach/must_not_reach fixtures should target command or iterate
// steps).
func reduceState(st *state.State, runErr error) *RunResult {
	run := &RunResult{Outputs: map[string]any{}}
	if st == nil {
		run.Status = "error"
		run.Error = runErr
		return run
	}

	for _, rec := range st.History {
		run.VisitedSteps = append(run.VisitedSteps, rec.StepID)
	}
	for _, sk := range st.SkippedSteps {
		run.VisitedSteps = append(run.VisitedSteps, sk.StepID)
	}
	for k, v := range st.Answers {
		run.Outputs[k] = v
	}

	if st.TerminalOutcome != nil {
		run.OutcomeCategory = st.TerminalOutcome.Category
		run.OutcomeCode = st.TerminalOutcome.Code
	}

	switch {
	case runErr != nil:
		run.Status = "error"
		run.Error = runErr
	case st.ExitedEarly:
		run.Status = "failed"
	default:
		run.Status = "completed"
	}
	return run
}
