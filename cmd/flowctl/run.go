package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/flowctl/flowctl/pkg/checkpoint"
	"github.com/flowctl/flowctl/pkg/command"
	"github.com/flowctl/flowctl/pkg/executor"
	"github.com/flowctl/flowctl/pkg/gitguard"
	"github.com/flowctl/flowctl/pkg/model"
	"github.com/flowctl/flowctl/pkg/options"
	"github.com/flowctl/flowctl/pkg/plugin"
	"github.com/flowctl/flowctl/pkg/plugin/mcpplugin"
	"github.com/flowctl/flowctl/pkg/policy"
	"github.com/flowctl/flowctl/pkg/promptui"
	"github.com/flowctl/flowctl/pkg/telemetry"
)

var (
	runScenario       string
	runVars           []string
	runRepoRoot       string
	runNoTUI          bool
	runNonInteractive bool
	runQuiet          bool
	runVerbose        bool
	runDryRun         bool
	runCheckpointEach int
	runRetention      int
)

var runCmd = &cobra.Command{
	Use:   "run [config.yaml]",
	Short: "Execute a scenario",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&runScenario, "scenario", "", "scenario id (required)")
	cmd.Flags().StringArrayVar(&runVars, "var", nil, "override key=value, repeatable")
	cmd.Flags().StringVar(&runRepoRoot, "repo-root", "", "repository root (defaults to the working directory)")
	cmd.Flags().BoolVar(&runNoTUI, "no-tui", false, "use the line-editing prompt driver instead of the full-screen one")
	cmd.Flags().BoolVar(&runNonInteractive, "non-interactive", false, "fail instead of prompting when an answer is missing")
	cmd.Flags().BoolVar(&runQuiet, "quiet", false, "suppress step/command progress output")
	cmd.Flags().BoolVar(&runVerbose, "verbose", false, "print layered env and rendered commands before running them")
	cmd.Flags().BoolVar(&runDryRun, "dry-run", false, "record commands without spawning them")
	cmd.Flags().IntVar(&runCheckpointEach, "checkpoint-interval", 1, "steps between checkpoint writes")
	cmd.Flags().IntVar(&runRetention, "retention", 10, "max retained run directories per scenario (0 = unlimited)")
	_ = cmd.MarkFlagRequired("scenario")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadAndValidate(args[0])
	if err != nil {
		return err
	}
	return executeConfig(cfg, "", nil)
}

// executeConfig builds the full executor.Context collaborator set and
// runs (or resumes, when resumeRunID is non-empty) the configured
// scenario to completion. ackRuleIDs pre-seeds the policy engine's
// per-run acknowledged set (spec.md §5: "the policy engine's acknowledged
// set is per-run"), letting `flowctl ack` supply consent up front; a
// blocking rule without that consent fails its command step.
func executeConfig(cfg *model.Configuration, resumeRunID string, ackRuleIDs []string) error {
	repoRoot := repoRootOrWD(runRepoRoot)
	overrides, err := parseOverrides(runVars)
	if err != nil {
		return err
	}

	cpMgr, err := checkpoint.Create(checkpoint.Options{
		RepoRoot:   repoRoot,
		ScenarioID: runScenario,
		RunID:      resumeRunID,
		DryRun:     runDryRun,
		Interval:   runCheckpointEach,
		Retention:  runRetention,
	})
	if err != nil {
		return err
	}

	logWriter, err := telemetry.NewFileWriter(filepath.Join(cpMgr.Dir(), "trace.jsonl"), cpMgr.RunID(), telemetry.Options{})
	if err != nil {
		return err
	}
	defer logWriter.Close()

	var promptDriver executor.PromptDriver
	if !runNonInteractive {
		if runNoTUI {
			rl, err := promptui.NewReadlineDriver()
			if err != nil {
				return fmt.Errorf("start readline: %w", err)
			}
			defer rl.Close()
			promptDriver = rl
		} else {
			promptDriver = promptui.NewTeaDriver()
		}
	}

	registry := plugin.NewRegistry()
	for _, ref := range cfg.Plugins {
		if ref.Transport != "mcp" {
			continue
		}
		handler, err := mcpplugin.New(ref)
		if err != nil {
			return fmt.Errorf("plugin %q: %w", ref.Type, err)
		}
		defer handler.Close()
		registry.Register(ref.Type, handler)
	}

	policyEngine := policy.NewEngine(cfg.Policies)
	for _, ruleID := range ackRuleIDs {
		policyEngine.Acknowledge(ruleID)
	}

	ectx := &executor.Context{
		Config:           cfg,
		ScenarioID:       runScenario,
		RepoRoot:         repoRoot,
		Stdout:           os.Stdout,
		Stderr:           os.Stderr,
		DryRun:           runDryRun,
		Quiet:            runQuiet,
		Verbose:          runVerbose,
		Phase:            executor.PhaseExecute,
		NonInteractive:   runNonInteractive,
		PromptDriver:     promptDriver,
		Overrides:        overrides,
		LogWriter:        logWriter,
		CheckpointMgr:    cpMgr,
		PolicyEngine:     policyEngine,
		Plugins:          registry,
		GitGuard:      gitguard.New("flowctl", "flowctl@localhost"),
		Runner:           command.NewRunner(),
		OptionSession: options.Context{
			RepoRoot: repoRoot,
			Phase:    "execute",
			Session:  options.NewSession(),
			Runner:   command.NewRunner(),
		},
		Env: processEnv(),
	}

	opts := executor.RunOpts{}
	if resumeRunID != "" {
		loaded, err := checkpoint.LoadCheckpoint(repoRoot, resumeRunID)
		if err != nil {
			return err
		}
		opts.InitialState = loaded.State
	}

	st, runErr := executor.ExecuteScenario(context.Background(), ectx, opts)
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "run %s failed after %d step(s): %v\n", cpMgr.RunID(), st.TotalDispatched(), runErr)
		return runErr
	}
	fmt.Printf("run %s completed: %d step(s), %d failed\n", cpMgr.RunID(), st.TotalDispatched(), st.FailedSteps)
	return nil
}
