package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/flowctl/flowctl/pkg/command"
	"github.com/flowctl/flowctl/pkg/compiler"
	"github.com/flowctl/flowctl/pkg/options"
	"github.com/flowctl/flowctl/pkg/planformat"
)

var (
	planScenario string
	planVars     []string
	planFormat   string
	planRepoRoot string
)

var planCmd = &cobra.Command{
	Use:   "plan [config.yaml]",
	Short: "Build and render a dry-run plan for a scenario",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planScenario, "scenario", "", "scenario id (required)")
	planCmd.Flags().StringArrayVar(&planVars, "var", nil, "override key=value, repeatable")
	planCmd.Flags().StringVar(&planFormat, "format", "text", "output format: text|ndjson|json")
	planCmd.Flags().StringVar(&planRepoRoot, "repo-root", "", "repository root (defaults to the working directory)")
	_ = planCmd.MarkFlagRequired("scenario")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadAndValidate(args[0])
	if err != nil {
		return err
	}
	overrides, err := parseOverrides(planVars)
	if err != nil {
		return err
	}
	compilerOverrides := make(map[string]compiler.OverrideEntry, len(overrides))
	for k, v := range overrides {
		compilerOverrides[k] = compiler.OverrideEntry{Key: k, Value: v.Value, Source: v.Source}
	}

	repoRoot := repoRootOrWD(planRepoRoot)
	opts := compiler.Options{
		Config:     cfg,
		ScenarioID: planScenario,
		Overrides:  compilerOverrides,
		Env:        processEnv(),
		RepoRoot:   repoRoot,
		OptionSession: options.Context{
			RepoRoot: repoRoot,
			Phase:    "collect",
			Session:  options.NewSession(),
			Runner:   command.NewRunner(),
		},
	}

	plan, err := compiler.BuildScenarioPlan(context.Background(), opts)
	if err != nil {
		return err
	}

	return planformat.Write(os.Stdout, plan, planformat.Format(planFormat))
}
