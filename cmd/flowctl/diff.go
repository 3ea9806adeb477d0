package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowctl/flowctl/pkg/scenariotest"
)

var (
	diffJSON    bool
	diffTimeout time.Duration
)

var diffCmd = &cobra.Command{
	Use:   "diff [config.yaml]",
	Short: "Replay scenario fixtures and report changed outcomes",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiff,
}

func init() {
	diffCmd.Flags().BoolVar(&diffJSON, "json", false, "print the raw JSON report instead of the summary")
	diffCmd.Flags().DurationVar(&diffTimeout, "timeout", 30*time.Second, "per-scenario replay timeout")
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	runner := &scenariotest.Runner{Timeout: diffTimeout, RepoRoot: repoRootOrWD("")}
	out, err := runner.RunAll(args[0])
	if err != nil {
		return err
	}

	if diffJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	scenariotest.WriteText(os.Stdout, out)

	changed := out.Summary.Failed + out.Summary.Errors
	if changed > 0 {
		return fmt.Errorf("%d scenario(s) changed", changed)
	}
	return nil
}
