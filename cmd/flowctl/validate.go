package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flowctl/flowctl/pkg/configio"
)

var validateCmd = &cobra.Command{
	Use:   "validate [config.yaml]",
	Short: "Validate a scenario configuration through the structural/semantic/domain pipeline",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, valErrs := configio.ValidateFile(args[0])

	var errorCount int
	for _, e := range valErrs {
		marker := "warning"
		if e.Severity == "error" {
			marker = "error"
			errorCount++
		}
		fmt.Fprintf(os.Stderr, "  %s [%s] %s", marker, e.Phase, e.Message)
		if e.Path != "" {
			fmt.Fprintf(os.Stderr, " (at %s)", e.Path)
		}
		fmt.Fprintln(os.Stderr)
	}
	if errorCount > 0 {
		return fmt.Errorf("validation failed with %d error(s)", errorCount)
	}
	fmt.Printf("valid: %s (%d scenario(s), %d flow(s))\n", cfg.Meta.Name, len(cfg.Scenarios), len(cfg.Flows))
	return nil
}
