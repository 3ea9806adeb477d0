// Command flowctl compiles and executes declarative scenario
// configurations (spec.md §6 "External Interfaces"). Grounded on gert's
// cmd/gert/main.go: a cobra root plus one file per subcommand family, a
// gitignored .env loaded before anything else, version set via ldflags.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "flowctl",
	Short: "Scenario compiler and executor for developer workflows",
	Long:  "flowctl compiles declarative scenario configurations into plans and executes them, with checkpointing, policy enforcement, and pluggable step types.",
}

func main() {
	_ = godotenv.Load() // .env is optional; missing file is not an error

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCodeFor(err))
	}
}
