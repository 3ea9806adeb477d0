package main

import (
	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume [config.yaml] [run-id]",
	Short: "Resume a checkpointed scenario run",
	Args:  cobra.ExactArgs(2),
	RunE:  runResume,
}

func init() {
	addRunFlags(resumeCmd)
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	cfg, err := loadAndValidate(args[0])
	if err != nil {
		return err
	}
	return executeConfig(cfg, args[1], nil)
}
