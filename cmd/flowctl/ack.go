package main

import (
	"github.com/spf13/cobra"
)

var ackRules []string

var ackCmd = &cobra.Command{
	Use:   "ack [config.yaml]",
	Short: "Run a scenario with one or more policy rules pre-acknowledged",
	Args:  cobra.ExactArgs(1),
	RunE:  runAck,
}

func init() {
	addRunFlags(ackCmd)
	ackCmd.Flags().StringArrayVar(&ackRules, "rule", nil, "policy rule id to acknowledge, repeatable")
	_ = ackCmd.MarkFlagRequired("rule")
	rootCmd.AddCommand(ackCmd)
}

func runAck(cmd *cobra.Command, args []string) error {
	cfg, err := loadAndValidate(args[0])
	if err != nil {
		return err
	}
	return executeConfig(cfg, "", ackRules)
}
