package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flowctl/flowctl/pkg/configio"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Work with the configuration JSON Schema",
}

var schemaOut string

var schemaExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the configuration document's JSON Schema",
	RunE:  runSchemaExport,
}

func init() {
	schemaExportCmd.Flags().StringVar(&schemaOut, "out", "", "write schema to this file instead of stdout")
	schemaCmd.AddCommand(schemaExportCmd)
	rootCmd.AddCommand(schemaCmd)
}

func runSchemaExport(cmd *cobra.Command, args []string) error {
	data, err := configio.GenerateConfigurationJSONSchema()
	if err != nil {
		return fmt.Errorf("generate schema: %w", err)
	}
	if schemaOut == "" {
		_, err := os.Stdout.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(schemaOut, data, 0o644)
}
