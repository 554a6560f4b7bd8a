// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pdiddy/partnerform/internal/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect and validate form schemas",
}

var schemaShowCmd = &cobra.Command{
	Use:   "show [file]",
	Short: "Print a schema's sections and fields (default: built-in schema)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadSchemaArg(args)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json-schema"); asJSON {
			data, err := json.MarshalIndent(reg.RecordSchema(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "schema version %s, %d fields\n", reg.Version(), len(reg.FieldKeys()))
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, sec := range reg.Sections() {
			fmt.Fprintf(tw, "\n%s\t(%s)\n", sec.Title, sec.Key)
			for _, f := range sec.Fields {
				fmt.Fprintf(tw, "  %s\t%s\n", f.Key, f.Label)
			}
		}
		return tw.Flush()
	},
}

var schemaValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a schema file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := schema.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d sections, %d fields)\n",
			args[0], len(reg.Sections()), len(reg.FieldKeys()))
		return nil
	},
}

func loadSchemaArg(args []string) (*schema.Registry, error) {
	if len(args) == 1 {
		return schema.Load(args[0])
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return schema.Load(cfg.Extraction.SchemaPath)
}

func init() {
	schemaShowCmd.Flags().Bool("json-schema", false, "print the JSON Schema a finished form must satisfy")

	schemaCmd.AddCommand(schemaShowCmd)
	schemaCmd.AddCommand(schemaValidateCmd)
	rootCmd.AddCommand(schemaCmd)
}
