// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/trainhub/internal/config"
)

// NewConfigCmd creates the config subcommand.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}
	cmd.AddCommand(newConfigSchemaCmd())
	cmd.AddCommand(newConfigValidateCmd())
	return cmd
}

func newConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			if _, err := cmd.OutOrStdout().Write(append(schema, '\n')); err != nil {
				return oops.With("operation", "write schema").Wrap(err)
			}
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a config file against the schema and the server's rules",
		Long: `Validate a YAML config file. The file is checked against the JSON Schema,
then loaded with defaults, the environment and flags applied, and checked again
the way serve would.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path) //nolint:gosec // path is an operator-supplied argument
			if err != nil {
				return oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
			}
			if err := config.ValidateSchema(data); err != nil {
				return err
			}
			if _, err := config.Load(config.LoadOptions{ConfigFile: path, EnvFile: envFile, Flags: cmd.Flags()}); err != nil {
				return err
			}
			cmd.Printf("%s: OK\n", path)
			return nil
		},
	}
}
