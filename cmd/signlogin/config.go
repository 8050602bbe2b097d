// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SignLogin Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/VarshithSidhoju/sign-loginfull/internal/config"
)

// NewConfigCmd creates the config command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Long: `Print the configuration after applying defaults, the config file,
SIGNLOGIN_* environment variables and flags. Secrets are redacted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(config.Options{File: configFile, Flags: cmd.Flags()})
			if err != nil {
				return err
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			cmd.Println(string(schema))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate FILE",
		Short: "Check a config file against the schema and value rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigValidate(cmd, args[0])
		},
	})

	return cmd
}

func runConfigValidate(cmd *cobra.Command, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return oops.Code("CONFIG_FILE_MISSING").With("path", path).Wrap(err)
	}
	if err := config.ValidateSchema(data); err != nil {
		return oops.With("path", path).Wrap(err)
	}

	// Only the file is checked; the environment must not mask its mistakes.
	cfg, err := config.Load(config.Options{File: path, Environ: func() []string { return nil }})
	if err != nil {
		return err
	}
	if err := cfg.ValidateClient(); err != nil {
		return oops.With("path", path).Wrap(err)
	}

	cmd.Printf("%s is valid\n", path)
	return nil
}
