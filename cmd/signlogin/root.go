// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SignLogin Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/VarshithSidhoju/sign-loginfull/internal/config"
	"github.com/VarshithSidhoju/sign-loginfull/internal/logging"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the signlogin CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signlogin",
		Short: "signlogin - account sign-up and sign-in service",
		Long: `signlogin runs a small JSON API for registering accounts, logging in
and managing a profile, plus a terminal client that talks to it.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/signlogin/config.yaml)")
	cmd.PersistentFlags().String("log-format", "json", "log format (json or text)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewClientCmd())

	return cmd
}

// loadConfig loads and validates the configuration for cmd. Explicitly
// set flags override the file and environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(config.Options{File: configFile, Flags: cmd.Flags()})
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger from cfg and installs it as the
// slog default.
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	logger := logging.Setup("signlogin", version, logging.Options{
		Format: cfg.Log.Format,
		Level:  logging.LevelForMode(cfg.Server.Mode),
		Writer: cmd.ErrOrStderr(),
	})
	slog.SetDefault(logger)
	return logger
}
