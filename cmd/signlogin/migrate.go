// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SignLogin Contributors

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/VarshithSidhoju/sign-loginfull/internal/store"
)

// Migrator is the part of store.Migrator the migrate commands use.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Status() (*store.Status, error)
	Version() (uint, bool, error)
	Force(version int) error
	Close() error
}

// migratorFactory is replaced in tests.
var migratorFactory = func(databaseURL string) (Migrator, error) {
	return store.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate command group.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back and inspect the embedded PostgreSQL schema migrations.`,
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection URL (default: database.url from config)")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m Migrator) error {
				cmd.Println("Running migrations...")
				if err := m.Up(); err != nil {
					return err
				}
				cmd.Println("Migrations completed successfully")
				return nil
			})
		},
	})

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations (drops every table)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			yes, err := cmd.Flags().GetBool("yes")
			if err != nil {
				return oops.Code("FLAG_READ_FAILED").Wrap(err)
			}
			if !yes {
				return oops.Code("CONFIRMATION_REQUIRED").
					Errorf("migrate down deletes all users; re-run with --yes to confirm")
			}
			return withMigrator(cmd, func(m Migrator) error {
				cmd.Println("Rolling back migrations...")
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("All migrations rolled back")
				return nil
			})
		},
	}
	down.Flags().Bool("yes", false, "confirm the rollback")
	cmd.AddCommand(down)

	steps := &cobra.Command{
		Use:   "steps N",
		Short: "Apply the next N migrations, or roll back N with --down",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseSteps(args[0])
			if err != nil {
				return err
			}
			down, err := cmd.Flags().GetBool("down")
			if err != nil {
				return oops.Code("FLAG_READ_FAILED").Wrap(err)
			}
			yes, err := cmd.Flags().GetBool("yes")
			if err != nil {
				return oops.Code("FLAG_READ_FAILED").Wrap(err)
			}
			if down && !yes {
				return oops.Code("CONFIRMATION_REQUIRED").
					Errorf("rolling back migrations can delete users; re-run with --yes to confirm")
			}
			if down {
				n = -n
			}
			return withMigrator(cmd, func(m Migrator) error {
				if err := m.Steps(n); err != nil {
					return err
				}
				if down {
					cmd.Printf("Rolled back %d migration(s)\n", -n)
				} else {
					cmd.Printf("Applied %d migration(s)\n", n)
				}
				return nil
			})
		},
	}
	steps.Flags().Bool("down", false, "roll back instead of applying")
	steps.Flags().Bool("yes", false, "confirm a rollback")
	cmd.AddCommand(steps)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m Migrator) error {
				st, err := m.Status()
				if err != nil {
					return err
				}
				printStatus(cmd, st)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m Migrator) error {
				v, dirty, err := m.Version()
				if err != nil {
					return err
				}
				if dirty {
					cmd.Printf("%d (dirty)\n", v)
				} else {
					cmd.Printf("%d\n", v)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations",
		Long: `Record VERSION as the current schema version and clear the dirty flag.
Use this only after repairing a failed migration by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, func(m Migrator) error {
				if err := m.Force(version); err != nil {
					return err
				}
				cmd.Printf("Forced schema version to %d\n", version)
				return nil
			})
		},
	})

	return cmd
}

// withMigrator resolves the database URL, opens a migrator, runs fn and
// closes it.
func withMigrator(cmd *cobra.Command, fn func(Migrator) error) error {
	databaseURL, err := getDatabaseURL(cmd)
	if err != nil {
		return err
	}

	m, err := migratorFactory(databaseURL)
	if err != nil {
		return oops.With("operation", "connect to database").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			cmd.PrintErrf("warning: %v\n", closeErr)
		}
	}()

	return fn(m)
}

// getDatabaseURL returns the database URL from flags, environment or the
// config file.
func getDatabaseURL(cmd *cobra.Command) (string, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return "", err
	}
	if cfg.Database.URL == "" {
		return "", oops.Code("CONFIG_INVALID").
			With("key", "database.url").
			Errorf("database.url is required (set --database-url or SIGNLOGIN_DATABASE__URL)")
	}
	return cfg.Database.URL, nil
}

// parseForceVersion reads a leading integer. Sign checks are left to
// Migrator.Force.
func parseForceVersion(s string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be an integer, got %q", s)
	}
	return version, nil
}

// parseSteps reads a positive migration count.
func parseSteps(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0, oops.Code("INVALID_STEPS").With("input", s).Errorf("steps must be a positive integer, got %q", s)
	}
	return n, nil
}

func printStatus(cmd *cobra.Command, st *store.Status) {
	state := "clean"
	if st.Dirty {
		state = "dirty"
	}
	cmd.Printf("Current version: %d (%s)\n", st.Version, state)

	for _, v := range st.Applied {
		cmd.Printf("  [applied] %s\n", migrationLabel(v))
	}
	for _, v := range st.Pending {
		cmd.Printf("  [pending] %s\n", migrationLabel(v))
	}
	if len(st.Pending) == 0 {
		cmd.Println("Schema is up to date")
	}
}

func migrationLabel(v uint) string {
	name, err := store.MigrationName(v)
	if err != nil || name == "" {
		return fmt.Sprintf("%06d", v)
	}
	return name
}
