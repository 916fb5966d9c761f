// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

package main

import (
	"context"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/tokengate/tokengate/internal/store"
)

// MigrateDeps contains injectable dependencies for the migrate commands.
type MigrateDeps struct {
	// MigratorFactory creates a migrator from a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)

	// IndexInspector lists the required indexes missing from the database.
	// Default: store.Connect + store.MissingIndexes
	IndexInspector func(ctx context.Context, databaseURL string) ([]string, error)
}

func (d *MigrateDeps) withDefaults() *MigrateDeps {
	out := MigrateDeps{}
	if d != nil {
		out = *d
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(databaseURL string) (Migrator, error) {
			m, err := store.NewMigrator(databaseURL)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	}
	if out.IndexInspector == nil {
		out.IndexInspector = inspectIndexes
	}
	return &out
}

func inspectIndexes(ctx context.Context, databaseURL string) ([]string, error) {
	pool, err := store.Connect(ctx, databaseURL, store.ConnectOptions{Attempts: 1})
	if err != nil {
		return nil, err //nolint:wrapcheck // store.Connect returns coded errors
	}
	defer pool.Close()
	return store.MissingIndexes(ctx, pool) //nolint:wrapcheck // store returns coded errors
}

// NewMigrateCmd creates the migrate command group.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmdWithDeps(nil)
}

func newMigrateCmdWithDeps(deps *MigrateDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long:  `Apply, roll back or inspect the embedded PostgreSQL migrations.`,
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection URL (overrides DATABASE_URL)")

	var all bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration (or all with --all)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator, _ string) error {
				if all {
					cmd.Println("Rolling back all migrations...")
					if err := m.Down(); err != nil {
						return oops.Code("MIGRATION_FAILED").With("operation", "roll back all").Wrap(err)
					}
				} else {
					cmd.Println("Rolling back one migration...")
					if err := m.Steps(-1); err != nil {
						return oops.Code("MIGRATION_FAILED").With("operation", "roll back one").Wrap(err)
					}
				}
				cmd.Println("Rollback completed successfully")
				return nil
			})
		},
	}
	down.Flags().BoolVar(&all, "all", false, "roll back every migration")

	force := &cobra.Command{
		Use:   "force <version>",
		Short: "Record a schema version without running migrations",
		Long: `Set the recorded schema version and clear the dirty flag without running
any SQL. Use it after repairing a failed migration by hand. Version 0 marks
the database as never migrated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return oops.Code("INVALID_ARGUMENT").With("version", args[0]).Wrap(err)
			}
			return withMigrator(cmd, deps, func(m Migrator, _ string) error {
				if err := m.Force(uint(version)); err != nil {
					return err //nolint:wrapcheck // store returns coded errors
				}
				cmd.Printf("Schema version forced to %d\n", version)
				return nil
			})
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, deps, func(m Migrator, _ string) error {
					cmd.Println("Running migrations...")
					if err := m.Up(); err != nil {
						return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
					}
					cmd.Println("Migrations completed successfully")
					return nil
				})
			},
		},
		down,
		force,
		&cobra.Command{
			Use:   "status",
			Short: "Show the schema version, pending migrations and required indexes",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, deps, func(m Migrator, databaseURL string) error {
					return printMigrationStatus(cmd, deps.withDefaults().IndexInspector, m, databaseURL)
				})
			},
		},
	)
	return cmd
}

// withMigrator resolves the database URL, opens a migrator, runs fn with
// both and closes the migrator.
func withMigrator(cmd *cobra.Command, deps *MigrateDeps, fn func(m Migrator, databaseURL string) error) (err error) {
	deps = deps.withDefaults()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").With("field", "database.url").
			Errorf("database url is required: set DATABASE_URL, database.url or --database-url")
	}

	m, err := deps.MigratorFactory(cfg.Database.URL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = oops.Code("MIGRATION_FAILED").With("operation", "close migrator").Wrap(closeErr)
		}
	}()

	return fn(m, cfg.Database.URL)
}

func printMigrationStatus(
	cmd *cobra.Command,
	inspect func(ctx context.Context, databaseURL string) ([]string, error),
	m Migrator,
	databaseURL string,
) error {
	status, err := m.Status()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "read status").Wrap(err)
	}

	state := "clean"
	if status.Dirty {
		state = "dirty"
	}
	cmd.Printf("Schema version: %d (%s)\n", status.Version, state)

	cmd.Printf("Applied migrations: %d\n", len(status.Applied))
	for _, mig := range status.Applied {
		cmd.Printf("  %s\n", mig)
	}
	cmd.Printf("Pending migrations: %d\n", len(status.Pending))
	for _, mig := range status.Pending {
		cmd.Printf("  %s\n", mig)
	}

	missing, err := inspect(cmd.Context(), databaseURL)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "inspect indexes").Wrap(err)
	}
	if len(missing) == 0 {
		cmd.Println("Required indexes: ok")
	} else {
		cmd.Println("Required indexes missing: " + strings.Join(missing, ", "))
	}
	return nil
}
