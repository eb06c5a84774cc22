// Package store implements the commands that manage the local database.
package store

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/cmd/common"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/database"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/logger"
)

// Commands returns the store commands for the root command.
func Commands() []*cobra.Command {
	return []*cobra.Command{newFlushAllCmd(), newMigrateCmd()}
}

func newFlushAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flush-all",
		Short: "Delete every discovered object and network device",
		Long:  `Delete every discovered object and network device. The reference table is kept.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return err
			}
			defer deps.Close()

			entities, err := deps.App.Entities(cmd.Context())
			if err != nil {
				return err
			}
			n, err := entities.Flush(cmd.Context())
			if err != nil {
				return err
			}
			deps.Logger.Info("Store flushed", logger.Int64("deleted", n))
			fmt.Fprintf(cmd.OutOrStdout(), "%d entities deleted\n", n)
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(func(deps common.CommandDeps, driver, dsn string) error {
				return database.MigrateUp(driver, dsn, deps.Logger)
			})
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(func(deps common.CommandDeps, driver, dsn string) error {
				return database.MigrateDown(driver, dsn, steps, deps.Logger)
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(func(deps common.CommandDeps, driver, dsn string) error {
				version, dirty, err := database.MigrationVersion(driver, dsn, deps.Logger)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
				return nil
			})
		},
	})
	return cmd
}

func withDatabase(fn func(deps common.CommandDeps, driver, dsn string) error) error {
	deps, err := common.NewCommandDeps()
	if err != nil {
		return err
	}
	defer deps.Close()

	if err = deps.Config.ValidateDatabase(); err != nil {
		return err
	}
	return fn(deps, deps.Config.Database.Driver, deps.Config.Database.DSN)
}
