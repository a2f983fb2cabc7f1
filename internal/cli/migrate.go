package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jokizilla/jokizilla/internal/jokizillasrv/config"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/db/dbmanager"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/db/migrations"
)

func newMigrateCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(m *migrations.Migrator) error {
				if err := m.Up(); err != nil {
					return err
				}
				return printVersion(cmd, opts, m)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down [n]",
		Short: "Roll back the last n migrations (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := 1
			if len(args) == 1 {
				v, err := strconv.Atoi(args[0])
				if err != nil || v < 1 {
					return fmt.Errorf("invalid number of migrations: %s", args[0])
				}
				n = v
			}
			return withMigrator(cmd.Context(), func(m *migrations.Migrator) error {
				if err := m.Down(n); err != nil {
					return err
				}
				return printVersion(cmd, opts, m)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(m *migrations.Migrator) error {
				return printVersion(cmd, opts, m)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Set the schema version without running migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version: %s", args[0])
			}
			return withMigrator(cmd.Context(), func(m *migrations.Migrator) error {
				if err := m.Force(v); err != nil {
					return err
				}
				return printVersion(cmd, opts, m)
			})
		},
	})
	return cmd
}

// withMigrator opens a dedicated pool for fn. Closing the migrator closes the pool.
func withMigrator(ctx context.Context, fn func(m *migrations.Migrator) error) error {
	pool, err := dbmanager.NewPool(ctx, config.Config().DB)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	m, err := migrations.New(pool)
	if err != nil {
		pool.Close()
		return err
	}
	defer m.Close()
	return fn(m)
}

func printVersion(cmd *cobra.Command, opts *globalOptions, m *migrations.Migrator) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if opts.jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{"version": version, "dirty": dirty})
	}
	if dirty {
		errorLabel.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty)\n", version)
		return nil
	}
	okLabel.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
	return nil
}
