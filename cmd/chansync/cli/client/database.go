package client

import (
	"fmt"

	"github.com/mwantia/chansync/pkg/db/migrations"
	"github.com/spf13/cobra"
)

func NewDatabaseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the metadata database",
		Long:  "Apply, inspect or roll back the schema migrations of the sqlite metadata store.",
	}

	cmd.AddCommand(newDatabaseMigrateCommand())
	cmd.AddCommand(newDatabaseStatusCommand())
	cmd.AddCommand(newDatabaseRollbackCommand())

	return cmd
}

func newDatabaseMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openMetadata(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	}
}

func newDatabaseStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openMetadata(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			status, err := migrations.NewMigrator(db.DB()).Status(cmd.Context())
			if err != nil {
				return err
			}

			for _, s := range status {
				applied := "pending"
				if s.Applied {
					applied = "applied"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%3d  %-8s %s\n", s.Version, applied, s.Description)
			}
			return nil
		},
	}
}

func newDatabaseRollbackCommand() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Roll back the most recent migration",
		Long:  "Rolls back the most recently applied migration. Dropping the records table loses the mapping (needs confirmation).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return fmt.Errorf("rollback may drop data, rerun with --confirm")
			}

			db, err := openMetadata(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := migrations.NewMigrator(db.DB()).Rollback(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Rolled back latest migration")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&confirm, "confirm", "c", false, "Confirms the rollback")

	return cmd
}
