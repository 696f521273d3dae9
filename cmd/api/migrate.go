package main

import (
	"errors"

	"github.com/go-otp-auth/internal/infrastructure/postgres"
	"github.com/spf13/cobra"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(func(m *postgres.Migrator) error {
					if err := m.Up(); err != nil {
						return err
					}
					cmd.Println("Migrations completed successfully")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(func(m *postgres.Migrator) error {
					if err := m.Down(); err != nil {
						return err
					}
					cmd.Println("All migrations rolled back")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(func(m *postgres.Migrator) error {
					v, dirty, err := m.Version()
					if err != nil {
						return err
					}
					cmd.Printf("version %d (dirty=%t)\n", v, dirty)
					return nil
				})
			},
		},
	)
	return cmd
}

func withMigrator(fn func(m *postgres.Migrator) error) error {
	cfg := loadConfig()
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	m, err := postgres.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}
