package main

import (
	"fmt"

	"github.com/rbutdayev/xpos-sub008/internal/database"
	"github.com/rbutdayev/xpos-sub008/internal/logging"
	"github.com/rbutdayev/xpos-sub008/pkg/server"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the local database schema",
	Long: `Apply, roll back or inspect the embedded schema migrations of the kiosk
database at DB_PATH. Only the database and log settings are read.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrations(cmd, func(m *database.MigrationManager) error {
			if err := m.RunMigrations(); err != nil {
				return err
			}
			return m.ValidateSchema()
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the last migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrations(cmd, func(m *database.MigrationManager) error {
			return m.RollbackMigration()
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrations(cmd, func(m *database.MigrationManager) error {
			info, err := m.GetMigrationStatus()
			if err != nil {
				return err
			}

			if !info.Applied {
				fmt.Println("No migrations applied")
				return nil
			}
			fmt.Printf("Schema version: %d\n", info.Version)
			if info.Dirty {
				fmt.Println("   Database is dirty; the next 'migrate up' forces the recorded version")
			}
			return nil
		})
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

// withMigrations opens the database without auto-migrating and hands fn a
// migration manager bound to it
func withMigrations(cmd *cobra.Command, fn func(*database.MigrationManager) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Database.AutoMigrate = false

	logger, logCloser, err := logging.New(cfg)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	db, err := server.OpenDatabase(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	migrations, err := db.GetMigrationManager()
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"db_path": cfg.Database.Path,
		"action":  cmd.Name(),
	}).Info("Running migration command")

	return fn(migrations)
}
