/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/sitedesk/apiserver/config"
	"github.com/sitedesk/apiserver/internal/db"
)

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all up migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd, func(conn *sqlx.DB, cfg config.Config, _ *slog.Logger) error {
			if err := db.MigrateUp(conn, cfg.Database); err != nil {
				return fmt.Errorf("migrate up failed: %w", err)
			}
			return printVersion(cmd, conn, cfg)
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert all migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd, func(conn *sqlx.DB, cfg config.Config, _ *slog.Logger) error {
			if err := db.MigrateDown(conn, cfg.Database); err != nil {
				return fmt.Errorf("migrate down failed: %w", err)
			}
			return printVersion(cmd, conn, cfg)
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd, func(conn *sqlx.DB, cfg config.Config, _ *slog.Logger) error {
			return printVersion(cmd, conn, cfg)
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
}

// withDatabase opens the configured database for the duration of fn.
func withDatabase(cmd *cobra.Command, fn func(*sqlx.DB, config.Config, *slog.Logger) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	conn, err := db.Open(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer conn.Close()
	return fn(conn, cfg, logger)
}

func printVersion(cmd *cobra.Command, conn *sqlx.DB, cfg config.Config) error {
	version, dirty, err := db.MigrationVersion(conn, cfg.Database)
	if err != nil {
		return err
	}
	switch {
	case version == 0:
		cmd.Println("schema version: none")
	case dirty:
		cmd.Printf("schema version: %d (dirty)\n", version)
	default:
		cmd.Printf("schema version: %d\n", version)
	}
	return nil
}
