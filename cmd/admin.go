/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sitedesk/apiserver/config"
	"github.com/sitedesk/apiserver/internal/auth"
	"github.com/sitedesk/apiserver/internal/db"
	"github.com/sitedesk/apiserver/internal/services"
	"github.com/sitedesk/apiserver/internal/store"
)

var (
	adminUsername string
	adminEmail    string
	adminPassword string
	adminSeedFile string
)

// adminCmd groups administrator provisioning. Admins are never created over HTTP.
var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage administrator accounts",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an administrator",
	Long: `Create an administrator account. Usage:

	sitedesk admin create --username alice --email alice@example.com

The password is prompted for when --password is omitted.
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password := adminPassword
		if password == "" {
			var err error
			password, err = promptPassword(cmd)
			if err != nil {
				return err
			}
		}

		return withAdminService(cmd, func(svc *services.AdminService) error {
			admin, err := svc.Create(cmd.Context(), services.NewAdmin{
				Username: adminUsername,
				Email:    adminEmail,
				Password: password,
			})
			if err != nil {
				return err
			}
			cmd.Printf("admin %q created (id %s)\n", admin.Username, admin.ID)
			return nil
		})
	},
}

var adminSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create administrators listed in a YAML file",
	Long: `Create every administrator listed in a YAML file that does not exist yet:

	- username: alice
	  email: alice@example.com
	  password: change-me-now
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdminService(cmd, func(svc *services.AdminService) error {
			created, err := svc.SeedFromFile(cmd.Context(), adminSeedFile)
			if err != nil {
				return err
			}
			cmd.Printf("%d admin(s) created\n", created)
			return nil
		})
	},
}

var adminListCmd = &cobra.Command{
	Use:   "list",
	Short: "List administrators",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd, func(conn *sqlx.DB, _ config.Config, _ *slog.Logger) error {
			admins, err := store.NewAdminRepository(conn).List(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "USERNAME\tEMAIL\tACTIVE\tLAST LOGIN")
			for _, a := range admins {
				lastLogin := "never"
				if a.LastLogin != nil {
					lastLogin = a.LastLogin.Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", a.Username, a.Email, a.IsActive, lastLogin)
			}
			return tw.Flush()
		})
	},
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminCreateCmd, adminSeedCmd, adminListCmd)

	adminCreateCmd.Flags().StringVar(&adminUsername, "username", "", "admin username (required)")
	adminCreateCmd.Flags().StringVar(&adminEmail, "email", "", "admin email (required)")
	adminCreateCmd.Flags().StringVar(&adminPassword, "password", "", "admin password (prompted if omitted)")
	_ = adminCreateCmd.MarkFlagRequired("username")
	_ = adminCreateCmd.MarkFlagRequired("email")

	adminSeedCmd.Flags().StringVar(&adminSeedFile, "file", "admins.yaml", "YAML file listing admins")
}

func withAdminService(cmd *cobra.Command, fn func(*services.AdminService) error) error {
	return withDatabase(cmd, func(conn *sqlx.DB, cfg config.Config, logger *slog.Logger) error {
		if cfg.Database.AutoMigrate {
			if err := db.MigrateUp(conn, cfg.Database); err != nil {
				return fmt.Errorf("migrate up failed: %w", err)
			}
		}
		hasher, err := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
		if err != nil {
			return err
		}
		return fn(services.NewAdminService(store.NewAdminRepository(conn), hasher, logger))
	})
}

func promptPassword(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("--password is required when stdin is not a terminal")
	}

	cmd.Print("Password: ")
	pass, err := term.ReadPassword(fd)
	cmd.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	cmd.Print("Confirm password: ")
	confirm, err := term.ReadPassword(fd)
	cmd.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if string(pass) != string(confirm) {
		return "", errors.New("passwords do not match")
	}
	return string(pass), nil
}
