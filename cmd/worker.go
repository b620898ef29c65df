/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sitedesk/apiserver/internal/mail"
	"github.com/sitedesk/apiserver/internal/mq"
	"github.com/sitedesk/apiserver/internal/notify"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Delivers notification email from the message queue",
	Long: `Consumes notification events (contact submissions, newsletter
deliveries) from the configured message queue and sends them by email.

Only meaningful with MQ_BACKEND=rabbitmq or MQ_BACKEND=pubsub. With the
in-process queue the server delivers notifications itself.
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return fmt.Errorf("failed to open message queue: %w", err)
		}
		defer queue.Close()

		if queue.Local() {
			return errors.New("worker requires a shared message queue, set MQ_BACKEND to rabbitmq or pubsub")
		}

		dispatcher := notify.NewDispatcher(mail.New(cfg.Mail, logger), cfg.Mail.AdminEmail, logger)
		logger.Info("worker started", "backend", cfg.MQ.Backend, "channel", queue.Channel())
		if err := dispatcher.Run(ctx, queue); err != nil {
			return fmt.Errorf("worker stopped: %w", err)
		}
		logger.Info("worker stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
