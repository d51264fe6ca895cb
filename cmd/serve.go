package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"datemate/pkg/config"
	"datemate/pkg/gateway"
	"datemate/pkg/logger"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP backend",
	Long:  "Serves the persona and call REST API and the Vapi tool-call webhook until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		appLogger, err := logger.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		slog.SetDefault(appLogger)
		log := slog.Default().With("component", "cmd.serve")

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, err := gateway.NewService(cfg, log)
		if err != nil {
			log.Error("Failed to initialize service", "error", err)
			return fmt.Errorf("initialize service: %w", err)
		}

		log.Info("DateMate backend starting",
			"host", cfg.Server.Host,
			"port", cfg.Server.Port,
			"verify_webhooks", cfg.WebhookSecretConfigured(),
			"telegram_alerts", cfg.Alerts.Telegram.Enabled,
		)
		if err := svc.Run(runCtx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			log.Error("Server runtime failed", "error", err)
			return fmt.Errorf("server runtime: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
