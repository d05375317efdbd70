package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nonagon/core/internal/app"
	"github.com/nonagon/core/internal/gateway"
	"github.com/nonagon/core/internal/logging"
	"github.com/nonagon/core/internal/metricsserver"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the flush loop and announcement scheduler",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	logging.Setup(cfg.Log)
	logger := slog.Default()

	if cfg.Gateway.BotToken == "" {
		logger.Warn("serve: no gateway.bot_token configured; running with the in-memory fake transport")
	}

	// The real chat-gateway transport is an excluded external
	// collaborator (spec.md §1) — only its contract is implemented here.
	// A deployment embedding a real gateway library supplies its own
	// gateway.Outbound/gateway.Inbound and calls app.New directly instead
	// of going through this subcommand.
	outbound := gateway.NewFake()

	application, err := app.New(cfg, outbound)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	application.Start(ctx, logger)
	logger.Info("serve: background loops started")

	var metrics *metricsserver.Server
	if cfg.Metrics.Enabled {
		metrics = metricsserver.New(cfg.Metrics.Addr, nil)
		go func() {
			if err := metrics.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error("serve: metrics server error", "error", err)
			}
		}()
		logger.Info("serve: metrics server started", "addr", cfg.Metrics.Addr)
	}

	<-sigCh
	logger.Info("serve: received shutdown signal")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if metrics != nil {
		if err := metrics.Shutdown(shutdownCtx); err != nil {
			logger.Error("serve: error shutting down metrics server", "error", err)
		}
	}

	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Error("serve: error during shutdown", "error", err)
		return err
	}
	logger.Info("serve: stopped")
	return nil
}
