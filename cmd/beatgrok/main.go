package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"beatgrok/internal/config"
	"beatgrok/internal/logger"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(config.Load()).ExecuteContext(ctx); err != nil {
		logger.Logger.Error().Err(err).Msg("exited with error")
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "beatgrok",
		Short:         "Turn shipped warrior logs into line-protocol metrics",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logger.Init(cfg.LogLevel)
			runID := uuid.New().String()
			logger.Logger = logger.WithRun(runID)
			logger.Logger.Debug().Str("command", cmd.Name()).Msg("starting")
		},
	}

	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&cfg.Metrics.Addr, "metrics-addr", cfg.Metrics.Addr, "serve /health, /stats and /metrics on this address")

	root.AddCommand(newFilesCmd(cfg), newStreamCmd(cfg))
	return root
}
