package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"beatgrok/internal/config"
	"beatgrok/internal/discovery"
	"beatgrok/internal/grok"
	"beatgrok/internal/logger"
	"beatgrok/internal/pipeline"
	"beatgrok/internal/server"
	"beatgrok/internal/worker"
)

func newFilesCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Convert zstd log archives to gzipped line protocol",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFiles(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Files.Glob, "glob", cfg.Files.Glob, "input archives")
	f.StringVar(&cfg.Files.OutputDir, "out", cfg.Files.OutputDir, "output directory")
	f.IntVar(&cfg.Files.Workers, "workers", cfg.Files.Workers, "files processed in parallel")
	return cmd
}

// runFiles processes every matching archive. Individual file failures are
// logged and do not fail the run.
func runFiles(ctx context.Context, cfg *config.Config) error {
	if err := cfg.ValidateFiles(); err != nil {
		return err
	}
	log := logger.WithComponent("files")

	paths, err := discovery.Find(cfg.Files.Glob)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		log.Warn().Str("glob", cfg.Files.Glob).Msg("no input archives found")
		return nil
	}

	rules := grok.DefaultRuleset()
	log.Info().Int("files", len(paths)).Int("rules", rules.Len()).Msg("processing archives")

	driver := pipeline.New(pipeline.Config{OutputDir: cfg.Files.OutputDir}, rules)
	pool := worker.NewPool(worker.Config{Processor: driver, Workers: cfg.Files.Workers})

	if cfg.Metrics.Addr != "" {
		srv := server.New(server.Config{
			Addr:  cfg.Metrics.Addr,
			Stats: func() any { return pool.Stats() },
		})
		if err := srv.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	results := pool.Run(ctx, paths)

	failed := 0
	for _, st := range results {
		if st.Err != nil {
			failed++
			log.Warn().Err(st.Err).Str("file", st.Path).Msg("file did not complete")
		}
	}
	stats := pool.Stats()
	log.Info().
		Int("files", len(results)).
		Int("failed", failed).
		Int64("records", stats.Records).
		Msg("all files processed")
	return nil
}
