package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/weeklymenu/weeklymenu/internal/config"
	"github.com/weeklymenu/weeklymenu/internal/logger"
)

var runNow bool

var rootCmd = &cobra.Command{
	Use:           "weeklymenu",
	Short:         "Email ten weekly dish ideas every Friday morning",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().BoolVar(&runNow, "now", false, "run the job once and exit (same as RUN_IMMEDIATELY=1)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info().Str("version", version).Msg("starting weeklymenu")

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return err
	}
	warnMissingFiles(cfg, log)

	a, cleanup, err := newApp(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize")
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if runNow || cfg.Schedule.OneShot() {
		return a.runOnce(ctx)
	}
	return a.serve(ctx)
}
