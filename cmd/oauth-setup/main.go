package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/weeklymenu/weeklymenu/internal/apperr"
	"github.com/weeklymenu/weeklymenu/internal/config"
	"github.com/weeklymenu/weeklymenu/internal/credential"
	"github.com/weeklymenu/weeklymenu/internal/logger"
)

var (
	headless  bool
	localPort int
)

var rootCmd = &cobra.Command{
	Use:           "oauth-setup",
	Short:         "Authorize Gmail send access and write the token file",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().BoolVar(&headless, "headless", false, "paste the code in the terminal instead of starting a local listener (default from OAUTH_HEADLESS)")
	rootCmd.Flags().IntVar(&localPort, "port", 0, "redirect port on localhost (default from OAUTH_PORT)")
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
	if cmd.Flags().Changed("headless") {
		cfg.OAuth.Headless = headless
	}
	if cmd.Flags().Changed("port") {
		cfg.OAuth.Port = localPort
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return setup(ctx, cfg.OAuth, log, cmd.InOrStdin(), cmd.OutOrStdout())
}

// setup runs the consent flow selected by cfg and writes the token file.
func setup(ctx context.Context, cfg config.OAuthConfig, log *logger.Logger, in io.Reader, out io.Writer) error {
	if _, err := os.Stat(cfg.CredentialsPath); err != nil {
		log.Error().Str("path", cfg.CredentialsPath).Msg("client secret file not found")
		return apperr.Configuration("client secret file %s not found; download it from the Google Cloud console", cfg.CredentialsPath)
	}

	oauthCfg, err := credential.LoadClientSecret(cfg.CredentialsPath)
	if err != nil {
		return apperr.Configuration("%v", err)
	}

	store := credential.NewFileStore(cfg.TokenPath)
	consent := credential.NewConsent(oauthCfg, store, log)

	if cfg.Headless {
		log.Info().Msg("starting console authorization flow")
		_, err = consent.RunConsole(ctx, cfg.Port, in, out)
	} else {
		log.Info().Int("port", cfg.Port).Msg("starting local server authorization flow")
		consent.Prompt = func(authURL string) {
			fmt.Fprintln(out, "Open this URL in a browser and authorize access:")
			fmt.Fprintln(out, authURL)
		}
		_, err = consent.RunLocalServer(ctx, cfg.Port)
	}
	if err != nil {
		log.Error().Err(err).Msg("authorization failed")
		return err
	}

	log.Info().Str("path", store.Path()).Msg("token saved")
	fmt.Fprintf(out, "Token written to %s\n", store.Path())
	return nil
}
