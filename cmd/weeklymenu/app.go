package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/weeklymenu/weeklymenu/internal/config"
	"github.com/weeklymenu/weeklymenu/internal/credential"
	"github.com/weeklymenu/weeklymenu/internal/database"
	"github.com/weeklymenu/weeklymenu/internal/email"
	"github.com/weeklymenu/weeklymenu/internal/handler"
	"github.com/weeklymenu/weeklymenu/internal/job"
	"github.com/weeklymenu/weeklymenu/internal/llm"
	"github.com/weeklymenu/weeklymenu/internal/logger"
	"github.com/weeklymenu/weeklymenu/internal/menu"
	"github.com/weeklymenu/weeklymenu/internal/middleware"
	"github.com/weeklymenu/weeklymenu/internal/router"
	"github.com/weeklymenu/weeklymenu/internal/scheduler"
)

const version = "0.1.0"

// Runner is one end-to-end job execution.
type Runner interface {
	Run(ctx context.Context) error
	Status() job.Status
}

// Scheduler is the periodic trigger used in daemon mode.
type Scheduler interface {
	Register(id, spec string, j scheduler.Job) error
	Start()
	Stop(ctx context.Context) error
	Next(id string) (time.Time, bool)
}

// app selects between one-shot and daemon mode and drives the job.
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	runner    Runner
	scheduler Scheduler
	locker    database.Locker
	checks    map[string]handler.Checker
	started   atomic.Bool
}

// runOnce executes the job a single time.
func (a *app) runOnce(ctx context.Context) error {
	a.log.Info().Msg("running weekly menu job once")
	return a.runner.Run(ctx)
}

// serve registers the weekly job and blocks until ctx is cancelled.
func (a *app) serve(ctx context.Context) error {
	if err := a.scheduler.Register(job.ID, a.cfg.Schedule.Cron, a.runner); err != nil {
		return err
	}
	a.scheduler.Start()
	a.started.Store(true)

	var srv *http.Server
	if a.cfg.Server.Enabled {
		srv = a.healthServer()
		go func() {
			a.log.Info().Str("addr", srv.Addr).Msg("health server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error().Err(err).Msg("health server error")
			}
		}()
	}

	a.log.Info().Str("job_id", job.ID).Msg("scheduler started, waiting for trigger")
	<-ctx.Done()
	a.log.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Warn().Err(err).Msg("health server forced to shutdown")
		}
	}
	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		a.log.Warn().Err(err).Msg("running job did not finish before shutdown")
	}

	a.log.Info().Msg("scheduler stopped")
	return nil
}

func (a *app) healthServer() *http.Server {
	h := handler.New(a.log, handler.Config{
		Version:  version,
		JobID:    job.ID,
		Job:      a.runner,
		Schedule: a.scheduler,
		Checks:   a.checks,
		Ready:    a.started.Load,
	})
	return &http.Server{
		Addr:         a.cfg.Server.Addr(),
		Handler:      router.New(h, middleware.New(a.log)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// newApp wires the production components from cfg. The returned cleanup
// releases connections.
func newApp(cfg *config.Config, log *logger.Logger) (*app, func(), error) {
	client, err := llm.NewOpenAICompatible(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, nil, err
	}
	generator := menu.NewGenerator(client, menu.Config{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
	}, log)

	var sender email.Sender
	switch cfg.Email.Provider {
	case "log":
		sender = email.NewLogSender(log)
		log.Info().Msg("email provider: log (dry run)")
	default:
		store := credential.NewFileStore(cfg.OAuth.TokenPath)
		gmailSender := email.NewGmailSender(store, email.GmailConfig{Endpoint: cfg.Email.GmailEndpoint}, log)
		log.Info().Stringer("sender", gmailSender).Str("token_path", store.Path()).Msg("email provider: gmail")
		sender = gmailSender
	}
	mailer := email.NewMailer(sender, cfg.Email.SenderAddress, cfg.Email.RecipientList(), log)

	cleanup := func() {}
	checks := map[string]handler.Checker{}
	var locker database.Locker = database.NewLocalLocker()
	if cfg.Redis.Enabled {
		rdb, err := database.NewRedis(cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.Info().Str("addr", cfg.Redis.Addr()).Msg("connected to Redis")
		locker = rdb
		checks["redis"] = rdb
		cleanup = func() { _ = rdb.Close() }
	}

	loc, err := cfg.Schedule.Location()
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return &app{
		cfg:       cfg,
		log:       log,
		runner:    job.NewMenuJob(generator, mailer, log, job.WithLocker(locker, cfg.Redis.LockTTL)),
		scheduler: scheduler.New(loc, log),
		locker:    locker,
		checks:    checks,
	}, cleanup, nil
}

// warnMissingFiles logs when Gmail credentials have not been set up yet.
// The run itself fails later with a credential error.
func warnMissingFiles(cfg *config.Config, log *logger.Logger) {
	if cfg.Email.Provider != "gmail" {
		return
	}
	if _, err := os.Stat(cfg.OAuth.TokenPath); err != nil {
		log.Warn().Str("path", cfg.OAuth.TokenPath).Msg("token file not found; run oauth-setup before the first send")
	}
	if _, err := os.Stat(cfg.OAuth.CredentialsPath); err != nil {
		log.Warn().Str("path", cfg.OAuth.CredentialsPath).Msg("client secret file not found")
	}
}
