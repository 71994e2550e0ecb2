package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/muzkat/reminder/internal/config"
	"github.com/muzkat/reminder/internal/database"
	"github.com/muzkat/reminder/internal/email"
	"github.com/muzkat/reminder/internal/notify"
	"github.com/muzkat/reminder/internal/repository"
	"github.com/muzkat/reminder/internal/scheduler"
	"github.com/muzkat/reminder/internal/server"
	"github.com/muzkat/reminder/internal/telegram"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := database.New(ctx, cfg.DatabaseURI)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("connected to database")

	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	remindRepo := repository.NewReminderRepository(db)
	userRepo := repository.NewUserRepository(db)

	emailSender := email.NewSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	chatClient, err := telegram.New(cfg.TelegramToken, cfg.SendTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create telegram client")
	}

	dispatcher := notify.NewDispatcher(
		remindRepo, userRepo, emailSender, chatClient, cfg.SendTimeout,
		log.With().Str("component", "dispatcher").Logger(),
	)
	sched := scheduler.New(
		remindRepo, dispatcher, cfg.SchedulerInterval, clock.New(),
		log.With().Str("component", "scheduler").Logger(),
	)

	srv := server.New(remindRepo, userRepo, dispatcher, log.With().Str("component", "server").Logger())
	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Router()}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Start(ctx)
	}()

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}

	// Let the in-flight scheduler cycle finish before exiting
	wg.Wait()
}
