package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"todo-calendar/internal/api"
	"todo-calendar/internal/bot"
	"todo-calendar/internal/config"
	"todo-calendar/internal/logger"
	"todo-calendar/internal/metrics"
	"todo-calendar/internal/model"
	"todo-calendar/internal/reminder"
	"todo-calendar/internal/repository"
	"todo-calendar/internal/service"
	"todo-calendar/internal/session"
	"todo-calendar/internal/web"
)

const (
	jobTimeout      = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if addr != "" {
		cfg.HTTPAddr = addr
	}

	log := logger.New(cfg.LogLevel, cfg.LogFile, cfg.IsProduction())
	defer func() { _ = log.Sync() }()

	db, err := repository.NewDB(cfg.DatabaseURL, log)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)

	userSvc := service.NewUserService(userRepo, cfg.OwnerOpenID, log.Named("users"))
	taskSvc := service.NewTaskService(taskRepo)
	feedbackSvc := service.NewFeedbackService(feedbackRepo)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	var revoker session.Revoker = session.Nop{}
	if cfg.RedisURL != "" {
		rdb, err := session.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rdb.Close()
		revoker = session.NewRedisRevoker(rdb)
	}
	sessions := session.NewManager(cfg.SessionSecret, revoker)

	clock := reminder.SystemClock{Location: cfg.Location}

	notifiers := service.NotifierFactory(func(model.User) reminder.Notifier { return reminder.Denied })
	var telegramBot *bot.Bot
	if cfg.TelegramToken != "" {
		telegramBot, err = bot.New(cfg.TelegramToken, userRepo, clock, log.Named("bot"))
		if err != nil {
			return fmt.Errorf("bot: %w", err)
		}
		notifiers = telegramBot.NotifierFor
	}
	reminderSvc := service.NewReminderService(taskRepo, userRepo, notifiers, clock, m, log.Named("reminders"))

	scheduler := service.NewSchedulerService(cfg.Location)
	if telegramBot != nil {
		telegramBot.UseSummaries(reminderSvc)

		if _, err := scheduler.ScheduleInterval(cfg.ReminderInterval, func() {
			jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
			defer cancel()
			if _, err := reminderSvc.Sweep(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("reminder sweep failed", zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("schedule reminders: %w", err)
		}

		if cfg.DigestTime != "" {
			if _, err := scheduler.ScheduleDaily(cfg.DigestTime, func() {
				jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
				defer cancel()
				if err := reminderSvc.SendDigests(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("daily digest failed", zap.Error(err))
				}
			}); err != nil {
				return fmt.Errorf("schedule digest: %w", err)
			}
		}

		go func() {
			if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("bot stopped with error", zap.Error(err))
			}
		}()
	} else {
		log.Info("TELEGRAM_TOKEN not set, server-side reminders disabled")
	}
	scheduler.Start()
	defer scheduler.Stop()

	var oauth *api.OAuth
	if cfg.OAuth.ClientID != "" {
		oauth = api.NewOAuth(cfg.OAuth)
	} else {
		log.Warn("OAUTH_CLIENT_ID not set, sign-in is disabled")
	}

	srv, err := api.NewServer(api.Options{
		Users:       userSvc,
		Tasks:       taskSvc,
		Feedback:    feedbackSvc,
		Sessions:    sessions,
		OAuth:       oauth,
		Metrics:     m,
		Gatherer:    reg,
		CORSOrigins: cfg.CORSOrigins,
		Production:  cfg.IsProduction(),
		Log:         log.Named("http"),
	})
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := web.NewHandler(taskSvc, feedbackSvc, clock, log.Named("web")).Mount(srv.Engine()); err != nil {
		return fmt.Errorf("web: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	log.Info("todo calendar started", zap.String("addr", cfg.HTTPAddr), zap.String("env", cfg.Environment))

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("shutdown complete")
	return nil
}
