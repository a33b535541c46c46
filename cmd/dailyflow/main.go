package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmhodges/clock"

	"dailyflow/internal/bot"
	"dailyflow/internal/config"
	"dailyflow/internal/repository"
	"dailyflow/internal/scheduler"
	"dailyflow/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalw("open database", "err", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	areaRepo := repository.NewAreaRepository(db)
	planRepo := repository.NewPlanRepository(db)

	planSvc := service.NewPlanService(planRepo, areaRepo)
	carrySvc := service.NewCarryoverService(planRepo)
	statsSvc := service.NewStatsService(planRepo, areaRepo)
	areaSvc := service.NewAreaService(areaRepo)
	digestSvc := service.NewDigestService()

	telegramBot, err := bot.New(cfg.TelegramToken, userRepo, planSvc, carrySvc, statsSvc, areaSvc, logger)
	if err != nil {
		logger.Fatalw("create bot", "err", err)
	}

	dispatcher := scheduler.NewDispatcher(userRepo, planRepo, digestSvc, telegramBot, clock.New(), logger, cfg.SweepWorkers)

	cron := service.NewSchedulerService(time.UTC)
	if _, err := cron.ScheduleInterval(cfg.TickInterval, func() {
		tickCtx, cancel := context.WithTimeout(context.Background(), cfg.TickInterval)
		defer cancel()
		if err := dispatcher.Sweep(tickCtx); err != nil {
			logger.Warnw("sweep finished with errors", "err", err)
		}
	}); err != nil {
		logger.Fatalw("schedule tick", "err", err)
	}
	cron.Start()
	defer cron.Stop()

	logger.Infow("daily planner started", "tick", cfg.TickInterval.String())
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalw("bot stopped", "err", err)
	}
	logger.Info("shutdown complete")
}
