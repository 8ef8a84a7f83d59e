package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/odyssey-crm/odyssey-crm/internal/app"
	"github.com/odyssey-crm/odyssey-crm/internal/dashboard"
	"github.com/odyssey-crm/odyssey-crm/internal/guard"
	jobmetrics "github.com/odyssey-crm/odyssey-crm/internal/jobs"
	"github.com/odyssey-crm/odyssey-crm/internal/platform/cache"
	"github.com/odyssey-crm/odyssey-crm/internal/platform/db"
	"github.com/odyssey-crm/odyssey-crm/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	dashboardCache := dashboard.NewCache(redisClient, cfg.DashboardCacheTTL, nil)
	invalidator := dashboard.NewService(dashboard.NewRepository(pool), dashboardCache, guard.New(logger, nil))
	invalidateJob := jobs.NewDashboardInvalidateJob(invalidator, jobs.PoolCompanies{Pool: pool}, logger, jobmetrics.NewMetrics(nil))

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDashboardInvalidate, Handler: invalidateJob.Handle},
			{Type: jobs.TaskDashboardSweep, Handler: invalidateJob.HandleSweep},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 2 * * *", Task: jobs.NewDashboardSweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
