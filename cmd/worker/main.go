package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/clearclaim/clearclaim/internal/app"
	"github.com/clearclaim/clearclaim/internal/claims"
	"github.com/clearclaim/clearclaim/internal/compliance"
	"github.com/clearclaim/clearclaim/internal/platform/cache"
	"github.com/clearclaim/clearclaim/internal/platform/db"
	"github.com/clearclaim/clearclaim/jobs"
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
		logger.Warn("redis unavailable, assessments served from postgres", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	claimsRepo := claims.NewRepository(pool)
	claimsService := claims.NewService(claimsRepo)

	complianceRepo := compliance.NewRepository(pool)
	assessmentCache := compliance.NewCache(redisClient, cfg.AssessmentCacheTTL)
	evaluator := compliance.NewEvaluator(complianceRepo, assessmentCache)

	sweepJob := jobs.NewComplianceSweepJob(claimsRepo, evaluator, logger)
	refreshJob := jobs.NewOffsetRefreshJob(claimsService, logger)
	deadlineJob := jobs.NewDeadlineScanJob(claimsRepo, client, logger)

	sweepTask, err := jobs.NewComplianceSweepTask(time.Now().UTC(), cfg.SweepConcurrency)
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}
	deadlineTask, err := jobs.NewDeadlineScanTask(time.Now().UTC(), cfg.DeadlineWarningWindow)
	if err != nil {
		logger.Error("build deadline task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskComplianceSweep, Handler: sweepJob.Handle},
			{Type: jobs.TaskOffsetRefresh, Handler: refreshJob.Handle},
			{Type: jobs.TaskDeadlineScan, Handler: deadlineJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "15 1 * * *", Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 7 * * *", Task: deadlineTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
