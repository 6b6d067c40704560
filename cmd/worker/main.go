package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/crewstay/crewstay/internal/app"
	"github.com/crewstay/crewstay/internal/billing/export"
	jobmetrics "github.com/crewstay/crewstay/internal/jobs"
	"github.com/crewstay/crewstay/internal/platform/cache"
	"github.com/crewstay/crewstay/internal/platform/db"
	"github.com/crewstay/crewstay/internal/platform/gotenberg"
	"github.com/crewstay/crewstay/internal/pricing"
	"github.com/crewstay/crewstay/internal/reports"
	"github.com/crewstay/crewstay/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	prices := pricing.Chain{pricing.NewPostgresSource(pool)}
	if cfg.PriceCatalogPath != "" {
		file, err := pricing.LoadFile(cfg.PriceCatalogPath)
		if err != nil {
			logger.Error("load price catalog", slog.Any("error", err))
			os.Exit(1)
		}
		prices = pricing.Chain{file, prices[0]}
	}

	pdfExporter, err := export.NewPDFExporter(gotenberg.NewClient(cfg.GotenbergURL, &http.Client{Timeout: 2 * time.Minute}))
	if err != nil {
		logger.Error("init pdf exporter", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := jobmetrics.NewMetrics(nil)
	service := reports.NewService(reports.ServiceConfig{
		Store:    reports.NewRepository(pool),
		Prices:   prices,
		Cache:    reports.NewCache(redisClient, cfg.ReportCacheTTL),
		Storage:  reports.NewFileStorage(cfg.ReportStorageDir, cfg.ReportBaseURL),
		Exporter: export.Exporter{PDF: pdfExporter},
		Metrics:  metrics,
		Logger:   logger,
		Location: cfg.Location(),
		Locale:   cfg.Locale(),
	})
	generateJob := reports.NewJob(service, metrics, logger)
	sweepJob := reports.NewSweepJob(service, cfg.ReportRetention, metrics, logger)

	sweepTask, err := jobs.NewReportSweepTask(cfg.ReportRetention)
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Location:    cfg.Location(),
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskReportGenerate, Handler: generateJob.Handle},
			{Type: jobs.TaskReportSweep, Handler: sweepJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ReportSweepCron, Task: sweepTask},
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
