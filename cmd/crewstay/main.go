package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/crewstay/crewstay/internal/app"
	"github.com/crewstay/crewstay/internal/billing/export"
	"github.com/crewstay/crewstay/internal/observability"
	"github.com/crewstay/crewstay/internal/platform/cache"
	"github.com/crewstay/crewstay/internal/platform/db"
	"github.com/crewstay/crewstay/internal/platform/gotenberg"
	"github.com/crewstay/crewstay/internal/pricing"
	"github.com/crewstay/crewstay/internal/reports"
	reportshttp "github.com/crewstay/crewstay/internal/reports/http"
	"github.com/crewstay/crewstay/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	prices, err := priceSources(cfg, dbpool)
	if err != nil {
		logger.Error("load price catalog", slog.Any("error", err))
		os.Exit(1)
	}

	pdfClient := gotenberg.NewClient(cfg.GotenbergURL, &http.Client{Timeout: 60 * time.Second})
	pdfExporter, err := export.NewPDFExporter(pdfClient)
	if err != nil {
		logger.Error("init pdf exporter", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	queue, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("queue close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	service := reports.NewService(reports.ServiceConfig{
		Store:    reports.NewRepository(dbpool),
		Prices:   prices,
		Cache:    reports.NewCache(redisClient, cfg.ReportCacheTTL),
		Storage:  reports.NewFileStorage(cfg.ReportStorageDir, cfg.ReportBaseURL),
		Exporter: export.Exporter{PDF: pdfExporter},
		Queue:    queue,
		Metrics:  metrics.Jobs(),
		Logger:   logger,
		Location: cfg.Location(),
		Locale:   cfg.Locale(),
	})

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		ReportHandler: reportshttp.NewHandler(logger, service, cfg.ReportRequestsLimit),
		JobHandler:    jobs.NewHandler(inspector, logger),
		Metrics:       metrics,
		Dependencies: map[string]app.Pinger{
			"postgres":  dbpool,
			"redis":     app.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
			"gotenberg": pdfClient,
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// priceSources prefers the YAML catalog and falls back to the database.
func priceSources(cfg *app.Config, q db.Querier) (pricing.Chain, error) {
	chain := pricing.Chain{}
	if cfg.PriceCatalogPath != "" {
		file, err := pricing.LoadFile(cfg.PriceCatalogPath)
		if err != nil {
			return nil, err
		}
		chain = append(chain, file)
	}
	return append(chain, pricing.NewPostgresSource(q)), nil
}
