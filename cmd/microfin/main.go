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

	"github.com/odyssey-erp/microfin/cmd/microfin/cli"
	"github.com/odyssey-erp/microfin/internal/app"
	"github.com/odyssey-erp/microfin/internal/observability"
	"github.com/odyssey-erp/microfin/internal/platform/cache"
	"github.com/odyssey-erp/microfin/internal/platform/db"
	reporthttp "github.com/odyssey-erp/microfin/internal/reports/http"
	"github.com/odyssey-erp/microfin/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(os.Args) > 1 && os.Args[1] != "serve" {
		os.Exit(cli.Run(ctx, os.Args[1:], cli.Options{}))
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	tables, err := app.LoadTables(cfg)
	if err != nil {
		logger.Error("load tables", slog.Any("error", err))
		os.Exit(1)
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{ApplicationName: "microfin"})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, report cache disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()

	reportService, reportCache, err := app.NewReportService(cfg, tables, app.ReportDeps{
		Pool:     dbpool,
		Redis:    redisClient,
		Recorder: metrics,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("init report service", slog.Any("error", err))
		os.Exit(1)
	}
	if reportCache != nil {
		go func() {
			if err := reportCache.ListenForInvalidation(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("report cache invalidation listener", slog.Any("error", err))
			}
		}()
	}
	reportHandler := reporthttp.NewHandler(logger, reportService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		ReportHandler: reportHandler,
		JobHandler:    jobHandler,
		Metrics:       metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.String("classification_version", tables.Classification.Version),
		)
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
