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

	"github.com/jdavon/closebook/internal/adjust"
	adjusthttp "github.com/jdavon/closebook/internal/adjust/http"
	"github.com/jdavon/closebook/internal/app"
	"github.com/jdavon/closebook/internal/consol"
	consolhttp "github.com/jdavon/closebook/internal/consol/http"
	"github.com/jdavon/closebook/internal/observability"
	"github.com/jdavon/closebook/internal/platform/cache"
	"github.com/jdavon/closebook/internal/platform/db"
	"github.com/jdavon/closebook/internal/shared"
	"github.com/jdavon/closebook/internal/statement"
	statementhttp "github.com/jdavon/closebook/internal/statement/http"
	"github.com/jdavon/closebook/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
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

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	consolRepo := consol.NewRepository(pool)
	consolService := consol.NewService(consolRepo)
	unmappedStore := consol.NewUnmappedStore(redisClient, cfg.UnmappedReportTTL)
	consolHandler := consolhttp.NewHandler(logger, consolService, unmappedStore, metrics)

	statementService := statement.NewService(consolRepo)
	statementHandler := statementhttp.NewHandler(logger, statementService, metrics)

	adjustRepo := adjust.NewRepository(pool)
	adjustService := adjust.NewService(adjustRepo, auditLogger)
	adjustHandler := adjusthttp.NewHandler(logger, adjustService)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		ConsolHandler:    consolHandler,
		StatementHandler: statementHandler,
		AdjustHandler:    adjustHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
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
