package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"tutordash/internal/amqp"
	"tutordash/internal/backend"
	"tutordash/internal/cli"
	apphttp "tutordash/internal/http"
	"tutordash/internal/log"
	"tutordash/internal/metrics"
	"tutordash/internal/snapshot"
	"tutordash/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg)

	logger.Info("Starting tutordash",
		"addr", cfg.Addr(),
		"backend", cfg.DataBackend,
		"cache_ttl", cfg.CacheTTL.String(),
		"timezone", cfg.Location().String(),
		log.FieldOperation, log.OpStartup)

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}

	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	res, err := backend.NewFactory(logger, time.Now).CreateBackend(initCtx, bcfg)
	cancelInit()
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	logger.Info("Backend initialized",
		log.FieldSource, res.Source.Name(),
		"stores", len(res.Stores))

	m := metrics.New()
	provider := snapshot.New(res.Source, snapshot.Options{
		TTL:          cfg.CacheTTL,
		FetchTimeout: cfg.FetchTimeout,
		Logger:       logger,
		Recorder:     m,
		Stores:       res.Stores,
	})
	if err := provider.Warm(context.Background()); err != nil && !errors.Is(err, snapshot.ErrNoSnapshot) {
		logger.Warn("Could not warm snapshot from store", log.FieldError, err, log.FieldOperation, log.OpWarm)
	}

	srv := apphttp.NewServer(provider, apphttp.Options{
		Addr:              cfg.Addr(),
		Logger:            logger,
		Metrics:           m,
		Location:          cfg.Location(),
		TopN:              cfg.TopStudentsCount,
		ResponseCacheSize: cfg.ResponseCacheSize,
		RefreshPerMinute:  cfg.RefreshRateLimit,
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Refresh events from the worker are optional; without AMQP the server
	// refetches on its own TTL.
	var amqpClient *amqp.Client
	if cfg.AMQPEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, refresh events disabled", log.FieldError, err)
			amqpClient = nil
		}
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		if err := res.Cleanup(); err != nil {
			logger.Warn("Backend cleanup error", log.FieldError, err)
		}
	})

	if amqpClient != nil {
		go func() {
			handler := worker.ReloadHandler(provider, srv.PurgeResponseCache, logger)
			if err := amqpClient.ConsumeSnapshotRefreshed(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Refresh event consumption stopped", log.FieldError, err, log.FieldOperation, log.OpConsume)
			}
		}()
	}

	// Load the first snapshot in the background so /readyz flips once data is in.
	go func() {
		if _, err := provider.Get(ctx); err != nil {
			logger.Warn("Initial snapshot fetch failed", log.FieldError, err, log.FieldOperation, log.OpFetch)
		}
	}()

	logger.Info("Server listening", "addr", cfg.Addr())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "addr", cfg.Addr())
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
