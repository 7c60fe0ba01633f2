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
	"tutordash/internal/log"
	"tutordash/internal/metrics"
	"tutordash/internal/snapshot"
	"tutordash/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg)

	logger.Info("Starting tutordash-worker",
		"backend", cfg.DataBackend,
		"interval", cfg.RefreshInterval.String(),
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
	if len(res.Stores) == 0 {
		logger.Warn("No snapshot store configured, refreshed snapshots stay in this process")
	}

	m := metrics.New()
	provider := snapshot.New(res.Source, snapshot.Options{
		TTL:          cfg.CacheTTL,
		FetchTimeout: cfg.FetchTimeout,
		Logger:       logger,
		Recorder:     m,
		Stores:       res.Stores,
	})

	var (
		publisher  worker.Publisher
		amqpClient *amqp.Client
	)
	if cfg.AMQPEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, "", logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			_ = res.Cleanup()
			os.Exit(1)
		}
		publisher = amqpClient
	} else {
		logger.Info("AMQP disabled, refresh events will not be published")
	}

	refresher := worker.NewRefreshWorker(provider, publisher,
		worker.Config{Interval: cfg.RefreshInterval},
		worker.WithLogger(logger),
		worker.WithRecorder(m))

	var metricsSrv *http.Server
	if cfg.WorkerMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", m.Handler())
		mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("ok"))
		})
		metricsSrv = &http.Server{
			Addr:              cfg.WorkerMetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics listener failed", log.FieldError, err)
			}
		}()
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := refresher.Stop(shutdownCtx); err != nil {
			logger.Warn("Refresh worker stop error", log.FieldError, err)
		}
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shutdownCtx)
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

	if err := refresher.Start(ctx); err != nil {
		logger.Error("Failed to start refresh worker", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
