package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/aman-zulfiqar/arena-terminal/internal/app"
	"github.com/aman-zulfiqar/arena-terminal/internal/config"
	"github.com/aman-zulfiqar/arena-terminal/internal/models"
	"github.com/aman-zulfiqar/arena-terminal/internal/observability"
	"github.com/aman-zulfiqar/arena-terminal/internal/stream"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func loadEnv(logger *logrus.Logger) {
	_, filename, _, _ := runtime.Caller(0)
	envPath := filepath.Join(filepath.Dir(filename), "../..", ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	}
}

// main refreshes the launch list on a fixed interval so the Redis, ClickHouse
// and Postgres sinks stay current without HTTP traffic.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	loadEnv(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	pipeline, err := app.Build(ctx, cfg, logger, app.Options{Sinks: true})
	if err != nil {
		logger.WithError(err).Fatal("failed to build launch pipeline")
	}
	defer pipeline.Close()

	poller, err := stream.NewPoller(stream.PollerConfig{
		Refresher:    pipeline.Aggregator,
		PollInterval: cfg.PollInterval,
		Logger:       logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create poller")
	}

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.WithField("addr", cfg.MetricsAddr).Info("metrics server starting")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.WithError(err).Error("metrics server failed")
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		err := poller.Start(ctx, func(launches []models.Launch) {
			entry := logger.WithField("launches", len(launches))
			if len(launches) > 0 {
				entry = entry.WithField("newest", launches[0].Symbol)
			}
			entry.Info("launch list refreshed")
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.WithError(err).Error("poller stopped")
		}
	}()

	logger.Info("indexer running, press Ctrl+C to stop")

	<-sigCh
	logger.Info("shutting down")
	cancel()
	<-done

	if metricsSrv != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}

	st := poller.Status()
	logger.WithFields(logrus.Fields{
		"last_run":             st.LastRun,
		"consecutive_failures": st.Failures,
	}).Info("indexer stopped")
}
