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
	"github.com/aman-zulfiqar/arena-terminal/internal/server"
	"github.com/aman-zulfiqar/arena-terminal/internal/storage"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// env bootstrap function
func loadEnv(logger *logrus.Logger) {
	// Get the project root directory (where go.mod is)
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

// main is the entry point for the API server
// It wires the launch pipeline and serves it over HTTP with graceful shutdown
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	// load .env BEFORE anything reads os.Getenv
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

	// Setup signal handling for graceful shutdown (Ctrl+C, SIGTERM)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// The hub is a sink so every refresh reaches connected websocket clients
	hub := server.NewHub(logger)

	pipeline, err := app.Build(ctx, cfg, logger, app.Options{
		Sinks: true,
		Extra: []storage.LaunchSink{hub},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to build launch pipeline")
	}
	defer pipeline.Close()

	h := &server.Handlers{
		Launches:      pipeline.Aggregator,
		Quotes:        pipeline.Quotes,
		Hub:           hub,
		LaunchTimeout: cfg.RefreshTimeout + 5*time.Second,
		AssetID:       cfg.PriceAssetID,
		DevMode:       cfg.DevMode,
		Logger:        logger,
	}
	// Leave the interfaces nil when a backend is not configured
	if pipeline.Cache != nil {
		h.Cache = pipeline.Cache
	}
	if pipeline.Flags != nil {
		h.Flags = pipeline.Flags
	}
	if pipeline.Registry != nil {
		h.Deployers = pipeline.Registry
	}

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:    cfg.APIAddr,
			DevMode: cfg.DevMode,
			APIKey:  cfg.APIKey,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
		_ = srv.Shutdown(context.Background())
	}()

	logger.WithField("addr", cfg.APIAddr).Info("api server starting")
	if err := srv.Start(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return
		}
		logger.WithError(err).Fatal("api server failed")
	}

	if err := srv.WaitClosed(context.Background()); err != nil {
		logger.WithError(err).Warn("shutdown did not complete")
	}
}
