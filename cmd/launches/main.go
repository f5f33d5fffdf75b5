package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/aman-zulfiqar/arena-terminal/internal/app"
	"github.com/aman-zulfiqar/arena-terminal/internal/config"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func loadEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))
}

// main computes the launch list once and prints it as JSON.
func main() {
	loadEnv()

	timeout := flag.Duration("timeout", 90*time.Second, "overall deadline for the refresh")
	limit := flag.Int("limit", 0, "print at most n launches (0 = all)")
	pretty := flag.Bool("pretty", true, "indent the JSON output")
	store := flag.Bool("store", false, "also write the result to the configured sinks")
	verbose := flag.Bool("v", false, "log pipeline activity to stderr")
	flag.Parse()

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	pipeline, err := app.Build(ctx, cfg, logger, app.Options{Sinks: *store})
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to init pipeline:", err)
		os.Exit(1)
	}
	defer pipeline.Close()

	launches, err := pipeline.Aggregator.Refresh(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "refresh failed:", err)
		os.Exit(1)
	}
	if *limit > 0 && len(launches) > *limit {
		launches = launches[:*limit]
	}

	if err := writeJSON(os.Stdout, launches, *pretty); err != nil {
		fmt.Fprintln(os.Stderr, "failed to write output:", err)
		os.Exit(1)
	}
}

func writeJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
