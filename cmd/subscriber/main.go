package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aman-zulfiqar/arena-terminal/internal/cache"
	"github.com/aman-zulfiqar/arena-terminal/internal/config"
	"github.com/aman-zulfiqar/arena-terminal/internal/models"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// main is an example consumer of the live launch feed published by the
// indexer and the API.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	_ = godotenv.Load()
	cfg := config.Load()
	if cfg.RedisAddr == "" {
		logger.Fatal("REDIS_ADDR is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}

	prices, err := cache.NewRedisCacheFromClient(client, 0)
	if err != nil {
		logger.WithError(err).Fatal("failed to create cache")
	}
	feed := cache.NewPubSubManager(client, logger)

	if latest, err := prices.GetLatestLaunches(ctx); err == nil {
		logger.WithField("launches", len(latest)).Info("latest cached list")
	}

	logger.Info("subscriber running, press Ctrl+C to stop")

	err = feed.SubscribeLaunches(ctx, func(launches []models.Launch) {
		quoteCtx, stop := context.WithTimeout(ctx, time.Second)
		defer stop()
		price, perr := prices.GetPrice(quoteCtx, cfg.PriceAssetID)

		entry := logger.WithField("launches", len(launches))
		if perr == nil {
			entry = entry.WithField("avax_usd", price)
		}
		entry.Info("received launch list")

		for _, l := range launches {
			logger.WithFields(logrus.Fields{
				"symbol":     l.Symbol,
				"token":      l.TokenAddress,
				"progress":   l.Progress,
				"market_cap": l.MarketCap,
				"age":        l.TimeAgo,
			}).Debug("launch")
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("subscription ended")
	}
	logger.Info("subscriber stopped")
}
