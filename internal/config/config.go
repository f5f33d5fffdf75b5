package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aman-zulfiqar/arena-terminal/internal/constants"
)

type Config struct {
	// RPC settings
	RPCUrl        string
	RPCTimeout    time.Duration
	MaxRetries    int
	RetryBackoff  time.Duration
	RPCRateLimit  float64 // requests per second, 0 disables
	RPCMaxLogSpan uint64

	// Price quote settings
	PriceAPIURL  string
	PriceAssetID string
	PriceTTL     time.Duration

	// Aggregation
	CacheTTL        time.Duration
	ScanWindow      uint64
	HolderWindow    uint64
	ConfirmationLag uint64
	MaxLaunches     int
	MaxProgress     float64
	EnrichWorkers   int
	CallTimeout     time.Duration
	RefreshTimeout  time.Duration
	FailurePolicy   string
	LogoURLTemplate string
	PollInterval    time.Duration

	// API
	APIAddr string
	APIKey  string
	DevMode bool

	// MetricsAddr serves /metrics from the indexer; empty disables it
	MetricsAddr string

	// Redis settings
	RedisAddr string

	// ClickHouse settings
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// Postgres settings
	PostgresDSN string

	LogLevel string
}

func Load() *Config {
	return &Config{
		// RPC
		RPCUrl:        getEnv("AVAX_RPC_URL", "https://api.avax.network/ext/bc/C/rpc"),
		RPCTimeout:    getDurationEnv("RPC_TIMEOUT", 30*time.Second),
		MaxRetries:    getIntEnv("MAX_RETRIES", 3),
		RetryBackoff:  getDurationEnv("RETRY_BACKOFF", 500*time.Millisecond),
		RPCRateLimit:  getFloatEnv("RPC_RATE_LIMIT", 20),
		RPCMaxLogSpan: uint64(getIntEnv("RPC_MAX_LOG_RANGE", constants.DefaultMaxLogRange)),

		// Price
		PriceAPIURL:  getEnv("PRICE_API_URL", constants.DefaultPriceAPIURL),
		PriceAssetID: getEnv("PRICE_ASSET_ID", constants.DefaultPriceAssetID),
		PriceTTL:     getDurationEnv("PRICE_TTL", constants.DefaultPriceTTL),

		// Aggregation
		CacheTTL:        getDurationEnv("CACHE_TTL", constants.DefaultCacheTTL),
		ScanWindow:      uint64(getIntEnv("SCAN_WINDOW_BLOCKS", constants.DefaultScanWindow)),
		HolderWindow:    uint64(getIntEnv("HOLDER_WINDOW_BLOCKS", constants.DefaultHolderWindow)),
		ConfirmationLag: uint64(getIntEnv("CONFIRMATION_LAG", constants.DefaultConfirmationLag)),
		MaxLaunches:     getIntEnv("MAX_LAUNCHES", constants.DefaultMaxLaunches),
		MaxProgress:     getFloatEnv("MAX_PROGRESS", constants.DefaultMaxProgress),
		EnrichWorkers:   getIntEnv("ENRICH_WORKERS", constants.DefaultEnrichWorkers),
		CallTimeout:     getDurationEnv("CALL_TIMEOUT", constants.DefaultCallTimeout),
		RefreshTimeout:  getDurationEnv("REFRESH_TIMEOUT", constants.DefaultRefreshTimeout),
		FailurePolicy:   strings.ToLower(getEnv("FAILURE_POLICY", constants.FailurePolicyEmpty)),
		LogoURLTemplate: getEnv("LOGO_URL_TEMPLATE", ""),
		PollInterval:    getDurationEnv("POLL_INTERVAL", 10*time.Second),

		// API
		APIAddr: getEnv("API_ADDR", ":8090"),
		APIKey:  getEnv("API_KEY", ""),
		DevMode: getBoolEnv("DEV_MODE", false),

		MetricsAddr: getEnv("METRICS_ADDR", ""),

		// Redis
		RedisAddr: getEnv("REDIS_ADDR", ""),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "arena"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		// Postgres
		PostgresDSN: getEnv("POSTGRES_DSN", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate rejects configurations the aggregator cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCUrl) == "" {
		return fmt.Errorf("AVAX_RPC_URL is required")
	}
	if c.ScanWindow == 0 {
		return fmt.Errorf("SCAN_WINDOW_BLOCKS must be > 0")
	}
	if c.ConfirmationLag == 0 {
		return fmt.Errorf("CONFIRMATION_LAG must be >= 1")
	}
	if c.ConfirmationLag >= c.ScanWindow {
		return fmt.Errorf("CONFIRMATION_LAG must be smaller than SCAN_WINDOW_BLOCKS")
	}
	if c.MaxLaunches < 1 || c.MaxLaunches > constants.MaxLaunchesLimit {
		return fmt.Errorf("MAX_LAUNCHES must be between 1 and %d", constants.MaxLaunchesLimit)
	}
	if c.MaxProgress <= 0 {
		return fmt.Errorf("MAX_PROGRESS must be > 0")
	}
	if c.EnrichWorkers < 1 {
		return fmt.Errorf("ENRICH_WORKERS must be >= 1")
	}
	if c.CacheTTL <= 0 || c.PriceTTL <= 0 {
		return fmt.Errorf("CACHE_TTL and PRICE_TTL must be positive")
	}
	if c.RPCMaxLogSpan == 0 {
		return fmt.Errorf("RPC_MAX_LOG_RANGE must be > 0")
	}
	switch c.FailurePolicy {
	case constants.FailurePolicyEmpty, constants.FailurePolicyStale:
	default:
		return fmt.Errorf("FAILURE_POLICY must be %q or %q", constants.FailurePolicyEmpty, constants.FailurePolicyStale)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
