package server

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/aman-zulfiqar/arena-terminal/internal/aggregator"
	"github.com/aman-zulfiqar/arena-terminal/internal/cache"
	"github.com/aman-zulfiqar/arena-terminal/internal/models"
	"github.com/aman-zulfiqar/arena-terminal/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	integrationAPIKey = "test-api-key-integration"
	integrationToken  = "0x3333333333333333333333333333333333333333"
)

// chainStub is a ledger holding a single fresh launch with no purchases.
type chainStub struct{}

func (chainStub) LatestBlockNumber(ctx context.Context) (uint64, error) { return 50_000, nil }

func (chainStub) TokenCreatedEvents(ctx context.Context, from, to uint64) ([]models.TokenCreated, error) {
	supply, _ := new(big.Int).SetString("1000000000000000000000000", 10)
	return []models.TokenCreated{{
		TokenID:              big.NewInt(7),
		CreatorAddress:       "0xAAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa",
		PairAddress:          "0x0000000000000000000000000000000000000000",
		TokenContractAddress: integrationToken,
		TotalSupply:          supply,
		SalePercentage:       73,
		BlockNumber:          to - 10,
	}}, nil
}

func (chainStub) PairCreatedEvents(ctx context.Context, from, to uint64) ([]models.PairCreated, error) {
	return nil, nil
}

func (chainStub) PurchaseEvents(ctx context.Context, from, to uint64) ([]models.Purchase, error) {
	return nil, nil
}

func (chainStub) BlockTime(ctx context.Context, number uint64) (time.Time, error) {
	return time.Now().Add(-30 * time.Second), nil
}

func (chainStub) TokenMetadata(ctx context.Context, token string) (models.TokenMetadata, error) {
	return models.TokenMetadata{Name: "Integration", Symbol: "INT"}, nil
}

func (chainStub) HolderCount(ctx context.Context, token string, from, to uint64) (int, error) {
	return 4, nil
}

type staticQuote float64

func (q staticQuote) Price(ctx context.Context) float64 { return float64(q) }

func setupIntegrationTest(t *testing.T) (*httptest.Server, *redis.Client, *cache.PubSubManager) {
	t.Helper()

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: redisAddr,
		DB:   2, // Use different DB for integration tests
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = redisClient.Close()
		t.Skipf("Redis not available for integration tests: %v", err)
	}
	_ = redisClient.FlushDB(ctx).Err()

	logger := quietLogger()
	launchCache, err := cache.NewRedisCacheFromClient(redisClient, time.Minute)
	require.NoError(t, err)
	feed := cache.NewPubSubManager(redisClient, logger)
	hub := NewHub(logger)

	agg, err := aggregator.New(aggregator.Config{
		Ledger: chainStub{},
		Quotes: staticQuote(40),
		Sinks:  []storage.LaunchSink{launchCache, feed, hub},
		Logger: logger,
	})
	require.NoError(t, err)

	srv := newTestServer(t, &Handlers{
		Launches: agg,
		Cache:    launchCache,
		Hub:      hub,
		Logger:   logger,
	}, ServerConfig{APIKey: integrationAPIKey, DevMode: true})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		hub.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = redisClient.FlushDB(ctx).Err()
		_ = redisClient.Close()
	})

	return ts, redisClient, feed
}

func getJSON(t *testing.T, url string, expectedStatus int, out any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", integrationAPIKey)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, expectedStatus, resp.StatusCode)
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
}

func TestIntegration_LaunchesReachEverySink(t *testing.T) {
	ts, redisClient, feed := setupIntegrationTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	received := make(chan []models.Launch, 1)
	go func() {
		_ = feed.SubscribeLaunches(ctx, func(launches []models.Launch) {
			// the channel is shared across Redis databases
			if len(launches) == 0 || launches[0].TokenAddress != integrationToken {
				return
			}
			select {
			case received <- launches:
			default:
			}
		})
	}()
	// Wait for the subscription to be registered
	time.Sleep(100 * time.Millisecond)

	var items []models.Launch
	getJSON(t, ts.URL+"/v1/launches", http.StatusOK, &items)
	require.Len(t, items, 1)
	assert.Equal(t, integrationToken, items[0].TokenAddress)
	assert.Equal(t, "INT", items[0].Symbol)
	assert.Equal(t, "30s ago", items[0].TimeAgo)
	require.NotNil(t, items[0].Holders)
	assert.Equal(t, 4, *items[0].Holders)

	select {
	case launches := <-received:
		require.Len(t, launches, 1)
		assert.Equal(t, "7", launches[0].TokenID)
	case <-ctx.Done():
		t.Fatal("launch list was not published")
	}

	stored, err := cache.NewRedisCacheFromClient(redisClient, 0)
	require.NoError(t, err)
	cached, err := stored.GetLatestLaunches(ctx)
	require.NoError(t, err)
	assert.Equal(t, items, cached)
}

func TestIntegration_Health(t *testing.T) {
	ts, _, _ := setupIntegrationTest(t)

	getJSON(t, ts.URL+"/v1/launches", http.StatusOK, nil)

	var health HealthResponse
	getJSON(t, ts.URL+"/v1/health", http.StatusOK, &health)
	assert.True(t, health.OK)
	assert.Equal(t, 1, health.Launches)
	assert.Equal(t, "ok", health.Cache)
	assert.NotNil(t, health.LastRefresh)
}

func TestIntegration_RequiresAPIKey(t *testing.T) {
	ts, _, _ := setupIntegrationTest(t)

	resp, err := http.Get(ts.URL + "/v1/launches")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
