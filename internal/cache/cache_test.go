package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/aman-zulfiqar/arena-terminal/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1, // Use different DB for tests
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	require.NoError(t, client.FlushDB(ctx).Err())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.FlushDB(ctx).Err()
		_ = client.Close()
	})
	return client
}

func sampleLaunches() []models.Launch {
	holders := 12
	return []models.Launch{
		{
			Name:           "Arena Cat",
			Symbol:         "ACAT",
			TokenAddress:   "0x1111111111111111111111111111111111111111",
			TokenID:        "42",
			Price:          0.0123,
			BlockNumber:    9_990,
			Holders:        &holders,
			HoldersStatus:  models.HoldersCounted,
			MetadataStatus: models.MetadataResolved,
			CreatedAt:      time.Unix(1_700_000_000, 0).UTC(),
		},
		{
			Name:           "0x2222...2222",
			Symbol:         "???",
			TokenAddress:   "0x2222222222222222222222222222222222222222",
			TokenID:        "41",
			BlockNumber:    9_950,
			HoldersStatus:  models.HoldersUnavailable,
			MetadataStatus: models.MetadataFallback,
			CreatedAt:      time.Unix(1_699_999_900, 0).UTC(),
		},
	}
}

func TestRedisCache_LatestLaunches(t *testing.T) {
	client := setupTestRedis(t)
	c, err := NewRedisCacheFromClient(client, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.GetLatestLaunches(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	want := sampleLaunches()
	require.NoError(t, c.StoreLaunches(ctx, want))

	got, err := c.GetLatestLaunches(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	ttl, err := client.TTL(ctx, "launches:latest").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, c.StoreLaunches(ctx, nil))
	got, err = c.GetLatestLaunches(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisCache_Price(t *testing.T) {
	client := setupTestRedis(t)
	c, err := NewRedisCacheFromClient(client, 0)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.GetPrice(ctx, "avalanche-2")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.UpdatePrice(ctx, "avalanche-2", 37.25))
	price, err := c.GetPrice(ctx, "avalanche-2")
	require.NoError(t, err)
	assert.Equal(t, 37.25, price)
}

func TestPubSub_PublishSubscribe(t *testing.T) {
	client := setupTestRedis(t)
	ps := NewPubSubManager(client, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan []models.Launch, 1)
	done := make(chan error, 1)
	go func() {
		done <- ps.SubscribeLaunches(ctx, func(l []models.Launch) {
			received <- l
		})
	}()

	want := sampleLaunches()
	require.Eventually(t, func() bool {
		n, err := client.PubSubNumSub(ctx, "launches:live").Result()
		return err == nil && n["launches:live"] > 0
	}, 2*time.Second, 20*time.Millisecond)
	require.NoError(t, ps.StoreLaunches(ctx, want))

	select {
	case got := <-received:
		assert.Equal(t, want, got)
	case <-ctx.Done():
		t.Fatal("no launch list received")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestNewRedisCacheFromClient_Nil(t *testing.T) {
	_, err := NewRedisCacheFromClient(nil, 0)
	assert.Error(t, err)
}

func TestClickHouseStore_StoreLaunches(t *testing.T) {
	addr := os.Getenv("CLICKHOUSE_TEST_ADDR")
	if addr == "" {
		t.Skip("CLICKHOUSE_TEST_ADDR not set")
	}

	ctx := context.Background()
	store, err := NewClickHouseStore(ctx, ClickHouseConfig{Addr: addr, Database: "default", Username: "default"})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.StoreLaunches(ctx, sampleLaunches()))
	require.NoError(t, store.StoreLaunches(ctx, nil))
}

func TestSnapshotRow(t *testing.T) {
	captured := time.Unix(1_700_000_100, 0).UTC()
	l := sampleLaunches()

	row := snapshotRow(captured, 0, l[0])
	require.Len(t, row, 19)
	assert.Equal(t, uint16(0), row[1])
	assert.Equal(t, l[0].TokenAddress, row[2])
	h, ok := row[16].(*uint32)
	require.True(t, ok)
	require.NotNil(t, h)
	assert.Equal(t, uint32(12), *h)

	row = snapshotRow(captured, 1, l[1])
	assert.Nil(t, row[16])
	assert.Equal(t, "unavailable", row[17])

	// ranks past 255 do not wrap
	row = snapshotRow(captured, 300, l[0])
	assert.Equal(t, uint16(300), row[1])
}

type failingBatch struct {
	driver.Batch
	aborted bool
}

func (b *failingBatch) Append(v ...any) error {
	return errors.New("clickhouse: column count mismatch")
}

func (b *failingBatch) Abort() error {
	b.aborted = true
	return nil
}

type batchConn struct {
	driver.Conn
	batch *failingBatch
}

func (c *batchConn) PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error) {
	return c.batch, nil
}

func TestClickHouseStore_AbortsBatchOnAppendError(t *testing.T) {
	batch := &failingBatch{}
	store := &ClickHouseStore{conn: &batchConn{batch: batch}, now: time.Now}

	err := store.StoreLaunches(context.Background(), sampleLaunches())
	require.Error(t, err)
	assert.True(t, batch.aborted)
}
