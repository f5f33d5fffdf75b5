package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aman-zulfiqar/arena-terminal/internal/constants"
	"github.com/aman-zulfiqar/arena-terminal/internal/models"
	"github.com/aman-zulfiqar/arena-terminal/internal/storage"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a key has never been written.
var ErrNotFound = errors.New("not found in cache")

// RedisCache keeps the latest launch list and native-currency quote in Redis
// so every process behind the API sees the same snapshot.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

var _ storage.LaunchCache = (*RedisCache)(nil)

// NewRedisCacheFromClient wraps an existing client; its owner closes it. ttl
// bounds how long a stored list stays readable, zero keeps it until overwritten.
func NewRedisCacheFromClient(client redis.Cmdable, ttl time.Duration) (*RedisCache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

func (r *RedisCache) StoreLaunches(ctx context.Context, launches []models.Launch) error {
	if launches == nil {
		launches = []models.Launch{}
	}
	b, err := json.Marshal(launches)
	if err != nil {
		return fmt.Errorf("marshal launches: %w", err)
	}
	if err := r.client.Set(ctx, constants.RedisKeyLatestLaunches, b, r.ttl).Err(); err != nil {
		return fmt.Errorf("store launches: %w", err)
	}
	return nil
}

func (r *RedisCache) GetLatestLaunches(ctx context.Context) ([]models.Launch, error) {
	val, err := r.client.Get(ctx, constants.RedisKeyLatestLaunches).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get launches: %w", err)
	}

	var launches []models.Launch
	if err := json.Unmarshal(val, &launches); err != nil {
		return nil, fmt.Errorf("unmarshal launches: %w", err)
	}
	return launches, nil
}

func (r *RedisCache) UpdatePrice(ctx context.Context, asset string, price float64) error {
	v := strconv.FormatFloat(price, 'f', -1, 64)
	if err := r.client.Set(ctx, constants.RedisKeyPricePrefix+asset, v, 0).Err(); err != nil {
		return fmt.Errorf("update price: %w", err)
	}
	return nil
}

func (r *RedisCache) GetPrice(ctx context.Context, asset string) (float64, error) {
	price, err := r.client.Get(ctx, constants.RedisKeyPricePrefix+asset).Float64()
	if err == redis.Nil {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get price: %w", err)
	}
	return price, nil
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close is a no-op; the shared client is closed by its owner.
func (r *RedisCache) Close() error {
	return nil
}
