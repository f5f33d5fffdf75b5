package flags

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aman-zulfiqar/arena-terminal/internal/constants"
	"github.com/redis/go-redis/v9"
)

const (
	indexKey    = "flags:index"
	valuePrefix = "flags:"
)

type Store struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewStore(client redis.Cmdable) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &Store{client: client, now: time.Now}, nil
}

// Normalize validates value for key and returns its canonical form.
func Normalize(key, value string) (string, error) {
	value = strings.TrimSpace(value)
	switch key {
	case KeyFailurePolicy:
		v := strings.ToLower(value)
		if v != constants.FailurePolicyEmpty && v != constants.FailurePolicyStale {
			return "", fmt.Errorf("%s must be %q or %q", key, constants.FailurePolicyEmpty, constants.FailurePolicyStale)
		}
		return v, nil
	case KeyMaxProgress:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f <= 0 {
			return "", fmt.Errorf("%s must be a number > 0", key)
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
}

func (s *Store) Upsert(ctx context.Context, key, value string) (*Flag, error) {
	v, err := Normalize(key, value)
	if err != nil {
		return nil, err
	}

	flag := &Flag{Key: key, Value: v, UpdatedAt: s.now().UTC()}
	b, err := json.Marshal(flag)
	if err != nil {
		return nil, fmt.Errorf("marshal flag: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, flagKey(key), b, 0)
	pipe.SAdd(ctx, indexKey, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("upsert flag: %w", err)
	}

	return flag, nil
}

func (s *Store) Get(ctx context.Context, key string) (*Flag, error) {
	if _, err := knownKey(key); err != nil {
		return nil, err
	}

	val, err := s.client.Get(ctx, flagKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get flag: %w", err)
	}

	var f Flag
	if err := json.Unmarshal([]byte(val), &f); err != nil {
		return nil, fmt.Errorf("unmarshal flag: %w", err)
	}
	return &f, nil
}

func (s *Store) List(ctx context.Context) ([]*Flag, error) {
	keys, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list flags index: %w", err)
	}

	redisKeys := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, err := knownKey(k); err != nil {
			continue
		}
		redisKeys = append(redisKeys, flagKey(k))
	}
	if len(redisKeys) == 0 {
		return []*Flag{}, nil
	}

	vals, err := s.client.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget flags: %w", err)
	}

	out := make([]*Flag, 0, len(vals))
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var f Flag
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			continue
		}
		out = append(out, &f)
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := knownKey(key); err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, flagKey(key))
	pipe.SRem(ctx, indexKey, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete flag: %w", err)
	}
	return nil
}

// FailurePolicy returns the override for the refresh failure policy, or
// ErrNotFound when none is set.
func (s *Store) FailurePolicy(ctx context.Context) (string, error) {
	f, err := s.Get(ctx, KeyFailurePolicy)
	if err != nil {
		return "", err
	}
	return Normalize(KeyFailurePolicy, f.Value)
}

// MaxProgress returns the override for the launch filter, or ErrNotFound
// when none is set.
func (s *Store) MaxProgress(ctx context.Context) (float64, error) {
	f, err := s.Get(ctx, KeyMaxProgress)
	if err != nil {
		return 0, err
	}
	v, err := Normalize(KeyMaxProgress, f.Value)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(v, 64)
}

func knownKey(key string) (string, error) {
	switch key {
	case KeyFailurePolicy, KeyMaxProgress:
		return key, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
}

func flagKey(key string) string {
	return valuePrefix + key
}
