package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/aman-zulfiqar/arena-terminal/internal/constants"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Quote is the cached native-currency price.
type Quote struct {
	Price      float64   `json:"price"`
	CapturedAt time.Time `json:"captured_at"`
	Bootstrap  bool      `json:"bootstrap"` // true until the first successful fetch
}

// QuoteCacheConfig holds configuration for the quote cache
type QuoteCacheConfig struct {
	Source    Source
	AssetID   string
	TTL       time.Duration
	Bootstrap float64
	// OnFetch is called after every fetch attempt.
	OnFetch func(price float64, err error)
	Logger  *logrus.Logger
	Now     func() time.Time
}

// QuoteCache holds one USD-per-native-currency quote. A failed refresh keeps
// the previous value; before any success the bootstrap value is served.
type QuoteCache struct {
	src     Source
	assetID string
	ttl     time.Duration
	onFetch func(float64, error)
	logger  *logrus.Logger
	now     func() time.Time

	group singleflight.Group

	mu    sync.RWMutex
	quote Quote
}

func NewQuoteCache(cfg QuoteCacheConfig) *QuoteCache {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.AssetID == "" {
		cfg.AssetID = constants.DefaultPriceAssetID
	}
	if cfg.TTL <= 0 {
		cfg.TTL = constants.DefaultPriceTTL
	}
	if cfg.Bootstrap <= 0 {
		cfg.Bootstrap = constants.BootstrapNativeUSD
	}
	return &QuoteCache{
		src:     cfg.Source,
		assetID: cfg.AssetID,
		ttl:     cfg.TTL,
		onFetch: cfg.OnFetch,
		logger:  cfg.Logger,
		now:     cfg.Now,
		quote:   Quote{Price: cfg.Bootstrap, Bootstrap: true},
	}
}

// Price returns the current quote, refreshing it first when older than the TTL.
func (q *QuoteCache) Price(ctx context.Context) float64 {
	if q.fresh() {
		return q.Current().Price
	}

	_, _, _ = q.group.Do("quote", func() (interface{}, error) {
		if q.fresh() {
			return nil, nil
		}
		q.refresh(ctx)
		return nil, nil
	})
	return q.Current().Price
}

// Current returns the cached quote without refreshing.
func (q *QuoteCache) Current() Quote {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.quote
}

func (q *QuoteCache) fresh() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return !q.quote.Bootstrap && q.now().Sub(q.quote.CapturedAt) < q.ttl
}

func (q *QuoteCache) refresh(ctx context.Context) {
	if q.src == nil {
		return
	}

	price, err := q.src.SpotPrice(ctx, q.assetID)
	if q.onFetch != nil {
		q.onFetch(price, err)
	}
	if err != nil {
		cur := q.Current()
		q.logger.WithError(err).WithFields(logrus.Fields{
			"asset":     q.assetID,
			"retained":  cur.Price,
			"bootstrap": cur.Bootstrap,
		}).Warn("price quote fetch failed, keeping previous quote")
		return
	}

	q.mu.Lock()
	q.quote = Quote{Price: price, CapturedAt: q.now()}
	q.mu.Unlock()

	q.logger.WithFields(logrus.Fields{
		"asset": q.assetID,
		"usd":   price,
	}).Debug("price quote refreshed")
}
