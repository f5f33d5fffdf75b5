package rpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// CallObserver receives the outcome of every RPC call, retries included.
type CallObserver func(method string, took time.Duration, err error)

// Client is an EVM JSON-RPC client with retry, rate limiting and timeout support
type Client struct {
	eth          *ethclient.Client
	maxRetries   int
	retryBackoff time.Duration
	limiter      *rate.Limiter
	observe      CallObserver
	logger       *logrus.Logger
}

// ClientConfig holds configuration for the RPC client
type ClientConfig struct {
	URL          string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	RateLimit    float64 // requests per second, 0 disables limiting
	Observer     CallObserver
	Logger       *logrus.Logger
}

// Dial connects to the node and returns a client with retry support
func Dial(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	httpClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 16,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	rc, err := gethrpc.DialOptions(ctx, cfg.URL, gethrpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc %s: %w", cfg.URL, err)
	}

	return newClient(ethclient.NewClient(rc), cfg), nil
}

func newClient(eth *ethclient.Client, cfg ClientConfig) *Client {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return &Client{
		eth:          eth,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		limiter:      limiter,
		observe:      cfg.Observer,
		logger:       cfg.Logger,
	}
}

// Close releases the underlying connection
func (c *Client) Close() {
	if c.eth != nil {
		c.eth.Close()
	}
}

// do runs fn with rate limiting and exponential backoff between attempts
func (c *Client) do(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"backoff": backoff,
				"method":  method,
			}).Debug("retrying RPC call")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2 // exponential backoff
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		start := time.Now()
		err := fn(ctx)
		if c.observe != nil {
			c.observe(method, time.Since(start), err)
		}
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("%s: max retries exceeded: %w", method, lastErr)
}

// BlockNumber returns the latest block height
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var n uint64
	err := c.do(ctx, "eth_blockNumber", func(ctx context.Context) error {
		var err error
		n, err = c.eth.BlockNumber(ctx)
		return err
	})
	return n, err
}

// FilterLogs fetches logs matching q
func (c *Client) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	var logs []types.Log
	err := c.do(ctx, "eth_getLogs", func(ctx context.Context) error {
		var err error
		logs, err = c.eth.FilterLogs(ctx, q)
		return err
	})
	return logs, err
}

// BlockTime returns the unix timestamp of the given block
func (c *Client) BlockTime(ctx context.Context, number uint64) (uint64, error) {
	var ts uint64
	err := c.do(ctx, "eth_getBlockByNumber", func(ctx context.Context) error {
		h, err := c.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
		if err != nil {
			return err
		}
		ts = h.Time
		return nil
	})
	return ts, err
}

// CallContract executes a read-only call against the latest state
func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	var out []byte
	err := c.do(ctx, "eth_call", func(ctx context.Context) error {
		var err error
		out, err = c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
		return err
	})
	return out, err
}
