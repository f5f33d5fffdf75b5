package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aman-zulfiqar/arena-terminal/internal/constants"
)

// Source returns a USD spot price for an asset id.
type Source interface {
	SpotPrice(ctx context.Context, assetID string) (float64, error)
}

// Client talks to a CoinGecko-compatible simple price endpoint.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

var _ Source = (*Client)(nil)

func NewClient(baseURL, apiKey string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = constants.DefaultPriceAPIURL
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  strings.TrimSpace(apiKey),
		HTTP: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("price api http %d", e.StatusCode)
	}
	return fmt.Sprintf("price api http %d: %s", e.StatusCode, b)
}

type simplePrice struct {
	USD *float64 `json:"usd"`
}

// SpotPrice fetches {assetID: {usd: n}} and returns n.
func (c *Client) SpotPrice(ctx context.Context, assetID string) (float64, error) {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return 0, fmt.Errorf("assetID is required")
	}

	q := url.Values{}
	q.Set("ids", assetID)
	q.Set("vs_currencies", "usd")

	u := c.BaseURL + "/simple/price?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.APIKey)
	}

	res, err := c.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return 0, &HTTPError{StatusCode: res.StatusCode, Body: body}
	}

	var out map[string]simplePrice
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("failed to decode price response: %w", err)
	}
	p, ok := out[assetID]
	if !ok || p.USD == nil {
		return 0, fmt.Errorf("price response has no usd quote for %s", assetID)
	}
	if *p.USD <= 0 {
		return 0, fmt.Errorf("price response has non-positive quote %v for %s", *p.USD, assetID)
	}
	return *p.USD, nil
}
