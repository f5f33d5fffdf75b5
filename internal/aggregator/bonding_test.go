package aggregator

import (
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestClamp_BoundedAndMonotonic(t *testing.T) {
	prev := -1.0
	prevPrice := 0.0
	for p := -2.0; p <= 3.0; p += 0.01 {
		c := Clamp(p)
		assert.GreaterOrEqual(t, c, 0.0)
		assert.LessOrEqual(t, c, 1.0)
		assert.GreaterOrEqual(t, c, prev)

		price := Price(c)
		assert.GreaterOrEqual(t, price, prevPrice)
		prev, prevPrice = c, price
	}
}

func TestPrice_Boundaries(t *testing.T) {
	assert.Equal(t, 0.001, Price(0))
	assert.Equal(t, 2.0, Price(1))
	assert.Equal(t, 2.0, Price(Clamp(4.2)))
}

func TestProgress(t *testing.T) {
	tests := []struct {
		name   string
		bonded string
		want   float64
	}{
		{"nothing bonded", "0", 0},
		{"exactly bonded", "503.15", 1},
		{"filter boundary", "176.1025", 0.35},
		{"over bonded", "1006.3", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Progress(decimal.RequireFromString(tt.bonded)))
		})
	}
}

func TestWithinProgress(t *testing.T) {
	tests := []struct {
		name   string
		bonded string
		want   bool
	}{
		{"nothing bonded", "0", true},
		{"at the boundary", "176.1025", true},
		{"one wei above", "176.102500000000000001", false},
		{"rounds to the boundary", "176.10250000000000001", false},
		{"fully bonded", "503.15", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WithinProgress(decimal.RequireFromString(tt.bonded), 0.35))
		})
	}
	// the rounded ratio alone cannot tell these apart
	assert.Equal(t, 0.35, Progress(decimal.RequireFromString("176.10250000000000001")))
}

func TestMarketCapAndPercentChange(t *testing.T) {
	assert.Equal(t, 1000.0, MarketCap(0.001, 1_000_000))
	assert.Equal(t, 0.0, PercentChange(0.001))
	assert.InDelta(t, 199900.0, PercentChange(2.0), 1e-6)
}

func TestFromWei(t *testing.T) {
	oneAndHalf, _ := new(big.Int).SetString("1500000000000000000", 10)
	assert.True(t, FromWei(oneAndHalf).Equal(decimal.RequireFromString("1.5")))
	assert.True(t, FromWei(nil).IsZero())

	total := sumWei([]*big.Int{oneAndHalf, nil, oneAndHalf})
	assert.Equal(t, "3000000000000000000", total.String())
}

func TestTimeAgo(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tests := []struct {
		age  time.Duration
		want string
	}{
		{-time.Second, "0s ago"},
		{12 * time.Second, "12s ago"},
		{5*time.Minute + 30*time.Second, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{50 * time.Hour, "2d ago"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TimeAgo(now, now.Add(-tt.age)))
	}
}
