package aggregator

import (
	"math/big"

	"github.com/aman-zulfiqar/arena-terminal/internal/constants"
	"github.com/shopspring/decimal"
)

var totalToBond = decimal.NewFromFloat(constants.TotalAVAXToBond)

// Progress is the unclamped bonding ratio for totalBonded native units.
// The division stays in decimal so ratios such as 0.35 land exactly.
func Progress(totalBonded decimal.Decimal) float64 {
	p, _ := totalBonded.Div(totalToBond).Float64()
	return p
}

// WithinProgress reports whether totalBonded is at most maxProgress of the
// bonding target. The comparison is exact; Progress is rounded for display.
func WithinProgress(totalBonded decimal.Decimal, maxProgress float64) bool {
	return totalBonded.Cmp(totalToBond.Mul(decimal.NewFromFloat(maxProgress))) <= 0
}

// Clamp bounds p to [0,1].
func Clamp(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Price interpolates linearly between the initial and final curve price.
// The on-chain curve parameters are not consulted.
func Price(clamped float64) float64 {
	return constants.InitialPrice + (constants.FinalPrice-constants.InitialPrice)*clamped
}

func MarketCap(price, supply float64) float64 {
	return price * supply
}

func PercentChange(price float64) float64 {
	return (price - constants.InitialPrice) / constants.InitialPrice * 100
}

// FromWei converts an 18-decimal fixed-point amount to whole units.
func FromWei(v *big.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -constants.TokenDecimals)
}

// sumWei adds fixed-point amounts exactly before conversion.
func sumWei(values []*big.Int) *big.Int {
	total := new(big.Int)
	for _, v := range values {
		if v != nil {
			total.Add(total, v)
		}
	}
	return total
}
