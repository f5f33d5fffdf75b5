package models

import (
	"math/big"
	"time"
)

// TokenCreated is a decoded TokenManager.TokenCreated log.
type TokenCreated struct {
	TokenID              *big.Int
	CreatorAddress       string
	PairAddress          string // hint only; zero until LP is deployed
	TokenContractAddress string
	TotalSupply          *big.Int // 18-decimal fixed point
	SalePercentage       uint8
	LPDeployed           bool

	// Curve parameters are carried for display; pricing uses the linear approximation.
	CurveScaler *big.Int
	CurveA      uint16
	CurveB      uint8

	BlockNumber uint64
	TxHash      string
}

// PairCreated is a decoded factory PairCreated log.
type PairCreated struct {
	Token0      string
	Token1      string
	PairAddress string
	BlockNumber uint64
}

// Purchase is a decoded TokenManager.Buy log.
type Purchase struct {
	TokenID     *big.Int
	Buyer       string
	Cost        *big.Int // native currency, 18-decimal fixed point
	TokenAmount *big.Int
	BlockNumber uint64
}

// TokenMetadata is the best-effort ERC-20 name/symbol read.
type TokenMetadata struct {
	Name   string
	Symbol string
}

// CreationBatch is every creation and pair event of one refresh window, with
// the block times that could be resolved for them.
type CreationBatch struct {
	Created    []TokenCreated
	Pairs      []PairCreated
	BlockTimes map[uint64]time.Time
}
