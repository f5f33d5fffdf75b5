// Package ledger reads Arena launch activity from the Avalanche C-Chain.
package ledger

import (
	"context"
	"time"

	"github.com/aman-zulfiqar/arena-terminal/internal/models"
)

// Ledger is the read surface the aggregator needs from the chain.
type Ledger interface {
	// LatestBlockNumber returns the current chain head.
	LatestBlockNumber(ctx context.Context) (uint64, error)

	// TokenCreatedEvents returns TokenManager.TokenCreated logs in [from, to].
	TokenCreatedEvents(ctx context.Context, from, to uint64) ([]models.TokenCreated, error)

	// PairCreatedEvents returns factory PairCreated logs in [from, to].
	PairCreatedEvents(ctx context.Context, from, to uint64) ([]models.PairCreated, error)

	// PurchaseEvents returns TokenManager.Buy logs in [from, to].
	PurchaseEvents(ctx context.Context, from, to uint64) ([]models.Purchase, error)

	// BlockTime returns the timestamp of a block.
	BlockTime(ctx context.Context, number uint64) (time.Time, error)

	// TokenMetadata reads the ERC-20 name and symbol.
	TokenMetadata(ctx context.Context, token string) (models.TokenMetadata, error)

	// HolderCount counts distinct non-zero Transfer recipients of token in [from, to].
	HolderCount(ctx context.Context, token string, from, to uint64) (int, error)
}
