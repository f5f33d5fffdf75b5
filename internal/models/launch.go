package models

import "time"

// HolderStatus tells consumers whether Holders carries a real count.
type HolderStatus string

const (
	HoldersCounted     HolderStatus = "counted"
	HoldersUnavailable HolderStatus = "unavailable"
)

// MetadataStatus tells consumers whether Name/Symbol came from the token contract.
type MetadataStatus string

const (
	MetadataResolved MetadataStatus = "resolved"
	MetadataFallback MetadataStatus = "fallback"
)

type Socials struct {
	Twitter  string `json:"twitter"`
	Website  string `json:"website"`
	Telegram string `json:"telegram"`
}

// Launch is one token early in its bonding lifecycle, as served to the dashboard.
// Values are immutable once computed; TimeAgo is relative to the refresh that built it.
type Launch struct {
	Logo           string  `json:"logo"`
	Name           string  `json:"name"`
	Symbol         string  `json:"symbol"`
	Creator        string  `json:"creator"`
	Pair           string  `json:"pair"`
	Token0         string  `json:"token0"`
	Token1         string  `json:"token1"`
	TimeAgo        string  `json:"timeAgo"`
	TokenID        string  `json:"tokenId"`
	TokenAddress   string  `json:"tokenAddress"`
	TokenSupply    float64 `json:"tokenSupply"`
	SalePercentage int     `json:"salePercentage"`
	Socials        Socials `json:"socials"`

	PercentChange float64 `json:"percentChange"`
	Price         float64 `json:"price"`
	MarketCap     float64 `json:"marketCap"`
	TxCount       int     `json:"txCount"`
	Progress      float64 `json:"progress"` // percent, 0-100
	Holders       *int    `json:"holders"`
	Volume        float64 `json:"volume"` // USD
	TotalBonded   float64 `json:"totalBonded"`
	BondingRatio  float64 `json:"bondingRatio"` // clamped, 0-1

	BlockNumber uint64    `json:"blockNumber"`
	Timestamp   int64     `json:"timestamp"`
	CreatedAt   time.Time `json:"createdAt"`

	HoldersStatus  HolderStatus   `json:"holdersStatus"`
	MetadataStatus MetadataStatus `json:"metadataStatus"`

	// RawProgress is the unclamped bonding ratio used by the freshness filter.
	RawProgress float64 `json:"-"`
}
