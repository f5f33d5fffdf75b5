package constants

import "time"

// Redis keys
const (
	RedisKeyLatestLaunches = "launches:latest"
	RedisKeyPricePrefix    = "price:"
)

// Redis Pub/Sub channels
const (
	PubSubChannelLaunches = "launches:live"
)

// Contract addresses on the Avalanche C-Chain
const (
	// TokenManagerAddress emits TokenCreated and Buy.
	TokenManagerAddress = "0x8315f1eb449Dd4B779495C3A0b05e5d194446c6e"
	// PairFactoryAddress emits PairCreated when a bonded token's LP is deployed.
	PairFactoryAddress = "0xF16784dcAf838a3e16bEF7711a62D12413c39BD1"
	WAVAXAddress       = "0xB31f66AA3C1e785363F0875A1B74E27b85FD66c7"
	ZeroAddress        = "0x0000000000000000000000000000000000000000"
)

// Bonding curve approximation
const (
	TotalAVAXToBond = 503.15
	InitialPrice    = 0.001
	FinalPrice      = 2.0
	TokenDecimals   = 18
)

// Failure policies for a refresh that cannot reach the ledger
const (
	FailurePolicyEmpty = "empty"
	FailurePolicyStale = "stale"
)

// Aggregation defaults
const (
	DefaultScanWindow      = 2000
	DefaultHolderWindow    = 5000
	DefaultConfirmationLag = 3
	DefaultMaxLaunches     = 15
	MaxLaunchesLimit       = 100
	DefaultMaxProgress     = 0.35
	DefaultCacheTTL        = 10 * time.Second
	DefaultEnrichWorkers   = 8
	DefaultCallTimeout     = 8 * time.Second
	DefaultRefreshTimeout  = 60 * time.Second
	// Public C-Chain endpoints reject eth_getLogs spans above 2048 blocks.
	DefaultMaxLogRange = 2048
)

// Spot price quote
const (
	DefaultPriceAssetID  = "avalanche-2"
	DefaultPriceAPIURL   = "https://api.coingecko.com/api/v3"
	DefaultPriceTTL      = 5 * time.Minute
	BootstrapNativeUSD   = 40.0
	PlaceholderSymbol    = "???"
	NativeCurrencySymbol = "AVAX"
)

// Event ABIs for log decoding
const (
	TokenManagerABI = `[
	{"anonymous":false,"name":"TokenCreated","type":"event","inputs":[
		{"indexed":false,"internalType":"uint256","name":"tokenId","type":"uint256"},
		{"indexed":false,"internalType":"struct TokenManager.TokenParameters","name":"params","type":"tuple","components":[
			{"internalType":"uint128","name":"curveScaler","type":"uint128"},
			{"internalType":"uint16","name":"a","type":"uint16"},
			{"internalType":"uint8","name":"b","type":"uint8"},
			{"internalType":"bool","name":"lpDeployed","type":"bool"},
			{"internalType":"uint8","name":"lpPercentage","type":"uint8"},
			{"internalType":"uint8","name":"salePercentage","type":"uint8"},
			{"internalType":"uint8","name":"creatorFeeBasisPoints","type":"uint8"},
			{"internalType":"address","name":"creatorAddress","type":"address"},
			{"internalType":"address","name":"pairAddress","type":"address"},
			{"internalType":"address","name":"tokenContractAddress","type":"address"}]},
		{"indexed":false,"internalType":"uint256","name":"tokenSupply","type":"uint256"}]},
	{"anonymous":false,"name":"Buy","type":"event","inputs":[
		{"indexed":false,"internalType":"address","name":"user","type":"address"},
		{"indexed":false,"internalType":"uint256","name":"tokenId","type":"uint256"},
		{"indexed":false,"internalType":"uint256","name":"tokenAmount","type":"uint256"},
		{"indexed":false,"internalType":"uint256","name":"cost","type":"uint256"},
		{"indexed":false,"internalType":"uint256","name":"tokenSupply","type":"uint256"},
		{"indexed":false,"internalType":"address","name":"referrerAddress","type":"address"},
		{"indexed":false,"internalType":"uint256","name":"referralFee","type":"uint256"},
		{"indexed":false,"internalType":"uint256","name":"creatorFee","type":"uint256"},
		{"indexed":false,"internalType":"uint256","name":"protocolFee","type":"uint256"}]}
]`

	PairFactoryABI = `[
	{"anonymous":false,"name":"PairCreated","type":"event","inputs":[
		{"indexed":true,"internalType":"address","name":"token0","type":"address"},
		{"indexed":true,"internalType":"address","name":"token1","type":"address"},
		{"indexed":false,"internalType":"address","name":"pair","type":"address"},
		{"indexed":false,"internalType":"uint256","name":"","type":"uint256"}]}
]`

	ERC20ABI = `[
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"anonymous":false,"name":"Transfer","type":"event","inputs":[
		{"indexed":true,"name":"from","type":"address"},
		{"indexed":true,"name":"to","type":"address"},
		{"indexed":false,"name":"value","type":"uint256"}]}
]`
)
