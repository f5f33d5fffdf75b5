package postgres

import (
	"context"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/aman-zulfiqar/arena-terminal/internal/models"
	"github.com/aman-zulfiqar/arena-terminal/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	deployer = "0xAAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa"
	tokenA   = "0x1111111111111111111111111111111111111111"
	tokenB   = "0x2222222222222222222222222222222222222222"
	pairB    = "0x3333333333333333333333333333333333333333"
	wavax    = "0xB31f66AA3C1e785363F0875A1B74E27b85FD66c7"
)

func setupTestPool(t *testing.T) *Pool {
	t.Helper()

	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := NewPool(ctx, dsn)
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	require.NoError(t, pool.Migrate(ctx))
	// Migrate is safe to repeat
	require.NoError(t, pool.Migrate(ctx))
	_, err = pool.Exec(ctx, `TRUNCATE token_deployments, deployer_wallets`)
	require.NoError(t, err)

	t.Cleanup(pool.Close)
	return pool
}

func creation(id int64, token string, block uint64) models.TokenCreated {
	supply, _ := new(big.Int).SetString("1000000000000000000000000", 10)
	return models.TokenCreated{
		TokenID:              big.NewInt(id),
		CreatorAddress:       deployer,
		PairAddress:          "0x0000000000000000000000000000000000000000",
		TokenContractAddress: token,
		TotalSupply:          supply,
		SalePercentage:       73,
		BlockNumber:          block,
		TxHash:               "0xabc",
	}
}

func TestDeploymentStore_RecordsEveryCreation(t *testing.T) {
	pool := setupTestPool(t)
	store := NewDeploymentStore(pool)
	ctx := context.Background()

	t0 := time.Unix(1_700_000_000, 0).UTC()
	t1 := time.Unix(1_700_000_500, 0).UTC()
	batch := models.CreationBatch{
		Created:    []models.TokenCreated{creation(1, tokenA, 100), creation(2, tokenB, 200)},
		Pairs:      []models.PairCreated{{Token0: wavax, Token1: tokenB, PairAddress: pairB, BlockNumber: 250}},
		BlockTimes: map[uint64]time.Time{100: t0, 200: t1},
	}

	require.NoError(t, store.StoreCreations(ctx, batch))
	// the next window overlaps the previous one
	require.NoError(t, store.StoreCreations(ctx, batch))

	d, err := store.Deployer(ctx, deployer)
	require.NoError(t, err)
	assert.Equal(t, 2, d.TotalDeployments)
	assert.Equal(t, 1, d.BondedDeployments)
	require.NotNil(t, d.FirstSeenAt)
	require.NotNil(t, d.LastDeploymentAt)
	assert.Equal(t, t0.Unix(), d.FirstSeenAt.Unix())
	assert.Equal(t, t1.Unix(), d.LastDeploymentAt.Unix())

	var (
		lpDeployed  bool
		pair        *string
		bondedBlock *int64
		bondedAt    *time.Time
		txHash      *string
	)
	require.NoError(t, pool.QueryRow(ctx, `
		SELECT lp_deployed, pair_address, bonded_block, bonded_at, tx_hash
		FROM token_deployments WHERE token_address = $1
	`, tokenB).Scan(&lpDeployed, &pair, &bondedBlock, &bondedAt, &txHash))
	assert.True(t, lpDeployed)
	require.NotNil(t, pair)
	assert.Equal(t, pairB, *pair)
	require.NotNil(t, bondedBlock)
	assert.Equal(t, int64(250), *bondedBlock)
	assert.Nil(t, bondedAt, "block 250 had no resolved time")
	require.NotNil(t, txHash)
	assert.Equal(t, "0xabc", *txHash)
}

func TestDeploymentStore_LaunchesBackfillMetadata(t *testing.T) {
	pool := setupTestPool(t)
	store := NewDeploymentStore(pool)
	ctx := context.Background()

	require.NoError(t, store.StoreCreations(ctx, models.CreationBatch{
		Created: []models.TokenCreated{creation(1, tokenA, 100)},
	}))

	l := models.Launch{
		TokenAddress:   tokenA,
		TokenID:        "1",
		Creator:        deployer,
		Name:           "Arena Cat",
		Symbol:         "ACAT",
		TokenSupply:    1_000_000,
		BlockNumber:    100,
		Timestamp:      1_700_000_000,
		MetadataStatus: models.MetadataResolved,
	}
	require.NoError(t, store.StoreLaunches(ctx, []models.Launch{l}))

	fallback := l
	fallback.Name, fallback.Symbol = "0x1111...1111", "???"
	fallback.MetadataStatus = models.MetadataFallback
	require.NoError(t, store.StoreLaunches(ctx, []models.Launch{fallback}))

	var (
		name, symbol *string
		deployedAt   *time.Time
	)
	require.NoError(t, pool.QueryRow(ctx, `
		SELECT token_name, token_symbol, deployed_at FROM token_deployments WHERE token_address = $1
	`, tokenA).Scan(&name, &symbol, &deployedAt))
	require.NotNil(t, name)
	assert.Equal(t, "Arena Cat", *name)
	assert.Equal(t, "ACAT", *symbol)
	require.NotNil(t, deployedAt)
	assert.Equal(t, int64(1_700_000_000), deployedAt.Unix())

	d, err := store.Deployer(ctx, deployer)
	require.NoError(t, err)
	assert.Equal(t, 1, d.TotalDeployments)
}

func TestDeploymentStore_LaunchWithoutCreationIsCounted(t *testing.T) {
	pool := setupTestPool(t)
	store := NewDeploymentStore(pool)
	ctx := context.Background()

	require.NoError(t, store.StoreLaunches(ctx, []models.Launch{{
		TokenAddress: tokenB,
		TokenID:      "2",
		Creator:      deployer,
		BlockNumber:  200,
	}}))

	d, err := store.Deployer(ctx, deployer)
	require.NoError(t, err)
	assert.Equal(t, 1, d.TotalDeployments)
	assert.Equal(t, 0, d.BondedDeployments)
}

func TestDeploymentStore_UnknownDeployer(t *testing.T) {
	pool := setupTestPool(t)
	store := NewDeploymentStore(pool)

	_, err := store.Deployer(context.Background(), "0x0000000000000000000000000000000000000001")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSupplyUnits(t *testing.T) {
	supply, _ := new(big.Int).SetString("1500000000000000000", 10)
	assert.Equal(t, 1.5, supplyUnits(supply))
	assert.Equal(t, 0.0, supplyUnits(nil))
}
