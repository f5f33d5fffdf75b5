package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/aman-zulfiqar/arena-terminal/internal/constants"
	"github.com/aman-zulfiqar/arena-terminal/internal/models"
	"github.com/aman-zulfiqar/arena-terminal/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// DeploymentStore is the deployment registry. Every TokenCreated event of a
// refresh window lands in token_deployments, PairCreated events mark tokens
// as bonded, and deployer_wallets keeps per-wallet counters.
type DeploymentStore struct {
	pool *Pool
}

func NewDeploymentStore(pool *Pool) *DeploymentStore {
	return &DeploymentStore{pool: pool}
}

// Compile-time interface checks.
var (
	_ storage.CreationSink      = (*DeploymentStore)(nil)
	_ storage.LaunchSink        = (*DeploymentStore)(nil)
	_ storage.DeployerDirectory = (*DeploymentStore)(nil)
)

// StoreCreations records the unfiltered event window in one transaction.
// Deployer counters move only when the deployment row is new, so overlapping
// windows do not inflate them.
func (s *DeploymentStore) StoreCreations(ctx context.Context, batch models.CreationBatch) error {
	if len(batch.Created) == 0 && len(batch.Pairs) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, ev := range batch.Created {
			if err := insertCreation(ctx, tx, ev, blockTime(batch.BlockTimes, ev.BlockNumber)); err != nil {
				return err
			}
		}
		for _, p := range batch.Pairs {
			if err := markBonded(ctx, tx, p, blockTime(batch.BlockTimes, p.BlockNumber)); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertCreation(ctx context.Context, tx pgx.Tx, ev models.TokenCreated, deployedAt *time.Time) error {
	if ev.TokenContractAddress == "" || ev.TokenID == nil {
		return nil
	}
	var pair *string
	if ev.PairAddress != "" && !strings.EqualFold(ev.PairAddress, constants.ZeroAddress) {
		p := strings.ToLower(ev.PairAddress)
		pair = &p
	}
	var txHash *string
	if ev.TxHash != "" {
		txHash = &ev.TxHash
	}
	deployer := strings.ToLower(ev.CreatorAddress)

	tag, err := tx.Exec(ctx, `
		INSERT INTO token_deployments (
			token_address, token_id, deployer_wallet, total_supply, sale_percentage,
			pair_address, lp_deployed, block_number, tx_hash, deployed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (token_address) DO NOTHING
	`,
		strings.ToLower(ev.TokenContractAddress),
		ev.TokenID.String(),
		deployer,
		supplyUnits(ev.TotalSupply),
		int16(ev.SalePercentage),
		pair,
		ev.LPDeployed,
		int64(ev.BlockNumber),
		txHash,
		deployedAt,
	)
	if err != nil {
		return fmt.Errorf("insert token deployment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}
	return bumpDeployer(ctx, tx, deployer, deployedAt)
}

func markBonded(ctx context.Context, tx pgx.Tx, p models.PairCreated, bondedAt *time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE token_deployments
		SET lp_deployed = TRUE,
			pair_address = $1,
			bonded_block = $2,
			bonded_at = $3
		WHERE token_address IN ($4, $5) AND bonded_block IS NULL
	`,
		strings.ToLower(p.PairAddress),
		int64(p.BlockNumber),
		bondedAt,
		strings.ToLower(p.Token0),
		strings.ToLower(p.Token1),
	)
	if err != nil {
		return fmt.Errorf("mark token bonded: %w", err)
	}
	return nil
}

func bumpDeployer(ctx context.Context, tx pgx.Tx, wallet string, at *time.Time) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO deployer_wallets (wallet_address, first_seen_at, total_deployments, last_deployment_at)
		VALUES ($1, $2, 1, $2)
		ON CONFLICT (wallet_address) DO UPDATE
		SET total_deployments = deployer_wallets.total_deployments + 1,
			first_seen_at = LEAST(deployer_wallets.first_seen_at, EXCLUDED.first_seen_at),
			last_deployment_at = GREATEST(deployer_wallets.last_deployment_at, EXCLUDED.last_deployment_at)
	`, wallet, at)
	if err != nil {
		return fmt.Errorf("update deployer stats: %w", err)
	}
	return nil
}

// StoreLaunches backfills the token names and symbols the launch list
// resolved. A launch whose creation was never recorded is inserted here.
func (s *DeploymentStore) StoreLaunches(ctx context.Context, launches []models.Launch) error {
	for _, l := range launches {
		if err := s.backfill(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

func (s *DeploymentStore) backfill(ctx context.Context, l models.Launch) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var deployedAt *time.Time
		if l.Timestamp > 0 {
			t := time.Unix(l.Timestamp, 0).UTC()
			deployedAt = &t
		}
		var name, symbol *string
		if l.MetadataStatus == models.MetadataResolved {
			name, symbol = &l.Name, &l.Symbol
		}
		var pair *string
		if l.Pair != "" {
			p := strings.ToLower(l.Pair)
			pair = &p
		}
		deployer := strings.ToLower(l.Creator)

		var inserted bool
		err := tx.QueryRow(ctx, `
			INSERT INTO token_deployments (
				token_address, token_id, deployer_wallet, token_name, token_symbol,
				total_supply, sale_percentage, pair_address, block_number, deployed_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (token_address) DO UPDATE
			SET token_name = COALESCE(EXCLUDED.token_name, token_deployments.token_name),
				token_symbol = COALESCE(EXCLUDED.token_symbol, token_deployments.token_symbol),
				deployed_at = COALESCE(token_deployments.deployed_at, EXCLUDED.deployed_at)
			RETURNING (xmax = 0)
		`,
			strings.ToLower(l.TokenAddress),
			l.TokenID,
			deployer,
			name,
			symbol,
			l.TokenSupply,
			int16(l.SalePercentage),
			pair,
			int64(l.BlockNumber),
			deployedAt,
		).Scan(&inserted)
		if err != nil {
			return fmt.Errorf("upsert token deployment: %w", err)
		}
		if !inserted {
			return nil
		}
		return bumpDeployer(ctx, tx, deployer, deployedAt)
	})
}

// Deployer returns the counters for one wallet.
func (s *DeploymentStore) Deployer(ctx context.Context, wallet string) (*models.DeployerStats, error) {
	var d models.DeployerStats
	err := s.pool.QueryRow(ctx, `
		SELECT w.wallet_address, w.first_seen_at, w.last_deployment_at, w.total_deployments,
			(SELECT count(*) FROM token_deployments t
			 WHERE t.deployer_wallet = w.wallet_address AND t.lp_deployed)
		FROM deployer_wallets w
		WHERE w.wallet_address = $1
	`, strings.ToLower(wallet)).Scan(&d.Wallet, &d.FirstSeenAt, &d.LastDeploymentAt, &d.TotalDeployments, &d.BondedDeployments)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get deployer: %w", err)
	}
	return &d, nil
}

func blockTime(times map[uint64]time.Time, block uint64) *time.Time {
	t, ok := times[block]
	if !ok {
		return nil
	}
	t = t.UTC()
	return &t
}

// supplyUnits converts an 18-decimal supply to whole tokens.
func supplyUnits(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := decimal.NewFromBigInt(v, -constants.TokenDecimals).Float64()
	return f
}
