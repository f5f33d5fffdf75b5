package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool wraps pgxpool.Pool for dependency injection.
type Pool struct {
	*pgxpool.Pool
}

// NewPool creates a new Postgres connection pool.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// token_name and token_symbol stay NULL until a launch list resolves them;
// bonded_block is set from the first PairCreated naming the token.
const schema = `
	CREATE TABLE IF NOT EXISTS token_deployments (
		token_address   TEXT PRIMARY KEY,
		token_id        TEXT NOT NULL,
		deployer_wallet TEXT NOT NULL,
		token_name      TEXT,
		token_symbol    TEXT,
		total_supply    DOUBLE PRECISION NOT NULL,
		sale_percentage SMALLINT NOT NULL DEFAULT 0,
		pair_address    TEXT,
		lp_deployed     BOOLEAN NOT NULL DEFAULT FALSE,
		block_number    BIGINT NOT NULL,
		tx_hash         TEXT,
		deployed_at     TIMESTAMPTZ,
		bonded_block    BIGINT,
		bonded_at       TIMESTAMPTZ
	);
	ALTER TABLE token_deployments ALTER COLUMN token_name DROP NOT NULL;
	ALTER TABLE token_deployments ALTER COLUMN token_symbol DROP NOT NULL;
	ALTER TABLE token_deployments ADD COLUMN IF NOT EXISTS sale_percentage SMALLINT NOT NULL DEFAULT 0;
	ALTER TABLE token_deployments ADD COLUMN IF NOT EXISTS lp_deployed BOOLEAN NOT NULL DEFAULT FALSE;
	ALTER TABLE token_deployments ADD COLUMN IF NOT EXISTS tx_hash TEXT;
	ALTER TABLE token_deployments ADD COLUMN IF NOT EXISTS bonded_block BIGINT;
	ALTER TABLE token_deployments ADD COLUMN IF NOT EXISTS bonded_at TIMESTAMPTZ;
	CREATE INDEX IF NOT EXISTS token_deployments_deployer_idx ON token_deployments (deployer_wallet);
	CREATE TABLE IF NOT EXISTS deployer_wallets (
		wallet_address     TEXT PRIMARY KEY,
		first_seen_at      TIMESTAMPTZ,
		total_deployments  INTEGER NOT NULL DEFAULT 0,
		last_deployment_at TIMESTAMPTZ
	);
`

// Migrate creates the registry tables when missing and adds columns that
// older deployments lack.
func (p *Pool) Migrate(ctx context.Context) error {
	if _, err := p.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate registry schema: %w", err)
	}
	return nil
}
