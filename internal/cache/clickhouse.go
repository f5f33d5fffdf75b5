package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/aman-zulfiqar/arena-terminal/internal/models"
	"github.com/aman-zulfiqar/arena-terminal/internal/storage"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"
)

const launchSnapshotsDDL = `
	CREATE TABLE IF NOT EXISTS launch_snapshots (
		captured_at     DateTime64(3),
		rank            UInt16,
		token_address   String,
		token_id        String,
		name            String,
		symbol          String,
		creator         String,
		pair            String,
		block_number    UInt64,
		block_time      DateTime,
		price           Float64,
		market_cap      Float64,
		total_bonded    Float64,
		bonding_ratio   Float64,
		volume_usd      Float64,
		tx_count        UInt32,
		holders         Nullable(UInt32),
		holders_status  LowCardinality(String),
		metadata_status LowCardinality(String)
	) ENGINE = MergeTree
	ORDER BY (token_address, captured_at)
`

// ClickHouseConfig holds connection settings for the snapshot history store
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Logger   *logrus.Logger
}

// ClickHouseStore appends every refreshed launch list to launch_snapshots.
type ClickHouseStore struct {
	conn   driver.Conn
	logger *logrus.Logger
	now    func() time.Time
}

var _ storage.LaunchStore = (*ClickHouseStore)(nil)

func NewClickHouseStore(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseStore, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	if err := conn.Exec(ctx, launchSnapshotsDDL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create launch_snapshots: %w", err)
	}
	// tables created with a UInt8 rank
	if err := conn.Exec(ctx, `ALTER TABLE launch_snapshots MODIFY COLUMN IF EXISTS rank UInt16`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to widen launch_snapshots.rank: %w", err)
	}

	cfg.Logger.WithFields(logrus.Fields{
		"addr":     cfg.Addr,
		"database": cfg.Database,
	}).Info("connected to ClickHouse")

	return &ClickHouseStore{conn: conn, logger: cfg.Logger, now: time.Now}, nil
}

func (c *ClickHouseStore) StoreLaunches(ctx context.Context, launches []models.Launch) error {
	if len(launches) == 0 {
		return nil
	}

	batch, err := c.conn.PrepareBatch(ctx, `
		INSERT INTO launch_snapshots (
			captured_at, rank, token_address, token_id, name, symbol, creator, pair,
			block_number, block_time, price, market_cap, total_bonded, bonding_ratio,
			volume_usd, tx_count, holders, holders_status, metadata_status
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	captured := c.now().UTC()
	for i, l := range launches {
		err = batch.Append(snapshotRow(captured, i, l)...)
		if err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

func snapshotRow(captured time.Time, rank int, l models.Launch) []any {
	var holders *uint32
	if l.Holders != nil {
		h := uint32(*l.Holders)
		holders = &h
	}
	return []any{
		captured, uint16(rank), l.TokenAddress, l.TokenID, l.Name, l.Symbol, l.Creator, l.Pair,
		l.BlockNumber, time.Unix(l.Timestamp, 0).UTC(), l.Price, l.MarketCap, l.TotalBonded, l.BondingRatio,
		l.Volume, uint32(l.TxCount), holders, string(l.HoldersStatus), string(l.MetadataStatus),
	}
}

func (c *ClickHouseStore) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *ClickHouseStore) Close() error {
	return c.conn.Close()
}
