package storage

import (
	"context"
	"errors"
	"io"

	"github.com/aman-zulfiqar/arena-terminal/internal/models"
)

// ErrNotFound is returned by lookups that have no matching row.
var ErrNotFound = errors.New("not found")

// LaunchSink receives every freshly computed launch list.
type LaunchSink interface {
	// StoreLaunches persists or forwards one refresh result
	StoreLaunches(ctx context.Context, launches []models.Launch) error
}

// CreationSink receives every creation and pair event of a refresh window,
// before the launch list is filtered and truncated.
type CreationSink interface {
	StoreCreations(ctx context.Context, batch models.CreationBatch) error
}

// DeployerDirectory answers per-wallet deployment statistics.
type DeployerDirectory interface {
	// Deployer returns ErrNotFound for a wallet with no recorded launch
	Deployer(ctx context.Context, wallet string) (*models.DeployerStats, error)
}

// LaunchCache defines the interface for the shared latest-launches cache
type LaunchCache interface {
	LaunchSink

	// GetLatestLaunches retrieves the last stored launch list
	GetLatestLaunches(ctx context.Context) ([]models.Launch, error)

	// UpdatePrice stores the current USD quote for an asset
	UpdatePrice(ctx context.Context, asset string, price float64) error

	// GetPrice retrieves the stored USD quote for an asset
	GetPrice(ctx context.Context, asset string) (float64, error)

	// Ping checks if the cache is reachable
	Ping(ctx context.Context) error

	// Close closes the cache connection
	io.Closer
}

// LaunchStore defines the interface for persistent launch history
type LaunchStore interface {
	LaunchSink

	// Ping checks if the store is reachable
	Ping(ctx context.Context) error

	// Close closes the store connection
	io.Closer
}

// LaunchHandler is a function that processes a published launch list
type LaunchHandler func([]models.Launch)

// LaunchFeed defines the interface for live launch list delivery
type LaunchFeed interface {
	// PublishLaunches publishes a launch list to subscribers
	PublishLaunches(ctx context.Context, launches []models.Launch) error

	// SubscribeLaunches delivers published lists until ctx is done
	SubscribeLaunches(ctx context.Context, handler LaunchHandler) error
}
