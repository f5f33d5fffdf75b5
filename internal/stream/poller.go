package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aman-zulfiqar/arena-terminal/internal/models"
	"github.com/sirupsen/logrus"
)

// Refresher recomputes the launch list on demand and reports failures.
// *aggregator.Aggregator satisfies it.
type Refresher interface {
	Refresh(ctx context.Context) ([]models.Launch, error)
}

// LaunchHandler receives every successfully refreshed list.
type LaunchHandler func([]models.Launch)

// Poller drives periodic refreshes so sinks and subscribers stay warm even
// when no HTTP request arrives.
type Poller struct {
	refresher    Refresher
	pollInterval time.Duration
	logger       *logrus.Logger

	mu       sync.RWMutex
	running  bool
	lastRun  time.Time
	lastErr  error
	failures int
}

// PollerConfig holds configuration for the poller
type PollerConfig struct {
	Refresher    Refresher
	PollInterval time.Duration
	Logger       *logrus.Logger
}

// NewPoller creates a new poller
func NewPoller(cfg PollerConfig) (*Poller, error) {
	if cfg.Refresher == nil {
		return nil, fmt.Errorf("refresher is nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}

	return &Poller{
		refresher:    cfg.Refresher,
		pollInterval: cfg.PollInterval,
		logger:       cfg.Logger,
	}, nil
}

// Start refreshes once immediately and then on every tick until ctx is done.
func (p *Poller) Start(ctx context.Context, handler LaunchHandler) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("poller already running")
	}
	p.running = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	p.logger.WithField("interval", p.pollInterval).Info("starting launch polling")

	p.poll(ctx, handler)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx, handler)
		}
	}
}

// PollStatus describes the most recent poll.
type PollStatus struct {
	LastRun  time.Time
	LastErr  error
	Failures int // consecutive
}

func (p *Poller) Status() PollStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return PollStatus{LastRun: p.lastRun, LastErr: p.lastErr, Failures: p.failures}
}

func (p *Poller) poll(ctx context.Context, handler LaunchHandler) {
	launches, err := p.refresher.Refresh(ctx)

	p.mu.Lock()
	p.lastRun = time.Now()
	p.lastErr = err
	if err != nil {
		p.failures++
	} else {
		p.failures = 0
	}
	failures := p.failures
	p.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.WithError(err).WithField("consecutive_failures", failures).Error("poll error")
		return
	}

	p.logger.WithField("launches", len(launches)).Debug("launch list refreshed")
	if handler != nil {
		handler(launches)
	}
}
