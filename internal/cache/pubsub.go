package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aman-zulfiqar/arena-terminal/internal/constants"
	"github.com/aman-zulfiqar/arena-terminal/internal/models"
	"github.com/aman-zulfiqar/arena-terminal/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// PubSubManager publishes launch lists on a Redis channel and fans them out
// to subscribers in other processes.
type PubSubManager struct {
	client  *redis.Client
	channel string
	logger  *logrus.Logger
}

var (
	_ storage.LaunchFeed = (*PubSubManager)(nil)
	_ storage.LaunchSink = (*PubSubManager)(nil)
)

func NewPubSubManager(client *redis.Client, logger *logrus.Logger) *PubSubManager {
	if logger == nil {
		logger = logrus.New()
	}
	return &PubSubManager{
		client:  client,
		channel: constants.PubSubChannelLaunches,
		logger:  logger,
	}
}

// StoreLaunches publishes so the manager can sit in the aggregator's sink list.
func (p *PubSubManager) StoreLaunches(ctx context.Context, launches []models.Launch) error {
	return p.PublishLaunches(ctx, launches)
}

func (p *PubSubManager) PublishLaunches(ctx context.Context, launches []models.Launch) error {
	if launches == nil {
		launches = []models.Launch{}
	}
	data, err := json.Marshal(launches)
	if err != nil {
		return fmt.Errorf("marshal launches: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish launches: %w", err)
	}
	return nil
}

// SubscribeLaunches blocks, calling handler for every published list, until
// ctx is done or the subscription closes.
func (p *PubSubManager) SubscribeLaunches(ctx context.Context, handler storage.LaunchHandler) error {
	pubsub := p.client.Subscribe(ctx, p.channel)
	defer pubsub.Close()

	// wait for the subscription confirmation so early publishes are not lost
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", p.channel, err)
	}

	p.logger.WithField("channel", p.channel).Info("subscribed to launch feed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var launches []models.Launch
			if err := json.Unmarshal([]byte(msg.Payload), &launches); err != nil {
				p.logger.WithError(err).Warn("failed to unmarshal launch list")
				continue
			}
			handler(launches)
		}
	}
}
