package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Notifier publishes tenant-scoped change notifications for real-time UI
// subscribers. Delivery is best effort, at least once, no acknowledgment.
type Notifier interface {
	Publish(ctx context.Context, tenantID, topic string, payload any) error
}

// RedisNotifier fans out on Redis pub/sub channels named
// "tenant:{tenantID}:{topic}".
type RedisNotifier struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisNotifier wraps the given client.
func NewRedisNotifier(client *redis.Client, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{client: client, logger: logger}
}

// Publish serializes the payload and publishes it on the tenant channel.
func (n *RedisNotifier) Publish(ctx context.Context, tenantID, topic string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	channel := fmt.Sprintf("tenant:%s:%s", tenantID, topic)
	if err := n.client.Publish(ctx, channel, raw).Err(); err != nil {
		n.logger.Warn("notifier publish failed",
			zap.String("channel", channel),
			zap.Error(err))
		return err
	}
	return nil
}
