package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

// Publisher is the part of a redis client the channel needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisChannel publishes notifications on a shared channel and on a
// per-recipient channel "<base>:<type>:<id>" that clients subscribe to.
type RedisChannel struct {
	client Publisher
	base   string
}

// NewRedisChannel builds the channel.
func NewRedisChannel(client Publisher, base string) *RedisChannel {
	return &RedisChannel{client: client, base: base}
}

// Name implements service.NotificationChannel.
func (c *RedisChannel) Name() string { return "redis" }

type redisMessage struct {
	Recipient domain.Recipient        `json:"recipient"`
	TicketID  string                  `json:"ticket_id"`
	Type      domain.NotificationType `json:"type"`
	Message   string                  `json:"message"`
	CreatedAt string                  `json:"created_at"`
}

// Deliver implements service.NotificationChannel.
func (c *RedisChannel) Deliver(ctx context.Context, notification domain.Notification) error {
	payload, err := json.Marshal(redisMessage{
		Recipient: notification.Recipient,
		TicketID:  notification.TicketID,
		Type:      notification.Type,
		Message:   notification.Message,
		CreatedAt: notification.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := c.client.Publish(ctx, c.base, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", c.base, err)
	}
	channel := RecipientChannel(c.base, notification.Recipient)
	if err := c.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// RecipientChannel names the per-recipient pub/sub channel.
func RecipientChannel(base string, recipient domain.Recipient) string {
	return fmt.Sprintf("%s:%s:%s", base, strings.ToLower(string(recipient.Type)), recipient.ID)
}
