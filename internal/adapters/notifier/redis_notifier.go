package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gavel-auction-service/internal/ports/outbound"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisNotifier publishes auction events over Redis pub/sub. Each event
// goes to the auction's channel and to the recipient's personal channel;
// the notification service downstream fans them out to users. Delivery is
// fire-and-forget: a failed publish is the caller's to log, never to roll
// back on.
type RedisNotifier struct {
	client *redis.Client
	logger zerolog.Logger
}

type RedisNotifierParams struct {
	RedisClient *redis.Client
	Logger      zerolog.Logger
}

// NewRedisNotifier creates a new Redis-backed notifier
func NewRedisNotifier(params RedisNotifierParams) *RedisNotifier {
	return &RedisNotifier{
		client: params.RedisClient,
		logger: params.Logger.With().Str("component", "redis_notifier").Logger(),
	}
}

// Publish sends an event to the auction channel and the recipient channel
func (r *RedisNotifier) Publish(ctx context.Context, event outbound.Event) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	channels := []string{
		fmt.Sprintf("auction:%s", event.AuctionID),
		fmt.Sprintf("user:%s", event.RecipientUserID),
	}
	for _, channel := range channels {
		if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
			return fmt.Errorf("failed to publish to %s: %w", channel, err)
		}
	}

	r.logger.Debug().
		Str("event_type", string(event.Type)).
		Str("auction_id", event.AuctionID.String()).
		Str("recipient", event.RecipientUserID.String()).
		Msg("Published auction event")
	return nil
}
