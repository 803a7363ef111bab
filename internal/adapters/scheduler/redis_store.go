package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// closingsKey is the sorted set holding pending closings scored by endAt
const closingsKey = "auction:closings"

// RedisScheduleStore persists pending auction closings in a Redis sorted
// set scored by the closing deadline's unix time
type RedisScheduleStore struct {
	client *redis.Client
}

// NewRedisScheduleStore creates a new Redis-backed schedule store
func NewRedisScheduleStore(client *redis.Client) *RedisScheduleStore {
	return &RedisScheduleStore{client: client}
}

// Add registers an auction to be closed at endAt; re-adding overwrites the score
func (r *RedisScheduleStore) Add(ctx context.Context, auctionID uuid.UUID, endAt time.Time) error {
	err := r.client.ZAdd(ctx, closingsKey, redis.Z{
		Score:  float64(endAt.Unix()),
		Member: auctionID.String(),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to add auction to schedule: %w", err)
	}
	return nil
}

// Due returns up to limit auctions whose deadline is at or before now
func (r *RedisScheduleStore) Due(ctx context.Context, now time.Time, limit int64) ([]uuid.UUID, error) {
	members, err := r.client.ZRangeByScore(ctx, closingsKey, &redis.ZRangeBy{
		Min:   "0",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get due auctions: %w", err)
	}

	due := make([]uuid.UUID, 0, len(members))
	for _, member := range members {
		auctionID, err := uuid.Parse(member)
		if err != nil {
			// A malformed member would stall the whole schedule; drop it.
			r.client.ZRem(ctx, closingsKey, member)
			continue
		}
		due = append(due, auctionID)
	}
	return due, nil
}

// Remove drops an auction from the schedule
func (r *RedisScheduleStore) Remove(ctx context.Context, auctionID uuid.UUID) error {
	if err := r.client.ZRem(ctx, closingsKey, auctionID.String()).Err(); err != nil {
		return fmt.Errorf("failed to remove auction from schedule: %w", err)
	}
	return nil
}
