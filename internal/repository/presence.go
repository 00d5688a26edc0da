package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const onlineUsersKey = "online_users"

// PresenceRepo mirrors the durable is_online flag in Redis as a sorted set
// scored by last-refresh time, so the online listing does not need to hit
// Postgres on every poll. The flag in Postgres stays authoritative at
// announce/close boundaries.
type PresenceRepo struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewPresenceRepo(redis *redis.Client, ttl time.Duration) *PresenceRepo {
	return &PresenceRepo{
		redis: redis,
		ttl:   ttl,
	}
}

func (pr *PresenceRepo) Refresh(ctx context.Context, userID int) error {
	return pr.redis.ZAdd(ctx, onlineUsersKey, redis.Z{
		Score:  float64(time.Now().Unix()),
		Member: userID,
	}).Err()
}

func (pr *PresenceRepo) Remove(ctx context.Context, userID int) error {
	return pr.redis.ZRem(ctx, onlineUsersKey, userID).Err()
}

// OnlineUserIDs returns users refreshed within the TTL window. Entries past
// the window are treated as stale and dropped.
func (pr *PresenceRepo) OnlineUserIDs(ctx context.Context) ([]int, error) {
	threshold := time.Now().Add(-pr.ttl).Unix()

	pr.redis.ZRemRangeByScore(ctx, onlineUsersKey, "-inf", strconv.FormatInt(threshold-1, 10))

	members, err := pr.redis.ZRangeByScore(ctx, onlineUsersKey, &redis.ZRangeBy{
		Min: strconv.FormatInt(threshold, 10),
		Max: "+inf",
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}

	ids := make([]int, 0, len(members))
	for _, m := range members {
		id, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
