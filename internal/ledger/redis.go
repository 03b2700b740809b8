package ledger

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "events:seen:"

// Event IDs are only unique per provider, so the key carries both.
func seenKey(provider, eventID string) string {
	return keyPrefix + provider + ":" + eventID
}

type RedisLedger struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisLedger(client *redis.Client, retention time.Duration) *RedisLedger {
	return &RedisLedger{
		client:    client,
		retention: retention,
	}
}

func (l *RedisLedger) FirstSeen(ctx context.Context, provider, eventID string) (bool, error) {
	return l.client.SetNX(ctx, seenKey(provider, eventID), "1", l.retention).Result()
}

func (l *RedisLedger) Forget(ctx context.Context, provider, eventID string) error {
	return l.client.Del(ctx, seenKey(provider, eventID)).Err()
}

func (l *RedisLedger) Purge(ctx context.Context) error {
	iter := l.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := l.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
