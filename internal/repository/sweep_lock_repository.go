package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SweepLockKey is the Redis key guarding the reminder sweep across replicas.
const SweepLockKey = "reminders:sweep:lock"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SweepLockRepository holds short-lived Redis locks so only one replica sweeps per tick.
type SweepLockRepository struct {
	client *redis.Client
}

// NewSweepLockRepository constructs the lock store. A nil client always grants the lock.
func NewSweepLockRepository(client *redis.Client) *SweepLockRepository {
	return &SweepLockRepository{client: client}
}

// Acquire attempts to take key for ttl. It returns the owner token when granted
// and ok=false when another owner holds the key.
func (r *SweepLockRepository) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	if r.client == nil {
		return token, true, nil
	}
	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release drops key only while it still carries token.
func (r *SweepLockRepository) Release(ctx context.Context, key, token string) error {
	if r.client == nil || token == "" {
		return nil
	}
	if err := releaseScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("redis release %s: %w", key, err)
	}
	return nil
}
