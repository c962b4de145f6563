package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"cairn/pkg/platform/sentinel"
)

// Redis implements the household lock as a SET NX lease, for
// deployments where transitions run on more than one node.
//
// The lease carries an owner token so an expired lock released late
// never deletes a successor's lease.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// releaseScript deletes the lease only if it still belongs to the owner.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	owner := uuid.NewString()
	redisKey := "cairn:household-lock:" + key

	ok, err := l.client.SetNX(ctx, redisKey, owner, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire household lock: %w", err)
	}
	if !ok {
		return nil, sentinel.ErrLocked
	}
	return func() {
		// Best effort: an expired lease is reclaimed by TTL anyway.
		_ = releaseScript.Run(context.Background(), l.client, []string{redisKey}, owner).Err()
	}, nil
}
