package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseIfOwner deletes the lock only if it still holds our token.
var releaseIfOwner = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// KeyLocker is a Redis-backed app.KeyLocker so instances behind a load
// balancer serialize submissions for the same user and question. Locks expire
// after ttl in case a holder dies; the answers table's unique constraint
// still guards against a lock that expired too early.
type KeyLocker struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
}

func NewKeyLocker(client *redis.Client, ttl time.Duration) *KeyLocker {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &KeyLocker{client: client, ttl: ttl, retry: 10 * time.Millisecond}
}

func (l *KeyLocker) Lock(ctx context.Context, key string) (func(), error) {
	k := l.key(key)
	token := uuid.NewString()
	for {
		ok, err := l.client.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				_ = releaseIfOwner.Run(context.Background(), l.client, []string{k}, token).Err()
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

func (l *KeyLocker) key(key string) string {
	return "qa:lock:" + key
}
