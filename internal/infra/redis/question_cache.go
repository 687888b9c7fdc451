package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"time"

	"fipabet-seal-service/internal/app"
	"fipabet-seal-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	currentQuestionKey = "qa:question:current"
	fillTimeout        = 5 * time.Second
)

// storeIfNewer writes the cached question unless a higher id is already
// cached, so a slow cache fill can never roll back a newer publish.
// KEYS[1]=key ARGV[1]=id ARGV[2]=json ARGV[3]=ttl ms
var storeIfNewer = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'id')
if cur and tonumber(cur) > tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'id', ARGV[1], 'data', ARGV[2])
if tonumber(ARGV[3]) > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return 1
`)

// QuestionCache caches the current question in Redis in front of another
// app.QuestionRepository. Instances sharing a Redis see the same current
// question as soon as any of them publishes.
// Layout: HSET qa:question:current id {id} data {json}; id 0 means no question yet.
type QuestionCache struct {
	client *redis.Client
	inner  app.QuestionRepository
	ttl    time.Duration
	sf     singleflight.Group
}

func NewQuestionCache(client *redis.Client, inner app.QuestionRepository, ttl time.Duration) *QuestionCache {
	return &QuestionCache{client: client, inner: inner, ttl: ttl}
}

func (c *QuestionCache) Create(ctx context.Context, q domain.Question) (domain.Question, error) {
	stored, err := c.inner.Create(ctx, q)
	if err != nil {
		return domain.Question{}, err
	}
	if err := c.store(ctx, stored.ID, stored); err != nil {
		// a stale entry would reject answers to the new question
		_ = c.client.Del(ctx, currentQuestionKey).Err()
	}
	return stored, nil
}

func (c *QuestionCache) Latest(ctx context.Context) (domain.Question, bool, error) {
	if q, ok, hit := c.cached(ctx); hit {
		return q, ok, nil
	}

	type result struct {
		q  domain.Question
		ok bool
	}
	// The fill is shared, so it must not die with whichever caller started it.
	ch := c.sf.DoChan(currentQuestionKey, func() (interface{}, error) {
		fillCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fillTimeout)
		defer cancel()
		// Re-check cache in case another goroutine filled it.
		if q, ok, hit := c.cached(fillCtx); hit {
			return result{q, ok}, nil
		}
		q, ok, err := c.inner.Latest(fillCtx)
		if err != nil {
			return result{}, err
		}
		var id int64
		if ok {
			id = q.ID
		}
		_ = c.store(fillCtx, id, q)
		return result{q, ok}, nil
	})
	select {
	case <-ctx.Done():
		return domain.Question{}, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.Question{}, false, res.Err
		}
		r := res.Val.(result)
		return r.q, r.ok, nil
	}
}

// cached reports (question, exists, cacheHit).
func (c *QuestionCache) cached(ctx context.Context) (domain.Question, bool, bool) {
	fields, err := c.client.HGetAll(ctx, currentQuestionKey).Result()
	if err != nil || len(fields) == 0 {
		return domain.Question{}, false, false
	}
	id, err := strconv.ParseInt(fields["id"], 10, 64)
	if err != nil {
		return domain.Question{}, false, false
	}
	if id == 0 {
		return domain.Question{}, false, true
	}
	var q domain.Question
	if err := json.Unmarshal([]byte(fields["data"]), &q); err != nil {
		return domain.Question{}, false, false
	}
	return q, true, true
}

func (c *QuestionCache) store(ctx context.Context, id int64, q domain.Question) error {
	data := ""
	if id != 0 {
		raw, err := json.Marshal(q)
		if err != nil {
			return err
		}
		data = string(raw)
	}
	return storeIfNewer.Run(ctx, c.client, []string{currentQuestionKey}, id, data, c.ttlWithJitter().Milliseconds()).Err()
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(rand.Int63n(jitterMax+1))
}
