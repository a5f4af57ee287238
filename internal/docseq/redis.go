package docseq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"livrocaixa/internal/core"
)

const keyPrefix = "docseq:"

// raiseScript sets KEYS[1] to ARGV[1] when the stored counter is lower.
var raiseScript = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
local want = tonumber(ARGV[1])
if cur < want then
  redis.call('SET', KEYS[1], want, 'KEEPTTL')
  return want
end
return cur
`)

// RedisAllocator keeps one counter per month holding the last number handed
// out. A missing counter is seeded from the store maximum with SETNX, so the
// first writer wins and later ones increment from it.
type RedisAllocator struct {
	client redis.UniversalClient
	store  MaxReader
	ttl    time.Duration
}

// NewRedisAllocator builds an allocator. ttl bounds how long an idle month's
// counter lives; zero keeps it forever.
func NewRedisAllocator(client redis.UniversalClient, r MaxReader, ttl time.Duration) *RedisAllocator {
	return &RedisAllocator{client: client, store: r, ttl: ttl}
}

// Key is the Redis key of month's counter.
func Key(month core.MonthKey) string {
	return keyPrefix + month.String()
}

func (a *RedisAllocator) seed(ctx context.Context, month core.MonthKey) error {
	key := Key(month)
	n, err := a.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("docseq: exists %s: %w", key, err)
	}
	if n > 0 {
		return nil
	}
	top, err := monthMax(ctx, a.store, month)
	if err != nil {
		return err
	}
	if err := a.client.SetNX(ctx, key, top, a.ttl).Err(); err != nil {
		return fmt.Errorf("docseq: seed %s: %w", key, err)
	}
	return nil
}

func (a *RedisAllocator) Peek(ctx context.Context, month core.MonthKey) (int, error) {
	if err := a.seed(ctx, month); err != nil {
		return 0, err
	}
	cur, err := a.client.Get(ctx, Key(month)).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("docseq: get %s: %w", Key(month), err)
	}
	return cur + 1, nil
}

func (a *RedisAllocator) Reserve(ctx context.Context, month core.MonthKey, n int) (int, error) {
	if n < 1 {
		n = 1
	}
	if err := a.seed(ctx, month); err != nil {
		return 0, err
	}
	last, err := a.client.IncrBy(ctx, Key(month), int64(n)).Result()
	if err != nil {
		return 0, fmt.Errorf("docseq: incr %s: %w", Key(month), err)
	}
	return int(last) - n + 1, nil
}

func (a *RedisAllocator) Observe(ctx context.Context, month core.MonthKey, used int) error {
	if err := a.seed(ctx, month); err != nil {
		return err
	}
	if err := raiseScript.Run(ctx, a.client, []string{Key(month)}, used).Err(); err != nil {
		return fmt.Errorf("docseq: raise %s: %w", Key(month), err)
	}
	return nil
}
