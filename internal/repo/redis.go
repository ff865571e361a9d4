package repo

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

type Redis struct{ C *redis.Client }

func NewRedis(addr string) *Redis {
	return &Redis{C: redis.NewClient(&redis.Options{Addr: addr})}
}

func (r *Redis) Ping(ctx context.Context) error { return r.C.Ping(ctx).Err() }
func (r *Redis) Close() error                   { return r.C.Close() }

// Allow implements a fixed-window counter: at most limit hits per window for
// the given key. Fails open on redis errors so an unavailable redis does not
// take the sign-in flow down with it.
func (r *Redis) Allow(ctx context.Context, key string, limit int, window time.Duration) bool {
	if r == nil || r.C == nil || limit <= 0 {
		return true
	}
	n, err := r.C.Incr(ctx, key).Result()
	if err != nil {
		return true
	}
	if n == 1 {
		r.C.Expire(ctx, key, window)
	}
	return n <= int64(limit)
}
