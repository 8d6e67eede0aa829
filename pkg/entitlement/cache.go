package entitlement

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CachedCounter wraps a CounterFunc with a Redis read-through cache. Cache
// misses and Redis failures fall through to the underlying counter, so the
// decorator can only make a hot counter cheaper, never make it wrong for
// longer than the TTL. Keep the TTL short: cached counts are advisory and
// the write path re-checks inside its transaction anyway.
func CachedCounter(client redis.Cmdable, prefix string, ttl time.Duration, fn CounterFunc) CounterFunc {
	if client == nil || fn == nil {
		panic("entitlement: CachedCounter requires a redis client and a counter")
	}

	return func(ctx context.Context, accountID, scope uuid.UUID) (int64, error) {
		key := prefix + ":" + accountID.String() + ":" + scope.String()

		if raw, err := client.Get(ctx, key).Result(); err == nil {
			if cached, err := strconv.ParseInt(raw, 10, 64); err == nil {
				return cached, nil
			}
		}

		current, err := fn(ctx, accountID, scope)
		if err != nil {
			return 0, err
		}

		// Best effort: a failed cache write only costs the next caller a
		// recount.
		client.Set(ctx, key, strconv.FormatInt(current, 10), ttl)

		return current, nil
	}
}
