package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var errLockHeld = errors.New("lock held by another owner")

// releaseScript deletes the lock only if the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker implements usecase.EntityLocker across processes with SET NX PX.
type Locker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger zerolog.Logger

	initialInterval time.Duration
	maxInterval     time.Duration
}

// NewLocker creates a Locker. ttl bounds how long a crashed holder can
// keep an entity locked.
func NewLocker(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *Locker {
	return &Locker{
		client:          client,
		prefix:          "lock:",
		ttl:             ttl,
		logger:          logger.With().Str("component", "locker").Logger(),
		initialInterval: 5 * time.Millisecond,
		maxInterval:     100 * time.Millisecond,
	}
}

// Lock polls until key is acquired or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	fullKey := l.prefix + key
	token := ulid.Make().String()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.initialInterval
	b.MaxInterval = l.maxInterval
	b.MaxElapsedTime = 0

	acquire := func() error {
		ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return backoff.Permanent(ctxErr)
			}
			return backoff.Permanent(err)
		}
		if !ok {
			return errLockHeld
		}
		return nil
	}

	if err := backoff.Retry(acquire, backoff.WithContext(b, ctx)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{fullKey}, token).Err(); err != nil {
				// The key stays held until its TTL expires.
				l.logger.Warn().
					Err(err).
					Str("key", fullKey).
					Dur("ttl", l.ttl).
					Msg("failed to release entity lock")
			}
		})
	}

	return unlock, nil
}
