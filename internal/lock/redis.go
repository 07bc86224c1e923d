package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"booking-service/pkg/response"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned by Unlock when the lock expired or was taken over
// before release.
var ErrNotHeld = errors.New("lock is not held")

// Locker guards a key across service instances. Lock returns an owner token
// when it succeeds; only that token releases the key.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

type RedisLock struct {
	client *redis.Client
}

// unlockScript deletes the key only while it still carries the caller's token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewRedisLock(redisAddr string) (*RedisLock, error) {
	const op = "lock.NewRedisLock"

	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RedisLock{client: client}, nil
}

func lockKey(key string) string {
	return "lock:" + key
}

func (r *RedisLock) Lock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	const op = "lock.RedisLock.Lock"

	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, lockKey(key), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return "", false, nil
	}

	return token, true, nil
}

func (r *RedisLock) Unlock(ctx context.Context, key, token string) error {
	const op = "lock.RedisLock.Unlock"

	deleted, err := unlockScript.Run(ctx, r.client, []string{lockKey(key)}, token).Int()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if deleted == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotHeld)
	}

	return nil
}

func (r *RedisLock) Close() error {
	return r.client.Close()
}

const retryInterval = 10 * time.Millisecond

// Acquire polls Lock until key is taken or wait elapses and returns the
// release func. It fails with response.ErrLocked when the key stayed held
// for the whole wait.
func Acquire(ctx context.Context, l Locker, key string, ttl, wait time.Duration) (func(context.Context) error, error) {
	const op = "lock.Acquire"

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		token, ok, err := l.Lock(waitCtx, key, ttl)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return nil, fmt.Errorf("%s: %w", op, response.ErrLocked)
			}
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if ok {
			return func(ctx context.Context) error {
				return l.Unlock(ctx, key, token)
			}, nil
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%s: %w", op, ctx.Err())
			}
			return nil, fmt.Errorf("%s: %w", op, response.ErrLocked)
		case <-ticker.C:
		}
	}
}
