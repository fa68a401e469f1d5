package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/wareneingang/internal/shared"
)

// ErrLocked is returned when another writer holds the key.
var ErrLocked = errors.New("platform/cache: key locked by another writer")

// ReceiptLocker hands out short-lived Redis locks.
type ReceiptLocker struct {
	client *redislock.Client
	ttl    time.Duration
	retry  redislock.RetryStrategy
}

// NewReceiptLocker builds a locker with the given lock lifetime.
func NewReceiptLocker(client *redis.Client, ttl time.Duration) *ReceiptLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &ReceiptLocker{
		client: redislock.New(client),
		ttl:    ttl,
		retry:  redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 5),
	}
}

// Lock obtains key or fails with ErrLocked after a few retries.
func (l *ReceiptLocker) Lock(ctx context.Context, key string) (shared.Unlock, error) {
	lock, err := l.client.Obtain(ctx, key, l.ttl, &redislock.Options{RetryStrategy: l.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrLocked, key)
	}
	if err != nil {
		return nil, fmt.Errorf("platform/cache: obtain %s: %w", key, err)
	}
	return func(ctx context.Context) error {
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return err
		}
		return nil
	}, nil
}
