package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RunLock implements ports.RunLock using Redis SET NX. The reconciliation
// engine takes it before each run so overlapping runs are skipped instead of
// reading an in-flight snapshot.
type RunLock struct {
	client *goredis.Client
	key    string
}

// NewRunLock creates a lock under the given name.
func NewRunLock(client *goredis.Client, name string) *RunLock {
	return &RunLock{
		client: client,
		key:    "runlock:" + name,
	}
}

// Acquire attempts to take the lock. Returns true if this caller now holds
// it, false if another run is in progress.
func (l *RunLock) Acquire(ctx context.Context, ttl time.Duration) (bool, error) {
	result, err := l.client.SetArgs(ctx, l.key, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if err == goredis.Nil {
			// Key already exists, another run holds the lock
			return false, nil
		}
		return false, fmt.Errorf("redis run lock acquire: %w", err)
	}
	return result == "OK", nil
}

// Release frees the lock. The TTL bounds the damage of a missed release.
func (l *RunLock) Release(ctx context.Context) error {
	if err := l.client.Del(ctx, l.key).Err(); err != nil {
		return fmt.Errorf("redis run lock release: %w", err)
	}
	return nil
}
