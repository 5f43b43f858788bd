package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld indicates another operator currently holds the critical section.
var ErrLockHeld = errors.New("shared: lock already held")

// PeriodLockKey builds redis keys for period close/reopen critical sections.
func PeriodLockKey(periodID int64) string {
	return fmt.Sprintf("ledgerline:period:%d:lock", periodID)
}

// PeriodLocker serialises close/reopen across application instances. The
// database transaction remains the source of truth; the lock only prevents
// two operators from racing the same period and confusing each other with
// AlreadyClosed errors.
type PeriodLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPeriodLocker constructs a PeriodLocker with the supplied TTL.
func NewPeriodLocker(client *redis.Client, ttl time.Duration) *PeriodLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &PeriodLocker{client: client, ttl: ttl}
}

// Acquire takes the lock for the period, returning a release function.
func (l *PeriodLocker) Acquire(ctx context.Context, periodID int64) (func(), error) {
	if l == nil || l.client == nil {
		return func() {}, nil
	}
	key := PeriodLockKey(periodID)
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("shared: acquire period lock: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	release := func() {
		// Delete only if we still own the key.
		const script = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`
		_ = l.client.Eval(context.Background(), script, []string{key}, token).Err()
	}
	return release, nil
}
