package redis

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotOwned is returned by Release when the lock expired or was never
// held by this DistributedLock instance.
var ErrLockNotOwned = errors.New("redis: lock not owned")

// DistributedLock is a SetNX-based mutual-exclusion lock keyed by name,
// used to guard schema bootstrap against concurrent registry replicas
// racing on first boot.
type DistributedLock struct {
	client *redis.Client
	key    string
	value  string
	expiry time.Duration
}

// NewDistributedLock builds a lock over the given key with a default 30s
// expiry, so a crashed holder doesn't wedge the lock forever.
func NewDistributedLock(client *redis.Client, key string) *DistributedLock {
	return &DistributedLock{
		client: client,
		key:    "lock:" + key,
		value:  uuid.New().String(),
		expiry: 30 * time.Second,
	}
}

// Acquire attempts to take the lock, returning false (no error) if another
// holder already owns it.
func (dl *DistributedLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := dl.client.SetNX(ctx, dl.key, dl.value, dl.expiry).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis: acquire lock")
	}
	return ok, nil
}

// releaseScript does an atomic get-then-delete, so a holder never releases a
// lock it doesn't own — a single round trip closes the race window between a
// plain GET and a plain DEL.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`

// Release gives up ownership of the lock. Returns ErrLockNotOwned if this
// instance's value no longer matches what's stored (expired or stolen).
func (dl *DistributedLock) Release(ctx context.Context) error {
	result, err := dl.client.Eval(ctx, releaseScript, []string{dl.key}, dl.value).Result()
	if err != nil {
		return errors.Wrap(err, "redis: release lock")
	}
	if n, ok := result.(int64); !ok || n == 0 {
		return ErrLockNotOwned
	}
	return nil
}
