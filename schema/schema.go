// Package schema ensures the backing store is ready before the dynamic
// registry touches it: the configured keyspace prefix is reachable and a
// metadata record exists describing the column family's tombstone grace
// interval. The registry never tombstones — grace is always zero — but the
// record is still written so the shape matches a real wide-column schema
// and a drifted value gets corrected rather than silently ignored.
package schema

import (
	"context"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	regbackoff "svc-registry/backoff"
	regredis "svc-registry/redis"
)

// GraceIntervalMs is the column family's tombstone grace interval. The
// registry expires columns by simply not returning them once their
// expiration has passed — there is no tombstone-compaction race to guard
// against — so grace is fixed at zero.
const GraceIntervalMs = 0

// Manager ensures the keyspace and column-family-equivalent structures
// exist with the correct grace interval before any dynamic-store operation
// runs, bootstrapping behind a distributed lock so that multiple registry
// replicas starting up together don't race each other.
type Manager struct {
	client    *redis.Client
	keyPrefix string
}

// New builds a schema Manager over the shared client.
func New(client *redis.Client, keyPrefix string) *Manager {
	return &Manager{client: client, keyPrefix: keyPrefix}
}

func (m *Manager) metadataKey() string {
	return m.keyPrefix + ":schema"
}

// Ensure verifies connectivity (retried with exponential backoff) and then
// bootstraps the column-family metadata record under a distributed lock.
// Failure here is meant to be fatal to the process: callers should log and
// exit rather than run a dynamic store against an unverified schema.
func (m *Manager) Ensure(ctx context.Context) error {
	bw := regbackoff.NewBackoff(ctx, 100*time.Millisecond, 0.5, 2, 5)
	bw.SetDoOperation(func() (any, error) {
		return nil, m.client.Ping(ctx).Err()
	})
	bw.SetNotify(func(err error, d time.Duration) {
		logrus.WithError(err).WithField("retry_in", d).Warn("schema: redis not ready, retrying")
	})
	if err := bw.Exec(); err != nil {
		return errors.Wrap(err, "schema: backing store unreachable")
	}

	lock := regredis.NewDistributedLock(m.client, m.keyPrefix+":bootstrap")
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return errors.Wrap(err, "schema: acquire bootstrap lock")
	}
	if !acquired {
		// Another replica is bootstrapping concurrently; the metadata
		// record it writes is identical regardless of which replica wins,
		// so there's nothing further for this one to do.
		logrus.Info("schema: bootstrap already in progress on another replica")
		return nil
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			logrus.WithError(err).Warn("schema: failed to release bootstrap lock")
		}
	}()

	return m.ensureColumnFamily(ctx)
}

func (m *Manager) ensureColumnFamily(ctx context.Context) error {
	current, err := m.client.HGet(ctx, m.metadataKey(), "graceIntervalMs").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return errors.Wrap(err, "schema: read column family metadata")
	}

	want := strconv.Itoa(GraceIntervalMs)
	if current == want {
		return nil
	}

	if err := m.client.HSet(ctx, m.metadataKey(), "graceIntervalMs", want).Err(); err != nil {
		return errors.Wrap(err, "schema: write column family metadata")
	}

	if current != "" {
		logrus.WithFields(logrus.Fields{"was": current, "now": want}).Warn("schema: corrected drifted grace interval")
	}
	return nil
}
