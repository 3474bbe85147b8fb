// Package redis builds the single shared Redis client the registry's
// schema manager, column store and distributed lock all operate against,
// plus the distributed lock and pub/sub helpers layered on top of it.
package redis

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Options configures the shared client. Zero-value DialTimeout/ReadTimeout/
// WriteTimeout/PoolSize fall back to go-redis's own defaults. DialRetryMax
// bounds how long NewClient keeps retrying the initial Ping before giving
// up; zero means a single attempt, no retry.
type Options struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	DialRetryMax time.Duration
}

// NewClient dials Redis and verifies connectivity with a Ping before
// returning, so callers fail fast at startup rather than on first use. The
// Ping is retried with jittered exponential backoff up to DialRetryMax,
// the same shape the teacher's stream replicator used for its own Redis
// dial loop, so a registry replica starting up alongside a still-warming
// Redis instance doesn't die on the first failed probe.
func NewClient(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolSize:     opts.PoolSize,
	})

	ping := func() error { return client.Ping(ctx).Err() }

	var err error
	if opts.DialRetryMax <= 0 {
		err = ping()
	} else {
		bo := backoff.NewExponentialBackOff()
		bo.MaxElapsedTime = opts.DialRetryMax
		err = backoff.RetryNotify(
			ping,
			backoff.WithContext(bo, ctx),
			func(err error, d time.Duration) {
				logrus.WithError(err).WithField("retry_in", d).Warn("redis: ping failed, retrying")
			},
		)
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis: connect")
	}

	return client, nil
}
