// Package backoff wraps cenkalti/backoff/v5 in the small retry shape the
// schema manager's bootstrap check and the reaper's batch delete both need:
// configurable exponential backoff, a bounded try count, and an optional
// notify hook for logging each retry.
package backoff

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// BackoffWrapper retries a fallible operation with exponential backoff.
type BackoffWrapper struct {
	ctx       context.Context
	operation backoff.Operation[any]
	options   []backoff.RetryOption
}

// NewBackoff builds a wrapper with the given initial retry interval,
// randomization factor, interval multiplier and max try count. maxTries
// follows backoff/v5 semantics: the operation runs at most maxTries times.
func NewBackoff(ctx context.Context, initialInterval time.Duration, randomizationFactor, multiplier float64, maxTries uint) *BackoffWrapper {
	exponentialBackOff := backoff.NewExponentialBackOff()
	exponentialBackOff.InitialInterval = initialInterval
	exponentialBackOff.RandomizationFactor = randomizationFactor
	exponentialBackOff.Multiplier = multiplier

	options := []backoff.RetryOption{backoff.WithBackOff(exponentialBackOff), backoff.WithMaxTries(maxTries)}

	return &BackoffWrapper{
		ctx:     ctx,
		options: options,
	}
}

// SetDoOperation sets the operation to retry.
func (b *BackoffWrapper) SetDoOperation(o backoff.Operation[any]) {
	b.operation = o
}

// SetNotify registers a callback invoked before each retry sleep.
func (b *BackoffWrapper) SetNotify(n backoff.Notify) {
	b.options = append(b.options, backoff.WithNotify(n))
}

// Exec runs the operation, retrying per the configured backoff, and returns
// the final error if every attempt failed.
func (b *BackoffWrapper) Exec() error {
	_, err := backoff.Retry(b.ctx, b.operation, b.options...)
	return err
}
