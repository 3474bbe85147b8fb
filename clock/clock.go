// Package clock supplies the registry's single source of wall-clock
// timestamps. Every store operation takes its "now" from here rather than
// calling time.Now() directly, so tests can drive expiry deterministically.
package clock

import (
	"time"

	k8sclock "k8s.io/utils/clock"
)

// Clock is the monotonic-enough source of epoch-millisecond timestamps the
// dynamic store and reaper use for writes, expirations and liveness checks.
type Clock interface {
	// NowMs is the current wall-clock reading in epoch milliseconds.
	NowMs() int64
	// After mirrors time.After for the reaper's fixed-delay scheduling loop.
	After(d time.Duration) <-chan time.Time
}

// System wraps k8s.io/utils/clock.RealClock, the same injectable clock
// abstraction the pack's AWS cloud provider threads through its controllers.
type System struct {
	inner k8sclock.Clock
}

// NewSystem returns the production clock backed by real wall-clock time.
func NewSystem() *System {
	return &System{inner: k8sclock.RealClock{}}
}

// NowMs implements Clock.
func (s *System) NowMs() int64 {
	return s.inner.Now().UnixMilli()
}

// After implements Clock.
func (s *System) After(d time.Duration) <-chan time.Time {
	return s.inner.After(d)
}
