package clock

import (
	"time"

	k8sfake "k8s.io/utils/clock/testing"
)

// Fake is a settable Clock for tests, backed by k8s.io/utils/clock/testing's
// FakeClock. The dynamic store's tests (see dynamicstore_test.go) use Step
// to simulate TTL expiry without sleeping.
type Fake struct {
	inner *k8sfake.FakeClock
}

// NewFake starts a fake clock at the given epoch-millisecond instant.
func NewFake(startMs int64) *Fake {
	return &Fake{inner: k8sfake.NewFakeClock(time.UnixMilli(startMs))}
}

// NowMs implements Clock.
func (f *Fake) NowMs() int64 {
	return f.inner.Now().UnixMilli()
}

// After implements Clock.
func (f *Fake) After(d time.Duration) <-chan time.Time {
	return f.inner.After(d)
}

// Step advances the fake clock by d.
func (f *Fake) Step(d time.Duration) {
	f.inner.Step(d)
}

// SetMs jumps the fake clock to the given epoch-millisecond instant.
func (f *Fake) SetMs(ms int64) {
	f.inner.SetTime(time.UnixMilli(ms))
}
