// Package dynamicstore is the TTL-keyed, node-addressed registry of live
// service announcements: put/delete/get/getAll over the wide-column
// primitive in store, plus the background reaper that clears expired
// columns. See reaper.go for the sweep itself.
package dynamicstore

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	regclock "svc-registry/clock"
	"svc-registry/codec"
	"svc-registry/registry"
	"svc-registry/store"
)

// ErrAlreadyInitialized is returned by Initialize on any call after the
// first; the store's reaper is a single background task and must not be
// started twice.
var ErrAlreadyInitialized = errors.New("dynamicstore: already initialized")

// ErrNotInitialized is returned by Shutdown if Initialize was never called.
var ErrNotInitialized = errors.New("dynamicstore: not initialized")

// Store is the dynamic announcement registry.
type Store struct {
	columns store.ColumnStore
	codec   codec.Codec
	clock   regclock.Clock
	logger  *logrus.Logger

	reaperPageSize int64
	reaperInterval time.Duration
	maxAgeMs       int64
	publisher      CyclePublisher
	publishChannel string

	initialized atomic.Bool
	reaperStop  chan struct{}
	reaperDone  chan struct{}
	shutdownMu  sync.Mutex
}

// CyclePublisher is the optional event sink a Store notifies once per
// completed reap pass. redis.PubSubService satisfies this.
type CyclePublisher interface {
	PublishEvent(ctx context.Context, channel string, event interface{}) error
}

// Config configures a Store's reaper and delete semantics. Zero values use
// ReaperPageSize=1000 and ReaperInterval=1 minute. MaxAgeMs is the
// configured bound on how far in the future a node may request a TTL; it
// doubles as the grace window Delete uses to decide whether a row "existed"
// — a column past its raw expiration but within MaxAgeMs of now still
// counts, since the reaper may not have swept it yet.
type Config struct {
	ReaperPageSize int64
	ReaperInterval time.Duration
	MaxAgeMs       int64
	Publisher      CyclePublisher
	PublishChannel string
}

// New builds a Store over the given column store, codec and clock.
func New(columns store.ColumnStore, c codec.Codec, clk regclock.Clock, cfg Config, logger *logrus.Logger) *Store {
	pageSize := cfg.ReaperPageSize
	if pageSize <= 0 {
		pageSize = 1000
	}
	interval := cfg.ReaperInterval
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Store{
		columns:        columns,
		codec:          c,
		clock:          clk,
		logger:         logger,
		reaperPageSize: pageSize,
		reaperInterval: interval,
		maxAgeMs:       cfg.MaxAgeMs,
		publisher:      cfg.Publisher,
		publishChannel: cfg.PublishChannel,
	}
}

// Initialize starts the background reaper. It is a one-shot gate: calling
// it a second time returns ErrAlreadyInitialized without starting a second
// reaper.
func (s *Store) Initialize(ctx context.Context) error {
	if !s.initialized.CompareAndSwap(false, true) {
		return ErrAlreadyInitialized
	}

	s.reaperStop = make(chan struct{})
	s.reaperDone = make(chan struct{})
	go s.runReaper(ctx)

	return nil
}

// Shutdown stops the reaper and waits for its current pass to finish.
func (s *Store) Shutdown(ctx context.Context) error {
	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()

	if !s.initialized.Load() {
		return ErrNotInitialized
	}

	close(s.reaperStop)

	select {
	case <-s.reaperDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

// Put records an announcement for nodeID, valid until ttl elapses from now;
// ttlMs is capped at the configured MaxAgeMs when that is set.
// wasNew reports whether the node's row held no live column (expiration
// strictly greater than now) immediately before this write; expired,
// un-reaped columns do not count. That check is a plain read before the write, not an atomic
// transaction: a concurrent Delete of the same node between the read and
// the write can make wasNew wrong in either direction. This is a known,
// accepted quirk — callers must treat wasNew as advisory only.
func (s *Store) Put(ctx context.Context, nodeID registry.NodeId, ann registry.DynamicAnnouncement, ttlMs int64) (wasNew bool, err error) {
	row := string(nodeID)

	now := s.clock.NowMs()
	existing, err := s.columns.Columns(ctx, row)
	if err != nil {
		return false, errors.Wrap(err, "dynamicstore: check existing row")
	}
	_, existed := chooseLiveColumn(existing, now)

	services := ann.Materialize(nodeID)
	payload, err := s.codec.Encode(services)
	if err != nil {
		return false, errors.Wrap(err, "dynamicstore: encode announcement")
	}

	if s.maxAgeMs > 0 && ttlMs > s.maxAgeMs {
		ttlMs = s.maxAgeMs
	}
	col := store.Column{
		ExpirationMs:     now + ttlMs,
		WriteTimestampMs: now,
		Payload:          payload,
	}

	if err := s.columns.PutColumn(ctx, row, col); err != nil {
		return false, errors.Wrap(err, "dynamicstore: put column")
	}

	return !existed, nil
}

// Delete removes every announcement for nodeID immediately, without
// waiting for expiration. existed reports whether the row held at least one
// column with expiration greater than now-MaxAgeMs — not merely any column
// at all, since a row holding only long-expired, un-reaped columns must
// report false. That check and the deletion itself are not atomic: a
// concurrent Put for the same node can land between them, so existed is
// advisory only, per spec.
func (s *Store) Delete(ctx context.Context, nodeID registry.NodeId) (existed bool, err error) {
	row := string(nodeID)

	columns, err := s.columns.Columns(ctx, row)
	if err != nil {
		return false, errors.Wrap(err, "dynamicstore: check existing row")
	}

	threshold := s.clock.NowMs() - s.maxAgeMs
	for _, col := range columns {
		if col.ExpirationMs > threshold {
			existed = true
			break
		}
	}

	if err := s.columns.DeleteRow(ctx, row); err != nil {
		return false, errors.Wrap(err, "dynamicstore: delete row")
	}
	return existed, nil
}

// GetAll returns every currently live service across all announcing nodes.
func (s *Store) GetAll(ctx context.Context) ([]registry.Service, error) {
	now := s.clock.NowMs()

	var (
		result []registry.Service
		cursor uint64
	)
	for {
		rows, next, err := s.columns.ScanRows(ctx, cursor, s.reaperPageSize)
		if err != nil {
			return nil, errors.Wrap(err, "dynamicstore: scan rows")
		}

		for _, row := range rows {
			services, err := s.liveServicesForRow(ctx, row, now)
			if err != nil {
				return nil, err
			}
			result = append(result, services...)
		}

		if next == 0 {
			break
		}
		cursor = next
	}

	return result, nil
}

// Get returns every live service of the given type.
func (s *Store) Get(ctx context.Context, serviceType string) ([]registry.Service, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return filterServices(all, serviceType, ""), nil
}

// GetByPool returns every live service of the given type within pool.
func (s *Store) GetByPool(ctx context.Context, serviceType, pool string) ([]registry.Service, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return filterServices(all, serviceType, pool), nil
}

func filterServices(all []registry.Service, serviceType, pool string) []registry.Service {
	out := make([]registry.Service, 0, len(all))
	for _, svc := range all {
		if svc.Type != serviceType {
			continue
		}
		if pool != "" && svc.Pool != pool {
			continue
		}
		out = append(out, svc)
	}
	return out
}

// liveServicesForRow folds a row's columns to the one with the largest
// write clock among those still live (expiration strictly greater than
// now), and decodes only that column. A row with no live column
// contributes nothing — it is the reaper's job, not the reader's, to clean
// it up. A codec failure on the chosen column is logged and treated as no
// contribution from this row rather than failing the whole query: a single
// malformed or forward-skewed value must not take down every other node's
// results.
func (s *Store) liveServicesForRow(ctx context.Context, row string, now int64) ([]registry.Service, error) {
	columns, err := s.columns.Columns(ctx, row)
	if err != nil {
		return nil, errors.Wrapf(err, "dynamicstore: read columns for row %q", row)
	}

	chosen, ok := chooseLiveColumn(columns, now)
	if !ok {
		return nil, nil
	}

	services, err := s.codec.Decode(chosen.Payload)
	if err != nil {
		s.logger.WithError(err).WithField("row", row).Error("dynamicstore: decode column, skipping row")
		return nil, nil
	}
	return services, nil
}

// chooseLiveColumn picks the live column (expiration > now) with the
// largest write clock. Ties keep whichever is seen first; columns share a
// row only across overlapping refresh windows, so a true clock tie implies
// identical content in practice.
func chooseLiveColumn(columns []store.Column, now int64) (store.Column, bool) {
	var (
		best  store.Column
		found bool
	)
	for _, col := range columns {
		if col.ExpirationMs <= now {
			continue
		}
		if !found || col.WriteTimestampMs > best.WriteTimestampMs {
			best = col
			found = true
		}
	}
	return best, found
}
