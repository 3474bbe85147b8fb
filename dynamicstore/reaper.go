package dynamicstore

import (
	"context"
	"time"

	regbackoff "svc-registry/backoff"
	regchannel "svc-registry/channel"
)

// reapCycleEvent is published once per completed pass when a CyclePublisher
// is configured.
type reapCycleEvent struct {
	CompletedAtMs int64 `json:"completedAtMs"`
	RowsScanned   int   `json:"rowsScanned"`
	RowsReaped    int   `json:"rowsReaped"`
}

// runReaper is the background task started by Initialize. It runs passes on
// a fixed delay measured from the end of the previous pass, not a ticker —
// a slow pass pushes the next one back rather than queueing a second pass
// immediately behind it.
func (s *Store) runReaper(ctx context.Context) {
	defer close(s.reaperDone)

	for {
		select {
		case <-s.reaperStop:
			return
		case <-ctx.Done():
			return
		default:
		}

		s.runReapPass(ctx)

		select {
		case <-s.reaperStop:
			return
		case <-ctx.Done():
			return
		case <-s.clock.After(s.reaperInterval):
		}
	}
}

// runReapPass scans every row and deletes expired columns. A failure
// reaping one row is caught and logged — it must never stop the pass, and
// the pass itself must never stop the reaper goroutine, since the next
// pass will simply retry whatever this one couldn't finish.
func (s *Store) runReapPass(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("panic", r).Error("reaper: pass panicked, recovering")
		}
	}()

	now := s.clock.NowMs()
	scanned, reaped := 0, 0

	for row := range regchannel.OrDone(ctx, s.rowStream(ctx)) {
		scanned++
		didReap, err := s.reapRow(ctx, row, now)
		if err != nil {
			s.logger.WithError(err).WithField("row", row).Error("reaper: failed to reap row")
			continue
		}
		if didReap {
			reaped++
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"rows_scanned": scanned,
		"rows_reaped":  reaped,
	}).Debug("reaper: pass complete")

	if s.publisher != nil {
		event := reapCycleEvent{CompletedAtMs: s.clock.NowMs(), RowsScanned: scanned, RowsReaped: reaped}
		if err := s.publisher.PublishEvent(ctx, s.publishChannel, event); err != nil {
			s.logger.WithError(err).Warn("reaper: failed to publish cycle event")
		}
	}
}

// rowStream scans the row index in pages, emitting one row at a time.
// Cancelling ctx stops the scan between pages or between rows.
func (s *Store) rowStream(ctx context.Context) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)

		var cursor uint64
		for {
			rows, next, err := s.columns.ScanRows(ctx, cursor, s.reaperPageSize)
			if err != nil {
				s.logger.WithError(err).Error("reaper: scan rows failed")
				return
			}

			for _, row := range rows {
				select {
				case out <- row:
				case <-ctx.Done():
					return
				}
			}

			if next == 0 {
				return
			}
			cursor = next
		}
	}()
	return out
}

// reapRow deletes any columns on row whose expiration has passed, retrying
// the batch delete with bounded exponential backoff so one transient
// backing-store error doesn't leave an otherwise-reapable row until the
// next pass.
func (s *Store) reapRow(ctx context.Context, row string, now int64) (reaped bool, err error) {
	columns, err := s.columns.Columns(ctx, row)
	if err != nil {
		return false, err
	}

	var expired []int64
	for _, col := range columns {
		if col.ExpirationMs <= now {
			expired = append(expired, col.ExpirationMs)
		}
	}
	if len(expired) == 0 {
		return false, nil
	}

	bw := regbackoff.NewBackoff(ctx, 50*time.Millisecond, 0.5, 2, 3)
	bw.SetDoOperation(func() (any, error) {
		return nil, s.columns.DeleteColumns(ctx, row, expired)
	})
	if err := bw.Exec(); err != nil {
		return false, err
	}

	return true, nil
}
