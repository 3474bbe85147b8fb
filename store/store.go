// Package store is the wide-column primitive the dynamic registry is built
// on: rows addressed by key, each holding zero or more columns, each column
// carrying a value, a write clock and an expiration. Nothing in this package
// knows about nodes or services — that's dynamicstore's job.
package store

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Column is one value stored against a row, named by its expiration so the
// store's "column family" matches spec.md's row/column/clock model: a row
// can carry several columns (e.g. across overlapping TTL refreshes) and
// readers fold to the one with the largest WriteTimestampMs.
type Column struct {
	ExpirationMs     int64
	WriteTimestampMs int64
	Payload          []byte
}

// columnValue is the JSON shape stored in a row's hash field.
type columnValue struct {
	WriteTimestampMs int64  `json:"writeTimestampMs"`
	Payload          []byte `json:"payload"`
}

// ColumnStore is the wide-column interface the dynamic store and its reaper
// operate against. Implementations own what a "row key" maps to physically.
type ColumnStore interface {
	// PutColumn writes col against row, registering row in the scannable
	// row index if it wasn't already present.
	PutColumn(ctx context.Context, row string, col Column) error

	// Columns returns every column currently stored against row, live or
	// expired — callers decide liveness themselves using their own clock.
	Columns(ctx context.Context, row string) ([]Column, error)

	// DeleteColumns removes the named columns (by expiration) from row.
	DeleteColumns(ctx context.Context, row string, expirationsMs []int64) error

	// DeleteRow removes row entirely, including its row-index entry.
	DeleteRow(ctx context.Context, row string) error

	// RowExists reports whether row currently has any columns at all.
	RowExists(ctx context.Context, row string) (bool, error)

	// ScanRows pages through the row index, page size capped by the store's
	// configured page size, returning the next cursor to resume from (0
	// once exhausted).
	ScanRows(ctx context.Context, cursor uint64, pageSize int64) (rows []string, nextCursor uint64, err error)
}

// RedisColumnStore implements ColumnStore over a shared go-redis client.
// Each row is a Redis hash keyed by "<prefix>:row:<row>", field name is the
// column's expiration in milliseconds, value is a JSON-encoded
// {writeTimestampMs, payload}. A Redis set at "<prefix>:rows" indexes every
// row key currently in use, scanned with SSCAN to page through rows the
// same way a wide-column store pages through a token range.
type RedisColumnStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisColumnStore builds a store scoped to keyPrefix, the "keyspace"
// the schema manager ensures exists before any operation runs.
func NewRedisColumnStore(client *redis.Client, keyPrefix string) *RedisColumnStore {
	return &RedisColumnStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisColumnStore) rowKey(row string) string {
	return s.keyPrefix + ":row:" + row
}

func (s *RedisColumnStore) rowIndexKey() string {
	return s.keyPrefix + ":rows"
}

func (s *RedisColumnStore) PutColumn(ctx context.Context, row string, col Column) error {
	field := strconv.FormatInt(col.ExpirationMs, 10)
	value, err := json.Marshal(columnValue{
		WriteTimestampMs: col.WriteTimestampMs,
		Payload:          col.Payload,
	})
	if err != nil {
		return errors.Wrap(err, "store: marshal column")
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.rowKey(row), field, value)
	pipe.SAdd(ctx, s.rowIndexKey(), row)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "store: put column")
	}
	return nil
}

// Columns returns row's columns. A field that fails to parse as an
// expiration, or whose value fails to unmarshal, is logged at error level
// and skipped rather than failing the whole read — one malformed column
// must not take the rest of the row (or a GetAll scan over many rows) down
// with it.
func (s *RedisColumnStore) Columns(ctx context.Context, row string) ([]Column, error) {
	fields, err := s.client.HGetAll(ctx, s.rowKey(row)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "store: get columns")
	}

	columns := make([]Column, 0, len(fields))
	for field, raw := range fields {
		expiration, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{"field": field, "row": row}).
				Error("store: malformed column field, skipping")
			continue
		}

		var cv columnValue
		if err := json.Unmarshal([]byte(raw), &cv); err != nil {
			logrus.WithError(err).WithField("row", row).Error("store: malformed column value, skipping")
			continue
		}

		columns = append(columns, Column{
			ExpirationMs:     expiration,
			WriteTimestampMs: cv.WriteTimestampMs,
			Payload:          cv.Payload,
		})
	}
	return columns, nil
}

func (s *RedisColumnStore) DeleteColumns(ctx context.Context, row string, expirationsMs []int64) error {
	if len(expirationsMs) == 0 {
		return nil
	}

	fields := make([]string, len(expirationsMs))
	for i, e := range expirationsMs {
		fields[i] = strconv.FormatInt(e, 10)
	}

	if err := s.client.HDel(ctx, s.rowKey(row), fields...).Err(); err != nil {
		return errors.Wrap(err, "store: delete columns")
	}

	remaining, err := s.client.HLen(ctx, s.rowKey(row)).Result()
	if err != nil {
		return errors.Wrap(err, "store: check row emptiness")
	}
	if remaining == 0 {
		if err := s.client.SRem(ctx, s.rowIndexKey(), row).Err(); err != nil {
			return errors.Wrap(err, "store: prune empty row from index")
		}
	}
	return nil
}

func (s *RedisColumnStore) DeleteRow(ctx context.Context, row string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.rowKey(row))
	pipe.SRem(ctx, s.rowIndexKey(), row)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "store: delete row")
	}
	return nil
}

func (s *RedisColumnStore) RowExists(ctx context.Context, row string) (bool, error) {
	n, err := s.client.Exists(ctx, s.rowKey(row)).Result()
	if err != nil {
		return false, errors.Wrap(err, "store: check row existence")
	}
	return n > 0, nil
}

func (s *RedisColumnStore) ScanRows(ctx context.Context, cursor uint64, pageSize int64) ([]string, uint64, error) {
	rows, next, err := s.client.SScan(ctx, s.rowIndexKey(), cursor, "", pageSize).Result()
	if err != nil {
		return nil, 0, errors.Wrap(err, "store: scan rows")
	}
	return rows, next, nil
}
