package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// TimeSeriesRow is one intraday sample.
type TimeSeriesRow struct {
	UserID      string
	MetricKind  string
	TimestampMS int64
	Value       float64
	Metadata    sql.NullString
}

// InsertTimeseriesBatch upserts intraday samples inside one transaction.
// Value is non-nullable by construction; callers drop null samples before
// reaching the store.
func (s *Store) InsertTimeseriesBatch(ctx context.Context, userID, kind string, points []TimeSeriesRow) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning timeseries tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO timeseries (user_id, metric_kind, timestamp_ms, value, metadata)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id, metric_kind, timestamp_ms) DO UPDATE SET
value = excluded.value,
metadata = COALESCE(excluded.metadata, metadata)`)
	if err != nil {
		return 0, fmt.Errorf("preparing timeseries insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, userID, kind, p.TimestampMS, p.Value, p.Metadata); err != nil {
			return 0, fmt.Errorf("inserting timeseries point %d: %w", p.TimestampMS, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing timeseries batch: %w", err)
	}
	return len(points), nil
}

// GetTimeseries returns samples of one kind in [startMS, endMS), ascending.
func (s *Store) GetTimeseries(ctx context.Context, userID, kind string, startMS, endMS int64) ([]TimeSeriesRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, metric_kind, timestamp_ms, value, metadata
		 FROM timeseries
		 WHERE user_id = ? AND metric_kind = ? AND timestamp_ms >= ? AND timestamp_ms < ?
		 ORDER BY timestamp_ms ASC`,
		userID, kind, startMS, endMS)
	if err != nil {
		return nil, fmt.Errorf("querying timeseries: %w", err)
	}
	defer rows.Close()

	var out []TimeSeriesRow
	for rows.Next() {
		var r TimeSeriesRow
		if err := rows.Scan(&r.UserID, &r.MetricKind, &r.TimestampMS, &r.Value, &r.Metadata); err != nil {
			return nil, fmt.Errorf("scanning timeseries row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
