package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Ledger states. Transitions run forward from pending within a sync; a
// reset moves failed rows back to pending for retry.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

// SyncStatusRow is one ledger entry for a (user, date, kind) unit of work.
type SyncStatusRow struct {
	UserID       string
	SyncDate     string
	MetricKind   string
	State        string
	SyncedAt     *string
	ErrorMessage *string
}

// CreateSyncStatus inserts a pending ledger row; no-op when it exists.
func (s *Store) CreateSyncStatus(ctx context.Context, userID, date, kind string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sync_status (user_id, sync_date, metric_kind, state) VALUES (?, ?, ?, ?)`,
		userID, date, kind, StatusPending)
	if err != nil {
		return fmt.Errorf("creating sync status (%s, %s): %w", date, kind, err)
	}
	return nil
}

// UpdateSyncStatus records a state transition, stamping synced_at and the
// error message (cleared on success).
func (s *Store) UpdateSyncStatus(ctx context.Context, userID, date, kind, state string, errorMessage string) error {
	var errMsg *string
	if errorMessage != "" {
		errMsg = &errorMessage
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_status SET state = ?, synced_at = ?, error_message = ?
		 WHERE user_id = ? AND sync_date = ? AND metric_kind = ?`,
		state, s.timestamp(), errMsg, userID, date, kind)
	if err != nil {
		return fmt.Errorf("updating sync status (%s, %s): %w", date, kind, err)
	}
	return nil
}

// GetSyncStatus returns one ledger row, or nil when absent.
func (s *Store) GetSyncStatus(ctx context.Context, userID, date, kind string) (*SyncStatusRow, error) {
	var r SyncStatusRow
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, sync_date, metric_kind, state, synced_at, error_message
		 FROM sync_status
		 WHERE user_id = ? AND sync_date = ? AND metric_kind = ?`,
		userID, date, kind).Scan(&r.UserID, &r.SyncDate, &r.MetricKind, &r.State, &r.SyncedAt, &r.ErrorMessage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying sync status (%s, %s): %w", date, kind, err)
	}
	return &r, nil
}

// SyncStatusExists reports whether a ledger row exists for the key.
func (s *Store) SyncStatusExists(ctx context.Context, userID, date, kind string) (bool, error) {
	row, err := s.GetSyncStatus(ctx, userID, date, kind)
	if err != nil {
		return false, err
	}
	return row != nil, nil
}

// GetPendingMetrics returns the kinds still pending for one date.
func (s *Store) GetPendingMetrics(ctx context.Context, userID, date string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT metric_kind FROM sync_status
		 WHERE user_id = ? AND sync_date = ? AND state = ?
		 ORDER BY metric_kind`,
		userID, date, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("querying pending metrics: %w", err)
	}
	defer rows.Close()

	var kinds []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, rows.Err()
}

// CountsByState tallies ledger rows per state for the status command.
func (s *Store) CountsByState(ctx context.Context, userID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT state, COUNT(*) FROM sync_status WHERE user_id = ? GROUP BY state`, userID)
	if err != nil {
		return nil, fmt.Errorf("counting sync statuses: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		counts[state] = n
	}
	return counts, rows.Err()
}

// RecentFailures returns the newest failed ledger rows for diagnostics.
func (s *Store) RecentFailures(ctx context.Context, userID string, limit int) ([]SyncStatusRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, sync_date, metric_kind, state, synced_at, error_message
		 FROM sync_status
		 WHERE user_id = ? AND state = ?
		 ORDER BY sync_date DESC, metric_kind
		 LIMIT ?`,
		userID, StatusFailed, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent failures: %w", err)
	}
	defer rows.Close()

	var out []SyncStatusRow
	for rows.Next() {
		var r SyncStatusRow
		if err := rows.Scan(&r.UserID, &r.SyncDate, &r.MetricKind, &r.State, &r.SyncedAt, &r.ErrorMessage); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecentSyncs returns the ledger rows with the newest sync timestamps,
// regardless of outcome.
func (s *Store) RecentSyncs(ctx context.Context, userID string, limit int) ([]SyncStatusRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, sync_date, metric_kind, state, synced_at, error_message
		 FROM sync_status
		 WHERE user_id = ? AND synced_at IS NOT NULL
		 ORDER BY synced_at DESC, sync_date DESC, metric_kind
		 LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent syncs: %w", err)
	}
	defer rows.Close()

	var out []SyncStatusRow
	for rows.Next() {
		var r SyncStatusRow
		if err := rows.Scan(&r.UserID, &r.SyncDate, &r.MetricKind, &r.State, &r.SyncedAt, &r.ErrorMessage); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ResetFailed moves failed rows back to pending, clearing their error
// message and sync timestamp. Returns the number of rows reset.
func (s *Store) ResetFailed(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_status SET state = ?, synced_at = NULL, error_message = NULL
		 WHERE user_id = ? AND state = ?`,
		StatusPending, userID, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("resetting failed statuses: %w", err)
	}
	return res.RowsAffected()
}
