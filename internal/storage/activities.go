package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// ActivityRow is one recorded activity.
type ActivityRow struct {
	UserID          string
	ActivityID      int64
	ActivityDate    string
	ActivityName    *string
	ActivityType    *string
	DurationSeconds *float64
	AvgHeartRate    *float64
	MaxHeartRate    *float64
	TrainingLoad    *float64
	StartTime       *string
	DistanceMeters  *float64
	Calories        *float64
	ElevationGain   *float64
	ElevationLoss   *float64
	AvgSpeed        *float64
	MaxSpeed        *float64
	TotalSets       *int64
	TotalReps       *int64
	TotalWeightKg   *float64
	DetailsSynced   bool
}

const activityColumns = `user_id, activity_id, activity_date, activity_name, activity_type,
duration_seconds, avg_heart_rate, max_heart_rate, training_load, start_time,
distance_meters, calories, elevation_gain, elevation_loss, avg_speed, max_speed,
total_sets, total_reps, total_weight_kg, details_synced`

// UpsertActivity merges the row on (user, activity_id), preserving stored
// values where the incoming row carries nil.
func (s *Store) UpsertActivity(ctx context.Context, row *ActivityRow) error {
	now := s.timestamp()
	_, err := s.db.ExecContext(ctx, `INSERT INTO activities
(user_id, activity_id, activity_date, activity_name, activity_type,
 duration_seconds, avg_heart_rate, max_heart_rate, training_load, start_time,
 distance_meters, calories, elevation_gain, elevation_loss, avg_speed, max_speed,
 total_sets, total_reps, total_weight_kg, details_synced, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, activity_id) DO UPDATE SET
activity_date = COALESCE(excluded.activity_date, activity_date),
activity_name = COALESCE(excluded.activity_name, activity_name),
activity_type = COALESCE(excluded.activity_type, activity_type),
duration_seconds = COALESCE(excluded.duration_seconds, duration_seconds),
avg_heart_rate = COALESCE(excluded.avg_heart_rate, avg_heart_rate),
max_heart_rate = COALESCE(excluded.max_heart_rate, max_heart_rate),
training_load = COALESCE(excluded.training_load, training_load),
start_time = COALESCE(excluded.start_time, start_time),
distance_meters = COALESCE(excluded.distance_meters, distance_meters),
calories = COALESCE(excluded.calories, calories),
elevation_gain = COALESCE(excluded.elevation_gain, elevation_gain),
elevation_loss = COALESCE(excluded.elevation_loss, elevation_loss),
avg_speed = COALESCE(excluded.avg_speed, avg_speed),
max_speed = COALESCE(excluded.max_speed, max_speed),
total_sets = COALESCE(excluded.total_sets, total_sets),
total_reps = COALESCE(excluded.total_reps, total_reps),
total_weight_kg = COALESCE(excluded.total_weight_kg, total_weight_kg),
details_synced = MAX(excluded.details_synced, details_synced),
updated_at = excluded.updated_at`,
		row.UserID, row.ActivityID, row.ActivityDate, row.ActivityName, row.ActivityType,
		row.DurationSeconds, row.AvgHeartRate, row.MaxHeartRate, row.TrainingLoad, row.StartTime,
		row.DistanceMeters, row.Calories, row.ElevationGain, row.ElevationLoss, row.AvgSpeed, row.MaxSpeed,
		row.TotalSets, row.TotalReps, row.TotalWeightKg, row.DetailsSynced, now, now)
	if err != nil {
		return fmt.Errorf("upserting activity %d: %w", row.ActivityID, err)
	}
	return nil
}

// ActivityExists reports whether the activity is already stored.
func (s *Store) ActivityExists(ctx context.Context, userID string, activityID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM activities WHERE user_id = ? AND activity_id = ?`,
		userID, activityID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking activity existence: %w", err)
	}
	return count > 0, nil
}

// UpdateStrengthSummary merges the computed set totals onto the activity.
func (s *Store) UpdateStrengthSummary(ctx context.Context, userID string, activityID, totalSets, totalReps int64, totalWeightKg float64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE activities SET total_sets = ?, total_reps = ?, total_weight_kg = ?, updated_at = ?
		 WHERE user_id = ? AND activity_id = ?`,
		totalSets, totalReps, totalWeightKg, s.timestamp(), userID, activityID)
	if err != nil {
		return fmt.Errorf("updating strength summary for %d: %w", activityID, err)
	}
	return nil
}

// FillCardioAggregates sets distance, calories, and elevation gain from
// split aggregates, only where the stored values are still null.
func (s *Store) FillCardioAggregates(ctx context.Context, userID string, activityID int64, distance, calories, elevationGain *float64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE activities SET
		 distance_meters = COALESCE(distance_meters, ?),
		 calories = COALESCE(calories, ?),
		 elevation_gain = COALESCE(elevation_gain, ?),
		 updated_at = ?
		 WHERE user_id = ? AND activity_id = ?`,
		distance, calories, elevationGain, s.timestamp(), userID, activityID)
	if err != nil {
		return fmt.Errorf("filling cardio aggregates for %d: %w", activityID, err)
	}
	return nil
}

// MarkDetailsSynced flags the activity so backfills skip it.
func (s *Store) MarkDetailsSynced(ctx context.Context, userID string, activityID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE activities SET details_synced = 1, updated_at = ? WHERE user_id = ? AND activity_id = ?`,
		s.timestamp(), userID, activityID)
	if err != nil {
		return fmt.Errorf("marking details synced for %d: %w", activityID, err)
	}
	return nil
}

// GetActivities returns activities in the inclusive date range, newest
// first, optionally filtered by name substring.
func (s *Store) GetActivities(ctx context.Context, userID, startDate, endDate, nameFilter string) ([]ActivityRow, error) {
	query := `SELECT ` + activityColumns + `
FROM activities
WHERE user_id = ? AND activity_date >= ? AND activity_date <= ?`
	args := []any{userID, startDate, endDate}
	if nameFilter != "" {
		query += ` AND activity_name LIKE ?`
		args = append(args, "%"+nameFilter+"%")
	}
	query += ` ORDER BY activity_date DESC, activity_id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying activities: %w", err)
	}
	defer rows.Close()
	return scanActivities(rows)
}

// ActivitiesNeedingDetails returns activities whose detail sync has not
// happened, newest first.
func (s *Store) ActivitiesNeedingDetails(ctx context.Context, userID string, limit int) ([]ActivityRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+activityColumns+`
FROM activities
WHERE user_id = ? AND details_synced = 0
ORDER BY activity_date DESC, activity_id DESC
LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying activities needing details: %w", err)
	}
	defer rows.Close()
	return scanActivities(rows)
}

// CardioActivitiesWithoutSplits returns cardio activities of the given
// types that have no stored splits, newest first.
func (s *Store) CardioActivitiesWithoutSplits(ctx context.Context, userID string, types []string, limit int) ([]ActivityRow, error) {
	if len(types) == 0 {
		return nil, nil
	}
	placeholders := ""
	args := []any{userID}
	for i, t := range types {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
		args = append(args, t)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `SELECT `+activityColumns+`
FROM activities a
WHERE a.user_id = ? AND a.activity_type IN (`+placeholders+`)
  AND NOT EXISTS (SELECT 1 FROM activity_splits sp WHERE sp.user_id = a.user_id AND sp.activity_id = a.activity_id)
ORDER BY a.activity_date DESC, a.activity_id DESC
LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying cardio activities without splits: %w", err)
	}
	defer rows.Close()
	return scanActivities(rows)
}

// ActivitiesWithSplitsMissingDistance returns activities that have splits
// stored but a null distance column.
func (s *Store) ActivitiesWithSplitsMissingDistance(ctx context.Context, userID string) ([]ActivityRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+activityColumns+`
FROM activities a
WHERE a.user_id = ? AND a.distance_meters IS NULL
  AND EXISTS (SELECT 1 FROM activity_splits sp WHERE sp.user_id = a.user_id AND sp.activity_id = a.activity_id)
ORDER BY a.activity_date DESC, a.activity_id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying activities missing distance: %w", err)
	}
	defer rows.Close()
	return scanActivities(rows)
}

func scanActivities(rows *sql.Rows) ([]ActivityRow, error) {
	var out []ActivityRow
	for rows.Next() {
		var r ActivityRow
		if err := rows.Scan(&r.UserID, &r.ActivityID, &r.ActivityDate, &r.ActivityName, &r.ActivityType,
			&r.DurationSeconds, &r.AvgHeartRate, &r.MaxHeartRate, &r.TrainingLoad, &r.StartTime,
			&r.DistanceMeters, &r.Calories, &r.ElevationGain, &r.ElevationLoss, &r.AvgSpeed, &r.MaxSpeed,
			&r.TotalSets, &r.TotalReps, &r.TotalWeightKg, &r.DetailsSynced); err != nil {
			return nil, fmt.Errorf("scanning activity row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
