package storage

import (
	"context"
	"fmt"
)

// SplitRow is one lap of a cardio activity. Speeds are m/s, distances
// meters, heart rates bpm.
type SplitRow struct {
	UserID                string
	ActivityID            int64
	LapIndex              int64
	StartTime             *string
	DurationSeconds       *float64
	MovingDurationSeconds *float64
	DistanceMeters        *float64
	AvgSpeedMPS           *float64
	MaxSpeedMPS           *float64
	AvgMovingSpeedMPS     *float64
	AvgHeartRate          *int64
	MaxHeartRate          *int64
	ElevationGainM        *float64
	ElevationLossM        *float64
	MaxElevationM         *float64
	MinElevationM         *float64
	AvgCadence            *float64
	MaxCadence            *float64
	Calories              *float64
	StartLat              *float64
	StartLon              *float64
	EndLat                *float64
	EndLon                *float64
	IntensityType         string
}

// PaceMinPerKm derives running pace on read.
func (r *SplitRow) PaceMinPerKm() *float64 {
	if r.DurationSeconds == nil || r.DistanceMeters == nil || *r.DistanceMeters == 0 {
		return nil
	}
	pace := (*r.DurationSeconds / 60) / (*r.DistanceMeters / 1000)
	return &pace
}

// UpsertSplits stores all laps for one activity inside a transaction.
func (s *Store) UpsertSplits(ctx context.Context, splits []SplitRow) error {
	if len(splits) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning splits tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO activity_splits
(user_id, activity_id, lap_index, start_time, duration_seconds, moving_duration_seconds,
 distance_meters, avg_speed_mps, max_speed_mps, avg_moving_speed_mps, avg_heart_rate,
 max_heart_rate, elevation_gain_m, elevation_loss_m, max_elevation_m, min_elevation_m,
 avg_cadence, max_cadence, calories, start_lat, start_lon, end_lat, end_lon, intensity_type)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, activity_id, lap_index) DO UPDATE SET
start_time = excluded.start_time,
duration_seconds = excluded.duration_seconds,
moving_duration_seconds = excluded.moving_duration_seconds,
distance_meters = excluded.distance_meters,
avg_speed_mps = excluded.avg_speed_mps,
max_speed_mps = excluded.max_speed_mps,
avg_moving_speed_mps = excluded.avg_moving_speed_mps,
avg_heart_rate = excluded.avg_heart_rate,
max_heart_rate = excluded.max_heart_rate,
elevation_gain_m = excluded.elevation_gain_m,
elevation_loss_m = excluded.elevation_loss_m,
max_elevation_m = excluded.max_elevation_m,
min_elevation_m = excluded.min_elevation_m,
avg_cadence = excluded.avg_cadence,
max_cadence = excluded.max_cadence,
calories = excluded.calories,
start_lat = excluded.start_lat,
start_lon = excluded.start_lon,
end_lat = excluded.end_lat,
end_lon = excluded.end_lon,
intensity_type = excluded.intensity_type`)
	if err != nil {
		return fmt.Errorf("preparing split insert: %w", err)
	}
	defer stmt.Close()

	for _, sp := range splits {
		if _, err := stmt.ExecContext(ctx, sp.UserID, sp.ActivityID, sp.LapIndex, sp.StartTime,
			sp.DurationSeconds, sp.MovingDurationSeconds, sp.DistanceMeters, sp.AvgSpeedMPS,
			sp.MaxSpeedMPS, sp.AvgMovingSpeedMPS, sp.AvgHeartRate, sp.MaxHeartRate,
			sp.ElevationGainM, sp.ElevationLossM, sp.MaxElevationM, sp.MinElevationM,
			sp.AvgCadence, sp.MaxCadence, sp.Calories, sp.StartLat, sp.StartLon,
			sp.EndLat, sp.EndLon, sp.IntensityType); err != nil {
			return fmt.Errorf("inserting split %d: %w", sp.LapIndex, err)
		}
	}
	return tx.Commit()
}

// ActivityHasSplits reports whether any lap is stored for the activity.
func (s *Store) ActivityHasSplits(ctx context.Context, userID string, activityID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM activity_splits WHERE user_id = ? AND activity_id = ?`,
		userID, activityID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking splits existence: %w", err)
	}
	return count > 0, nil
}

// GetActivitySplits returns the stored laps in lap order.
func (s *Store) GetActivitySplits(ctx context.Context, userID string, activityID int64) ([]SplitRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, activity_id, lap_index, start_time, duration_seconds, moving_duration_seconds,
		        distance_meters, avg_speed_mps, max_speed_mps, avg_moving_speed_mps, avg_heart_rate,
		        max_heart_rate, elevation_gain_m, elevation_loss_m, max_elevation_m, min_elevation_m,
		        avg_cadence, max_cadence, calories, start_lat, start_lon, end_lat, end_lon, intensity_type
		 FROM activity_splits
		 WHERE user_id = ? AND activity_id = ?
		 ORDER BY lap_index ASC`,
		userID, activityID)
	if err != nil {
		return nil, fmt.Errorf("querying activity splits: %w", err)
	}
	defer rows.Close()

	var out []SplitRow
	for rows.Next() {
		var r SplitRow
		if err := rows.Scan(&r.UserID, &r.ActivityID, &r.LapIndex, &r.StartTime,
			&r.DurationSeconds, &r.MovingDurationSeconds, &r.DistanceMeters, &r.AvgSpeedMPS,
			&r.MaxSpeedMPS, &r.AvgMovingSpeedMPS, &r.AvgHeartRate, &r.MaxHeartRate,
			&r.ElevationGainM, &r.ElevationLossM, &r.MaxElevationM, &r.MinElevationM,
			&r.AvgCadence, &r.MaxCadence, &r.Calories, &r.StartLat, &r.StartLon,
			&r.EndLat, &r.EndLon, &r.IntensityType); err != nil {
			return nil, fmt.Errorf("scanning split row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SplitAggregates holds totals over the ACTIVE laps of one activity.
type SplitAggregates struct {
	DistanceMeters *float64
	Calories       *float64
	ElevationGainM *float64
}

// AggregateActiveSplits sums distance, calories, and elevation gain over
// the ACTIVE laps of the activity.
func (s *Store) AggregateActiveSplits(ctx context.Context, userID string, activityID int64) (*SplitAggregates, error) {
	var agg SplitAggregates
	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(distance_meters), SUM(calories), SUM(elevation_gain_m)
		 FROM activity_splits
		 WHERE user_id = ? AND activity_id = ? AND intensity_type = 'ACTIVE'`,
		userID, activityID).Scan(&agg.DistanceMeters, &agg.Calories, &agg.ElevationGainM)
	if err != nil {
		return nil, fmt.Errorf("aggregating splits for %d: %w", activityID, err)
	}
	return &agg, nil
}
