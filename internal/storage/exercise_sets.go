package storage

import (
	"context"
	"fmt"
)

// ExerciseSetRow is one set within a strength activity.
type ExerciseSetRow struct {
	UserID           string
	ActivityID       int64
	SetOrder         int64
	ExerciseCategory *string
	ExerciseName     *string
	SetType          string
	RepetitionCount  *int64
	WeightGrams      *float64
	DurationSeconds  *float64
	StartTime        *string
}

// UpsertExerciseSets replaces the sets for one activity inside a
// transaction. Re-inserts are idempotent on the composite key.
func (s *Store) UpsertExerciseSets(ctx context.Context, sets []ExerciseSetRow) error {
	if len(sets) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning exercise sets tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO exercise_sets
(user_id, activity_id, set_order, exercise_category, exercise_name, set_type,
 repetition_count, weight_grams, duration_seconds, start_time)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, activity_id, set_order) DO UPDATE SET
exercise_category = excluded.exercise_category,
exercise_name = excluded.exercise_name,
set_type = excluded.set_type,
repetition_count = excluded.repetition_count,
weight_grams = excluded.weight_grams,
duration_seconds = excluded.duration_seconds,
start_time = excluded.start_time`)
	if err != nil {
		return fmt.Errorf("preparing exercise set insert: %w", err)
	}
	defer stmt.Close()

	for _, set := range sets {
		if _, err := stmt.ExecContext(ctx, set.UserID, set.ActivityID, set.SetOrder,
			set.ExerciseCategory, set.ExerciseName, set.SetType,
			set.RepetitionCount, set.WeightGrams, set.DurationSeconds, set.StartTime); err != nil {
			return fmt.Errorf("inserting exercise set %d: %w", set.SetOrder, err)
		}
	}
	return tx.Commit()
}

// GetExerciseSets returns the stored sets for one activity in set order.
func (s *Store) GetExerciseSets(ctx context.Context, userID string, activityID int64) ([]ExerciseSetRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, activity_id, set_order, exercise_category, exercise_name, set_type,
		        repetition_count, weight_grams, duration_seconds, start_time
		 FROM exercise_sets
		 WHERE user_id = ? AND activity_id = ?
		 ORDER BY set_order ASC`,
		userID, activityID)
	if err != nil {
		return nil, fmt.Errorf("querying exercise sets: %w", err)
	}
	defer rows.Close()

	var out []ExerciseSetRow
	for rows.Next() {
		var r ExerciseSetRow
		if err := rows.Scan(&r.UserID, &r.ActivityID, &r.SetOrder, &r.ExerciseCategory,
			&r.ExerciseName, &r.SetType, &r.RepetitionCount, &r.WeightGrams,
			&r.DurationSeconds, &r.StartTime); err != nil {
			return nil, fmt.Errorf("scanning exercise set row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
