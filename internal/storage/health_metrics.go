package storage

import (
	"context"
	"fmt"
	"strings"
)

// HealthMetricFields is a partial column set for one (user, date) row.
// Nil fields are omitted from merges so they never clobber stored values.
type HealthMetricFields struct {
	TotalSteps                *int64
	StepGoal                  *int64
	TotalDistanceMeters       *float64
	TotalCalories             *float64
	ActiveCalories            *float64
	BMRCalories               *float64
	RestingHeartRate          *int64
	MinHeartRate              *int64
	MaxHeartRate              *int64
	AvgHeartRate              *int64
	AvgStressLevel            *int64
	MaxStressLevel            *int64
	BodyBatteryHigh           *int64
	BodyBatteryLow            *int64
	SleepDurationHours        *float64
	DeepSleepHours            *float64
	LightSleepHours           *float64
	RemSleepHours             *float64
	AwakeHours                *float64
	AvgSpO2                   *float64
	AvgRespiration            *float64
	WakingRespiration         *float64
	SleepRespiration          *float64
	LowestRespiration         *float64
	HighestRespiration        *float64
	TrainingReadinessScore    *int64
	TrainingReadinessLevel    *string
	TrainingReadinessFeedback *string
	HRVWeeklyAvg              *float64
	HRVLastNightAvg           *float64
	HRVStatus                 *string
	SleepScore                *int64
	SleepScoreQualifier       *string
	SleepBedtime              *string
	SleepWakeTime             *string
	SleepNeedMinutes          *int64
	SkinTempDeviationC        *float64
}

// columns pairs every column name with its (possibly nil) value, in
// schema order.
func (f *HealthMetricFields) columns() []struct {
	name  string
	value any
} {
	return []struct {
		name  string
		value any
	}{
		{"total_steps", f.TotalSteps},
		{"step_goal", f.StepGoal},
		{"total_distance_meters", f.TotalDistanceMeters},
		{"total_calories", f.TotalCalories},
		{"active_calories", f.ActiveCalories},
		{"bmr_calories", f.BMRCalories},
		{"resting_heart_rate", f.RestingHeartRate},
		{"min_heart_rate", f.MinHeartRate},
		{"max_heart_rate", f.MaxHeartRate},
		{"avg_heart_rate", f.AvgHeartRate},
		{"avg_stress_level", f.AvgStressLevel},
		{"max_stress_level", f.MaxStressLevel},
		{"body_battery_high", f.BodyBatteryHigh},
		{"body_battery_low", f.BodyBatteryLow},
		{"sleep_duration_hours", f.SleepDurationHours},
		{"deep_sleep_hours", f.DeepSleepHours},
		{"light_sleep_hours", f.LightSleepHours},
		{"rem_sleep_hours", f.RemSleepHours},
		{"awake_hours", f.AwakeHours},
		{"avg_spo2", f.AvgSpO2},
		{"avg_respiration", f.AvgRespiration},
		{"waking_respiration", f.WakingRespiration},
		{"sleep_respiration", f.SleepRespiration},
		{"lowest_respiration", f.LowestRespiration},
		{"highest_respiration", f.HighestRespiration},
		{"training_readiness_score", f.TrainingReadinessScore},
		{"training_readiness_level", f.TrainingReadinessLevel},
		{"training_readiness_feedback", f.TrainingReadinessFeedback},
		{"hrv_weekly_avg", f.HRVWeeklyAvg},
		{"hrv_last_night_avg", f.HRVLastNightAvg},
		{"hrv_status", f.HRVStatus},
		{"sleep_score", f.SleepScore},
		{"sleep_score_qualifier", f.SleepScoreQualifier},
		{"sleep_bedtime", f.SleepBedtime},
		{"sleep_wake_time", f.SleepWakeTime},
		{"sleep_need_minutes", f.SleepNeedMinutes},
		{"skin_temp_deviation_c", f.SkinTempDeviationC},
	}
}

// HasValues reports whether any field is non-nil.
func (f *HealthMetricFields) HasValues() bool {
	for _, c := range f.columns() {
		if !isNilValue(c.value) {
			return true
		}
	}
	return false
}

func isNilValue(v any) bool {
	switch t := v.(type) {
	case *int64:
		return t == nil
	case *float64:
		return t == nil
	case *string:
		return t == nil
	}
	return v == nil
}

// UpsertHealthMetric merges fields into the (user, date) row. New non-null
// values win; stored values survive nil fields.
func (s *Store) UpsertHealthMetric(ctx context.Context, userID, date string, fields *HealthMetricFields) error {
	cols := fields.columns()

	names := make([]string, 0, len(cols))
	placeholders := make([]string, 0, len(cols))
	updates := make([]string, 0, len(cols))
	args := []any{userID, date}
	for _, c := range cols {
		names = append(names, c.name)
		placeholders = append(placeholders, "?")
		updates = append(updates, fmt.Sprintf("%s = COALESCE(excluded.%s, %s)", c.name, c.name, c.name))
		args = append(args, c.value)
	}
	now := s.timestamp()
	args = append(args, now, now)

	query := fmt.Sprintf(`INSERT INTO daily_health_metrics (user_id, metric_date, %s, created_at, updated_at)
VALUES (?, ?, %s, ?, ?)
ON CONFLICT (user_id, metric_date) DO UPDATE SET
%s,
updated_at = excluded.updated_at`,
		strings.Join(names, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ",\n"))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting health metrics for %s: %w", date, err)
	}
	return nil
}

// HealthMetricExists reports whether a row exists for the (user, date).
func (s *Store) HealthMetricExists(ctx context.Context, userID, date string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM daily_health_metrics WHERE user_id = ? AND metric_date = ?`,
		userID, date).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking health metric existence: %w", err)
	}
	return count > 0, nil
}

// HealthMetricRow is a full row read back from daily_health_metrics.
type HealthMetricRow struct {
	UserID     string
	MetricDate string
	Fields     HealthMetricFields
	CreatedAt  string
	UpdatedAt  string
}

// DeepSleepPercent derives the stage share from stored hours. Returns nil
// when either side is missing or the night is empty.
func (r *HealthMetricRow) DeepSleepPercent() *float64 {
	return stagePercent(r.Fields.DeepSleepHours, r.Fields.SleepDurationHours)
}

func (r *HealthMetricRow) LightSleepPercent() *float64 {
	return stagePercent(r.Fields.LightSleepHours, r.Fields.SleepDurationHours)
}

func (r *HealthMetricRow) RemSleepPercent() *float64 {
	return stagePercent(r.Fields.RemSleepHours, r.Fields.SleepDurationHours)
}

func (r *HealthMetricRow) AwakePercent() *float64 {
	return stagePercent(r.Fields.AwakeHours, r.Fields.SleepDurationHours)
}

// SkinTempDeviationF converts the stored Celsius deviation on read.
func (r *HealthMetricRow) SkinTempDeviationF() *float64 {
	if r.Fields.SkinTempDeviationC == nil {
		return nil
	}
	f := *r.Fields.SkinTempDeviationC * 9 / 5
	return &f
}

func stagePercent(stage, total *float64) *float64 {
	if stage == nil || total == nil || *total == 0 {
		return nil
	}
	p := *stage / *total * 100
	return &p
}

// GetHealthMetrics returns rows in the inclusive date range, ascending.
func (s *Store) GetHealthMetrics(ctx context.Context, userID, startDate, endDate string) ([]HealthMetricRow, error) {
	var selectCols []string
	for _, c := range (&HealthMetricFields{}).columns() {
		selectCols = append(selectCols, c.name)
	}
	query := fmt.Sprintf(`SELECT user_id, metric_date, %s, created_at, updated_at
FROM daily_health_metrics
WHERE user_id = ? AND metric_date >= ? AND metric_date <= ?
ORDER BY metric_date ASC`, strings.Join(selectCols, ", "))

	rows, err := s.db.QueryContext(ctx, query, userID, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("querying health metrics: %w", err)
	}
	defer rows.Close()

	var out []HealthMetricRow
	for rows.Next() {
		var r HealthMetricRow
		f := &r.Fields
		dest := []any{&r.UserID, &r.MetricDate,
			&f.TotalSteps, &f.StepGoal, &f.TotalDistanceMeters, &f.TotalCalories,
			&f.ActiveCalories, &f.BMRCalories, &f.RestingHeartRate, &f.MinHeartRate,
			&f.MaxHeartRate, &f.AvgHeartRate, &f.AvgStressLevel, &f.MaxStressLevel,
			&f.BodyBatteryHigh, &f.BodyBatteryLow, &f.SleepDurationHours, &f.DeepSleepHours,
			&f.LightSleepHours, &f.RemSleepHours, &f.AwakeHours, &f.AvgSpO2,
			&f.AvgRespiration, &f.WakingRespiration, &f.SleepRespiration, &f.LowestRespiration,
			&f.HighestRespiration, &f.TrainingReadinessScore, &f.TrainingReadinessLevel,
			&f.TrainingReadinessFeedback, &f.HRVWeeklyAvg, &f.HRVLastNightAvg, &f.HRVStatus,
			&f.SleepScore, &f.SleepScoreQualifier, &f.SleepBedtime, &f.SleepWakeTime,
			&f.SleepNeedMinutes, &f.SkinTempDeviationC,
			&r.CreatedAt, &r.UpdatedAt}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning health metric row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
