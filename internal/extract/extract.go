// Package extract is the pure transformation layer between parsed API
// readings and store rows. Nothing here touches the network or database.
package extract

import (
	"database/sql"
	"time"

	"github.com/meltforce/garmsync/internal/metrics"
	"github.com/meltforce/garmsync/internal/storage"
)

// HealthFields maps a reading onto the partial daily row for its kind.
// Fields absent from the payload stay nil so merges never clobber.
func HealthFields(r *metrics.Reading) *storage.HealthMetricFields {
	f := &storage.HealthMetricFields{}
	if r == nil {
		return f
	}
	switch r.Kind {
	case metrics.KindDailySummary:
		ds := r.DailySummary
		if ds == nil {
			return f
		}
		f.TotalSteps = ds.TotalSteps
		f.StepGoal = ds.DailyStepGoal
		f.TotalDistanceMeters = ds.TotalDistanceMeters
		f.TotalCalories = ds.TotalKilocalories
		f.ActiveCalories = ds.ActiveKilocalories
		f.BMRCalories = ds.BMRKilocalories
		f.RestingHeartRate = ds.RestingHeartRate
		f.MinHeartRate = ds.MinHeartRate
		f.MaxHeartRate = ds.MaxHeartRate
		f.AvgHeartRate = ds.AverageHeartRate
		f.AvgStressLevel = ds.AverageStressLevel
		f.MaxStressLevel = ds.MaxStressLevel
		f.BodyBatteryHigh = ds.BodyBatteryHighest
		f.BodyBatteryLow = ds.BodyBatteryLowest
		f.AvgSpO2 = ds.AverageSpO2
		f.AvgRespiration = ds.AverageRespiration
	case metrics.KindSteps:
		if ds := r.DailySummary; ds != nil {
			f.TotalSteps = ds.TotalSteps
			f.StepGoal = ds.DailyStepGoal
			f.TotalDistanceMeters = ds.TotalDistanceMeters
		}
	case metrics.KindCalories:
		if ds := r.DailySummary; ds != nil {
			f.TotalCalories = ds.TotalKilocalories
			f.ActiveCalories = ds.ActiveKilocalories
			f.BMRCalories = ds.BMRKilocalories
		}
	case metrics.KindSleep:
		s := r.Sleep
		if s == nil {
			return f
		}
		f.SleepDurationHours = secondsToHours(s.SleepTimeSeconds)
		f.DeepSleepHours = secondsToHours(s.DeepSleepSeconds)
		f.LightSleepHours = secondsToHours(s.LightSleepSeconds)
		f.RemSleepHours = secondsToHours(s.RemSleepSeconds)
		f.AwakeHours = secondsToHours(s.AwakeSleepSeconds)
		f.AvgSpO2 = s.AverageSpO2
		f.AvgRespiration = s.AverageRespiration
		f.SleepScore = s.Score
		if s.ScoreQualifier != "" {
			q := s.ScoreQualifier
			f.SleepScoreQualifier = &q
		}
		f.SleepBedtime = millisToISO(s.StartTimestampGMT)
		f.SleepWakeTime = millisToISO(s.EndTimestampGMT)
		f.SleepNeedMinutes = s.NeedMinutes
		f.SkinTempDeviationC = s.SkinTempDeviationC
	case metrics.KindTrainingReadiness:
		tr := r.TrainingReadiness
		if tr == nil {
			return f
		}
		f.TrainingReadinessScore = tr.Score
		if tr.Level != "" {
			l := tr.Level
			f.TrainingReadinessLevel = &l
		}
		if tr.FeedbackShort != "" {
			fb := tr.FeedbackShort
			f.TrainingReadinessFeedback = &fb
		}
	case metrics.KindHRV:
		h := r.HRV
		if h == nil {
			return f
		}
		f.HRVWeeklyAvg = h.WeeklyAvg
		f.HRVLastNightAvg = h.LastNightAvg
		if h.Status != "" {
			st := h.Status
			f.HRVStatus = &st
		}
	case metrics.KindRespiration:
		resp := r.Respiration
		if resp == nil {
			return f
		}
		f.AvgRespiration = resp.AvgToday
		f.WakingRespiration = resp.AvgWaking
		f.SleepRespiration = resp.AvgSleep
		f.LowestRespiration = resp.Lowest
		f.HighestRespiration = resp.Highest
	case metrics.KindHeartRate:
		hr := r.HeartRate
		if hr == nil {
			return f
		}
		f.RestingHeartRate = hr.RestingHeartRate
		f.MinHeartRate = hr.MinHeartRate
		f.MaxHeartRate = hr.MaxHeartRate
	case metrics.KindStress:
		st := r.Stress
		if st == nil {
			return f
		}
		f.AvgStressLevel = st.AvgStressLevel
		f.MaxStressLevel = st.MaxStressLevel
	case metrics.KindBodyBattery:
		bb := r.BodyBattery
		if bb == nil {
			return f
		}
		f.BodyBatteryHigh = bb.Highest
		f.BodyBatteryLow = bb.Lowest
	}
	return f
}

// TimeSeries converts a reading's intraday samples into store rows.
// Parsers have already dropped null values.
func TimeSeries(r *metrics.Reading) []storage.TimeSeriesRow {
	if r == nil {
		return nil
	}
	var points []metrics.Point
	switch r.Kind {
	case metrics.KindHeartRate:
		if r.HeartRate != nil {
			points = r.HeartRate.Values
		}
	case metrics.KindStress:
		if r.Stress != nil {
			points = r.Stress.Values
		}
	case metrics.KindBodyBattery:
		if r.BodyBattery != nil {
			points = r.BodyBattery.Points
		}
	case metrics.KindRespiration:
		if r.Respiration != nil {
			points = r.Respiration.Values
		}
	default:
		return nil
	}

	rows := make([]storage.TimeSeriesRow, 0, len(points))
	for _, p := range points {
		row := storage.TimeSeriesRow{TimestampMS: p.TimestampMS, Value: p.Value}
		if len(p.Metadata) > 0 {
			row.Metadata = sql.NullString{String: string(p.Metadata), Valid: true}
		}
		rows = append(rows, row)
	}
	return rows
}

func secondsToHours(s *float64) *float64 {
	if s == nil {
		return nil
	}
	h := *s / 3600
	return &h
}

func millisToISO(ms *int64) *string {
	if ms == nil {
		return nil
	}
	iso := time.UnixMilli(*ms).UTC().Format(time.RFC3339)
	return &iso
}
