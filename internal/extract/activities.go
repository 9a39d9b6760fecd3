package extract

import (
	"github.com/meltforce/garmsync/internal/metrics"
	"github.com/meltforce/garmsync/internal/storage"
)

// strengthTypes are activity types whose details come from exercise sets.
var strengthTypes = map[string]bool{
	"strength_training":        true,
	"indoor_strength_training": true,
}

// cardioTypes are activity types whose details come from lap splits.
var cardioTypes = map[string]bool{
	"running":             true,
	"trail_running":       true,
	"treadmill_running":   true,
	"track_running":       true,
	"cycling":             true,
	"road_biking":         true,
	"mountain_biking":     true,
	"indoor_cycling":      true,
	"virtual_ride":        true,
	"swimming":            true,
	"lap_swimming":        true,
	"open_water_swimming": true,
	"walking":             true,
	"hiking":              true,
	"elliptical":          true,
	"indoor_rowing":       true,
	"rowing":              true,
}

// IsStrengthType reports whether the activity type carries exercise sets.
func IsStrengthType(activityType string) bool {
	return strengthTypes[activityType]
}

// IsCardioType reports whether the activity type carries lap splits.
func IsCardioType(activityType string) bool {
	return cardioTypes[activityType]
}

// CardioTypes returns the cardio type list for store queries.
func CardioTypes() []string {
	out := make([]string, 0, len(cardioTypes))
	for t := range cardioTypes {
		out = append(out, t)
	}
	return out
}

// ActivityDate pulls the calendar date off the local start time.
func ActivityDate(a *metrics.Activity) string {
	if len(a.StartTimeLocal) >= 10 {
		return a.StartTimeLocal[:10]
	}
	return ""
}

// ActivityRow converts a list entry into a store row.
func ActivityRow(userID string, a *metrics.Activity) *storage.ActivityRow {
	row := &storage.ActivityRow{
		UserID:          userID,
		ActivityID:      a.ActivityID,
		ActivityDate:    ActivityDate(a),
		DurationSeconds: a.Duration,
		AvgHeartRate:    a.AverageHR,
		MaxHeartRate:    a.MaxHR,
		TrainingLoad:    a.ActivityTrainingLoad,
		DistanceMeters:  a.Distance,
		Calories:        a.Calories,
		ElevationGain:   a.ElevationGain,
		ElevationLoss:   a.ElevationLoss,
		AvgSpeed:        a.AverageSpeed,
		MaxSpeed:        a.MaxSpeed,
	}
	if a.ActivityName != "" {
		n := a.ActivityName
		row.ActivityName = &n
	}
	if a.ActivityType.TypeKey != "" {
		t := a.ActivityType.TypeKey
		row.ActivityType = &t
	}
	if a.StartTimeLocal != "" {
		st := a.StartTimeLocal
		row.StartTime = &st
	}
	return row
}

// ExerciseSetRows converts the vendor sets into store rows, picking the
// highest-probability exercise from each candidate list.
func ExerciseSetRows(userID string, activityID int64, sets []metrics.ExerciseSet) []storage.ExerciseSetRow {
	rows := make([]storage.ExerciseSetRow, 0, len(sets))
	for i, set := range sets {
		row := storage.ExerciseSetRow{
			UserID:          userID,
			ActivityID:      activityID,
			SetOrder:        int64(i + 1),
			SetType:         set.SetType,
			RepetitionCount: set.RepCount,
			WeightGrams:     set.Weight,
			DurationSeconds: set.Duration,
		}
		if set.StartTime != "" {
			st := set.StartTime
			row.StartTime = &st
		}
		if best := bestExercise(set.Exercises); best != nil {
			if best.Category != "" {
				c := best.Category
				row.ExerciseCategory = &c
			}
			if best.Name != "" {
				n := best.Name
				row.ExerciseName = &n
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func bestExercise(candidates []metrics.ExerciseCandidate) *metrics.ExerciseCandidate {
	var best *metrics.ExerciseCandidate
	var bestProb float64 = -1
	for i := range candidates {
		c := &candidates[i]
		p := 0.0
		if c.Probability != nil {
			p = *c.Probability
		}
		if p > bestProb {
			best = c
			bestProb = p
		}
	}
	return best
}

// StrengthSummary computes the set totals over ACTIVE sets. Weight totals
// convert from grams to kilograms at this boundary.
func StrengthSummary(sets []storage.ExerciseSetRow) (totalSets, totalReps int64, totalWeightKg float64) {
	for _, set := range sets {
		if set.SetType != "ACTIVE" {
			continue
		}
		totalSets++
		reps := int64(0)
		if set.RepetitionCount != nil {
			reps = *set.RepetitionCount
		}
		totalReps += reps
		if set.WeightGrams != nil {
			totalWeightKg += *set.WeightGrams * float64(reps) / 1000
		}
	}
	return totalSets, totalReps, totalWeightKg
}

// SplitRows converts lap DTOs into store rows. Heart rates become ints;
// other units pass through (meters, m/s, bpm, steps/min).
func SplitRows(userID string, activityID int64, splits []metrics.Split) []storage.SplitRow {
	rows := make([]storage.SplitRow, 0, len(splits))
	for i, sp := range splits {
		lapIndex := sp.LapIndex
		if lapIndex == 0 {
			lapIndex = int64(i + 1)
		}
		row := storage.SplitRow{
			UserID:                userID,
			ActivityID:            activityID,
			LapIndex:              lapIndex,
			DurationSeconds:       sp.Duration,
			MovingDurationSeconds: sp.MovingDuration,
			DistanceMeters:        sp.Distance,
			AvgSpeedMPS:           sp.AverageSpeed,
			MaxSpeedMPS:           sp.MaxSpeed,
			AvgMovingSpeedMPS:     sp.AverageMovingSpeed,
			AvgHeartRate:          floatToInt(sp.AverageHR),
			MaxHeartRate:          floatToInt(sp.MaxHR),
			ElevationGainM:        sp.ElevationGain,
			ElevationLossM:        sp.ElevationLoss,
			MaxElevationM:         sp.MaxElevation,
			MinElevationM:         sp.MinElevation,
			AvgCadence:            sp.AverageRunCadence,
			MaxCadence:            sp.MaxRunCadence,
			Calories:              sp.Calories,
			StartLat:              sp.StartLatitude,
			StartLon:              sp.StartLongitude,
			EndLat:                sp.EndLatitude,
			EndLon:                sp.EndLongitude,
			IntensityType:         sp.IntensityType,
		}
		if sp.StartTimeGMT != "" {
			st := sp.StartTimeGMT
			row.StartTime = &st
		}
		rows = append(rows, row)
	}
	return rows
}

func floatToInt(f *float64) *int64 {
	if f == nil {
		return nil
	}
	i := int64(*f)
	return &i
}

// BodyCompositionRow converts a scale measurement. Weight stays in grams,
// the canonical unit at the storage boundary.
func BodyCompositionRow(userID string, m *metrics.WeightMetric) *storage.BodyCompositionRow {
	row := &storage.BodyCompositionRow{
		UserID:           userID,
		SamplePk:         m.SamplePk,
		TimestampGMT:     m.TimestampGMT,
		WeightGrams:      m.Weight,
		BMI:              m.BMI,
		BodyFatPercent:   m.BodyFat,
		BodyWaterPercent: m.BodyWater,
		BoneMassGrams:    m.BoneMass,
		MuscleMassGrams:  m.MuscleMass,
		VisceralFat:      m.VisceralFat,
		MetabolicAge:     m.MetabolicAge,
		PhysiqueRating:   m.PhysiqueRating,
	}
	if m.CalendarDate != "" {
		d := m.CalendarDate
		row.MeasurementDate = &d
	}
	if m.SourceType != "" {
		st := m.SourceType
		row.SourceType = &st
	}
	return row
}
