package extract

import (
	"testing"

	"github.com/meltforce/garmsync/internal/metrics"
	"github.com/meltforce/garmsync/internal/storage"
)

func i64(v int64) *int64     { return &v }
func f64(v float64) *float64 { return &v }

// Daily summary fields land on their columns; absent fields stay nil.
func TestHealthFieldsDailySummary(t *testing.T) {
	r := &metrics.Reading{
		Kind: metrics.KindDailySummary,
		DailySummary: &metrics.DailySummary{
			TotalSteps:       i64(12500),
			RestingHeartRate: i64(55),
		},
	}
	f := HealthFields(r)
	if f.TotalSteps == nil || *f.TotalSteps != 12500 {
		t.Errorf("TotalSteps = %v", f.TotalSteps)
	}
	if f.RestingHeartRate == nil || *f.RestingHeartRate != 55 {
		t.Errorf("RestingHeartRate = %v", f.RestingHeartRate)
	}
	if f.SleepDurationHours != nil {
		t.Errorf("SleepDurationHours should stay nil, got %v", *f.SleepDurationHours)
	}
	if !f.HasValues() {
		t.Error("HasValues should be true")
	}
}

// Sleep seconds convert to hours and timestamps to ISO strings.
func TestHealthFieldsSleep(t *testing.T) {
	r := &metrics.Reading{
		Kind: metrics.KindSleep,
		Sleep: &metrics.Sleep{
			SleepTimeSeconds:  f64(27360),
			DeepSleepSeconds:  f64(5400),
			StartTimestampGMT: i64(1705266000000),
			Score:             i64(82),
			ScoreQualifier:    "GOOD",
		},
	}
	f := HealthFields(r)
	if f.SleepDurationHours == nil || *f.SleepDurationHours != 7.6 {
		t.Errorf("SleepDurationHours = %v, want 7.6", f.SleepDurationHours)
	}
	if f.DeepSleepHours == nil || *f.DeepSleepHours != 1.5 {
		t.Errorf("DeepSleepHours = %v, want 1.5", f.DeepSleepHours)
	}
	if f.SleepBedtime == nil || *f.SleepBedtime != "2024-01-14T21:00:00Z" {
		t.Errorf("SleepBedtime = %v", f.SleepBedtime)
	}
	if f.SleepScoreQualifier == nil || *f.SleepScoreQualifier != "GOOD" {
		t.Errorf("SleepScoreQualifier = %v", f.SleepScoreQualifier)
	}
}

// Steps and calories kinds write disjoint subsets of the summary row.
func TestHealthFieldsSubsetKinds(t *testing.T) {
	ds := &metrics.DailySummary{
		TotalSteps:        i64(9000),
		TotalKilocalories: f64(2100),
	}

	steps := HealthFields(&metrics.Reading{Kind: metrics.KindSteps, DailySummary: ds})
	if steps.TotalSteps == nil || steps.TotalCalories != nil {
		t.Errorf("steps subset = %+v", steps)
	}

	cals := HealthFields(&metrics.Reading{Kind: metrics.KindCalories, DailySummary: ds})
	if cals.TotalCalories == nil || cals.TotalSteps != nil {
		t.Errorf("calories subset = %+v", cals)
	}
}

// Intraday points convert to timeseries rows with metadata passthrough.
func TestTimeSeriesConversion(t *testing.T) {
	r := &metrics.Reading{
		Kind: metrics.KindBodyBattery,
		BodyBattery: &metrics.BodyBattery{
			Points: []metrics.Point{
				{TimestampMS: 1705305600000, Value: 80, Metadata: []byte(`{"status":"CHARGED"}`)},
				{TimestampMS: 1705309200000, Value: 45},
			},
		},
	}
	rows := TimeSeries(r)
	if len(rows) != 2 {
		t.Fatalf("len = %d, want 2", len(rows))
	}
	if !rows[0].Metadata.Valid || rows[0].Metadata.String != `{"status":"CHARGED"}` {
		t.Errorf("Metadata = %+v", rows[0].Metadata)
	}
	if rows[1].Metadata.Valid {
		t.Error("second row should have null metadata")
	}

	// Kinds without a series produce nothing.
	if got := TimeSeries(&metrics.Reading{Kind: metrics.KindSleep}); got != nil {
		t.Errorf("sleep series = %v, want nil", got)
	}
}

// The highest-probability candidate names the exercise for each set.
func TestExerciseSetRowsPickBestCandidate(t *testing.T) {
	sets := []metrics.ExerciseSet{
		{
			Exercises: []metrics.ExerciseCandidate{
				{Category: "SQUAT", Name: "BARBELL_BACK_SQUAT", Probability: f64(0.3)},
				{Category: "DEADLIFT", Name: "BARBELL_DEADLIFT", Probability: f64(0.9)},
			},
			SetType:  "ACTIVE",
			RepCount: i64(10),
			Weight:   f64(50000),
		},
	}
	rows := ExerciseSetRows("u1", 999, sets)
	if len(rows) != 1 {
		t.Fatalf("len = %d", len(rows))
	}
	if rows[0].ExerciseName == nil || *rows[0].ExerciseName != "BARBELL_DEADLIFT" {
		t.Errorf("ExerciseName = %v", rows[0].ExerciseName)
	}
	if rows[0].SetOrder != 1 {
		t.Errorf("SetOrder = %d", rows[0].SetOrder)
	}
}

// Strength totals count ACTIVE sets only; weight converts grams to kg.
func TestStrengthSummary(t *testing.T) {
	sets := []storage.ExerciseSetRow{
		{SetType: "ACTIVE", RepetitionCount: i64(10), WeightGrams: f64(50000)},
		{SetType: "ACTIVE", RepetitionCount: i64(8), WeightGrams: f64(55000)},
		{SetType: "ACTIVE", RepetitionCount: i64(6), WeightGrams: f64(60000)},
		{SetType: "REST"},
		{SetType: "REST"},
	}
	totalSets, totalReps, totalWeightKg := StrengthSummary(sets)
	if totalSets != 3 {
		t.Errorf("totalSets = %d, want 3", totalSets)
	}
	if totalReps != 24 {
		t.Errorf("totalReps = %d, want 24", totalReps)
	}
	if totalWeightKg != 1300.0 {
		t.Errorf("totalWeightKg = %v, want 1300.0", totalWeightKg)
	}
}

// Split heart rates become ints and a missing lap index is derived.
func TestSplitRows(t *testing.T) {
	splits := []metrics.Split{
		{Duration: f64(300), Distance: f64(1000), AverageHR: f64(152.7), IntensityType: "ACTIVE"},
	}
	rows := SplitRows("u1", 5, splits)
	if len(rows) != 1 {
		t.Fatalf("len = %d", len(rows))
	}
	if rows[0].LapIndex != 1 {
		t.Errorf("LapIndex = %d, want 1", rows[0].LapIndex)
	}
	if rows[0].AvgHeartRate == nil || *rows[0].AvgHeartRate != 152 {
		t.Errorf("AvgHeartRate = %v, want 152", rows[0].AvgHeartRate)
	}
}

// Activity classification covers both detail paths.
func TestActivityTypeClassification(t *testing.T) {
	if !IsStrengthType("strength_training") || !IsStrengthType("indoor_strength_training") {
		t.Error("strength types misclassified")
	}
	if !IsCardioType("running") || !IsCardioType("hiking") {
		t.Error("cardio types misclassified")
	}
	if IsStrengthType("running") || IsCardioType("strength_training") {
		t.Error("cross classification")
	}
	if IsCardioType("yoga") {
		t.Error("yoga has no lap details")
	}
}

// The activity date comes off the local start time.
func TestActivityRowConversion(t *testing.T) {
	a := &metrics.Activity{
		ActivityID:     999,
		ActivityName:   "Morning Run",
		StartTimeLocal: "2024-01-15 07:30:00",
		Distance:       f64(5000),
	}
	a.ActivityType.TypeKey = "running"

	row := ActivityRow("u1", a)
	if row.ActivityDate != "2024-01-15" {
		t.Errorf("ActivityDate = %q", row.ActivityDate)
	}
	if row.ActivityType == nil || *row.ActivityType != "running" {
		t.Errorf("ActivityType = %v", row.ActivityType)
	}
	if row.DistanceMeters == nil || *row.DistanceMeters != 5000 {
		t.Errorf("DistanceMeters = %v", row.DistanceMeters)
	}
}
