package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	s, err := Open(filepath.Join(t.TempDir(), "health.db"), log)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func i64(v int64) *int64     { return &v }
func f64(v float64) *float64 { return &v }
func str(v string) *string   { return &v }

// Opening a fresh database applies all migrations and passes validation.
func TestOpenAndValidateSchema(t *testing.T) {
	s := testStore(t)
	if err := s.ValidateSchema(context.Background()); err != nil {
		t.Fatalf("ValidateSchema: %v", err)
	}
}

// A second merge with nil fields must not clobber stored non-null values.
func TestHealthMetricNonClobberMerge(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	first := &HealthMetricFields{
		TotalSteps:       i64(12500),
		RestingHeartRate: i64(55),
	}
	if err := s.UpsertHealthMetric(ctx, "u1", "2024-01-15", first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second := &HealthMetricFields{
		SleepDurationHours: f64(7.6),
		// TotalSteps deliberately nil
	}
	if err := s.UpsertHealthMetric(ctx, "u1", "2024-01-15", second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	rows, err := s.GetHealthMetrics(ctx, "u1", "2024-01-15", "2024-01-15")
	if err != nil {
		t.Fatalf("GetHealthMetrics: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	f := rows[0].Fields
	if f.TotalSteps == nil || *f.TotalSteps != 12500 {
		t.Errorf("TotalSteps = %v, want 12500 preserved", f.TotalSteps)
	}
	if f.RestingHeartRate == nil || *f.RestingHeartRate != 55 {
		t.Errorf("RestingHeartRate = %v, want 55 preserved", f.RestingHeartRate)
	}
	if f.SleepDurationHours == nil || *f.SleepDurationHours != 7.6 {
		t.Errorf("SleepDurationHours = %v, want 7.6", f.SleepDurationHours)
	}
}

// New non-null values overwrite old ones on merge.
func TestHealthMetricOverwrite(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.UpsertHealthMetric(ctx, "u1", "2024-01-15", &HealthMetricFields{TotalSteps: i64(100)}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertHealthMetric(ctx, "u1", "2024-01-15", &HealthMetricFields{TotalSteps: i64(12500)}); err != nil {
		t.Fatal(err)
	}
	rows, err := s.GetHealthMetrics(ctx, "u1", "2024-01-15", "2024-01-15")
	if err != nil {
		t.Fatal(err)
	}
	if *rows[0].Fields.TotalSteps != 12500 {
		t.Errorf("TotalSteps = %d, want 12500", *rows[0].Fields.TotalSteps)
	}
}

// Sleep stage percentages derive from stored hours on read.
func TestSleepStagePercents(t *testing.T) {
	row := HealthMetricRow{Fields: HealthMetricFields{
		SleepDurationHours: f64(8),
		DeepSleepHours:     f64(2),
	}}
	p := row.DeepSleepPercent()
	if p == nil || *p != 25 {
		t.Errorf("DeepSleepPercent = %v, want 25", p)
	}
	if row.RemSleepPercent() != nil {
		t.Error("missing stage should derive nil percent")
	}
}

// Timeseries inserts are idempotent on (user, kind, timestamp).
func TestTimeseriesBatchIdempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	points := []TimeSeriesRow{
		{TimestampMS: 1705305600000, Value: 60},
		{TimestampMS: 1705305900000, Value: 65},
	}
	if _, err := s.InsertTimeseriesBatch(ctx, "u1", "heart_rate", points); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if _, err := s.InsertTimeseriesBatch(ctx, "u1", "heart_rate", points); err != nil {
		t.Fatalf("second batch: %v", err)
	}

	got, err := s.GetTimeseries(ctx, "u1", "heart_rate", 0, 1<<62)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want 2 (no duplicates)", len(got))
	}
}

// Activity merges keep stored detail fields when the incoming row is bare.
func TestActivityUpsertMerge(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	full := &ActivityRow{
		UserID:       "u1",
		ActivityID:   999,
		ActivityDate: "2024-01-15",
		ActivityName: str("Morning Run"),
		ActivityType: str("running"),
		TotalSets:    i64(3),
	}
	if err := s.UpsertActivity(ctx, full); err != nil {
		t.Fatal(err)
	}

	bare := &ActivityRow{
		UserID:       "u1",
		ActivityID:   999,
		ActivityDate: "2024-01-15",
	}
	if err := s.UpsertActivity(ctx, bare); err != nil {
		t.Fatal(err)
	}

	rows, err := s.GetActivities(ctx, "u1", "2024-01-01", "2024-01-31", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("len = %d, want 1", len(rows))
	}
	if rows[0].ActivityName == nil || *rows[0].ActivityName != "Morning Run" {
		t.Errorf("ActivityName = %v, want preserved", rows[0].ActivityName)
	}
	if rows[0].TotalSets == nil || *rows[0].TotalSets != 3 {
		t.Errorf("TotalSets = %v, want preserved", rows[0].TotalSets)
	}
}

// FillCardioAggregates only writes over null columns.
func TestFillCardioAggregates(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.UpsertActivity(ctx, &ActivityRow{
		UserID: "u1", ActivityID: 7, ActivityDate: "2024-01-15",
		Calories: f64(450),
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.FillCardioAggregates(ctx, "u1", 7, f64(5000), f64(999), f64(42)); err != nil {
		t.Fatal(err)
	}

	rows, err := s.GetActivities(ctx, "u1", "2024-01-15", "2024-01-15", "")
	if err != nil {
		t.Fatal(err)
	}
	r := rows[0]
	if r.DistanceMeters == nil || *r.DistanceMeters != 5000 {
		t.Errorf("DistanceMeters = %v, want 5000 filled", r.DistanceMeters)
	}
	if r.Calories == nil || *r.Calories != 450 {
		t.Errorf("Calories = %v, want 450 preserved", r.Calories)
	}
}

// Ledger rows are created once, transition states, and reset to pending.
func TestSyncStatusLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.CreateSyncStatus(ctx, "u1", "2024-01-15", "sleep"); err != nil {
		t.Fatal(err)
	}
	// Second create is a no-op.
	if err := s.CreateSyncStatus(ctx, "u1", "2024-01-15", "sleep"); err != nil {
		t.Fatal(err)
	}

	row, err := s.GetSyncStatus(ctx, "u1", "2024-01-15", "sleep")
	if err != nil {
		t.Fatal(err)
	}
	if row == nil || row.State != StatusPending {
		t.Fatalf("state = %+v, want pending", row)
	}

	if err := s.UpdateSyncStatus(ctx, "u1", "2024-01-15", "sleep", StatusFailed, "http 500"); err != nil {
		t.Fatal(err)
	}
	row, _ = s.GetSyncStatus(ctx, "u1", "2024-01-15", "sleep")
	if row.State != StatusFailed || row.ErrorMessage == nil || *row.ErrorMessage != "http 500" {
		t.Errorf("after failure: %+v", row)
	}

	n, err := s.ResetFailed(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("ResetFailed = %d, want 1", n)
	}
	row, _ = s.GetSyncStatus(ctx, "u1", "2024-01-15", "sleep")
	if row.State != StatusPending || row.ErrorMessage != nil || row.SyncedAt != nil {
		t.Errorf("after reset: %+v", row)
	}
}

// Pending kinds for a date come back sorted.
func TestGetPendingMetrics(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, k := range []string{"sleep", "daily_summary", "hrv"} {
		if err := s.CreateSyncStatus(ctx, "u1", "2024-01-15", k); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.UpdateSyncStatus(ctx, "u1", "2024-01-15", "hrv", StatusCompleted, ""); err != nil {
		t.Fatal(err)
	}

	kinds, err := s.GetPendingMetrics(ctx, "u1", "2024-01-15")
	if err != nil {
		t.Fatal(err)
	}
	if len(kinds) != 2 || kinds[0] != "daily_summary" || kinds[1] != "sleep" {
		t.Errorf("pending = %v", kinds)
	}
}

// Only rows that actually synced appear in the recent list, newest first.
func TestRecentSyncs(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, date := range []string{"2024-01-13", "2024-01-14", "2024-01-15"} {
		if err := s.CreateSyncStatus(ctx, "u1", date, "sleep"); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.UpdateSyncStatus(ctx, "u1", "2024-01-13", "sleep", StatusCompleted, ""); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateSyncStatus(ctx, "u1", "2024-01-14", "sleep", StatusFailed, "http 500"); err != nil {
		t.Fatal(err)
	}

	recent, err := s.RecentSyncs(ctx, "u1", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Fatalf("len(recent) = %d, want 2 (pending row excluded)", len(recent))
	}
	for _, r := range recent {
		if r.SyncedAt == nil {
			t.Errorf("row without synced_at: %+v", r)
		}
	}

	recent, err = s.RecentSyncs(ctx, "u1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 {
		t.Errorf("limit ignored: %d rows", len(recent))
	}
}

// Body composition inserts are keyed by sample id and never duplicate.
func TestBodyCompositionInsertIfAbsent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	row := &BodyCompositionRow{
		UserID:      "u1",
		SamplePk:    1753533352952,
		WeightGrams: f64(63900),
	}
	stored, err := s.InsertBodyCompositionIfAbsent(ctx, row)
	if err != nil {
		t.Fatal(err)
	}
	if !stored {
		t.Error("first insert should store")
	}
	stored, err = s.InsertBodyCompositionIfAbsent(ctx, row)
	if err != nil {
		t.Fatal(err)
	}
	if stored {
		t.Error("second insert should be skipped")
	}
}

// Active-lap aggregates exclude REST laps.
func TestAggregateActiveSplits(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	splits := []SplitRow{
		{UserID: "u1", ActivityID: 5, LapIndex: 1, DistanceMeters: f64(1000), Calories: f64(60), ElevationGainM: f64(10), IntensityType: "ACTIVE"},
		{UserID: "u1", ActivityID: 5, LapIndex: 2, DistanceMeters: f64(500), Calories: f64(5), ElevationGainM: f64(0), IntensityType: "REST"},
		{UserID: "u1", ActivityID: 5, LapIndex: 3, DistanceMeters: f64(1200), Calories: f64(70), ElevationGainM: f64(15), IntensityType: "ACTIVE"},
	}
	if err := s.UpsertSplits(ctx, splits); err != nil {
		t.Fatal(err)
	}

	agg, err := s.AggregateActiveSplits(ctx, "u1", 5)
	if err != nil {
		t.Fatal(err)
	}
	if agg.DistanceMeters == nil || *agg.DistanceMeters != 2200 {
		t.Errorf("DistanceMeters = %v, want 2200", agg.DistanceMeters)
	}
	if agg.Calories == nil || *agg.Calories != 130 {
		t.Errorf("Calories = %v, want 130", agg.Calories)
	}

	has, err := s.ActivityHasSplits(ctx, "u1", 5)
	if err != nil || !has {
		t.Errorf("ActivityHasSplits = %v, %v", has, err)
	}
}

// Pace derives from stored duration and distance on read.
func TestSplitPace(t *testing.T) {
	r := SplitRow{DurationSeconds: f64(300), DistanceMeters: f64(1000)}
	p := r.PaceMinPerKm()
	if p == nil || *p != 5 {
		t.Errorf("PaceMinPerKm = %v, want 5", p)
	}
	zero := SplitRow{DurationSeconds: f64(300), DistanceMeters: f64(0)}
	if zero.PaceMinPerKm() != nil {
		t.Error("zero distance should derive nil pace")
	}
}
