package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/meltforce/garmsync/internal/auth"
	"github.com/meltforce/garmsync/internal/config"
	"github.com/meltforce/garmsync/internal/metrics"
	"github.com/meltforce/garmsync/internal/storage"
)

func i64(v int64) *int64     { return &v }
func f64(v float64) *float64 { return &v }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(filepath.Join(t.TempDir(), "health.db"), testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// fakeFetcher serves canned payloads and records fetch counts per key.
type fakeFetcher struct {
	readings   map[string]*metrics.Reading // "kind|date"
	metricErrs map[string]error
	activities []metrics.Activity // newest first
	sets       map[int64][]metrics.ExerciseSet
	splits     map[int64][]metrics.Split
	weights    []metrics.WeightMetric
	calls      map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		readings:   make(map[string]*metrics.Reading),
		metricErrs: make(map[string]error),
		sets:       make(map[int64][]metrics.ExerciseSet),
		splits:     make(map[int64][]metrics.Split),
		calls:      make(map[string]int),
	}
}

func (f *fakeFetcher) key(kind metrics.Kind, date string) string {
	return string(kind) + "|" + date
}

func (f *fakeFetcher) UserID(ctx context.Context) (string, error) { return "u1", nil }

func (f *fakeFetcher) Metric(ctx context.Context, kind metrics.Kind, date string) (*metrics.Reading, error) {
	k := f.key(kind, date)
	f.calls[k]++
	if err := f.metricErrs[k]; err != nil {
		return nil, err
	}
	if r := f.readings[k]; r != nil {
		return r, nil
	}
	return &metrics.Reading{Kind: kind}, nil
}

func (f *fakeFetcher) ActivitiesPage(ctx context.Context, limit, start int) ([]metrics.Activity, error) {
	f.calls["activities_page"]++
	if start >= len(f.activities) {
		return nil, nil
	}
	end := start + limit
	if end > len(f.activities) {
		end = len(f.activities)
	}
	return f.activities[start:end], nil
}

func (f *fakeFetcher) ExerciseSets(ctx context.Context, activityID int64) ([]metrics.ExerciseSet, error) {
	f.calls[fmt.Sprintf("sets_%d", activityID)]++
	return f.sets[activityID], nil
}

func (f *fakeFetcher) Splits(ctx context.Context, activityID int64) ([]metrics.Split, error) {
	f.calls[fmt.Sprintf("splits_%d", activityID)]++
	return f.splits[activityID], nil
}

func (f *fakeFetcher) BodyCompositionRange(ctx context.Context, startDate, endDate string) ([]metrics.WeightMetric, error) {
	f.calls["body_composition"]++
	return f.weights, nil
}

func testEngine(t *testing.T, fetch Fetcher, store *storage.Store) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Sync.RateLimitDelaySeconds = 0
	return NewEngine(cfg, fetch, store, NoopReporter{}, testLogger())
}

func day(s string) time.Time {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

// One day, one kind: data lands in the daily row and the ledger completes.
func TestSyncSingleDayHappyPath(t *testing.T) {
	f := newFakeFetcher()
	f.readings["daily_summary|2024-01-15"] = &metrics.Reading{
		Kind: metrics.KindDailySummary,
		DailySummary: &metrics.DailySummary{
			TotalSteps:       i64(12500),
			RestingHeartRate: i64(55),
		},
	}
	store := testStore(t)
	e := testEngine(t, f, store)

	stats, err := e.SyncRange(context.Background(), "u1", day("2024-01-15"), day("2024-01-15"), []metrics.Kind{metrics.KindDailySummary})
	if err != nil {
		t.Fatalf("SyncRange: %v", err)
	}
	want := Stats{Completed: 1, Skipped: 0, Failed: 0, TotalTasks: 1}
	if *stats != want {
		t.Errorf("stats = %+v, want %+v", *stats, want)
	}

	rows, err := store.GetHealthMetrics(context.Background(), "u1", "2024-01-15", "2024-01-15")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d", len(rows))
	}
	fields := rows[0].Fields
	if *fields.TotalSteps != 12500 || *fields.RestingHeartRate != 55 {
		t.Errorf("row = %+v", fields)
	}
	if fields.SleepDurationHours != nil {
		t.Error("SleepDurationHours should be null")
	}
}

// Heart rate syncs both the summary fields and the intraday points.
func TestSyncTimeSeries(t *testing.T) {
	f := newFakeFetcher()
	f.readings["heart_rate|2024-01-15"] = &metrics.Reading{
		Kind: metrics.KindHeartRate,
		HeartRate: &metrics.HeartRate{
			RestingHeartRate: i64(55),
			MinHeartRate:     i64(48),
			MaxHeartRate:     i64(142),
			Values: []metrics.Point{
				{TimestampMS: 1705305600000, Value: 60},
				{TimestampMS: 1705306200000, Value: 65},
			},
		},
	}
	store := testStore(t)
	e := testEngine(t, f, store)

	stats, err := e.SyncRange(context.Background(), "u1", day("2024-01-15"), day("2024-01-15"), []metrics.Kind{metrics.KindHeartRate})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Completed != 1 {
		t.Errorf("stats = %+v", *stats)
	}

	points, err := store.GetTimeseries(context.Background(), "u1", "heart_rate", 0, 1<<62)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 2 {
		t.Errorf("len(points) = %d, want 2", len(points))
	}

	rows, _ := store.GetHealthMetrics(context.Background(), "u1", "2024-01-15", "2024-01-15")
	if len(rows) != 1 || *rows[0].Fields.RestingHeartRate != 55 || *rows[0].Fields.MaxHeartRate != 142 {
		t.Errorf("summary merge missing: %+v", rows)
	}
}

// A failing kind is recorded in the ledger without blocking other kinds,
// and failed rows are re-attempted on the next run.
func TestSyncFailureIsolation(t *testing.T) {
	f := newFakeFetcher()
	f.readings["daily_summary|2024-01-15"] = &metrics.Reading{
		Kind:         metrics.KindDailySummary,
		DailySummary: &metrics.DailySummary{TotalSteps: i64(100)},
	}
	f.metricErrs["sleep|2024-01-15"] = fmt.Errorf("after 3 attempts: status 500")

	store := testStore(t)
	e := testEngine(t, f, store)
	ctx := context.Background()
	kinds := []metrics.Kind{metrics.KindDailySummary, metrics.KindSleep}

	stats, err := e.SyncRange(ctx, "u1", day("2024-01-15"), day("2024-01-15"), kinds)
	if err != nil {
		t.Fatal(err)
	}
	want := Stats{Completed: 1, Skipped: 0, Failed: 1, TotalTasks: 2}
	if *stats != want {
		t.Errorf("stats = %+v, want %+v", *stats, want)
	}

	row, _ := store.GetSyncStatus(ctx, "u1", "2024-01-15", "sleep")
	if row.State != storage.StatusFailed || row.ErrorMessage == nil || *row.ErrorMessage == "" {
		t.Errorf("sleep ledger = %+v", row)
	}
	row, _ = store.GetSyncStatus(ctx, "u1", "2024-01-15", "daily_summary")
	if row.State != storage.StatusCompleted {
		t.Errorf("daily_summary ledger = %+v", row)
	}

	// Second run: completed kinds skip, failed kinds retry.
	sleepCalls := f.calls["sleep|2024-01-15"]
	summaryCalls := f.calls["daily_summary|2024-01-15"]
	if _, err := e.SyncRange(ctx, "u1", day("2024-01-15"), day("2024-01-15"), kinds); err != nil {
		t.Fatal(err)
	}
	if f.calls["sleep|2024-01-15"] != sleepCalls+1 {
		t.Error("failed kind was not re-attempted")
	}
	if f.calls["daily_summary|2024-01-15"] != summaryCalls {
		t.Error("completed kind was re-fetched")
	}
}

// Back-to-back runs leave identical contents; the second completes nothing.
func TestSyncIdempotent(t *testing.T) {
	f := newFakeFetcher()
	f.readings["daily_summary|2024-01-15"] = &metrics.Reading{
		Kind:         metrics.KindDailySummary,
		DailySummary: &metrics.DailySummary{TotalSteps: i64(12500)},
	}
	store := testStore(t)
	e := testEngine(t, f, store)
	ctx := context.Background()
	kinds := []metrics.Kind{metrics.KindDailySummary}

	if _, err := e.SyncRange(ctx, "u1", day("2024-01-15"), day("2024-01-16"), kinds); err != nil {
		t.Fatal(err)
	}
	stats, err := e.SyncRange(ctx, "u1", day("2024-01-15"), day("2024-01-16"), kinds)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Completed != 0 {
		t.Errorf("second run completed = %d, want 0", stats.Completed)
	}
	if stats.Skipped < 1 {
		t.Errorf("second run skipped = %d, want >= 1", stats.Skipped)
	}
}

// Every (date, kind) pair ends the run in a terminal-or-skipped state.
func TestLedgerTotality(t *testing.T) {
	f := newFakeFetcher()
	store := testStore(t)
	e := testEngine(t, f, store)
	ctx := context.Background()
	kinds := []metrics.Kind{metrics.KindDailySummary, metrics.KindHRV}

	if _, err := e.SyncRange(ctx, "u1", day("2024-01-15"), day("2024-01-17"), kinds); err != nil {
		t.Fatal(err)
	}
	for _, date := range []string{"2024-01-15", "2024-01-16", "2024-01-17"} {
		for _, kind := range kinds {
			row, err := store.GetSyncStatus(ctx, "u1", date, string(kind))
			if err != nil {
				t.Fatal(err)
			}
			if row == nil {
				t.Errorf("no ledger row for (%s, %s)", date, kind)
				continue
			}
			switch row.State {
			case storage.StatusCompleted, storage.StatusSkipped, storage.StatusFailed:
			default:
				t.Errorf("(%s, %s) state = %q", date, kind, row.State)
			}
		}
	}
}

// A range over the configured maximum fails before any fetch.
func TestSyncRangeTooLarge(t *testing.T) {
	f := newFakeFetcher()
	store := testStore(t)
	cfg := config.Default()
	cfg.Sync.MaxSyncDays = 5
	cfg.Sync.RateLimitDelaySeconds = 0
	e := NewEngine(cfg, f, store, NoopReporter{}, testLogger())

	_, err := e.SyncRange(context.Background(), "u1", day("2024-01-01"), day("2024-01-10"), []metrics.Kind{metrics.KindDailySummary})
	if err == nil {
		t.Fatal("expected range error")
	}
	if len(f.calls) != 0 {
		t.Errorf("fetches happened before validation: %v", f.calls)
	}
}

// Auth failures abort the whole run instead of burning through the range.
func TestSyncAuthErrorFatal(t *testing.T) {
	f := newFakeFetcher()
	f.metricErrs["daily_summary|2024-01-15"] = &auth.AuthError{Msg: "not authenticated, run login first"}
	store := testStore(t)
	e := testEngine(t, f, store)

	_, err := e.SyncRange(context.Background(), "u1", day("2024-01-15"), day("2024-01-17"), []metrics.Kind{metrics.KindDailySummary})
	if err == nil {
		t.Fatal("expected fatal auth error")
	}
	if f.calls["daily_summary|2024-01-16"] != 0 {
		t.Error("engine kept fetching after auth failure")
	}
}

// Activities sync newest to oldest and leave out-of-range days buffered.
func TestSyncActivitiesNewestFirst(t *testing.T) {
	f := newFakeFetcher()
	f.activities = []metrics.Activity{
		act(6, "2024-01-12"),
		act(5, "2024-01-12"),
		act(4, "2024-01-10"),
		act(3, "2024-01-09"),
		act(2, "2024-01-09"),
		act(1, "2024-01-09"),
	}
	store := testStore(t)
	e := testEngine(t, f, store)
	ctx := context.Background()

	stats, err := e.SyncRange(ctx, "u1", day("2024-01-10"), day("2024-01-12"), []metrics.Kind{metrics.KindActivities})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Completed != 3 {
		t.Errorf("completed = %d, want 3 (one per date)", stats.Completed)
	}

	rows, err := store.GetActivities(ctx, "u1", "2024-01-01", "2024-01-31", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("stored %d activities, want 3", len(rows))
	}
	for _, r := range rows {
		if r.ActivityDate == "2024-01-09" {
			t.Error("out-of-range activity was stored")
		}
	}
}

// Strength activities store their sets and the computed summary.
func TestSyncStrengthDetail(t *testing.T) {
	f := newFakeFetcher()
	strength := act(999, "2024-01-15")
	strength.ActivityType.TypeKey = "strength_training"
	f.activities = []metrics.Activity{strength}
	f.sets[999] = []metrics.ExerciseSet{
		{SetType: "ACTIVE", RepCount: i64(10), Weight: f64(50000)},
		{SetType: "ACTIVE", RepCount: i64(8), Weight: f64(55000)},
		{SetType: "ACTIVE", RepCount: i64(6), Weight: f64(60000)},
		{SetType: "REST"},
		{SetType: "REST"},
	}
	store := testStore(t)
	e := testEngine(t, f, store)
	ctx := context.Background()

	if _, err := e.SyncRange(ctx, "u1", day("2024-01-15"), day("2024-01-15"), []metrics.Kind{metrics.KindActivities}); err != nil {
		t.Fatal(err)
	}

	sets, err := store.GetExerciseSets(ctx, "u1", 999)
	if err != nil {
		t.Fatal(err)
	}
	if len(sets) != 5 {
		t.Errorf("stored %d sets, want 5", len(sets))
	}

	rows, _ := store.GetActivities(ctx, "u1", "2024-01-15", "2024-01-15", "")
	r := rows[0]
	if r.TotalSets == nil || *r.TotalSets != 3 {
		t.Errorf("TotalSets = %v, want 3", r.TotalSets)
	}
	if r.TotalReps == nil || *r.TotalReps != 24 {
		t.Errorf("TotalReps = %v, want 24", r.TotalReps)
	}
	if r.TotalWeightKg == nil || *r.TotalWeightKg != 1300.0 {
		t.Errorf("TotalWeightKg = %v, want 1300.0", r.TotalWeightKg)
	}
	if !r.DetailsSynced {
		t.Error("DetailsSynced not set")
	}
}

// Cardio activities store splits and fill null aggregates from ACTIVE laps.
func TestSyncCardioDetail(t *testing.T) {
	f := newFakeFetcher()
	run := act(5, "2024-01-15")
	run.ActivityType.TypeKey = "running"
	f.activities = []metrics.Activity{run}
	f.splits[5] = []metrics.Split{
		{LapIndex: 1, Distance: f64(1000), Calories: f64(60), ElevationGain: f64(10), IntensityType: "ACTIVE"},
		{LapIndex: 2, Distance: f64(500), Calories: f64(5), IntensityType: "REST"},
		{LapIndex: 3, Distance: f64(1200), Calories: f64(70), ElevationGain: f64(15), IntensityType: "ACTIVE"},
	}
	store := testStore(t)
	e := testEngine(t, f, store)
	ctx := context.Background()

	if _, err := e.SyncRange(ctx, "u1", day("2024-01-15"), day("2024-01-15"), []metrics.Kind{metrics.KindActivities}); err != nil {
		t.Fatal(err)
	}

	splits, err := store.GetActivitySplits(ctx, "u1", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(splits) != 3 {
		t.Errorf("stored %d splits, want 3", len(splits))
	}

	rows, _ := store.GetActivities(ctx, "u1", "2024-01-15", "2024-01-15", "")
	if rows[0].DistanceMeters == nil || *rows[0].DistanceMeters != 2200 {
		t.Errorf("DistanceMeters = %v, want 2200 from ACTIVE laps", rows[0].DistanceMeters)
	}
}

// The body composition phase makes one call and stores by sample id.
func TestSyncBodyComposition(t *testing.T) {
	f := newFakeFetcher()
	for i := int64(1); i <= 4; i++ {
		f.weights = append(f.weights, metrics.WeightMetric{
			SamplePk:     1000 + i,
			CalendarDate: fmt.Sprintf("2024-01-0%d", i),
			Weight:       f64(63900),
		})
	}
	store := testStore(t)
	e := testEngine(t, f, store)
	ctx := context.Background()

	stats, err := e.SyncRange(ctx, "u1", day("2024-01-01"), day("2024-01-31"), []metrics.Kind{metrics.KindBodyComposition})
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalTasks != 1 || stats.Completed != 1 {
		t.Errorf("stats = %+v", *stats)
	}

	entries, err := store.GetBodyComposition(ctx, "u1", "2024-01-01", "2024-01-31")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 4 {
		t.Errorf("stored %d entries, want 4", len(entries))
	}
	if f.calls["body_composition"] != 1 {
		t.Errorf("range endpoint called %d times, want 1", f.calls["body_composition"])
	}

	// Second run skips the completed phase entirely.
	stats, err = e.SyncRange(ctx, "u1", day("2024-01-01"), day("2024-01-31"), []metrics.Kind{metrics.KindBodyComposition})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Completed != 0 || stats.Skipped != 1 {
		t.Errorf("second run stats = %+v", *stats)
	}
	entries, _ = store.GetBodyComposition(ctx, "u1", "2024-01-01", "2024-01-31")
	if len(entries) != 4 {
		t.Errorf("second run changed stored entries: %d", len(entries))
	}
}

// Distance backfill recomputes null aggregates from stored splits.
func TestBackfillDistanceFromSplits(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	name := "Evening Run"
	typ := "running"
	if err := store.UpsertActivity(ctx, &storage.ActivityRow{
		UserID: "u1", ActivityID: 8, ActivityDate: "2024-01-15",
		ActivityName: &name, ActivityType: &typ,
	}); err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertSplits(ctx, []storage.SplitRow{
		{UserID: "u1", ActivityID: 8, LapIndex: 1, DistanceMeters: f64(3000), IntensityType: "ACTIVE"},
		{UserID: "u1", ActivityID: 8, LapIndex: 2, DistanceMeters: f64(2000), IntensityType: "ACTIVE"},
	}); err != nil {
		t.Fatal(err)
	}

	e := testEngine(t, newFakeFetcher(), store)
	n, err := e.BackfillDistanceFromSplits(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("backfilled %d activities, want 1", n)
	}

	rows, _ := store.GetActivities(ctx, "u1", "2024-01-15", "2024-01-15", "")
	if rows[0].DistanceMeters == nil || *rows[0].DistanceMeters != 5000 {
		t.Errorf("DistanceMeters = %v, want 5000", rows[0].DistanceMeters)
	}
}

// Detail backfill visits only activities that still need it.
func TestBackfillActivityDetails(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	typ := "strength_training"
	if err := store.UpsertActivity(ctx, &storage.ActivityRow{
		UserID: "u1", ActivityID: 11, ActivityDate: "2024-01-15", ActivityType: &typ,
	}); err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertActivity(ctx, &storage.ActivityRow{
		UserID: "u1", ActivityID: 12, ActivityDate: "2024-01-16", ActivityType: &typ, DetailsSynced: true,
	}); err != nil {
		t.Fatal(err)
	}

	f := newFakeFetcher()
	f.sets[11] = []metrics.ExerciseSet{{SetType: "ACTIVE", RepCount: i64(5), Weight: f64(20000)}}
	e := testEngine(t, f, store)

	n, err := e.BackfillActivityDetails(ctx, "u1", 100)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("backfilled %d, want 1", n)
	}
	if f.calls["sets_12"] != 0 {
		t.Error("already-synced activity was fetched")
	}
}
