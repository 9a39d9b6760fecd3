package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/meltforce/garmsync/internal/api"
	"github.com/meltforce/garmsync/internal/auth"
	"github.com/meltforce/garmsync/internal/config"
	"github.com/meltforce/garmsync/internal/extract"
	"github.com/meltforce/garmsync/internal/metrics"
	"github.com/meltforce/garmsync/internal/storage"
)

const dateLayout = "2006-01-02"

// Fetcher is the API surface the engine consumes. *metrics.Accessor
// implements it; tests substitute fakes.
type Fetcher interface {
	UserID(ctx context.Context) (string, error)
	Metric(ctx context.Context, kind metrics.Kind, date string) (*metrics.Reading, error)
	ActivitiesPage(ctx context.Context, limit, start int) ([]metrics.Activity, error)
	ExerciseSets(ctx context.Context, activityID int64) ([]metrics.ExerciseSet, error)
	Splits(ctx context.Context, activityID int64) ([]metrics.Split, error)
	BodyCompositionRange(ctx context.Context, startDate, endDate string) ([]metrics.WeightMetric, error)
}

// Stats summarizes one sync run.
type Stats struct {
	Completed  int
	Skipped    int
	Failed     int
	TotalTasks int
}

// Engine drives the fetch-extract-store loop over a date range, one unit
// of work at a time.
type Engine struct {
	cfg      *config.Config
	fetch    Fetcher
	store    *storage.Store
	reporter Reporter
	log      *slog.Logger
	limiter  *rate.Limiter
}

func NewEngine(cfg *config.Config, fetch Fetcher, store *storage.Store, reporter Reporter, log *slog.Logger) *Engine {
	if reporter == nil {
		reporter = NoopReporter{}
	}
	return &Engine{
		cfg:      cfg,
		fetch:    fetch,
		store:    store,
		reporter: reporter,
		log:      log,
		limiter:  rate.NewLimiter(rate.Every(cfg.RateLimitDelay()), 1),
	}
}

// SyncRange syncs all requested kinds over the inclusive date range.
// Per-task failures are recorded and counted; auth failures abort the run.
func (e *Engine) SyncRange(ctx context.Context, userID string, start, end time.Time, kinds []metrics.Kind) (*Stats, error) {
	if len(kinds) == 0 {
		kinds = metrics.AllKinds()
	}
	dates, err := e.expandRange(start, end)
	if err != nil {
		return nil, err
	}
	if err := e.store.ValidateSchema(ctx); err != nil {
		return nil, err
	}

	perDate := metrics.PerDateKinds(kinds)
	hasActivities := containsKind(kinds, metrics.KindActivities)
	hasBodyComp := containsKind(kinds, metrics.KindBodyComposition)

	stats := &Stats{TotalTasks: len(dates) * len(perDate)}
	if hasActivities {
		stats.TotalTasks += len(dates)
	}
	if hasBodyComp {
		stats.TotalTasks++
	}

	syncID := uuid.NewString()[:8]
	log := e.log.With("sync_id", syncID, "user", userID)
	log.Info("sync range starting",
		"start", dates[0], "end", dates[len(dates)-1],
		"kinds", len(kinds), "total_tasks", stats.TotalTasks)

	e.reporter.StartSync(stats.TotalTasks)
	defer e.reporter.EndSync()

	if err := e.ensureLedger(ctx, userID, dates, perDate, hasActivities, hasBodyComp); err != nil {
		return nil, err
	}

	// Per-date metrics run oldest to newest.
	for _, date := range dates {
		for _, kind := range perDate {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			if err := e.runMetricTask(ctx, log, stats, userID, date, kind); err != nil {
				return stats, err
			}
		}
	}

	// Activities run newest to oldest against a fresh iterator cursor.
	if hasActivities {
		it := NewActivityIterator(e.fetch, e.cfg.Sync.ActivitiesBatchSize)
		for i := len(dates) - 1; i >= 0; i-- {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			if err := e.runActivitiesTask(ctx, log, stats, it, userID, dates[i]); err != nil {
				return stats, err
			}
		}
	}

	if hasBodyComp {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := e.runBodyCompositionTask(ctx, log, stats, userID, dates[0], dates[len(dates)-1]); err != nil {
			return stats, err
		}
	}

	log.Info("sync range finished",
		"completed", stats.Completed, "skipped", stats.Skipped, "failed", stats.Failed)
	return stats, nil
}

// expandRange validates the span and returns the inclusive date list in
// ascending order.
func (e *Engine) expandRange(start, end time.Time) ([]string, error) {
	start = start.Truncate(24 * time.Hour)
	end = end.Truncate(24 * time.Hour)
	if end.Before(start) {
		return nil, fmt.Errorf("end date %s before start date %s", end.Format(dateLayout), start.Format(dateLayout))
	}
	days := int(end.Sub(start).Hours()/24) + 1
	if days > e.cfg.Sync.MaxSyncDays {
		return nil, fmt.Errorf("date range spans %d days, maximum is %d", days, e.cfg.Sync.MaxSyncDays)
	}
	dates := make([]string, 0, days)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(dateLayout))
	}
	return dates, nil
}

func (e *Engine) ensureLedger(ctx context.Context, userID string, dates []string, perDate []metrics.Kind, hasActivities, hasBodyComp bool) error {
	for _, date := range dates {
		for _, kind := range perDate {
			if err := e.store.CreateSyncStatus(ctx, userID, date, string(kind)); err != nil {
				return err
			}
		}
		if hasActivities {
			if err := e.store.CreateSyncStatus(ctx, userID, date, string(metrics.KindActivities)); err != nil {
				return err
			}
		}
	}
	if hasBodyComp {
		if err := e.store.CreateSyncStatus(ctx, userID, dates[0], string(metrics.KindBodyComposition)); err != nil {
			return err
		}
	}
	return nil
}

// runMetricTask syncs one (date, kind) unit. Returns an error only for
// failures that must abort the whole run.
func (e *Engine) runMetricTask(ctx context.Context, log *slog.Logger, stats *Stats, userID, date string, kind metrics.Kind) error {
	name := string(kind)

	status, err := e.store.GetSyncStatus(ctx, userID, date, name)
	if err != nil {
		return err
	}
	if status != nil && status.State == storage.StatusCompleted {
		stats.Skipped++
		e.reporter.TaskSkipped(name, date)
		return nil
	}

	reading, err := e.fetch.Metric(ctx, kind, date)
	if err != nil {
		if fatalAuthError(err) {
			e.reporter.Error(fmt.Sprintf("auth failure syncing %s %s: %v", name, date, err))
			return err
		}
		log.Warn("metric fetch failed", "kind", name, "date", date, "error", err)
		if uerr := e.store.UpdateSyncStatus(ctx, userID, date, name, storage.StatusFailed, err.Error()); uerr != nil {
			return uerr
		}
		stats.Failed++
		e.reporter.TaskFailed(name, date)
		return nil
	}

	stored := false
	fields := extract.HealthFields(reading)
	if fields.HasValues() {
		if err := e.store.UpsertHealthMetric(ctx, userID, date, fields); err != nil {
			return err
		}
		stored = true
	}
	if metrics.TimeSeriesKinds()[kind] {
		points := extract.TimeSeries(reading)
		if len(points) > 0 {
			if _, err := e.store.InsertTimeseriesBatch(ctx, userID, name, points); err != nil {
				return err
			}
			stored = true
		}
	}

	if !stored {
		if err := e.store.UpdateSyncStatus(ctx, userID, date, name, storage.StatusSkipped, ""); err != nil {
			return err
		}
		stats.Skipped++
		e.reporter.TaskSkipped(name, date)
		return nil
	}
	if err := e.store.UpdateSyncStatus(ctx, userID, date, name, storage.StatusCompleted, ""); err != nil {
		return err
	}
	stats.Completed++
	e.reporter.TaskComplete(name, date)
	return nil
}

// runActivitiesTask syncs all activities for one date, including detail
// fetches for newly stored strength and cardio activities.
func (e *Engine) runActivitiesTask(ctx context.Context, log *slog.Logger, stats *Stats, it *ActivityIterator, userID, date string) error {
	name := string(metrics.KindActivities)

	status, err := e.store.GetSyncStatus(ctx, userID, date, name)
	if err != nil {
		return err
	}
	if status != nil && status.State == storage.StatusCompleted {
		stats.Skipped++
		e.reporter.TaskSkipped(name, date)
		return nil
	}

	activities, err := it.ActivitiesForDate(ctx, date)
	if err != nil {
		if fatalAuthError(err) {
			e.reporter.Error(fmt.Sprintf("auth failure syncing activities %s: %v", date, err))
			return err
		}
		log.Warn("activities fetch failed", "date", date, "error", err)
		if uerr := e.store.UpdateSyncStatus(ctx, userID, date, name, storage.StatusFailed, err.Error()); uerr != nil {
			return uerr
		}
		stats.Failed++
		e.reporter.TaskFailed(name, date)
		return nil
	}

	stored := 0
	for i := range activities {
		activity := &activities[i]
		exists, err := e.store.ActivityExists(ctx, userID, activity.ActivityID)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		row := extract.ActivityRow(userID, activity)
		if err := e.store.UpsertActivity(ctx, row); err != nil {
			return err
		}
		stored++

		// Detail errors degrade to warnings; the activity row is kept.
		if err := e.syncActivityDetails(ctx, log, userID, row); err != nil {
			if fatalAuthError(err) {
				return err
			}
			e.reporter.Warning(fmt.Sprintf("detail sync failed for activity %d: %v", activity.ActivityID, err))
		}
	}

	if stored > 0 {
		log.Info("activities synced", "date", date, "stored", stored)
	}
	// Completion is per date, not per activity; an empty day still ran.
	if err := e.store.UpdateSyncStatus(ctx, userID, date, name, storage.StatusCompleted, ""); err != nil {
		return err
	}
	stats.Completed++
	e.reporter.TaskComplete(name, date)
	return nil
}

// runBodyCompositionTask fetches the whole range with a single call and
// stores entries keyed by sample id.
func (e *Engine) runBodyCompositionTask(ctx context.Context, log *slog.Logger, stats *Stats, userID, startDate, endDate string) error {
	name := string(metrics.KindBodyComposition)

	status, err := e.store.GetSyncStatus(ctx, userID, startDate, name)
	if err != nil {
		return err
	}
	if status != nil && status.State == storage.StatusCompleted {
		stats.Skipped++
		e.reporter.TaskSkipped(name, startDate)
		return nil
	}

	entries, err := e.fetch.BodyCompositionRange(ctx, startDate, endDate)
	if err != nil {
		if fatalAuthError(err) {
			e.reporter.Error(fmt.Sprintf("auth failure syncing body composition: %v", err))
			return err
		}
		log.Warn("body composition fetch failed", "start", startDate, "end", endDate, "error", err)
		if uerr := e.store.UpdateSyncStatus(ctx, userID, startDate, name, storage.StatusFailed, err.Error()); uerr != nil {
			return uerr
		}
		stats.Failed++
		e.reporter.TaskFailed(name, startDate)
		return nil
	}

	storedCount, skippedCount := 0, 0
	for i := range entries {
		row := extract.BodyCompositionRow(userID, &entries[i])
		wrote, err := e.store.InsertBodyCompositionIfAbsent(ctx, row)
		if err != nil {
			return err
		}
		if wrote {
			storedCount++
		} else {
			skippedCount++
		}
	}
	log.Info("body composition synced", "stored", storedCount, "skipped", skippedCount)

	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := e.store.UpdateSyncStatus(ctx, userID, startDate, name, storage.StatusCompleted, ""); err != nil {
		return err
	}
	stats.Completed++
	e.reporter.TaskComplete(name, startDate)
	return nil
}

func containsKind(kinds []metrics.Kind, want metrics.Kind) bool {
	for _, k := range kinds {
		if k == want {
			return true
		}
	}
	return false
}

// fatalAuthError reports whether the error means subsequent API calls
// cannot succeed either.
func fatalAuthError(err error) bool {
	var authErr *auth.AuthError
	if errors.As(err, &authErr) {
		return true
	}
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 401 || apiErr.StatusCode == 403
	}
	return false
}
