package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meltforce/garmsync/internal/extract"
	"github.com/meltforce/garmsync/internal/storage"
)

// syncActivityDetails fetches the kind-specific breakdown for one stored
// activity and marks it detail-synced. Each detail fetch is followed by a
// rate-limit wait.
func (e *Engine) syncActivityDetails(ctx context.Context, log *slog.Logger, userID string, row *storage.ActivityRow) error {
	if row.ActivityType == nil {
		return e.store.MarkDetailsSynced(ctx, userID, row.ActivityID)
	}

	switch {
	case extract.IsStrengthType(*row.ActivityType):
		if err := e.syncExerciseSets(ctx, userID, row.ActivityID); err != nil {
			return err
		}
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
	case extract.IsCardioType(*row.ActivityType):
		synced, err := e.syncSplits(ctx, userID, row.ActivityID)
		if err != nil {
			return err
		}
		if synced {
			if err := e.limiter.Wait(ctx); err != nil {
				return err
			}
		}
	default:
		log.Debug("no detail sync for activity type", "type", *row.ActivityType, "activity", row.ActivityID)
	}
	return e.store.MarkDetailsSynced(ctx, userID, row.ActivityID)
}

// syncExerciseSets stores the set breakdown and merges the strength
// summary onto the activity row.
func (e *Engine) syncExerciseSets(ctx context.Context, userID string, activityID int64) error {
	sets, err := e.fetch.ExerciseSets(ctx, activityID)
	if err != nil {
		return fmt.Errorf("fetching exercise sets: %w", err)
	}
	if len(sets) == 0 {
		return nil
	}
	rows := extract.ExerciseSetRows(userID, activityID, sets)
	if err := e.store.UpsertExerciseSets(ctx, rows); err != nil {
		return err
	}
	totalSets, totalReps, totalWeightKg := extract.StrengthSummary(rows)
	return e.store.UpdateStrengthSummary(ctx, userID, activityID, totalSets, totalReps, totalWeightKg)
}

// syncSplits stores the lap breakdown unless it is already present, then
// fills null activity aggregates from the ACTIVE laps. Reports whether a
// fetch actually happened.
func (e *Engine) syncSplits(ctx context.Context, userID string, activityID int64) (bool, error) {
	has, err := e.store.ActivityHasSplits(ctx, userID, activityID)
	if err != nil {
		return false, err
	}
	if has {
		return false, nil
	}

	splits, err := e.fetch.Splits(ctx, activityID)
	if err != nil {
		return true, fmt.Errorf("fetching splits: %w", err)
	}
	if len(splits) == 0 {
		return true, nil
	}
	rows := extract.SplitRows(userID, activityID, splits)
	if err := e.store.UpsertSplits(ctx, rows); err != nil {
		return true, err
	}

	agg, err := e.store.AggregateActiveSplits(ctx, userID, activityID)
	if err != nil {
		return true, err
	}
	return true, e.store.FillCardioAggregates(ctx, userID, activityID, agg.DistanceMeters, agg.Calories, agg.ElevationGainM)
}

// BackfillActivityDetails runs detail sync over stored activities that
// never had one, newest first.
func (e *Engine) BackfillActivityDetails(ctx context.Context, userID string, limit int) (int, error) {
	activities, err := e.store.ActivitiesNeedingDetails(ctx, userID, limit)
	if err != nil {
		return 0, err
	}
	done := 0
	for i := range activities {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		row := &activities[i]
		if err := e.syncActivityDetails(ctx, e.log, userID, row); err != nil {
			if fatalAuthError(err) {
				return done, err
			}
			e.log.Warn("detail backfill failed", "activity", row.ActivityID, "error", err)
			continue
		}
		done++
	}
	return done, nil
}

// BackfillActivitySplits fetches splits for cardio activities that lack
// them, newest first.
func (e *Engine) BackfillActivitySplits(ctx context.Context, userID string, limit int) (int, error) {
	activities, err := e.store.CardioActivitiesWithoutSplits(ctx, userID, extract.CardioTypes(), limit)
	if err != nil {
		return 0, err
	}
	done := 0
	for i := range activities {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		row := &activities[i]
		fetched, err := e.syncSplits(ctx, userID, row.ActivityID)
		if err != nil {
			if fatalAuthError(err) {
				return done, err
			}
			e.log.Warn("split backfill failed", "activity", row.ActivityID, "error", err)
			continue
		}
		if fetched {
			if err := e.limiter.Wait(ctx); err != nil {
				return done, err
			}
		}
		done++
	}
	return done, nil
}

// BackfillDistanceFromSplits recomputes null activity aggregates from
// already-stored splits, without any API calls.
func (e *Engine) BackfillDistanceFromSplits(ctx context.Context, userID string) (int, error) {
	activities, err := e.store.ActivitiesWithSplitsMissingDistance(ctx, userID)
	if err != nil {
		return 0, err
	}
	done := 0
	for i := range activities {
		row := &activities[i]
		agg, err := e.store.AggregateActiveSplits(ctx, userID, row.ActivityID)
		if err != nil {
			return done, err
		}
		if err := e.store.FillCardioAggregates(ctx, userID, row.ActivityID, agg.DistanceMeters, agg.Calories, agg.ElevationGainM); err != nil {
			return done, err
		}
		done++
	}
	return done, nil
}
