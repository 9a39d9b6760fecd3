package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/meltforce/garmsync/internal/api"
)

// Accessor turns (kind, date, user) requests into API calls and parsed
// readings. It is the only layer that knows endpoint shapes.
type Accessor struct {
	api *api.Client
	log *slog.Logger
}

func NewAccessor(apiClient *api.Client, log *slog.Logger) *Accessor {
	return &Accessor{api: apiClient, log: log}
}

// UserID resolves the account identifier used in user-scoped paths.
func (a *Accessor) UserID(ctx context.Context) (string, error) {
	return a.api.UserID(ctx)
}

// Metric fetches and parses one per-date metric. A 204 or empty payload
// yields a reading with no data rather than an error.
func (a *Accessor) Metric(ctx context.Context, kind Kind, date string) (*Reading, error) {
	desc, err := Lookup(kind)
	if err != nil {
		return nil, err
	}
	if desc.RangeMode {
		return nil, fmt.Errorf("kind %q is range-mode, use the range accessor", kind)
	}
	if kind == KindActivities {
		return nil, fmt.Errorf("activities use the paginated list accessor")
	}

	userID := ""
	if desc.RequiresUserID {
		userID, err = a.api.UserID(ctx)
		if err != nil {
			return nil, err
		}
	}

	raw, err := a.api.ConnectAPI(ctx, http.MethodGet, desc.Path(date, userID), nil, nil)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return &Reading{Kind: kind}, nil
	}
	return desc.Parse(raw)
}

// ActivitiesPage fetches one page of the activity list, newest first.
func (a *Accessor) ActivitiesPage(ctx context.Context, limit, start int) ([]Activity, error) {
	query := url.Values{
		"limit": {strconv.Itoa(limit)},
		"start": {strconv.Itoa(start)},
	}
	raw, err := a.api.ConnectAPI(ctx, http.MethodGet, "/activitylist-service/activities/search/activities", query, nil)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var activities []Activity
	if err := json.Unmarshal(raw, &activities); err != nil {
		return nil, fmt.Errorf("parsing activity list: %w", err)
	}
	return activities, nil
}

// ExerciseSets fetches the per-set breakdown of a strength activity.
func (a *Accessor) ExerciseSets(ctx context.Context, activityID int64) ([]ExerciseSet, error) {
	path := fmt.Sprintf("/activity-service/activity/%d/exerciseSets", activityID)
	raw, err := a.api.ConnectAPI(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var env struct {
		ExerciseSets []ExerciseSet `json:"exerciseSets"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("parsing exercise sets: %w", err)
	}
	return env.ExerciseSets, nil
}

// Splits fetches the lap breakdown of a cardio activity.
func (a *Accessor) Splits(ctx context.Context, activityID int64) ([]Split, error) {
	path := fmt.Sprintf("/activity-service/activity/%d/splits", activityID)
	raw, err := a.api.ConnectAPI(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var env struct {
		LapDTOs []Split `json:"lapDTOs"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("parsing activity splits: %w", err)
	}
	return env.LapDTOs, nil
}

// BodyCompositionRange fetches all scale measurements inside the range
// with a single call.
func (a *Accessor) BodyCompositionRange(ctx context.Context, startDate, endDate string) ([]WeightMetric, error) {
	path := fmt.Sprintf("/weight-service/weight/range/%s/%s", startDate, endDate)
	query := url.Values{"includeAll": {"true"}}
	raw, err := a.api.ConnectAPI(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var env struct {
		DailyWeightSummaries []struct {
			AllWeightMetrics []WeightMetric `json:"allWeightMetrics"`
		} `json:"dailyWeightSummaries"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("parsing weight range: %w", err)
	}
	var metrics []WeightMetric
	for _, day := range env.DailyWeightSummaries {
		metrics = append(metrics, day.AllWeightMetrics...)
	}
	return metrics, nil
}
