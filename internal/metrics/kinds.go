package metrics

import (
	"fmt"
	"strings"
)

// Kind names a category of health observation. The string form is what the
// sync ledger stores, so values are stable.
type Kind string

const (
	KindDailySummary      Kind = "daily_summary"
	KindSleep             Kind = "sleep"
	KindActivities        Kind = "activities"
	KindBodyBattery       Kind = "body_battery"
	KindStress            Kind = "stress"
	KindHeartRate         Kind = "heart_rate"
	KindTrainingReadiness Kind = "training_readiness"
	KindHRV               Kind = "hrv"
	KindRespiration       Kind = "respiration"
	KindSteps             Kind = "steps"
	KindCalories          Kind = "calories"
	KindBodyComposition   Kind = "body_composition"
)

// AllKinds returns every registered kind in a stable order.
func AllKinds() []Kind {
	return []Kind{
		KindDailySummary,
		KindSleep,
		KindActivities,
		KindBodyBattery,
		KindStress,
		KindHeartRate,
		KindTrainingReadiness,
		KindHRV,
		KindRespiration,
		KindSteps,
		KindCalories,
		KindBodyComposition,
	}
}

// ParseKind converts a user-supplied name into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllKinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown metric kind %q", s)
}

// TimeSeriesKinds are the kinds that contribute intraday points in
// addition to daily summary fields.
func TimeSeriesKinds() map[Kind]bool {
	return map[Kind]bool{
		KindHeartRate:   true,
		KindStress:      true,
		KindBodyBattery: true,
		KindRespiration: true,
	}
}
