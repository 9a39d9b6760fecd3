package metrics

import (
	"fmt"
	"strings"
)

// Descriptor declares how one metric kind is fetched and parsed. Entries
// are registered once at init and never mutated.
type Descriptor struct {
	Kind           Kind
	Endpoint       string // template with {date} and optional {user_id} holes
	Parse          func(raw []byte) (*Reading, error)
	RequiresUserID bool
	RangeMode      bool
	Description    string
}

// Path fills the endpoint template for a single-date fetch.
func (d Descriptor) Path(date, userID string) string {
	p := strings.ReplaceAll(d.Endpoint, "{date}", date)
	return strings.ReplaceAll(p, "{user_id}", userID)
}

var registry = map[Kind]Descriptor{
	KindDailySummary: {
		Kind:        KindDailySummary,
		Endpoint:    "/usersummary-service/usersummary/daily/{date}",
		Parse:       parseDailySummary(KindDailySummary),
		Description: "daily activity and wellness rollup",
	},
	KindSleep: {
		Kind:           KindSleep,
		Endpoint:       "/sleep-service/sleep/dailySleepData/{user_id}?date={date}",
		Parse:          parseSleep,
		RequiresUserID: true,
		Description:    "nightly sleep stages and score",
	},
	KindHeartRate: {
		Kind:           KindHeartRate,
		Endpoint:       "/wellness-service/wellness/dailyHeartRate/{user_id}?date={date}",
		Parse:          parseHeartRate,
		RequiresUserID: true,
		Description:    "daily heart rate summary and intraday samples",
	},
	KindStress: {
		Kind:        KindStress,
		Endpoint:    "/wellness-service/wellness/dailyStress/{date}",
		Parse:       parseStress,
		Description: "daily stress summary and intraday samples",
	},
	KindBodyBattery: {
		Kind:        KindBodyBattery,
		Endpoint:    "/wellness-service/wellness/dailyStress/{date}",
		Parse:       parseBodyBattery,
		Description: "body battery series from the stress payload",
	},
	KindHRV: {
		Kind:        KindHRV,
		Endpoint:    "/hrv-service/hrv/{date}",
		Parse:       parseHRV,
		Description: "nightly heart rate variability",
	},
	KindRespiration: {
		Kind:        KindRespiration,
		Endpoint:    "/wellness-service/wellness/daily/respiration/{date}",
		Parse:       parseRespiration,
		Description: "daily respiration summary and intraday samples",
	},
	KindTrainingReadiness: {
		Kind:        KindTrainingReadiness,
		Endpoint:    "/metrics-service/metrics/trainingreadiness/{date}",
		Parse:       parseTrainingReadiness,
		Description: "morning training readiness assessment",
	},
	KindSteps: {
		Kind:        KindSteps,
		Endpoint:    "/usersummary-service/usersummary/daily/{date}",
		Parse:       parseDailySummary(KindSteps),
		Description: "step fields of the daily summary",
	},
	KindCalories: {
		Kind:        KindCalories,
		Endpoint:    "/usersummary-service/usersummary/daily/{date}",
		Parse:       parseDailySummary(KindCalories),
		Description: "calorie fields of the daily summary",
	},
	KindBodyComposition: {
		Kind:        KindBodyComposition,
		Endpoint:    "/weight-service/weight/range/{start_date}/{end_date}",
		RangeMode:   true,
		Description: "scale measurements over a date range",
	},
	// Activities use the paginated list accessor, not a per-date endpoint.
	KindActivities: {
		Kind:        KindActivities,
		Endpoint:    "/activitylist-service/activities/search/activities",
		Description: "paginated activity list, newest first",
	},
}

// Lookup returns the descriptor for a kind.
func Lookup(kind Kind) (Descriptor, error) {
	d, ok := registry[kind]
	if !ok {
		return Descriptor{}, fmt.Errorf("no descriptor registered for kind %q", kind)
	}
	return d, nil
}

// PerDateKinds filters the given kinds down to those fetched once per date.
func PerDateKinds(kinds []Kind) []Kind {
	var out []Kind
	for _, k := range kinds {
		if k == KindActivities || k == KindBodyComposition {
			continue
		}
		out = append(out, k)
	}
	return out
}
