package metrics

import "encoding/json"

// Point is one intraday sample. Metadata carries kind-specific extras such
// as the body battery charge status.
type Point struct {
	TimestampMS int64
	Value       float64
	Metadata    json.RawMessage
}

// DailySummary is the wide per-day rollup from the user summary service.
type DailySummary struct {
	TotalSteps             *int64   `json:"totalSteps"`
	DailyStepGoal          *int64   `json:"dailyStepGoal"`
	TotalDistanceMeters    *float64 `json:"totalDistanceMeters"`
	TotalKilocalories      *float64 `json:"totalKilocalories"`
	ActiveKilocalories     *float64 `json:"activeKilocalories"`
	BMRKilocalories        *float64 `json:"bmrKilocalories"`
	RestingHeartRate       *int64   `json:"restingHeartRate"`
	MinHeartRate           *int64   `json:"minHeartRate"`
	MaxHeartRate           *int64   `json:"maxHeartRate"`
	AverageHeartRate       *int64   `json:"averageHeartRate"`
	AverageStressLevel     *int64   `json:"averageStressLevel"`
	MaxStressLevel         *int64   `json:"maxStressLevel"`
	BodyBatteryHighest     *int64   `json:"bodyBatteryHighestValue"`
	BodyBatteryLowest      *int64   `json:"bodyBatteryLowestValue"`
	AverageSpO2            *float64 `json:"averageSpo2Value"`
	AverageRespiration     *float64 `json:"avgWakingRespirationValue"`
	SleepDurationSeconds   *float64 `json:"sleepingSeconds"`
	HighlyActiveSeconds    *float64 `json:"highlyActiveSeconds"`
	ModerateIntensityMin   *int64   `json:"moderateIntensityMinutes"`
	VigorousIntensityMin   *int64   `json:"vigorousIntensityMinutes"`
	FloorsAscended         *float64 `json:"floorsAscended"`
	FloorsDescended        *float64 `json:"floorsDescended"`
	IntensityMinutesGoal   *int64   `json:"intensityMinutesGoal"`
	LastSyncTimestampLocal string   `json:"lastSyncTimestampLocal"`
}

// sleepEnvelope is the raw shape of the sleep service response.
type sleepEnvelope struct {
	DailySleepDTO *sleepDTO `json:"dailySleepDTO"`
}

type sleepDTO struct {
	SleepTimeSeconds       *float64 `json:"sleepTimeSeconds"`
	DeepSleepSeconds       *float64 `json:"deepSleepSeconds"`
	LightSleepSeconds      *float64 `json:"lightSleepSeconds"`
	RemSleepSeconds        *float64 `json:"remSleepSeconds"`
	AwakeSleepSeconds      *float64 `json:"awakeSleepSeconds"`
	AverageSpO2            *float64 `json:"averageSpO2Value"`
	AverageRespiration     *float64 `json:"averageRespirationValue"`
	SleepStartTimestampGMT *int64   `json:"sleepStartTimestampGMT"`
	SleepEndTimestampGMT   *int64   `json:"sleepEndTimestampGMT"`
	SkinTempDeviationC     *float64 `json:"skinTempDeviationC"`
	SleepScores            *struct {
		Overall *struct {
			Value        *int64 `json:"value"`
			QualifierKey string `json:"qualifierKey"`
		} `json:"overall"`
	} `json:"sleepScores"`
	SleepNeed *struct {
		Actual *int64 `json:"actual"`
	} `json:"sleepNeed"`
}

// Sleep is the parsed nightly sleep record.
type Sleep struct {
	SleepTimeSeconds   *float64
	DeepSleepSeconds   *float64
	LightSleepSeconds  *float64
	RemSleepSeconds    *float64
	AwakeSleepSeconds  *float64
	AverageSpO2        *float64
	AverageRespiration *float64
	StartTimestampGMT  *int64
	EndTimestampGMT    *int64
	Score              *int64
	ScoreQualifier     string
	NeedMinutes        *int64
	SkinTempDeviationC *float64
}

// TrainingReadiness is the morning readiness assessment.
type TrainingReadiness struct {
	Score         *int64 `json:"score"`
	Level         string `json:"level"`
	FeedbackShort string `json:"feedbackShort"`
}

// HRV is the nightly heart-rate-variability summary.
type HRV struct {
	WeeklyAvg    *float64
	LastNightAvg *float64
	Status       string
}

type hrvEnvelope struct {
	HRVSummary *struct {
		WeeklyAvg    *float64 `json:"weeklyAvg"`
		LastNightAvg *float64 `json:"lastNightAvg"`
		Status       string   `json:"status"`
	} `json:"hrvSummary"`
}

// Respiration carries the daily breathing-rate rollup plus intraday samples.
type Respiration struct {
	AvgToday  *float64
	AvgWaking *float64
	AvgSleep  *float64
	Lowest    *float64
	Highest   *float64
	Values    []Point
}

// HeartRate carries the daily heart rate summary plus intraday samples.
type HeartRate struct {
	RestingHeartRate *int64
	MinHeartRate     *int64
	MaxHeartRate     *int64
	Values           []Point
}

// Stress carries the daily stress summary plus intraday samples.
type Stress struct {
	AvgStressLevel *int64
	MaxStressLevel *int64
	Values         []Point
}

// BodyBattery carries the derived high/low plus the intraday series. The
// wellness endpoint has no explicit high/low, so they come from the points.
type BodyBattery struct {
	Highest *int64
	Lowest  *int64
	Points  []Point
}

// Activity is one entry from the paginated activity list.
type Activity struct {
	ActivityID   int64  `json:"activityId"`
	ActivityName string `json:"activityName"`
	ActivityType struct {
		TypeKey string `json:"typeKey"`
	} `json:"activityType"`
	StartTimeLocal       string   `json:"startTimeLocal"`
	Duration             *float64 `json:"duration"`
	Distance             *float64 `json:"distance"`
	Calories             *float64 `json:"calories"`
	AverageHR            *float64 `json:"averageHR"`
	MaxHR                *float64 `json:"maxHR"`
	ActivityTrainingLoad *float64 `json:"activityTrainingLoad"`
	ElevationGain        *float64 `json:"elevationGain"`
	ElevationLoss        *float64 `json:"elevationLoss"`
	AverageSpeed         *float64 `json:"averageSpeed"`
	MaxSpeed             *float64 `json:"maxSpeed"`
}

// ExerciseSet is one set from a strength activity, with the vendor's ranked
// exercise candidates still attached.
type ExerciseSet struct {
	Exercises []ExerciseCandidate `json:"exercises"`
	Duration  *float64            `json:"duration"`
	RepCount  *int64              `json:"repetitionCount"`
	Weight    *float64            `json:"weight"`
	SetType   string              `json:"setType"`
	StartTime string              `json:"startTime"`
}

type ExerciseCandidate struct {
	Category    string   `json:"category"`
	Name        string   `json:"name"`
	Probability *float64 `json:"probability"`
}

// Split is one lap from a cardio activity.
type Split struct {
	LapIndex           int64    `json:"lapIndex"`
	StartTimeGMT       string   `json:"startTimeGMT"`
	Duration           *float64 `json:"duration"`
	MovingDuration     *float64 `json:"movingDuration"`
	Distance           *float64 `json:"distance"`
	AverageSpeed       *float64 `json:"averageSpeed"`
	MaxSpeed           *float64 `json:"maxSpeed"`
	AverageMovingSpeed *float64 `json:"averageMovingSpeed"`
	AverageHR          *float64 `json:"averageHR"`
	MaxHR              *float64 `json:"maxHR"`
	ElevationGain      *float64 `json:"elevationGain"`
	ElevationLoss      *float64 `json:"elevationLoss"`
	MaxElevation       *float64 `json:"maxElevation"`
	MinElevation       *float64 `json:"minElevation"`
	AverageRunCadence  *float64 `json:"averageRunCadence"`
	MaxRunCadence      *float64 `json:"maxRunCadence"`
	Calories           *float64 `json:"calories"`
	StartLatitude      *float64 `json:"startLatitude"`
	StartLongitude     *float64 `json:"startLongitude"`
	EndLatitude        *float64 `json:"endLatitude"`
	EndLongitude       *float64 `json:"endLongitude"`
	IntensityType      string   `json:"intensityType"`
}

// WeightMetric is one scale measurement from the weight range endpoint.
type WeightMetric struct {
	SamplePk       int64    `json:"samplePk"`
	CalendarDate   string   `json:"calendarDate"`
	TimestampGMT   *int64   `json:"timestampGMT"`
	Weight         *float64 `json:"weight"`
	BMI            *float64 `json:"bmi"`
	BodyFat        *float64 `json:"bodyFat"`
	BodyWater      *float64 `json:"bodyWater"`
	BoneMass       *float64 `json:"boneMass"`
	MuscleMass     *float64 `json:"muscleMass"`
	VisceralFat    *float64 `json:"visceralFat"`
	MetabolicAge   *float64 `json:"metabolicAge"`
	PhysiqueRating *int64   `json:"physiqueRating"`
	SourceType     string   `json:"sourceType"`
}

// Reading is the parsed result for one (kind, date) fetch. Exactly the
// field matching Kind is set; the rest stay nil.
type Reading struct {
	Kind Kind

	DailySummary      *DailySummary
	Sleep             *Sleep
	TrainingReadiness *TrainingReadiness
	HRV               *HRV
	Respiration       *Respiration
	HeartRate         *HeartRate
	Stress            *Stress
	BodyBattery       *BodyBattery
}

// Empty reports whether the fetch produced no usable data for the kind.
func (r *Reading) Empty() bool {
	if r == nil {
		return true
	}
	switch r.Kind {
	case KindDailySummary, KindSteps, KindCalories:
		return r.DailySummary == nil
	case KindSleep:
		return r.Sleep == nil
	case KindTrainingReadiness:
		return r.TrainingReadiness == nil
	case KindHRV:
		return r.HRV == nil
	case KindRespiration:
		return r.Respiration == nil
	case KindHeartRate:
		return r.HeartRate == nil
	case KindStress:
		return r.Stress == nil
	case KindBodyBattery:
		return r.BodyBattery == nil
	}
	return true
}
