package metrics

import (
	"encoding/json"
	"fmt"
)

func parseDailySummary(kind Kind) func([]byte) (*Reading, error) {
	return func(raw []byte) (*Reading, error) {
		var ds DailySummary
		if err := json.Unmarshal(raw, &ds); err != nil {
			return nil, fmt.Errorf("parsing daily summary: %w", err)
		}
		return &Reading{Kind: kind, DailySummary: &ds}, nil
	}
}

func parseSleep(raw []byte) (*Reading, error) {
	var env sleepEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("parsing sleep data: %w", err)
	}
	if env.DailySleepDTO == nil {
		return &Reading{Kind: KindSleep}, nil
	}
	dto := env.DailySleepDTO
	s := &Sleep{
		SleepTimeSeconds:   dto.SleepTimeSeconds,
		DeepSleepSeconds:   dto.DeepSleepSeconds,
		LightSleepSeconds:  dto.LightSleepSeconds,
		RemSleepSeconds:    dto.RemSleepSeconds,
		AwakeSleepSeconds:  dto.AwakeSleepSeconds,
		AverageSpO2:        dto.AverageSpO2,
		AverageRespiration: dto.AverageRespiration,
		StartTimestampGMT:  dto.SleepStartTimestampGMT,
		EndTimestampGMT:    dto.SleepEndTimestampGMT,
		SkinTempDeviationC: dto.SkinTempDeviationC,
	}
	if dto.SleepScores != nil && dto.SleepScores.Overall != nil {
		s.Score = dto.SleepScores.Overall.Value
		s.ScoreQualifier = dto.SleepScores.Overall.QualifierKey
	}
	if dto.SleepNeed != nil {
		s.NeedMinutes = dto.SleepNeed.Actual
	}
	// A night with no recorded sleep comes back as an empty DTO.
	if s.SleepTimeSeconds == nil && s.Score == nil {
		return &Reading{Kind: KindSleep}, nil
	}
	return &Reading{Kind: KindSleep, Sleep: s}, nil
}

// parseTrainingReadiness accepts both the bare object and the single-element
// array the service sometimes wraps it in.
func parseTrainingReadiness(raw []byte) (*Reading, error) {
	var list []TrainingReadiness
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return &Reading{Kind: KindTrainingReadiness}, nil
		}
		return &Reading{Kind: KindTrainingReadiness, TrainingReadiness: &list[0]}, nil
	}
	var tr TrainingReadiness
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, fmt.Errorf("parsing training readiness: %w", err)
	}
	if tr.Score == nil {
		return &Reading{Kind: KindTrainingReadiness}, nil
	}
	return &Reading{Kind: KindTrainingReadiness, TrainingReadiness: &tr}, nil
}

func parseHRV(raw []byte) (*Reading, error) {
	var env hrvEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("parsing hrv data: %w", err)
	}
	if env.HRVSummary == nil {
		return &Reading{Kind: KindHRV}, nil
	}
	return &Reading{Kind: KindHRV, HRV: &HRV{
		WeeklyAvg:    env.HRVSummary.WeeklyAvg,
		LastNightAvg: env.HRVSummary.LastNightAvg,
		Status:       env.HRVSummary.Status,
	}}, nil
}

func parseRespiration(raw []byte) (*Reading, error) {
	var env struct {
		AvgToday  *float64         `json:"avgTodayRespirationValue"`
		AvgWaking *float64         `json:"avgWakingRespirationValue"`
		AvgSleep  *float64         `json:"avgSleepRespirationValue"`
		Lowest    *float64         `json:"lowestRespirationValue"`
		Highest   *float64         `json:"highestRespirationValue"`
		Values    [][]*json.Number `json:"respirationValuesArray"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("parsing respiration data: %w", err)
	}
	r := &Respiration{
		AvgToday:  env.AvgToday,
		AvgWaking: env.AvgWaking,
		AvgSleep:  env.AvgSleep,
		Lowest:    env.Lowest,
		Highest:   env.Highest,
		Values:    parsePairs(env.Values),
	}
	if r.AvgToday == nil && r.AvgWaking == nil && r.AvgSleep == nil && len(r.Values) == 0 {
		return &Reading{Kind: KindRespiration}, nil
	}
	return &Reading{Kind: KindRespiration, Respiration: r}, nil
}

func parseHeartRate(raw []byte) (*Reading, error) {
	var env struct {
		RestingHeartRate *int64           `json:"restingHeartRate"`
		MinHeartRate     *int64           `json:"minHeartRate"`
		MaxHeartRate     *int64           `json:"maxHeartRate"`
		HeartRateValues  [][]*json.Number `json:"heartRateValues"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("parsing heart rate data: %w", err)
	}
	hr := &HeartRate{
		RestingHeartRate: env.RestingHeartRate,
		MinHeartRate:     env.MinHeartRate,
		MaxHeartRate:     env.MaxHeartRate,
		Values:           parsePairs(env.HeartRateValues),
	}
	if hr.RestingHeartRate == nil && len(hr.Values) == 0 {
		return &Reading{Kind: KindHeartRate}, nil
	}
	return &Reading{Kind: KindHeartRate, HeartRate: hr}, nil
}

func parseStress(raw []byte) (*Reading, error) {
	var env struct {
		AvgStressLevel *int64           `json:"avgStressLevel"`
		MaxStressLevel *int64           `json:"maxStressLevel"`
		StressValues   [][]*json.Number `json:"stressValuesArray"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("parsing stress data: %w", err)
	}
	s := &Stress{
		AvgStressLevel: env.AvgStressLevel,
		MaxStressLevel: env.MaxStressLevel,
		Values:         parsePairs(env.StressValues),
	}
	if s.AvgStressLevel == nil && len(s.Values) == 0 {
		return &Reading{Kind: KindStress}, nil
	}
	return &Reading{Kind: KindStress, Stress: s}, nil
}

// parseBodyBattery reads the same wellness payload as stress but extracts
// the body battery series. Entries look like [ts, "CHARGED"|"DRAINED",
// level, version]; high and low are derived from the levels.
func parseBodyBattery(raw []byte) (*Reading, error) {
	var env struct {
		Values [][]json.RawMessage `json:"bodyBatteryValuesArray"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("parsing body battery data: %w", err)
	}
	bb := &BodyBattery{}
	for _, entry := range env.Values {
		if len(entry) < 3 {
			continue
		}
		var ts int64
		if err := json.Unmarshal(entry[0], &ts); err != nil {
			continue
		}
		var level *float64
		if err := json.Unmarshal(entry[2], &level); err != nil || level == nil {
			continue
		}
		var status string
		_ = json.Unmarshal(entry[1], &status)

		meta, _ := json.Marshal(map[string]string{"status": status})
		bb.Points = append(bb.Points, Point{TimestampMS: ts, Value: *level, Metadata: meta})

		lvl := int64(*level)
		if bb.Highest == nil || lvl > *bb.Highest {
			v := lvl
			bb.Highest = &v
		}
		if bb.Lowest == nil || lvl < *bb.Lowest {
			v := lvl
			bb.Lowest = &v
		}
	}
	if len(bb.Points) == 0 {
		return &Reading{Kind: KindBodyBattery}, nil
	}
	return &Reading{Kind: KindBodyBattery, BodyBattery: bb}, nil
}

// parsePairs converts a raw [[ts, value], ...] array into points, dropping
// entries whose value is null or malformed.
func parsePairs(raw [][]*json.Number) []Point {
	var points []Point
	for _, pair := range raw {
		if len(pair) < 2 || pair[0] == nil || pair[1] == nil {
			continue
		}
		ts, err := pair[0].Int64()
		if err != nil {
			continue
		}
		val, err := pair[1].Float64()
		if err != nil {
			continue
		}
		points = append(points, Point{TimestampMS: ts, Value: val})
	}
	return points
}
