package storage

import (
	"context"
	"fmt"
)

// BodyCompositionRow is one scale measurement keyed by the vendor sample id.
type BodyCompositionRow struct {
	UserID           string
	SamplePk         int64
	MeasurementDate  *string
	TimestampGMT     *int64
	WeightGrams      *float64
	BMI              *float64
	BodyFatPercent   *float64
	BodyWaterPercent *float64
	BoneMassGrams    *float64
	MuscleMassGrams  *float64
	VisceralFat      *float64
	MetabolicAge     *float64
	PhysiqueRating   *int64
	SourceType       *string
}

// InsertBodyCompositionIfAbsent stores the measurement unless its sample
// id is already present. Reports whether a row was written.
func (s *Store) InsertBodyCompositionIfAbsent(ctx context.Context, row *BodyCompositionRow) (bool, error) {
	res, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO body_composition
(user_id, sample_pk, measurement_date, timestamp_gmt, weight_grams, bmi,
 body_fat_percent, body_water_percent, bone_mass_grams, muscle_mass_grams,
 visceral_fat, metabolic_age, physique_rating, source_type)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.UserID, row.SamplePk, row.MeasurementDate, row.TimestampGMT, row.WeightGrams, row.BMI,
		row.BodyFatPercent, row.BodyWaterPercent, row.BoneMassGrams, row.MuscleMassGrams,
		row.VisceralFat, row.MetabolicAge, row.PhysiqueRating, row.SourceType)
	if err != nil {
		return false, fmt.Errorf("inserting body composition %d: %w", row.SamplePk, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// BodyCompositionExists reports whether the sample id is already stored.
func (s *Store) BodyCompositionExists(ctx context.Context, userID string, samplePk int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM body_composition WHERE user_id = ? AND sample_pk = ?`,
		userID, samplePk).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking body composition existence: %w", err)
	}
	return count > 0, nil
}

// GetBodyComposition returns measurements in the inclusive date range,
// ascending by measurement date.
func (s *Store) GetBodyComposition(ctx context.Context, userID, startDate, endDate string) ([]BodyCompositionRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, sample_pk, measurement_date, timestamp_gmt, weight_grams, bmi,
		        body_fat_percent, body_water_percent, bone_mass_grams, muscle_mass_grams,
		        visceral_fat, metabolic_age, physique_rating, source_type
		 FROM body_composition
		 WHERE user_id = ? AND measurement_date >= ? AND measurement_date <= ?
		 ORDER BY measurement_date ASC, sample_pk ASC`,
		userID, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("querying body composition: %w", err)
	}
	defer rows.Close()

	var out []BodyCompositionRow
	for rows.Next() {
		var r BodyCompositionRow
		if err := rows.Scan(&r.UserID, &r.SamplePk, &r.MeasurementDate, &r.TimestampGMT,
			&r.WeightGrams, &r.BMI, &r.BodyFatPercent, &r.BodyWaterPercent,
			&r.BoneMassGrams, &r.MuscleMassGrams, &r.VisceralFat, &r.MetabolicAge,
			&r.PhysiqueRating, &r.SourceType); err != nil {
			return nil, fmt.Errorf("scanning body composition row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
