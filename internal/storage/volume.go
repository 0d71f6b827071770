package storage

import (
	"context"
	"fmt"
	"time"
)

// StrengthVolume aggregates strength work for one period.
type StrengthVolume struct {
	WorkingSets int     `json:"working_sets"`
	TotalReps   int     `json:"total_reps"`
	TonnageKg   float64 `json:"tonnage_kg"`
}

// CardioVolume aggregates cardio work for one period.
type CardioVolume struct {
	Sets            int     `json:"sets"`
	DurationSeconds int     `json:"duration_seconds"`
	DistanceKm      float64 `json:"distance_km"`
}

// FlexibilityVolume aggregates flexibility work for one period.
type FlexibilityVolume struct {
	Sets         int     `json:"sets"`
	HoldSeconds  int     `json:"hold_seconds"`
	AvgIntensity float64 `json:"avg_intensity"`
}

// TrainingVolumePeriod holds per-category training volume for one period.
// Only completed sessions count; soft-deleted rows are excluded at every
// level of the aggregate.
type TrainingVolumePeriod struct {
	Period          string             `json:"period"`
	Sessions        int                `json:"sessions"`
	TrainingMinutes int                `json:"training_minutes"`
	Strength        *StrengthVolume    `json:"strength,omitempty"`
	Cardio          *CardioVolume      `json:"cardio,omitempty"`
	Flexibility     *FlexibilityVolume `json:"flexibility,omitempty"`
}

// GetTrainingVolume returns aggregated training volume per period.
func (db *DB) GetTrainingVolume(ctx context.Context, start, end time.Time, bucket string, userID int) ([]TrainingVolumePeriod, error) {
	// Query 1: completed sessions and their durations per period.
	sessionRows, err := db.Pool.Query(ctx,
		`SELECT date_trunc($1, completed_at)::date AS period,
		        COUNT(*)::int,
		        COALESCE(SUM(actual_duration_minutes), 0)::int
		 FROM workout_sessions
		 WHERE user_id = $2 AND status = 'COMPLETED' AND deleted_at IS NULL
		   AND completed_at >= $3 AND completed_at < $4
		 GROUP BY period
		 ORDER BY period DESC`,
		truncInterval(bucket), userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying session volume: %w", err)
	}
	defer sessionRows.Close()

	periodMap := make(map[string]*TrainingVolumePeriod)
	var periodOrder []string

	for sessionRows.Next() {
		var periodTime time.Time
		p := &TrainingVolumePeriod{}
		if err := sessionRows.Scan(&periodTime, &p.Sessions, &p.TrainingMinutes); err != nil {
			return nil, fmt.Errorf("scanning session volume: %w", err)
		}
		p.Period = periodTime.Format("2006-01-02")
		periodMap[p.Period] = p
		periodOrder = append(periodOrder, p.Period)
	}
	if err := sessionRows.Err(); err != nil {
		return nil, err
	}

	// Query 2: set volume per period and category across the same sessions.
	setRows, err := db.Pool.Query(ctx,
		`SELECT date_trunc($1, s.completed_at)::date AS period,
		        st.category,
		        COUNT(*)::int,
		        COALESCE(SUM(st.reps), 0)::int,
		        COALESCE(SUM(st.weight_kg * st.reps), 0),
		        COALESCE(SUM(st.duration_seconds), 0)::int,
		        COALESCE(SUM(CASE st.distance_unit
		            WHEN 'km' THEN st.distance
		            WHEN 'm'  THEN st.distance / 1000
		            WHEN 'mi' THEN st.distance * 1.609344
		            ELSE 0 END), 0),
		        COALESCE(AVG(st.intensity), 0)
		 FROM workout_sets st
		 JOIN workout_slots sl ON sl.id = st.slot_id AND sl.deleted_at IS NULL
		 JOIN workout_sessions s ON s.id = sl.session_id
		 WHERE s.user_id = $2 AND s.status = 'COMPLETED' AND s.deleted_at IS NULL
		   AND st.deleted_at IS NULL
		   AND s.completed_at >= $3 AND s.completed_at < $4
		 GROUP BY period, st.category
		 ORDER BY period DESC`,
		truncInterval(bucket), userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying set volume: %w", err)
	}
	defer setRows.Close()

	for setRows.Next() {
		var periodTime time.Time
		var category string
		var sets, reps, durationSec int
		var tonnage, distanceKm, avgIntensity float64
		if err := setRows.Scan(&periodTime, &category, &sets, &reps, &tonnage,
			&durationSec, &distanceKm, &avgIntensity); err != nil {
			return nil, fmt.Errorf("scanning set volume: %w", err)
		}
		key := periodTime.Format("2006-01-02")
		p, ok := periodMap[key]
		if !ok {
			p = &TrainingVolumePeriod{Period: key}
			periodMap[key] = p
			periodOrder = append(periodOrder, key)
		}
		switch category {
		case "STRENGTH":
			p.Strength = &StrengthVolume{WorkingSets: sets, TotalReps: reps, TonnageKg: tonnage}
		case "CARDIO":
			p.Cardio = &CardioVolume{Sets: sets, DurationSeconds: durationSec, DistanceKm: distanceKm}
		case "FLEXIBILITY":
			p.Flexibility = &FlexibilityVolume{Sets: sets, HoldSeconds: durationSec, AvgIntensity: avgIntensity}
		}
	}
	if err := setRows.Err(); err != nil {
		return nil, err
	}

	result := make([]TrainingVolumePeriod, 0, len(periodOrder))
	for _, key := range periodOrder {
		result = append(result, *periodMap[key])
	}
	return result, nil
}

// truncInterval converts bucket strings like "1 month" to the interval name
// that date_trunc expects (e.g. "month", "week").
func truncInterval(bucket string) string {
	switch bucket {
	case "1 week":
		return "week"
	case "1 month":
		return "month"
	default:
		return "month"
	}
}
