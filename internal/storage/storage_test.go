package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/claude/liftlog/internal/workout"
	"github.com/jackc/pgx/v5/pgconn"
)

// TestCasOutcomeClassification verifies how a zero-row conditional update is
// disambiguated: an absent or soft-deleted row is NotFound, a live row with
// the wrong version is a Conflict.
func TestCasOutcomeClassification(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name      string
		found     bool
		deletedAt *time.Time
		want      workout.Code
	}{
		{"missing row", false, nil, workout.CodeNotFound},
		{"soft-deleted row", true, &now, workout.CodeNotFound},
		{"stale version", true, nil, workout.CodeConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := casOutcome(tc.found, tc.deletedAt, "session")
			if got := workout.CodeOf(err); got != tc.want {
				t.Errorf("casOutcome code = %q, want %q", got, tc.want)
			}
		})
	}
}

// TestIsUniqueViolation verifies that only 23505 errors on the named
// constraint are treated as uniqueness failures.
func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: slotOrderIdx}
	if !isUniqueViolation(dup, slotOrderIdx) {
		t.Error("matching constraint not recognized")
	}
	if isUniqueViolation(dup, setNumberIdx) {
		t.Error("violation on a different constraint must not match")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503", ConstraintName: slotOrderIdx}, slotOrderIdx) {
		t.Error("non-unique-violation code must not match")
	}
	if isUniqueViolation(errors.New("plain"), slotOrderIdx) {
		t.Error("non-pg error must not match")
	}
	wrapped := fmt.Errorf("inserting slot: %w", dup)
	if !isUniqueViolation(wrapped, slotOrderIdx) {
		t.Error("wrapped pg error not recognized")
	}
}

// TestPayloadColumnRoundTrip verifies that flattening a payload into the
// tagged-table columns and assembling it back preserves the variant for all
// three categories.
func TestPayloadColumnRoundTrip(t *testing.T) {
	dist := 5.2
	unitless := 12.0
	payloads := []workout.SetPayload{
		workout.StrengthPayload{Reps: 8, WeightKg: 102.5},
		workout.CardioPayload{DurationSeconds: 600, Distance: &dist, DistanceUnit: workout.UnitKilometers},
		workout.CardioPayload{DurationSeconds: 300},
		workout.CardioPayload{DurationSeconds: 900, Distance: &unitless},
		workout.FlexibilityPayload{DurationSeconds: 45, StretchType: "hamstring", Intensity: 7},
		workout.FlexibilityPayload{DurationSeconds: 30, Intensity: 4},
	}
	for _, p := range payloads {
		got, err := assemblePayload(p.Category(), flattenPayload(p))
		if err != nil {
			t.Fatalf("assemblePayload(%v): %v", p, err)
		}
		if got != p {
			t.Errorf("round trip = %#v, want %#v", got, p)
		}
	}
}

// TestFlattenPayloadVariantShape verifies the column shapes the schema's
// CHECK constraints demand: every valid payload flattens so that its
// variant's columns are all non-NULL (empty strings included) and the other
// variants' columns are NULL.
func TestFlattenPayloadVariantShape(t *testing.T) {
	dist := 12.0
	cases := []struct {
		name    string
		payload workout.SetPayload
	}{
		{"cardio unitless distance", workout.CardioPayload{DurationSeconds: 900, Distance: &dist}},
		{"cardio no distance", workout.CardioPayload{DurationSeconds: 300}},
		{"flexibility no stretch type", workout.FlexibilityPayload{DurationSeconds: 30, Intensity: 4}},
		{"strength", workout.StrengthPayload{Reps: 5, WeightKg: 60}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.payload.Validate(); err != nil {
				t.Fatalf("payload should be valid: %v", err)
			}
			v := flattenPayload(tc.payload)
			switch tc.payload.Category() {
			case workout.CategoryCardio:
				if v.DurationSeconds == nil || v.DistanceUnit == nil {
					t.Errorf("cardio columns = %#v, duration and unit must be non-nil", v)
				}
				if v.Reps != nil || v.WeightKg != nil || v.StretchType != nil || v.Intensity != nil {
					t.Errorf("cardio row carries foreign variant columns: %#v", v)
				}
			case workout.CategoryFlexibility:
				if v.DurationSeconds == nil || v.StretchType == nil || v.Intensity == nil {
					t.Errorf("flexibility columns = %#v, duration, stretch and intensity must be non-nil", v)
				}
				if v.Reps != nil || v.WeightKg != nil || v.Distance != nil || v.DistanceUnit != nil {
					t.Errorf("flexibility row carries foreign variant columns: %#v", v)
				}
			case workout.CategoryStrength:
				if v.Reps == nil || v.WeightKg == nil {
					t.Errorf("strength columns = %#v, reps and weight must be non-nil", v)
				}
				if v.DurationSeconds != nil || v.Distance != nil || v.DistanceUnit != nil ||
					v.StretchType != nil || v.Intensity != nil {
					t.Errorf("strength row carries foreign variant columns: %#v", v)
				}
			}
		})
	}
}

// TestAssemblePayloadBadRow verifies that rows violating the per-category
// column shape are reported rather than silently zeroed.
func TestAssemblePayloadBadRow(t *testing.T) {
	if _, err := assemblePayload(workout.CategoryStrength, variantColumns{}); err == nil {
		t.Error("strength row without reps/weight should error")
	}
	if _, err := assemblePayload(workout.Category("YOGA"), variantColumns{}); err == nil {
		t.Error("unknown category should error")
	}
}

// TestTruncInterval verifies bucket-string mapping for volume aggregation.
func TestTruncInterval(t *testing.T) {
	if got := truncInterval("1 week"); got != "week" {
		t.Errorf("truncInterval(1 week) = %q, want week", got)
	}
	if got := truncInterval("1 month"); got != "month" {
		t.Errorf("truncInterval(1 month) = %q, want month", got)
	}
	if got := truncInterval("bogus"); got != "month" {
		t.Errorf("truncInterval(bogus) = %q, want month", got)
	}
}
