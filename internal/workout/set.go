package workout

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
)

// DistanceUnit is the unit of a cardio set's distance field.
type DistanceUnit string

const (
	UnitNone       DistanceUnit = ""
	UnitMeters     DistanceUnit = "m"
	UnitKilometers DistanceUnit = "km"
	UnitMiles      DistanceUnit = "mi"
)

// Valid reports whether u is empty or one of the known units.
func (u DistanceUnit) Valid() bool {
	switch u {
	case UnitNone, UnitMeters, UnitKilometers, UnitMiles:
		return true
	}
	return false
}

// SetPayload is the category-specific half of a set. Exactly one
// implementation exists per category, so a payload's shape can never
// disagree with its declared category.
type SetPayload interface {
	Category() Category
	Validate() error
}

// StrengthPayload is one strength set: repetitions under load.
type StrengthPayload struct {
	Reps     int     `json:"reps"`
	WeightKg float64 `json:"weight_kg"`
}

func (StrengthPayload) Category() Category { return CategoryStrength }

func (p StrengthPayload) Validate() error {
	if p.Reps < 1 {
		return Errorf(CodeValidation, "reps must be at least 1, got %d", p.Reps)
	}
	if p.WeightKg < 0 {
		return Errorf(CodeValidation, "weight_kg must not be negative, got %g", p.WeightKg)
	}
	if !twoDecimals(p.WeightKg) {
		return Errorf(CodeValidation, "weight_kg allows at most 2 decimal places, got %g", p.WeightKg)
	}
	return nil
}

// CardioPayload is one cardio interval: a duration with optional distance.
type CardioPayload struct {
	DurationSeconds int          `json:"duration_seconds"`
	Distance        *float64     `json:"distance,omitempty"`
	DistanceUnit    DistanceUnit `json:"distance_unit,omitempty"`
}

func (CardioPayload) Category() Category { return CategoryCardio }

func (p CardioPayload) Validate() error {
	if p.DurationSeconds < 1 {
		return Errorf(CodeValidation, "duration_seconds must be at least 1, got %d", p.DurationSeconds)
	}
	if p.Distance != nil {
		if *p.Distance < 0 {
			return Errorf(CodeValidation, "distance must not be negative, got %g", *p.Distance)
		}
		if !twoDecimals(*p.Distance) {
			return Errorf(CodeValidation, "distance allows at most 2 decimal places, got %g", *p.Distance)
		}
	}
	if !p.DistanceUnit.Valid() {
		return Errorf(CodeValidation, "unknown distance_unit %q", p.DistanceUnit)
	}
	return nil
}

// FlexibilityPayload is one flexibility hold.
type FlexibilityPayload struct {
	DurationSeconds int    `json:"duration_seconds"`
	StretchType     string `json:"stretch_type,omitempty"`
	Intensity       int    `json:"intensity"`
}

func (FlexibilityPayload) Category() Category { return CategoryFlexibility }

func (p FlexibilityPayload) Validate() error {
	if p.DurationSeconds < 1 {
		return Errorf(CodeValidation, "duration_seconds must be at least 1, got %d", p.DurationSeconds)
	}
	if len(p.StretchType) > maxStretch {
		return Errorf(CodeValidation, "stretch_type exceeds %d characters", maxStretch)
	}
	if p.Intensity < 1 || p.Intensity > maxIntensity {
		return Errorf(CodeValidation, "intensity must be between 1 and %d, got %d", maxIntensity, p.Intensity)
	}
	return nil
}

// twoDecimals reports whether v carries at most two decimal places.
// Weights and distances are recorded to centesimal precision.
func twoDecimals(v float64) bool {
	scaled := v * 100
	return math.Abs(scaled-math.Round(scaled)) < 1e-6
}

// Set is one performed unit of work in a slot. Common fields live here;
// the category-specific fields live in exactly one Payload.
type Set struct {
	ID          uuid.UUID  `json:"id"`
	SlotID      uuid.UUID  `json:"slot_id"`
	SetNumber   int        `json:"set_number"`
	RestSeconds int        `json:"rest_seconds"`
	Notes       string     `json:"notes,omitempty"`
	Completed   bool       `json:"completed"`
	Version     int64      `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`

	Payload SetPayload `json:"-"`
}

// Deleted reports whether the set is soft-deleted.
func (s *Set) Deleted() bool { return s.DeletedAt != nil }

// Category is the payload's category.
func (s *Set) Category() Category { return s.Payload.Category() }

// ValidateCommon checks the category-independent set constraints.
func (s *Set) ValidateCommon() error {
	if s.SetNumber < 1 {
		return Errorf(CodeValidation, "set_number must be positive, got %d", s.SetNumber)
	}
	if s.RestSeconds < 0 {
		return Errorf(CodeValidation, "rest_seconds must not be negative, got %d", s.RestSeconds)
	}
	if len(s.Notes) > maxTextLen {
		return Errorf(CodeValidation, "set notes exceed %d characters", maxTextLen)
	}
	return nil
}

// setJSON is the wire shape of a Set: the common fields plus a category tag
// and exactly one variant object.
type setJSON struct {
	ID          uuid.UUID  `json:"id"`
	SlotID      uuid.UUID  `json:"slot_id"`
	SetNumber   int        `json:"set_number"`
	RestSeconds int        `json:"rest_seconds"`
	Notes       string     `json:"notes,omitempty"`
	Completed   bool       `json:"completed"`
	Version     int64      `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`

	Category    Category            `json:"category"`
	Strength    *StrengthPayload    `json:"strength,omitempty"`
	Cardio      *CardioPayload      `json:"cardio,omitempty"`
	Flexibility *FlexibilityPayload `json:"flexibility,omitempty"`
}

// MarshalJSON emits the tagged-union wire shape.
func (s Set) MarshalJSON() ([]byte, error) {
	out := setJSON{
		ID:          s.ID,
		SlotID:      s.SlotID,
		SetNumber:   s.SetNumber,
		RestSeconds: s.RestSeconds,
		Notes:       s.Notes,
		Completed:   s.Completed,
		Version:     s.Version,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		DeletedAt:   s.DeletedAt,
	}
	if s.Payload != nil {
		out.Category = s.Payload.Category()
		switch p := s.Payload.(type) {
		case StrengthPayload:
			out.Strength = &p
		case CardioPayload:
			out.Cardio = &p
		case FlexibilityPayload:
			out.Flexibility = &p
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the tagged-union wire shape, requiring the variant
// object to match the category tag.
func (s *Set) UnmarshalJSON(data []byte) error {
	var in setJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	payload, err := PayloadFromParts(in.Category, in.Strength, in.Cardio, in.Flexibility)
	if err != nil {
		return err
	}
	*s = Set{
		ID:          in.ID,
		SlotID:      in.SlotID,
		SetNumber:   in.SetNumber,
		RestSeconds: in.RestSeconds,
		Notes:       in.Notes,
		Completed:   in.Completed,
		Version:     in.Version,
		CreatedAt:   in.CreatedAt,
		UpdatedAt:   in.UpdatedAt,
		DeletedAt:   in.DeletedAt,
		Payload:     payload,
	}
	return nil
}

// PayloadFromParts assembles a SetPayload from a category tag and the three
// optional variant objects of the wire shape. Exactly the object matching
// the tag must be present.
func PayloadFromParts(category Category, strength *StrengthPayload, cardio *CardioPayload, flexibility *FlexibilityPayload) (SetPayload, error) {
	if !category.Valid() {
		return nil, Errorf(CodeValidation, "unknown category %q", category)
	}
	given := 0
	if strength != nil {
		given++
	}
	if cardio != nil {
		given++
	}
	if flexibility != nil {
		given++
	}
	if given != 1 {
		return nil, Errorf(CodeValidation, "exactly one of strength, cardio or flexibility must be set, got %d", given)
	}
	switch category {
	case CategoryStrength:
		if strength == nil {
			return nil, Errorf(CodeValidation, "category %s requires a strength payload", category)
		}
		return *strength, nil
	case CategoryCardio:
		if cardio == nil {
			return nil, Errorf(CodeValidation, "category %s requires a cardio payload", category)
		}
		return *cardio, nil
	default:
		if flexibility == nil {
			return nil, Errorf(CodeValidation, "category %s requires a flexibility payload", category)
		}
		return *flexibility, nil
	}
}

// NewSet is the input for adding a set to a slot.
type NewSet struct {
	SetNumber   int
	RestSeconds int
	Notes       string
	Completed   bool
	Payload     SetPayload
}

// Validate checks every field-level constraint of the new set.
func (n NewSet) Validate() error {
	probe := Set{SetNumber: n.SetNumber, RestSeconds: n.RestSeconds, Notes: n.Notes}
	if err := probe.ValidateCommon(); err != nil {
		return err
	}
	if n.Payload == nil {
		return Errorf(CodeValidation, "set payload is required")
	}
	return n.Payload.Validate()
}

// SetUpdate is a partial set update; nil fields are left as-is. A non-nil
// Payload replaces the whole category-specific half and must keep the set's
// category.
type SetUpdate struct {
	RestSeconds *int
	Notes       *string
	Completed   *bool
	Payload     SetPayload
}

// Validate checks the populated fields against the set constraints.
func (u SetUpdate) Validate() error {
	if u.RestSeconds == nil && u.Notes == nil && u.Completed == nil && u.Payload == nil {
		return Errorf(CodeValidation, "no fields to update")
	}
	if u.RestSeconds != nil && *u.RestSeconds < 0 {
		return Errorf(CodeValidation, "rest_seconds must not be negative, got %d", *u.RestSeconds)
	}
	if u.Notes != nil && len(*u.Notes) > maxTextLen {
		return Errorf(CodeValidation, "set notes exceed %d characters", maxTextLen)
	}
	if u.Payload != nil {
		return u.Payload.Validate()
	}
	return nil
}
