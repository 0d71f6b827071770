package workout

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category shapes the sets an exercise produces. It is immutable on an
// exercise definition once created.
type Category string

const (
	CategoryStrength    Category = "STRENGTH"
	CategoryCardio      Category = "CARDIO"
	CategoryFlexibility Category = "FLEXIBILITY"
)

// Valid reports whether c is one of the three known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryStrength, CategoryCardio, CategoryFlexibility:
		return true
	}
	return false
}

// ParseCategory validates a wire-level category string.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", Errorf(CodeValidation, "unknown category %q", s)
	}
	return c, nil
}

// Exercise is an immutable exercise definition from the shared catalog.
type Exercise struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Category    Category  `json:"category"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ValidateExercise checks catalog-entry constraints.
func ValidateExercise(name string, category Category, description string) error {
	if strings.TrimSpace(name) == "" {
		return Errorf(CodeValidation, "exercise name is required")
	}
	if len(name) > maxNameLen {
		return Errorf(CodeValidation, "exercise name exceeds %d characters", maxNameLen)
	}
	if !category.Valid() {
		return Errorf(CodeValidation, "unknown category %q", category)
	}
	if len(description) > maxTextLen {
		return Errorf(CodeValidation, "exercise description exceeds %d characters", maxTextLen)
	}
	return nil
}
