package workout

import (
	"time"

	"github.com/google/uuid"
)

// Slot is an ordered position in a session binding one exercise definition
// to the sets performed for it. Order values are unique among the session's
// active slots but need not be contiguous; deleting a slot frees its order
// value for reuse.
type Slot struct {
	ID             uuid.UUID  `json:"id"`
	SessionID      uuid.UUID  `json:"session_id"`
	Exercise       Exercise   `json:"exercise"`
	OrderInSession int        `json:"order_in_session"`
	Notes          string     `json:"notes,omitempty"`
	Version        int64      `json:"version"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`

	// Sets is populated by graph loads with the collection matching the
	// exercise category, ordered by SetNumber.
	Sets []Set `json:"sets,omitempty"`
}

// Deleted reports whether the slot is soft-deleted.
func (s *Slot) Deleted() bool { return s.DeletedAt != nil }

// Category is the set category this slot accepts.
func (s *Slot) Category() Category { return s.Exercise.Category }

// ValidateSlot checks order and notes constraints for slot creation.
func ValidateSlot(orderInSession int, notes string) error {
	if orderInSession < 1 {
		return Errorf(CodeValidation, "order_in_session must be positive, got %d", orderInSession)
	}
	if len(notes) > maxTextLen {
		return Errorf(CodeValidation, "slot notes exceed %d characters", maxTextLen)
	}
	return nil
}

// SlotUpdate is a partial slot update; nil fields are left as-is. A non-nil
// OrderInSession is a reorder and is checked against the session's active
// slots like a fresh placement, the moving slot excluded.
type SlotUpdate struct {
	Notes          *string `json:"notes,omitempty"`
	OrderInSession *int    `json:"order_in_session,omitempty"`
}

// Validate checks the populated fields against the slot constraints.
func (u SlotUpdate) Validate() error {
	if u.Notes == nil && u.OrderInSession == nil {
		return Errorf(CodeValidation, "no fields to update")
	}
	if u.OrderInSession != nil && *u.OrderInSession < 1 {
		return Errorf(CodeValidation, "order_in_session must be positive, got %d", *u.OrderInSession)
	}
	if u.Notes != nil && len(*u.Notes) > maxTextLen {
		return Errorf(CodeValidation, "slot notes exceed %d characters", maxTextLen)
	}
	return nil
}
