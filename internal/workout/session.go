// Package workout defines the session/slot/set aggregate: entity types,
// the session status state machine, category-shaped set payloads, and the
// field-level validation rules shared by every storage backend.
package workout

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusPlanned    Status = "PLANNED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// Terminal reports whether no further transitions are possible from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPlanned, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Action is a requested lifecycle transition.
type Action string

const (
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

// ParseAction validates a wire-level action string. Anything outside the
// three supported actions (including pause/resume, which the product docs
// mention but the status model does not support) is a validation error.
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionStart:
		return ActionStart, nil
	case ActionComplete:
		return ActionComplete, nil
	case ActionCancel:
		return ActionCancel, nil
	}
	return "", Errorf(CodeValidation, "unsupported action %q (want start, complete or cancel)", s)
}

// Session is a single workout occurrence owning an ordered list of slots.
type Session struct {
	ID                    uuid.UUID  `json:"id"`
	UserID                int        `json:"user_id"`
	Name                  string     `json:"name"`
	Description           string     `json:"description,omitempty"`
	Status                Status     `json:"status"`
	StartedAt             *time.Time `json:"started_at,omitempty"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
	ActualDurationMinutes *int       `json:"actual_duration_minutes,omitempty"`
	Version               int64      `json:"version"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
	DeletedAt             *time.Time `json:"deleted_at,omitempty"`

	// Slots is populated by graph loads, ordered by OrderInSession.
	Slots []Slot `json:"slots,omitempty"`
}

// Deleted reports whether the session is soft-deleted.
func (s *Session) Deleted() bool { return s.DeletedAt != nil }

// Apply performs one lifecycle transition in place. It validates the edge
// against the current status and sets the timestamps and derived duration
// the transition produces. The version counter is owned by storage and is
// not touched here.
func (s *Session) Apply(action Action, now time.Time) error {
	switch action {
	case ActionStart:
		if s.Status != StatusPlanned {
			return Errorf(CodeInvalidTransition, "cannot start a %s session", s.Status)
		}
		s.Status = StatusInProgress
		s.StartedAt = &now

	case ActionComplete:
		if s.Status != StatusInProgress {
			return Errorf(CodeInvalidTransition, "cannot complete a %s session", s.Status)
		}
		s.Status = StatusCompleted
		s.CompletedAt = &now
		minutes := DurationMinutes(*s.StartedAt, now)
		s.ActualDurationMinutes = &minutes

	case ActionCancel:
		if s.Status != StatusPlanned && s.Status != StatusInProgress {
			return Errorf(CodeInvalidTransition, "cannot cancel a %s session", s.Status)
		}
		s.Status = StatusCancelled

	default:
		return Errorf(CodeValidation, "unknown action %q", action)
	}
	return nil
}

// DurationMinutes is the whole-minute duration between start and end,
// floored, with a minimum of one minute.
func DurationMinutes(start, end time.Time) int {
	m := int(end.Sub(start) / time.Minute)
	if m < 1 {
		m = 1
	}
	return m
}

const (
	maxNameLen   = 200
	maxTextLen   = 2000
	maxStretch   = 100
	maxIntensity = 10
)

// ValidateSessionName checks the name/description constraints for create
// and metadata-update operations.
func ValidateSessionName(name, description string) error {
	if strings.TrimSpace(name) == "" {
		return Errorf(CodeValidation, "session name is required")
	}
	if len(name) > maxNameLen {
		return Errorf(CodeValidation, "session name exceeds %d characters", maxNameLen)
	}
	if len(description) > maxTextLen {
		return Errorf(CodeValidation, "session description exceeds %d characters", maxTextLen)
	}
	return nil
}

// SessionMetaUpdate is a partial metadata update; nil fields are left as-is.
type SessionMetaUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Validate checks the populated fields against the session constraints.
func (u SessionMetaUpdate) Validate() error {
	if u.Name == nil && u.Description == nil {
		return Errorf(CodeValidation, "no fields to update")
	}
	if u.Name != nil {
		if strings.TrimSpace(*u.Name) == "" {
			return Errorf(CodeValidation, "session name is required")
		}
		if len(*u.Name) > maxNameLen {
			return Errorf(CodeValidation, "session name exceeds %d characters", maxNameLen)
		}
	}
	if u.Description != nil && len(*u.Description) > maxTextLen {
		return Errorf(CodeValidation, "session description exceeds %d characters", maxTextLen)
	}
	return nil
}
