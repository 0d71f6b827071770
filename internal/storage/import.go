package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/claude/liftlog/internal/workout"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ImportCompletedSession bulk-inserts an already-completed session graph in
// one transaction. Used by the history importer: the session arrives with
// status COMPLETED, lifecycle timestamps and the full slot/set tree, and
// every row starts at version 0 like any other creation.
func (db *DB) ImportCompletedSession(ctx context.Context, userID int, s *workout.Session) (uuid.UUID, error) {
	if s.Status != workout.StatusCompleted {
		return uuid.Nil, workout.Errorf(workout.CodeValidation,
			"imported sessions must be COMPLETED, got %s", s.Status)
	}
	if s.StartedAt == nil || s.CompletedAt == nil || s.CompletedAt.Before(*s.StartedAt) {
		return uuid.Nil, workout.Errorf(workout.CodeValidation,
			"imported session needs started_at <= completed_at")
	}
	if err := workout.ValidateSessionName(s.Name, s.Description); err != nil {
		return uuid.Nil, err
	}
	for _, sl := range s.Slots {
		if err := workout.ValidateSlot(sl.OrderInSession, sl.Notes); err != nil {
			return uuid.Nil, err
		}
		for _, st := range sl.Sets {
			n := workout.NewSet{SetNumber: st.SetNumber, RestSeconds: st.RestSeconds,
				Notes: st.Notes, Completed: st.Completed, Payload: st.Payload}
			if err := n.Validate(); err != nil {
				return uuid.Nil, err
			}
			if st.Payload.Category() != sl.Exercise.Category {
				return uuid.Nil, workout.Errorf(workout.CodeCategoryMismatch,
					"slot %d holds %s sets, got a %s set",
					sl.OrderInSession, sl.Exercise.Category, st.Payload.Category())
			}
		}
	}

	sessionID := uuid.New()
	err := pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		now := db.nowUTC()
		minutes := workout.DurationMinutes(*s.StartedAt, *s.CompletedAt)
		_, err := tx.Exec(ctx,
			`INSERT INTO workout_sessions (id, user_id, name, description, status,
			     started_at, completed_at, actual_duration_minutes, version, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $9)`,
			sessionID, userID, s.Name, s.Description, workout.StatusCompleted,
			s.StartedAt, s.CompletedAt, minutes, now)
		if err != nil {
			return fmt.Errorf("inserting imported session: %w", err)
		}

		for _, sl := range s.Slots {
			slotID := uuid.New()
			_, err := tx.Exec(ctx,
				`INSERT INTO workout_slots (id, session_id, exercise_id, order_in_session, notes, version, created_at, updated_at)
				 VALUES ($1, $2, $3, $4, $5, 0, $6, $6)`,
				slotID, sessionID, sl.Exercise.ID, sl.OrderInSession, sl.Notes, now)
			if isUniqueViolation(err, slotOrderIdx) {
				return workout.Errorf(workout.CodeDuplicateOrder,
					"order_in_session %d appears twice in the import", sl.OrderInSession)
			}
			if err != nil {
				return fmt.Errorf("inserting imported slot: %w", err)
			}
			if err := insertSetBatch(ctx, tx, slotID, sl.Sets, db.nowUTC()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return sessionID, nil
}

// insertSetBatch inserts a slot's sets with one numbered-placeholder
// statement per slot.
func insertSetBatch(ctx context.Context, tx pgx.Tx, slotID uuid.UUID, sets []workout.Set, now time.Time) error {
	if len(sets) == 0 {
		return nil
	}

	query := `INSERT INTO workout_sets (id, slot_id, category, set_number, rest_seconds, notes, completed,
		 version, created_at, updated_at,
		 reps, weight_kg, duration_seconds, distance, distance_unit, stretch_type, intensity) VALUES `
	args := make([]any, 0, len(sets)*16)
	valueStrings := make([]string, 0, len(sets))

	for i, st := range sets {
		base := i * 16
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d,$%d,$%d,$%d,$%d,$%d,$%d,0,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7,
			base+8, base+9, base+10, base+11, base+12, base+13, base+14, base+15, base+16,
		))
		v := flattenPayload(st.Payload)
		args = append(args, uuid.New(), slotID, st.Payload.Category(), st.SetNumber,
			st.RestSeconds, st.Notes, st.Completed, now, now,
			v.Reps, v.WeightKg, v.DurationSeconds, v.Distance, v.DistanceUnit,
			v.StretchType, v.Intensity)
	}

	query += strings.Join(valueStrings, ",")

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err, setNumberIdx) {
			return workout.Errorf(workout.CodeDuplicateSetNumber,
				"duplicate set_number in imported slot")
		}
		return fmt.Errorf("inserting imported sets: %w", err)
	}
	return nil
}
