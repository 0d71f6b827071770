package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/claude/liftlog/internal/workout"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const setColumns = `st.id, st.slot_id, st.category, st.set_number, st.rest_seconds, st.notes,
	 st.completed, st.version, st.created_at, st.updated_at, st.deleted_at,
	 st.reps, st.weight_kg, st.duration_seconds, st.distance, st.distance_unit,
	 st.stretch_type, st.intensity`

// variantColumns flattens a payload into the nullable per-category columns of
// the workout_sets table. Exactly the columns of the payload's category are
// non-nil; the CHECK constraints in the schema enforce the same shape.
type variantColumns struct {
	Reps            *int
	WeightKg        *float64
	DurationSeconds *int
	Distance        *float64
	DistanceUnit    *string
	StretchType     *string
	Intensity       *int
}

func flattenPayload(p workout.SetPayload) variantColumns {
	var v variantColumns
	switch pl := p.(type) {
	case workout.StrengthPayload:
		v.Reps = &pl.Reps
		v.WeightKg = &pl.WeightKg
	case workout.CardioPayload:
		v.DurationSeconds = &pl.DurationSeconds
		v.Distance = pl.Distance
		// Stored as '' for a unitless distance; the CHECK constraints treat
		// the column as part of the variant shape, so it is never NULL.
		u := string(pl.DistanceUnit)
		v.DistanceUnit = &u
	case workout.FlexibilityPayload:
		v.DurationSeconds = &pl.DurationSeconds
		v.StretchType = &pl.StretchType
		v.Intensity = &pl.Intensity
	}
	return v
}

func assemblePayload(category workout.Category, v variantColumns) (workout.SetPayload, error) {
	switch category {
	case workout.CategoryStrength:
		if v.Reps == nil || v.WeightKg == nil {
			return nil, fmt.Errorf("strength set row missing reps/weight")
		}
		return workout.StrengthPayload{Reps: *v.Reps, WeightKg: *v.WeightKg}, nil
	case workout.CategoryCardio:
		if v.DurationSeconds == nil {
			return nil, fmt.Errorf("cardio set row missing duration")
		}
		p := workout.CardioPayload{DurationSeconds: *v.DurationSeconds, Distance: v.Distance}
		if v.DistanceUnit != nil {
			p.DistanceUnit = workout.DistanceUnit(*v.DistanceUnit)
		}
		return p, nil
	case workout.CategoryFlexibility:
		if v.DurationSeconds == nil || v.Intensity == nil {
			return nil, fmt.Errorf("flexibility set row missing duration/intensity")
		}
		p := workout.FlexibilityPayload{DurationSeconds: *v.DurationSeconds, Intensity: *v.Intensity}
		if v.StretchType != nil {
			p.StretchType = *v.StretchType
		}
		return p, nil
	}
	return nil, fmt.Errorf("set row has unknown category %q", category)
}

func scanSet(row pgx.Row) (*workout.Set, error) {
	var st workout.Set
	var category workout.Category
	var v variantColumns
	err := row.Scan(&st.ID, &st.SlotID, &category, &st.SetNumber, &st.RestSeconds, &st.Notes,
		&st.Completed, &st.Version, &st.CreatedAt, &st.UpdatedAt, &st.DeletedAt,
		&v.Reps, &v.WeightKg, &v.DurationSeconds, &v.Distance, &v.DistanceUnit,
		&v.StretchType, &v.Intensity)
	if err != nil {
		return nil, err
	}
	st.Payload, err = assemblePayload(category, v)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func getSet(ctx context.Context, q querier, id uuid.UUID, userID int, includeDeleted bool) (*workout.Set, error) {
	sql := `SELECT ` + setColumns + `
		 FROM workout_sets st
		 JOIN workout_slots sl ON sl.id = st.slot_id
		 JOIN workout_sessions s ON s.id = sl.session_id
		 WHERE st.id = $1 AND s.user_id = $2`
	if !includeDeleted {
		sql += ` AND st.deleted_at IS NULL`
	}
	st, err := scanSet(q.QueryRow(ctx, sql, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, workout.Errorf(workout.CodeNotFound, "set %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying set: %w", err)
	}
	return st, nil
}

// AddSet appends a set to a slot. The payload's category must match the
// slot's exercise category; the single tagged table makes a set in the wrong
// bucket unrepresentable. The slot's version is the concurrency token: it is
// bumped with a conditional update in the same transaction, so two adds from
// the same observed slot version produce one winner and one Conflict.
func (db *DB) AddSet(ctx context.Context, slotID uuid.UUID, userID int, n workout.NewSet, expectedSlotVersion int64) (*workout.Set, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	var out *workout.Set
	err := pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		sl, err := getSlot(ctx, tx, slotID, userID, false)
		if err != nil {
			return err
		}
		if got, want := n.Payload.Category(), sl.Category(); got != want {
			return workout.Errorf(workout.CodeCategoryMismatch,
				"slot %s holds %s sets, got a %s payload", slotID, want, got)
		}

		now := db.nowUTC()
		tag, err := tx.Exec(ctx,
			`UPDATE workout_slots sl
			 SET version = sl.version + 1, updated_at = $1
			 FROM workout_sessions s
			 WHERE sl.id = $2 AND sl.version = $3 AND sl.deleted_at IS NULL
			   AND s.id = sl.session_id AND s.user_id = $4 AND s.deleted_at IS NULL
			   AND s.status IN ($5, $6)`,
			now, slotID, expectedSlotVersion, userID,
			workout.StatusPlanned, workout.StatusInProgress)
		if err != nil {
			return fmt.Errorf("bumping slot version: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return classifySlotCAS(ctx, tx, slotID, userID)
		}

		v := flattenPayload(n.Payload)
		setID := uuid.New()
		_, err = tx.Exec(ctx,
			`INSERT INTO workout_sets (id, slot_id, category, set_number, rest_seconds, notes, completed,
			                           version, created_at, updated_at,
			                           reps, weight_kg, duration_seconds, distance, distance_unit,
			                           stretch_type, intensity)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $8, $9, $10, $11, $12, $13, $14, $15)`,
			setID, slotID, n.Payload.Category(), n.SetNumber, n.RestSeconds, n.Notes, n.Completed,
			now, v.Reps, v.WeightKg, v.DurationSeconds, v.Distance, v.DistanceUnit,
			v.StretchType, v.Intensity)
		if isUniqueViolation(err, setNumberIdx) {
			return workout.Errorf(workout.CodeDuplicateSetNumber,
				"set_number %d is already used in slot %s", n.SetNumber, slotID)
		}
		if err != nil {
			return fmt.Errorf("inserting set: %w", err)
		}
		out, err = getSet(ctx, tx, setID, userID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// classifySetCAS explains a zero-row conditional update against a set.
func classifySetCAS(ctx context.Context, tx pgx.Tx, setID uuid.UUID, userID int) error {
	var setDeleted, slotDeleted, sessionDeleted *time.Time
	var status workout.Status
	err := tx.QueryRow(ctx,
		`SELECT st.deleted_at, sl.deleted_at, s.deleted_at, s.status
		 FROM workout_sets st
		 JOIN workout_slots sl ON sl.id = st.slot_id
		 JOIN workout_sessions s ON s.id = sl.session_id
		 WHERE st.id = $1 AND s.user_id = $2`,
		setID, userID).Scan(&setDeleted, &slotDeleted, &sessionDeleted, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return workout.Errorf(workout.CodeNotFound, "set %s not found", setID)
	}
	if err != nil {
		return fmt.Errorf("re-reading set: %w", err)
	}
	if setDeleted != nil || slotDeleted != nil || sessionDeleted != nil {
		return workout.Errorf(workout.CodeNotFound, "set %s not found", setID)
	}
	if status.Terminal() {
		return workout.Errorf(workout.CodeInvalidParentState,
			"session is %s and no longer accepts changes", status)
	}
	return workout.Errorf(workout.CodeConflict,
		"set was modified concurrently, re-read and retry")
}

// UpdateSet applies a partial update to a set's common fields and optionally
// replaces its payload. A replacement payload must keep the set's category;
// moving a set between categories is not a thing.
func (db *DB) UpdateSet(ctx context.Context, id uuid.UUID, userID int, upd workout.SetUpdate, expectedVersion int64) (*workout.Set, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}
	var out *workout.Set
	err := pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		cur, err := getSet(ctx, tx, id, userID, false)
		if err != nil {
			return err
		}
		if upd.Payload != nil && upd.Payload.Category() != cur.Category() {
			return workout.Errorf(workout.CodeCategoryMismatch,
				"set %s is %s, got a %s payload", id, cur.Category(), upd.Payload.Category())
		}

		payload := cur.Payload
		if upd.Payload != nil {
			payload = upd.Payload
		}
		v := flattenPayload(payload)

		row := tx.QueryRow(ctx,
			`UPDATE workout_sets st
			 SET rest_seconds = COALESCE($1, st.rest_seconds),
			     notes = COALESCE($2, st.notes),
			     completed = COALESCE($3, st.completed),
			     reps = $4, weight_kg = $5, duration_seconds = $6, distance = $7,
			     distance_unit = $8, stretch_type = $9, intensity = $10,
			     version = st.version + 1, updated_at = $11
			 FROM workout_slots sl, workout_sessions s
			 WHERE st.id = $12 AND st.version = $13 AND st.deleted_at IS NULL
			   AND sl.id = st.slot_id AND sl.deleted_at IS NULL
			   AND s.id = sl.session_id AND s.user_id = $14 AND s.deleted_at IS NULL
			   AND s.status IN ($15, $16)
			 RETURNING `+setColumns,
			upd.RestSeconds, upd.Notes, upd.Completed,
			v.Reps, v.WeightKg, v.DurationSeconds, v.Distance, v.DistanceUnit,
			v.StretchType, v.Intensity, db.nowUTC(),
			id, expectedVersion, userID, workout.StatusPlanned, workout.StatusInProgress)
		out, err = scanSet(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return classifySetCAS(ctx, tx, id, userID)
		}
		if err != nil {
			return fmt.Errorf("updating set: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteSet soft-deletes a single set.
func (db *DB) DeleteSet(ctx context.Context, id uuid.UUID, userID int, expectedVersion int64) error {
	return pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE workout_sets st
			 SET deleted_at = $1, version = st.version + 1, updated_at = $1
			 FROM workout_slots sl, workout_sessions s
			 WHERE st.id = $2 AND st.version = $3 AND st.deleted_at IS NULL
			   AND sl.id = st.slot_id AND sl.deleted_at IS NULL
			   AND s.id = sl.session_id AND s.user_id = $4 AND s.deleted_at IS NULL
			   AND s.status IN ($5, $6)`,
			db.nowUTC(), id, expectedVersion, userID,
			workout.StatusPlanned, workout.StatusInProgress)
		if err != nil {
			return fmt.Errorf("deleting set: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return classifySetCAS(ctx, tx, id, userID)
		}
		return nil
	})
}

// RestoreSet clears a single set's deleted mark. Both ancestors must be
// active views: restoring a set under a deleted slot or session is rejected.
func (db *DB) RestoreSet(ctx context.Context, id uuid.UUID, userID int) (*workout.Set, error) {
	var out *workout.Set
	err := pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		var setDeleted, slotDeleted, sessionDeleted *time.Time
		var setNumber int
		err := tx.QueryRow(ctx,
			`SELECT st.deleted_at, st.set_number, sl.deleted_at, s.deleted_at
			 FROM workout_sets st
			 JOIN workout_slots sl ON sl.id = st.slot_id
			 JOIN workout_sessions s ON s.id = sl.session_id
			 WHERE st.id = $1 AND s.user_id = $2`,
			id, userID).Scan(&setDeleted, &setNumber, &slotDeleted, &sessionDeleted)
		if errors.Is(err, pgx.ErrNoRows) {
			return workout.Errorf(workout.CodeNotFound, "set %s not found", id)
		}
		if err != nil {
			return fmt.Errorf("querying set: %w", err)
		}
		if slotDeleted != nil || sessionDeleted != nil {
			return workout.Errorf(workout.CodeInvalidParentState,
				"cannot restore a set under a deleted ancestor, restore the slot/session first")
		}
		if setDeleted == nil {
			return workout.Errorf(workout.CodeNotFound, "no deleted set %s to restore", id)
		}

		_, err = tx.Exec(ctx,
			`UPDATE workout_sets
			 SET deleted_at = NULL, version = version + 1, updated_at = $1
			 WHERE id = $2`,
			db.nowUTC(), id)
		if isUniqueViolation(err, setNumberIdx) {
			return workout.Errorf(workout.CodeDuplicateSetNumber,
				"set_number %d was reused by an active set", setNumber)
		}
		if err != nil {
			return fmt.Errorf("restoring set: %w", err)
		}
		out, err = getSet(ctx, tx, id, userID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
