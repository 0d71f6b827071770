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

// Partial unique index names from the schema; violations map to the
// duplicate-order / duplicate-set-number error codes.
const (
	slotOrderIdx = "workout_slots_session_order_active_idx"
	setNumberIdx = "workout_sets_slot_number_active_idx"
)

const slotColumns = `sl.id, sl.session_id, sl.order_in_session, sl.notes, sl.version,
	 sl.created_at, sl.updated_at, sl.deleted_at,
	 e.id, e.name, e.category, e.description, e.created_at`

func scanSlot(row pgx.Row) (*workout.Slot, error) {
	var sl workout.Slot
	err := row.Scan(&sl.ID, &sl.SessionID, &sl.OrderInSession, &sl.Notes, &sl.Version,
		&sl.CreatedAt, &sl.UpdatedAt, &sl.DeletedAt,
		&sl.Exercise.ID, &sl.Exercise.Name, &sl.Exercise.Category,
		&sl.Exercise.Description, &sl.Exercise.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sl, nil
}

// getSlot reads one slot with its exercise, scoped to the owning user.
func getSlot(ctx context.Context, q querier, id uuid.UUID, userID int, includeDeleted bool) (*workout.Slot, error) {
	sql := `SELECT ` + slotColumns + `
		 FROM workout_slots sl
		 JOIN exercises e ON e.id = sl.exercise_id
		 JOIN workout_sessions s ON s.id = sl.session_id
		 WHERE sl.id = $1 AND s.user_id = $2`
	if !includeDeleted {
		sql += ` AND sl.deleted_at IS NULL`
	}
	sl, err := scanSlot(q.QueryRow(ctx, sql, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, workout.Errorf(workout.CodeNotFound, "slot %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying slot: %w", err)
	}
	return sl, nil
}

// querier is the subset of pgx shared by pool and transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CreateSlot adds an exercise slot to a session. The parent-status check is
// embedded in the insert itself: the row is only produced while the session
// is active and non-deleted, so a session completing concurrently cannot
// slip a slot in behind the transition.
func (db *DB) CreateSlot(ctx context.Context, sessionID uuid.UUID, userID int, exerciseID uuid.UUID, orderInSession int, notes string) (*workout.Slot, error) {
	if err := workout.ValidateSlot(orderInSession, notes); err != nil {
		return nil, err
	}
	var out *workout.Slot
	err := pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		now := db.nowUTC()
		slotID := uuid.New()
		tag, err := tx.Exec(ctx,
			`INSERT INTO workout_slots (id, session_id, exercise_id, order_in_session, notes, version, created_at, updated_at)
			 SELECT $1, s.id, $2, $3, $4, 0, $5, $5
			 FROM workout_sessions s
			 WHERE s.id = $6 AND s.user_id = $7 AND s.deleted_at IS NULL
			   AND s.status IN ($8, $9)`,
			slotID, exerciseID, orderInSession, notes, now,
			sessionID, userID, workout.StatusPlanned, workout.StatusInProgress)
		if isUniqueViolation(err, slotOrderIdx) {
			return workout.Errorf(workout.CodeDuplicateOrder,
				"order_in_session %d is already used in session %s", orderInSession, sessionID)
		}
		if err != nil {
			return fmt.Errorf("inserting slot: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return classifyParentState(ctx, tx, sessionID, userID)
		}
		out, err = getSlot(ctx, tx, slotID, userID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// classifyParentState explains why a session-guarded child write produced no
// row: the session is absent/deleted (NotFound) or terminal
// (InvalidParentState).
func classifyParentState(ctx context.Context, tx pgx.Tx, sessionID uuid.UUID, userID int) error {
	var status workout.Status
	var deletedAt *time.Time
	err := tx.QueryRow(ctx,
		`SELECT status, deleted_at FROM workout_sessions WHERE id = $1 AND user_id = $2`,
		sessionID, userID).Scan(&status, &deletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return workout.Errorf(workout.CodeNotFound, "session %s not found", sessionID)
	}
	if err != nil {
		return fmt.Errorf("re-reading session: %w", err)
	}
	if deletedAt != nil {
		return workout.Errorf(workout.CodeNotFound, "session %s not found", sessionID)
	}
	return workout.Errorf(workout.CodeInvalidParentState,
		"session %s is %s and no longer accepts changes", sessionID, status)
}

// classifySlotCAS explains a zero-row conditional update against a slot:
// absent or deleted slot (NotFound), inactive parent (InvalidParentState),
// or a stale version (Conflict).
func classifySlotCAS(ctx context.Context, tx pgx.Tx, slotID uuid.UUID, userID int) error {
	var slotDeleted *time.Time
	var sessionDeleted *time.Time
	var status workout.Status
	err := tx.QueryRow(ctx,
		`SELECT sl.deleted_at, s.deleted_at, s.status
		 FROM workout_slots sl
		 JOIN workout_sessions s ON s.id = sl.session_id
		 WHERE sl.id = $1 AND s.user_id = $2`,
		slotID, userID).Scan(&slotDeleted, &sessionDeleted, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return workout.Errorf(workout.CodeNotFound, "slot %s not found", slotID)
	}
	if err != nil {
		return fmt.Errorf("re-reading slot: %w", err)
	}
	if slotDeleted != nil || sessionDeleted != nil {
		return workout.Errorf(workout.CodeNotFound, "slot %s not found", slotID)
	}
	if status.Terminal() {
		return workout.Errorf(workout.CodeInvalidParentState,
			"session is %s and no longer accepts changes", status)
	}
	return workout.Errorf(workout.CodeConflict,
		"slot was modified concurrently, re-read and retry")
}

// UpdateSlot applies a partial notes/order update with a version check. An
// order change is a reorder: the partial unique index enforces the duplicate
// check against other active slots, and an update never conflicts with the
// row it moves.
func (db *DB) UpdateSlot(ctx context.Context, id uuid.UUID, userID int, upd workout.SlotUpdate, expectedVersion int64) (*workout.Slot, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}
	var out *workout.Slot
	err := pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE workout_slots sl
			 SET notes = COALESCE($1, sl.notes),
			     order_in_session = COALESCE($2, sl.order_in_session),
			     version = sl.version + 1, updated_at = $3
			 FROM workout_sessions s
			 WHERE sl.id = $4 AND sl.version = $5 AND sl.deleted_at IS NULL
			   AND s.id = sl.session_id AND s.user_id = $6 AND s.deleted_at IS NULL
			   AND s.status IN ($7, $8)`,
			upd.Notes, upd.OrderInSession, db.nowUTC(),
			id, expectedVersion, userID, workout.StatusPlanned, workout.StatusInProgress)
		if isUniqueViolation(err, slotOrderIdx) {
			return workout.Errorf(workout.CodeDuplicateOrder,
				"order_in_session %d is already used in this session", *upd.OrderInSession)
		}
		if err != nil {
			return fmt.Errorf("updating slot: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return classifySlotCAS(ctx, tx, id, userID)
		}
		out, err = getSlot(ctx, tx, id, userID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteSlot soft-deletes a slot and every active set it owns in one
// transaction. All cascaded rows share the slot's deleted_at timestamp; that
// shared marker is what RestoreSlot later uses to bring back exactly this
// group and nothing that was deleted on its own.
func (db *DB) DeleteSlot(ctx context.Context, id uuid.UUID, userID int, expectedVersion int64) error {
	return pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		now := db.nowUTC()
		tag, err := tx.Exec(ctx,
			`UPDATE workout_slots sl
			 SET deleted_at = $1, version = sl.version + 1, updated_at = $1
			 FROM workout_sessions s
			 WHERE sl.id = $2 AND sl.version = $3 AND sl.deleted_at IS NULL
			   AND s.id = sl.session_id AND s.user_id = $4 AND s.deleted_at IS NULL
			   AND s.status IN ($5, $6)`,
			now, id, expectedVersion, userID, workout.StatusPlanned, workout.StatusInProgress)
		if err != nil {
			return fmt.Errorf("deleting slot: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return classifySlotCAS(ctx, tx, id, userID)
		}
		_, err = tx.Exec(ctx,
			`UPDATE workout_sets
			 SET deleted_at = $1, version = version + 1, updated_at = $1
			 WHERE slot_id = $2 AND deleted_at IS NULL`,
			now, id)
		if err != nil {
			return fmt.Errorf("cascading slot delete to sets: %w", err)
		}
		return nil
	})
}

// RestoreSlot clears a slot's deleted mark and revives the sets that were
// deleted with it. Sets deleted independently before the slot keep their own
// deleted_at and stay deleted. Restoring under a deleted session is rejected;
// restoring into an order value an active slot claimed in the meantime is a
// duplicate-order failure.
func (db *DB) RestoreSlot(ctx context.Context, id uuid.UUID, userID int) (*workout.Slot, error) {
	var out *workout.Slot
	err := pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		var slotDeleted, sessionDeleted *time.Time
		var order int
		err := tx.QueryRow(ctx,
			`SELECT sl.deleted_at, sl.order_in_session, s.deleted_at
			 FROM workout_slots sl
			 JOIN workout_sessions s ON s.id = sl.session_id
			 WHERE sl.id = $1 AND s.user_id = $2`,
			id, userID).Scan(&slotDeleted, &order, &sessionDeleted)
		if errors.Is(err, pgx.ErrNoRows) {
			return workout.Errorf(workout.CodeNotFound, "slot %s not found", id)
		}
		if err != nil {
			return fmt.Errorf("querying slot: %w", err)
		}
		if sessionDeleted != nil {
			return workout.Errorf(workout.CodeInvalidParentState,
				"cannot restore a slot under a deleted session, restore the session first")
		}
		if slotDeleted == nil {
			return workout.Errorf(workout.CodeNotFound, "no deleted slot %s to restore", id)
		}

		now := db.nowUTC()
		_, err = tx.Exec(ctx,
			`UPDATE workout_slots
			 SET deleted_at = NULL, version = version + 1, updated_at = $1
			 WHERE id = $2`,
			now, id)
		if isUniqueViolation(err, slotOrderIdx) {
			return workout.Errorf(workout.CodeDuplicateOrder,
				"order_in_session %d was reused by an active slot", order)
		}
		if err != nil {
			return fmt.Errorf("restoring slot: %w", err)
		}

		// Revive only the cascade group: sets stamped with the slot's own
		// deletion timestamp.
		_, err = tx.Exec(ctx,
			`UPDATE workout_sets
			 SET deleted_at = NULL, version = version + 1, updated_at = $1
			 WHERE slot_id = $2 AND deleted_at = $3`,
			now, id, *slotDeleted)
		if err != nil {
			return fmt.Errorf("restoring cascaded sets: %w", err)
		}

		out, err = getSlot(ctx, tx, id, userID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
