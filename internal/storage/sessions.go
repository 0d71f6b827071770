package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/claude/liftlog/internal/workout"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const sessionColumns = `id, user_id, name, description, status, started_at, completed_at,
	 actual_duration_minutes, version, created_at, updated_at, deleted_at`

func scanSession(row pgx.Row) (*workout.Session, error) {
	var s workout.Session
	err := row.Scan(&s.ID, &s.UserID, &s.Name, &s.Description, &s.Status,
		&s.StartedAt, &s.CompletedAt, &s.ActualDurationMinutes,
		&s.Version, &s.CreatedAt, &s.UpdatedAt, &s.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSession inserts a new session in PLANNED at version 0.
func (db *DB) CreateSession(ctx context.Context, userID int, name, description string) (*workout.Session, error) {
	if err := workout.ValidateSessionName(name, description); err != nil {
		return nil, err
	}
	now := db.nowUTC()
	row := db.Pool.QueryRow(ctx,
		`INSERT INTO workout_sessions (id, user_id, name, description, status, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, 0, $6, $6)
		 RETURNING `+sessionColumns,
		uuid.New(), userID, name, description, workout.StatusPlanned, now)
	s, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}
	return s, nil
}

// GetSession retrieves one session row (no slots). Soft-deleted sessions are
// NotFound unless includeDeleted is set.
func (db *DB) GetSession(ctx context.Context, id uuid.UUID, userID int, includeDeleted bool) (*workout.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM workout_sessions WHERE id = $1 AND user_id = $2`
	if !includeDeleted {
		q += ` AND deleted_at IS NULL`
	}
	s, err := scanSession(db.Pool.QueryRow(ctx, q, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, workout.Errorf(workout.CodeNotFound, "session %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return s, nil
}

// ListSessionsOpts filters and pages a session listing.
type ListSessionsOpts struct {
	Status         *workout.Status
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// ListSessions returns a user's sessions, newest first, without slots.
func (db *DB) ListSessions(ctx context.Context, userID int, opts ListSessionsOpts) ([]workout.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM workout_sessions WHERE user_id = $1`
	args := []any{userID}
	if !opts.IncludeDeleted {
		q += ` AND deleted_at IS NULL`
	}
	if opts.Status != nil {
		args = append(args, *opts.Status)
		q += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	q += ` ORDER BY created_at DESC, id`
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		q += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var result []workout.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

// ApplySessionAction runs one lifecycle transition. The state machine is
// validated in the domain package against the row as read; the conditional
// update then commits only if the version is still the one the caller
// observed, so the validated status cannot have changed underneath.
func (db *DB) ApplySessionAction(ctx context.Context, id uuid.UUID, userID int, action workout.Action, expectedVersion int64) (*workout.Session, error) {
	var out *workout.Session
	err := pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		s, err := scanSession(tx.QueryRow(ctx,
			`SELECT `+sessionColumns+` FROM workout_sessions
			 WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`, id, userID))
		if errors.Is(err, pgx.ErrNoRows) {
			return workout.Errorf(workout.CodeNotFound, "session %s not found", id)
		}
		if err != nil {
			return fmt.Errorf("querying session: %w", err)
		}
		if s.Version != expectedVersion {
			return workout.Errorf(workout.CodeConflict,
				"session version is %d, caller expected %d", s.Version, expectedVersion)
		}

		now := db.nowUTC()
		if err := s.Apply(action, now); err != nil {
			return err
		}

		row := tx.QueryRow(ctx,
			`UPDATE workout_sessions
			 SET status = $1, started_at = $2, completed_at = $3, actual_duration_minutes = $4,
			     version = version + 1, updated_at = $5
			 WHERE id = $6 AND user_id = $7 AND version = $8 AND deleted_at IS NULL
			 RETURNING `+sessionColumns,
			s.Status, s.StartedAt, s.CompletedAt, s.ActualDurationMinutes, now,
			id, userID, expectedVersion)
		out, err = scanSession(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return classifySessionCAS(ctx, tx, id, userID)
		}
		if err != nil {
			return fmt.Errorf("updating session status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateSessionMeta applies a partial name/description update with a version
// check. Status, timestamps and derived fields are only reachable through
// ApplySessionAction.
func (db *DB) UpdateSessionMeta(ctx context.Context, id uuid.UUID, userID int, upd workout.SessionMetaUpdate, expectedVersion int64) (*workout.Session, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}
	var out *workout.Session
	err := pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`UPDATE workout_sessions
			 SET name = COALESCE($1, name), description = COALESCE($2, description),
			     version = version + 1, updated_at = $3
			 WHERE id = $4 AND user_id = $5 AND version = $6 AND deleted_at IS NULL
			 RETURNING `+sessionColumns,
			upd.Name, upd.Description, db.nowUTC(), id, userID, expectedVersion)
		var err error
		out, err = scanSession(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return classifySessionCAS(ctx, tx, id, userID)
		}
		if err != nil {
			return fmt.Errorf("updating session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteSession soft-deletes the session row only. Slots and sets keep their
// own deleted_at state and stay reachable through include-deleted reads;
// deletion cascades downward only from DeleteSlot.
func (db *DB) DeleteSession(ctx context.Context, id uuid.UUID, userID int, expectedVersion int64) error {
	return pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		now := db.nowUTC()
		tag, err := tx.Exec(ctx,
			`UPDATE workout_sessions
			 SET deleted_at = $1, version = version + 1, updated_at = $1
			 WHERE id = $2 AND user_id = $3 AND version = $4 AND deleted_at IS NULL`,
			now, id, userID, expectedVersion)
		if err != nil {
			return fmt.Errorf("deleting session: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return classifySessionCAS(ctx, tx, id, userID)
		}
		return nil
	})
}

// RestoreSession clears the session's deleted mark. Children deleted by their
// own operations stay deleted.
func (db *DB) RestoreSession(ctx context.Context, id uuid.UUID, userID int) (*workout.Session, error) {
	row := db.Pool.QueryRow(ctx,
		`UPDATE workout_sessions
		 SET deleted_at = NULL, version = version + 1, updated_at = $1
		 WHERE id = $2 AND user_id = $3 AND deleted_at IS NOT NULL
		 RETURNING `+sessionColumns,
		db.nowUTC(), id, userID)
	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, workout.Errorf(workout.CodeNotFound, "no deleted session %s to restore", id)
	}
	if err != nil {
		return nil, fmt.Errorf("restoring session: %w", err)
	}
	return s, nil
}
