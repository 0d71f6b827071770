// Package storage persists the workout aggregate in PostgreSQL. Every
// mutation is a conditional update guarded by the entity's version counter;
// the affected-row count of that single statement decides commit or abort,
// so concurrent writers from the same version produce exactly one winner.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/claude/liftlog/internal/workout"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a pgxpool.Pool and provides repository methods.
type DB struct {
	Pool *pgxpool.Pool

	// now is swappable for tests; defaults to time.Now.
	now func() time.Time
}

// New creates a new DB with a connection pool.
func New(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &DB{Pool: pool, now: time.Now}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}

// RunMigrations applies all pending migrations from the given directory.
func RunMigrations(dsn, migrationsPath string) error {
	m, err := migrate.New("file://"+migrationsPath, dsn)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// nowUTC returns the clock value mutations stamp rows with.
func (db *DB) nowUTC() time.Time {
	return db.now().UTC()
}

// isUniqueViolation reports whether err is a violation of the named unique
// constraint. Partial unique indexes surface here when a guarded insert or
// reorder loses to a concurrent active row.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

// casOutcome classifies a conditional update that matched zero rows. The row
// is re-read to tell a stale version from an absent or soft-deleted entity:
// both of the latter present as NotFound to callers that asked for the
// default (active) view.
func casOutcome(found bool, deletedAt *time.Time, kind string) error {
	if !found || deletedAt != nil {
		return workout.Errorf(workout.CodeNotFound, "%s not found", kind)
	}
	return workout.Errorf(workout.CodeConflict, "%s was modified concurrently, re-read and retry", kind)
}

// classifySessionCAS re-reads a session row after a zero-row conditional
// update and returns the typed error the caller should surface.
func classifySessionCAS(ctx context.Context, tx pgx.Tx, id any, userID int) error {
	var deletedAt *time.Time
	err := tx.QueryRow(ctx,
		`SELECT deleted_at FROM workout_sessions WHERE id = $1 AND user_id = $2`,
		id, userID).Scan(&deletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return casOutcome(false, nil, "session")
	}
	if err != nil {
		return fmt.Errorf("re-reading session: %w", err)
	}
	return casOutcome(true, deletedAt, "session")
}
