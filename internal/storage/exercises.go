package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/claude/liftlog/internal/workout"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ListExercises returns the full exercise catalog grouped by category.
func (db *DB) ListExercises(ctx context.Context) ([]workout.Exercise, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, name, category, description, created_at
		 FROM exercises ORDER BY category, name`)
	if err != nil {
		return nil, fmt.Errorf("querying exercises: %w", err)
	}
	defer rows.Close()

	var result []workout.Exercise
	for rows.Next() {
		var e workout.Exercise
		if err := rows.Scan(&e.ID, &e.Name, &e.Category, &e.Description, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning exercise: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// GetExercise retrieves one catalog entry.
func (db *DB) GetExercise(ctx context.Context, id uuid.UUID) (*workout.Exercise, error) {
	var e workout.Exercise
	err := db.Pool.QueryRow(ctx,
		`SELECT id, name, category, description, created_at FROM exercises WHERE id = $1`,
		id).Scan(&e.ID, &e.Name, &e.Category, &e.Description, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, workout.Errorf(workout.CodeNotFound, "exercise %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying exercise: %w", err)
	}
	return &e, nil
}

// CreateExercise adds a catalog entry. Names are unique; the category is
// immutable once a slot may reference it.
func (db *DB) CreateExercise(ctx context.Context, name string, category workout.Category, description string) (*workout.Exercise, error) {
	if err := workout.ValidateExercise(name, category, description); err != nil {
		return nil, err
	}
	var e workout.Exercise
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO exercises (id, name, category, description, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, name, category, description, created_at`,
		uuid.New(), name, category, description, db.nowUTC()).
		Scan(&e.ID, &e.Name, &e.Category, &e.Description, &e.CreatedAt)
	if isUniqueViolation(err, "exercises_name_key") {
		return nil, workout.Errorf(workout.CodeValidation, "exercise %q already exists", name)
	}
	if err != nil {
		return nil, fmt.Errorf("inserting exercise: %w", err)
	}
	return &e, nil
}

// GetOrCreateExercise finds a catalog entry by name or creates it. Used by
// the history importer, where exports name exercises free-form. A name that
// exists under a different category is an error rather than a silent rebind.
func (db *DB) GetOrCreateExercise(ctx context.Context, name string, category workout.Category) (*workout.Exercise, error) {
	var e workout.Exercise
	err := db.Pool.QueryRow(ctx,
		`SELECT id, name, category, description, created_at FROM exercises WHERE name = $1`,
		name).Scan(&e.ID, &e.Name, &e.Category, &e.Description, &e.CreatedAt)
	if err == nil {
		if e.Category != category {
			return nil, workout.Errorf(workout.CodeCategoryMismatch,
				"exercise %q exists with category %s, import declares %s", name, e.Category, category)
		}
		return &e, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("querying exercise by name: %w", err)
	}
	return db.CreateExercise(ctx, name, category, "")
}
