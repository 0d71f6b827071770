package server

import (
	"context"
	"time"

	"github.com/claude/liftlog/internal/storage"
	"github.com/claude/liftlog/internal/workout"
	"github.com/google/uuid"
)

// Store abstracts the persistence layer for HTTP handlers. *storage.DB is
// the production implementation; tests use an in-memory fake.
type Store interface {
	GetOrCreateUser(ctx context.Context, login, displayName string) (int, error)

	CreateSession(ctx context.Context, userID int, name, description string) (*workout.Session, error)
	ListSessions(ctx context.Context, userID int, opts storage.ListSessionsOpts) ([]workout.Session, error)
	ListSessionGraphs(ctx context.Context, userID int, opts storage.ListSessionsOpts) ([]workout.Session, error)
	LoadSessionGraph(ctx context.Context, id uuid.UUID, userID int, includeDeleted bool) (*workout.Session, error)
	UpdateSessionMeta(ctx context.Context, id uuid.UUID, userID int, upd workout.SessionMetaUpdate, expectedVersion int64) (*workout.Session, error)
	ApplySessionAction(ctx context.Context, id uuid.UUID, userID int, action workout.Action, expectedVersion int64) (*workout.Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID, userID int, expectedVersion int64) error
	RestoreSession(ctx context.Context, id uuid.UUID, userID int) (*workout.Session, error)

	CreateSlot(ctx context.Context, sessionID uuid.UUID, userID int, exerciseID uuid.UUID, orderInSession int, notes string) (*workout.Slot, error)
	UpdateSlot(ctx context.Context, id uuid.UUID, userID int, upd workout.SlotUpdate, expectedVersion int64) (*workout.Slot, error)
	DeleteSlot(ctx context.Context, id uuid.UUID, userID int, expectedVersion int64) error
	RestoreSlot(ctx context.Context, id uuid.UUID, userID int) (*workout.Slot, error)

	AddSet(ctx context.Context, slotID uuid.UUID, userID int, n workout.NewSet, expectedSlotVersion int64) (*workout.Set, error)
	UpdateSet(ctx context.Context, id uuid.UUID, userID int, upd workout.SetUpdate, expectedVersion int64) (*workout.Set, error)
	DeleteSet(ctx context.Context, id uuid.UUID, userID int, expectedVersion int64) error
	RestoreSet(ctx context.Context, id uuid.UUID, userID int) (*workout.Set, error)

	ListExercises(ctx context.Context) ([]workout.Exercise, error)
	CreateExercise(ctx context.Context, name string, category workout.Category, description string) (*workout.Exercise, error)

	GetTrainingVolume(ctx context.Context, start, end time.Time, bucket string, userID int) ([]storage.TrainingVolumePeriod, error)
}

// Compile-time check: *storage.DB satisfies Store.
var _ Store = (*storage.DB)(nil)
