package mcp

import (
	"context"
	"time"

	"github.com/claude/liftlog/internal/storage"
	"github.com/claude/liftlog/internal/workout"
	"github.com/google/uuid"
)

// DataSource abstracts the data layer for MCP tools. Both *storage.DB (local)
// and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	ListSessions(ctx context.Context, userID int, opts storage.ListSessionsOpts) ([]workout.Session, error)
	ListSessionGraphs(ctx context.Context, userID int, opts storage.ListSessionsOpts) ([]workout.Session, error)
	LoadSessionGraph(ctx context.Context, sessionID uuid.UUID, userID int, includeDeleted bool) (*workout.Session, error)
	GetTrainingVolume(ctx context.Context, start, end time.Time, bucket string, userID int) ([]storage.TrainingVolumePeriod, error)
	ListExercises(ctx context.Context) ([]workout.Exercise, error)
}

// Compile-time check: *storage.DB satisfies DataSource.
var _ DataSource = (*storage.DB)(nil)
