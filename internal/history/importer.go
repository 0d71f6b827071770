package history

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/claude/liftlog/internal/storage"
	"github.com/claude/liftlog/internal/workout"
	"github.com/google/uuid"
)

// Store is the persistence surface the importer needs. *storage.DB is the
// production implementation.
type Store interface {
	GetOrCreateExercise(ctx context.Context, name string, category workout.Category) (*workout.Exercise, error)
	ImportCompletedSession(ctx context.Context, userID int, s *workout.Session) (uuid.UUID, error)
}

var _ Store = (*storage.DB)(nil)

// Stats tracks import progress.
type Stats struct {
	FilesProcessed   int
	FilesSkipped     int
	FilesErrored     int
	SessionsImported int
	SetsImported     int
}

// Importer reads CSV exports from a directory and inserts completed
// sessions. Already-imported files are skipped via the state ledger.
type Importer struct {
	store  Store
	state  *StateDB
	log    *slog.Logger
	userID int
	dryRun bool
	stats  Stats
}

// New creates a new Importer. A nil state DB disables the imported-file
// ledger (every file is considered new), which dry runs use.
func New(store Store, state *StateDB, log *slog.Logger, userID int, dryRun bool) *Importer {
	return &Importer{store: store, state: state, log: log, userID: userID, dryRun: dryRun}
}

// Import processes all .csv files under dir and returns the run's stats.
// A file that fails to parse is logged and counted, not fatal; a storage
// failure aborts the run.
func (imp *Importer) Import(ctx context.Context, dir string) (*Stats, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return &imp.stats, err
	}

	for _, path := range files {
		id, err := IdentifyFile(path)
		if err != nil {
			imp.log.Warn("fingerprint failed", "file", filepath.Base(path), "error", err)
			imp.stats.FilesErrored++
			continue
		}

		if imp.state != nil {
			done, err := imp.state.Seen(id)
			if err != nil {
				return &imp.stats, fmt.Errorf("checking import state for %s: %w", id.Path, err)
			}
			if done {
				imp.stats.FilesSkipped++
				continue
			}
		}

		if err := imp.importFile(ctx, path); err != nil {
			if workout.CodeOf(err) != "" {
				// Bad export content, not an infrastructure failure.
				imp.log.Warn("import rejected", "file", id.Path, "error", err)
				imp.stats.FilesErrored++
				continue
			}
			return &imp.stats, fmt.Errorf("importing %s: %w", id.Path, err)
		}
		imp.stats.FilesProcessed++

		if imp.state != nil && !imp.dryRun {
			if err := imp.state.Record(id); err != nil {
				return &imp.stats, fmt.Errorf("recording import of %s: %w", id.Path, err)
			}
		}
	}

	return &imp.stats, nil
}

func (imp *Importer) importFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sessions, err := Parse(f)
	if err != nil {
		return workout.Errorf(workout.CodeValidation, "parse: %v", err)
	}

	for _, s := range sessions {
		converted, setCount, err := imp.convert(ctx, s)
		if err != nil {
			return err
		}
		if imp.dryRun {
			imp.stats.SessionsImported++
			imp.stats.SetsImported += setCount
			continue
		}
		id, err := imp.store.ImportCompletedSession(ctx, imp.userID, converted)
		if err != nil {
			return err
		}
		imp.log.Info("imported session",
			"id", id, "name", s.Name, "started_at", s.StartedAt, "sets", setCount)
		imp.stats.SessionsImported++
		imp.stats.SetsImported += setCount
	}
	return nil
}

// convert resolves exercise names against the catalog and builds the
// completed session graph the bulk insert expects.
func (imp *Importer) convert(ctx context.Context, s Session) (*workout.Session, int, error) {
	completedAt := s.StartedAt.Add(time.Duration(s.DurationMinutes) * time.Minute)
	out := &workout.Session{
		Name:        s.Name,
		Status:      workout.StatusCompleted,
		StartedAt:   &s.StartedAt,
		CompletedAt: &completedAt,
	}

	var setCount int
	for _, sl := range s.Slots {
		var exercise *workout.Exercise
		if imp.dryRun {
			// No catalog writes on dry runs; a placeholder keeps validation
			// category-aware.
			exercise = &workout.Exercise{Name: sl.ExerciseName, Category: sl.Category}
		} else {
			var err error
			exercise, err = imp.store.GetOrCreateExercise(ctx, sl.ExerciseName, sl.Category)
			if err != nil {
				return nil, 0, err
			}
		}

		slot := workout.Slot{
			Exercise:       *exercise,
			OrderInSession: sl.Order,
			Notes:          sl.Notes,
		}
		for _, st := range sl.Sets {
			slot.Sets = append(slot.Sets, workout.Set{
				SetNumber: st.Number,
				Completed: true,
				Payload:   st.Payload,
			})
			setCount++
		}
		out.Slots = append(out.Slots, slot)
	}
	return out, setCount, nil
}
