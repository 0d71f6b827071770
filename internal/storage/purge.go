package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// PurgeStats counts rows physically removed by a purge run.
type PurgeStats struct {
	Sets     int64
	Slots    int64
	Sessions int64
}

// PurgeExpired physically deletes soft-deleted rows whose deletion timestamp
// is older than the retention window. Children go first so foreign keys never
// dangle mid-transaction. Rows under a soft-deleted ancestor are purged with
// it once the ancestor's own timestamp expires. Scheduling is the caller's
// concern; the server binary exposes this as a -purge run.
func (db *DB) PurgeExpired(ctx context.Context, now time.Time, retention time.Duration) (PurgeStats, error) {
	cutoff := now.Add(-retention).UTC()
	var stats PurgeStats

	err := pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`DELETE FROM workout_sets st
			 USING workout_slots sl
			 WHERE sl.id = st.slot_id
			   AND (st.deleted_at < $1 OR sl.deleted_at < $1)`, cutoff)
		if err != nil {
			return fmt.Errorf("purging sets: %w", err)
		}
		stats.Sets = tag.RowsAffected()

		tag, err = tx.Exec(ctx,
			`DELETE FROM workout_sets st
			 USING workout_slots sl, workout_sessions s
			 WHERE sl.id = st.slot_id AND s.id = sl.session_id
			   AND s.deleted_at < $1`, cutoff)
		if err != nil {
			return fmt.Errorf("purging sets under expired sessions: %w", err)
		}
		stats.Sets += tag.RowsAffected()

		tag, err = tx.Exec(ctx,
			`DELETE FROM workout_slots sl
			 USING workout_sessions s
			 WHERE s.id = sl.session_id
			   AND (sl.deleted_at < $1 OR s.deleted_at < $1)`, cutoff)
		if err != nil {
			return fmt.Errorf("purging slots: %w", err)
		}
		stats.Slots = tag.RowsAffected()

		tag, err = tx.Exec(ctx,
			`DELETE FROM workout_sessions WHERE deleted_at < $1`, cutoff)
		if err != nil {
			return fmt.Errorf("purging sessions: %w", err)
		}
		stats.Sessions = tag.RowsAffected()
		return nil
	})
	return stats, err
}
