package storage

import (
	"context"
	"fmt"

	"github.com/claude/liftlog/internal/workout"
	"github.com/google/uuid"
)

// Graph loading fetches, per slot, only the set collection matching the
// slot's exercise category. Round-trips are 2 + |categories present| for any
// number of sessions and slots: one query for sessions, one for slots, then
// one batched query per category over all the slot ids needing it. The two
// non-matching collections are never fetched; they are empty by construction.

// LoadSessionGraph returns one session with its ordered slots and their sets.
func (db *DB) LoadSessionGraph(ctx context.Context, sessionID uuid.UUID, userID int, includeDeleted bool) (*workout.Session, error) {
	s, err := db.GetSession(ctx, sessionID, userID, includeDeleted)
	if err != nil {
		return nil, err
	}
	graphs, err := db.attachGraphs(ctx, []workout.Session{*s}, includeDeleted)
	if err != nil {
		return nil, err
	}
	return &graphs[0], nil
}

// ListSessionGraphs returns a user's sessions with full graphs attached.
func (db *DB) ListSessionGraphs(ctx context.Context, userID int, opts ListSessionsOpts) ([]workout.Session, error) {
	sessions, err := db.ListSessions(ctx, userID, opts)
	if err != nil {
		return nil, err
	}
	return db.attachGraphs(ctx, sessions, opts.IncludeDeleted)
}

func (db *DB) attachGraphs(ctx context.Context, sessions []workout.Session, includeDeleted bool) ([]workout.Session, error) {
	if len(sessions) == 0 {
		return sessions, nil
	}
	sessionIDs := make([]uuid.UUID, len(sessions))
	for i, s := range sessions {
		sessionIDs[i] = s.ID
	}

	slotsBySession, slotIDsByCategory, err := db.loadSlots(ctx, sessionIDs, includeDeleted)
	if err != nil {
		return nil, err
	}
	setsBySlot, err := db.loadSets(ctx, slotIDsByCategory, includeDeleted)
	if err != nil {
		return nil, err
	}

	for i := range sessions {
		slots := slotsBySession[sessions[i].ID]
		for j := range slots {
			slots[j].Sets = setsBySlot[slots[j].ID]
		}
		sessions[i].Slots = slots
	}
	return sessions, nil
}

// loadSlots fetches all slots of the given sessions in one query, ordered by
// order_in_session, and indexes the slot ids by exercise category for the
// per-category set fetch.
func (db *DB) loadSlots(ctx context.Context, sessionIDs []uuid.UUID, includeDeleted bool) (map[uuid.UUID][]workout.Slot, map[workout.Category][]uuid.UUID, error) {
	q := `SELECT ` + slotColumns + `
		 FROM workout_slots sl
		 JOIN exercises e ON e.id = sl.exercise_id
		 WHERE sl.session_id = ANY($1)`
	if !includeDeleted {
		q += ` AND sl.deleted_at IS NULL`
	}
	q += ` ORDER BY sl.session_id, sl.order_in_session`

	rows, err := db.Pool.Query(ctx, q, sessionIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("querying slots: %w", err)
	}
	defer rows.Close()

	bySession := make(map[uuid.UUID][]workout.Slot)
	byCategory := make(map[workout.Category][]uuid.UUID)
	for rows.Next() {
		sl, err := scanSlot(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("scanning slot: %w", err)
		}
		bySession[sl.SessionID] = append(bySession[sl.SessionID], *sl)
		byCategory[sl.Category()] = append(byCategory[sl.Category()], sl.ID)
	}
	return bySession, byCategory, rows.Err()
}

// loadSets fetches sets with one query per category present, each batched
// over every slot id declaring that category.
func (db *DB) loadSets(ctx context.Context, slotIDsByCategory map[workout.Category][]uuid.UUID, includeDeleted bool) (map[uuid.UUID][]workout.Set, error) {
	bySlot := make(map[uuid.UUID][]workout.Set)
	for category, slotIDs := range slotIDsByCategory {
		q := `SELECT ` + setColumns + `
			 FROM workout_sets st
			 WHERE st.slot_id = ANY($1) AND st.category = $2`
		if !includeDeleted {
			q += ` AND st.deleted_at IS NULL`
		}
		q += ` ORDER BY st.slot_id, st.set_number`

		rows, err := db.Pool.Query(ctx, q, slotIDs, category)
		if err != nil {
			return nil, fmt.Errorf("querying %s sets: %w", category, err)
		}
		for rows.Next() {
			st, err := scanSet(rows)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning set: %w", err)
			}
			bySlot[st.SlotID] = append(bySlot[st.SlotID], *st)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return bySlot, nil
}
