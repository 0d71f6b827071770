package server

import (
	"context"
	"sync"
	"time"

	"github.com/claude/liftlog/internal/storage"
	"github.com/claude/liftlog/internal/workout"
	"github.com/google/uuid"
)

// fakeStore is an in-memory Store with the same version, cascade and
// parent-state semantics as the real one. Handler tests exercise status-code
// mapping and aggregate rules against it without a database.
type fakeStore struct {
	mu        sync.Mutex
	users     map[string]int
	exercises map[uuid.UUID]workout.Exercise
	sessions  map[uuid.UUID]*workout.Session
	slots     map[uuid.UUID]*workout.Slot
	sets      map[uuid.UUID]*workout.Set
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     make(map[string]int),
		exercises: make(map[uuid.UUID]workout.Exercise),
		sessions:  make(map[uuid.UUID]*workout.Session),
		slots:     make(map[uuid.UUID]*workout.Slot),
		sets:      make(map[uuid.UUID]*workout.Set),
	}
}

var _ Store = (*fakeStore)(nil)

func (f *fakeStore) GetOrCreateUser(_ context.Context, login, _ string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.users[login]; ok {
		return id, nil
	}
	id := len(f.users) + 1
	f.users[login] = id
	return id, nil
}

func (f *fakeStore) CreateSession(_ context.Context, userID int, name, description string) (*workout.Session, error) {
	if err := workout.ValidateSessionName(name, description); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	s := &workout.Session{
		ID: uuid.New(), UserID: userID, Name: name, Description: description,
		Status: workout.StatusPlanned, CreatedAt: now, UpdatedAt: now,
	}
	f.sessions[s.ID] = s
	out := *s
	return &out, nil
}

func (f *fakeStore) session(id uuid.UUID, userID int, includeDeleted bool) (*workout.Session, error) {
	s, ok := f.sessions[id]
	if !ok || s.UserID != userID || (!includeDeleted && s.Deleted()) {
		return nil, workout.Errorf(workout.CodeNotFound, "session %s not found", id)
	}
	return s, nil
}

func (f *fakeStore) ListSessions(_ context.Context, userID int, opts storage.ListSessionsOpts) ([]workout.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []workout.Session
	for _, s := range f.sessions {
		if s.UserID != userID || (!opts.IncludeDeleted && s.Deleted()) {
			continue
		}
		if opts.Status != nil && s.Status != *opts.Status {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeStore) ListSessionGraphs(ctx context.Context, userID int, opts storage.ListSessionsOpts) ([]workout.Session, error) {
	sessions, err := f.ListSessions(ctx, userID, opts)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range sessions {
		sessions[i].Slots = f.slotGraph(sessions[i].ID, opts.IncludeDeleted)
	}
	return sessions, nil
}

func (f *fakeStore) LoadSessionGraph(_ context.Context, id uuid.UUID, userID int, includeDeleted bool) (*workout.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, err := f.session(id, userID, includeDeleted)
	if err != nil {
		return nil, err
	}
	out := *s
	out.Slots = f.slotGraph(id, includeDeleted)
	return &out, nil
}

// slotGraph mirrors smart loading: each slot carries only sets of its own
// category, ordered by set number.
func (f *fakeStore) slotGraph(sessionID uuid.UUID, includeDeleted bool) []workout.Slot {
	var slots []workout.Slot
	for _, sl := range f.slots {
		if sl.SessionID != sessionID || (!includeDeleted && sl.Deleted()) {
			continue
		}
		cp := *sl
		for _, st := range f.sets {
			if st.SlotID != sl.ID || (!includeDeleted && st.Deleted()) {
				continue
			}
			if st.Category() != sl.Category() {
				continue
			}
			cp.Sets = append(cp.Sets, *st)
		}
		sortSlice(cp.Sets, func(a, b workout.Set) bool { return a.SetNumber < b.SetNumber })
		slots = append(slots, cp)
	}
	sortSlice(slots, func(a, b workout.Slot) bool { return a.OrderInSession < b.OrderInSession })
	return slots
}

func sortSlice[T any](s []T, less func(a, b T) bool) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && less(s[j], s[j-1]); j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

func (f *fakeStore) UpdateSessionMeta(_ context.Context, id uuid.UUID, userID int, upd workout.SessionMetaUpdate, expectedVersion int64) (*workout.Session, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, err := f.session(id, userID, false)
	if err != nil {
		return nil, err
	}
	if s.Version != expectedVersion {
		return nil, workout.Errorf(workout.CodeConflict, "stale session version")
	}
	if upd.Name != nil {
		s.Name = *upd.Name
	}
	if upd.Description != nil {
		s.Description = *upd.Description
	}
	s.Version++
	out := *s
	return &out, nil
}

func (f *fakeStore) ApplySessionAction(_ context.Context, id uuid.UUID, userID int, action workout.Action, expectedVersion int64) (*workout.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, err := f.session(id, userID, false)
	if err != nil {
		return nil, err
	}
	if s.Version != expectedVersion {
		return nil, workout.Errorf(workout.CodeConflict, "stale session version")
	}
	if err := s.Apply(action, time.Now().UTC()); err != nil {
		return nil, err
	}
	s.Version++
	out := *s
	return &out, nil
}

func (f *fakeStore) DeleteSession(_ context.Context, id uuid.UUID, userID int, expectedVersion int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, err := f.session(id, userID, false)
	if err != nil {
		return err
	}
	if s.Version != expectedVersion {
		return workout.Errorf(workout.CodeConflict, "stale session version")
	}
	now := time.Now().UTC()
	s.DeletedAt = &now
	s.Version++
	return nil
}

func (f *fakeStore) RestoreSession(_ context.Context, id uuid.UUID, userID int) (*workout.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, err := f.session(id, userID, true)
	if err != nil || !s.Deleted() {
		return nil, workout.Errorf(workout.CodeNotFound, "no deleted session %s to restore", id)
	}
	s.DeletedAt = nil
	s.Version++
	out := *s
	return &out, nil
}

// activeParent rejects child writes under a deleted or terminal session.
func (f *fakeStore) activeParent(sessionID uuid.UUID, userID int) error {
	s, ok := f.sessions[sessionID]
	if !ok || s.UserID != userID || s.Deleted() {
		return workout.Errorf(workout.CodeNotFound, "session %s not found", sessionID)
	}
	if s.Status.Terminal() {
		return workout.Errorf(workout.CodeInvalidParentState, "session is %s", s.Status)
	}
	return nil
}

func (f *fakeStore) CreateSlot(_ context.Context, sessionID uuid.UUID, userID int, exerciseID uuid.UUID, orderInSession int, notes string) (*workout.Slot, error) {
	if err := workout.ValidateSlot(orderInSession, notes); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.activeParent(sessionID, userID); err != nil {
		return nil, err
	}
	ex, ok := f.exercises[exerciseID]
	if !ok {
		return nil, workout.Errorf(workout.CodeNotFound, "exercise %s not found", exerciseID)
	}
	for _, sl := range f.slots {
		if sl.SessionID == sessionID && !sl.Deleted() && sl.OrderInSession == orderInSession {
			return nil, workout.Errorf(workout.CodeDuplicateOrder, "order %d in use", orderInSession)
		}
	}
	now := time.Now().UTC()
	sl := &workout.Slot{
		ID: uuid.New(), SessionID: sessionID, Exercise: ex,
		OrderInSession: orderInSession, Notes: notes, CreatedAt: now, UpdatedAt: now,
	}
	f.slots[sl.ID] = sl
	out := *sl
	return &out, nil
}

func (f *fakeStore) slot(id uuid.UUID, userID int, includeDeleted bool) (*workout.Slot, error) {
	sl, ok := f.slots[id]
	if !ok {
		return nil, workout.Errorf(workout.CodeNotFound, "slot %s not found", id)
	}
	s, ok := f.sessions[sl.SessionID]
	if !ok || s.UserID != userID {
		return nil, workout.Errorf(workout.CodeNotFound, "slot %s not found", id)
	}
	if !includeDeleted && (sl.Deleted() || s.Deleted()) {
		return nil, workout.Errorf(workout.CodeNotFound, "slot %s not found", id)
	}
	return sl, nil
}

func (f *fakeStore) UpdateSlot(_ context.Context, id uuid.UUID, userID int, upd workout.SlotUpdate, expectedVersion int64) (*workout.Slot, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	sl, err := f.slot(id, userID, false)
	if err != nil {
		return nil, err
	}
	if err := f.activeParent(sl.SessionID, userID); err != nil {
		return nil, err
	}
	if sl.Version != expectedVersion {
		return nil, workout.Errorf(workout.CodeConflict, "stale slot version")
	}
	if upd.OrderInSession != nil {
		for _, other := range f.slots {
			if other.ID != id && other.SessionID == sl.SessionID && !other.Deleted() &&
				other.OrderInSession == *upd.OrderInSession {
				return nil, workout.Errorf(workout.CodeDuplicateOrder, "order %d in use", *upd.OrderInSession)
			}
		}
		sl.OrderInSession = *upd.OrderInSession
	}
	if upd.Notes != nil {
		sl.Notes = *upd.Notes
	}
	sl.Version++
	out := *sl
	return &out, nil
}

func (f *fakeStore) DeleteSlot(_ context.Context, id uuid.UUID, userID int, expectedVersion int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sl, err := f.slot(id, userID, false)
	if err != nil {
		return err
	}
	if err := f.activeParent(sl.SessionID, userID); err != nil {
		return err
	}
	if sl.Version != expectedVersion {
		return workout.Errorf(workout.CodeConflict, "stale slot version")
	}
	now := time.Now().UTC()
	sl.DeletedAt = &now
	sl.Version++
	for _, st := range f.sets {
		if st.SlotID == id && !st.Deleted() {
			ts := now
			st.DeletedAt = &ts
			st.Version++
		}
	}
	return nil
}

func (f *fakeStore) RestoreSlot(_ context.Context, id uuid.UUID, userID int) (*workout.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sl, err := f.slot(id, userID, true)
	if err != nil {
		return nil, err
	}
	if s := f.sessions[sl.SessionID]; s.Deleted() {
		return nil, workout.Errorf(workout.CodeInvalidParentState, "session is deleted")
	}
	if !sl.Deleted() {
		return nil, workout.Errorf(workout.CodeNotFound, "no deleted slot %s to restore", id)
	}
	group := *sl.DeletedAt
	sl.DeletedAt = nil
	sl.Version++
	for _, st := range f.sets {
		if st.SlotID == id && st.Deleted() && st.DeletedAt.Equal(group) {
			st.DeletedAt = nil
			st.Version++
		}
	}
	out := *sl
	return &out, nil
}

func (f *fakeStore) AddSet(_ context.Context, slotID uuid.UUID, userID int, n workout.NewSet, expectedSlotVersion int64) (*workout.Set, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	sl, err := f.slot(slotID, userID, false)
	if err != nil {
		return nil, err
	}
	if err := f.activeParent(sl.SessionID, userID); err != nil {
		return nil, err
	}
	if got, want := n.Payload.Category(), sl.Category(); got != want {
		return nil, workout.Errorf(workout.CodeCategoryMismatch,
			"slot holds %s sets, got %s", want, got)
	}
	if sl.Version != expectedSlotVersion {
		return nil, workout.Errorf(workout.CodeConflict, "stale slot version")
	}
	for _, st := range f.sets {
		if st.SlotID == slotID && !st.Deleted() && st.SetNumber == n.SetNumber {
			return nil, workout.Errorf(workout.CodeDuplicateSetNumber, "set_number %d in use", n.SetNumber)
		}
	}
	sl.Version++
	now := time.Now().UTC()
	st := &workout.Set{
		ID: uuid.New(), SlotID: slotID, SetNumber: n.SetNumber,
		RestSeconds: n.RestSeconds, Notes: n.Notes, Completed: n.Completed,
		CreatedAt: now, UpdatedAt: now, Payload: n.Payload,
	}
	f.sets[st.ID] = st
	out := *st
	return &out, nil
}

func (f *fakeStore) set(id uuid.UUID, userID int, includeDeleted bool) (*workout.Set, *workout.Slot, error) {
	st, ok := f.sets[id]
	if !ok {
		return nil, nil, workout.Errorf(workout.CodeNotFound, "set %s not found", id)
	}
	sl, err := f.slot(st.SlotID, userID, includeDeleted)
	if err != nil {
		return nil, nil, workout.Errorf(workout.CodeNotFound, "set %s not found", id)
	}
	if !includeDeleted && st.Deleted() {
		return nil, nil, workout.Errorf(workout.CodeNotFound, "set %s not found", id)
	}
	return st, sl, nil
}

func (f *fakeStore) UpdateSet(_ context.Context, id uuid.UUID, userID int, upd workout.SetUpdate, expectedVersion int64) (*workout.Set, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	st, sl, err := f.set(id, userID, false)
	if err != nil {
		return nil, err
	}
	if err := f.activeParent(sl.SessionID, userID); err != nil {
		return nil, err
	}
	if upd.Payload != nil && upd.Payload.Category() != st.Category() {
		return nil, workout.Errorf(workout.CodeCategoryMismatch,
			"set is %s, got %s", st.Category(), upd.Payload.Category())
	}
	if st.Version != expectedVersion {
		return nil, workout.Errorf(workout.CodeConflict, "stale set version")
	}
	if upd.RestSeconds != nil {
		st.RestSeconds = *upd.RestSeconds
	}
	if upd.Notes != nil {
		st.Notes = *upd.Notes
	}
	if upd.Completed != nil {
		st.Completed = *upd.Completed
	}
	if upd.Payload != nil {
		st.Payload = upd.Payload
	}
	st.Version++
	out := *st
	return &out, nil
}

func (f *fakeStore) DeleteSet(_ context.Context, id uuid.UUID, userID int, expectedVersion int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, sl, err := f.set(id, userID, false)
	if err != nil {
		return err
	}
	if err := f.activeParent(sl.SessionID, userID); err != nil {
		return err
	}
	if st.Version != expectedVersion {
		return workout.Errorf(workout.CodeConflict, "stale set version")
	}
	now := time.Now().UTC()
	st.DeletedAt = &now
	st.Version++
	return nil
}

func (f *fakeStore) RestoreSet(_ context.Context, id uuid.UUID, userID int) (*workout.Set, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, _, err := f.set(id, userID, true)
	if err != nil {
		return nil, err
	}
	sl := f.slots[st.SlotID]
	if sl.Deleted() || f.sessions[sl.SessionID].Deleted() {
		return nil, workout.Errorf(workout.CodeInvalidParentState, "deleted ancestor")
	}
	if !st.Deleted() {
		return nil, workout.Errorf(workout.CodeNotFound, "no deleted set %s to restore", id)
	}
	st.DeletedAt = nil
	st.Version++
	out := *st
	return &out, nil
}

// GetTrainingVolume aggregates completed sessions in memory, mirroring the
// SQL aggregate closely enough for handler tests.
func (f *fakeStore) GetTrainingVolume(_ context.Context, start, end time.Time, bucket string, userID int) ([]storage.TrainingVolumePeriod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byPeriod := make(map[string]*storage.TrainingVolumePeriod)
	for _, s := range f.sessions {
		if s.UserID != userID || s.Deleted() || s.Status != workout.StatusCompleted {
			continue
		}
		if s.CompletedAt == nil || s.CompletedAt.Before(start) || !s.CompletedAt.Before(end) {
			continue
		}
		key := periodKey(*s.CompletedAt, bucket)
		p, ok := byPeriod[key]
		if !ok {
			p = &storage.TrainingVolumePeriod{Period: key}
			byPeriod[key] = p
		}
		p.Sessions++
		if s.ActualDurationMinutes != nil {
			p.TrainingMinutes += *s.ActualDurationMinutes
		}
		for _, sl := range f.slots {
			if sl.SessionID != s.ID || sl.Deleted() {
				continue
			}
			for _, st := range f.sets {
				if st.SlotID != sl.ID || st.Deleted() || st.Category() != sl.Category() {
					continue
				}
				addSetVolume(p, st.Payload)
			}
		}
	}
	var out []storage.TrainingVolumePeriod
	for _, p := range byPeriod {
		out = append(out, *p)
	}
	sortSlice(out, func(a, b storage.TrainingVolumePeriod) bool { return a.Period > b.Period })
	return out, nil
}

func periodKey(t time.Time, bucket string) string {
	if bucket == "1 week" {
		for t.Weekday() != time.Monday {
			t = t.AddDate(0, 0, -1)
		}
		return t.Format("2006-01-02")
	}
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
}

func addSetVolume(p *storage.TrainingVolumePeriod, payload workout.SetPayload) {
	switch v := payload.(type) {
	case workout.StrengthPayload:
		if p.Strength == nil {
			p.Strength = &storage.StrengthVolume{}
		}
		p.Strength.WorkingSets++
		p.Strength.TotalReps += v.Reps
		p.Strength.TonnageKg += v.WeightKg * float64(v.Reps)
	case workout.CardioPayload:
		if p.Cardio == nil {
			p.Cardio = &storage.CardioVolume{}
		}
		p.Cardio.Sets++
		p.Cardio.DurationSeconds += v.DurationSeconds
		if v.Distance != nil {
			switch v.DistanceUnit {
			case workout.UnitKilometers:
				p.Cardio.DistanceKm += *v.Distance
			case workout.UnitMeters:
				p.Cardio.DistanceKm += *v.Distance / 1000
			case workout.UnitMiles:
				p.Cardio.DistanceKm += *v.Distance * 1.609344
			}
		}
	case workout.FlexibilityPayload:
		if p.Flexibility == nil {
			p.Flexibility = &storage.FlexibilityVolume{}
		}
		prev := float64(p.Flexibility.Sets)
		p.Flexibility.AvgIntensity = (p.Flexibility.AvgIntensity*prev + float64(v.Intensity)) / (prev + 1)
		p.Flexibility.Sets++
		p.Flexibility.HoldSeconds += v.DurationSeconds
	}
}

func (f *fakeStore) ListExercises(_ context.Context) ([]workout.Exercise, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []workout.Exercise
	for _, e := range f.exercises {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeStore) CreateExercise(_ context.Context, name string, category workout.Category, description string) (*workout.Exercise, error) {
	if err := workout.ValidateExercise(name, category, description); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.exercises {
		if e.Name == name {
			return nil, workout.Errorf(workout.CodeValidation, "exercise %q already exists", name)
		}
	}
	e := workout.Exercise{
		ID: uuid.New(), Name: name, Category: category,
		Description: description, CreatedAt: time.Now().UTC(),
	}
	f.exercises[e.ID] = e
	return &e, nil
}
