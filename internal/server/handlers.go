package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/claude/liftlog/internal/storage"
	"github.com/claude/liftlog/internal/workout"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

// --- Sessions ---

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := s.store.CreateSession(r.Context(), userIDFromContext(r), req.Name, req.Description)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	opts := storage.ListSessionsOpts{
		IncludeDeleted: r.URL.Query().Get("include_deleted") == "1",
	}
	if v := r.URL.Query().Get("status"); v != "" {
		st := workout.Status(v)
		if !st.Valid() {
			s.writeError(w, workout.Errorf(workout.CodeValidation, "unknown status %q", v))
			return
		}
		opts.Status = &st
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		opts.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		opts.Offset, _ = strconv.Atoi(v)
	}

	uid := userIDFromContext(r)
	var sessions []workout.Session
	var err error
	if r.URL.Query().Get("expand") == "graph" {
		sessions, err = s.store.ListSessionGraphs(r.Context(), uid, opts)
	} else {
		sessions, err = s.store.ListSessions(r.Context(), uid, opts)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	if sessions == nil {
		sessions = []workout.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	includeDeleted := r.URL.Query().Get("include_deleted") == "1"
	session, err := s.store.LoadSessionGraph(r.Context(), id, userIDFromContext(r), includeDeleted)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		workout.SessionMetaUpdate
		ExpectedVersion *int64 `json:"expected_version"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ExpectedVersion == nil {
		s.writeError(w, workout.Errorf(workout.CodeValidation, "expected_version is required"))
		return
	}
	session, err := s.store.UpdateSessionMeta(r.Context(), id, userIDFromContext(r),
		req.SessionMetaUpdate, *req.ExpectedVersion)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleSessionAction(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Action          string `json:"action"`
		ExpectedVersion *int64 `json:"expected_version"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	action, err := workout.ParseAction(req.Action)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if req.ExpectedVersion == nil {
		s.writeError(w, workout.Errorf(workout.CodeValidation, "expected_version is required"))
		return
	}
	session, err := s.store.ApplySessionAction(r.Context(), id, userIDFromContext(r), action, *req.ExpectedVersion)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	version, ok := s.expectedVersionQuery(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteSession(r.Context(), id, userIDFromContext(r), version); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRestoreSession(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	session, err := s.store.RestoreSession(r.Context(), id, userIDFromContext(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// --- Slots ---

func (s *Server) handleCreateSlot(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		ExerciseID     uuid.UUID `json:"exercise_id"`
		OrderInSession int       `json:"order_in_session"`
		Notes          string    `json:"notes"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	slot, err := s.store.CreateSlot(r.Context(), sessionID, userIDFromContext(r),
		req.ExerciseID, req.OrderInSession, req.Notes)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, slot)
}

func (s *Server) handleUpdateSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		workout.SlotUpdate
		ExpectedVersion *int64 `json:"expected_version"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ExpectedVersion == nil {
		s.writeError(w, workout.Errorf(workout.CodeValidation, "expected_version is required"))
		return
	}
	slot, err := s.store.UpdateSlot(r.Context(), id, userIDFromContext(r), req.SlotUpdate, *req.ExpectedVersion)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

func (s *Server) handleDeleteSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	version, ok := s.expectedVersionQuery(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteSlot(r.Context(), id, userIDFromContext(r), version); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRestoreSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	slot, err := s.store.RestoreSlot(r.Context(), id, userIDFromContext(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

// --- Sets ---

// setPayloadRequest is the wire shape of a set payload: a category tag plus
// exactly one variant object.
type setPayloadRequest struct {
	Category    string                      `json:"category"`
	Strength    *workout.StrengthPayload    `json:"strength,omitempty"`
	Cardio      *workout.CardioPayload      `json:"cardio,omitempty"`
	Flexibility *workout.FlexibilityPayload `json:"flexibility,omitempty"`
}

func (p setPayloadRequest) empty() bool {
	return p.Category == "" && p.Strength == nil && p.Cardio == nil && p.Flexibility == nil
}

func (p setPayloadRequest) payload() (workout.SetPayload, error) {
	category, err := workout.ParseCategory(p.Category)
	if err != nil {
		return nil, err
	}
	return workout.PayloadFromParts(category, p.Strength, p.Cardio, p.Flexibility)
}

func (s *Server) handleAddSet(w http.ResponseWriter, r *http.Request) {
	slotID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		setPayloadRequest
		SetNumber       int    `json:"set_number"`
		RestSeconds     int    `json:"rest_seconds"`
		Notes           string `json:"notes"`
		Completed       bool   `json:"completed"`
		ExpectedVersion *int64 `json:"expected_version"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ExpectedVersion == nil {
		s.writeError(w, workout.Errorf(workout.CodeValidation, "expected_version is required"))
		return
	}
	payload, err := req.payload()
	if err != nil {
		s.writeError(w, err)
		return
	}
	set, err := s.store.AddSet(r.Context(), slotID, userIDFromContext(r), workout.NewSet{
		SetNumber:   req.SetNumber,
		RestSeconds: req.RestSeconds,
		Notes:       req.Notes,
		Completed:   req.Completed,
		Payload:     payload,
	}, *req.ExpectedVersion)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, set)
}

func (s *Server) handleUpdateSet(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		setPayloadRequest
		RestSeconds     *int    `json:"rest_seconds"`
		Notes           *string `json:"notes"`
		Completed       *bool   `json:"completed"`
		ExpectedVersion *int64  `json:"expected_version"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ExpectedVersion == nil {
		s.writeError(w, workout.Errorf(workout.CodeValidation, "expected_version is required"))
		return
	}
	upd := workout.SetUpdate{
		RestSeconds: req.RestSeconds,
		Notes:       req.Notes,
		Completed:   req.Completed,
	}
	if !req.empty() {
		payload, err := req.payload()
		if err != nil {
			s.writeError(w, err)
			return
		}
		upd.Payload = payload
	}
	set, err := s.store.UpdateSet(r.Context(), id, userIDFromContext(r), upd, *req.ExpectedVersion)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (s *Server) handleDeleteSet(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	version, ok := s.expectedVersionQuery(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteSet(r.Context(), id, userIDFromContext(r), version); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRestoreSet(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	set, err := s.store.RestoreSet(r.Context(), id, userIDFromContext(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

// --- Exercises ---

func (s *Server) handleListExercises(w http.ResponseWriter, r *http.Request) {
	exercises, err := s.store.ListExercises(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if exercises == nil {
		exercises = []workout.Exercise{}
	}
	writeJSON(w, http.StatusOK, exercises)
}

func (s *Server) handleCreateExercise(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Category    string `json:"category"`
		Description string `json:"description"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	category, err := workout.ParseCategory(req.Category)
	if err != nil {
		s.writeError(w, err)
		return
	}
	exercise, err := s.store.CreateExercise(r.Context(), req.Name, category, req.Description)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, exercise)
}

// --- Training volume ---

func (s *Server) handleTrainingVolume(w http.ResponseWriter, r *http.Request) {
	end := time.Now()
	start := end.AddDate(0, -6, 0)
	var err error
	if v := r.URL.Query().Get("end"); v != "" {
		if end, err = time.Parse(time.RFC3339, v); err != nil {
			s.writeError(w, workout.Errorf(workout.CodeValidation, "invalid end: %v", err))
			return
		}
	}
	if v := r.URL.Query().Get("start"); v != "" {
		if start, err = time.Parse(time.RFC3339, v); err != nil {
			s.writeError(w, workout.Errorf(workout.CodeValidation, "invalid start: %v", err))
			return
		}
	}
	bucket := r.URL.Query().Get("bucket")
	if bucket == "" {
		bucket = "1 month"
	}

	periods, err := s.store.GetTrainingVolume(r.Context(), start, end, bucket, userIDFromContext(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if periods == nil {
		periods = []storage.TrainingVolumePeriod{}
	}
	writeJSON(w, http.StatusOK, periods)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to their HTTP status; anything unclassified
// is logged and becomes a 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	if code := workout.CodeOf(err); code != "" {
		writeJSON(w, code.HTTPStatus(), map[string]string{
			"code":  string(code),
			"error": err.Error(),
		})
		return
	}
	if s.log != nil {
		s.log.Error("internal error", "error", err)
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

// expectedVersionQuery reads the mandatory expected_version query parameter
// used by DELETE routes, which carry no body.
func (s *Server) expectedVersionQuery(w http.ResponseWriter, r *http.Request) (int64, bool) {
	v := r.URL.Query().Get("expected_version")
	if v == "" {
		s.writeError(w, workout.Errorf(workout.CodeValidation, "expected_version query parameter is required"))
		return 0, false
	}
	version, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		s.writeError(w, workout.Errorf(workout.CodeValidation, "expected_version must be an integer"))
		return 0, false
	}
	return version, true
}
