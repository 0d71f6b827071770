package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/claude/liftlog/internal/storage"
	"github.com/claude/liftlog/internal/workout"
	"github.com/google/uuid"
)

// newTestServer creates an httptest server that routes requests to handler
// functions keyed by path. Verifies the HTTP client sends correct paths and
// query params.
func newTestServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.URL.Path]
		if !ok {
			t.Errorf("unexpected request path: %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
}

func writeTestJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatal(err)
	}
}

// TestListSessionsParams verifies the client forwards list options as query
// parameters and parses the response array.
func TestListSessionsParams(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/sessions": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("status"); got != "COMPLETED" {
				t.Errorf("status=%q, want COMPLETED", got)
			}
			if got := r.URL.Query().Get("limit"); got != "5" {
				t.Errorf("limit=%q, want 5", got)
			}
			writeTestJSON(t, w, []workout.Session{
				{ID: uuid.New(), Name: "Push Day", Status: workout.StatusCompleted, Version: 3},
			})
		},
	})
	defer ts.Close()

	client := NewHTTPClient(ts.URL)
	status := workout.StatusCompleted
	sessions, err := client.ListSessions(context.Background(), 1,
		storage.ListSessionsOpts{Status: &status, Limit: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	if sessions[0].Version != 3 {
		t.Errorf("version=%d, want 3", sessions[0].Version)
	}
}

// TestListSessionGraphsExpand verifies the graph variant adds expand=graph.
func TestListSessionGraphsExpand(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/sessions": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("expand"); got != "graph" {
				t.Errorf("expand=%q, want graph", got)
			}
			writeTestJSON(t, w, []workout.Session{})
		},
	})
	defer ts.Close()

	client := NewHTTPClient(ts.URL)
	if _, err := client.ListSessionGraphs(context.Background(), 1, storage.ListSessionsOpts{}); err != nil {
		t.Fatal(err)
	}
}

// TestLoadSessionGraph verifies single-session loads decode the full graph,
// tagged set payloads included.
func TestLoadSessionGraph(t *testing.T) {
	id := uuid.New()
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/sessions/" + id.String(): func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, workout.Session{
				ID:     id,
				Name:   "Legs",
				Status: workout.StatusInProgress,
				Slots: []workout.Slot{{
					ID:             uuid.New(),
					SessionID:      id,
					OrderInSession: 1,
					Exercise:       workout.Exercise{Name: "Squat", Category: workout.CategoryStrength},
					Sets: []workout.Set{{
						SetNumber: 1,
						Payload:   workout.StrengthPayload{Reps: 5, WeightKg: 120},
					}},
				}},
			})
		},
	})
	defer ts.Close()

	client := NewHTTPClient(ts.URL)
	session, err := client.LoadSessionGraph(context.Background(), id, 1, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(session.Slots) != 1 || len(session.Slots[0].Sets) != 1 {
		t.Fatalf("graph shape: %+v", session)
	}
	p, ok := session.Slots[0].Sets[0].Payload.(workout.StrengthPayload)
	if !ok || p.WeightKg != 120 {
		t.Errorf("payload = %#v, want strength at 120kg", session.Slots[0].Sets[0].Payload)
	}
}

// TestLoadSessionGraphNotFound verifies a 404 surfaces as a classified
// not-found error.
func TestLoadSessionGraphNotFound(t *testing.T) {
	id := uuid.New()
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/sessions/" + id.String(): func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		},
	})
	defer ts.Close()

	client := NewHTTPClient(ts.URL)
	_, err := client.LoadSessionGraph(context.Background(), id, 1, false)
	if !workout.IsCode(err, workout.CodeNotFound) {
		t.Errorf("err = %v, want NOT_FOUND", err)
	}
}

// TestGetTrainingVolumeParams verifies the volume endpoint query parameters.
func TestGetTrainingVolumeParams(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/volume": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("bucket"); got != "1 week" {
				t.Errorf("bucket=%q, want '1 week'", got)
			}
			writeTestJSON(t, w, []storage.TrainingVolumePeriod{
				{Period: "2026-08-17", Sessions: 4, TrainingMinutes: 230},
			})
		},
	})
	defer ts.Close()

	client := NewHTTPClient(ts.URL)
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	periods, err := client.GetTrainingVolume(context.Background(), start, end, "1 week", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(periods) != 1 || periods[0].Sessions != 4 {
		t.Errorf("periods = %+v", periods)
	}
}

// TestHTTPClientServerError verifies the client returns an error on non-200
// responses.
func TestHTTPClientServerError(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/exercises": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"database down"}`))
		},
	})
	defer ts.Close()

	client := NewHTTPClient(ts.URL)
	if _, err := client.ListExercises(context.Background()); err == nil {
		t.Fatal("expected error for 500 response")
	}
}
