package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"tailscale.com/client/local"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store   Store
	log     *slog.Logger
	limiter *rateLimiter
	lc      *local.Client
	router  chi.Router
}

// New creates a new Server with all routes configured. mutationsPerMinute
// and burst bound the per-user token bucket on mutating routes.
func New(store Store, log *slog.Logger, mutationsPerMinute, burst int) *Server {
	s := &Server{
		store:   store,
		log:     log,
		limiter: newRateLimiter(mutationsPerMinute, burst),
		router:  chi.NewRouter(),
	}
	s.routes()
	return s
}

// SetTailscale enables WhoIs identity resolution via the tsnet local client.
// Without it, every request maps to the local dev user.
func (s *Server) SetTailscale(lc *local.Client) {
	s.lc = lc
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.Identity)
		r.Use(s.RateLimitMutations)

		r.Get("/me", s.handleMe)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleCreateSession)
			r.Get("/", s.handleListSessions)
			r.Get("/{id}", s.handleGetSession)
			r.Patch("/{id}", s.handleUpdateSession)
			r.Delete("/{id}", s.handleDeleteSession)
			r.Post("/{id}/actions", s.handleSessionAction)
			r.Post("/{id}/restore", s.handleRestoreSession)
			r.Post("/{id}/slots", s.handleCreateSlot)
		})

		r.Route("/slots", func(r chi.Router) {
			r.Patch("/{id}", s.handleUpdateSlot)
			r.Delete("/{id}", s.handleDeleteSlot)
			r.Post("/{id}/restore", s.handleRestoreSlot)
			r.Post("/{id}/sets", s.handleAddSet)
		})

		r.Route("/sets", func(r chi.Router) {
			r.Patch("/{id}", s.handleUpdateSet)
			r.Delete("/{id}", s.handleDeleteSet)
			r.Post("/{id}/restore", s.handleRestoreSet)
		})

		r.Get("/exercises", s.handleListExercises)
		r.Post("/exercises", s.handleCreateExercise)

		r.Get("/volume", s.handleTrainingVolume)
	})
}
