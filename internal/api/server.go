package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/castellan-media/castellan/internal/auth"
	"github.com/castellan-media/castellan/internal/config"
	"github.com/castellan-media/castellan/internal/httputil"
	"github.com/castellan-media/castellan/internal/library"
	"github.com/castellan-media/castellan/internal/notifications"
	"github.com/castellan-media/castellan/internal/scanner"
	"github.com/castellan-media/castellan/internal/taskman"
	"github.com/castellan-media/castellan/internal/version"
)

type Server struct {
	config   *config.Config
	auth     *auth.Auth
	repo     *library.Repository
	tasks    *taskman.Manager
	scanner  *scanner.Scanner
	notifier *notifications.Sender // nil when no webhook is configured
	hub      *Hub
	router   chi.Router
}

func NewServer(cfg *config.Config, authSvc *auth.Auth, repo *library.Repository, tasks *taskman.Manager, sc *scanner.Scanner, notifier *notifications.Sender) *Server {
	s := &Server{
		config:   cfg,
		auth:     authSvc,
		repo:     repo,
		tasks:    tasks,
		scanner:  sc,
		notifier: notifier,
		hub:      NewHub(),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/api/health", s.handleHealth)
	r.Post("/api/auth/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.auth.Middleware)

		r.Get("/api/tasks", s.handleTaskStatus)
		r.Post("/api/tasks/{type}/cancel", s.handleCancelPending)

		r.Get("/api/libraries", s.handleListLibraries)
		r.Post("/api/libraries", s.handleCreateLibrary)
		r.Get("/api/libraries/{id}", s.handleGetLibrary)
		r.Delete("/api/libraries/{id}", s.handleDeleteLibrary)
		r.Post("/api/libraries/{id}/scan", s.handleScanLibrary)
		r.Get("/api/libraries/{id}/media", s.handleListMedia)
		r.Post("/api/collage", s.handleGenerateCollage)

		r.Get("/api/ws", s.handleWebSocket)
	})

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Hub exposes the websocket hub for other components to publish through.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := s.auth.Login(req.Password)
	if err != nil {
		httputil.WriteError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"token": token})
}

// runAPI pushes request-serving work through the task manager as an
// api_request task, so inbound request load shares the same admission
// accounting and status view as background work. The immediate check usually
// starts it synchronously; under load it queues behind the 5-slot limit.
func (s *Server) runAPI(ctx context.Context, name string, fn taskman.WorkFunc) (any, error) {
	return s.tasks.SubmitImmediate(taskman.TypeAPIRequest, name, fn).Wait(ctx)
}
