package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prudhvinik1/homesync/internal/repositories"
	"github.com/prudhvinik1/homesync/internal/services"
)

type Server struct {
	auth       *services.AuthService
	sessions   repositories.SessionRepository
	devices    repositories.DeviceRepository
	households repositories.HouseholdRepository
	changes    repositories.ChangeLogRepository
}

func NewServer(
	auth *services.AuthService,
	sessions repositories.SessionRepository,
	devices repositories.DeviceRepository,
	households repositories.HouseholdRepository,
	changes repositories.ChangeLogRepository,
) *Server {
	return &Server{
		auth:       auth,
		sessions:   sessions,
		devices:    devices,
		households: households,
		changes:    changes,
	}
}

func (s *Server) Router() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	router.Post("/auth/register", s.handleRegister)
	router.Post("/auth/login", s.handleLogin)

	router.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Post("/auth/logout", s.handleLogout)
		r.Post("/households", s.handleCreateHousehold)
		r.Post("/households/join", s.handleJoinHousehold)
		r.Get("/sync/pull", s.handlePull)
		r.Post("/sync/push", s.handlePush)
	})

	return router
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Success: false, Error: message})
}
