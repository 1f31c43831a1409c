// Package api exposes the classroom operations over HTTP. Thin
// adapters only: decode, authenticate, authorize, delegate, encode.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dilshad08/virtual-classroom/internal/metrics"
	"github.com/dilshad08/virtual-classroom/pkg/interfaces"
	"github.com/dilshad08/virtual-classroom/pkg/types"
)

// HealthChecker reports component health for the /health endpoint.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Stats exposes broadcaster statistics for health reporting.
type Stats interface {
	Stats() map[string]int
}

// Server is the HTTP adapter over the session core.
type Server struct {
	service  interfaces.ClassroomService
	identity interfaces.IdentityProvider
	authz    interfaces.Authorizer
	health   HealthChecker
	stats    Stats
	router   chi.Router
}

// NewServer builds the router with all API routes.
func NewServer(service interfaces.ClassroomService, identity interfaces.IdentityProvider,
	authz interfaces.Authorizer, health HealthChecker, stats Stats) *Server {
	s := &Server{
		service:  service,
		identity: identity,
		authz:    authz,
		health:   health,
		stats:    stats,
	}

	r := chi.NewRouter()
	r.Use(requestLogger)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(jsonContent)

		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Get("/auth/profile", s.handleProfile)
			r.Post("/classrooms", s.handleCreateClassroom)
			r.Post("/classrooms/{classroomID}/start", s.handleStartClass)
			r.Post("/classrooms/{classroomID}/end", s.handleEndClass)
			r.Post("/classrooms/{classroomID}/join", s.handleJoin)
			r.Post("/classrooms/{classroomID}/leave", s.handleLeave)
			r.Get("/classrooms/{classroomID}/history", s.handleHistory)
		})
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type registerRequest struct {
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Name     string     `json:"name"`
	Role     types.Role `json:"role,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createClassroomRequest struct {
	Name string `json:"name"`
}

type messageResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, types.ErrValidation, "Invalid JSON")
		return
	}

	user, err := s.identity.Register(r.Context(), req.Email, req.Password, req.Name, req.Role)
	if err != nil {
		s.writeError(w, err, "Registration failed")
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"user":    user,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, types.ErrValidation, "Invalid JSON")
		return
	}

	token, err := s.identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, err, "Login failed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"access_token": token})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())
	s.writeJSON(w, http.StatusOK, identity)
}

func (s *Server) handleCreateClassroom(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())
	if err := s.authz.Require(identity.Role, types.RoleTeacher); err != nil {
		s.writeError(w, err, "Only teachers can create classrooms")
		return
	}

	var req createClassroomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, types.ErrValidation, "Invalid JSON")
		return
	}

	classroom, err := s.service.CreateClassroom(r.Context(), req.Name, identity.UserID)
	if err != nil {
		s.writeError(w, err, "Failed to create classroom")
		return
	}

	s.writeJSON(w, http.StatusCreated, classroom)
}

func (s *Server) handleStartClass(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())
	if err := s.authz.Require(identity.Role, types.RoleTeacher); err != nil {
		s.writeError(w, err, "Only teachers can start a class")
		return
	}

	sessionID, err := s.service.StartClass(r.Context(), chi.URLParam(r, "classroomID"), identity.UserID)
	if err != nil {
		s.writeError(w, err, "Failed to start class")
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{
		Message:   "Class started successfully",
		SessionID: sessionID,
	})
}

func (s *Server) handleEndClass(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())
	if err := s.authz.Require(identity.Role, types.RoleTeacher); err != nil {
		s.writeError(w, err, "Only teachers can end a class")
		return
	}

	sessionID, err := s.service.EndClass(r.Context(), chi.URLParam(r, "classroomID"), identity.UserID)
	if err != nil {
		s.writeError(w, err, "Failed to end class")
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{
		Message:   "Class ended successfully",
		SessionID: sessionID,
	})
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	message, err := s.service.JoinClassroom(r.Context(), chi.URLParam(r, "classroomID"), identity)
	if err != nil {
		s.writeError(w, err, "Failed to join classroom")
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: message})
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	message, err := s.service.LeaveClassroom(r.Context(), chi.URLParam(r, "classroomID"), identity)
	if err != nil {
		s.writeError(w, err, "Failed to leave classroom")
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: message})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())
	if err := s.authz.Require(identity.Role, types.RoleTeacher, types.RoleAdmin); err != nil {
		s.writeError(w, err, "History is restricted to teachers and admins")
		return
	}

	history, err := s.service.GetHistory(r.Context(), chi.URLParam(r, "classroomID"))
	if err != nil {
		s.writeError(w, err, "Failed to load history")
		return
	}
	if history == nil {
		history = []*types.SessionHistory{}
	}

	s.writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	storeStatus := "healthy"
	code := http.StatusOK

	if err := s.health.HealthCheck(ctx); err != nil {
		status = "unhealthy"
		storeStatus = err.Error()
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	s.writeJSON(w, code, map[string]any{
		"status":    status,
		"store":     storeStatus,
		"channels":  s.stats.Stats(),
		"timestamp": time.Now(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps error kinds to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error, message string) {
	code := statusForError(err)
	s.writeJSON(w, code, errorResponse{
		Error:   err.Error(),
		Code:    code,
		Message: message,
	})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrInvalidState),
		errors.Is(err, types.ErrAlreadyJoined),
		errors.Is(err, types.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, types.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, types.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, types.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
