// Package httpapi is the HTTP Surface (C8): out-of-band room create/join/
// fetch before a persistent session exists, plus liveness/readiness
// probes. Generalized from the teacher's internal/server/routes.go
// (gorilla/mux routing, a hand-rolled CORS middleware) — the CORS
// middleware is replaced by github.com/rs/cors because spec.md §6 now
// requires a configurable comma-separated allowlist instead of the
// teacher's hardcoded wildcard, and payload validation is delegated to
// github.com/go-playground/validator/v10 instead of ad hoc length checks.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/cmacnamara/prompt-guessr/internal"
	"github.com/cmacnamara/prompt-guessr/internal/imagegen"
)

// Service is the subset of *game.Service the HTTP surface depends on.
type Service interface {
	CreateRoom(ctx context.Context, displayName string, settings internal.GameSettings) (*internal.Room, string, error)
	JoinRoom(ctx context.Context, code, displayName string) (*internal.Room, string, error)
	GetRoomByCode(ctx context.Context, code string) (*internal.Room, error)
}

// Store is the subset of internal/store.Store the health/ready probes
// need — just enough to confirm the KV store is reachable.
type Store interface {
	Ping(ctx context.Context) error
}

type Server struct {
	service   Service
	store     Store
	imagePort *imagegen.Port
	logger    *zap.Logger
	validate  *validator.Validate

	corsOrigins []string
}

// New builds the mux.Router with CORS and structured request logging
// applied, per spec.md §6 and SPEC_FULL.md's ambient-stack section.
// imagePort is consulted only by /ready, to report whether the image
// generation backend finished loading. isProduction gates the CORS
// wildcard allowance per spec.md §6: a wildcard is only honored in
// non-production.
func New(service Service, store Store, imagePort *imagegen.Port, corsOrigins []string, isProduction bool, logger *zap.Logger) http.Handler {
	logger = logger.Named("httpapi")

	allowAll := len(corsOrigins) == 1 && corsOrigins[0] == "*"
	if allowAll && isProduction {
		logger.Warn("CORS wildcard origin is not permitted in production; rejecting all origins")
		corsOrigins = nil
		allowAll = false
	}

	s := &Server{
		service:     service,
		store:       store,
		imagePort:   imagePort,
		logger:      logger,
		validate:    validator.New(),
		corsOrigins: corsOrigins,
	}

	router := mux.NewRouter()
	router.Use(s.loggingMiddleware)
	router.HandleFunc("/rooms/create", s.handleCreateRoom).Methods(http.MethodPost)
	router.HandleFunc("/rooms/join", s.handleJoinRoom).Methods(http.MethodPost)
	router.HandleFunc("/rooms/{code}", s.handleGetRoom).Methods(http.MethodGet)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowOriginFunc:  func(origin string) bool { return allowAll },
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: !allowAll,
	})
	return corsMiddleware.Handler(router)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("request", zap.String("method", r.Method), zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}

type createRoomRequest struct {
	DisplayName string               `json:"displayName" validate:"required,min=1,max=40"`
	Settings    *internal.GameSettings `json:"settings,omitempty"`
}

type joinRoomRequest struct {
	RoomCode    string `json:"roomCode" validate:"required,min=4,max=8"`
	DisplayName string `json:"displayName" validate:"required,min=1,max=40"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "playerName is required")
		return
	}

	var settings internal.GameSettings
	if req.Settings != nil {
		settings = *req.Settings
	}

	room, playerId, err := s.service.CreateRoom(r.Context(), req.DisplayName, settings)
	if err != nil {
		s.writeGameError(w, err, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"roomId":   room.Id,
		"roomCode": room.Code,
		"playerId": playerId,
	})
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	var req joinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	req.RoomCode = strings.ToUpper(strings.TrimSpace(req.RoomCode))
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "roomCode and displayName are required")
		return
	}

	room, playerId, err := s.service.JoinRoom(r.Context(), req.RoomCode, req.DisplayName)
	if err != nil {
		s.writeGameError(w, err, http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"roomId":   room.Id,
		"roomCode": room.Code,
		"playerId": playerId,
	})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(mux.Vars(r)["code"])
	room, err := s.service.GetRoomByCode(r.Context(), code)
	if err != nil {
		s.writeGameError(w, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*internal.Room{"room": room})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	if s.imagePort == nil {
		s.logger.Warn("readiness check failed: image generation port not configured")
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) writeGameError(w http.ResponseWriter, err error, defaultStatus int) {
	status := defaultStatus
	message := err.Error()
	if gameErr, ok := internal.AsGameError(err); ok {
		message = gameErr.Message
		switch gameErr.Kind {
		case internal.ErrRoomNotFound:
			status = http.StatusNotFound
		case internal.ErrRoomFull, internal.ErrGameInProgress, internal.ErrValidation:
			status = http.StatusBadRequest
		case internal.ErrCodeExhaustion, internal.ErrStoreUnavailable:
			status = http.StatusInternalServerError
		}
	}
	writeError(w, status, message)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
