package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tripchat/internal/domain"
	"tripchat/internal/session"
)

// Server wires the REST surface and the websocket endpoint into one
// chi router.
type Server struct {
	store   domain.Store
	ws      *session.Handler
	planner domain.Planner
	logger  *slog.Logger
}

type Config struct {
	Store   domain.Store
	WS      *session.Handler
	Planner domain.Planner
	Logger  *slog.Logger
}

func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{
		store:   cfg.Store,
		ws:      cfg.WS,
		planner: cfg.Planner,
		logger:  cfg.Logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)
	r.Get("/ws/{tripID}", s.ws.ServeWS)

	r.Route("/trips", func(r chi.Router) {
		r.Post("/join", s.handleJoinTrip)
		r.Route("/{tripID}", func(r chi.Router) {
			r.Get("/messages", s.handleListMessages)
			r.Put("/itinerary", s.handlePutItinerary)
			r.Post("/suggestions/resolve", s.handleResolveSuggestion)
			r.Get("/media", s.handleListMedia)
			r.Post("/media", s.handleAddMedia)
		})
	})

	r.Post("/register-code", s.handleRegisterCode)
	r.Get("/resolve-code", s.handleResolveCode)
	r.Get("/users/{userID}/trips", s.handleUserTrips)

	return r
}

// requestLogger logs one line per request with method, path, status, and
// duration.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the error envelope used across the API.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
