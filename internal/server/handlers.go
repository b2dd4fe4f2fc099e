package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"tripchat/internal/domain"
	"tripchat/internal/itinerary"
)

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "tripID")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "validation_error", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	msgs, err := s.store.Messages(r.Context(), tripID, limit)
	if err != nil {
		s.logger.Error("list messages failed", "trip", tripID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not load messages")
		return
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

// handlePutItinerary replaces a trip's itinerary with a client-supplied
// document. The payload is normalized before persisting; an invalid shape
// is a validation error, not a server error.
func (s *Server) handlePutItinerary(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "tripID")

	var raw any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "request body is not valid JSON")
		return
	}

	doc, err := itinerary.Normalize(raw)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidItinerary) {
			writeError(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "could not normalize itinerary")
		return
	}

	if err := s.store.SetItinerary(r.Context(), tripID, doc); err != nil {
		s.logger.Error("persist itinerary failed", "trip", tripID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not save itinerary")
		return
	}
	s.ws.NotifyItinerary(tripID, doc)
	writeJSON(w, http.StatusOK, map[string]any{"itinerary": doc})
}

type resolveSuggestionRequest struct {
	Suggestion     domain.Suggestion `json:"suggestion"`
	CheckConflicts bool              `json:"check_conflicts"`
}

// handleResolveSuggestion merges one suggestion into the trip's itinerary.
// With check_conflicts set and a planner available, a detected clash is
// returned as resolution options instead of being applied; a failed check
// never blocks the merge.
func (s *Server) handleResolveSuggestion(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "tripID")

	var req resolveSuggestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "request body is not valid JSON")
		return
	}
	if strings.TrimSpace(req.Suggestion.Title) == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "suggestion title is required")
		return
	}

	current, err := s.store.Itinerary(r.Context(), tripID)
	if err != nil {
		s.logger.Error("load itinerary failed", "trip", tripID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not load itinerary")
		return
	}
	if current == nil {
		current = &domain.Itinerary{}
	}

	merged := itinerary.Apply(current, req.Suggestion)

	if req.CheckConflicts && s.planner != nil {
		if msg, conflict := s.checkConflict(r, current, merged, req.Suggestion); conflict {
			writeJSON(w, http.StatusOK, map[string]any{
				"conflict": true,
				"message":  msg,
				"options": []domain.ResolutionOption{
					{ID: "add-anyway", Label: "Add it anyway", Itinerary: merged},
					{ID: "keep-current", Label: "Keep the current plan"},
				},
			})
			return
		}
	}

	if err := s.store.SetItinerary(r.Context(), tripID, merged); err != nil {
		s.logger.Error("persist itinerary failed", "trip", tripID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not save itinerary")
		return
	}
	s.ws.NotifyItinerary(tripID, merged)
	writeJSON(w, http.StatusOK, map[string]any{"itinerary": merged})
}

// checkConflict asks the planner whether the suggestion clashes with the
// existing plan. Any failure is treated as "no conflict".
func (s *Server) checkConflict(r *http.Request, current, merged *domain.Itinerary, sug domain.Suggestion) (string, bool) {
	currentJSON, _ := json.Marshal(current)
	prompt := fmt.Sprintf(
		"A traveler wants to add %q (day: %q, time: %q) to this itinerary:\n%s\n"+
			"Does it clash with an existing activity (same time slot or impossible travel)? "+
			"Answer with CONFLICT: <one short sentence> or OK.",
		sug.Title, sug.DayLabel, sug.TimeLabel, currentJSON,
	)

	resp, err := s.planner.Chat(r.Context(), domain.ChatRequest{
		Messages: []domain.ChatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		s.logger.Warn("conflict check failed", "err", err)
		return "", false
	}
	text := strings.TrimSpace(resp.Content)
	upper := strings.ToUpper(text)
	if !strings.HasPrefix(upper, "CONFLICT") {
		return "", false
	}
	msg := strings.TrimSpace(strings.TrimPrefix(text[len("CONFLICT"):], ":"))
	if msg == "" {
		msg = "This may clash with an existing activity."
	}
	return msg, true
}

type registerCodeRequest struct {
	TripID string `json:"trip_id"`
}

func (s *Server) handleRegisterCode(w http.ResponseWriter, r *http.Request) {
	var req registerCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.TripID) == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "trip_id is required")
		return
	}

	code, err := s.store.RegisterCode(r.Context(), req.TripID)
	if err != nil {
		s.logger.Error("register code failed", "trip", req.TripID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not register a join code")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"trip_id": req.TripID, "code": code})
}

func (s *Server) handleResolveCode(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "code is required")
		return
	}

	tripID, err := s.store.ResolveCode(r.Context(), code)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "unknown join code")
		return
	}
	if err != nil {
		s.logger.Error("resolve code failed", "code", code, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not resolve code")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"trip_id": tripID, "code": code})
}

type joinTripRequest struct {
	TripID      string `json:"trip_id"`
	Code        string `json:"code"`
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Destination string `json:"destination"`
}

// handleJoinTrip records a trip membership, accepting either a trip id or
// a join code.
func (s *Server) handleJoinTrip(w http.ResponseWriter, r *http.Request) {
	var req joinTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "request body is not valid JSON")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "user_id is required")
		return
	}

	tripID := strings.TrimSpace(req.TripID)
	if tripID == "" && req.Code != "" {
		resolved, err := s.store.ResolveCode(r.Context(), strings.TrimSpace(req.Code))
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "unknown join code")
			return
		}
		if err != nil {
			s.logger.Error("resolve code failed", "code", req.Code, "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "could not resolve code")
			return
		}
		tripID = resolved
	}
	if tripID == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "trip_id or code is required")
		return
	}

	m := domain.Membership{
		TripID:      tripID,
		UserID:      req.UserID,
		Name:        req.Name,
		Destination: req.Destination,
	}
	if err := s.store.AddMembership(r.Context(), m); err != nil {
		s.logger.Error("add membership failed", "trip", tripID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not join trip")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trip_id": tripID, "user_id": req.UserID})
}

func (s *Server) handleUserTrips(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	trips, err := s.store.UserTrips(r.Context(), userID)
	if err != nil {
		s.logger.Error("list user trips failed", "user", userID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not load trips")
		return
	}
	if trips == nil {
		trips = []domain.Membership{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"trips": trips})
}

type addMediaRequest struct {
	URI  string `json:"uri"`
	Type string `json:"type"`
}

func (s *Server) handleAddMedia(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "tripID")

	var req addMediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.URI) == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "uri is required")
		return
	}

	item, err := s.store.AddMedia(r.Context(), tripID, req.URI, req.Type)
	if err != nil {
		s.logger.Error("add media failed", "trip", tripID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not save media")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"media": item})
}

func (s *Server) handleListMedia(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "tripID")
	items, err := s.store.TripMedia(r.Context(), tripID)
	if err != nil {
		s.logger.Error("list media failed", "trip", tripID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not load media")
		return
	}
	if items == nil {
		items = []domain.MediaItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"media": items})
}
