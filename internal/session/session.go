package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"tripchat/internal/assistant"
	"tripchat/internal/domain"
)

const (
	assistantMention    = "@assistant"
	assistantName       = "Assistant"
	assistantFallback   = "Sorry, I couldn't come up with a response. Please try again."
	defaultStatusBuffer = 8
	assistantRunTimeout = 3 * time.Minute
	writeTimeout        = 10 * time.Second
)

// Handler owns the per-trip websocket sessions: it upgrades connections,
// replays history, relays chat and presence, and runs the assistant when
// mentioned.
type Handler struct {
	registry     *Registry
	store        domain.Store
	planner      domain.Planner
	orchestrator *assistant.Orchestrator
	prompts      *assistant.PromptBuilder
	logger       *slog.Logger
	upgrader     websocket.Upgrader
	statusBuffer int
	historyLimit int
}

type HandlerConfig struct {
	Registry     *Registry
	Store        domain.Store
	Planner      domain.Planner
	Orchestrator *assistant.Orchestrator
	Prompts      *assistant.PromptBuilder
	Logger       *slog.Logger
	StatusBuffer int
	HistoryLimit int
}

func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.StatusBuffer <= 0 {
		cfg.StatusBuffer = defaultStatusBuffer
	}
	return &Handler{
		registry:     cfg.Registry,
		store:        cfg.Store,
		planner:      cfg.Planner,
		orchestrator: cfg.Orchestrator,
		prompts:      cfg.Prompts,
		logger:       cfg.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		statusBuffer: cfg.StatusBuffer,
		historyLimit: cfg.HistoryLimit,
	}
}

// wsConn wraps a websocket connection with a write lock so broadcasts and
// the read loop's error frames never interleave writes.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) Send(frame any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(frame)
}

// ServeWS upgrades GET /ws/{tripID}?user_id=&user_name= and runs the
// connection's read loop until the client goes away.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "tripID")
	if tripID == "" {
		http.Error(w, "trip id required", http.StatusBadRequest)
		return
	}
	userID := r.URL.Query().Get("user_id")
	userName := r.URL.Query().Get("user_name")

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "trip", tripID, "err", err)
		return
	}
	conn := &wsConn{conn: ws}

	err = h.registry.Join(tripID, conn, func() (any, error) {
		msgs, err := h.store.Messages(r.Context(), tripID, h.historyLimit)
		if err != nil {
			return nil, err
		}
		doc, err := h.store.Itinerary(r.Context(), tripID)
		if err != nil {
			return nil, err
		}
		return newHistoryFrame(msgs, doc), nil
	})
	if err != nil {
		h.logger.Error("join failed", "trip", tripID, "err", err)
		ws.Close()
		return
	}

	h.logger.Info("client joined", "trip", tripID, "user", userID, "members", h.registry.Members(tripID))
	defer func() {
		h.registry.Leave(tripID, conn)
		ws.Close()
		h.logger.Info("client left", "trip", tripID, "user", userID)
	}()

	for {
		var frame inboundFrame
		if err := ws.ReadJSON(&frame); err != nil {
			// Malformed payloads answer with an error frame; anything else
			// means the transport is gone.
			switch err.(type) {
			case *json.SyntaxError, *json.UnmarshalTypeError:
				conn.Send(newErrorFrame("invalid message payload"))
				continue
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Debug("read error", "trip", tripID, "err", err)
				}
				return
			}
		}
		h.dispatch(r.Context(), tripID, userID, userName, conn, frame)
	}
}

func (h *Handler) dispatch(ctx context.Context, tripID, userID, userName string, conn *wsConn, frame inboundFrame) {
	switch frame.Type {
	case inboundTyping, inboundStopTyping:
		uid := frame.UserID
		if uid == "" {
			uid = userID
		}
		name := frame.UserName
		if name == "" {
			name = userName
		}
		h.registry.Broadcast(tripID, newTypingFrame(uid, name, frame.Type == inboundTyping), conn)
		return
	case "":
		// chat message, handled below
	default:
		conn.Send(newErrorFrame("unknown frame type " + frame.Type))
		return
	}

	content := strings.TrimSpace(frame.Content)
	if content == "" {
		conn.Send(newErrorFrame("message content required"))
		return
	}

	msg := domain.Message{
		TripID:   tripID,
		UserID:   userID,
		UserName: userName,
		Content:  content,
	}
	if frame.UserID != "" {
		msg.UserID = frame.UserID
	}
	if frame.UserName != "" {
		msg.UserName = frame.UserName
	}

	saved, err := h.publishMessage(ctx, msg)
	if err != nil {
		h.logger.Error("persist message failed", "trip", tripID, "err", err)
		conn.Send(newErrorFrame("could not save your message"))
		return
	}

	if strings.Contains(strings.ToLower(content), assistantMention) {
		go h.runAssistant(tripID, saved)
	}
}

// publishMessage persists a message and broadcasts it to the room as one
// atomic step against joins.
func (h *Handler) publishMessage(ctx context.Context, msg domain.Message) (domain.Message, error) {
	var saved domain.Message
	err := h.registry.Publish(msg.TripID, func() (any, error) {
		var err error
		saved, err = h.store.AppendMessage(ctx, msg)
		if err != nil {
			return nil, err
		}
		return newMessageFrame(saved), nil
	})
	return saved, err
}

// runAssistant executes one assistant invocation in the background:
// stream progress, run the planner loop, apply any itinerary or
// destination update, then publish the assistant's reply.
func (h *Handler) runAssistant(tripID string, trigger domain.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), assistantRunTimeout)
	defer cancel()

	if h.orchestrator == nil || h.planner == nil {
		h.publishAssistantMessage(ctx, tripID, "The assistant is not configured on this server.", nil)
		return
	}

	trip, err := h.store.Trip(ctx, tripID)
	if err != nil {
		h.logger.Error("load trip failed", "trip", tripID, "err", err)
		return
	}
	doc, err := h.store.Itinerary(ctx, tripID)
	if err != nil {
		h.logger.Error("load itinerary failed", "trip", tripID, "err", err)
		return
	}
	history, err := h.store.Messages(ctx, tripID, h.historyLimit)
	if err != nil {
		h.logger.Error("load history failed", "trip", tripID, "err", err)
		return
	}
	// The triggering message is already persisted; drop it from history so
	// it appears once, as the current user turn.
	if n := len(history); n > 0 && history[n-1].ID == trigger.ID {
		history = history[:n-1]
	}

	prompt := h.prompts.Build(assistant.TripContext{
		TripID:      tripID,
		Destination: trip.Destination,
		Itinerary:   doc,
	}, history, trigger.Content)

	status := make(chan string, h.statusBuffer)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for s := range status {
			h.registry.Broadcast(tripID, newTypingStatusFrame(s), nil)
		}
	}()

	raw := h.orchestrator.Run(ctx, prompt, status)

	// Stop the drainer before applying results, so every progress frame is
	// on the wire ahead of the itinerary and reply frames.
	close(status)
	<-drained
	h.registry.Broadcast(tripID, newTypingStatusFrame(""), nil)

	parsed := assistant.ParseResponse(raw)

	// One strict retry when an itinerary update was promised but its
	// payload did not parse.
	if parsed.Intent == assistant.IntentUpdateItinerary && parsed.Itinerary == nil {
		h.logger.Warn("itinerary payload unparseable, retrying", "trip", tripID)
		retry := h.prompts.BuildStrictRetry(prompt, raw)
		resp, err := h.planner.Chat(ctx, domain.ChatRequest{Messages: retry})
		if err == nil {
			reparsed := assistant.ParseResponse(resp.Content)
			if reparsed.Itinerary != nil {
				parsed.Itinerary = reparsed.Itinerary
			}
		} else {
			h.logger.Warn("strict retry failed", "trip", tripID, "err", err)
		}
	}

	if parsed.Itinerary != nil {
		if err := h.store.SetItinerary(ctx, tripID, parsed.Itinerary); err != nil {
			h.logger.Error("persist itinerary failed", "trip", tripID, "err", err)
		} else {
			h.registry.Broadcast(tripID, newItineraryFrame(tripID, parsed.Itinerary), nil)
		}
	}
	if parsed.Destination != "" && parsed.Destination != trip.Destination {
		if err := h.store.SetDestination(ctx, tripID, parsed.Destination); err != nil {
			h.logger.Error("persist destination failed", "trip", tripID, "err", err)
		} else {
			h.registry.Broadcast(tripID, newTripUpdateFrame(tripID, parsed.Destination), nil)
		}
	}

	text := strings.TrimSpace(parsed.Message)
	if text == "" {
		text = strings.TrimSpace(raw)
	}
	if text == "" {
		text = assistantFallback
	}
	h.publishAssistantMessage(ctx, tripID, text, parsed.Suggestions)
}

func (h *Handler) publishAssistantMessage(ctx context.Context, tripID, text string, suggestions []domain.Suggestion) {
	_, err := h.publishMessage(ctx, domain.Message{
		TripID:      tripID,
		UserName:    assistantName,
		Content:     text,
		IsAI:        true,
		Suggestions: suggestions,
	})
	if err != nil {
		h.logger.Error("persist assistant message failed", "trip", tripID, "err", err)
	}
}

// NotifyItinerary pushes a fresh itinerary document to a trip's room.
// Used by the REST handlers after direct edits.
func (h *Handler) NotifyItinerary(tripID string, doc *domain.Itinerary) {
	h.registry.Broadcast(tripID, newItineraryFrame(tripID, doc), nil)
}

// NotifyTrip pushes a destination change to a trip's room.
func (h *Handler) NotifyTrip(tripID, destination string) {
	h.registry.Broadcast(tripID, newTripUpdateFrame(tripID, destination), nil)
}
