package session

import "tripchat/internal/domain"

// Inbound frame types.
const (
	inboundTyping     = "typing"
	inboundStopTyping = "stop_typing"
)

// inboundFrame is what clients send: a chat message (content set) or a
// presence signal (type set).
type inboundFrame struct {
	Type     string `json:"type,omitempty"`
	Content  string `json:"content,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	UserName string `json:"user_name,omitempty"`
}

// Outbound frame types.
const (
	frameHistory      = "history"
	frameMessage      = "message"
	frameTyping       = "typing"
	frameTypingStatus = "typing_status"
	frameItinerary    = "itinerary"
	frameTripUpdate   = "trip_update"
	frameError        = "error"
)

// historyFrame replays the message log and the current plan to a joiner as
// one frame.
type historyFrame struct {
	Type      string            `json:"type"`
	Messages  []domain.Message  `json:"messages"`
	Itinerary *domain.Itinerary `json:"itinerary,omitempty"`
}

type messageFrame struct {
	Type    string         `json:"type"`
	Message domain.Message `json:"message"`
}

type typingFrame struct {
	Type     string `json:"type"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name,omitempty"`
	Typing   bool   `json:"typing"`
}

// typingStatusFrame carries the assistant's progress line ("Searching for
// flights…"). An empty message clears the indicator.
type typingStatusFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type itineraryFrame struct {
	Type      string            `json:"type"`
	TripID    string            `json:"trip_id"`
	Itinerary *domain.Itinerary `json:"itinerary"`
}

type tripUpdateFrame struct {
	Type        string `json:"type"`
	TripID      string `json:"trip_id"`
	Destination string `json:"destination"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newHistoryFrame(msgs []domain.Message, doc *domain.Itinerary) historyFrame {
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return historyFrame{Type: frameHistory, Messages: msgs, Itinerary: doc}
}

func newMessageFrame(msg domain.Message) messageFrame {
	return messageFrame{Type: frameMessage, Message: msg}
}

func newTypingFrame(userID, userName string, typing bool) typingFrame {
	return typingFrame{Type: frameTyping, UserID: userID, UserName: userName, Typing: typing}
}

func newTypingStatusFrame(status string) typingStatusFrame {
	return typingStatusFrame{Type: frameTypingStatus, Message: status}
}

func newItineraryFrame(tripID string, doc *domain.Itinerary) itineraryFrame {
	return itineraryFrame{Type: frameItinerary, TripID: tripID, Itinerary: doc}
}

func newTripUpdateFrame(tripID, destination string) tripUpdateFrame {
	return tripUpdateFrame{Type: frameTripUpdate, TripID: tripID, Destination: destination}
}

func newErrorFrame(msg string) errorFrame {
	return errorFrame{Type: frameError, Message: msg}
}
