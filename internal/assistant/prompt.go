package assistant

import (
	"encoding/json"
	"fmt"
	"strings"

	"tripchat/internal/domain"
)

const defaultHistoryLimit = 20

// TripContext is the trip state injected into the planner's first turn.
type TripContext struct {
	TripID      string
	Destination string
	Itinerary   *domain.Itinerary
}

// PromptBuilder assembles planner conversations: the protocol system
// prompt, the injected trip context, the recent chat history, and the
// current message.
type PromptBuilder struct {
	historyLimit int
}

func NewPromptBuilder(historyLimit int) *PromptBuilder {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &PromptBuilder{historyLimit: historyLimit}
}

const systemPrompt = `You are the trip planning assistant for a group chat. Several travelers share
this conversation and a day-by-day itinerary. You can call tools to look up
places, directions, flights, and hotels before answering.

Always answer using this exact section protocol:

[INTENT] respond | update_itinerary
[MESSAGE]
A short, friendly message for the travelers.
[ITINERARY]
(only with intent update_itinerary) a json code fence containing
{"days":[{"id","day_number","title","date","activities":[{"id","time","title","description","location"}]}]}
[SUGGESTIONS]
(optional) a json code fence with an array of
{"title","description","location","day_label","time_label"}
[DESTINATION]
(optional) the trip destination, only when it changed.

Rules:
1. Use intent update_itinerary whenever you add, remove, or change plan items; include the COMPLETE itinerary, not a diff.
2. Use tools for facts about real places, flights, and hotels. Never invent prices or opening hours.
3. Keep [MESSAGE] short; the itinerary payload carries the detail.
4. Times are plain labels like "9:00 AM" or "18:30".`

// strictRetryPrompt is the "data only" instruction used after an itinerary
// payload failed to parse.
const strictRetryPrompt = `Your previous reply could not be parsed. Respond again with ONLY these two sections and nothing else:

[INTENT] update_itinerary
[ITINERARY]
A json code fence containing the complete itinerary object.`

// Build returns the messages for the first orchestrator round.
func (p *PromptBuilder) Build(trip TripContext, history []domain.Message, content string) []domain.ChatMessage {
	msgs := []domain.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "system", Content: p.contextPrompt(trip)},
	}

	start := 0
	if len(history) > p.historyLimit {
		start = len(history) - p.historyLimit
	}
	for _, m := range history[start:] {
		role := "user"
		body := m.Content
		if m.IsAI {
			role = "assistant"
		} else if m.UserName != "" {
			body = fmt.Sprintf("%s: %s", m.UserName, m.Content)
		}
		msgs = append(msgs, domain.ChatMessage{Role: role, Content: body})
	}

	msgs = append(msgs, domain.ChatMessage{Role: "user", Content: content})
	return msgs
}

// BuildStrictRetry extends a finished conversation with the data-only
// retry instruction.
func (p *PromptBuilder) BuildStrictRetry(previous []domain.ChatMessage, lastReply string) []domain.ChatMessage {
	msgs := make([]domain.ChatMessage, 0, len(previous)+2)
	msgs = append(msgs, previous...)
	if strings.TrimSpace(lastReply) != "" {
		msgs = append(msgs, domain.ChatMessage{Role: "assistant", Content: lastReply})
	}
	msgs = append(msgs, domain.ChatMessage{Role: "user", Content: strictRetryPrompt})
	return msgs
}

func (p *PromptBuilder) contextPrompt(trip TripContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Trip context:\n- trip id: %s\n", trip.TripID)
	if trip.Destination != "" {
		fmt.Fprintf(&b, "- destination: %s\n", trip.Destination)
	} else {
		b.WriteString("- destination: not set yet\n")
	}
	if trip.Itinerary != nil && len(trip.Itinerary.Days) > 0 {
		data, err := json.Marshal(trip.Itinerary)
		if err == nil {
			b.WriteString("- current itinerary:\n")
			b.Write(data)
			b.WriteByte('\n')
		}
	} else {
		b.WriteString("- current itinerary: none\n")
	}
	return b.String()
}
