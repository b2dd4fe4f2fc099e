package assistant

import (
	"strings"
	"testing"

	"tripchat/internal/domain"
)

func TestBuildIncludesContextAndHistory(t *testing.T) {
	p := NewPromptBuilder(2)
	trip := TripContext{
		TripID:      "trip-1",
		Destination: "Kyoto",
		Itinerary: &domain.Itinerary{Days: []domain.Day{
			{ID: "day-1", DayNumber: 1, Title: "Day 1"},
		}},
	}
	history := []domain.Message{
		{UserName: "Ana", Content: "old, should be trimmed"},
		{UserName: "Ben", Content: "what about temples?"},
		{IsAI: true, Content: "Kinkaku-ji is a classic."},
	}

	msgs := p.Build(trip, history, "@assistant book it")

	if msgs[0].Role != "system" || !strings.Contains(msgs[0].Content, "[INTENT]") {
		t.Errorf("first message should be the protocol prompt: %+v", msgs[0])
	}
	ctx := msgs[1]
	if ctx.Role != "system" || !strings.Contains(ctx.Content, "Kyoto") || !strings.Contains(ctx.Content, "day-1") {
		t.Errorf("context prompt = %q", ctx.Content)
	}

	// History limit 2 keeps only the last two entries.
	if len(msgs) != 5 {
		t.Fatalf("messages = %d, want 5", len(msgs))
	}
	if !strings.Contains(msgs[2].Content, "Ben: what about temples?") {
		t.Errorf("user history turn = %+v", msgs[2])
	}
	if msgs[3].Role != "assistant" || msgs[3].Content != "Kinkaku-ji is a classic." {
		t.Errorf("assistant history turn should not be name-prefixed: %+v", msgs[3])
	}
	last := msgs[len(msgs)-1]
	if last.Role != "user" || last.Content != "@assistant book it" {
		t.Errorf("final turn = %+v", last)
	}
}

func TestBuildWithoutTripState(t *testing.T) {
	p := NewPromptBuilder(0)
	msgs := p.Build(TripContext{TripID: "trip-1"}, nil, "hello")
	ctx := msgs[1].Content
	if !strings.Contains(ctx, "not set yet") || !strings.Contains(ctx, "none") {
		t.Errorf("context prompt = %q", ctx)
	}
}

func TestBuildStrictRetry(t *testing.T) {
	p := NewPromptBuilder(0)
	prev := []domain.ChatMessage{
		{Role: "system", Content: "protocol"},
		{Role: "user", Content: "plan day 1"},
	}
	msgs := p.BuildStrictRetry(prev, "garbled reply")

	if len(msgs) != 4 {
		t.Fatalf("messages = %d", len(msgs))
	}
	if msgs[2].Role != "assistant" || msgs[2].Content != "garbled reply" {
		t.Errorf("assistant turn = %+v", msgs[2])
	}
	last := msgs[3]
	if last.Role != "user" || !strings.Contains(last.Content, "ONLY these two sections") {
		t.Errorf("retry instruction = %+v", last)
	}

	// An empty previous reply is skipped.
	msgs = p.BuildStrictRetry(prev, "  ")
	if len(msgs) != 3 {
		t.Errorf("messages = %d, want 3", len(msgs))
	}
}
