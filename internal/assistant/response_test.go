package assistant

import (
	"strings"
	"testing"
)

func TestParseResponseUpdateIntent(t *testing.T) {
	raw := "[INTENT] update_itinerary\n" +
		"[MESSAGE]\nAdded a morning museum stop.\n" +
		"[ITINERARY]\n```json\n" +
		`{"days":[{"title":"Day 1","activities":[{"title":"Museum","time":"10:00 AM"}]}]}` +
		"\n```\n" +
		"[SUGGESTIONS]\n```json\n" +
		`[{"title":"Rooftop bar","day_label":"Day 1","time_label":"9:00 PM"},{"description":"no title, dropped"}]` +
		"\n```\n" +
		"[DESTINATION] Vienna"

	resp := ParseResponse(raw)
	if resp.Intent != IntentUpdateItinerary {
		t.Fatalf("intent = %q", resp.Intent)
	}
	if resp.Message != "Added a morning museum stop." {
		t.Errorf("message = %q", resp.Message)
	}
	if resp.Itinerary == nil || len(resp.Itinerary.Days) != 1 {
		t.Fatalf("itinerary = %+v", resp.Itinerary)
	}
	if resp.Itinerary.Days[0].Activities[0].Title != "Museum" {
		t.Errorf("activity = %+v", resp.Itinerary.Days[0].Activities)
	}
	if len(resp.Suggestions) != 1 || resp.Suggestions[0].Title != "Rooftop bar" {
		t.Errorf("suggestions = %+v", resp.Suggestions)
	}
	if resp.Destination != "Vienna" {
		t.Errorf("destination = %q", resp.Destination)
	}
}

func TestParseResponseIntentAliases(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"[INTENT] respond\n[MESSAGE] hi", IntentRespond},
		{"[intent] update_itinerary\n[MESSAGE] ok", IntentUpdateItinerary},
		{"[INTENT]: update-plan\n[MESSAGE] ok", IntentUpdateItinerary},
		{"[INTENT] update\n[MESSAGE] ok", IntentUpdateItinerary},
	}
	for _, tt := range tests {
		if got := ParseResponse(tt.raw).Intent; got != tt.want {
			t.Errorf("ParseResponse(%q).Intent = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestParseResponseNoIntentFallsBack(t *testing.T) {
	raw := "Sounds great, here is a plan:\n```json\n" +
		`{"days":[{"title":"Day 1","activities":[{"title":"Beach"}]}]}` +
		"\n```\nEnjoy!"

	resp := ParseResponse(raw)
	if resp.Intent != IntentRespond {
		t.Errorf("intent = %q", resp.Intent)
	}
	if strings.Contains(resp.Message, "{") {
		t.Errorf("fallback message should strip data blocks: %q", resp.Message)
	}
	if !strings.Contains(resp.Message, "Sounds great") || !strings.Contains(resp.Message, "Enjoy!") {
		t.Errorf("message = %q", resp.Message)
	}
	if resp.Itinerary == nil || resp.Itinerary.Days[0].Activities[0].Title != "Beach" {
		t.Errorf("fallback itinerary extraction failed: %+v", resp.Itinerary)
	}
}

func TestParseResponsePlainText(t *testing.T) {
	resp := ParseResponse("Just a normal answer with no structure.")
	if resp.Intent != IntentRespond {
		t.Errorf("intent = %q", resp.Intent)
	}
	if resp.Message != "Just a normal answer with no structure." {
		t.Errorf("message = %q", resp.Message)
	}
	if resp.Itinerary != nil {
		t.Errorf("itinerary should be nil, got %+v", resp.Itinerary)
	}
}

func TestParseResponseBadItineraryPayload(t *testing.T) {
	raw := "[INTENT] update_itinerary\n[MESSAGE]\nUpdated!\n[ITINERARY]\nthis is not json"
	resp := ParseResponse(raw)
	if resp.Intent != IntentUpdateItinerary {
		t.Errorf("intent = %q", resp.Intent)
	}
	if resp.Itinerary != nil {
		t.Errorf("unparseable payload must yield nil, got %+v", resp.Itinerary)
	}
	if resp.Message != "Updated!" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestParseResponseBareJSONWithoutFence(t *testing.T) {
	raw := "[INTENT] update_itinerary\n[ITINERARY]\n" +
		`{"days":[{"title":"Day 1","activities":[{"title":"Hike","time":"8:00 AM"}]}]}`
	resp := ParseResponse(raw)
	if resp.Itinerary == nil || resp.Itinerary.Days[0].Activities[0].Title != "Hike" {
		t.Errorf("bare JSON payload not extracted: %+v", resp.Itinerary)
	}
}

func TestParseResponseDestinationWithoutIntent(t *testing.T) {
	raw := "We're going to Lisbon!\n[DESTINATION] Lisbon"
	resp := ParseResponse(raw)
	if resp.Destination != "Lisbon" {
		t.Errorf("destination = %q", resp.Destination)
	}
}

func TestFindJSONBounds(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`prefix {"a": 1} suffix`, `{"a": 1}`},
		{`[1, 2, [3]] extra`, `[1, 2, [3]]`},
		{`{"s": "with } brace"}`, `{"s": "with } brace"}`},
		{`{"esc": "quote \" here"}`, `{"esc": "quote \" here"}`},
		{`no json here`, ``},
		{`{"unclosed": 1`, ``},
	}
	for _, tt := range tests {
		start, end := findJSONBounds(tt.in)
		got := ""
		if start >= 0 {
			got = tt.in[start:end]
		}
		if got != tt.want {
			t.Errorf("findJSONBounds(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
