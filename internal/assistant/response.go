package assistant

import (
	"encoding/json"
	"strings"

	"tripchat/internal/domain"
	"tripchat/internal/itinerary"
)

// Section tags of the planner's structured output protocol. The planner is
// instructed to answer with named sections; malformed output degrades to a
// plain chat message (never an error).
const (
	tagIntent      = "[INTENT]"
	tagMessage     = "[MESSAGE]"
	tagItinerary   = "[ITINERARY]"
	tagSuggestions = "[SUGGESTIONS]"
	tagDestination = "[DESTINATION]"
)

// Intent values recognized in the [INTENT] section.
const (
	IntentRespond         = "respond"
	IntentUpdateItinerary = "update_itinerary"
)

// StructuredResponse is the decoded planner output.
type StructuredResponse struct {
	Intent      string
	Message     string
	Itinerary   *domain.Itinerary
	Suggestions []domain.Suggestion
	Destination string
}

// ParseResponse extracts the typed sections from the planner's raw text.
// When an intent tag is present its sections are trusted and parsed; an
// itinerary payload that fails to decode yields Itinerary == nil so the
// caller can retry. Without an intent tag the whole text becomes the
// display message and a JSON block anywhere in it is tried as a candidate
// itinerary. A destination section is honored regardless of intent.
func ParseResponse(raw string) StructuredResponse {
	sections := splitSections(raw)

	intent, hasIntent := sections[tagIntent]
	intent = normalizeIntent(intent)

	if !hasIntent || intent == "" {
		resp := StructuredResponse{
			Intent:      IntentRespond,
			Message:     strings.TrimSpace(stripDataBlocks(raw)),
			Destination: strings.TrimSpace(firstLine(sections[tagDestination])),
		}
		if doc := extractItinerary(raw); doc != nil {
			resp.Itinerary = doc
		}
		if resp.Message == "" {
			resp.Message = strings.TrimSpace(raw)
		}
		return resp
	}

	resp := StructuredResponse{
		Intent:      intent,
		Message:     strings.TrimSpace(sections[tagMessage]),
		Destination: strings.TrimSpace(firstLine(sections[tagDestination])),
	}

	if intent == IntentUpdateItinerary {
		resp.Itinerary = extractItinerary(sections[tagItinerary])
	}
	if body, ok := sections[tagSuggestions]; ok {
		resp.Suggestions = extractSuggestions(body)
	}
	if resp.Message == "" {
		resp.Message = strings.TrimSpace(sections[tagMessage+"fallback"])
	}
	return resp
}

// splitSections walks the text line by line collecting the body of each
// recognized [TAG] section. Content on the tag line itself is kept.
func splitSections(raw string) map[string]string {
	tags := []string{tagIntent, tagMessage, tagItinerary, tagSuggestions, tagDestination}

	sections := make(map[string]string)
	current := ""
	var body strings.Builder

	flush := func() {
		if current != "" {
			sections[current] = strings.TrimSpace(body.String())
		}
		body.Reset()
	}

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		matched := ""
		for _, tag := range tags {
			if strings.HasPrefix(strings.ToUpper(trimmed), tag) {
				matched = tag
				break
			}
		}
		if matched != "" {
			flush()
			current = matched
			rest := strings.TrimSpace(trimmed[len(matched):])
			rest = strings.TrimPrefix(rest, ":")
			if rest != "" {
				body.WriteString(strings.TrimSpace(rest))
				body.WriteByte('\n')
			}
			continue
		}
		if current != "" {
			body.WriteString(line)
			body.WriteByte('\n')
		}
	}
	flush()
	return sections
}

func normalizeIntent(s string) string {
	s = strings.ToLower(strings.TrimSpace(firstLine(s)))
	s = strings.ReplaceAll(s, "-", "_")
	switch s {
	case IntentRespond:
		return IntentRespond
	case IntentUpdateItinerary, "update_plan", "update":
		return IntentUpdateItinerary
	default:
		return ""
	}
}

// extractItinerary pulls a JSON payload out of text (fenced block or bare
// object/array) and normalizes it. Returns nil when nothing decodes to a
// valid document.
func extractItinerary(text string) *domain.Itinerary {
	payload := extractJSON(text)
	if payload == "" {
		return nil
	}
	var raw any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil
	}
	doc, err := itinerary.Normalize(raw)
	if err != nil {
		return nil
	}
	return doc
}

func extractSuggestions(text string) []domain.Suggestion {
	payload := extractJSON(text)
	if payload == "" {
		return nil
	}
	var records []map[string]any
	if err := json.Unmarshal([]byte(payload), &records); err != nil {
		return nil
	}
	str := func(rec map[string]any, key string) string {
		s, _ := rec[key].(string)
		return strings.TrimSpace(s)
	}
	var out []domain.Suggestion
	for _, rec := range records {
		s := domain.Suggestion{
			Title:             str(rec, "title"),
			Description:       str(rec, "description"),
			Location:          str(rec, "location"),
			DayLabel:          str(rec, "day_label"),
			TimeLabel:         str(rec, "time_label"),
			ReplaceActivityID: str(rec, "replace_activity_id"),
			ReplaceTitle:      str(rec, "replace_title"),
		}
		if s.TimeLabel == "" {
			s.TimeLabel = str(rec, "time")
		}
		if s.Title == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

// extractJSON returns the first JSON object or array found in text,
// preferring the contents of a fenced code block.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if fenced := insideFence(text); fenced != "" {
		text = fenced
	}
	start, end := findJSONBounds(text)
	if start < 0 {
		return ""
	}
	return text[start:end]
}

// insideFence returns the body of the first ``` fenced block, or "".
func insideFence(text string) string {
	open := strings.Index(text, "```")
	if open < 0 {
		return ""
	}
	rest := text[open+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		// Skip the language hint line ("json").
		rest = rest[nl+1:]
	}
	close := strings.Index(rest, "```")
	if close < 0 {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(rest[:close])
}

// findJSONBounds locates the first top-level JSON object ({}) or array ([])
// in s. Returns the start index and end+1 index, or (-1, -1) if not found.
func findJSONBounds(s string) (int, int) {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return -1, -1
	}

	openChar := s[start]
	var closeChar byte
	if openChar == '{' {
		closeChar = '}'
	} else {
		closeChar = ']'
	}

	depth := 0
	inStr := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inStr {
			if ch == '\\' {
				i++
				continue
			}
			if ch == '"' {
				inStr = false
			}
			continue
		}
		switch ch {
		case '"':
			inStr = true
		case openChar:
			depth++
		case closeChar:
			depth--
			if depth == 0 {
				return start, i + 1
			}
		}
	}
	return -1, -1
}

// stripDataBlocks removes fenced code blocks so the fallback display
// message does not show the raw payload to humans.
func stripDataBlocks(text string) string {
	var out strings.Builder
	for {
		open := strings.Index(text, "```")
		if open < 0 {
			out.WriteString(text)
			break
		}
		out.WriteString(text[:open])
		rest := text[open+3:]
		close := strings.Index(rest, "```")
		if close < 0 {
			break
		}
		text = rest[close+3:]
	}
	return out.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
