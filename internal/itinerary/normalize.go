package itinerary

import (
	"fmt"
	"sort"
	"strings"

	"tripchat/internal/domain"
)

// Normalize validates and repairs untrusted structured data into the
// canonical itinerary shape. The input is decoded JSON: either an object
// with a "days" array or a bare array of day-shaped records. Missing ids,
// day numbers, and titles are synthesized from position; each day's
// activities are filtered to record-shaped entries and sorted by
// chronology key. A document with zero valid days fails with
// domain.ErrInvalidItinerary.
func Normalize(raw any) (*domain.Itinerary, error) {
	days := dayRecords(raw)
	if len(days) == 0 {
		return nil, domain.ErrInvalidItinerary
	}

	out := &domain.Itinerary{Days: make([]domain.Day, 0, len(days))}
	for i, rec := range days {
		day := normalizeDay(rec, i)
		out.Days = append(out.Days, day)
	}
	if len(out.Days) == 0 {
		return nil, domain.ErrInvalidItinerary
	}
	return out, nil
}

// dayRecords extracts the candidate day records from the untrusted input.
func dayRecords(raw any) []map[string]any {
	var list []any
	switch v := raw.(type) {
	case []any:
		list = v
	case map[string]any:
		inner, ok := v["days"].([]any)
		if !ok {
			return nil
		}
		list = inner
	default:
		return nil
	}

	days := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if rec, ok := item.(map[string]any); ok {
			days = append(days, rec)
		}
	}
	return days
}

func normalizeDay(rec map[string]any, pos int) domain.Day {
	day := domain.Day{
		ID:        asString(rec["id"]),
		DayNumber: asInt(rec["day_number"], pos+1),
		Title:     asString(rec["title"]),
		Date:      asString(rec["date"]),
	}
	if day.ID == "" {
		day.ID = fmt.Sprintf("day-%d", pos+1)
	}
	if day.Title == "" {
		day.Title = fmt.Sprintf("Day %d", day.DayNumber)
	}

	activities, _ := rec["activities"].([]any)
	day.Activities = make([]domain.Activity, 0, len(activities))
	for i, item := range activities {
		actRec, ok := item.(map[string]any)
		if !ok {
			continue
		}
		act := domain.Activity{
			ID:          asString(actRec["id"]),
			TimeLabel:   firstString(actRec, "time", "time_label"),
			Title:       asString(actRec["title"]),
			Description: asString(actRec["description"]),
			Location:    asString(actRec["location"]),
		}
		if act.ID == "" {
			act.ID = fmt.Sprintf("act-%d", i+1)
		}
		day.Activities = append(day.Activities, act)
	}
	SortDay(&day)
	return day
}

// SortDay orders a day's activities by ascending chronology key. The sort
// is stable: same-time activities keep their prior relative order.
func SortDay(day *domain.Day) {
	sort.SliceStable(day.Activities, func(i, j int) bool {
		return ChronologyKey(day.Activities[i].TimeLabel) < ChronologyKey(day.Activities[j].TimeLabel)
	})
}

func asString(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

func firstString(rec map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := asString(rec[k]); s != "" {
			return s
		}
	}
	return ""
}

func asInt(v any, fallback int) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		trimmed := strings.TrimSpace(n)
		if trimmed == "" {
			return fallback
		}
		var out int
		if _, err := fmt.Sscanf(trimmed, "%d", &out); err != nil {
			return fallback
		}
		return out
	default:
		return fallback
	}
}
