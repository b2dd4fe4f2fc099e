package itinerary

import (
	"strings"

	"github.com/google/uuid"

	"tripchat/internal/domain"
)

// Apply merges exactly one suggestion into an itinerary and returns the
// updated document. The input document is never mutated. The algorithm is
// deterministic and order-stable: days are never reordered, only the
// affected day is re-sorted.
func Apply(doc *domain.Itinerary, s domain.Suggestion) *domain.Itinerary {
	out := doc.Clone()
	if out == nil {
		out = &domain.Itinerary{}
	}

	act := domain.Activity{
		ID:          "act-" + uuid.NewString(),
		TimeLabel:   strings.TrimSpace(s.TimeLabel),
		Title:       strings.TrimSpace(s.Title),
		Description: strings.TrimSpace(s.Description),
		Location:    strings.TrimSpace(s.Location),
	}

	if s.ReplaceActivityID != "" || s.ReplaceTitle != "" {
		if replaceActivity(out, s, act) {
			return out
		}
		// No match anywhere: fall back to inserting into the first day.
		insertActivity(out, domain.Suggestion{}, act)
		return out
	}

	insertActivity(out, s, act)
	return out
}

// replaceActivity scans all days in document order and replaces the first
// activity matching by id (preferred) or, failing that, by case-insensitive
// exact title. The replacement keeps the original's id when it had one.
func replaceActivity(doc *domain.Itinerary, s domain.Suggestion, act domain.Activity) bool {
	if s.ReplaceActivityID != "" {
		for di := range doc.Days {
			for ai := range doc.Days[di].Activities {
				if doc.Days[di].Activities[ai].ID == s.ReplaceActivityID {
					swapActivity(&doc.Days[di], ai, act)
					return true
				}
			}
		}
	}
	if s.ReplaceTitle != "" {
		want := strings.ToLower(strings.TrimSpace(s.ReplaceTitle))
		for di := range doc.Days {
			for ai := range doc.Days[di].Activities {
				if strings.ToLower(strings.TrimSpace(doc.Days[di].Activities[ai].Title)) == want {
					swapActivity(&doc.Days[di], ai, act)
					return true
				}
			}
		}
	}
	return false
}

func swapActivity(day *domain.Day, idx int, act domain.Activity) {
	if old := day.Activities[idx].ID; old != "" {
		act.ID = old
	}
	day.Activities[idx] = act
	SortDay(day)
}

// insertActivity appends the activity to the day matching the suggestion's
// day label (case-insensitive substring of the day's title or date). With
// no label or no match it defaults to the first day, synthesizing a single
// "Day 1" when the document has no days at all.
func insertActivity(doc *domain.Itinerary, s domain.Suggestion, act domain.Activity) {
	if len(doc.Days) == 0 {
		doc.Days = []domain.Day{{
			ID:        "day-1",
			DayNumber: 1,
			Title:     "Day 1",
		}}
	}

	target := 0
	if label := strings.ToLower(strings.TrimSpace(s.DayLabel)); label != "" {
		for i, day := range doc.Days {
			if strings.Contains(strings.ToLower(day.Title), label) ||
				(day.Date != "" && strings.Contains(strings.ToLower(day.Date), label)) {
				target = i
				break
			}
		}
	}

	doc.Days[target].Activities = append(doc.Days[target].Activities, act)
	SortDay(&doc.Days[target])
}
