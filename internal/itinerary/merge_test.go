package itinerary

import (
	"testing"

	"tripchat/internal/domain"
)

func twoDayDoc() *domain.Itinerary {
	return &domain.Itinerary{Days: []domain.Day{
		{
			ID: "day-1", DayNumber: 1, Title: "Day 1",
			Activities: []domain.Activity{
				{ID: "act-1", Title: "Coffee", TimeLabel: "9:00 AM"},
				{ID: "act-2", Title: "Brunch", TimeLabel: "11:00 AM"},
			},
		},
		{
			ID: "day-2", DayNumber: 2, Title: "Day 2", Date: "2026-09-02",
			Activities: []domain.Activity{
				{ID: "act-3", Title: "Hike", TimeLabel: "8:00 AM"},
			},
		},
	}}
}

func titles(day domain.Day) []string {
	out := make([]string, len(day.Activities))
	for i, a := range day.Activities {
		out[i] = a.Title
	}
	return out
}

func TestApplyAddDefaultsToFirstDay(t *testing.T) {
	doc := twoDayDoc()
	got := Apply(doc, domain.Suggestion{Title: "Lunch", TimeLabel: "12:00 PM"})

	if len(doc.Days[0].Activities) != 2 {
		t.Fatal("input document was mutated")
	}
	if len(got.Days[0].Activities) != 3 {
		t.Fatalf("expected 3 activities in day 1, got %d", len(got.Days[0].Activities))
	}
	if got.Days[0].Activities[2].Title != "Lunch" {
		t.Errorf("new activity not sorted last of the morning run: %v", titles(got.Days[0]))
	}
	if got.Days[0].Activities[2].ID == "" {
		t.Error("new activity must get a generated id")
	}
}

func TestApplyAddMatchesDayLabel(t *testing.T) {
	tests := []struct {
		name  string
		label string
		want  int // target day index
	}{
		{"title substring", "day 2", 1},
		{"date substring", "09-02", 1},
		{"unknown label falls back to first day", "day 9", 0},
		{"empty label", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(twoDayDoc(), domain.Suggestion{Title: "Dinner", TimeLabel: "7:00 PM", DayLabel: tt.label})
			day := got.Days[tt.want]
			found := false
			for _, a := range day.Activities {
				if a.Title == "Dinner" {
					found = true
				}
			}
			if !found {
				t.Errorf("Dinner not placed in day %d: %v", tt.want, titles(day))
			}
		})
	}
}

func TestApplyAddToEmptyDocumentSynthesizesDay(t *testing.T) {
	got := Apply(&domain.Itinerary{}, domain.Suggestion{Title: "Arrive", TimeLabel: "10:00 AM"})
	if len(got.Days) != 1 {
		t.Fatalf("expected 1 synthesized day, got %d", len(got.Days))
	}
	day := got.Days[0]
	if day.ID != "day-1" || day.DayNumber != 1 || day.Title != "Day 1" {
		t.Errorf("synthesized day wrong: %+v", day)
	}
	if len(day.Activities) != 1 || day.Activities[0].Title != "Arrive" {
		t.Errorf("activity missing: %+v", day.Activities)
	}
}

func TestApplyReplaceByIDWinsOverTitle(t *testing.T) {
	doc := twoDayDoc()
	doc.Days[1].Activities = append(doc.Days[1].Activities, domain.Activity{ID: "act-4", Title: "Dinner", TimeLabel: "7:00 PM"})

	got := Apply(doc, domain.Suggestion{
		Title:             "Tacos",
		TimeLabel:         "11:30 AM",
		ReplaceActivityID: "act-2",
		ReplaceTitle:      "Dinner",
	})

	// act-2 ("Brunch") replaced, keeping its id; "Dinner" untouched.
	day1 := got.Days[0]
	if len(day1.Activities) != 2 {
		t.Fatalf("day 1 should still have 2 activities, got %d", len(day1.Activities))
	}
	replaced := day1.Activities[1]
	if replaced.Title != "Tacos" || replaced.ID != "act-2" {
		t.Errorf("id match should win and keep the original id: %+v", replaced)
	}
	for _, a := range got.Days[1].Activities {
		if a.Title == "Tacos" {
			t.Error("title match applied even though id matched")
		}
	}
}

func TestApplyReplaceByTitleCaseInsensitive(t *testing.T) {
	got := Apply(twoDayDoc(), domain.Suggestion{
		Title:        "Sunset hike",
		TimeLabel:    "6:00 PM",
		ReplaceTitle: "hIkE",
	})
	day2 := got.Days[1]
	if len(day2.Activities) != 1 || day2.Activities[0].Title != "Sunset hike" {
		t.Fatalf("title replace failed: %v", titles(day2))
	}
	if day2.Activities[0].ID != "act-3" {
		t.Errorf("replacement should keep original id, got %q", day2.Activities[0].ID)
	}
}

func TestApplyReplaceResortsContainingDay(t *testing.T) {
	got := Apply(twoDayDoc(), domain.Suggestion{
		Title:             "Late brunch",
		TimeLabel:         "8:00 AM",
		ReplaceActivityID: "act-2",
	})
	want := []string{"Late brunch", "Coffee"}
	day := got.Days[0]
	for i, title := range want {
		if day.Activities[i].Title != title {
			t.Fatalf("day not re-sorted after replace: %v", titles(day))
		}
	}
}

func TestApplyReplaceNoMatchFallsBackToInsert(t *testing.T) {
	got := Apply(twoDayDoc(), domain.Suggestion{
		Title:             "Mystery stop",
		ReplaceActivityID: "act-999",
		ReplaceTitle:      "Nothing here",
	})
	if len(got.Days[0].Activities) != 3 {
		t.Fatalf("expected fallback insert into first day: %v", titles(got.Days[0]))
	}

	empty := Apply(&domain.Itinerary{}, domain.Suggestion{Title: "Solo", ReplaceTitle: "Nope"})
	if len(empty.Days) != 1 || len(empty.Days[0].Activities) != 1 {
		t.Fatalf("expected single-day document, got %+v", empty)
	}
}

func TestApplyDeterministicStructure(t *testing.T) {
	s := domain.Suggestion{Title: "Lunch", TimeLabel: "12:00 PM", DayLabel: "Day 2"}
	a := Apply(twoDayDoc(), s)
	b := Apply(twoDayDoc(), s)

	if len(a.Days) != len(b.Days) {
		t.Fatal("day counts differ between runs")
	}
	for i := range a.Days {
		at, bt := titles(a.Days[i]), titles(b.Days[i])
		if len(at) != len(bt) {
			t.Fatalf("day %d activity counts differ", i)
		}
		for j := range at {
			if at[j] != bt[j] {
				t.Errorf("day %d position %d differs: %q vs %q", i, j, at[j], bt[j])
			}
		}
	}
}

func TestApplySameTimeKeepsInsertionOrder(t *testing.T) {
	doc := &domain.Itinerary{Days: []domain.Day{{
		ID: "day-1", DayNumber: 1, Title: "Day 1",
		Activities: []domain.Activity{{ID: "act-1", Title: "Existing", TimeLabel: "10:00 AM"}},
	}}}

	got := Apply(doc, domain.Suggestion{Title: "Added", TimeLabel: "10:00 AM", DayLabel: "Day 1"})
	want := []string{"Existing", "Added"}
	for i, title := range want {
		if got.Days[0].Activities[i].Title != title {
			t.Fatalf("stable tie-break violated: %v", titles(got.Days[0]))
		}
	}
}
