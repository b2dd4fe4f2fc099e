package itinerary

import "testing"

func TestChronologyKey(t *testing.T) {
	tests := []struct {
		label string
		want  int
	}{
		{"9:00 AM", 540},
		{"12:00 PM", 720},
		{"12:00 AM", 0},
		{"12:30 AM", 30},
		{"6 PM", 18 * 60},
		{"6pm", 18 * 60},
		{"18:30", 18*60 + 30},
		{"0:15", 15},
		{"8", 8 * 60},
		{"23:59", 1439},
		{"  7:45 am  ", 7*60 + 45},
		{"", EndOfDay},
		{"noon", EndOfDay},
		{"25:00", EndOfDay},
		{"9:75", EndOfDay},
		{"13 PM", EndOfDay},
		{"0 AM", EndOfDay},
	}

	for _, tt := range tests {
		if got := ChronologyKey(tt.label); got != tt.want {
			t.Errorf("ChronologyKey(%q) = %d, want %d", tt.label, got, tt.want)
		}
	}
}

func TestChronologyKeySentinelSortsLast(t *testing.T) {
	if EndOfDay <= 1439 {
		t.Fatalf("sentinel %d must be greater than any valid minute of day", EndOfDay)
	}
}
