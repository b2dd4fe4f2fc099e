package itinerary

import (
	"regexp"
	"strconv"
	"strings"
)

// EndOfDay is the chronology key assigned to activities whose time label is
// missing or unparseable, so they always sort after every timed activity.
// Any valid minute-of-day is at most 1439.
const EndOfDay = 24 * 60

// timeLabelPattern accepts "H:MM", "HH:MM", bare "H"/"HH", each with an
// optional AM/PM suffix ("9:00 AM", "18:30", "6 PM", "6pm").
var timeLabelPattern = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*([AaPp][Mm])?$`)

// ChronologyKey parses a free-form time label into minutes since midnight.
// Labels without an AM/PM suffix are treated as 24-hour values. 12 AM maps
// to 0 and 12 PM to 720. Anything unparseable returns EndOfDay.
func ChronologyKey(label string) int {
	label = strings.TrimSpace(label)
	if label == "" {
		return EndOfDay
	}

	m := timeLabelPattern.FindStringSubmatch(label)
	if m == nil {
		return EndOfDay
	}

	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return EndOfDay
	}
	minute := 0
	if m[2] != "" {
		minute, err = strconv.Atoi(m[2])
		if err != nil {
			return EndOfDay
		}
	}
	if minute > 59 {
		return EndOfDay
	}

	switch strings.ToUpper(m[3]) {
	case "AM":
		if hour < 1 || hour > 12 {
			return EndOfDay
		}
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour < 1 || hour > 12 {
			return EndOfDay
		}
		if hour != 12 {
			hour += 12
		}
	default:
		// No suffix: 24-hour clock.
		if hour > 23 {
			return EndOfDay
		}
	}

	return hour*60 + minute
}
