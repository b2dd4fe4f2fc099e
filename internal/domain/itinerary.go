package domain

// Itinerary is the canonical day/activity structure representing a trip's
// plan. A trip has at most one itinerary; writes overwrite the whole
// document (last accepted write wins).
type Itinerary struct {
	Days []Day `json:"days"`
}

// Day is one day of an itinerary. Day ids are unique within a document.
type Day struct {
	ID         string     `json:"id"`
	DayNumber  int        `json:"day_number"`
	Title      string     `json:"title"`
	Date       string     `json:"date,omitempty"`
	Activities []Activity `json:"activities"`
}

// Activity is one planned item within a day. Activities are stored in
// ascending chronology-key order; an activity without a parseable time
// sorts after all timed activities.
type Activity struct {
	ID          string `json:"id"`
	TimeLabel   string `json:"time,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
}

// Suggestion is a single proposed add-or-replace edit to an itinerary. A
// suggestion only lives on the message that carried it; applying one never
// mutates the suggestion itself.
type Suggestion struct {
	Title             string `json:"title"`
	Description       string `json:"description,omitempty"`
	Location          string `json:"location,omitempty"`
	DayLabel          string `json:"day_label,omitempty"`
	TimeLabel         string `json:"time_label,omitempty"`
	ReplaceActivityID string `json:"replace_activity_id,omitempty"`
	ReplaceTitle      string `json:"replace_title,omitempty"`
}

// ResolutionOption is a labeled alternative outcome offered to a human when
// a suggestion conflicts with the existing plan. Itinerary is set when the
// option resolves the conflict with a complete replacement document.
type ResolutionOption struct {
	ID        string     `json:"id"`
	Label     string     `json:"label"`
	Itinerary *Itinerary `json:"itinerary,omitempty"`
}

// Clone returns a deep copy of the itinerary.
func (it *Itinerary) Clone() *Itinerary {
	if it == nil {
		return nil
	}
	out := &Itinerary{Days: make([]Day, len(it.Days))}
	for i, d := range it.Days {
		nd := d
		nd.Activities = make([]Activity, len(d.Activities))
		copy(nd.Activities, d.Activities)
		out.Days[i] = nd
	}
	return out
}
