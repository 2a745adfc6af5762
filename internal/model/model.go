package model

import (
	"fmt"
	"time"
)

// DateLayout is the ISO calendar date format used for store keys, URLs
// and EventStub.Date.
const DateLayout = "2006-01-02"

// EventStub is one calendar event occurrence reduced to a single date,
// prior to schedule interpretation. Stubs are rebuilt from the feed on
// every run and never persisted.
type EventStub struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date"`
}

// Day parses Date in loc.
func (s EventStub) Day(loc *time.Location) (time.Time, error) {
	return ParseDate(s.Date, loc)
}

// UsedMessage records a message already produced during a run so later
// inference calls can avoid repeating it.
type UsedMessage struct {
	Date          string `json:"date"`
	InputTitle    string `json:"inputTitle"`
	OutputMessage string `json:"outputMessage"`
}

// ParseDate parses an ISO calendar date as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate returns the ISO calendar date of t in its own location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Midnight truncates t to the start of its calendar day in its location.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// WeekStart returns the Monday of the week containing day.
func WeekStart(day time.Time) time.Time {
	d := Midnight(day)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}
