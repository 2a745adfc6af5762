package model

import (
	"encoding/json"
	"time"
)

// DailySchedule is the unit of storage and change detection: the template
// periods of one day plus an optional short message. No periods means no
// school.
type DailySchedule struct {
	Periods []Period `json:"periods"`
	Message string   `json:"message,omitempty"`
}

// Empty is the schedule of a day without school.
func Empty() DailySchedule {
	return DailySchedule{Periods: []Period{}}
}

// Validate checks every period and that periods are time-ordered and
// non-overlapping.
func (s DailySchedule) Validate() error {
	for i, p := range s.Periods {
		if err := p.Validate(); err != nil {
			return err
		}
		if i == 0 {
			continue
		}
		prev := s.Periods[i-1]
		if p.Span.Start.Before(prev.Span.End) {
			return validationf("period %s overlaps or precedes %s", p, prev)
		}
	}
	return nil
}

// Clone returns a deep copy so callers can edit periods freely.
func (s DailySchedule) Clone() DailySchedule {
	periods := make([]Period, len(s.Periods))
	copy(periods, s.Periods)
	return DailySchedule{Periods: periods, Message: s.Message}
}

// Marshal returns the canonical serialized form used for storage and for
// textual change detection.
func (s DailySchedule) Marshal() (string, error) {
	if s.Periods == nil {
		s.Periods = []Period{}
	}
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// UnmarshalSchedule decodes and validates a serialized schedule.
func UnmarshalSchedule(data []byte) (DailySchedule, error) {
	var s DailySchedule
	if err := json.Unmarshal(data, &s); err != nil {
		return DailySchedule{}, err
	}
	if s.Periods == nil {
		s.Periods = []Period{}
	}
	if err := s.Validate(); err != nil {
		return DailySchedule{}, err
	}
	return s, nil
}

// DatedPeriod is a period with a concrete date-time interval.
type DatedPeriod struct {
	Type  PeriodType `json:"type"`
	ID    string     `json:"id,omitempty"`
	Name  string     `json:"name,omitempty"`
	Start time.Time  `json:"start"`
	End   time.Time  `json:"end"`
}

// DatedSchedule is a DailySchedule stamped onto a specific date.
type DatedSchedule struct {
	Date    time.Time     `json:"date"`
	Periods []DatedPeriod `json:"periods"`
	Message string        `json:"message,omitempty"`
}

// Stamp places every template period of s on day: the calendar date comes
// from day, the time of day (seconds included) from the template. Period order is kept.
func Stamp(s DailySchedule, day time.Time) DatedSchedule {
	d := Midnight(day)
	out := DatedSchedule{
		Date:    d,
		Periods: make([]DatedPeriod, 0, len(s.Periods)),
		Message: s.Message,
	}
	for _, p := range s.Periods {
		out.Periods = append(out.Periods, DatedPeriod{
			Type:  p.Type,
			ID:    p.ID,
			Name:  p.Name,
			Start: at(d, p.Span.Start),
			End:   at(d, p.Span.End),
		})
	}
	return out
}

func at(day time.Time, c Clock) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour, c.Minute, c.Second, 0, day.Location())
}
