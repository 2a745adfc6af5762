package model

import (
	"fmt"
	"time"
)

// SchoolYear is the fixed window of dates the importer manages. Start is
// always inclusive; End is inclusive only when EndInclusive is set.
type SchoolYear struct {
	Start        time.Time
	End          time.Time
	EndInclusive bool
}

// NewSchoolYear parses ISO start/end dates in loc.
func NewSchoolYear(start, end string, endInclusive bool, loc *time.Location) (SchoolYear, error) {
	s, err := ParseDate(start, loc)
	if err != nil {
		return SchoolYear{}, err
	}
	e, err := ParseDate(end, loc)
	if err != nil {
		return SchoolYear{}, err
	}
	if e.Before(s) {
		return SchoolYear{}, fmt.Errorf("school year end %s is before start %s", end, start)
	}
	return SchoolYear{Start: s, End: e, EndInclusive: endInclusive}, nil
}

// Location is the zone the window's dates are interpreted in.
func (y SchoolYear) Location() *time.Location {
	return y.Start.Location()
}

// Limit returns the exclusive upper bound of the window.
func (y SchoolYear) Limit() time.Time {
	if y.EndInclusive {
		return y.End.AddDate(0, 0, 1)
	}
	return y.End
}

// Contains reports whether the calendar date of t falls in the window.
func (y SchoolYear) Contains(t time.Time) bool {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, y.Location())
	return !d.Before(y.Start) && d.Before(y.Limit())
}

// ContainsDate is Contains for an ISO date string.
func (y SchoolYear) ContainsDate(iso string) bool {
	d, err := ParseDate(iso, y.Location())
	if err != nil {
		return false
	}
	return y.Contains(d)
}

// Days lists every date in the window in order.
func (y SchoolYear) Days() []time.Time {
	limit := y.Limit()
	days := make([]time.Time, 0, int(limit.Sub(y.Start).Hours()/24)+1)
	for d := y.Start; d.Before(limit); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
