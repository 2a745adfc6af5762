package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "bellsched/internal/log"
)

// ParsedEvent is the normalized representation of a VEVENT as produced
// by the ICS parser. Recurrence expansion operates on this type.
type ParsedEvent struct {
	UID string

	Summary     string
	Description string

	// Start and End are anchored in the parse location when the feed uses
	// floating or date-only values, otherwise in the zone the feed names.
	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID, if present
	IsOverride bool       // true if this VEVENT overrides one instance of a recurring event
}

// ParseICS parses an ICS payload into events. Floating and date-only
// values are interpreted as wall-clock times in loc.
//
// Only VEVENT components are considered. An event without DTSTART or
// DTEND is skipped with a logged ParseError; a payload that cannot be
// parsed at all returns a ParseError.
func ParseICS(body []byte, loc *time.Location) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, &ParseError{Reason: "empty ICS body"}
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{Reason: "malformed calendar", Err: err}
	}

	events := make([]ParsedEvent, 0)
	skipped := 0
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp, loc)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			appLog.Warn("ics vevent skipped", "err", perr)
			skipped++
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics parse completed", "event_count", len(events), "skipped", skipped)
	return events, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (ParsedEvent, error) {
	var out ParsedEvent

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		out.UID = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return out, &ParseError{UID: out.UID, Reason: "missing DTSTART"}
	}
	endProp := ve.GetProperty(ical.ComponentPropertyDtEnd)
	if endProp == nil {
		return out, &ParseError{UID: out.UID, Reason: "missing DTEND"}
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, &ParseError{UID: out.UID, Reason: "invalid DTSTART", Err: err}
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return out, &ParseError{UID: out.UID, Reason: "invalid DTEND", Err: err}
	}

	out.AllDay = isDateOnly(startProp)
	out.Start = anchor(start, startProp, loc)
	out.End = anchor(end, endProp, loc)

	// RRULE (we only keep raw string here; expansion is in expand.go).
	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		out.RawRRule = rruleProp.Value
	}

	// EXDATE can appear multiple times, each with a comma-separated list.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			t, err := parseICSTime(part, p.ICalParameters, loc)
			if err != nil {
				appLog.Warn("ics exdate ignored", "uid", out.UID, "value", part, "err", err)
				continue
			}
			out.ExDates = append(out.ExDates, t)
		}
	}

	if ridProp := ve.GetProperty("RECURRENCE-ID"); ridProp != nil {
		t, err := parseICSTime(ridProp.Value, ridProp.ICalParameters, loc)
		if err != nil {
			return out, &ParseError{UID: out.UID, Reason: "invalid RECURRENCE-ID", Err: err}
		}
		out.Recurrence = &t
		out.IsOverride = true
	}

	return out, nil
}

// isDateOnly reports whether a DTSTART-like property holds a DATE value.
func isDateOnly(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// anchor re-interprets floating (no TZID, no Z) and date-only values as
// wall-clock times in loc; the library parses them in time.Local.
func anchor(t time.Time, p *ical.IANAProperty, loc *time.Location) time.Time {
	if _, hasTZ := p.ICalParameters["TZID"]; hasTZ || strings.HasSuffix(p.Value, "Z") {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc)
}

// parseICSTime parses an EXDATE or RECURRENCE-ID value, honoring a TZID
// parameter. Supported forms: 20250101T090000Z, 20250101T090000,
// 20250101.
func parseICSTime(v string, params map[string][]string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	if tzs, ok := params["TZID"]; ok && len(tzs) > 0 {
		if tz, err := time.LoadLocation(strings.Trim(tzs[0], `"`)); err == nil {
			loc = tz
		} else {
			appLog.Warn("ics unknown TZID; using calendar zone", "tzid", tzs[0])
		}
	}

	switch {
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
