package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "bellsched/internal/log"
	"bellsched/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
)

// ExpandConfig controls how events are reduced to per-date stubs.
type ExpandConfig struct {
	// SchoolYear is the window of dates to keep. Its location is the
	// calendar's reference zone.
	SchoolYear model.SchoolYear

	// MaxOccurrencesPerEvent is a safety cap to avoid extremely large
	// expansions. If zero, defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult is the per-date stub set plus expansion diagnostics.
type ExpandResult struct {
	Days map[string]model.EventStub
	// TruncatedEvents records UIDs that hit the MaxOccurrencesPerEvent cap.
	TruncatedEvents []string
}

// Stubs returns the stubs ordered by date.
func (r ExpandResult) Stubs() []model.EventStub {
	return SortedStubs(r.Days)
}

// SortedStubs flattens a date-keyed stub map in date order.
func SortedStubs(days map[string]model.EventStub) []model.EventStub {
	out := make([]model.EventStub, 0, len(days))
	for _, s := range days {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// ExpandStubs reduces parsed events to one EventStub per date inside the
// school year:
//
//   - a single event maps to the calendar day of its start in the
//     reference zone;
//   - a recurring event is expanded with its RRULE; an occurrence landing
//     at 23:00 local time is moved forward one hour; EXDATE days are
//     dropped and RECURRENCE-ID overrides replace their day's content.
//
// Precedence: single events and overrides are applied in feed order, last
// write wins among them. A plain recurrence expansion never replaces a day
// already set by a single event or an override, whatever their feed order,
// so a one-off "Rally Schedule" always beats the weekly pattern under it.
// EXDATE and RECURRENCE-ID instants get the same 23:00 shift as the
// occurrences they name.
func ExpandStubs(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	year := cfg.SchoolYear
	if year.Start.IsZero() || year.End.IsZero() {
		return result, errors.New("expand: school year is not configured")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Group overrides by the UID of the recurring event they modify.
	recurringUIDs := make(map[string]bool)
	for _, ev := range events {
		if ev.RawRRule != "" && !ev.IsOverride {
			recurringUIDs[ev.UID] = true
		}
	}
	overridesByUID := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride && recurringUIDs[ev.UID] {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
		}
	}

	b := &stubBuilder{
		year:     year,
		days:     make(map[string]model.EventStub),
		explicit: make(map[string]bool),
	}

	for _, ev := range events {
		switch {
		case ev.IsOverride && recurringUIDs[ev.UID]:
			// Applied together with the recurring event it belongs to.
			continue
		case ev.RawRRule == "":
			b.setExplicit(dateOf(ev.Start, year.Location()), ev)
		default:
			if b.expandRecurring(ev, overridesByUID[ev.UID], cfg.MaxOccurrencesPerEvent) {
				result.TruncatedEvents = append(result.TruncatedEvents, ev.UID)
				appLog.Error("expand: truncated occurrences for UID due to cap",
					errors.New("max occurrences reached"),
					"uid", ev.UID,
					"cap", cfg.MaxOccurrencesPerEvent,
				)
			}
		}
	}

	result.Days = b.days
	return result, nil
}

type stubBuilder struct {
	year     model.SchoolYear
	days     map[string]model.EventStub
	explicit map[string]bool
}

func (b *stubBuilder) setExplicit(date string, ev ParsedEvent) {
	if !b.year.ContainsDate(date) {
		return
	}
	b.days[date] = stubFor(date, ev)
	b.explicit[date] = true
}

func (b *stubBuilder) setRecurring(date string, ev ParsedEvent) {
	if !b.year.ContainsDate(date) || b.explicit[date] {
		return
	}
	b.days[date] = stubFor(date, ev)
}

// expandRecurring expands ev across the school year and applies its
// overrides. It reports whether the occurrence cap was hit.
func (b *stubBuilder) expandRecurring(ev ParsedEvent, overrides []ParsedEvent, maxOcc int) bool {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Warn("expand: skipping event with invalid RRULE", "uid", ev.UID, "rrule", ev.RawRRule, "err", err)
		return false
	}
	// Ensure Dtstart is set to the event's DTSTART.
	r.DTStart(ev.Start)

	loc := b.year.Location()
	evLoc := ev.Start.Location()

	// EXDATE and RECURRENCE-ID name occurrence instants, so they are
	// dated the same way as the occurrences they refer to.
	excluded := make(map[string]bool, len(ev.ExDates))
	for _, ex := range ev.ExDates {
		excluded[occurrenceDate(ex, loc)] = true
	}
	overridden := make(map[string]bool, len(overrides))
	for _, o := range overrides {
		overridden[occurrenceDate(*o.Recurrence, loc)] = true
	}

	// Both window boundaries are inclusive; days past the end are removed
	// by the window check.
	occTimes := r.Between(b.year.Start.In(evLoc), b.year.Limit().In(evLoc), true)

	hitCap := false
	if len(occTimes) > maxOcc {
		occTimes = occTimes[:maxOcc]
		hitCap = true
	}

	for _, occ := range occTimes {
		date := occurrenceDate(occ, loc)
		if excluded[date] || overridden[date] {
			continue
		}
		b.setRecurring(date, ev)
	}

	for _, o := range overrides {
		b.setExplicit(occurrenceDate(o.Start, loc), o)
	}

	return hitCap
}

func stubFor(date string, ev ParsedEvent) model.EventStub {
	return model.EventStub{
		Title:       ev.Summary,
		Description: ev.Description,
		Date:        date,
	}
}

// occurrenceDate dates a recurrence instant in the reference zone. An
// instant at 23:xx local belongs to the following day.
func occurrenceDate(t time.Time, loc *time.Location) string {
	local := t.In(loc)
	if local.Hour() == 23 {
		local = local.Add(time.Hour)
	}
	return model.FormatDate(local)
}

// dateOf returns the ISO calendar date of t in the reference zone.
func dateOf(t time.Time, loc *time.Location) string {
	return model.FormatDate(t.In(loc))
}
