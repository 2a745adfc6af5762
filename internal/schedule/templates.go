package schedule

import (
	"time"

	"bellsched/internal/model"
)

// Template is a named, recurring bell schedule matched by exact event
// title.
type Template struct {
	// Name is the calendar event title that selects this template.
	Name string
	// DisplayName is shown when the template is used on an unusual day.
	DisplayName string
	// AIDescription describes the template to the inference model.
	AIDescription string
	Days          []time.Weekday
	Periods       []model.Period
}

// OccursOn reports whether d is one of the template's normal weekdays.
func (t Template) OccursOn(d time.Weekday) bool {
	for _, wd := range t.Days {
		if wd == d {
			return true
		}
	}
	return false
}

// Schedule returns a fresh copy of the template periods.
func (t Template) Schedule() model.DailySchedule {
	return model.DailySchedule{Periods: append([]model.Period(nil), t.Periods...)}
}

var mondayPeriods = []model.Period{
	InstructionalPeriod(1, "08:30:00", "09:15:00"),
	PassingPeriod("09:15:00", "09:25:00"),
	InstructionalPeriod(2, "09:25:00", "10:10:00"),
	BrunchPeriod("10:10:00", "10:25:00"),
	InstructionalPeriod(3, "10:25:00", "11:10:00"),
	PassingPeriod("11:10:00", "11:20:00"),
	InstructionalPeriod(4, "11:20:00", "12:10:00"),
	PassingPeriod("12:10:00", "12:20:00"),
	InstructionalPeriod(5, "12:20:00", "13:05:00"),
	LunchPeriod("13:05:00", "13:45:00"),
	InstructionalPeriod(6, "13:45:00", "14:30:00"),
	PassingPeriod("14:30:00", "14:40:00"),
	InstructionalPeriod(7, "14:40:00", "15:25:00"),
}

var oddPeriods = []model.Period{
	InstructionalPeriod(1, "08:30:00", "10:00:00"),
	BrunchPeriod("10:00:00", "10:15:00"),
	InstructionalPeriod(3, "10:15:00", "11:45:00"),
	PassingPeriod("11:45:00", "11:55:00"),
	InstructionalPeriod(5, "11:55:00", "13:25:00"),
	LunchPeriod("13:25:00", "14:05:00"),
	InstructionalPeriod(7, "14:05:00", "15:35:00"),
}

var evenPeriods = []model.Period{
	InstructionalPeriod(2, "08:30:00", "10:00:00"),
	BrunchPeriod("10:00:00", "10:15:00"),
	AcademyPeriod("10:15:00", "11:00:00"),
	PassingPeriod("11:00:00", "11:10:00"),
	InstructionalPeriod(4, "11:10:00", "12:40:00"),
	LunchPeriod("12:40:00", "13:20:00"),
	InstructionalPeriod(6, "13:20:00", "14:50:00"),
}

// Standard is the static table of known templates.
var Standard = []Template{
	{
		Name:          "Monday Schedule",
		DisplayName:   "Monday schedule",
		AIDescription: "a Monday schedule, containing all periods (1-7)",
		Days:          []time.Weekday{time.Monday},
		Periods:       mondayPeriods,
	},
	{
		Name:          "T/Th Schedule",
		DisplayName:   "Odd periods",
		AIDescription: "a Tuesday/Thursday schedule, containing odd periods,",
		Days:          []time.Weekday{time.Tuesday, time.Thursday},
		Periods:       oddPeriods,
	},
	{
		Name:          "W/F Schedule",
		DisplayName:   "Even periods",
		AIDescription: "a Wednesday/Friday schedule, containing even periods,",
		Days:          []time.Weekday{time.Wednesday, time.Friday},
		Periods:       evenPeriods,
	},
}

// ForWeekday returns the template normally used on d.
func ForWeekday(d time.Weekday) (Template, bool) {
	for _, t := range Standard {
		if t.OccursOn(d) {
			return t, true
		}
	}
	return Template{}, false
}
