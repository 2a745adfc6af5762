package schedule

import (
	"fmt"
	"time"

	"bellsched/internal/model"
)

func span(start, end string) model.Span {
	return model.Span{Start: model.MustClock(start), End: model.MustClock(end)}
}

func ordinalSuffix(n int) string {
	if n%100 >= 11 && n%100 <= 13 {
		return "th"
	}
	switch n % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	}
	return "th"
}

// InstructionalPeriod returns the numbered class period, e.g. "3rd Period"
// with id "period-3".
func InstructionalPeriod(n int, start, end string) model.Period {
	return model.Period{
		Type: model.Instructional,
		ID:   fmt.Sprintf("period-%d", n),
		Name: fmt.Sprintf("%d%s Period", n, ordinalSuffix(n)),
		Span: span(start, end),
	}
}

// FinalPeriod returns the final exam block of class period n, e.g.
// "5th Period Final" with id "finals-5".
func FinalPeriod(n int, start, end string) model.Period {
	return model.Period{
		Type: model.Instructional,
		ID:   fmt.Sprintf("finals-%d", n),
		Name: fmt.Sprintf("%d%s Period Final", n, ordinalSuffix(n)),
		Span: span(start, end),
	}
}

func AcademyPeriod(start, end string) model.Period {
	return model.Period{Type: model.Instructional, ID: "academy", Name: "Academy", Span: span(start, end)}
}

func BrunchPeriod(start, end string) model.Period {
	return model.Period{Type: model.Break, ID: "brunch", Name: "Brunch", Span: span(start, end)}
}

func LunchPeriod(start, end string) model.Period {
	return model.Period{Type: model.Break, ID: "lunch", Name: "Lunch", Span: span(start, end)}
}

// PassingPeriod returns a passing period starting at start. With an empty
// end it lasts the usual ten minutes.
func PassingPeriod(start, end string) model.Period {
	if end == "" {
		s := model.MustClock(start)
		t := time.Date(0, 1, 1, s.Hour, s.Minute, s.Second, 0, time.UTC).Add(10 * time.Minute)
		end = t.Format("15:04:05")
	}
	return model.NewPassing(span(start, end))
}

// PeriodRef names a period without its times.
type PeriodRef struct {
	ID   string
	Name string
	Type model.PeriodType
}

func refOf(p model.Period) PeriodRef {
	return PeriodRef{ID: p.ID, Name: p.Name, Type: p.Type}
}

// KnownPeriods lists the period ids and names the school uses, in the
// order they are presented to the model.
func KnownPeriods() []PeriodRef {
	const t = "00:00:00"
	var out []PeriodRef
	for n := 1; n <= 7; n++ {
		out = append(out, refOf(InstructionalPeriod(n, t, t)))
	}
	return append(out,
		refOf(LunchPeriod(t, t)),
		refOf(BrunchPeriod(t, t)),
		refOf(AcademyPeriod(t, t)),
	)
}

// FinalRef is the naming of the final exam block of class period n.
func FinalRef(n int) PeriodRef {
	return refOf(FinalPeriod(n, "00:00:00", "00:00:00"))
}
