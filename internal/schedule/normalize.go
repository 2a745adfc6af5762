package schedule

import "bellsched/internal/model"

// Normalize brings a candidate schedule into stored form: gaps become
// explicit passing periods, then breaks absorb the passing period that
// follows them.
func Normalize(s model.DailySchedule) model.DailySchedule {
	out := s.Clone()
	out.Periods = AbsorbPassing(FillGaps(out.Periods))
	return out
}

// FillGaps inserts a passing period wherever one period ends strictly
// before the next one starts. A passing period followed by a gap is
// extended over it instead, so passing periods never sit back to back.
func FillGaps(periods []model.Period) []model.Period {
	out := make([]model.Period, 0, len(periods))
	for i, p := range periods {
		if i+1 < len(periods) && p.Span.End.Before(periods[i+1].Span.Start) {
			gap := model.Span{Start: p.Span.End, End: periods[i+1].Span.Start}
			if p.Type == model.Passing {
				p.Span.End = gap.End
				out = append(out, p)
				continue
			}
			out = append(out, p, model.NewPassing(gap))
			continue
		}
		out = append(out, p)
	}
	return out
}

// AbsorbPassing drops the passing periods that sit between a break and a
// following period, extending the break to the start of that period. A
// break followed only by passing time is left as is.
func AbsorbPassing(periods []model.Period) []model.Period {
	out := make([]model.Period, 0, len(periods))
	for i := 0; i < len(periods); i++ {
		p := periods[i]
		if p.Type != model.Break {
			out = append(out, p)
			continue
		}
		j := i + 1
		for j < len(periods) && periods[j].Type == model.Passing {
			j++
		}
		if j == i+1 || j == len(periods) {
			out = append(out, p)
			continue
		}
		p.Span.End = periods[j].Span.Start
		out = append(out, p)
		i = j - 1
	}
	return out
}
