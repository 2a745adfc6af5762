package store

import (
	"context"
	"fmt"
	"time"

	"bellsched/internal/model"
)

// Days persists one DailySchedule per calendar date under day:<date>.
type Days struct {
	kv  KV
	loc *time.Location
}

// NewDays returns a day store. loc is the school's reference zone used
// when stamping stored schedules.
func NewDays(kv KV, loc *time.Location) *Days {
	if loc == nil {
		loc = time.Local
	}
	return &Days{kv: kv, loc: loc}
}

// Location is the zone stored schedules are stamped in.
func (d *Days) Location() *time.Location { return d.loc }

func dayKey(date string) string { return DayPrefix + date }

// Set writes s for date and reports whether the stored value changed.
// A nil schedule deletes the date; that counts as a change only when a
// value was present.
func (d *Days) Set(ctx context.Context, date string, s *model.DailySchedule) (bool, error) {
	if s == nil {
		return d.kv.Del(ctx, dayKey(date))
	}
	data, err := s.Marshal()
	if err != nil {
		return false, fmt.Errorf("encode schedule for %s: %w", date, err)
	}
	prev, existed, err := d.kv.SetGet(ctx, dayKey(date), data)
	if err != nil {
		return false, err
	}
	return !existed || prev != data, nil
}

// Get returns the schedule stored for date with its periods placed on
// that day. A missing date yields an empty schedule.
func (d *Days) Get(ctx context.Context, date string) (model.DatedSchedule, error) {
	day, err := model.ParseDate(date, d.loc)
	if err != nil {
		return model.DatedSchedule{}, err
	}
	return d.getDay(ctx, day)
}

func (d *Days) getDay(ctx context.Context, day time.Time) (model.DatedSchedule, error) {
	date := model.FormatDate(day)
	raw, ok, err := d.kv.Get(ctx, dayKey(date))
	if err != nil {
		return model.DatedSchedule{}, err
	}
	if !ok {
		return model.Stamp(model.Empty(), day), nil
	}
	s, err := model.UnmarshalSchedule([]byte(raw))
	if err != nil {
		return model.DatedSchedule{}, fmt.Errorf("stored schedule for %s: %w", date, err)
	}
	return model.Stamp(s, day), nil
}

// Week returns the seven days starting at the Monday of date's week.
func (d *Days) Week(ctx context.Context, date string) ([]model.DatedSchedule, error) {
	day, err := model.ParseDate(date, d.loc)
	if err != nil {
		return nil, err
	}
	monday := model.WeekStart(day)
	out := make([]model.DatedSchedule, 0, 7)
	for i := 0; i < 7; i++ {
		ds, err := d.getDay(ctx, monday.AddDate(0, 0, i))
		if err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, nil
}
