package schedule

import (
	"strings"
	"time"

	"bellsched/internal/model"
)

// Match resolves a stub whose trimmed title is exactly a standard template
// name. The returned schedule is normalized. When the stub's weekday is not
// one of the template's normal days the message is set to the template's
// display name. ok is false when the stub needs AI inference.
func Match(stub model.EventStub) (s model.DailySchedule, ok bool, err error) {
	title := strings.TrimSpace(stub.Title)

	for _, t := range Standard {
		if t.Name != title {
			continue
		}
		day, err := stub.Day(time.UTC)
		if err != nil {
			return model.DailySchedule{}, false, err
		}
		s = t.Schedule()
		if !t.OccursOn(day.Weekday()) {
			s.Message = t.DisplayName
		}
		return Normalize(s), true, nil
	}
	return model.DailySchedule{}, false, nil
}
