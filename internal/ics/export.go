package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"bellsched/internal/model"
)

// uidNamespace scopes the name-based UIDs of exported periods so a
// period keeps its UID across feed regenerations.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://bellsched/periods"))

// ExportFeed renders the instructional periods of days as an ICS feed.
// Breaks and passing periods are omitted.
func ExportFeed(days []model.DatedSchedule, name string, generatedAt time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//bellsched//bell schedule//EN")
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, day := range days {
		date := model.FormatDate(day.Date)
		for _, p := range day.Periods {
			if p.Type != model.Instructional {
				continue
			}
			uid := uuid.NewSHA1(uidNamespace, []byte(date+"/"+p.ID+"/"+p.Start.Format("15:04"))).String()
			ev := cal.AddEvent(uid)
			ev.SetDtStampTime(generatedAt)
			ev.SetStartAt(p.Start)
			ev.SetEndAt(p.End)
			ev.SetSummary(p.Name)
		}
	}

	return cal.Serialize()
}
