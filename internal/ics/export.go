package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"auracal/internal/datemath"
	appLog "auracal/internal/log"
	"auracal/internal/model"
)

const ProductID = "-//Aura Calendar//Memorial Days//ZH"

// ExportMemorials renders the memorial days as an iCalendar feed. Each entry
// becomes an all-day yearly VEVENT starting at its next occurrence relative
// to today. Entries with malformed dates are left out.
func ExportMemorials(items []model.MemorialDay, today time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)

	yearly := (&rrule.ROption{Freq: rrule.YEARLY}).String()
	stamp := time.Now().UTC()

	for _, m := range items {
		occ, err := datemath.NextOccurrence(today, m)
		if err != nil {
			appLog.Debug("ics export: skipping memorial day", "id", m.ID, "date", m.Date)
			continue
		}

		ev := cal.AddEvent(m.ID)
		ev.SetDtStampTime(stamp)
		ev.SetSummary(m.Name)
		ev.SetDescription("纪念日 " + m.Date)
		ev.SetAllDayStartAt(occ.Target)
		ev.SetAllDayEndAt(occ.Target.AddDate(0, 0, 1))
		ev.AddRrule(yearly)
	}

	return cal.Serialize()
}
