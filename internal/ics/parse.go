package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "auracal/internal/log"
	"auracal/internal/model"
)

// ParseMemorials converts the VEVENTs of an ICS payload into memorial day
// candidates (without ids):
//
//   - SUMMARY becomes the name.
//   - DTSTART becomes the date: "MM-DD" when the event recurs yearly
//     (RRULE FREQ=YEARLY), "YYYY-MM-DD" otherwise.
//
// Events without a summary or a start are skipped and logged.
func ParseMemorials(body []byte) ([]model.MemorialDay, error) {
	if len(body) == 0 {
		return nil, errors.New("ics: empty body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ics: parse: %w", err)
	}

	out := make([]model.MemorialDay, 0)
	for _, ve := range cal.Events() {
		m, perr := parseVEvent(ve)
		if perr != nil {
			appLog.Debug("ics vevent skipped", "reason", perr.Error(), "uid", uid(ve))
			continue
		}
		out = append(out, m)
	}

	appLog.Info("ics parse completed", "event_count", len(cal.Events()), "memorial_count", len(out))
	return out, nil
}

func parseVEvent(ve *ical.VEvent) (model.MemorialDay, error) {
	var out model.MemorialDay

	p := ve.GetProperty(ical.ComponentPropertySummary)
	if p == nil || strings.TrimSpace(p.Value) == "" {
		return out, errors.New("missing SUMMARY")
	}
	out.Name = strings.TrimSpace(p.Value)

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || dtStart.Value == "" {
		return out, errors.New("missing DTSTART")
	}

	var (
		start time.Time
		err   error
	)
	if isAllDay(dtStart) {
		start, err = ve.GetAllDayStartAt()
	} else {
		start, err = ve.GetStartAt()
	}
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}

	if recursYearly(ve) {
		out.Date = start.Format("01-02")
	} else {
		out.Date = start.Format("2006-01-02")
	}
	return out, nil
}

// isAllDay reports VALUE=DATE or a date-only value (no 'T').
func isAllDay(prop *ical.IANAProperty) bool {
	if vs, ok := prop.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(prop.Value, "T")
}

func recursYearly(ve *ical.VEvent) bool {
	p := ve.GetProperty(ical.ComponentPropertyRrule)
	if p == nil || p.Value == "" {
		return false
	}
	opt, err := rrule.StrToROption(p.Value)
	if err != nil {
		appLog.Debug("ics: unparsable RRULE treated as one-off", "rrule", p.Value)
		return false
	}
	return opt.Freq == rrule.YEARLY
}

func uid(ve *ical.VEvent) string {
	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		return p.Value
	}
	return ""
}
