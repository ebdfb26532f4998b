package ics

import (
	"strings"
	"testing"
	"time"

	"auracal/internal/datemath"
	"auracal/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

const sampleICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//Test//Test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:birthday@test\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"SUMMARY:Mom's birthday\r\n" +
	"DTSTART;VALUE=DATE:19650512\r\n" +
	"RRULE:FREQ=YEARLY\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:trip@test\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"SUMMARY:Trip\r\n" +
	"DTSTART;VALUE=DATE:20251224\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:nosummary@test\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"DTSTART;VALUE=DATE:20250101\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParseMemorials(t *testing.T) {
	got, err := ParseMemorials([]byte(sampleICS))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 memorials, got %d: %+v", len(got), got)
	}
	if got[0].Name != "Mom's birthday" || got[0].Date != "05-12" {
		t.Errorf("yearly event = %+v, want Mom's birthday 05-12", got[0])
	}
	if got[1].Name != "Trip" || got[1].Date != "2025-12-24" {
		t.Errorf("one-off event = %+v, want Trip 2025-12-24", got[1])
	}
	if got[0].ID != "" {
		t.Error("parsed memorials must not carry ids")
	}
}

func TestParseMemorialsEmpty(t *testing.T) {
	if _, err := ParseMemorials(nil); err == nil {
		t.Fatal("expected error for empty body")
	}
}

func TestExportMemorialsRoundTrip(t *testing.T) {
	today := day(2024, time.March, 1)
	items := []model.MemorialDay{
		{ID: "a", Name: "Anniversary", Date: "03-05"},
		{ID: "b", Name: "Past", Date: "2023-01-10"},
		{ID: "c", Name: "Broken", Date: "never"},
	}

	out := ExportMemorials(items, today)

	for _, want := range []string{"BEGIN:VCALENDAR", "PRODID:" + ProductID, "UID:a", "SUMMARY:Anniversary", "FREQ=YEARLY"} {
		if !strings.Contains(out, want) {
			t.Errorf("export missing %q", want)
		}
	}
	if strings.Contains(out, "Broken") {
		t.Error("malformed memorial should not be exported")
	}
	if strings.Count(out, "BEGIN:VEVENT") != 2 {
		t.Errorf("expected 2 events, got %d", strings.Count(out, "BEGIN:VEVENT"))
	}

	back, err := ParseMemorials([]byte(out))
	if err != nil {
		t.Fatalf("parse exported feed: %v", err)
	}
	if len(back) != 2 {
		t.Fatalf("expected 2 parsed memorials, got %+v", back)
	}
	if back[0].Date != "03-05" || back[1].Date != "01-10" {
		t.Errorf("exported feed should read back as recurring dates, got %+v", back)
	}
}

func TestUpcoming(t *testing.T) {
	today := day(2024, time.March, 1)
	m := model.MemorialDay{ID: "a", Name: "Anniversary", Date: "03-05"}

	got, err := Upcoming(today, m, 3)
	if err != nil {
		t.Fatalf("upcoming: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 occurrences, got %d", len(got))
	}

	wantYears := []int{2024, 2025, 2026}
	wantDays := []int{4, 369, 734}
	for i, occ := range got {
		if occ.Target.Year() != wantYears[i] || occ.Target.Month() != time.March || occ.Target.Day() != 5 {
			t.Errorf("occurrence %d = %s", i, occ.Target.Format("2006-01-02"))
		}
		if occ.DaysRemaining != wantDays[i] {
			t.Errorf("occurrence %d days = %d, want %d", i, occ.DaysRemaining, wantDays[i])
		}
	}
}

func TestUpcomingLeapDay(t *testing.T) {
	today := day(2028, time.January, 1)
	m := model.MemorialDay{ID: "l", Name: "Leap", Date: "02-29"}

	got, err := Upcoming(today, m, 3)
	if err != nil {
		t.Fatalf("upcoming: %v", err)
	}

	want := []string{"2028-02-29", "2029-03-01", "2030-03-01"}
	wantDays := []int{59, 425, 790}
	for i, occ := range got {
		if occ.Target.Format("2006-01-02") != want[i] || occ.DaysRemaining != wantDays[i] {
			t.Errorf("occurrence %d = %s (%d days), want %s (%d days)",
				i, occ.Target.Format("2006-01-02"), occ.DaysRemaining, want[i], wantDays[i])
		}
	}

	// Each entry agrees with the countdown seen from the day after the
	// previous one.
	from := today
	for i, occ := range got {
		next, err := datemath.NextOccurrence(from, m)
		if err != nil {
			t.Fatal(err)
		}
		if !next.Target.Equal(occ.Target) {
			t.Errorf("occurrence %d = %s, countdown says %s", i, occ.Target.Format("2006-01-02"), next.Target.Format("2006-01-02"))
		}
		from = occ.Target.AddDate(0, 0, 1)
	}
}

func TestUpcomingFixedFutureDate(t *testing.T) {
	today := day(2024, time.March, 1)
	got, err := Upcoming(today, model.MemorialDay{Date: "2030-05-01"}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Target.Format("2006-01-02") != "2030-05-01" || got[1].Target.Format("2006-01-02") != "2031-05-01" {
		t.Errorf("unexpected series %s, %s", got[0].Target.Format("2006-01-02"), got[1].Target.Format("2006-01-02"))
	}
}

func TestUpcomingClampsAndRejectsBadDates(t *testing.T) {
	today := day(2024, time.March, 1)

	got, err := Upcoming(today, model.MemorialDay{Date: "03-05"}, 0)
	if err != nil || len(got) != 1 {
		t.Errorf("n=0 should clamp to 1, got %d (err %v)", len(got), err)
	}

	if _, err := Upcoming(today, model.MemorialDay{Date: "x"}, 3); err == nil {
		t.Error("expected error for malformed date")
	}
}
