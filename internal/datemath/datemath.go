// Package datemath resolves memorial dates into forward-looking countdowns.
//
// A memorial date has one of two shapes:
//   - "YYYY-MM-DD": fixed-year anniversary
//   - "MM-DD":      recurring every year on the same month/day
//
// All functions are pure; "today" is always passed in by the caller.
package datemath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"auracal/internal/model"
)

// ErrInvalidDate is returned when a memorial date has neither accepted shape.
var ErrInvalidDate = errors.New("datemath: invalid memorial date")

const secondsPerDay = 24 * 60 * 60

// Date is a parsed memorial date. Year is zero for recurring dates.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// Recurring reports whether the date floats every year (MM-DD shape).
func (d Date) Recurring() bool {
	return d.Year == 0
}

// String formats the date back into its storage shape.
func (d Date) String() string {
	if d.Recurring() {
		return fmt.Sprintf("%02d-%02d", int(d.Month), d.Day)
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Occurrence is the resolved next occurrence of a memorial.
type Occurrence struct {
	Target        time.Time
	DaysRemaining int
}

// ParseDate parses "YYYY-MM-DD" or "MM-DD". Components must be numeric,
// month in 1..12 and day in 1..31. Day overflow within a month (e.g. 02-30)
// is accepted and normalized later the same way time.Date does.
func ParseDate(s string) (Date, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")

	nums := make([]int, len(parts))
	for i, p := range parts {
		if p == "" {
			return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		nums[i] = n
	}

	var d Date
	switch len(nums) {
	case 3:
		if nums[0] < 1 || len(parts[0]) != 4 {
			return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		d = Date{Year: nums[0], Month: time.Month(nums[1]), Day: nums[2]}
	case 2:
		d = Date{Month: time.Month(nums[0]), Day: nums[1]}
	default:
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}

	if d.Month < time.January || d.Month > time.December || d.Day < 1 || d.Day > 31 {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

// Today truncates now to midnight in loc. A nil loc means time.Local.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	n := now.In(loc)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
}

// NextOccurrence resolves the next occurrence of m on or after today.
//
//   - MM-DD is placed in today's year.
//   - YYYY-MM-DD in the future is kept as is.
//   - Anything strictly before today moves to its month/day in today's year,
//     and one more year if that has passed too. A past fixed-year date is
//     therefore treated as an annual recurrence.
//
// today must already be truncated to midnight (see Today).
func NextOccurrence(today time.Time, m model.MemorialDay) (Occurrence, error) {
	d, err := ParseDate(m.Date)
	if err != nil {
		return Occurrence{}, err
	}
	return Next(today, d), nil
}

// Next is NextOccurrence for an already parsed date.
func Next(today time.Time, d Date) Occurrence {
	loc := today.Location()

	var target time.Time
	if d.Recurring() {
		target = time.Date(today.Year(), d.Month, d.Day, 0, 0, 0, 0, loc)
	} else {
		target = time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
		if target.Before(today) {
			target = time.Date(today.Year(), d.Month, d.Day, 0, 0, 0, 0, loc)
		}
	}
	if target.Before(today) {
		target = time.Date(today.Year()+1, d.Month, d.Day, 0, 0, 0, 0, loc)
	}

	return Occurrence{Target: target, DaysRemaining: DaysBetween(today, target)}
}

// DaysBetween returns the whole days from from to to, counted on calendar
// dates so that DST transitions between the two never skew the result.
// It is negative when to is before from. Counting is done in Unix seconds
// since time.Duration saturates at about 292 years.
func DaysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int((b.Unix() - a.Unix()) / secondsPerDay)
}
