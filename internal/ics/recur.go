package ics

import (
	"time"

	"auracal/internal/datemath"
	"auracal/internal/model"
)

const maxUpcoming = 50

// Upcoming lists the next n yearly occurrences of m, starting with its next
// occurrence on or after today. n is clamped to [1, 50]. Each occurrence is
// resolved the same way as the countdown, so a Feb 29 entry falls on Mar 1
// in common years.
func Upcoming(today time.Time, m model.MemorialDay, n int) ([]model.CountdownResult, error) {
	if n < 1 {
		n = 1
	}
	if n > maxUpcoming {
		n = maxUpcoming
	}

	d, err := datemath.ParseDate(m.Date)
	if err != nil {
		return nil, err
	}

	out := make([]model.CountdownResult, 0, n)
	from := today
	for range n {
		occ := datemath.Next(from, d)
		out = append(out, model.CountdownResult{
			MemorialDay:   m,
			Target:        occ.Target,
			DaysRemaining: datemath.DaysBetween(today, occ.Target),
		})
		from = occ.Target.AddDate(0, 0, 1)
	}
	return out, nil
}
