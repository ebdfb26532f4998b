package model

import (
	"errors"
	"fmt"
	"time"
)

// MemorialDay is a user-defined named date tracked by a countdown.
//
// Date is either a full date ("YYYY-MM-DD", fixed-year anniversary) or a
// month-day ("MM-DD", recurring every year). ID is assigned at creation and
// never changes.
type MemorialDay struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Date string `json:"date"`
}

// CountdownResult is a MemorialDay with its next occurrence resolved against
// a reference "today". It is derived on demand and never stored.
type CountdownResult struct {
	MemorialDay

	// Target is the concrete next occurrence (midnight, display timezone).
	Target time.Time `json:"target"`

	// DaysRemaining is the whole-day distance from today to Target, >= 0.
	DaysRemaining int `json:"daysRemaining"`
}

// NewsItem is one entry of the daily news digest.
type NewsItem struct {
	Category string `json:"category"`
	Title    string `json:"title"`
	Summary  string `json:"summary"`
	Source   string `json:"source"`
	URL      string `json:"url"`
}

// Holiday describes the next public holiday as reported by the provider.
type Holiday struct {
	Name          string `json:"name"`
	DaysRemaining int    `json:"daysRemaining"`
	Date          string `json:"date"`
}

// Knowledge is the daily quote shown on the card and the poster.
type Knowledge struct {
	Content  string `json:"content"`
	Author   string `json:"author,omitempty"`
	Source   string `json:"source"`
	IsPoetry bool   `json:"isPoetry"`
}

// DailyInfo is the externally supplied payload for one day. It is consumed
// read-only; SolarTerm and Knowledge.Author are the only optional fields.
type DailyInfo struct {
	GregorianDate string     `json:"gregorianDate"`
	Weekday       string     `json:"weekday"`
	LunarDate     string     `json:"lunarDate"`
	Festivals     []string   `json:"festivals"`
	SolarTerm     *string    `json:"solarTerm"`
	DaysToWeekend int        `json:"daysToWeekend"`
	NextHoliday   Holiday    `json:"nextHoliday"`
	Knowledge     Knowledge  `json:"knowledge"`
	News          []NewsItem `json:"news"`
}

// ErrIncompleteDailyInfo is returned by Validate when a required field is
// missing. A payload failing validation must not be rendered partially.
var ErrIncompleteDailyInfo = errors.New("model: incomplete daily info")

// Validate checks that every required field is present.
func (d *DailyInfo) Validate() error {
	missing := func(field string) error {
		return fmt.Errorf("%w: %s", ErrIncompleteDailyInfo, field)
	}

	switch {
	case d.GregorianDate == "":
		return missing("gregorianDate")
	case d.Weekday == "":
		return missing("weekday")
	case d.LunarDate == "":
		return missing("lunarDate")
	case d.Festivals == nil:
		return missing("festivals")
	case d.NextHoliday.Name == "" || d.NextHoliday.Date == "":
		return missing("nextHoliday")
	case d.Knowledge.Content == "" || d.Knowledge.Source == "":
		return missing("knowledge")
	case d.News == nil:
		return missing("news")
	}

	for i, n := range d.News {
		if n.Category == "" || n.Title == "" || n.Summary == "" || n.Source == "" || n.URL == "" {
			return missing(fmt.Sprintf("news[%d]", i))
		}
	}
	return nil
}

// HasFestival reports whether the day carries a festival or a solar term.
func (d *DailyInfo) HasFestival() bool {
	return len(d.Festivals) > 0 || (d.SolarTerm != nil && *d.SolarTerm != "")
}
