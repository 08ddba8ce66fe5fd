package acs

import (
	"fmt"
	"time"
)

// Period is an inclusive date range for history queries.
type Period struct {
	Name string
	From time.Time
	To   time.Time
}

// Period names accepted by PeriodFor.
const (
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodYear  = "year"
)

// PeriodFor returns the named period containing now. Weeks run Monday to
// Sunday; months and years are calendar ranges.
func PeriodFor(name string, now time.Time) (Period, error) {
	y, m, d := now.Date()
	loc := now.Location()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)

	switch name {
	case PeriodDay:
		return Period{Name: name, From: today, To: today}, nil
	case PeriodWeek:
		offset := (int(today.Weekday()) + 6) % 7 // Monday = 0
		start := today.AddDate(0, 0, -offset)
		return Period{Name: name, From: start, To: start.AddDate(0, 0, 6)}, nil
	case PeriodMonth:
		start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return Period{Name: name, From: start, To: start.AddDate(0, 1, -1)}, nil
	case PeriodYear:
		return Period{
			Name: name,
			From: time.Date(y, time.January, 1, 0, 0, 0, 0, loc),
			To:   time.Date(y, time.December, 31, 0, 0, 0, 0, loc),
		}, nil
	}
	return Period{}, fmt.Errorf("unknown period %q", name)
}
