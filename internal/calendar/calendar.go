// Package calendar implements business-day arithmetic over Korean public
// holidays with an optional set of configured extra holidays.
package calendar

import (
	"fmt"
	"time"
)

type monthDay struct {
	month time.Month
	day   int
}

// fixedHolidays are observed every year on the same calendar date.
var fixedHolidays = map[monthDay]string{
	{time.January, 1}:   "New Year's Day",
	{time.March, 1}:     "Independence Movement Day",
	{time.May, 5}:       "Children's Day",
	{time.June, 6}:      "Memorial Day",
	{time.August, 15}:   "Liberation Day",
	{time.October, 3}:   "National Foundation Day",
	{time.October, 9}:   "Hangul Day",
	{time.December, 25}: "Christmas",
}

// Calendar answers business-day questions. The zero value knows only
// weekends and fixed holidays.
type Calendar struct {
	extra map[time.Time]struct{}
}

// New creates a Calendar with additional non-business dates (lunar holidays,
// substitute holidays, election days).
func New(extraHolidays ...time.Time) *Calendar {
	c := &Calendar{extra: make(map[time.Time]struct{}, len(extraHolidays))}
	for _, d := range extraHolidays {
		c.extra[Date(d)] = struct{}{}
	}
	return c
}

// Parse creates a Calendar from YYYY-MM-DD strings.
func Parse(extraHolidays []string) (*Calendar, error) {
	dates := make([]time.Time, 0, len(extraHolidays))
	for _, s := range extraHolidays {
		d, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return nil, fmt.Errorf("parsing extra holiday %q: %w", s, err)
		}
		dates = append(dates, d)
	}
	return New(dates...), nil
}

// Date truncates t to its calendar date at midnight UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsBusinessDay reports whether d is neither a weekend day nor a holiday.
func (c *Calendar) IsBusinessDay(d time.Time) bool {
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	if _, ok := fixedHolidays[monthDay{d.Month(), d.Day()}]; ok {
		return false
	}
	if c != nil {
		if _, ok := c.extra[Date(d)]; ok {
			return false
		}
	}
	return true
}

// Shift moves d one day at a time (forward or backward) until it lands on a
// business day. A business day is returned unchanged.
func (c *Calendar) Shift(d time.Time, forward bool) time.Time {
	d = Date(d)
	step := -1
	if forward {
		step = 1
	}
	for !c.IsBusinessDay(d) {
		d = d.AddDate(0, 0, step)
	}
	return d
}

// StepDate resolves a step's calendar offset against a trigger date. Non-negative
// offsets shift forward, negative offsets shift backward.
func (c *Calendar) StepDate(trigger time.Time, offsetDays int) time.Time {
	return c.Shift(Date(trigger).AddDate(0, 0, offsetDays), offsetDays >= 0)
}

// BusinessDaysBefore returns the date exactly n business days before target.
// For n == 0 the target itself is used, moved back to a business day if needed.
func (c *Calendar) BusinessDaysBefore(target time.Time, n int) time.Time {
	current := Date(target)
	if n <= 0 {
		return c.Shift(current, false)
	}
	for count := 0; count < n; {
		current = current.AddDate(0, 0, -1)
		if c.IsBusinessDay(current) {
			count++
		}
	}
	return current
}

// CalendarDaysBefore returns target minus n calendar days, moved back to a
// business day.
func (c *Calendar) CalendarDaysBefore(target time.Time, n int) time.Time {
	return c.Shift(Date(target).AddDate(0, 0, -n), false)
}
