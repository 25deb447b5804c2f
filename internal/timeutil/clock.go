package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// MinutesPerDay is the number of minutes in a calendar day.
const MinutesPerDay = 24 * 60

// ParseClock converts a local wall-clock string ("15:04") into minutes since
// midnight.
func ParseClock(value string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", value, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders minutes since midnight as "15:04". Values beyond the day
// boundary wrap onto the next day.
func FormatClock(minutes int) string {
	minutes = ((minutes % MinutesPerDay) + MinutesPerDay) % MinutesPerDay
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// DayOfWeek returns the uppercase day name for a date ("MONDAY".."SUNDAY").
func DayOfWeek(date time.Time) string {
	return strings.ToUpper(date.Weekday().String())
}

// LocationFor resolves an IANA timezone name, falling back to UTC when the
// name is empty or unknown.
func LocationFor(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// At localizes a calendar date plus minutes-since-midnight in loc.
func At(date time.Time, minutes int, loc *time.Location) time.Time {
	year, month, day := date.Date()
	return time.Date(year, month, day, minutes/60, minutes%60, 0, 0, loc)
}

// Interval returns the absolute [start, end) instants of a session occupying
// startMin..endMin on date in loc. An end clock numerically before the start
// clock means the session runs past midnight into the next day.
func Interval(date time.Time, startMin, endMin int, loc *time.Location) (time.Time, time.Time) {
	start := At(date, startMin, loc)
	end := At(date, endMin, loc)
	if CrossesMidnight(startMin, endMin) {
		end = end.AddDate(0, 0, 1)
	}
	return start, end
}

// DateOnly truncates a timestamp to its calendar date at UTC midnight.
func DateOnly(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// WeekBounds returns the Monday and following Monday enclosing date, at UTC
// midnight, suitable for half-open weekly range queries.
func WeekBounds(date time.Time) (time.Time, time.Time) {
	d := DateOnly(date)
	offset := (int(d.Weekday()) + 6) % 7
	monday := d.AddDate(0, 0, -offset)
	return monday, monday.AddDate(0, 0, 7)
}
