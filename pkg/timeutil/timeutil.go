// Package timeutil provides calendar-day utilities for streak calculations.
// All streak comparisons work at date granularity in UTC, never on raw
// timestamps, so "one day later" means the calendar date advanced by one
// regardless of the hour the activity happened.
// No external dependencies - uses only standard library.
package timeutil

import (
	"time"
)

// DateOf truncates a time to the start of its UTC calendar day.
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Today returns the start of the current UTC calendar day.
func Today() time.Time {
	return DateOf(time.Now())
}

// Date creates a UTC date with zero time-of-day.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether two times fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return DateOf(a).Equal(DateOf(b))
}

// DaysBetween returns the number of calendar days from a to b.
// Positive when b is after a, negative when before.
func DaysBetween(a, b time.Time) int {
	da := DateOf(a)
	db := DateOf(b)
	return int(db.Sub(da).Hours() / 24)
}

// NextDay reports whether b falls exactly one calendar day after a.
func NextDay(a, b time.Time) bool {
	return DaysBetween(a, b) == 1
}

// StartOfDay returns the start of the day (00:00:00) in UTC.
func StartOfDay(t time.Time) time.Time {
	return DateOf(t)
}

// EndOfDay returns the end of the day (23:59:59.999999999) in UTC.
func EndOfDay(t time.Time) time.Time {
	return DateOf(t).Add(24*time.Hour - time.Nanosecond)
}

// FormatDate formats a time as a YYYY-MM-DD date string in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ParseDate parses a YYYY-MM-DD date string as a UTC date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}
