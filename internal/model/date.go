package model

import (
	"fmt"
	"time"
)

// DateLayout is the ISO calendar date used as key in policy documents.
const DateLayout = "2006-01-02"

// Beginning is the earliest representable policy date. Entries placed here
// apply from the start of any simulation.
var Beginning = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses an ISO date (yyyy-mm-dd).
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// MustDate is ParseDate for literals; it panics on malformed input.
func MustDate(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// FormatDate renders t as an ISO date.
func FormatDate(t time.Time) string {
	return Day(t).Format(DateLayout)
}
