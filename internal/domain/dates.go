package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout is the storage and response date format
	DateLayout = "2006-01-02"
	// RequestDateLayout is the query-string date format
	RequestDateLayout = "20060102"
)

// Day truncates t to midnight of its calendar day in loc
func Day(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// AddDays shifts a calendar day by n days, staying at midnight across DST changes
func AddDays(day time.Time, n int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day()+n, 0, 0, 0, 0, day.Location())
}

// ParseRequestDate parses a YYYYMMDD query value as a calendar day in loc
func ParseRequestDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) != len(RequestDateLayout) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	t, err := time.ParseInLocation(RequestDateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// ParseDate parses a stored YYYY-MM-DD value as a calendar day in loc
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, loc)
}

// FormatDate renders a calendar day as YYYY-MM-DD
func FormatDate(day time.Time) string {
	return day.Format(DateLayout)
}
