package model

import (
	"fmt"
	"time"
)

// CivilDate is a plain calendar date with no timezone attached. It is the
// canonical internal date representation: all window arithmetic happens on
// CivilDate values, and conversion to a wall-clock instant happens only at
// the document-building boundary, against an explicit location.
type CivilDate struct {
	Year  int
	Month time.Month
	Day   int
}

// CivilDateOf extracts the calendar date of t in t's own location.
func CivilDateOf(t time.Time) CivilDate {
	y, m, d := t.Date()
	return CivilDate{Year: y, Month: m, Day: d}
}

// ParseCivilDate parses an ISO "YYYY-MM-DD" string.
func ParseCivilDate(s string) (CivilDate, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return CivilDate{}, fmt.Errorf("date %q: %w", s, err)
	}
	return CivilDateOf(t), nil
}

// String renders the date as ISO "YYYY-MM-DD".
func (d CivilDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// MarshalText makes CivilDate serialize as its ISO form in JSON and YAML.
func (d CivilDate) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *CivilDate) UnmarshalText(b []byte) error {
	parsed, err := ParseCivilDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Time returns the instant at hour:minute on this date in loc.
func (d CivilDate) Time(hour, minute int, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, hour, minute, 0, 0, loc)
}

// AddDays returns the date n whole days later (earlier for negative n).
// time.Date normalizes out-of-range day components, so this is pure
// calendar arithmetic with no wall-clock drift.
func (d CivilDate) AddDays(n int) CivilDate {
	return CivilDateOf(time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, time.UTC))
}

// Weekday returns the Go weekday (Sunday=0) of the date.
func (d CivilDate) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Weekday()
}

// Before reports whether d falls strictly before other.
func (d CivilDate) Before(other CivilDate) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

// MondayIndex converts Go's Sunday-first weekday numbering to the
// Monday-first index used everywhere in this module (Monday=0, Sunday=6).
// This is the only place the adjustment lives.
func MondayIndex(w time.Weekday) int {
	return (int(w) + 6) % 7
}

// frenchDayNames is indexed by MondayIndex.
var frenchDayNames = [7]string{
	"Lundi", "Mardi", "Mercredi", "Jeudi", "Vendredi", "Samedi", "Dimanche",
}

// FrenchDayName returns the French display name of the date's weekday.
func (d CivilDate) FrenchDayName() string {
	return frenchDayNames[MondayIndex(d.Weekday())]
}
