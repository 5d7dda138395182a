// Package timewindow computes the calendar-date windows the aggregation
// pipeline fetches. All arithmetic is done on model.CivilDate, so the
// results are independent of the wall clock and local timezone of the
// host. No network or parsing side effects.
package timewindow

import (
	"time"

	"edtcal/internal/model"
)

// MondayOf returns the Monday on or before the given date.
func MondayOf(d model.CivilDate) model.CivilDate {
	return d.AddDays(-model.MondayIndex(d.Weekday()))
}

// ResolveWeek returns the 7 consecutive dates of the week containing
// ref shifted by weekOffset weeks, starting on Monday.
func ResolveWeek(ref model.CivilDate, weekOffset int) []model.CivilDate {
	monday := MondayOf(ref.AddDays(weekOffset * 7))
	dates := make([]model.CivilDate, 7)
	for i := range dates {
		dates[i] = monday.AddDays(i)
	}
	return dates
}

// ResolveWindow returns numWeeks*7 consecutive dates starting on the
// Monday on or before ref.
func ResolveWindow(ref model.CivilDate, numWeeks int) []model.CivilDate {
	if numWeeks <= 0 {
		return nil
	}
	monday := MondayOf(ref)
	dates := make([]model.CivilDate, numWeeks*7)
	for i := range dates {
		dates[i] = monday.AddDays(i)
	}
	return dates
}

// Today resolves the current calendar date in loc. Callers must pass an
// explicit location; deriving "today" from the host's local clock is how
// week boundaries end up off by one around midnight.
func Today(loc *time.Location) model.CivilDate {
	return model.CivilDateOf(time.Now().In(loc))
}
