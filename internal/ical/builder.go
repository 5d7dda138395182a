// Package ical serializes a merged Schedule into a calendar subscription
// document.
package ical

import (
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	appLog "edtcal/internal/log"
	"edtcal/internal/model"
	"edtcal/internal/schedule"
)

const prodID = "-//edtcal//Schedule//FR"

// icalDateTimeLayout is a local wall-clock stamp; the TZID parameter on
// the property supplies the zone. Floating or UTC-labeled local times
// are exactly the defect this avoids.
const icalDateTimeLayout = "20060102T150405"

// BuildCalendar serializes the schedule into an iCal text document with
// one VEVENT per course. A course whose time fields fail to parse is
// logged and skipped; one bad record never aborts the document.
func BuildCalendar(s model.Schedule, user string, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}

	cal := ics.NewCalendar()
	cal.SetProductId(prodID)
	cal.SetCalscale("GREGORIAN")
	cal.SetMethod(ics.MethodPublish)
	cal.SetName(fmt.Sprintf("Emploi du temps pour %s", user))
	cal.SetXWRCalName(fmt.Sprintf("Emploi du temps pour %s", user))
	cal.SetDescription(fmt.Sprintf("EDT pour %s", user))
	cal.SetXWRCalDesc(fmt.Sprintf("EDT pour %s", user))
	cal.SetRefreshInterval("PT1H")
	cal.SetXPublishedTTL("PT1H")
	cal.SetTzid(loc.String())

	now := time.Now().UTC()
	for _, day := range s {
		for _, course := range day.Courses {
			if err := addEvent(cal, day.Date, course, user, loc, now); err != nil {
				appLog.Error("event skipped in calendar export", err,
					"user", user, "date", day.Date.String(), "subject", course.Subject)
			}
		}
	}

	return cal.Serialize()
}

func addEvent(cal *ics.Calendar, date model.CivilDate, course model.Course, user string, loc *time.Location, stamp time.Time) error {
	startMin, err := model.ParseClock(course.Start)
	if err != nil {
		return err
	}
	endMin, err := model.ParseClock(course.End)
	if err != nil {
		return err
	}

	start := date.Time(startMin/60, startMin%60, loc)
	end := date.Time(endMin/60, endMin%60, loc)

	ev := cal.AddEvent(schedule.StableUID(user, date, course))
	ev.SetDtStampTime(stamp)
	ev.SetSummary(course.Subject)

	tzid := &ics.KeyValues{Key: "TZID", Value: []string{loc.String()}}
	ev.SetProperty(ics.ComponentPropertyDtStart, start.Format(icalDateTimeLayout), tzid)
	ev.SetProperty(ics.ComponentPropertyDtEnd, end.Format(icalDateTimeLayout), tzid)

	if course.Room != "" {
		ev.SetLocation(course.Room)
	}
	if desc := describe(course); desc != "" {
		ev.SetDescription(desc)
	}
	return nil
}

// describe concatenates the instructor and room details, newline
// separated; empty when both are absent so DESCRIPTION is omitted.
func describe(course model.Course) string {
	var parts []string
	if course.Teacher != "" {
		parts = append(parts, "Prof: "+course.Teacher)
	}
	if course.Room != "" {
		parts = append(parts, "Salle: "+course.Room)
	}
	return strings.Join(parts, "\n")
}
