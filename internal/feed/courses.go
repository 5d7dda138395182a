package feed

import (
	"sort"
	"time"

	"edtcal/internal/model"
)

// ExtractCourses parses a feed body and returns the Courses whose start
// instant falls within [weekStart, weekStart+days). Days are keyed by
// the occurrence's concrete calendar date in loc, never by weekday name,
// so occurrences from different weeks sharing a weekday stay apart.
func ExtractCourses(src Source, body []byte, weekStart model.CivilDate, days int, loc *time.Location) (model.Schedule, error) {
	events, err := ParseFeed(src, body)
	if err != nil {
		return nil, err
	}

	rangeStart := weekStart.Time(0, 0, loc)
	rangeEnd := weekStart.AddDays(days).Time(0, 0, loc)

	occurrences := Expand(events, ExpandConfig{
		Location:   loc,
		RangeStart: rangeStart,
		RangeEnd:   rangeEnd,
	})

	byDate := make(map[model.CivilDate][]model.Course)
	for _, occ := range occurrences {
		date := model.CivilDateOf(occ.Start)
		byDate[date] = append(byDate[date], model.Course{
			Start:   occ.Start.Format("15:04"),
			End:     occ.End.Format("15:04"),
			Subject: occ.Summary,
			Room:    occ.Location,
			Teacher: "", // iCal has no instructor field
			Source:  src.Name,
		})
	}

	schedule := make(model.Schedule, 0, len(byDate))
	for date, courses := range byDate {
		schedule = append(schedule, model.Day{
			Day:     date.FrenchDayName(),
			Date:    date,
			Courses: courses,
		})
	}
	sort.Slice(schedule, func(i, j int) bool {
		return schedule[i].Date.Before(schedule[j].Date)
	})
	return schedule, nil
}
