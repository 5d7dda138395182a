package schedule

import (
	"sort"
	"strings"

	"edtcal/internal/model"
)

// Merge folds external schedules into the primary one. Days match by
// concrete date. External days with no primary counterpart are appended
// as new entries. Every resulting Day has its courses deduplicated
// (same date, start, subject, room is the same occurrence; the richer
// record wins) and re-sorted by numeric start time.
func Merge(primary model.Schedule, externals []model.Schedule) model.Schedule {
	merged := make(model.Schedule, len(primary))
	copy(merged, primary)

	index := make(map[model.CivilDate]int, len(merged))
	for i, day := range merged {
		index[day.Date] = i
	}

	for _, ext := range externals {
		for _, day := range ext {
			if i, ok := index[day.Date]; ok {
				merged[i].Courses = append(merged[i].Courses, day.Courses...)
				continue
			}
			index[day.Date] = len(merged)
			merged = append(merged, day)
		}
	}

	for i := range merged {
		merged[i].Courses = dedupeCourses(merged[i].Courses)
		sortCourses(merged[i].Courses)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Date.Before(merged[j].Date)
	})
	return merged
}

// occurrenceKey identifies one occurrence within a day for dedup.
type occurrenceKey struct {
	start, subject, room string
}

func keyOf(c model.Course) occurrenceKey {
	return occurrenceKey{
		start:   strings.TrimSpace(c.Start),
		subject: strings.TrimSpace(c.Subject),
		room:    strings.TrimSpace(c.Room),
	}
}

// dedupeCourses collapses same-occurrence records, preferring records
// with non-empty teacher/room over sparse ones. First-seen position is
// kept so dedup never reorders on its own.
func dedupeCourses(courses []model.Course) []model.Course {
	if len(courses) < 2 {
		return courses
	}
	seen := make(map[occurrenceKey]int, len(courses))
	out := courses[:0:0]
	for _, c := range courses {
		k := keyOf(c)
		if i, ok := seen[k]; ok {
			out[i] = richer(out[i], c)
			continue
		}
		seen[k] = len(out)
		out = append(out, c)
	}
	return out
}

func richer(a, b model.Course) model.Course {
	if a.Teacher == "" && b.Teacher != "" {
		a.Teacher = b.Teacher
	}
	if a.Room == "" && b.Room != "" {
		a.Room = b.Room
	}
	return a
}

// sortCourses orders by minutes-since-midnight, not lexically: "8:00"
// and "08:00" must compare equal, and "9:00" must sort before "10:00".
// Unparseable starts sink to the end without disturbing the rest.
func sortCourses(courses []model.Course) {
	sort.SliceStable(courses, func(i, j int) bool {
		return startMinutes(courses[i]) < startMinutes(courses[j])
	})
}

func startMinutes(c model.Course) int {
	m, err := model.ParseClock(c.Start)
	if err != nil {
		return 24 * 60
	}
	return m
}
