package portal

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	appLog "edtcal/internal/log"
	"edtcal/internal/model"
)

// Structural selectors of the portal's day fragment. One ".Ligne" element
// per scheduled entry, with role-named children.
const (
	lineSelector    = ".Ligne"
	startSelector   = ".Debut"
	endSelector     = ".Fin"
	subjectSelector = ".Matiere"
	roomSelector    = ".Salle"
	teacherSelector = ".Prof"
)

// ExtractCourses parses one day's HTML fragment into Course records.
// A line is accepted iff start and end are non-empty and contain a time
// separator and the subject is non-empty; room and teacher default to "".
// Empty or malformed input yields an empty list, never an error.
func ExtractCourses(html string) []model.Course {
	if html == "" {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		appLog.Error("portal html parse failed", err)
		return nil
	}

	var courses []model.Course
	doc.Find(lineSelector).Each(func(_ int, line *goquery.Selection) {
		start := cleanText(line.Find(startSelector).First().Text())
		end := cleanText(line.Find(endSelector).First().Text())
		subject := cleanText(line.Find(subjectSelector).First().Text())
		room := cleanText(line.Find(roomSelector).First().Text())
		teacher := cleanText(line.Find(teacherSelector).First().Text())

		if start == "" || end == "" || subject == "" {
			return
		}
		if !strings.Contains(start, ":") || !strings.Contains(end, ":") {
			return
		}

		courses = append(courses, model.Course{
			Start:   start,
			End:     end,
			Subject: subject,
			Room:    room,
			Teacher: teacher,
			Source:  model.SourceEDT,
		})
	})

	return courses
}

// cleanText normalizes non-breaking spaces to literal spaces and trims.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	return strings.TrimSpace(s)
}
