package schedule

import "edtcal/internal/model"

// palette is the fixed color cycle for subjects. When distinct subjects
// outnumber the palette, colors wrap around.
var palette = []model.ColorPair{
	{Background: "#dbeafe", Text: "#1e3a8a"},
	{Background: "#dcfce7", Text: "#14532d"},
	{Background: "#fef9c3", Text: "#713f12"},
	{Background: "#fee2e2", Text: "#7f1d1d"},
	{Background: "#f3e8ff", Text: "#581c87"},
	{Background: "#ffedd5", Text: "#7c2d12"},
	{Background: "#cffafe", Text: "#164e63"},
	{Background: "#fce7f3", Text: "#831843"},
	{Background: "#e0e7ff", Text: "#312e81"},
	{Background: "#d1fae5", Text: "#064e3b"},
}

// AssignColors maps each distinct subject to a palette entry in
// first-seen order across the whole schedule and decorates every course.
// Stable within one run; runs with different subject orderings may
// color differently, which is acceptable.
func AssignColors(s model.Schedule) model.Schedule {
	subjectColors := make(map[string]model.ColorPair)
	next := 0

	for di := range s {
		for ci := range s[di].Courses {
			subject := s[di].Courses[ci].Subject
			color, ok := subjectColors[subject]
			if !ok {
				color = palette[next%len(palette)]
				subjectColors[subject] = color
				next++
			}
			s[di].Courses[ci].Color = color
		}
	}
	return s
}
