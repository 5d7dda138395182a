package model

import (
	"fmt"
	"strconv"
	"strings"
)

// SourceEDT is the provenance label for courses scraped from the primary
// timetable portal. Courses from external feeds carry the feed's
// configured name instead.
const SourceEDT = "EDT"

// ColorPair is a background/text color assigned per subject.
type ColorPair struct {
	Background string `json:"background"`
	Text       string `json:"text"`
}

// Course is one scheduled occurrence as extracted from the portal or an
// external feed. Room and Teacher may be empty strings but are never
// omitted. Color is derived after extraction, never from upstream data.
type Course struct {
	Start   string    `json:"start"` // "H:MM" or "HH:MM", 24-hour
	End     string    `json:"end"`
	Subject string    `json:"subject"`
	Room    string    `json:"room"`
	Teacher string    `json:"teacher"`
	Color   ColorPair `json:"color"`
	Source  string    `json:"source"`
}

// Day is one calendar date's aggregated view. Courses are kept sorted by
// start time ascending once a Day has gone through the merge engine.
type Day struct {
	Day     string    `json:"day"` // French weekday name, Monday-first locale
	Date    CivilDate `json:"date"`
	Courses []Course  `json:"courses"`
}

// Schedule is an ordered sequence of Days, one per fetched date.
// Invariant: no two Days share a Date.
type Schedule []Day

// ParseClock parses a 24-hour "H:MM" or "HH:MM" wall-clock string into
// minutes since midnight.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("clock %q: missing separator", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil {
		return 0, fmt.Errorf("clock %q: %w", s, err)
	}
	minute, err := strconv.Atoi(m)
	if err != nil {
		return 0, fmt.Errorf("clock %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("clock %q: out of range", s)
	}
	return hour*60 + minute, nil
}
