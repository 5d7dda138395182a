package schedule

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"edtcal/internal/config"
	"edtcal/internal/feed"
	"edtcal/internal/model"
	"edtcal/internal/portal"
)

const lineFixture = `<div class="Ligne"><div class="Debut">08:00</div><div class="Fin">10:00</div><div class="Matiere">Maths</div><div class="Salle">A1</div><div class="Prof"></div></div>`

// newTestAggregator points the portal fetcher at a fake upstream that
// serves one course per weekday and fails hard for failDate.
func newTestAggregator(t *testing.T, failDate string) *Aggregator {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dateParam := r.URL.Query().Get("date") // "YYYY-MM-DD H:MM"
		day, _, _ := strings.Cut(dateParam, " ")
		if day == failDate {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(lineFixture))
	}))
	t.Cleanup(srv.Close)

	p := portal.NewFetcher(config.PortalConfig{BaseURL: srv.URL, UserAgent: "test", TimeoutSeconds: 5})
	return NewAggregator(p, feed.NewFetcher(t.TempDir()), nil, time.UTC)
}

func TestWindowFailureContainment(t *testing.T) {
	// One date of the 8-week window fails upstream; the schedule must
	// still have 56 Days, 55 populated and 1 empty, with no error
	// escaping.
	agg := newTestAggregator(t, "2026-01-21")
	ref := date(t, "2026-01-05")

	sched := agg.Window(context.Background(), "jean.dupont", ref, 8)
	if len(sched) != 56 {
		t.Fatalf("got %d days, want 56", len(sched))
	}

	empty := 0
	for i, day := range sched {
		// Day order must equal window date order.
		if want := ref.AddDays(i); day.Date != want {
			t.Fatalf("day %d is %s, want %s", i, day.Date, want)
		}
		if day.Courses == nil {
			t.Fatalf("day %s has nil course list", day.Date)
		}
		if len(day.Courses) == 0 {
			empty++
			if day.Date.String() != "2026-01-21" {
				t.Errorf("unexpected empty day %s", day.Date)
			}
		}
	}
	if empty != 1 {
		t.Errorf("got %d empty days, want exactly 1", empty)
	}
}

func TestWeekMergesExternalFeed(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(lineFixture))
	}))
	t.Cleanup(upstream.Close)

	feedBody := strings.ReplaceAll(strings.TrimSpace(`
BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:evt-1
DTSTAMP:20260101T000000Z
DTSTART:20260105T180000Z
DTEND:20260105T190000Z
SUMMARY:Sport
END:VEVENT
END:VCALENDAR`)+"\n", "\n", "\r\n")

	feedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(feedBody))
	}))
	t.Cleanup(feedSrv.Close)

	p := portal.NewFetcher(config.PortalConfig{BaseURL: upstream.URL, UserAgent: "test", TimeoutSeconds: 5})
	sources := []feed.Source{{ID: "perso", Name: "Perso", URL: feedSrv.URL}}
	agg := NewAggregator(p, feed.NewFetcher(t.TempDir()), sources, time.UTC)

	sched := agg.Week(context.Background(), "jean.dupont", date(t, "2026-01-07"), 0)
	if len(sched) != 7 {
		t.Fatalf("got %d days, want 7", len(sched))
	}

	monday := sched[0]
	if monday.Date.String() != "2026-01-05" {
		t.Fatalf("week starts %s", monday.Date)
	}
	if len(monday.Courses) != 2 {
		t.Fatalf("Monday has %d courses, want portal+feed: %+v", len(monday.Courses), monday.Courses)
	}
	// Sorted by start time: 08:00 portal course before the 18:00 feed one.
	if monday.Courses[0].Source != model.SourceEDT || monday.Courses[1].Source != "Perso" {
		t.Errorf("sources out of order: %q then %q", monday.Courses[0].Source, monday.Courses[1].Source)
	}
	// Colors assigned across both sources.
	for _, c := range monday.Courses {
		if c.Color == (model.ColorPair{}) {
			t.Errorf("course %q has no color", c.Subject)
		}
	}
}

func TestSubjectsAndSources(t *testing.T) {
	s := model.Schedule{
		{Day: "Lundi", Date: date(t, "2026-01-05"), Courses: []model.Course{
			course("08:00", "10:00", "Maths", "", "", "EDT"),
			course("10:15", "12:15", "Anglais", "", "", "EDT"),
			course("18:00", "19:00", "Sport", "", "", "Perso"),
			course("19:00", "20:00", "Maths", "", "", "EDT"),
		}},
	}
	subjects := Subjects(s)
	if len(subjects) != 3 || subjects[0] != "Maths" {
		t.Errorf("subjects = %v", subjects)
	}
	sources := Sources(s)
	if len(sources) != 2 || sources[0] != "EDT" || sources[1] != "Perso" {
		t.Errorf("sources = %v", sources)
	}
}
