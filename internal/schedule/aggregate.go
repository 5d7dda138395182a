// Package schedule is the correctness-critical core of the pipeline:
// course identity, merge/dedup across sources, subject coloring, and the
// aggregation run that fans fetches out and folds the results back into
// one Schedule.
package schedule

import (
	"context"
	"sync"
	"time"

	"edtcal/internal/feed"
	appLog "edtcal/internal/log"
	"edtcal/internal/model"
	"edtcal/internal/portal"
	"edtcal/internal/timewindow"
)

// Aggregator runs one scrape-normalize-reconcile pass per call. It holds
// only collaborators, no per-run state, so concurrent runs are safe.
type Aggregator struct {
	portal  *portal.Fetcher
	feeds   *feed.Fetcher
	sources []feed.Source
	loc     *time.Location
}

// NewAggregator wires the pipeline. sources may be empty; loc is the
// display timezone used for feed occurrence dates.
func NewAggregator(p *portal.Fetcher, f *feed.Fetcher, sources []feed.Source, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{portal: p, feeds: f, sources: sources, loc: loc}
}

// Week aggregates the single week containing ref shifted by weekOffset.
func (a *Aggregator) Week(ctx context.Context, user string, ref model.CivilDate, weekOffset int) model.Schedule {
	return a.run(ctx, user, timewindow.ResolveWeek(ref, weekOffset))
}

// Window aggregates numWeeks starting at the Monday on or before ref.
func (a *Aggregator) Window(ctx context.Context, user string, ref model.CivilDate, numWeeks int) model.Schedule {
	return a.run(ctx, user, timewindow.ResolveWindow(ref, numWeeks))
}

// run fans out one portal fetch per date and one feed fetch per source,
// writes each result back by its origin index so the final Day order is
// the window's date order regardless of completion order, then merges,
// dedupes and colors. Failed fetches surface only as empty Days.
func (a *Aggregator) run(ctx context.Context, user string, dates []model.CivilDate) model.Schedule {
	if len(dates) == 0 {
		return model.Schedule{}
	}

	days := make(model.Schedule, len(dates))
	externals := make([]model.Schedule, len(a.sources))

	var wg sync.WaitGroup
	for i, date := range dates {
		wg.Add(1)
		go func(i int, date model.CivilDate) {
			defer wg.Done()
			html := a.portal.FetchDay(ctx, user, date)
			days[i] = model.Day{
				Day:     date.FrenchDayName(),
				Date:    date,
				Courses: portal.ExtractCourses(html),
			}
		}(i, date)
	}

	weekStart := dates[0]
	for i, src := range a.sources {
		wg.Add(1)
		go func(i int, src feed.Source) {
			defer wg.Done()
			res, err := a.feeds.FetchOne(ctx, src)
			if err != nil {
				appLog.Error("feed unavailable for this run", err, "id", src.ID)
				return
			}
			ext, err := feed.ExtractCourses(src, res.Body, weekStart, len(dates), a.loc)
			if err != nil {
				appLog.Error("feed discarded for this run", err, "id", src.ID)
				return
			}
			externals[i] = ext
		}(i, src)
	}
	wg.Wait()

	merged := Merge(days, externals)
	for i := range merged {
		if merged[i].Courses == nil {
			merged[i].Courses = []model.Course{}
		}
	}
	return AssignColors(merged)
}

// Subjects returns the distinct subject names of a schedule in
// first-seen order.
func Subjects(s model.Schedule) []string {
	seen := make(map[string]bool)
	var out []string
	for _, day := range s {
		for _, c := range day.Courses {
			if !seen[c.Subject] {
				seen[c.Subject] = true
				out = append(out, c.Subject)
			}
		}
	}
	return out
}

// Sources returns the distinct provenance labels of a schedule in
// first-seen order.
func Sources(s model.Schedule) []string {
	seen := make(map[string]bool)
	var out []string
	for _, day := range s {
		for _, c := range day.Courses {
			if c.Source == "" {
				continue
			}
			if !seen[c.Source] {
				seen[c.Source] = true
				out = append(out, c.Source)
			}
		}
	}
	return out
}
