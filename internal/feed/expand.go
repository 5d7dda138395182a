package feed

import (
	"time"

	"github.com/teambition/rrule-go"

	appLog "edtcal/internal/log"
)

const defaultMaxPerEvent = 1000

// Occurrence is one concrete instance of a feed event inside the
// requested window, in the display timezone.
type Occurrence struct {
	Source   Source
	Summary  string
	Location string
	Start    time.Time
	End      time.Time
}

// ExpandConfig controls window expansion.
type ExpandConfig struct {
	// Location is the display timezone all occurrences are converted to.
	Location *time.Location
	// RangeStart (inclusive) and RangeEnd (exclusive) bound occurrence
	// start instants.
	RangeStart time.Time
	RangeEnd   time.Time
	// MaxPerEvent caps recurrence expansion per event. Zero means the
	// package default.
	MaxPerEvent int
}

// Expand turns parsed feed events into concrete occurrences within the
// window. It handles single events, RRULE recurrence, EXDATE removals
// and RECURRENCE-ID overrides. A bad RRULE drops only that event.
func Expand(events []ParsedEvent, cfg ExpandConfig) []Occurrence {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxPerEvent <= 0 {
		cfg.MaxPerEvent = defaultMaxPerEvent
	}
	if !cfg.RangeStart.Before(cfg.RangeEnd) {
		return nil
	}

	overridesByUID := make(map[string][]ParsedEvent)
	var bases []ParsedEvent
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
		} else {
			bases = append(bases, ev)
		}
	}

	var out []Occurrence
	for _, ev := range bases {
		out = append(out, expandEvent(ev, overridesByUID[ev.UID], cfg)...)
	}
	return out
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []Occurrence {
	duration := ev.End.Sub(ev.Start)

	if ev.RawRRule == "" {
		occ, ok := makeOccurrence(ev, overrides, ev.Start, duration, cfg)
		if !ok {
			return nil
		}
		return []Occurrence{occ}
	}

	opt, err := rrule.StrToROption(ev.RawRRule)
	if err != nil {
		appLog.Error("feed rrule unparseable, event dropped", err, "id", ev.Source.ID, "uid", ev.UID)
		return nil
	}
	opt.Dtstart = ev.Start
	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		appLog.Error("feed rrule invalid, event dropped", err, "id", ev.Source.ID, "uid", ev.UID)
		return nil
	}

	var out []Occurrence
	// RangeEnd is exclusive on occurrence starts; Between is inclusive,
	// so back off one second.
	for _, start := range rule.Between(cfg.RangeStart, cfg.RangeEnd.Add(-time.Second), true) {
		if len(out) >= cfg.MaxPerEvent {
			appLog.Error("feed recurrence truncated", nil, "uid", ev.UID, "cap", cfg.MaxPerEvent)
			break
		}
		if occ, ok := makeOccurrence(ev, overrides, start, duration, cfg); ok {
			out = append(out, occ)
		}
	}
	return out
}

// makeOccurrence materializes the instance starting at start, applying
// EXDATE removals and RECURRENCE-ID overrides, and filters it against
// the window in the display timezone.
func makeOccurrence(ev ParsedEvent, overrides []ParsedEvent, start time.Time, duration time.Duration, cfg ExpandConfig) (Occurrence, bool) {
	for _, ex := range ev.ExDates {
		if ex.Equal(start) {
			return Occurrence{}, false
		}
	}

	occ := Occurrence{
		Source:   ev.Source,
		Summary:  ev.Summary,
		Location: ev.Location,
		Start:    start.In(cfg.Location),
		End:      start.Add(duration).In(cfg.Location),
	}
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			occ.Summary = ov.Summary
			occ.Location = ov.Location
			occ.Start = ov.Start.In(cfg.Location)
			occ.End = ov.End.In(cfg.Location)
			break
		}
	}

	if occ.Start.Before(cfg.RangeStart) || !occ.Start.Before(cfg.RangeEnd) {
		return Occurrence{}, false
	}
	return occ, true
}
