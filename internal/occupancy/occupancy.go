// Package occupancy decides whether a zone is occupied right now, based on the events booked in its calendars.
//
// An event keeps its zone occupied from GraceBefore before it starts until GraceAfter after it ends. Nothing is
// remembered between evaluations: each decision is made from the events alone.
package occupancy

import (
	"github.com/clambin/calendar-hvac/internal/calendar"
	"github.com/clambin/calendar-hvac/internal/registry"
	"log/slog"
	"time"
)

// pad widens the occupancy window on both sides, as the calendar provider rounds event times to whole minutes.
const pad = time.Second

type Grace struct {
	Before time.Duration
	After  time.Duration
}

func GraceFrom(cfg registry.Occupancy) Grace {
	return Grace{Before: cfg.GraceBefore, After: cfg.GraceAfter}
}

// Window returns the time range for which events must be retrieved to evaluate occupancy at now.
func Window(now time.Time, grace Grace) (from, to time.Time) {
	return now.Add(-grace.After), now.Add(grace.Before)
}

// Occupied reports whether any of the calendar's qualifying events occupies its zone at now. If so, it also
// returns the first event that does.
func Occupied(events []calendar.Event, cal registry.Calendar, now time.Time, grace Grace) (bool, *calendar.Event) {
	for i := range events {
		if !calendar.Qualifies(events[i], cal) {
			continue
		}
		from := events[i].Start.Add(-grace.Before - pad)
		to := events[i].End.Add(grace.After + pad)
		if !now.Before(from) && !now.After(to) {
			return true, &events[i]
		}
	}
	return false, nil
}

// Result is the occupancy of a zone.
type Result struct {
	Occupied bool
	// Events is the number of events qualifying for occupancy, whether they occupy the zone now or not.
	Events  int
	Trigger *calendar.Event
}

func (r Result) LogValue() slog.Value {
	attrs := []slog.Attr{slog.Bool("occupied", r.Occupied), slog.Int("events", r.Events)}
	if r.Trigger != nil {
		attrs = append(attrs, slog.Any("trigger", *r.Trigger))
	}
	return slog.GroupValue(attrs...)
}

// Zone evaluates the occupancy of a zone, given the events of each of its calendars. A zone without thermostats
// is never occupied, as there is nothing to control.
func Zone(r *registry.Registry, zone registry.Zone, events map[registry.CalendarID][]calendar.Event, now time.Time, grace Grace) Result {
	var result Result
	if len(zone.Thermostats) == 0 {
		return result
	}
	for _, cal := range r.CalendarsForZone(zone) {
		calEvents := events[cal.ID]
		result.Events += len(calendar.Filter(calEvents, cal))
		if result.Occupied {
			continue
		}
		result.Occupied, result.Trigger = Occupied(calEvents, cal, now, grace)
	}
	return result
}
