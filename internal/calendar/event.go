package calendar

import (
	"github.com/clambin/calendar-hvac/internal/registry"
	"log/slog"
	"strings"
	"time"
)

const ResponseAccepted = "accepted"

type Event struct {
	ID        string
	Summary   string
	Calendar  registry.CalendarID
	Start     time.Time
	End       time.Time
	Attendees []Attendee
}

type Attendee struct {
	Identity       string
	ResponseStatus string
}

func (e Event) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", e.ID),
		slog.String("summary", e.Summary),
		slog.Time("start", e.Start),
		slog.Time("end", e.End),
	)
}

// Valid reports whether the event has a start and end time, and ends after it starts.
func (e Event) Valid() bool {
	return !e.Start.IsZero() && !e.End.IsZero() && e.End.After(e.Start)
}

// Qualifies reports whether the event counts towards occupancy for the calendar.
//
// Events on a resource calendar only qualify once the resource has accepted them: the calendar's own identity
// must be an attendee with response status "accepted". Any event on a non-resource calendar qualifies.
func Qualifies(e Event, cal registry.Calendar) bool {
	if !cal.Resource {
		return true
	}
	for _, a := range e.Attendees {
		if strings.EqualFold(a.Identity, cal.Identity) {
			return a.ResponseStatus == ResponseAccepted
		}
	}
	return false
}

// Normalize drops invalid events and converts the remaining ones to loc.
func Normalize(events []Event, loc *time.Location, logger *slog.Logger) []Event {
	normalized := make([]Event, 0, len(events))
	for _, e := range events {
		if !e.Valid() {
			logger.Warn("dropping invalid event", "event", e)
			continue
		}
		e.Start = e.Start.In(loc)
		e.End = e.End.In(loc)
		normalized = append(normalized, e)
	}
	return normalized
}

// Filter returns the events that qualify for the calendar.
func Filter(events []Event, cal registry.Calendar) []Event {
	filtered := make([]Event, 0, len(events))
	for _, e := range events {
		if Qualifies(e, cal) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}
