// Package calendar retrieves calendar events and decides which ones count towards a zone's occupancy.
package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/clambin/calendar-hvac/internal/registry"
	gcal "google.golang.org/api/calendar/v3"
	"io"
	"log/slog"
	"time"
)

var (
	// ErrPermission indicates the calendar cannot be accessed. The calendar is skipped, but processing continues.
	ErrPermission = errors.New("calendar not accessible")
	// ErrTransient indicates a temporary provider error (rate limiting, server errors).
	ErrTransient = errors.New("transient calendar error")
)

// A Source returns the events of a calendar that overlap with [from, to).
type Source interface {
	Events(ctx context.Context, cal registry.Calendar, from, to time.Time) ([]Event, error)
}

var _ Source = &FileSource{}

// FileSource serves events from a JSON dump, keyed by calendar id. Each event uses the provider's event format.
type FileSource struct {
	events   map[string][]*gcal.Event
	location *time.Location
	logger   *slog.Logger
}

func NewFileSource(r io.Reader, loc *time.Location, logger *slog.Logger) (*FileSource, error) {
	var events map[string][]*gcal.Event
	if err := json.NewDecoder(r).Decode(&events); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	return &FileSource{events: events, location: loc, logger: logger}, nil
}

func (f *FileSource) Events(_ context.Context, cal registry.Calendar, from, to time.Time) ([]Event, error) {
	items, ok := f.events[cal.Identity]
	if !ok {
		return nil, nil
	}
	events := make([]Event, 0, len(items))
	for _, e := range convertEvents(items, cal, f.location, f.logger) {
		if e.End.After(from) && e.Start.Before(to) {
			events = append(events, e)
		}
	}
	return events, nil
}

func convertEvents(items []*gcal.Event, cal registry.Calendar, loc *time.Location, logger *slog.Logger) []Event {
	events := make([]Event, 0, len(items))
	for _, item := range items {
		if item == nil || item.Status == "cancelled" {
			continue
		}
		e := Event{
			ID:       item.Id,
			Summary:  item.Summary,
			Calendar: cal.ID,
			Start:    parseEventTime(item.Start, loc),
			End:      parseEventTime(item.End, loc),
		}
		for _, a := range item.Attendees {
			if a != nil {
				e.Attendees = append(e.Attendees, Attendee{Identity: a.Email, ResponseStatus: a.ResponseStatus})
			}
		}
		events = append(events, e)
	}
	return Normalize(events, loc, logger.With("calendar", cal))
}

// parseEventTime returns the event's timestamp. All-day events only carry a date, which is interpreted as
// midnight in loc.
func parseEventTime(t *gcal.EventDateTime, loc *time.Location) time.Time {
	if t == nil {
		return time.Time{}
	}
	if t.DateTime != "" {
		ts, err := time.Parse(time.RFC3339, t.DateTime)
		if err != nil {
			return time.Time{}
		}
		return ts
	}
	if t.Date != "" {
		ts, err := time.ParseInLocation(time.DateOnly, t.Date, loc)
		if err != nil {
			return time.Time{}
		}
		return ts
	}
	return time.Time{}
}
