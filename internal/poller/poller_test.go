package poller

import (
	"bytes"
	"context"
	"github.com/clambin/calendar-hvac/internal/calendar"
	"github.com/clambin/calendar-hvac/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

const zones = `
thermostats:
  - name: Hall
  - name: Library
  - name: Kitchen
calendars:
  - name: Library (CC)
    id: library@resource.calendar.google.com
  - name: Kitchen (CC)
    id: kitchen@resource.calendar.google.com
zones:
  - name: CC Library
    calendars: [ "Library (CC)" ]
    thermostats: [ Library, Hall ]
  - name: CC Kitchen
    calendars: [ "Kitchen (CC)" ]
    thermostats: [ Kitchen, Hall ]
schedule:
  overnight:
    start: "21:00"
    end: "06:00"
`

var now = time.Date(2025, time.March, 10, 14, 0, 0, 0, time.UTC)

type fakeSource struct {
	events map[string][]calendar.Event
	errs   map[string]error
	calls  atomic.Int32
	delay  time.Duration
}

func (f *fakeSource) Events(ctx context.Context, cal registry.Calendar, from, to time.Time) ([]calendar.Event, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.errs[cal.Identity]; err != nil {
		return nil, err
	}
	var events []calendar.Event
	for _, e := range f.events[cal.Identity] {
		if e.End.After(from) && e.Start.Before(to) {
			events = append(events, e)
		}
	}
	return events, nil
}

func booking(identity, summary string, start time.Time, duration time.Duration) calendar.Event {
	return calendar.Event{
		ID:        summary,
		Summary:   summary,
		Start:     start,
		End:       start.Add(duration),
		Attendees: []calendar.Attendee{{Identity: identity, ResponseStatus: calendar.ResponseAccepted}},
	}
}

func newPoller(t *testing.T, source calendar.Source) *CalendarPoller {
	t.Helper()
	r, err := registry.Load(bytes.NewBufferString(zones), false, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	p := New(r, source, time.Hour, time.Minute, 2, slog.New(slog.DiscardHandler))
	p.now = func() time.Time { return now }
	return p
}

func TestCalendarPoller_Update(t *testing.T) {
	testCases := []struct {
		name        string
		source      *fakeSource
		zones       map[string]bool
		zoneErr     map[string]bool
		thermostats map[string]Decision
	}{
		{
			name: "library occupied",
			source: &fakeSource{events: map[string][]calendar.Event{
				"library@resource.calendar.google.com": {booking("library@resource.calendar.google.com", "Book club", now.Add(30*time.Minute), time.Hour)},
			}},
			zones:       map[string]bool{"CC Library": true, "CC Kitchen": false},
			thermostats: map[string]Decision{"Hall": Occupied, "Library": Occupied, "Kitchen": Unoccupied},
		},
		{
			name: "event not accepted",
			source: &fakeSource{events: map[string][]calendar.Event{
				"library@resource.calendar.google.com": {{Summary: "tentative", Start: now, End: now.Add(time.Hour)}},
			}},
			zones:       map[string]bool{"CC Library": false, "CC Kitchen": false},
			thermostats: map[string]Decision{"Hall": Unoccupied, "Library": Unoccupied, "Kitchen": Unoccupied},
		},
		{
			name: "kitchen fails",
			source: &fakeSource{
				events: map[string][]calendar.Event{
					"library@resource.calendar.google.com": {booking("library@resource.calendar.google.com", "Book club", now, time.Hour)},
				},
				errs: map[string]error{"kitchen@resource.calendar.google.com": calendar.ErrTransient},
			},
			zones:       map[string]bool{"CC Library": true, "CC Kitchen": false},
			zoneErr:     map[string]bool{"CC Kitchen": true},
			thermostats: map[string]Decision{"Hall": Occupied, "Library": Occupied, "Kitchen": Undecided},
		},
		{
			name: "library fails",
			source: &fakeSource{
				errs: map[string]error{"library@resource.calendar.google.com": calendar.ErrPermission},
			},
			zones:       map[string]bool{"CC Library": false, "CC Kitchen": false},
			zoneErr:     map[string]bool{"CC Library": true},
			thermostats: map[string]Decision{"Hall": Undecided, "Library": Undecided, "Kitchen": Unoccupied},
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := newPoller(t, tt.source)
			u := p.update(t.Context())

			assert.Equal(t, now, u.Time)
			require.Len(t, u.Zones, 2)
			for _, z := range u.Zones {
				assert.Equal(t, tt.zones[z.Name], z.Occupied, z.Name)
				assert.Equal(t, tt.zoneErr[z.Name], z.Err != nil, z.Name)
			}
			require.Len(t, u.Thermostats, 3)
			for _, th := range u.Thermostats {
				assert.Equal(t, tt.thermostats[th.Name], th.Decision, th.Name)
			}
			assert.Equal(t, int32(2), tt.source.calls.Load())
		})
	}
}

func TestCalendarPoller_Run(t *testing.T) {
	source := fakeSource{events: map[string][]calendar.Event{
		"library@resource.calendar.google.com": {booking("library@resource.calendar.google.com", "Book club", now, time.Hour)},
	}}
	p := newPoller(t, &source)
	ch := p.Subscribe()
	defer p.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error)
	go func() { errCh <- p.Run(ctx) }()

	u := <-ch
	z, ok := u.Zone("CC Library")
	require.True(t, ok)
	assert.True(t, z.Occupied)
	assert.Equal(t, "Book club", z.Trigger)

	p.Refresh()
	<-ch
	assert.Equal(t, int32(4), source.calls.Load())

	cancel()
	assert.NoError(t, <-errCh)
}

func TestCalendarPoller_Run_CompletesCycle(t *testing.T) {
	source := fakeSource{delay: 100 * time.Millisecond}
	p := newPoller(t, &source)
	ch := p.Subscribe()
	defer p.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error)
	go func() { errCh <- p.Run(ctx) }()

	// cancel while the first cycle is in flight
	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.NoError(t, <-errCh)

	u := <-ch
	for _, z := range u.Zones {
		assert.NoError(t, z.Err, "cycle should complete with a live context")
	}
	assert.Equal(t, int32(2), source.calls.Load())

	// subscribers are released once the final update is published
	_, ok := <-ch
	assert.False(t, ok)
}
