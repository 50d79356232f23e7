package scheduler_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/clambin/calendar-hvac/internal/calendar"
	"github.com/clambin/calendar-hvac/internal/controller/notifier"
	"github.com/clambin/calendar-hvac/internal/registry"
	"github.com/clambin/calendar-hvac/internal/schedule"
	"github.com/clambin/calendar-hvac/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"log/slog"
	"sync"
	"testing"
	"time"
)

const zones = `
thermostats:
  - name: Hall
  - name: Library
  - name: Kitchen
    device: SERVICE KITCHEN
  - name: Spare
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
  timezone: America/New_York
  overnight:
    start: "21:00"
    end: "06:00"
  modes:
    Occupied:
      minTemperature: 70
      maxTemperature: 72
`

type fakeSource struct {
	events map[string][]calendar.Event
	errs   map[string]error
}

func (f fakeSource) Events(_ context.Context, cal registry.Calendar, from, to time.Time) ([]calendar.Event, error) {
	if err := f.errs[cal.Identity]; err != nil {
		return nil, err
	}
	var events []calendar.Event
	for _, e := range f.events[cal.Identity] {
		if e.End.After(from) && e.Start.Before(to) {
			e.Calendar = cal.ID
			events = append(events, e)
		}
	}
	return events, nil
}

type fakePusher struct {
	lock     sync.Mutex
	programs map[string]schedule.Program
	errs     map[string]error
}

func (f *fakePusher) PushSchedule(_ context.Context, name string, program schedule.Program) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.errs[name]; err != nil {
		return err
	}
	if f.programs == nil {
		f.programs = make(map[string]schedule.Program)
	}
	f.programs[name] = program
	return nil
}

type recorder struct {
	lock          sync.Mutex
	notifications []notifier.Notification
}

func (r *recorder) Notify(n notifier.Notification) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.notifications = append(r.notifications, n)
}

func accepted(identity string, start, end time.Time) calendar.Event {
	return calendar.Event{
		ID:        fmt.Sprintf("%s-%s", identity, start.Format(time.RFC3339)),
		Start:     start,
		End:       end,
		Attendees: []calendar.Attendee{{Identity: identity, ResponseStatus: calendar.ResponseAccepted}},
	}
}

func homeSlots(p schedule.Program) map[int][]int {
	slots := make(map[int][]int)
	for row, day := range p.Schedule {
		for slot, token := range day {
			if token == "home" {
				slots[row] = append(slots[row], slot)
			}
		}
	}
	return slots
}

func setup(t *testing.T, source calendar.Source, pusher scheduler.Pusher) (*scheduler.Scheduler, *recorder, time.Time) {
	t.Helper()
	r, err := registry.Load(bytes.NewBufferString(zones), false, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	var rec recorder
	monday := time.Date(2025, time.March, 10, 8, 0, 0, 0, r.Location)
	return scheduler.New(r, source, pusher, &rec, 2, slog.New(slog.DiscardHandler)), &rec, monday
}

func TestScheduler_Run(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	at := func(day, hour, minute int) time.Time {
		return time.Date(2025, time.March, 10+day, hour, minute, 0, 0, loc)
	}

	source := fakeSource{events: map[string][]calendar.Event{
		"library@resource.calendar.google.com": {
			accepted("library@resource.calendar.google.com", at(0, 14, 0), at(0, 15, 30)),
			// not accepted by the resource
			{ID: "pending", Start: at(1, 10, 0), End: at(1, 11, 0), Attendees: []calendar.Attendee{{Identity: "library@resource.calendar.google.com", ResponseStatus: "needsAction"}}},
		},
		"kitchen@resource.calendar.google.com": {
			accepted("kitchen@resource.calendar.google.com", at(2, 9, 0), at(2, 10, 0)),
		},
	}}
	var pusher fakePusher
	s, rec, monday := setup(t, source, &pusher)

	report, err := s.Run(t.Context(), monday)
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 3)
	assert.Zero(t, report.Failed())
	assert.Equal(t, time.Date(2025, time.March, 10, 0, 0, 0, 0, loc), report.Reference)

	for i, name := range []string{"Hall", "Library", "Kitchen"} {
		assert.Equal(t, name, report.Outcomes[i].Thermostat.Name)
		assert.True(t, report.Outcomes[i].Pushed)
	}
	assert.Equal(t, 2, report.Outcomes[0].Events)

	require.Len(t, pusher.programs, 3)
	assert.NotContains(t, pusher.programs, "Spare")
	assert.Equal(t, map[int][]int{0: {28, 29, 30}}, homeSlots(pusher.programs["Library"]))
	assert.Equal(t, map[int][]int{2: {18, 19}}, homeSlots(pusher.programs["SERVICE KITCHEN"]))
	assert.Equal(t, map[int][]int{0: {28, 29, 30}, 2: {18, 19}}, homeSlots(pusher.programs["Hall"]))

	library := pusher.programs["Library"]
	assert.Equal(t, "sleep", library.Schedule[0][11])
	assert.Equal(t, "away", library.Schedule[0][12])
	assert.Equal(t, "away", library.Schedule[0][41])
	assert.Equal(t, "sleep", library.Schedule[0][42])
	assert.Equal(t, 720, library.Climates[1].CoolTemp)

	assert.Len(t, rec.notifications, 3)
	for _, n := range rec.notifications {
		assert.NoError(t, n.Err)
	}
}

func TestScheduler_Run_Failures(t *testing.T) {
	source := fakeSource{errs: map[string]error{"kitchen@resource.calendar.google.com": calendar.ErrPermission}}
	pusher := fakePusher{errs: map[string]error{"Library": errors.New("push failed")}}
	s, rec, monday := setup(t, source, &pusher)

	report, err := s.Run(t.Context(), monday)
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 3)
	assert.Equal(t, 3, report.Failed())

	// Hall and Kitchen depend on the failed calendar
	assert.ErrorIs(t, report.Outcomes[0].Err, calendar.ErrPermission)
	assert.ErrorIs(t, report.Outcomes[2].Err, calendar.ErrPermission)
	assert.EqualError(t, report.Outcomes[1].Err, "push failed")
	assert.Empty(t, pusher.programs)

	assert.Len(t, rec.notifications, 3)
	for _, n := range rec.notifications {
		assert.Error(t, n.Err)
	}
}

func TestScheduler_Run_Partial(t *testing.T) {
	source := fakeSource{errs: map[string]error{"kitchen@resource.calendar.google.com": calendar.ErrTransient}}
	var pusher fakePusher
	s, _, monday := setup(t, source, &pusher)

	report, err := s.Run(t.Context(), monday)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Failed())
	assert.True(t, report.Outcomes[1].Pushed)
	assert.Contains(t, pusher.programs, "Library")
}

func TestReport_Write(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	wednesday := time.Date(2025, time.March, 12, 0, 0, 0, 0, loc)
	source := fakeSource{
		events: map[string][]calendar.Event{
			"library@resource.calendar.google.com": {
				accepted("library@resource.calendar.google.com", wednesday.Add(14*time.Hour), wednesday.Add(15*time.Hour+30*time.Minute)),
			},
		},
		errs: map[string]error{"kitchen@resource.calendar.google.com": calendar.ErrPermission},
	}
	var pusher fakePusher
	s, _, _ := setup(t, source, &pusher)

	report, err := s.Run(t.Context(), wednesday)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, report.Write(&out))
	assert.Equal(t, `Hall     skipped         calendar Kitchen (CC): calendar not accessible
Library  Wed 2025-03-12  14:00-15:30
Library  Thu 2025-03-13  -
Library  Fri 2025-03-14  -
Library  Sat 2025-03-15  -
Library  Sun 2025-03-16  -
Library  Mon 2025-03-17  -
Library  Tue 2025-03-18  -
Kitchen  skipped         calendar Kitchen (CC): calendar not accessible
`, out.String())
}
