// Package scheduler pushes a week-ahead schedule to every thermostat, based on the events booked in its zones' calendars.
package scheduler

import (
	"context"
	"fmt"
	"github.com/clambin/calendar-hvac/internal/calendar"
	"github.com/clambin/calendar-hvac/internal/controller/notifier"
	"github.com/clambin/calendar-hvac/internal/registry"
	"github.com/clambin/calendar-hvac/internal/schedule"
	"golang.org/x/sync/errgroup"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Pusher sends a weekly program to a thermostat, identified by its device name.
type Pusher interface {
	PushSchedule(ctx context.Context, name string, program schedule.Program) error
}

type Scheduler struct {
	Registry *registry.Registry
	Source   calendar.Source
	Pusher   Pusher
	Notifier notifier.Notifier
	Workers  int
	logger   *slog.Logger
}

func New(r *registry.Registry, source calendar.Source, pusher Pusher, n notifier.Notifier, workers int, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		Registry: r,
		Source:   source,
		Pusher:   pusher,
		Notifier: n,
		Workers:  max(workers, 1),
		logger:   logger,
	}
}

// Run builds and pushes the schedule of the seven days starting at the reference date.
//
// Calendars are downloaded once, even if they serve multiple zones. A thermostat that depends on a calendar that
// could not be downloaded is skipped. Failures never affect other thermostats. Run only returns an error if ctx
// is canceled.
func (s *Scheduler) Run(ctx context.Context, reference time.Time) (Report, error) {
	loc := s.Registry.Location
	y, m, d := reference.In(loc).Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, loc)
	to := time.Date(y, m, d+schedule.Days, 0, 0, 0, 0, loc)

	events := s.fetch(ctx, from, to)

	report := Report{Reference: from}
	var lock sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.Workers)
	for _, t := range s.Registry.Thermostats {
		if len(s.Registry.ZonesForThermostat(t.ID)) == 0 {
			s.logger.Debug("thermostat not in any zone. skipping", "thermostat", t.Name)
			continue
		}
		g.Go(func() error {
			outcome := s.update(ctx, t, from, events)
			s.notify(outcome)
			lock.Lock()
			report.Outcomes = append(report.Outcomes, outcome)
			lock.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(report.Outcomes, func(a, b Outcome) int { return int(a.Thermostat.ID) - int(b.Thermostat.ID) })
	s.logger.Info("weekly schedule run completed", "reference", from.Format(time.DateOnly), "thermostats", len(report.Outcomes), "failed", report.Failed())
	return report, ctx.Err()
}

type fetchResult struct {
	events []calendar.Event
	err    error
}

func (s *Scheduler) fetch(ctx context.Context, from, to time.Time) map[registry.CalendarID]fetchResult {
	results := make(map[registry.CalendarID]fetchResult)
	var lock sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.Workers)
	for _, cal := range s.Registry.UsedCalendars() {
		g.Go(func() error {
			events, err := s.Source.Events(ctx, cal, from, to)
			if err != nil {
				s.logger.Warn("failed to get calendar events", "calendar", cal, "err", err)
			} else {
				events = calendar.Filter(events, cal)
				s.logger.Debug("calendar events downloaded", "calendar", cal, "events", len(events))
			}
			lock.Lock()
			results[cal.ID] = fetchResult{events: events, err: err}
			lock.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *Scheduler) update(ctx context.Context, t registry.Thermostat, from time.Time, events map[registry.CalendarID]fetchResult) Outcome {
	outcome := Outcome{Thermostat: t}

	var thermostatEvents []calendar.Event
	for _, cal := range s.Registry.CalendarsForThermostat(t.ID) {
		result := events[cal.ID]
		if result.err != nil {
			outcome.Err = fmt.Errorf("calendar %s: %w", cal.Name, result.err)
			return outcome
		}
		thermostatEvents = append(thermostatEvents, result.events...)
	}
	outcome.Events = len(thermostatEvents)

	logger := s.logger.With("thermostat", t.Name)
	outcome.Schedule = schedule.Build(thermostatEvents, from, s.Registry.Schedule.Overnight, s.Registry.Location)
	logger.Debug("schedule built", "home", outcome.Schedule)
	program := schedule.Assemble(outcome.Schedule, s.Registry.Schedule.Modes, logger)

	if outcome.Err = s.Pusher.PushSchedule(ctx, t.Device, program); outcome.Err == nil {
		outcome.Pushed = true
	}
	return outcome
}

func (s *Scheduler) notify(o Outcome) {
	if s.Notifier == nil {
		return
	}
	n := notifier.Notification{Subject: o.Thermostat.Name, Action: "update weekly schedule", Err: o.Err}
	if o.Err == nil {
		n.Reason = fmt.Sprintf("%d events, %d occupied slots", o.Events, o.Schedule.Count(schedule.Home))
	}
	s.Notifier.Notify(n)
}
