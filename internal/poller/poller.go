// Package poller periodically evaluates the occupancy of each zone and publishes the result.
package poller

import (
	"context"
	"fmt"
	"github.com/clambin/calendar-hvac/internal/calendar"
	"github.com/clambin/calendar-hvac/internal/occupancy"
	"github.com/clambin/calendar-hvac/internal/registry"
	"github.com/clambin/calendar-hvac/pkg/pubsub"
	"golang.org/x/sync/errgroup"
	"log/slog"
	"sync"
	"time"
)

type Poller interface {
	Subscribe() chan Update
	Unsubscribe(ch chan Update)
	Refresh()
}

var _ Poller = &CalendarPoller{}

// CalendarPoller evaluates occupancy on every tick of its interval, or when Refresh is called.
//
// A polling cycle is not interrupted when the context passed to Run is canceled: the cycle runs to completion (or
// until its timeout expires) and no new cycle is started. Once the last update is published, Run closes the
// channels of all subscribers.
type CalendarPoller struct {
	*pubsub.Publisher[Update]
	Registry *registry.Registry
	Source   calendar.Source
	Workers  int
	interval time.Duration
	timeout  time.Duration
	grace    occupancy.Grace
	logger   *slog.Logger
	refresh  chan struct{}
	now      func() time.Time
}

func New(r *registry.Registry, source calendar.Source, interval, timeout time.Duration, workers int, logger *slog.Logger) *CalendarPoller {
	if timeout <= 0 {
		timeout = interval
	}
	return &CalendarPoller{
		Publisher: pubsub.New[Update](logger.With(slog.String("component", "publisher"))),
		Registry:  r,
		Source:    source,
		Workers:   max(workers, 1),
		interval:  interval,
		timeout:   timeout,
		grace:     occupancy.GraceFrom(r.Occupancy),
		logger:    logger,
		refresh:   make(chan struct{}, 1),
		now:       time.Now,
	}
}

func (p *CalendarPoller) Run(ctx context.Context) error {
	p.logger.Debug("started", slog.Duration("interval", p.interval))
	defer p.logger.Debug("stopped")
	defer p.Publisher.Close()

	timer := time.NewTicker(p.interval)
	defer timer.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		case <-p.refresh:
		}
		if ctx.Err() != nil {
			return nil
		}
		p.poll(ctx)
	}
}

// Refresh requests a new polling cycle. It doesn't wait for the cycle to start.
func (p *CalendarPoller) Refresh() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

func (p *CalendarPoller) poll(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	start := time.Now()
	update := p.update(ctx)
	p.Publisher.Publish(update)
	p.logger.Debug("poll completed", "update", update, slog.Duration("duration", time.Since(start)))
}

func (p *CalendarPoller) update(ctx context.Context) Update {
	now := p.now()
	events, errs := p.fetch(ctx, now)

	update := Update{Time: now, Zones: make([]ZoneState, 0, len(p.Registry.Zones))}
	zoneStates := make(map[string]ZoneState, len(p.Registry.Zones))
	for _, zone := range p.Registry.Zones {
		state := p.evaluate(zone, now, events, errs)
		if state.Err != nil {
			p.logger.Warn("failed to evaluate zone", "zone", zone.Name, "err", state.Err)
		}
		update.Zones = append(update.Zones, state)
		zoneStates[zone.Name] = state
	}

	for _, t := range p.Registry.Thermostats {
		zones := p.Registry.ZonesForThermostat(t.ID)
		if len(zones) == 0 {
			continue
		}
		states := make([]ZoneState, 0, len(zones))
		for _, zone := range zones {
			states = append(states, zoneStates[zone.Name])
		}
		decision, reason := decide(states)
		update.Thermostats = append(update.Thermostats, ThermostatState{Thermostat: t, Name: t.Name, Decision: decision, Reason: reason})
	}
	return update
}

func (p *CalendarPoller) evaluate(zone registry.Zone, now time.Time, events map[registry.CalendarID][]calendar.Event, errs map[registry.CalendarID]error) ZoneState {
	result := occupancy.Zone(p.Registry, zone, events, now, p.grace)
	state := ZoneState{Name: zone.Name, Occupied: result.Occupied, Events: result.Events}
	if result.Trigger != nil {
		state.Trigger = result.Trigger.Summary
	}
	if result.Occupied {
		return state
	}
	// no occupancy found, but a missing calendar may have shown otherwise
	for _, cal := range p.Registry.CalendarsForZone(zone) {
		if err := errs[cal.ID]; err != nil {
			state.Err = fmt.Errorf("calendar %s: %w", cal.Name, err)
			break
		}
	}
	return state
}

func (p *CalendarPoller) fetch(ctx context.Context, now time.Time) (map[registry.CalendarID][]calendar.Event, map[registry.CalendarID]error) {
	from, to := occupancy.Window(now, p.grace)
	events := make(map[registry.CalendarID][]calendar.Event)
	errs := make(map[registry.CalendarID]error)
	var lock sync.Mutex
	var g errgroup.Group
	g.SetLimit(p.Workers)
	for _, cal := range p.Registry.UsedCalendars() {
		g.Go(func() error {
			calEvents, err := p.Source.Events(ctx, cal, from, to)
			lock.Lock()
			defer lock.Unlock()
			if err != nil {
				errs[cal.ID] = err
			} else {
				events[cal.ID] = calEvents
			}
			return nil
		})
	}
	_ = g.Wait()
	return events, errs
}
