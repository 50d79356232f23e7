package testutils

import (
	"errors"
	"github.com/clambin/calendar-hvac/internal/poller"
	"github.com/clambin/calendar-hvac/internal/registry"
	"time"
)

func Update(options ...UpdateOption) poller.Update {
	u := poller.Update{Time: time.Date(2025, time.March, 10, 14, 0, 0, 0, time.UTC)}
	for _, option := range options {
		option(&u)
	}
	return u
}

type UpdateOption func(*poller.Update)

func WithZone(name string, occupied bool, events int, options ...ZoneOption) UpdateOption {
	return func(u *poller.Update) {
		zone := poller.ZoneState{Name: name, Occupied: occupied, Events: events}
		for _, option := range options {
			option(&zone)
		}
		u.Zones = append(u.Zones, zone)
	}
}

type ZoneOption func(*poller.ZoneState)

func WithTrigger(summary string) ZoneOption {
	return func(zone *poller.ZoneState) {
		zone.Trigger = summary
	}
}

func WithZoneError(msg string) ZoneOption {
	return func(zone *poller.ZoneState) {
		zone.Err = errors.New(msg)
	}
}

func WithThermostat(id registry.ThermostatID, name string, decision poller.Decision) UpdateOption {
	return func(u *poller.Update) {
		u.Thermostats = append(u.Thermostats, poller.ThermostatState{
			Thermostat: registry.Thermostat{ID: id, Name: name, Device: name},
			Name:       name,
			Decision:   decision,
			Reason:     decision.String(),
		})
	}
}
