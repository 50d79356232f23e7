// Package registry holds the static mapping of thermostats and calendars to zones.
//
// A Registry is loaded once from a YAML file, validated, and is read-only afterwards: it can be shared between
// goroutines without locking. Thermostats and calendars are referenced by handle (ThermostatID, CalendarID), which
// index the registry's Thermostats and Calendars slices.
package registry

import (
	"cmp"
	"github.com/clambin/go-common/set"
	"log/slog"
	"slices"
	"strings"
	"time"
)

type ThermostatID int

type CalendarID int

type Thermostat struct {
	ID     ThermostatID
	Name   string
	Device string
}

type Calendar struct {
	ID       CalendarID
	Name     string
	Identity string
	Resource bool
}

func (c Calendar) LogValue() slog.Value {
	return slog.GroupValue(slog.String("name", c.Name), slog.String("id", c.Identity))
}

type Zone struct {
	Name        string
	Calendars   set.Set[CalendarID]
	Thermostats set.Set[ThermostatID]
}

// Schedule configures the weekly schedule: the overnight period and the temperatures of each mode.
type Schedule struct {
	Timezone  string                `yaml:"timezone"`
	Overnight Overnight             `yaml:"overnight"`
	Modes     map[string]ModeConfig `yaml:"modes"`
}

// Overnight is the sleep period. End is the wake time (sleep_end); Start is the bedtime (sleep_start).
type Overnight struct {
	Start TimeOfDay `yaml:"start"`
	End   TimeOfDay `yaml:"end"`
}

// ModeConfig holds the temperature bounds of a mode, in whole degrees.
type ModeConfig struct {
	MinTemperature int `yaml:"minTemperature"`
	MaxTemperature int `yaml:"maxTemperature"`
}

const (
	ModeOccupied   = "Occupied"
	ModeUnoccupied = "Unoccupied"
	ModeOvernight  = "Overnight"
)

// Occupancy configures the real-time occupancy detector.
type Occupancy struct {
	GraceBefore time.Duration `yaml:"graceBefore"`
	GraceAfter  time.Duration `yaml:"graceAfter"`
}

type Registry struct {
	Thermostats []Thermostat
	Calendars   []Calendar
	Zones       []Zone
	Schedule    Schedule
	Occupancy   Occupancy
	Location    *time.Location
}

func (r *Registry) Thermostat(id ThermostatID) Thermostat {
	return r.Thermostats[id]
}

func (r *Registry) Calendar(id CalendarID) Calendar {
	return r.Calendars[id]
}

func (r *Registry) ThermostatByName(name string) (Thermostat, bool) {
	for _, t := range r.Thermostats {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return Thermostat{}, false
}

// ZonesForThermostat returns all zones controlling the thermostat.
func (r *Registry) ZonesForThermostat(id ThermostatID) []Zone {
	var zones []Zone
	for _, z := range r.Zones {
		if z.Thermostats.Contains(id) {
			zones = append(zones, z)
		}
	}
	return zones
}

// CalendarsForThermostat returns the calendars of all zones controlling the thermostat.
func (r *Registry) CalendarsForThermostat(id ThermostatID) []Calendar {
	ids := set.New[CalendarID]()
	for _, z := range r.ZonesForThermostat(id) {
		for calID := range z.Calendars {
			ids.Add(calID)
		}
	}
	return r.calendars(ids)
}

// CalendarsForZone returns the zone's calendars, ordered by handle.
func (r *Registry) CalendarsForZone(z Zone) []Calendar {
	return r.calendars(z.Calendars)
}

// ThermostatsForZone returns the zone's thermostats, ordered by handle.
func (r *Registry) ThermostatsForZone(z Zone) []Thermostat {
	ids := z.Thermostats.List()
	slices.Sort(ids)
	thermostats := make([]Thermostat, len(ids))
	for i, id := range ids {
		thermostats[i] = r.Thermostats[id]
	}
	return thermostats
}

// UsedCalendars returns all calendars that feed at least one zone.
func (r *Registry) UsedCalendars() []Calendar {
	ids := set.New[CalendarID]()
	for _, z := range r.Zones {
		for id := range z.Calendars {
			ids.Add(id)
		}
	}
	return r.calendars(ids)
}

func (r *Registry) calendars(ids set.Set[CalendarID]) []Calendar {
	calendars := make([]Calendar, 0, len(ids))
	for id := range ids {
		calendars = append(calendars, r.Calendars[id])
	}
	slices.SortFunc(calendars, func(a, b Calendar) int { return cmp.Compare(a.ID, b.ID) })
	return calendars
}
