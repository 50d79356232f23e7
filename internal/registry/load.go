package registry

import (
	"errors"
	"fmt"
	"github.com/clambin/go-common/set"
	"gopkg.in/yaml.v3"
	"io"
	"log/slog"
	"strings"
	"time"
)

var ErrInvalidConfiguration = errors.New("invalid configuration")

const (
	DefaultGraceBefore = time.Hour
	DefaultGraceAfter  = 15 * time.Minute
)

type inventory struct {
	Thermostats []thermostatEntry `yaml:"thermostats"`
	Calendars   []calendarEntry   `yaml:"calendars"`
	Zones       []zoneEntry       `yaml:"zones"`
}

type thermostatEntry struct {
	Name   string `yaml:"name"`
	Device string `yaml:"device"`
}

type calendarEntry struct {
	Name     string `yaml:"name"`
	ID       string `yaml:"id"`
	Resource *bool  `yaml:"resource"`
}

type zoneEntry struct {
	Name        string   `yaml:"name"`
	Calendars   []string `yaml:"calendars"`
	Thermostats []string `yaml:"thermostats"`
}

type file struct {
	inventory `yaml:",inline"`
	Schedule  Schedule   `yaml:"schedule"`
	Occupancy Occupancy  `yaml:"occupancy"`
	Debug     *inventory `yaml:"debug"`
}

// Load reads and validates a registry. If debug is set, the file's debug section replaces the production
// thermostats, calendars and zones.
//
// Any unresolvable reference is reported as ErrInvalidConfiguration.
func Load(r io.Reader, debug bool, logger *slog.Logger) (*Registry, error) {
	var f file
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	inv := f.inventory
	if debug {
		if f.Debug == nil {
			return nil, fmt.Errorf("%w: debug set requested but not configured", ErrInvalidConfiguration)
		}
		inv = *f.Debug
	}

	reg, err := build(inv, f.Schedule, f.Occupancy)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	for _, z := range reg.Zones {
		logger.Info("zone loaded",
			slog.String("zone", z.Name),
			slog.String("calendars", names(reg.CalendarsForZone(z), func(c Calendar) string { return c.Name })),
			slog.String("thermostats", names(reg.ThermostatsForZone(z), func(t Thermostat) string { return t.Name })),
		)
	}
	return reg, nil
}

func build(inv inventory, schedule Schedule, occupancy Occupancy) (*Registry, error) {
	var errs []error
	reg := Registry{Schedule: schedule, Occupancy: occupancy}

	thermostats := make(map[string]ThermostatID)
	devices := set.New[string]()
	for _, entry := range inv.Thermostats {
		if entry.Name == "" {
			errs = append(errs, errors.New("thermostat without name"))
			continue
		}
		device := entry.Device
		if device == "" {
			device = entry.Name
		}
		if _, ok := thermostats[entry.Name]; ok {
			errs = append(errs, fmt.Errorf("duplicate thermostat %q", entry.Name))
			continue
		}
		if devices.Contains(strings.ToLower(device)) {
			errs = append(errs, fmt.Errorf("duplicate thermostat device %q", device))
			continue
		}
		id := ThermostatID(len(reg.Thermostats))
		thermostats[entry.Name] = id
		devices.Add(strings.ToLower(device))
		reg.Thermostats = append(reg.Thermostats, Thermostat{ID: id, Name: entry.Name, Device: device})
	}

	calendars := make(map[string]CalendarID)
	for _, entry := range inv.Calendars {
		if entry.Name == "" || entry.ID == "" {
			errs = append(errs, fmt.Errorf("calendar %q: name and id are required", entry.Name))
			continue
		}
		if _, ok := calendars[entry.Name]; ok {
			errs = append(errs, fmt.Errorf("duplicate calendar %q", entry.Name))
			continue
		}
		resource := true
		if entry.Resource != nil {
			resource = *entry.Resource
		}
		id := CalendarID(len(reg.Calendars))
		calendars[entry.Name] = id
		reg.Calendars = append(reg.Calendars, Calendar{ID: id, Name: entry.Name, Identity: entry.ID, Resource: resource})
	}

	zones := set.New[string]()
	for _, entry := range inv.Zones {
		if entry.Name == "" {
			errs = append(errs, errors.New("zone without name"))
			continue
		}
		if zones.Contains(entry.Name) {
			errs = append(errs, fmt.Errorf("duplicate zone %q", entry.Name))
			continue
		}
		zones.Add(entry.Name)
		z := Zone{Name: entry.Name, Calendars: set.New[CalendarID](), Thermostats: set.New[ThermostatID]()}
		for _, name := range entry.Calendars {
			id, ok := calendars[name]
			if !ok {
				errs = append(errs, fmt.Errorf("zone %q: unknown calendar %q", entry.Name, name))
				continue
			}
			z.Calendars.Add(id)
		}
		for _, name := range entry.Thermostats {
			id, ok := thermostats[name]
			if !ok {
				errs = append(errs, fmt.Errorf("zone %q: unknown thermostat %q", entry.Name, name))
				continue
			}
			z.Thermostats.Add(id)
		}
		reg.Zones = append(reg.Zones, z)
	}

	errs = append(errs, reg.validateSchedule()...)
	errs = append(errs, reg.validateOccupancy()...)

	return &reg, errors.Join(errs...)
}

func (r *Registry) validateSchedule() []error {
	var errs []error
	r.Location = time.Local
	if r.Schedule.Timezone != "" {
		var err error
		if r.Location, err = time.LoadLocation(r.Schedule.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("timezone: %w", err))
		}
	}
	overnight := r.Schedule.Overnight
	if !overnight.Start.Valid || !overnight.End.Valid {
		errs = append(errs, errors.New("schedule: overnight start and end are required"))
	} else if overnight.End.Offset() >= overnight.Start.Offset() {
		errs = append(errs, fmt.Errorf("schedule: overnight end (%s) must be before overnight start (%s)", overnight.End, overnight.Start))
	}
	for name, mode := range r.Schedule.Modes {
		switch name {
		case ModeOccupied, ModeUnoccupied, ModeOvernight:
		default:
			errs = append(errs, fmt.Errorf("schedule: unknown mode %q", name))
			continue
		}
		if mode.MinTemperature > mode.MaxTemperature {
			errs = append(errs, fmt.Errorf("schedule: mode %q: min temperature exceeds max temperature", name))
		}
	}
	return errs
}

func (r *Registry) validateOccupancy() []error {
	if r.Occupancy.GraceBefore == 0 {
		r.Occupancy.GraceBefore = DefaultGraceBefore
	}
	if r.Occupancy.GraceAfter == 0 {
		r.Occupancy.GraceAfter = DefaultGraceAfter
	}
	if r.Occupancy.GraceBefore < 0 || r.Occupancy.GraceAfter < 0 {
		return []error{errors.New("occupancy: grace periods cannot be negative")}
	}
	return nil
}

func names[T any](items []T, name func(T) string) string {
	values := make([]string, len(items))
	for i, item := range items {
		values[i] = name(item)
	}
	return strings.Join(values, ",")
}
