package poller

import (
	"encoding/json"
	"github.com/clambin/calendar-hvac/internal/registry"
	"log/slog"
	"time"
)

// Update is the result of one polling cycle: the occupancy of each zone and the resulting decision for each thermostat.
type Update struct {
	Time        time.Time         `json:"time"`
	Zones       []ZoneState       `json:"zones"`
	Thermostats []ThermostatState `json:"thermostats"`
}

type ZoneState struct {
	Name     string `json:"name"`
	Occupied bool   `json:"occupied"`
	// Events is the number of qualifying events in the zone's calendars within the polling window.
	Events  int    `json:"events"`
	Trigger string `json:"trigger,omitempty"`
	Err     error  `json:"-"`
}

func (z ZoneState) MarshalJSON() ([]byte, error) {
	type zoneState ZoneState
	var errString string
	if z.Err != nil {
		errString = z.Err.Error()
	}
	return json.Marshal(struct {
		zoneState
		Error string `json:"error,omitempty"`
	}{zoneState: zoneState(z), Error: errString})
}

func (z ZoneState) LogValue() slog.Value {
	attrs := []slog.Attr{slog.Bool("occupied", z.Occupied), slog.Int("events", z.Events)}
	if z.Trigger != "" {
		attrs = append(attrs, slog.String("trigger", z.Trigger))
	}
	if z.Err != nil {
		attrs = append(attrs, slog.String("err", z.Err.Error()))
	}
	return slog.GroupValue(attrs...)
}

// Decision is the occupancy to apply to a thermostat.
type Decision int

const (
	// Undecided means the occupancy could not be determined. The thermostat is left as is.
	Undecided Decision = iota
	Unoccupied
	Occupied
)

func (d Decision) String() string {
	switch d {
	case Unoccupied:
		return "unoccupied"
	case Occupied:
		return "occupied"
	default:
		return "undecided"
	}
}

func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type ThermostatState struct {
	Thermostat registry.Thermostat `json:"-"`
	Name       string              `json:"name"`
	Decision   Decision            `json:"decision"`
	Reason     string              `json:"reason,omitempty"`
}

// decide derives a thermostat's occupancy from the zones it serves: it is occupied if any of its zones is occupied,
// and unoccupied only if none of them is occupied and all of them were evaluated successfully.
func decide(zones []ZoneState) (Decision, string) {
	var failed *ZoneState
	for i := range zones {
		if zones[i].Occupied {
			reason := zones[i].Name
			if zones[i].Trigger != "" {
				reason += ": " + zones[i].Trigger
			}
			return Occupied, reason
		}
		if zones[i].Err != nil && failed == nil {
			failed = &zones[i]
		}
	}
	if failed != nil {
		return Undecided, failed.Name + ": " + failed.Err.Error()
	}
	return Unoccupied, "no events"
}

func (u Update) LogValue() slog.Value {
	zones := make([]slog.Attr, 0, len(u.Zones))
	for _, z := range u.Zones {
		zones = append(zones, slog.Any(z.Name, z))
	}
	thermostats := make([]slog.Attr, 0, len(u.Thermostats))
	for _, t := range u.Thermostats {
		thermostats = append(thermostats, slog.String(t.Name, t.Decision.String()))
	}
	return slog.GroupValue(
		slog.Attr{Key: "zones", Value: slog.GroupValue(zones...)},
		slog.Attr{Key: "thermostats", Value: slog.GroupValue(thermostats...)},
	)
}

// Zone returns the state of the named zone.
func (u Update) Zone(name string) (ZoneState, bool) {
	for _, z := range u.Zones {
		if z.Name == name {
			return z, true
		}
	}
	return ZoneState{}, false
}
