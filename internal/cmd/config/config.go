package config

import (
	"context"
	"fmt"
	"github.com/clambin/calendar-hvac/internal/app"
	"github.com/clambin/calendar-hvac/internal/registry"
	"github.com/clambin/go-common/charmer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
	"log/slog"
	"os"
)

var (
	Cmd = cobra.Command{
		Use:   "config",
		Short: "Show the configured zones and the thermostats they control",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := slog.Default()
			r, err := app.LoadRegistry(viper.GetViper(), logger)
			if err != nil {
				return err
			}
			var resolver DeviceResolver
			if !viper.GetBool("offline") {
				if resolver, err = app.Thermostats(viper.GetViper(), nil, logger); err != nil {
					return fmt.Errorf("thermostats: %w", err)
				}
			}
			return ShowConfig(cmd.Context(), r, resolver, yaml.NewEncoder(os.Stdout))
		},
	}

	args = charmer.Arguments{
		"offline": {Default: false, Help: "don't look up the thermostats' device identifiers"},
	}
)

func init() {
	_ = charmer.SetPersistentFlags(&Cmd, viper.GetViper(), args)
}

type Encoder interface {
	Encode(any) error
}

// DeviceResolver returns the thermostat API's identifier for a device name.
type DeviceResolver interface {
	ResolveDevice(ctx context.Context, name string) (string, error)
}

type zoneEntry struct {
	Name        string   `yaml:"name" json:"name"`
	Calendars   []string `yaml:"calendars" json:"calendars"`
	Thermostats []string `yaml:"thermostats" json:"thermostats"`
}

type thermostatEntry struct {
	Name   string `yaml:"name" json:"name"`
	Device string `yaml:"device" json:"device"`
	ID     string `yaml:"id,omitempty" json:"id,omitempty"`
	Error  string `yaml:"error,omitempty" json:"error,omitempty"`
}

type report struct {
	Timezone    string            `yaml:"timezone" json:"timezone"`
	Zones       []zoneEntry       `yaml:"zones" json:"zones"`
	Thermostats []thermostatEntry `yaml:"thermostats" json:"thermostats"`
}

// ShowConfig writes the zones of the registry and the thermostats they control. If resolver is not nil, each
// thermostat's device identifier is looked up. A thermostat that cannot be resolved is reported with its error.
func ShowConfig(ctx context.Context, r *registry.Registry, resolver DeviceResolver, e Encoder) error {
	rep := report{Timezone: r.Location.String()}

	for _, z := range r.Zones {
		entry := zoneEntry{Name: z.Name}
		for _, c := range r.CalendarsForZone(z) {
			entry.Calendars = append(entry.Calendars, c.Name)
		}
		for _, t := range r.ThermostatsForZone(z) {
			entry.Thermostats = append(entry.Thermostats, t.Name)
		}
		rep.Zones = append(rep.Zones, entry)
	}

	for _, t := range r.Thermostats {
		entry := thermostatEntry{Name: t.Name, Device: t.Device}
		if resolver != nil {
			id, err := resolver.ResolveDevice(ctx, t.Device)
			if err != nil {
				entry.Error = err.Error()
			}
			entry.ID = id
		}
		rep.Thermostats = append(rep.Thermostats, entry)
	}

	return e.Encode(rep)
}
