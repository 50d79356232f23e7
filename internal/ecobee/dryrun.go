package ecobee

import (
	"context"
	"github.com/clambin/calendar-hvac/internal/schedule"
	"log/slog"
)

// DryRun logs what would be pushed to a thermostat, without calling the API.
type DryRun struct {
	Logger *slog.Logger
}

func (d DryRun) PushSchedule(_ context.Context, name string, program schedule.Program) error {
	attrs := []any{"thermostat", name}
	for _, c := range program.Climates {
		attrs = append(attrs, slog.Group(c.ClimateRef, "coolTemp", c.CoolTemp, "heatTemp", c.HeatTemp))
	}
	d.Logger.Info("dry run: schedule not pushed", attrs...)
	return nil
}

func (d DryRun) PushOccupancy(_ context.Context, name string, occupied bool) error {
	d.Logger.Info("dry run: occupancy not pushed", "thermostat", name, "occupied", occupied)
	return nil
}
