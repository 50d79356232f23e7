package schedule

import (
	"github.com/clambin/calendar-hvac/internal/registry"
	"log/slog"
)

// Program is the weekly program as sent to the thermostat.
type Program struct {
	Schedule [][]string `json:"schedule"`
	Climates []Climate  `json:"climates"`
}

// Climate is one of the thermostat's comfort settings. Temperatures are in tenths of a degree.
type Climate struct {
	Name                string `json:"name"`
	ClimateRef          string `json:"climateRef"`
	IsOccupied          bool   `json:"isOccupied"`
	IsOptimized         bool   `json:"isOptimized"`
	CoolFan             string `json:"coolFan"`
	HeatFan             string `json:"heatFan"`
	Vent                string `json:"vent"`
	VentilatorMinOnTime int    `json:"ventilatorMinOnTime"`
	Owner               string `json:"owner"`
	Type                string `json:"type"`
	Colour              int    `json:"colour"`
	CoolTemp            int    `json:"coolTemp"`
	HeatTemp            int    `json:"heatTemp"`
}

// climateModes maps a climate to the mode configuring its temperatures.
var climateModes = map[string]string{
	Home.String():  registry.ModeOccupied,
	Away.String():  registry.ModeUnoccupied,
	Sleep.String(): registry.ModeOvernight,
}

func defaultClimates() []Climate {
	base := Climate{
		CoolFan:             "auto",
		HeatFan:             "auto",
		Vent:                "off",
		VentilatorMinOnTime: 20,
		Owner:               "system",
		Type:                "program",
	}

	unoccupied := base
	unoccupied.Name = registry.ModeUnoccupied
	unoccupied.ClimateRef = Away.String()
	unoccupied.IsOptimized = true
	unoccupied.Colour = 9021815
	unoccupied.CoolTemp = 821
	unoccupied.HeatTemp = 601

	occupied := base
	occupied.Name = registry.ModeOccupied
	occupied.ClimateRef = Home.String()
	occupied.IsOccupied = true
	occupied.Colour = 13560055
	occupied.CoolTemp = 720
	occupied.HeatTemp = 700

	overnight := base
	overnight.Name = registry.ModeOvernight
	overnight.ClimateRef = Sleep.String()
	overnight.IsOccupied = true
	overnight.Colour = 2179683
	overnight.CoolTemp = 781
	overnight.HeatTemp = 661

	return []Climate{unoccupied, occupied, overnight}
}

// Assemble converts a schedule into a thermostat program. Each climate's temperatures are taken from its mode's
// configuration: heating starts below the mode's minimum temperature, cooling above its maximum.
//
// A climate without a configured mode keeps its default temperatures.
func Assemble(s DaySchedule, modes map[string]registry.ModeConfig, logger *slog.Logger) Program {
	p := Program{
		Schedule: s.Tokens(),
		Climates: defaultClimates(),
	}

	for i := range p.Climates {
		climate := &p.Climates[i]
		mode, ok := climateModes[climate.ClimateRef]
		if !ok {
			logger.Warn("climate not mapped to a mode", "climate", climate.ClimateRef)
			continue
		}
		cfg, ok := modes[mode]
		if !ok {
			logger.Warn("no temperatures configured for mode. using defaults", "mode", mode, "coolTemp", climate.CoolTemp, "heatTemp", climate.HeatTemp)
			continue
		}
		climate.CoolTemp = cfg.MaxTemperature * 10
		climate.HeatTemp = cfg.MinTemperature * 10
		logger.Debug("climate updated", "climate", climate.ClimateRef, "mode", mode, "coolTemp", climate.CoolTemp, "heatTemp", climate.HeatTemp)
	}
	return p
}
