package ecobee

import (
	"github.com/clambin/calendar-hvac/internal/schedule"
)

const (
	selectionRegistered  = "registered"
	selectionThermostats = "thermostats"
)

type Selection struct {
	SelectionType  string `json:"selectionType"`
	SelectionMatch string `json:"selectionMatch"`
}

type Status struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type Page struct {
	Page       int `json:"page,omitempty"`
	TotalPages int `json:"totalPages,omitempty"`
	PageSize   int `json:"pageSize,omitempty"`
	Total      int `json:"total,omitempty"`
}

// Thermostat is a thermostat registered to the account.
type Thermostat struct {
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
}

type getThermostatsRequest struct {
	Selection Selection `json:"selection"`
	Page      *Page     `json:"page,omitempty"`
}

type getThermostatsResponse struct {
	Page           Page         `json:"page"`
	ThermostatList []Thermostat `json:"thermostatList"`
	Status         Status       `json:"status"`
}

type updateProgramRequest struct {
	Selection  Selection         `json:"selection"`
	Thermostat thermostatProgram `json:"thermostat"`
}

type thermostatProgram struct {
	Program schedule.Program `json:"program"`
}

type Function struct {
	Type   string `json:"type"`
	Params any    `json:"params"`
}

type setHoldParams struct {
	HoldClimateRef string `json:"holdClimateRef"`
	HoldType       string `json:"holdType"`
}

type updateFunctionsRequest struct {
	Selection Selection  `json:"selection"`
	Functions []Function `json:"functions"`
}

type updateResponse struct {
	Status Status `json:"status"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

type tokenError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}
