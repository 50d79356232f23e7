// Package ecobee pushes schedules and occupancy holds to Ecobee thermostats.
package ecobee

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/avast/retry-go/v4"
	"github.com/clambin/calendar-hvac/internal/schedule"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	DefaultURL = "https://api.ecobee.com"

	thermostatPath = "/1/thermostat"
	holdIndefinite = "indefinite"
)

// Client calls the thermostat API. Thermostats are addressed by their name, as shown in the Ecobee portal.
//
// If a call fails because the access token expired, the tokens are refreshed and the call is retried, at most
// MaxAuthRetries times. Transient errors are retried with backoff. Other errors are returned immediately.
type Client struct {
	MaxAuthRetries int
	baseURL        string
	tokens         *Tokens
	httpClient     *http.Client
	logger         *slog.Logger
	attempts       uint
	retryDelay     time.Duration
	lock           sync.Mutex
	devices        map[string]string
}

func New(baseURL string, tokens *Tokens, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		MaxAuthRetries: 2,
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		tokens:         tokens,
		httpClient:     httpClient,
		logger:         logger,
		attempts:       3,
		retryDelay:     time.Second,
	}
}

// Thermostats returns all thermostats registered to the account.
func (c *Client) Thermostats(ctx context.Context) ([]Thermostat, error) {
	var thermostats []Thermostat
	for page := 1; ; page++ {
		request := getThermostatsRequest{Selection: Selection{SelectionType: selectionRegistered}}
		if page > 1 {
			request.Page = &Page{Page: page}
		}
		body, err := json.Marshal(request)
		if err != nil {
			return nil, err
		}
		var response getThermostatsResponse
		if err = c.call(ctx, http.MethodGet, url.Values{"format": {"json"}, "body": {string(body)}}, nil, &response); err != nil {
			return nil, fmt.Errorf("thermostats: %w", err)
		}
		thermostats = append(thermostats, response.ThermostatList...)
		if page >= response.Page.TotalPages {
			return thermostats, nil
		}
	}
}

// ResolveDevice returns the identifier of the thermostat with the given name. Names are compared case-insensitively.
//
// Identifiers are cached after a successful lookup. The cache is cleared when the access token expires.
func (c *Client) ResolveDevice(ctx context.Context, name string) (string, error) {
	key := strings.ToLower(name)
	c.lock.Lock()
	id, ok := c.devices[key]
	c.lock.Unlock()
	if ok {
		return id, nil
	}

	thermostats, err := c.Thermostats(ctx)
	if err != nil {
		return "", err
	}
	devices := make(map[string]string, len(thermostats))
	for _, t := range thermostats {
		devices[strings.ToLower(t.Name)] = t.Identifier
	}
	c.lock.Lock()
	c.devices = devices
	c.lock.Unlock()

	if id, ok = devices[key]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownThermostat, name)
	}
	c.logger.Debug("thermostat resolved", "name", name, "identifier", id)
	return id, nil
}

func (c *Client) invalidate() {
	c.lock.Lock()
	c.devices = nil
	c.lock.Unlock()
}

// PushSchedule replaces the thermostat's weekly program.
func (c *Client) PushSchedule(ctx context.Context, name string, program schedule.Program) error {
	id, err := c.ResolveDevice(ctx, name)
	if err != nil {
		return err
	}
	request := updateProgramRequest{
		Selection:  Selection{SelectionType: selectionThermostats, SelectionMatch: id},
		Thermostat: thermostatProgram{Program: program},
	}
	if err = c.call(ctx, http.MethodPost, url.Values{"format": {"json"}}, request, &updateResponse{}); err != nil {
		return fmt.Errorf("push schedule %s: %w", name, err)
	}
	c.logger.Info("schedule pushed", "thermostat", name)
	return nil
}

// PushOccupancy places an indefinite hold on the thermostat, using the "home" climate if occupied, "away" otherwise.
func (c *Client) PushOccupancy(ctx context.Context, name string, occupied bool) error {
	id, err := c.ResolveDevice(ctx, name)
	if err != nil {
		return err
	}
	climate := schedule.Away
	if occupied {
		climate = schedule.Home
	}
	request := updateFunctionsRequest{
		Selection: Selection{SelectionType: selectionThermostats, SelectionMatch: id},
		Functions: []Function{{
			Type:   "setHold",
			Params: setHoldParams{HoldClimateRef: climate.String(), HoldType: holdIndefinite},
		}},
	}
	if err = c.call(ctx, http.MethodPost, url.Values{"format": {"json"}}, request, &updateResponse{}); err != nil {
		return fmt.Errorf("push occupancy %s: %w", name, err)
	}
	c.logger.Info("occupancy pushed", "thermostat", name, "climate", climate)
	return nil
}

func (c *Client) call(ctx context.Context, method string, query url.Values, request any, response any) error {
	token := c.tokens.Token()
	var err error
	if !token.Valid() {
		if token, err = c.tokens.Refresh(ctx, token.AccessToken); err != nil {
			return err
		}
	}

	for attempt := 0; ; attempt++ {
		err = retry.Do(func() error {
			return c.send(ctx, method, token.AccessToken, query, request, response)
		},
			retry.Context(ctx),
			retry.Attempts(c.attempts),
			retry.Delay(c.retryDelay),
			retry.LastErrorOnly(true),
			retry.RetryIf(func(err error) bool { return errors.Is(err, ErrTransient) }),
			retry.OnRetry(func(n uint, err error) {
				c.logger.Debug("retrying thermostat API call", "attempt", n+1, "err", err)
			}),
		)
		if !errors.Is(err, ErrAuthExpired) || attempt >= c.MaxAuthRetries {
			return err
		}
		c.logger.Info("access token expired. refreshing", "attempt", attempt+1)
		c.invalidate()
		if token, err = c.tokens.Refresh(ctx, token.AccessToken); err != nil {
			return err
		}
	}
}

func (c *Client) send(ctx context.Context, method string, accessToken string, query url.Values, request any, response any) error {
	var body io.Reader
	if request != nil {
		payload, err := json.Marshal(request)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+thermostatPath+"?"+query.Encode(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	var status struct {
		Status Status `json:"status"`
	}
	_ = json.Unmarshal(payload, &status)
	if resp.StatusCode != http.StatusOK || status.Status.Code != statusOK {
		return &APIError{HTTPStatus: resp.StatusCode, Code: status.Status.Code, Message: status.Status.Message}
	}
	if response != nil {
		if err = json.Unmarshal(payload, response); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
