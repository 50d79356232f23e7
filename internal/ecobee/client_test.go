package ecobee

import (
	"encoding/json"
	"fmt"
	"github.com/clambin/calendar-hvac/internal/registry"
	"github.com/clambin/calendar-hvac/internal/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var overnight = registry.Overnight{
	Start: registry.TimeOfDay{Hour: 21, Valid: true},
	End:   registry.TimeOfDay{Hour: 6, Valid: true},
}

// fakeAPI emulates the thermostat API. Calls with any access token other than the last issued one fail with
// status code 14, like the real API does when a token expires.
type fakeAPI struct {
	lock          sync.Mutex
	accessToken   string
	neverAccept   bool
	failures      []int
	updates       []map[string]any
	listCalls     atomic.Int32
	updateCalls   atomic.Int32
	tokenRequests atomic.Int32
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/token":
		n := f.tokenRequests.Add(1)
		f.lock.Lock()
		f.accessToken = fmt.Sprintf("access-%d", n)
		token := f.accessToken
		f.lock.Unlock()
		time.Sleep(10 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(tokenResponse{AccessToken: token, TokenType: "Bearer", ExpiresIn: 3600, RefreshToken: "refresh"})
	case thermostatPath:
		f.thermostat(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeAPI) thermostat(w http.ResponseWriter, r *http.Request) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.neverAccept || r.Header.Get("Authorization") != "Bearer "+f.accessToken {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(updateResponse{Status: Status{Code: statusTokenExpired, Message: "Authentication token has expired. Refresh your tokens."}})
		return
	}

	switch r.Method {
	case http.MethodGet:
		f.listCalls.Add(1)
		var request getThermostatsRequest
		if err := json.Unmarshal([]byte(r.URL.Query().Get("body")), &request); err != nil || request.Selection.SelectionType != selectionRegistered {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(getThermostatsResponse{
			Page: Page{Page: 1, TotalPages: 1, PageSize: 2, Total: 2},
			ThermostatList: []Thermostat{
				{Identifier: "1001", Name: "Library"},
				{Identifier: "1002", Name: "SERVICE KITCHEN"},
			},
		})
	case http.MethodPost:
		f.updateCalls.Add(1)
		if len(f.failures) > 0 {
			status := f.failures[0]
			f.failures = f.failures[1:]
			code := statusProcessingError
			if status == http.StatusForbidden {
				code = statusNotAuthorized
			}
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(updateResponse{Status: Status{Code: code, Message: "failed"}})
			return
		}
		body, _ := io.ReadAll(r.Body)
		var update map[string]any
		_ = json.Unmarshal(body, &update)
		f.updates = append(f.updates, update)
		_ = json.NewEncoder(w).Encode(updateResponse{})
	}
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	s := httptest.NewServer(api)
	t.Cleanup(s.Close)

	creds := validCredentials()
	api.accessToken = creds.AccessToken
	tokens, err := LoadTokens(writeCredentials(t, creds), s.URL, s.Client(), slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	c := New(s.URL, tokens, s.Client(), slog.New(slog.DiscardHandler))
	c.retryDelay = time.Millisecond
	return c
}

func TestClient_ResolveDevice(t *testing.T) {
	api := fakeAPI{}
	c := newTestClient(t, &api)

	id, err := c.ResolveDevice(t.Context(), "library")
	require.NoError(t, err)
	assert.Equal(t, "1001", id)

	id, err = c.ResolveDevice(t.Context(), "Service Kitchen")
	require.NoError(t, err)
	assert.Equal(t, "1002", id)
	assert.Equal(t, int32(1), api.listCalls.Load(), "identifiers should be cached")

	_, err = c.ResolveDevice(t.Context(), "Nursery")
	assert.ErrorIs(t, err, ErrUnknownThermostat)
}

func TestClient_PushSchedule(t *testing.T) {
	api := fakeAPI{}
	c := newTestClient(t, &api)

	loc := time.UTC
	day := time.Date(2025, time.March, 10, 0, 0, 0, 0, loc)
	program := schedule.Assemble(schedule.Build(nil, day, overnight, loc), nil, slog.New(slog.DiscardHandler))

	require.NoError(t, c.PushSchedule(t.Context(), "Library", program))
	require.Len(t, api.updates, 1)

	selection := api.updates[0]["selection"].(map[string]any)
	assert.Equal(t, "thermostats", selection["selectionType"])
	assert.Equal(t, "1001", selection["selectionMatch"])
	pushed := api.updates[0]["thermostat"].(map[string]any)["program"].(map[string]any)
	assert.Len(t, pushed["schedule"], 7)
	assert.Len(t, pushed["climates"], 3)
}

func TestClient_PushOccupancy(t *testing.T) {
	api := fakeAPI{}
	c := newTestClient(t, &api)

	require.NoError(t, c.PushOccupancy(t.Context(), "SERVICE KITCHEN", true))
	require.NoError(t, c.PushOccupancy(t.Context(), "SERVICE KITCHEN", false))
	require.Len(t, api.updates, 2)

	for i, want := range []string{"home", "away"} {
		functions := api.updates[i]["functions"].([]any)
		require.Len(t, functions, 1)
		function := functions[0].(map[string]any)
		assert.Equal(t, "setHold", function["type"])
		params := function["params"].(map[string]any)
		assert.Equal(t, want, params["holdClimateRef"])
		assert.Equal(t, "indefinite", params["holdType"])
		assert.Equal(t, "1002", api.updates[i]["selection"].(map[string]any)["selectionMatch"])
	}
}

func TestClient_AuthExpired(t *testing.T) {
	api := fakeAPI{}
	c := newTestClient(t, &api)

	_, err := c.ResolveDevice(t.Context(), "Library")
	require.NoError(t, err)

	// token expires: the next call refreshes and retries
	api.lock.Lock()
	api.accessToken = "rotated"
	api.lock.Unlock()

	require.NoError(t, c.PushOccupancy(t.Context(), "Library", true))
	assert.Equal(t, int32(1), api.tokenRequests.Load())
	assert.Len(t, api.updates, 1)

	// expired token also cleared the identifier cache
	_, err = c.ResolveDevice(t.Context(), "Library")
	require.NoError(t, err)
	assert.Equal(t, int32(2), api.listCalls.Load())
}

func TestClient_AuthExpired_Bounded(t *testing.T) {
	api := fakeAPI{neverAccept: true}
	c := newTestClient(t, &api)

	_, err := c.ResolveDevice(t.Context(), "Library")
	assert.ErrorIs(t, err, ErrAuthExpired)
	assert.Equal(t, int32(c.MaxAuthRetries), api.tokenRequests.Load())
}

func TestClient_AuthExpired_Concurrent(t *testing.T) {
	api := fakeAPI{}
	c := newTestClient(t, &api)
	_, err := c.ResolveDevice(t.Context(), "Library")
	require.NoError(t, err)

	api.lock.Lock()
	api.accessToken = "rotated"
	api.lock.Unlock()

	const workers = 5
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := range workers {
		go func() {
			defer wg.Done()
			assert.NoError(t, c.PushOccupancy(t.Context(), "Library", i%2 == 0))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), api.tokenRequests.Load())
	assert.Len(t, api.updates, workers)
}

func TestClient_Errors(t *testing.T) {
	testCases := []struct {
		name     string
		failures []int
		wantErr  assert.ErrorAssertionFunc
		errIs    error
		calls    int32
	}{
		{name: "recovers", failures: []int{http.StatusServiceUnavailable, http.StatusTooManyRequests}, wantErr: assert.NoError, calls: 3},
		{name: "transient", failures: []int{http.StatusServiceUnavailable, http.StatusServiceUnavailable, http.StatusServiceUnavailable}, wantErr: assert.Error, errIs: ErrTransient, calls: 3},
		{name: "forbidden", failures: []int{http.StatusForbidden}, wantErr: assert.Error, errIs: ErrPermission, calls: 1},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			api := fakeAPI{failures: tt.failures}
			c := newTestClient(t, &api)

			err := c.PushOccupancy(t.Context(), "Library", true)
			tt.wantErr(t, err)
			if tt.errIs != nil {
				assert.ErrorIs(t, err, tt.errIs)
			}
			assert.Equal(t, tt.calls, api.updateCalls.Load())
			assert.Zero(t, api.tokenRequests.Load())
		})
	}
}

func TestAPIError_Is(t *testing.T) {
	testCases := []struct {
		name string
		err  *APIError
		want error
	}{
		{name: "token expired", err: &APIError{HTTPStatus: http.StatusInternalServerError, Code: statusTokenExpired}, want: ErrAuthExpired},
		{name: "unauthorized", err: &APIError{HTTPStatus: http.StatusUnauthorized}, want: ErrAuthExpired},
		{name: "not authorized", err: &APIError{HTTPStatus: http.StatusInternalServerError, Code: statusNotAuthorized}, want: ErrPermission},
		{name: "forbidden", err: &APIError{HTTPStatus: http.StatusForbidden}, want: ErrPermission},
		{name: "rate limited", err: &APIError{HTTPStatus: http.StatusTooManyRequests}, want: ErrTransient},
		{name: "server error", err: &APIError{HTTPStatus: http.StatusBadGateway}, want: ErrTransient},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			for _, sentinel := range []error{ErrAuthExpired, ErrPermission, ErrTransient} {
				assert.Equal(t, sentinel == tt.want, tt.err.Is(sentinel), sentinel.Error())
			}
		})
	}

	var err error = &APIError{HTTPStatus: http.StatusBadRequest, Code: 4, Message: "invalid request"}
	assert.Equal(t, "thermostat API: http 400: status 4: invalid request", err.Error())
	assert.NotErrorIs(t, err, ErrTransient)
}
