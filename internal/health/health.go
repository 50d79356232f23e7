// Package health reports whether the occupancy loop is working.
package health

import (
	"context"
	"encoding/json"
	"github.com/clambin/calendar-hvac/internal/poller"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Status summarizes the last Update.
type Status string

const (
	// StatusOK means the last update is recent and at least one zone could be evaluated.
	StatusOK Status = "ok"
	// StatusWaiting means no update has been received yet.
	StatusWaiting Status = "waiting"
	// StatusStale means the last update is older than twice the polling interval.
	StatusStale Status = "stale"
	// StatusFailing means none of the zones could be evaluated, typically because no calendar is accessible.
	StatusFailing Status = "failing"
)

// Report is the body returned by Health.
type Report struct {
	Status Status `json:"status"`
	// Errors lists why each failed zone could not be evaluated, by zone name.
	Errors map[string]string `json:"errors,omitempty"`
	poller.Update
}

// Health serves the state of the occupancy loop, based on the last Update received from the Poller. It returns 503
// while the status isn't StatusOK. If no update was received yet, or the last one is stale, it asks the Poller to
// refresh.
type Health struct {
	poller.Poller
	interval time.Duration
	logger   *slog.Logger
	update   *poller.Update
	lock     sync.RWMutex
	now      func() time.Time
}

func New(p poller.Poller, interval time.Duration, logger *slog.Logger) *Health {
	return &Health{
		Poller:   p,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

func (h *Health) Run(ctx context.Context) error {
	h.logger.Debug("started")
	defer h.logger.Debug("stopped")

	ch := h.Poller.Subscribe()
	defer h.Poller.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-ch:
			if !ok {
				return nil
			}
			h.lock.Lock()
			h.update = &update
			h.lock.Unlock()
		}
	}
}

// Report returns the current state of the occupancy loop.
func (h *Health) Report() Report {
	h.lock.RLock()
	defer h.lock.RUnlock()
	if h.update == nil {
		return Report{Status: StatusWaiting}
	}

	r := Report{Status: StatusOK, Update: *h.update}
	for _, z := range h.update.Zones {
		if z.Err != nil {
			if r.Errors == nil {
				r.Errors = make(map[string]string)
			}
			r.Errors[z.Name] = z.Err.Error()
		}
	}
	switch {
	case h.interval > 0 && h.now().Sub(h.update.Time) > 2*h.interval:
		r.Status = StatusStale
	case len(h.update.Zones) > 0 && len(r.Errors) == len(h.update.Zones):
		r.Status = StatusFailing
	}
	return r
}

func (h *Health) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	r := h.Report()

	code := http.StatusOK
	switch r.Status {
	case StatusOK:
	case StatusWaiting, StatusStale:
		h.Poller.Refresh()
		code = http.StatusServiceUnavailable
	default:
		code = http.StatusServiceUnavailable
	}
	if code != http.StatusOK {
		h.logger.Debug("unhealthy", "status", r.Status, "errors", len(r.Errors))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(r); err != nil {
		h.logger.Error("failed to encode health report", "err", err)
	}
}
