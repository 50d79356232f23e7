// Package controller applies the poller's occupancy decisions to the thermostats.
package controller

import (
	"context"
	"github.com/clambin/calendar-hvac/internal/controller/notifier"
	"github.com/clambin/calendar-hvac/internal/poller"
	"github.com/clambin/calendar-hvac/internal/registry"
	"golang.org/x/sync/errgroup"
	"log/slog"
	"sync"
	"time"
)

type Publisher[T any] interface {
	Subscribe() chan T
	Unsubscribe(chan T)
}

// Pusher sets the occupancy of a thermostat, identified by its device name.
type Pusher interface {
	PushOccupancy(ctx context.Context, name string, occupied bool) error
}

const (
	// DefaultResync is the age after which a thermostat's occupancy is pushed again, even if it did not change.
	DefaultResync = time.Hour
	// DefaultPushTimeout bounds a single push to a thermostat.
	DefaultPushTimeout = 30 * time.Second
	// DefaultShutdownTimeout is how long Run waits for the publisher's final update once its context is canceled.
	DefaultShutdownTimeout = time.Minute
)

// A Controller receives updates from a Poller and pushes the decided occupancy to each thermostat.
//
// Controller only pushes when a thermostat's decision differs from the last value it pushed successfully, or when
// that value is older than the resync interval. Undecided thermostats are left alone. A failed push is retried on
// the next update.
//
// When its context is canceled, Controller keeps applying updates until the publisher closes its channel, so the
// outcome of a polling cycle that was in progress is still pushed. Pushes are not interrupted by the cancellation,
// but each push is bounded by PushTimeout.
type Controller struct {
	Publisher[poller.Update]
	Pusher
	Notifier        notifier.Notifier
	Workers         int
	PushTimeout     time.Duration
	ShutdownTimeout time.Duration
	resync          time.Duration
	logger   *slog.Logger
	lock     sync.Mutex
	pushed   map[registry.ThermostatID]pushed
	now      func() time.Time
}

type pushed struct {
	occupied bool
	at       time.Time
}

func New(p Publisher[poller.Update], pusher Pusher, n notifier.Notifier, resync time.Duration, workers int, logger *slog.Logger) *Controller {
	if resync <= 0 {
		resync = DefaultResync
	}
	return &Controller{
		Publisher: p,
		Pusher:    pusher,
		Notifier:        n,
		Workers:         max(workers, 1),
		PushTimeout:     DefaultPushTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		resync:          resync,
		logger:          logger,
		pushed:          make(map[registry.ThermostatID]pushed),
		now:             time.Now,
	}
}

func (c *Controller) Run(ctx context.Context) error {
	ch := c.Publisher.Subscribe()
	defer c.Publisher.Unsubscribe(ch)

	c.logger.Debug("controller starting")
	defer c.logger.Debug("controller stopping")

	for {
		select {
		case <-ctx.Done():
			c.drain(ctx, ch)
			return nil
		case update, ok := <-ch:
			if !ok {
				return nil
			}
			c.processUpdate(ctx, update)
		}
	}
}

// drain processes updates until the publisher closes ch, or ShutdownTimeout expires.
func (c *Controller) drain(ctx context.Context, ch chan poller.Update) {
	timeout := time.NewTimer(c.ShutdownTimeout)
	defer timeout.Stop()
	for {
		select {
		case update, ok := <-ch:
			if !ok {
				return
			}
			c.processUpdate(ctx, update)
		case <-timeout.C:
			c.logger.Warn("no final update received from poller")
			return
		}
	}
}

func (c *Controller) processUpdate(ctx context.Context, update poller.Update) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.PushTimeout)
	defer cancel()

	now := c.now()
	var g errgroup.Group
	g.SetLimit(c.Workers)
	for _, t := range update.Thermostats {
		if t.Decision == poller.Undecided {
			c.logger.Debug("occupancy undecided. leaving thermostat as is", "thermostat", t.Name, "reason", t.Reason)
			continue
		}
		occupied := t.Decision == poller.Occupied
		if !c.due(t.Thermostat.ID, occupied, now) {
			continue
		}
		g.Go(func() error {
			c.push(ctx, t, occupied, now)
			return nil
		})
	}
	_ = g.Wait()
}

// due reports whether the thermostat needs to be set to occupied.
func (c *Controller) due(id registry.ThermostatID, occupied bool, now time.Time) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	last, ok := c.pushed[id]
	return !ok || last.occupied != occupied || now.Sub(last.at) >= c.resync
}

func (c *Controller) push(ctx context.Context, t poller.ThermostatState, occupied bool, now time.Time) {
	err := c.Pusher.PushOccupancy(ctx, t.Thermostat.Device, occupied)
	if err != nil {
		c.logger.Error("failed to set occupancy", "thermostat", t.Name, "occupied", occupied, "err", err)
	} else {
		c.lock.Lock()
		c.pushed[t.Thermostat.ID] = pushed{occupied: occupied, at: now}
		c.lock.Unlock()
	}
	c.Notifier.Notify(notifier.Notification{
		Subject: t.Name,
		Action:  "set " + t.Decision.String(),
		Reason:  t.Reason,
		Err:     err,
	})
}
